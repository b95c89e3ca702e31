package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yae-assistant/yae/internal/middleware"
	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/service"
	"github.com/yae-assistant/yae/pkg/logger"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log.Named("session-handler"),
	}
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, model.NewSessionResponse(session, ownerName(session)))
}

// List handles GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponses(sessions))
}

// ListByOwner handles GET /v1/users/{id}/sessions
func (h *SessionHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.service.ListByOwner(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponses(sessions))
}

// Messages handles GET /v1/sessions/{uuid}
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseSessionID(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.service.Messages(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "session not found")
		return
	}

	resp := make([]model.MessageResponse, 0, len(msgs))
	for i := range msgs {
		resp = append(resp, model.NewMessageResponse(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddMessage handles POST /v1/sessions/{uuid}/messages
func (h *SessionHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseSessionID(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AddMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Message.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.service.AddMessage(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "user or session not found")
		return
	}
	writeJSON(w, http.StatusCreated, model.NewMessageResponse(msg))
}

// Delete handles DELETE /v1/sessions/{uuid}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseSessionID(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionResponses(sessions []model.Session) []model.SessionResponse {
	resp := make([]model.SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, model.NewSessionResponse(&sessions[i], ownerName(&sessions[i])))
	}
	return resp
}

func ownerName(s *model.Session) string {
	if s.Owner == nil {
		return ""
	}
	return s.Owner.Name
}
