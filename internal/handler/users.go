package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yae-assistant/yae/internal/middleware"
	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/service"
	"github.com/yae-assistant/yae/pkg/logger"
)

// UserHandler handles user registration endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  log.Named("user-handler"),
	}
}

// Create handles POST /v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusCreated, model.NewUserResponse(user))
}

// List handles GET /v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	resp := make([]model.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, model.NewUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, model.NewUserResponse(user))
}

// Update handles PATCH /v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var upd model.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := h.service.Update(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, model.NewUserResponse(user))
}

// Delete handles DELETE /v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
