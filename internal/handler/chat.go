package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/middleware"
	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/service"
	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

// ChatHandler streams chat replies as server-sent events.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log.Named("chat-handler"),
	}
}

// Chat handles POST /v1/chat
// Malformed requests get a 400; once the stream starts every outcome is
// reported as text chunks followed by a done event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Session == uuid.Nil {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	outcome := h.chat.Run(ctx, &req, func(chunk string) error {
		return sendSSEData(w, flusher, chunk)
	})

	if err := sendSSEDone(w, flusher); err != nil {
		h.logger.Debug("client gone before done event", zap.Error(err))
	}

	h.logger.Info("chat turn finished",
		zap.String("session_uuid", req.Session.String()),
		zap.String("outcome", string(outcome)),
		zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
	)
}

// sendSSEData writes one event carrying chunk. Each line of a multi-line
// chunk gets its own data field so clients rejoin them with newlines.
func sendSSEData(w http.ResponseWriter, flusher http.Flusher, chunk string) error {
	var b strings.Builder
	for _, line := range strings.Split(chunk, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := fmt.Fprint(w, b.String()); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func sendSSEDone(w http.ResponseWriter, flusher http.Flusher) error {
	if _, err := fmt.Fprint(w, "event: done\ndata: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
