package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/llm"
	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/queue"
	"github.com/yae-assistant/yae/internal/store"
	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

// Informational chunks sent instead of a model reply.
const (
	NotRegisteredText = "You are not registered. Please register before chatting."
	NoSessionText     = "There is no valid session for this conversation."
	RecordFailedText  = "Your message could not be saved. Please try again."
	FailureText       = "Something went wrong, please try again later."
)

// Outcome is how a chat turn ended.
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeNotRegistered Outcome = "not_registered"
	OutcomeNoSession     Outcome = "no_session"
	OutcomeRecordFailed  Outcome = "record_failed"
	OutcomeFailed        Outcome = "failed"
	// OutcomeReplyDropped means the reply streamed but could not be queued for persistence.
	OutcomeReplyDropped Outcome = "reply_dropped"
)

// Emit delivers one chunk to the caller. An error means the caller is gone.
type Emit func(chunk string) error

// ChatConfig tunes the orchestrator.
type ChatConfig struct {
	ContextWindow     int
	CompletionTimeout time.Duration
}

// ChatService runs one chat turn: resolve sender and session, record the
// inbound message, stream a reply and queue it for persistence.
type ChatService struct {
	store     *store.Store
	users     *UserService
	assistant *AssistantResolver
	profiles  llm.Profiles
	replies   queue.Queue
	cfg       ChatConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewChatService creates a new chat service.
func NewChatService(
	st *store.Store,
	users *UserService,
	assistant *AssistantResolver,
	profiles llm.Profiles,
	replies queue.Queue,
	cfg ChatConfig,
	log *logger.Logger,
) *ChatService {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 10
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 5 * time.Minute
	}

	return &ChatService{
		store:     st,
		users:     users,
		assistant: assistant,
		profiles:  profiles,
		replies:   replies,
		cfg:       cfg,
		logger:    log.Named("chat"),
		now:       time.Now,
	}
}

// Run executes one chat turn, sending every chunk through emit. It never
// returns an error: failures become informational chunks and an Outcome.
func (s *ChatService) Run(ctx context.Context, req *model.ChatRequest, emit Emit) Outcome {
	profile := s.profiles.For(req.Interface)

	ctx, span := otel.Tracer("yae/service").Start(ctx, "chat.Run", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("session_uuid", req.Session.String()),
		attribute.String("interface", string(profile.Interface)),
	)

	log := s.logger.With(
		zap.String("session_uuid", req.Session.String()),
		zap.String("interface", string(profile.Interface)),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	outcome := s.run(ctx, req, profile, emit, log)

	metrics.RecordChatOutcome(string(profile.Interface), string(outcome))
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome != OutcomeCompleted {
		span.SetStatus(codes.Error, string(outcome))
	}
	return outcome
}

func (s *ChatService) run(ctx context.Context, req *model.ChatRequest, profile llm.Profile, emit Emit, log *logger.Logger) Outcome {
	// Resolve
	user, err := s.users.ByIdentifier(ctx, req.Platform, req.Message.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			emit(NotRegisteredText)
			return OutcomeNotRegistered
		}
		log.Error("failed to resolve sender", zap.Error(err))
		emit(FailureText)
		return OutcomeFailed
	}

	session, err := s.store.Sessions.ByExternalID(ctx, req.Session)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			emit(NoSessionText)
			return OutcomeNoSession
		}
		log.Error("failed to resolve session", zap.Error(err))
		emit(FailureText)
		return OutcomeFailed
	}
	log = log.With(zap.Uint("session_id", session.ID), zap.Uint("user_id", user.ID))

	// Record inbound
	inbound, err := s.store.Messages.Append(ctx, req.Message.Content, user.ID, session.ID)
	if err != nil {
		log.Warn("failed to record inbound message", zap.Error(err))
		emit(RecordFailedText)
		return OutcomeRecordFailed
	}
	metrics.RecordMessage(string(user.Role))

	// Build context
	history, err := s.store.Messages.ListLastN(ctx, session.ID, s.cfg.ContextWindow)
	if err != nil {
		log.Error("failed to load context window", zap.Error(err))
		emit(FailureText)
		return OutcomeFailed
	}
	messages := buildDialogue(history, inbound.ID, buildPrompt(req))

	// Stream
	reply, err := s.stream(ctx, profile, messages, emit, log)
	if err != nil {
		log.Error("model stream failed", zap.Error(err))
		emit(FailureText)
		return OutcomeFailed
	}
	if strings.TrimSpace(reply) == "" {
		log.Warn("model returned an empty reply")
		emit(FailureText)
		return OutcomeFailed
	}

	// Finalize
	return s.finalize(ctx, session, reply, log)
}

// stream relays tokens to emit until the caller goes away, but keeps
// accumulating so the full reply can still be persisted.
func (s *ChatService) stream(ctx context.Context, profile llm.Profile, messages []llm.ChatMessage, emit Emit, log *logger.Logger) (string, error) {
	streamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompletionTimeout)
	defer cancel()

	var reply strings.Builder
	relaying := true
	start := time.Now()

	resp, err := profile.Client.CompleteStream(streamCtx, profile.Request(messages), func(token string, _ int) error {
		reply.WriteString(token)
		if !relaying {
			return nil
		}
		if ctx.Err() != nil {
			relaying = false
			log.Info("caller disconnected, finishing reply in background")
			return nil
		}
		if err := emit(token); err != nil {
			relaying = false
			log.Info("caller disconnected, finishing reply in background", zap.Error(err))
		}
		return nil
	})

	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordLLMStream(profile.Model, "error", duration, 0, 0)
		return "", err
	}
	metrics.RecordLLMStream(profile.Model, "success", duration, resp.TokensIn, resp.TokensOut)

	return reply.String(), nil
}

func (s *ChatService) finalize(ctx context.Context, session *model.Session, reply string, log *logger.Logger) Outcome {
	detached := context.WithoutCancel(ctx)

	assistant, err := s.assistant.Resolve(detached)
	if err != nil {
		log.Error("no assistant user, dropping reply", zap.Error(err))
		return OutcomeReplyDropped
	}

	task := queue.NewTask(session.ID, session.ExternalID, assistant.ID, reply, s.now())
	if err := s.replies.Enqueue(detached, task); err != nil {
		log.Error("failed to queue reply", zap.String("task_id", task.ID), zap.Error(err))
		return OutcomeReplyDropped
	}
	return OutcomeCompleted
}

// buildPrompt prepends caller-supplied context to the message text.
func buildPrompt(req *model.ChatRequest) string {
	if len(req.Context) == 0 {
		return req.Message.Content
	}

	lines := make([]string, 0, len(req.Context))
	for _, c := range req.Context {
		lines = append(lines, c.Content)
	}
	return "Context:\n" + strings.Join(lines, "\n") + "\n\nCurrent message:\n" + req.Message.Content
}

// buildDialogue maps stored history to model turns, substituting prompt
// for the stored text of the inbound message.
func buildDialogue(history []model.Message, inboundID uint, prompt string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	found := false
	for _, msg := range history {
		role := llm.RoleUser
		if msg.User != nil && msg.User.Role == model.RoleAssistant {
			role = llm.RoleAssistant
		}

		content := msg.Content
		if msg.ID == inboundID {
			content = prompt
			found = true
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: content})
	}
	if !found {
		messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: prompt})
	}
	return messages
}
