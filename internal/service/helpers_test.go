package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yae-assistant/yae/internal/llm"
	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/queue"
	"github.com/yae-assistant/yae/internal/store"
	"github.com/yae-assistant/yae/pkg/logger"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(store.Config{
		URL: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeLLM streams a fixed list of tokens and optionally fails afterwards.
type fakeLLM struct {
	name   string
	tokens []string
	err    error

	mu       sync.Mutex
	requests []*llm.CompletionRequest
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.CompleteStream(ctx, req, func(string, int) error { return nil })
}

func (f *fakeLLM) CompleteStream(_ context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	for i, token := range f.tokens {
		if err := callback(token, i); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: strings.Join(f.tokens, ""), Model: req.Model}, nil
}

func (f *fakeLLM) lastRequest() *llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// syncQueue persists replies immediately.
type syncQueue struct {
	handler queue.Handler
	err     error
	tasks   []queue.Task
}

func (q *syncQueue) Enqueue(ctx context.Context, task queue.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return q.handler(ctx, task)
}

func (q *syncQueue) Close(context.Context) error { return nil }

type fixture struct {
	store     *store.Store
	users     *UserService
	sessions  *SessionService
	chat      *ChatService
	text      *fakeLLM
	voice     *fakeLLM
	replies   *syncQueue
	assistant *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	log := logger.Nop()

	resolver := NewAssistantResolver(st, time.Minute)
	users := NewUserService(st, resolver, log)
	assistant, err := users.EnsureAssistant(context.Background(), "Yae")
	require.NoError(t, err)

	text := &fakeLLM{name: "text"}
	voice := &fakeLLM{name: "voice"}
	replies := &syncQueue{handler: queue.Persist(st.Messages)}

	profiles := llm.Profiles{
		Text:  llm.TextProfile(text, "local-model"),
		Voice: llm.VoiceProfile(voice, "remote-model"),
	}

	return &fixture{
		store:     st,
		users:     users,
		sessions:  NewSessionService(st, users, log),
		chat:      NewChatService(st, users, resolver, profiles, replies, ChatConfig{ContextWindow: 10}, log),
		text:      text,
		voice:     voice,
		replies:   replies,
		assistant: assistant,
	}
}

func (f *fixture) register(t *testing.T, name, discordID string) *model.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), &model.CreateUserRequest{Name: name, DiscordID: &discordID})
	require.NoError(t, err)
	return user
}

func (f *fixture) openSession(t *testing.T, discordID string) *model.Session {
	t.Helper()
	session, err := f.sessions.Create(context.Background(), &model.CreateSessionRequest{
		Identifier: discordID,
		Visibility: model.VisibilityPublic,
	})
	require.NoError(t, err)
	return session
}

// collector gathers emitted chunks and can simulate a caller that goes away.
type collector struct {
	chunks  []string
	failAt  int
	failErr error
}

func (c *collector) emit(chunk string) error {
	if c.failErr != nil && len(c.chunks) >= c.failAt {
		return c.failErr
	}
	c.chunks = append(c.chunks, chunk)
	return nil
}
