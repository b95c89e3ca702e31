package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/pkg/logger"
)

func TestLogging_CorrelationID(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(Logging(logger.Nop()))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		_, ok := w.(http.Flusher)
		assert.True(t, ok, "wrapped writer must stay flushable")
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
}

func TestLogging_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(Logging(&logger.Logger{Logger: zap.New(core)}))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	r.Get("/v1/sessions/{uuid}", func(w http.ResponseWriter, _ *http.Request) {})

	for _, path := range []string{"/health", "/missing", "/boom", "/v1/sessions/abc"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
	assert.Equal(t, "/v1/sessions/{uuid}", entries[3].ContextMap()["route"])
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":60}`, last.Body.String())

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}

func TestValidateStruct(t *testing.T) {
	valid := model.ChatRequest{
		Message: model.ChatMessage{Identifier: "u1", Content: "hi"},
		Session: uuid.New(),
	}
	assert.NoError(t, ValidateStruct(valid))

	tests := []struct {
		name    string
		mutate  func(*model.ChatRequest)
		wantErr string
	}{
		{name: "missing identifier", mutate: func(r *model.ChatRequest) { r.Message.Identifier = "" }, wantErr: "Message.Identifier"},
		{name: "missing content", mutate: func(r *model.ChatRequest) { r.Message.Content = "" }, wantErr: "Message.Content"},
		{name: "bad interface", mutate: func(r *model.ChatRequest) { r.Interface = "video" }, wantErr: "Interface"},
		{name: "bad platform", mutate: func(r *model.ChatRequest) { r.Platform = "irc" }, wantErr: "Platform"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateStruct(req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseIDs(t *testing.T) {
	id := uuid.New()
	got, err := ParseSessionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseSessionID("not-a-uuid")
	assert.Error(t, err)
	_, err = ParseSessionID(uuid.Nil.String())
	assert.Error(t, err)

	userID, err := ParseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := ParseUserID(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent("   "))
	assert.Error(t, ValidateMessageContent(string(make([]byte, MaxContentLength+1))))
	assert.Error(t, ValidateMessageContent("\xff"))
}
