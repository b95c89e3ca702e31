package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "LOCAL_URL", "REMOTE_URL", "OPENROUTER_API_KEY",
		"ANTHROPIC_API_KEY", "TEXT_PROVIDER", "VOICE_PROVIDER", "CONTEXT_WINDOW",
		"ASSISTANT_NAME", "NATS_URL", "CORS_ORIGINS", "RATE_LIMIT_WINDOW",
		"REPLY_WORKERS", "TRACING_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8010", cfg.ServerPort)
	assert.Equal(t, "yae.db", cfg.DatabaseURL)
	assert.Equal(t, "http://127.0.0.1:11434/v1", cfg.LocalURL)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.RemoteURL)
	assert.Equal(t, "openai", cfg.TextProvider)
	assert.Equal(t, 10, cfg.ContextWindow)
	assert.Equal(t, "Yae", cfg.AssistantName)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, 2, cfg.ReplyWorkers)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.CORSOrigins)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("PORT", "9000")
	t.Setenv("CONTEXT_WINDOW", "25")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TEXT_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 25, cfg.ContextWindow)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "anthropic", cfg.TextProvider)
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("REPLY_WORKERS", "many")
	t.Setenv("RATE_LIMIT_WINDOW", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ReplyWorkers)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing openrouter key",
			env:     map[string]string{},
			wantErr: "OPENROUTER_API_KEY is required",
		},
		{
			name:    "anthropic without key",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "TEXT_PROVIDER": "anthropic"},
			wantErr: "ANTHROPIC_API_KEY is required when TEXT_PROVIDER is anthropic",
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "VOICE_PROVIDER": "cohere"},
			wantErr: `VOICE_PROVIDER must be openai or anthropic, got "cohere"`,
		},
		{
			name:    "non-positive window",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "CONTEXT_WINDOW": "0"},
			wantErr: "CONTEXT_WINDOW must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_VoiceOnAnthropicNeedsNoOpenRouterKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOICE_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	_, err := Load()
	assert.NoError(t, err)
}
