// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string

	// Database settings
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// LLM settings
	LocalURL          string
	LocalIdentifier   string
	RemoteURL         string
	RemoteIdentifier  string
	OpenRouterAPIKey  string
	AnthropicAPIKey   string
	TextProvider      string
	VoiceProvider     string
	CompletionTimeout time.Duration

	// Search tool
	LinkUpURL     string
	LinkUpAPIKey  string
	SearchTimeout time.Duration

	// Chat
	ContextWindow int
	AssistantName string
	AssistantTTL  time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Reply queue
	ReplyWorkers     int
	ReplyQueueSize   int
	ReplyMaxAttempts int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "8010"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:        getListEnv("CORS_ORIGINS", []string{"https://*", "http://*"}),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "yae.db"),
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),

		// LLM
		LocalURL:          getEnv("LOCAL_URL", "http://127.0.0.1:11434/v1"),
		LocalIdentifier:   getEnv("LOCAL_IDENTIFIER", "pocketdoc_dans-personalityengine-v1.3.0-24b"),
		RemoteURL:         getEnv("REMOTE_URL", "https://openrouter.ai/api/v1"),
		RemoteIdentifier:  getEnv("REMOTE_IDENTIFIER", "z-ai/glm-4.5-air:free"),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		TextProvider:      strings.ToLower(getEnv("TEXT_PROVIDER", "openai")),
		VoiceProvider:     strings.ToLower(getEnv("VOICE_PROVIDER", "openai")),
		CompletionTimeout: getDurationEnv("COMPLETION_TIMEOUT", 5*time.Minute),

		// Search
		LinkUpURL:     getEnv("LINKUP_URL", ""),
		LinkUpAPIKey:  getEnv("LINKUP_API_KEY", ""),
		SearchTimeout: getDurationEnv("SEARCH_TIMEOUT", 20*time.Second),

		// Chat
		ContextWindow: getIntEnv("CONTEXT_WINDOW", 10),
		AssistantName: getEnv("ASSISTANT_NAME", "Yae"),
		AssistantTTL:  getDurationEnv("ASSISTANT_CACHE_TTL", 5*time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Reply queue
		ReplyWorkers:     getIntEnv("REPLY_WORKERS", 2),
		ReplyQueueSize:   getIntEnv("REPLY_QUEUE_SIZE", 256),
		ReplyMaxAttempts: getIntEnv("REPLY_MAX_ATTEMPTS", 5),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.OpenRouterAPIKey == "" && c.VoiceProvider != "anthropic" {
		errs = append(errs, errors.New("OPENROUTER_API_KEY is required"))
	}
	for _, p := range []struct{ name, value string }{
		{"TEXT_PROVIDER", c.TextProvider},
		{"VOICE_PROVIDER", c.VoiceProvider},
	} {
		switch p.value {
		case "openai":
		case "anthropic":
			if c.AnthropicAPIKey == "" {
				errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required when %s is anthropic", p.name))
			}
		default:
			errs = append(errs, fmt.Errorf("%s must be openai or anthropic, got %q", p.name, p.value))
		}
	}
	if c.ContextWindow <= 0 {
		errs = append(errs, errors.New("CONTEXT_WINDOW must be positive"))
	}
	if strings.TrimSpace(c.AssistantName) == "" {
		errs = append(errs, errors.New("ASSISTANT_NAME must not be blank"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty entries.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
