// Package bootstrap wires storage, LLM profiles, reply persistence and
// HTTP handlers into one container.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/config"
	"github.com/yae-assistant/yae/internal/handler"
	"github.com/yae-assistant/yae/internal/llm"
	natsclient "github.com/yae-assistant/yae/internal/nats"
	"github.com/yae-assistant/yae/internal/queue"
	"github.com/yae-assistant/yae/internal/search"
	"github.com/yae-assistant/yae/internal/service"
	"github.com/yae-assistant/yae/internal/store"
	"github.com/yae-assistant/yae/pkg/logger"
)

// Container owns every long-lived dependency of the API server.
type Container struct {
	Store   *store.Store
	NATS    *natsclient.Client
	Replies queue.Queue

	Users    *service.UserService
	Sessions *service.SessionService
	Chat     *service.ChatService

	Router http.Handler

	logger *logger.Logger
}

// NewContainer opens the database, seeds the assistant persona and builds
// the services and router. On error everything opened so far is closed.
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *Container, err error) {
	c := &Container{logger: log.Named("bootstrap")}
	defer func() {
		if err != nil {
			c.Close(context.Background())
		}
	}()

	c.Store, err = store.Open(store.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		SlowThreshold:   200 * time.Millisecond,
	}, log)
	if err != nil {
		return nil, err
	}
	if err = c.Store.Migrate(ctx); err != nil {
		return nil, err
	}

	assistant := service.NewAssistantResolver(c.Store, cfg.AssistantTTL)
	c.Users = service.NewUserService(c.Store, assistant, log)
	persona, err := c.Users.EnsureAssistant(ctx, cfg.AssistantName)
	if err != nil {
		return nil, fmt.Errorf("failed to seed assistant: %w", err)
	}
	c.logger.Info("assistant ready", zap.Uint("user_id", persona.ID), zap.String("name", persona.Name))

	profiles, err := buildProfiles(cfg, log)
	if err != nil {
		return nil, err
	}

	if c.Replies, err = c.buildReplyQueue(ctx, cfg, log); err != nil {
		return nil, err
	}

	c.Sessions = service.NewSessionService(c.Store, c.Users, log)
	c.Chat = service.NewChatService(c.Store, c.Users, assistant, profiles, c.Replies, service.ChatConfig{
		ContextWindow:     cfg.ContextWindow,
		CompletionTimeout: cfg.CompletionTimeout,
	}, log)

	health := handler.NewHealthHandler(c.Store, nil)
	if c.NATS != nil {
		health = handler.NewHealthHandler(c.Store, c.NATS)
	}

	c.Router = handler.NewRouter(handler.RouterConfig{
		Chat:              handler.NewChatHandler(c.Chat, log),
		Sessions:          handler.NewSessionHandler(c.Sessions, log),
		Users:             handler.NewUserHandler(c.Users, log),
		Health:            health,
		Logger:            log,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		CORSOrigins:       cfg.CORSOrigins,
	})

	return c, nil
}

// buildProfiles creates the text profile on the local endpoint, with web
// search, and the voice profile on the remote endpoint.
func buildProfiles(cfg *config.Config, log *logger.Logger) (llm.Profiles, error) {
	textClient, err := llm.NewClient(providerConfig(cfg.TextProvider, "", cfg.LocalURL, cfg.AnthropicAPIKey))
	if err != nil {
		return llm.Profiles{}, fmt.Errorf("failed to create text client: %w", err)
	}

	voiceClient, err := llm.NewClient(providerConfig(cfg.VoiceProvider, cfg.OpenRouterAPIKey, cfg.RemoteURL, cfg.AnthropicAPIKey))
	if err != nil {
		return llm.Profiles{}, fmt.Errorf("failed to create voice client: %w", err)
	}

	linkup := search.NewLinkUp(search.Config{
		URL:     cfg.LinkUpURL,
		APIKey:  cfg.LinkUpAPIKey,
		Timeout: cfg.SearchTimeout,
	}, log)
	if !linkup.Configured() {
		log.Warn("LinkUp is not configured, web search will answer with a placeholder")
	}

	return llm.Profiles{
		Text:  llm.TextProfile(textClient, cfg.LocalIdentifier, search.NewTool(linkup)),
		Voice: llm.VoiceProfile(voiceClient, cfg.RemoteIdentifier),
	}, nil
}

func providerConfig(provider, openAIKey, baseURL, anthropicKey string) llm.Config {
	if llm.Provider(provider) == llm.ProviderAnthropic {
		return llm.Config{Provider: llm.ProviderAnthropic, APIKey: anthropicKey}
	}
	return llm.Config{Provider: llm.ProviderOpenAI, APIKey: openAIKey, BaseURL: baseURL}
}

// buildReplyQueue persists replies through JetStream when NATS is
// configured and through an in-process worker pool otherwise.
func (c *Container) buildReplyQueue(ctx context.Context, cfg *config.Config, log *logger.Logger) (queue.Queue, error) {
	persist := queue.Persist(c.Store.Messages)

	if cfg.NATSURL == "" {
		c.logger.Info("persisting replies in process", zap.Int("workers", cfg.ReplyWorkers))
		return queue.NewLocalQueue(persist, queue.Options{
			Workers:     cfg.ReplyWorkers,
			Size:        cfg.ReplyQueueSize,
			MaxAttempts: cfg.ReplyMaxAttempts,
		}, log), nil
	}

	nc, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		Name:     "yae-api",
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		return nil, err
	}
	c.NATS = nc

	replies, err := natsclient.NewReplyQueue(ctx, nc, persist, natsclient.ReplyQueueOptions{
		MaxAttempts: cfg.ReplyMaxAttempts,
	}, log)
	if err != nil {
		return nil, err
	}
	c.logger.Info("persisting replies through JetStream", zap.String("stream", natsclient.ReplyStream))
	return replies, nil
}

// Close drains the reply queue before closing NATS and the database.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.Replies != nil {
		if err := c.Replies.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reply queue: %w", err))
		}
	}
	if c.NATS != nil {
		c.NATS.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
