// Package service provides the business logic of the chat backend.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
	"github.com/yae-assistant/yae/pkg/logger"
)

// UserService handles user registration and lookup.
type UserService struct {
	store     *store.Store
	assistant *AssistantResolver
	logger    *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(st *store.Store, assistant *AssistantResolver, log *logger.Logger) *UserService {
	return &UserService{
		store:     st,
		assistant: assistant,
		logger:    log.Named("users"),
	}
}

// Create registers a user. A taken external identifier yields store.ErrConflict.
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	user := &model.User{
		Role:            req.Role,
		Name:            req.Name,
		DiscordID:       req.DiscordID,
		DiscordUsername: req.DiscordUsername,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	if user.Role == model.RoleAssistant {
		s.assistant.Forget()
	}
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	return s.store.Users.ByID(ctx, id)
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.store.Users.All(ctx)
}

// ByIdentifier resolves a platform sender identifier to a user. Both
// supported platforms key users by their Discord id.
func (s *UserService) ByIdentifier(ctx context.Context, platform model.Platform, identifier string) (*model.User, error) {
	switch platform {
	case model.PlatformDiscord, model.PlatformLocal, "":
		return s.store.Users.ByDiscord(ctx, identifier)
	default:
		return nil, fmt.Errorf("unknown platform %q: %w", platform, store.ErrNotFound)
	}
}

// Update applies a partial update.
func (s *UserService) Update(ctx context.Context, id uint, upd model.UserUpdate) (*model.User, error) {
	user, err := s.store.Users.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if upd.Role != nil {
		s.assistant.Forget()
	}
	return user, nil
}

// Delete removes a user with their sessions and messages.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	deleted, err := s.store.Users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return store.ErrNotFound
	}

	s.assistant.Forget()
	s.logger.Info("user deleted", zap.Uint("user_id", id))
	return nil
}

// EnsureAssistant returns the assistant user, creating it with name if
// no user holds the assistant role yet.
func (s *UserService) EnsureAssistant(ctx context.Context, name string) (*model.User, error) {
	user, err := s.store.Users.ByRole(ctx, model.RoleAssistant)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up assistant: %w", err)
	}

	user = &model.User{Role: model.RoleAssistant, Name: name}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	s.assistant.Forget()

	s.logger.Info("assistant user created", zap.Uint("user_id", user.ID), zap.String("name", name))
	return user, nil
}
