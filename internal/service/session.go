package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
	"github.com/yae-assistant/yae/pkg/logger"
	"github.com/yae-assistant/yae/pkg/metrics"
)

// SessionService handles session lifecycle and history.
type SessionService struct {
	store  *store.Store
	users  *UserService
	logger *logger.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(st *store.Store, users *UserService, log *logger.Logger) *SessionService {
	return &SessionService{
		store:  st,
		users:  users,
		logger: log.Named("sessions"),
	}
}

// Create opens a session for the user behind req.Identifier.
func (s *SessionService) Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	owner, err := s.users.ByIdentifier(ctx, req.Platform, req.Identifier)
	if err != nil {
		return nil, fmt.Errorf("session owner: %w", err)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}

	session, err := s.store.Sessions.Create(ctx, owner.ID, visibility)
	if err != nil {
		return nil, err
	}

	metrics.RecordSession()
	s.logger.Info("session created",
		zap.String("session_uuid", session.ExternalID.String()),
		zap.Uint("owner_id", owner.ID),
	)
	return session, nil
}

// Get returns a session by its external UUID.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.store.Sessions.ByExternalID(ctx, id)
}

// List returns every session with its owner.
func (s *SessionService) List(ctx context.Context) ([]model.Session, error) {
	return s.store.Sessions.All(ctx)
}

// ListByOwner returns the sessions owned by a user.
func (s *SessionService) ListByOwner(ctx context.Context, userID uint) ([]model.Session, error) {
	if _, err := s.store.Users.ByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Sessions.ByOwner(ctx, userID)
}

// Messages returns the full history of a session, oldest first.
func (s *SessionService) Messages(ctx context.Context, id uuid.UUID) ([]model.Message, error) {
	session, err := s.store.Sessions.ByExternalID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.Messages.ListAll(ctx, session.ID)
}

// AddMessage appends a message to a session without running inference.
func (s *SessionService) AddMessage(ctx context.Context, id uuid.UUID, req *model.AddMessageRequest) (*model.Message, error) {
	author, err := s.users.ByIdentifier(ctx, req.Platform, req.Message.Identifier)
	if err != nil {
		return nil, fmt.Errorf("message author: %w", err)
	}

	session, err := s.store.Sessions.ByExternalID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("message session: %w", err)
	}

	msg, err := s.store.Messages.Append(ctx, req.Message.Content, author.ID, session.ID)
	if err != nil {
		return nil, err
	}

	metrics.RecordMessage(string(author.Role))
	return msg, nil
}

// Delete removes a session and its messages.
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	session, err := s.store.Sessions.ByExternalID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.store.Sessions.Delete(ctx, session.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return store.ErrNotFound
	}

	s.logger.Info("session deleted", zap.String("session_uuid", id.String()))
	return nil
}
