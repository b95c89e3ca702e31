package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yae-assistant/yae/internal/model"
)

// SessionRepository persists sessions.
type SessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Create starts a session for ownerID. It returns ErrNotFound, and writes
// nothing, when the owner does not exist.
func (r *SessionRepository) Create(ctx context.Context, ownerID uint, visibility model.Visibility) (*model.Session, error) {
	if visibility == "" {
		visibility = model.VisibilityPublic
	}

	var session *model.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner model.User
		if err := tx.First(&owner, ownerID).Error; err != nil {
			return translate(err)
		}

		now := r.now()
		session = &model.Session{
			ExternalID: uuid.New(),
			Visibility: visibility,
			CreatedAt:  now,
			UpdatedAt:  now,
			OwnerID:    owner.ID,
		}
		if err := tx.Omit(clause.Associations).Create(session).Error; err != nil {
			return translate(err)
		}
		session.Owner = &owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ByID returns the session with the given internal id.
func (r *SessionRepository) ByID(ctx context.Context, id uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Preload("Owner").First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// ByExternalID returns the session with the given external UUID.
func (r *SessionRepository) ByExternalID(ctx context.Context, externalID uuid.UUID) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("external_id = ?", externalID).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// ByOwner returns the sessions owned by ownerID, oldest first.
func (r *SessionRepository) ByOwner(ctx context.Context, ownerID uint) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by owner: %w", err)
	}
	return sessions, nil
}

// All returns every session, oldest first, with owners preloaded.
func (r *SessionRepository) All(ctx context.Context) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Order("created_at ASC, id ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes the session and its messages. It reports whether a session existed.
func (r *SessionRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.Session{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete session: %w", result.Error)
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}
