package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yae-assistant/yae/internal/model"
)

// MessageRepository appends to and reads session history.
type MessageRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// Append stores a message written by authorID in sessionID. The timestamp is
// assigned at write time. Missing author or session yields ErrNotFound.
func (r *MessageRepository) Append(ctx context.Context, content string, authorID, sessionID uint) (*model.Message, error) {
	msg := &model.Message{
		Content:   content,
		UserID:    authorID,
		SessionID: sessionID,
	}
	if err := r.AppendBatch(ctx, []*model.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendBatch stores msgs atomically: either all are committed or none.
// Messages without a timestamp get the write time; ids are assigned in order.
// A message carrying a ReplyID that is already stored is skipped and
// filled with the stored row.
func (r *MessageRepository) AppendBatch(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authors := map[uint]*model.User{}
		touched := map[uint]time.Time{}

		for _, msg := range msgs {
			author, ok := authors[msg.UserID]
			if !ok {
				author = &model.User{}
				if err := tx.First(author, msg.UserID).Error; err != nil {
					return fmt.Errorf("author %d: %w", msg.UserID, translate(err))
				}
				authors[msg.UserID] = author
			}
			if _, ok := touched[msg.SessionID]; !ok {
				var count int64
				if err := tx.Model(&model.Session{}).Where("id = ?", msg.SessionID).Count(&count).Error; err != nil {
					return fmt.Errorf("failed to check session: %w", err)
				}
				if count == 0 {
					return fmt.Errorf("session %d: %w", msg.SessionID, ErrNotFound)
				}
			}

			if msg.ReplyID != nil {
				var existing model.Message
				err := tx.Where("reply_id = ?", *msg.ReplyID).Limit(1).Find(&existing).Error
				if err != nil {
					return fmt.Errorf("failed to check reply: %w", err)
				}
				if existing.ID != 0 {
					*msg = existing
					msg.User = author
					continue
				}
			}

			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = r.now()
			}
			if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
				return translate(err)
			}
			msg.User = author
			if msg.CreatedAt.After(touched[msg.SessionID]) {
				touched[msg.SessionID] = msg.CreatedAt
			}
		}

		for sessionID, at := range touched {
			err := tx.Model(&model.Session{}).
				Where("id = ? AND updated_at < ?", sessionID, at).
				UpdateColumn("updated_at", at).Error
			if err != nil {
				return fmt.Errorf("failed to touch session: %w", err)
			}
		}
		return nil
	})
}

// ListAll returns the full history of a session, oldest first.
func (r *MessageRepository) ListAll(ctx context.Context, sessionID uint) ([]model.Message, error) {
	msgs := []model.Message{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ListLastN returns at most n of the most recent messages, oldest first.
// n <= 0 returns an empty slice.
func (r *MessageRepository) ListLastN(ctx context.Context, sessionID uint, n int) ([]model.Message, error) {
	msgs := []model.Message{}
	if n <= 0 {
		return msgs, nil
	}

	err := r.db.WithContext(ctx).
		Preload("User").
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// Count returns the number of messages in a session.
func (r *MessageRepository) Count(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Message{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
