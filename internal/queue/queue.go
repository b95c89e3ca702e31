// Package queue persists assistant replies outside the request lifecycle.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
)

// ErrClosed is returned when enqueueing on a closed queue.
var ErrClosed = errors.New("queue closed")

// Task is one assistant reply waiting to be persisted.
type Task struct {
	ID          string    `json:"id"`
	SessionID   uint      `json:"session_id"`
	SessionUUID uuid.UUID `json:"session_uuid"`
	AuthorID    uint      `json:"author_id"`
	Content     string    `json:"content"`
	// CreatedAt is when the reply finished streaming. It becomes the
	// message timestamp so retries do not reorder the history.
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a task with a fresh id.
func NewTask(sessionID uint, sessionUUID uuid.UUID, authorID uint, content string, createdAt time.Time) Task {
	return Task{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		SessionUUID: sessionUUID,
		AuthorID:    authorID,
		Content:     content,
		CreatedAt:   createdAt.UTC(),
	}
}

// Message converts the task into the message row it persists. The task id
// becomes the reply id, so persisting the same task twice stores one row.
func (t Task) Message() *model.Message {
	msg := &model.Message{
		Content:   t.Content,
		UserID:    t.AuthorID,
		SessionID: t.SessionID,
		CreatedAt: t.CreatedAt,
	}
	if t.ID != "" {
		id := t.ID
		msg.ReplyID = &id
	}
	return msg
}

// Handler persists a task. Errors marked with backoff.Permanent are not retried.
type Handler func(ctx context.Context, task Task) error

// Queue accepts tasks and eventually hands each to a Handler.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Close(ctx context.Context) error
}

// MessageAppender is the subset of the message repository used to persist replies.
type MessageAppender interface {
	AppendBatch(ctx context.Context, msgs []*model.Message) error
}

// Persist returns a Handler that appends the reply through repo.
// Redelivered tasks are no-ops. Missing sessions or authors are permanent
// failures.
func Persist(repo MessageAppender) Handler {
	return func(ctx context.Context, task Task) error {
		err := repo.AppendBatch(ctx, []*model.Message{task.Message()})
		if err == nil || errors.Is(err, store.ErrConflict) {
			// A conflict can only come from the reply id: a concurrent
			// delivery of the same task committed first.
			return nil
		}
		err = fmt.Errorf("persist reply %s: %w", task.ID, err)
		if errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent) || errors.Is(err, store.ErrNotFound)
}
