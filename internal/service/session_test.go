package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
)

func TestSessionService_CreateForUnknownIdentifier(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Create(context.Background(), &model.CreateSessionRequest{Identifier: "nobody"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionService_DefaultVisibility(t *testing.T) {
	f := newFixture(t)
	f.register(t, "U", "u1")

	session, err := f.sessions.Create(context.Background(), &model.CreateSessionRequest{Identifier: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, session.Visibility)
	require.NotNil(t, session.Owner)
	assert.Equal(t, "U", session.Owner.Name)
}

func TestSessionService_AddMessageAndHistory(t *testing.T) {
	f := newFixture(t)
	f.register(t, "U", "u1")
	session := f.openSession(t, "u1")
	ctx := context.Background()

	msg, err := f.sessions.AddMessage(ctx, session.ExternalID, &model.AddMessageRequest{
		Message: model.ChatMessage{Identifier: "u1", Content: "note to self"},
	})
	require.NoError(t, err)
	assert.Equal(t, "note to self", msg.Content)

	history, err := f.sessions.Messages(ctx, session.ExternalID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "U", model.NewMessageResponse(&history[0]).Name)

	_, err = f.sessions.AddMessage(ctx, uuid.New(), &model.AddMessageRequest{
		Message: model.ChatMessage{Identifier: "u1", Content: "lost"},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.sessions.AddMessage(ctx, session.ExternalID, &model.AddMessageRequest{
		Message: model.ChatMessage{Identifier: "ghost", Content: "lost"},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionService_ListAndDelete(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a")
	f.register(t, "bob", "b")
	ctx := context.Background()

	s1 := f.openSession(t, "a")
	f.openSession(t, "b")

	all, err := f.sessions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	owned, err := f.sessions.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, s1.ExternalID, owned[0].ExternalID)

	_, err = f.sessions.ListByOwner(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.sessions.Delete(ctx, s1.ExternalID))
	assert.ErrorIs(t, f.sessions.Delete(ctx, s1.ExternalID), store.ErrNotFound)

	_, err = f.sessions.Get(ctx, s1.ExternalID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
