package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := createUser(t, s, "Test User", "123456789")
	assert.NotZero(t, user.ID)
	assert.Equal(t, model.RoleUser, user.Role)

	byID, err := s.Users.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test User", byID.Name)

	byDiscord, err := s.Users.ByDiscord(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byDiscord.ID)

	_, err = s.Users.ByID(ctx, user.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users.ByDiscord(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_UsersWithoutExternalID(t *testing.T) {
	s := newTestStore(t)

	createUser(t, s, "first", "")
	createUser(t, s, "second", "")

	users, err := s.Users.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserRepository_DuplicateDiscordIDConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := createUser(t, s, "first", "dup")

	err := s.Users.Create(ctx, &model.User{Name: "second", DiscordID: strPtr("dup")})
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Users.ByDiscord(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "first", got.Name)

	users, err := s.Users.All(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserRepository_ByRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createUser(t, s, "human", "h1")
	_, err := s.Users.ByRole(ctx, model.RoleAssistant)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assistant := &model.User{Name: "Yae", Role: model.RoleAssistant}
	require.NoError(t, s.Users.Create(ctx, assistant))

	got, err := s.Users.ByRole(ctx, model.RoleAssistant)
	require.NoError(t, err)
	assert.Equal(t, assistant.ID, got.ID)
}

func TestUserRepository_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := createUser(t, s, "Original Name", "u1")
	createUser(t, s, "Other", "u2")

	updated, err := s.Users.Update(ctx, user.ID, model.UserUpdate{Name: strPtr("Updated Name")})
	require.NoError(t, err)
	assert.Equal(t, "Updated Name", updated.Name)
	require.NotNil(t, updated.DiscordID)
	assert.Equal(t, "u1", *updated.DiscordID)

	_, err = s.Users.Update(ctx, user.ID, model.UserUpdate{DiscordID: strPtr("u2")})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Users.Update(ctx, user.ID, model.UserUpdate{DiscordID: strPtr("u1")})
	assert.NoError(t, err)

	_, err = s.Users.Update(ctx, 9999, model.UserUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createUser(t, s, "owner", "o1")
	other := createUser(t, s, "other", "o2")

	session, err := s.Sessions.Create(ctx, owner.ID, model.VisibilityPublic)
	require.NoError(t, err)
	_, err = s.Messages.Append(ctx, "mine", owner.ID, session.ID)
	require.NoError(t, err)

	otherSession, err := s.Sessions.Create(ctx, other.ID, model.VisibilityPublic)
	require.NoError(t, err)
	_, err = s.Messages.Append(ctx, "reply from owner", owner.ID, otherSession.ID)
	require.NoError(t, err)
	_, err = s.Messages.Append(ctx, "kept", other.ID, otherSession.ID)
	require.NoError(t, err)

	deleted, err := s.Users.Delete(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Sessions.ByID(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	count, err := s.Messages.Count(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	remaining, err := s.Messages.ListAll(ctx, otherSession.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "kept", remaining[0].Content)

	deleted, err = s.Users.Delete(ctx, owner.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
