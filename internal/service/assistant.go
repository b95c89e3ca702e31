package service

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/yae-assistant/yae/internal/model"
	"github.com/yae-assistant/yae/internal/store"
)

const assistantKey = "assistant"

// AssistantResolver finds the user that authors generated replies. The
// assistant is looked up by role, never by a fixed id.
type AssistantResolver struct {
	store *store.Store
	cache *cache.Cache
	group singleflight.Group
}

// NewAssistantResolver caches the assistant for ttl.
func NewAssistantResolver(st *store.Store, ttl time.Duration) *AssistantResolver {
	return &AssistantResolver{
		store: st,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Resolve returns the assistant user or store.ErrNotFound.
func (r *AssistantResolver) Resolve(ctx context.Context) (*model.User, error) {
	if cached, ok := r.cache.Get(assistantKey); ok {
		return cached.(*model.User), nil
	}

	v, err, _ := r.group.Do(assistantKey, func() (any, error) {
		user, err := r.store.Users.ByRole(ctx, model.RoleAssistant)
		if err != nil {
			return nil, err
		}
		r.cache.SetDefault(assistantKey, user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

// Forget drops the cached assistant.
func (r *AssistantResolver) Forget() {
	r.cache.Delete(assistantKey)
}
