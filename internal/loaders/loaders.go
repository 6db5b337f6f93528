// Package loaders provides batched, cached point lookups for the entity
// vertices. Concurrent loads for the same key are deduplicated with
// singleflight; an optional Redis layer serves repeated lookups across
// requests. Orchestrators invalidate entries after destructive commits.
package loaders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

const defaultTTL = 30 * time.Second

// Loader is a cached point-lookup for one entity type. The zero Redis client
// (nil) disables the shared cache; singleflight still collapses concurrent
// loads.
type Loader[T any] struct {
	name     string
	ttl      time.Duration
	fetch    func(ctx context.Context, key uuid.UUID) (*T, error)
	notFound error
	cache    *redis.Client
	group    singleflight.Group
}

func newLoader[T any](name string, cache *redis.Client, notFound error, fetch func(ctx context.Context, key uuid.UUID) (*T, error)) *Loader[T] {
	return &Loader[T]{
		name:     name,
		ttl:      defaultTTL,
		fetch:    fetch,
		notFound: notFound,
		cache:    cache,
	}
}

func (l *Loader[T]) cacheKey(key uuid.UUID) string {
	return "loader:" + l.name + ":" + key.String()
}

// Load returns the entity by key, or the loader's not-found sentinel.
func (l *Loader[T]) Load(ctx context.Context, key uuid.UUID) (*T, error) {
	v, err, _ := l.group.Do(key.String(), func() (any, error) {
		if l.cache != nil {
			raw, err := l.cache.Get(ctx, l.cacheKey(key)).Bytes()
			if err == nil {
				var entity T
				if err := json.Unmarshal(raw, &entity); err == nil {
					return &entity, nil
				}
				// Unreadable cache entries fall through to the store.
			} else if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Str("loader", l.name).Msg("Cache read failed")
			}
		}

		entity, err := l.fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		if l.cache != nil {
			if raw, err := json.Marshal(entity); err == nil {
				if err := l.cache.Set(ctx, l.cacheKey(key), raw, l.ttl).Err(); err != nil {
					log.Warn().Err(err).Str("loader", l.name).Msg("Cache write failed")
				}
			}
		}

		return entity, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// Invalidate drops the cached entry for a key after a destructive commit.
func (l *Loader[T]) Invalidate(ctx context.Context, key uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, l.cacheKey(key)).Err(); err != nil {
		log.Warn().Err(err).Str("loader", l.name).Msg("Cache invalidation failed")
	}
}

// Loaders bundles the per-entity loaders built once at startup.
type Loaders struct {
	Users   *Loader[models.User]
	Orgs    *Loader[models.Organization]
	Domains *Loader[models.Domain]
}

// New builds the entity loaders. cache may be nil.
func New(users store.UserStore, orgs store.OrganizationStore, domains store.DomainStore, cache *redis.Client) *Loaders {
	return &Loaders{
		Users:   newLoader("users", cache, store.ErrUserNotFound, users.Get),
		Orgs:    newLoader("organizations", cache, store.ErrOrganizationNotFound, orgs.Get),
		Domains: newLoader("domains", cache, store.ErrDomainNotFound, domains.Get),
	}
}
