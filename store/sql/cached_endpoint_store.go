package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-webhooks/core"
)

const endpointCacheKeyPrefix = "go-webhooks::endpoint::v1"

// CachedEndpointStore fronts an endpoint store with a read-through cache.
// Dispatch resolves subscriptions on every event, so GetByID and
// ListActiveByEvent are the hot reads; every write invalidates the affected
// keys.
type CachedEndpointStore struct {
	base  core.EndpointStore
	cache repositorycache.CacheService
}

func NewCachedEndpointStore(
	base core.EndpointStore,
	cacheService repositorycache.CacheService,
) (*CachedEndpointStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base endpoint store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: endpoint cache service is required")
	}
	return &CachedEndpointStore{base: base, cache: cacheService}, nil
}

// EndpointCacheKey returns the deterministic cache key for one endpoint:
// go-webhooks::endpoint::v1::id::<id> with the id URL-path escaped.
func EndpointCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: endpoint id is required")
	}
	return strings.Join([]string{endpointCacheKeyPrefix, "id", url.PathEscape(id)}, "::"), nil
}

// SubscriptionCacheKey returns the deterministic cache key for the active
// subscriber list of one owner/event pair.
func SubscriptionCacheKey(ownerID string, eventType core.EventType) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", fmt.Errorf("sqlstore: owner id is required")
	}
	if err := eventType.Validate(); err != nil {
		return "", err
	}
	segments := []string{
		endpointCacheKeyPrefix,
		"subscribers",
		url.PathEscape(ownerID),
		url.PathEscape(string(eventType)),
	}
	return strings.Join(segments, "::"), nil
}

func (s *CachedEndpointStore) GetByID(ctx context.Context, id string) (core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := EndpointCacheKey(id)
	if err != nil {
		return core.Endpoint{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Endpoint, error) {
		return s.base.GetByID(ctx, id)
	})
}

func (s *CachedEndpointStore) ListActiveByEvent(ctx context.Context, ownerID string, eventType core.EventType) ([]core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(ownerID, eventType)
	if err != nil {
		return nil, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Endpoint, error) {
		return s.base.ListActiveByEvent(ctx, ownerID, eventType)
	})
}

func (s *CachedEndpointStore) Create(ctx context.Context, endpoint core.Endpoint) (core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	created, err := s.base.Create(ctx, endpoint)
	if err != nil {
		return core.Endpoint{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Endpoint{}, err
	}
	return created, nil
}

func (s *CachedEndpointStore) Update(ctx context.Context, endpoint core.Endpoint) (core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	// Invalidate subscriber lists for the previous event set too, in case the
	// update unsubscribed events.
	previous, err := s.base.GetByID(ctx, endpoint.ID)
	if err == nil {
		if err := s.invalidate(ctx, previous); err != nil {
			return core.Endpoint{}, err
		}
	}
	updated, err := s.base.Update(ctx, endpoint)
	if err != nil {
		return core.Endpoint{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.Endpoint{}, err
	}
	return updated, nil
}

func (s *CachedEndpointStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Endpoint, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	return s.base.ListByOwner(ctx, ownerID)
}

func (s *CachedEndpointStore) RotateSecret(ctx context.Context, id string, secret string) (core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	rotated, err := s.base.RotateSecret(ctx, id, secret)
	if err != nil {
		return core.Endpoint{}, err
	}
	if err := s.invalidate(ctx, rotated); err != nil {
		return core.Endpoint{}, err
	}
	return rotated, nil
}

func (s *CachedEndpointStore) SetActive(ctx context.Context, id string, active bool) (core.Endpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	updated, err := s.base.SetActive(ctx, id, active)
	if err != nil {
		return core.Endpoint{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.Endpoint{}, err
	}
	return updated, nil
}

func (s *CachedEndpointStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	endpoint, err := s.base.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, endpoint)
}

func (s *CachedEndpointStore) invalidate(ctx context.Context, endpoint core.Endpoint) error {
	cacheKey, err := EndpointCacheKey(endpoint.ID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	for _, eventType := range endpoint.Events {
		subscriptionKey, err := SubscriptionCacheKey(endpoint.OwnerID, eventType)
		if err != nil {
			continue
		}
		if err := s.cache.Delete(ctx, subscriptionKey); err != nil {
			return err
		}
	}
	return nil
}

var _ core.EndpointStore = (*CachedEndpointStore)(nil)
