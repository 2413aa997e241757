package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/authcache/cache"
	"github.com/jonwraymond/authcache/observe"
)

// CachedStore is a Store front that resolves every lookup through the tiered
// cache.
//
// A fresh or stale cache entry answers without touching the origin (a stale
// answer triggers a coalesced background re-fetch). A cache miss falls
// through to the origin; the result, including a confirmed not-found, is
// written back through every tier. Origin errors on a miss propagate to the
// caller; cache errors never do.
type CachedStore struct {
	origin Store
	cache  *cache.Tiered
	logger observe.Logger
}

// NewCachedStore creates a cached front over origin. The logger may be nil.
func NewCachedStore(origin Store, tiered *cache.Tiered, logger observe.Logger) (*CachedStore, error) {
	if origin == nil {
		return nil, ErrNilStore
	}
	if tiered == nil {
		return nil, ErrNilCache
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &CachedStore{
		origin: origin,
		cache:  tiered,
		logger: logger.WithComponent("keystore"),
	}, nil
}

// GetKeyBundle resolves a key bundle by key ID.
func (s *CachedStore) GetKeyBundle(ctx context.Context, id string) (*KeyBundle, error) {
	return lookup(ctx, s, nsKeyByID, id, func(ctx context.Context) (*KeyBundle, error) {
		return s.origin.GetKeyBundle(ctx, id)
	})
}

// ListKeysByOwner resolves an owner's key listing. An owner with no keys is
// cached as an empty list, not as a negative marker.
func (s *CachedStore) ListKeysByOwner(ctx context.Context, ownerID string) ([]KeySummary, error) {
	return lookup(ctx, s, nsKeysByOwner, ownerID, func(ctx context.Context) ([]KeySummary, error) {
		return s.origin.ListKeysByOwner(ctx, ownerID)
	})
}

// GetAPI resolves an API by ID.
func (s *CachedStore) GetAPI(ctx context.Context, id string) (*API, error) {
	return lookup(ctx, s, nsAPIByID, id, func(ctx context.Context) (*API, error) {
		return s.origin.GetAPI(ctx, id)
	})
}

// GetUsage resolves the current usage window for a key.
func (s *CachedStore) GetUsage(ctx context.Context, keyID string) (*Usage, error) {
	return lookup(ctx, s, nsUsageByKey, keyID, func(ctx context.Context) (*Usage, error) {
		return s.origin.GetUsage(ctx, keyID)
	})
}

// InvalidateKey drops the cached bundle and usage for a key. Call after
// mutating or deleting the key at the origin; otherwise the old record keeps
// serving until the staleness window expires it.
func (s *CachedStore) InvalidateKey(ctx context.Context, id string) error {
	return errors.Join(
		nsKeyByID.Remove(ctx, s.cache, id),
		nsUsageByKey.Remove(ctx, s.cache, id),
	)
}

// InvalidateOwner drops an owner's cached key listing.
func (s *CachedStore) InvalidateOwner(ctx context.Context, ownerID string) error {
	return nsKeysByOwner.Remove(ctx, s.cache, ownerID)
}

// InvalidateAPI drops a cached API record.
func (s *CachedStore) InvalidateAPI(ctx context.Context, id string) error {
	return nsAPIByID.Remove(ctx, s.cache, id)
}

// lookup is the shared read-through path for one namespace.
func lookup[V any](ctx context.Context, s *CachedStore, ns cache.Namespace[V], key string, fetch func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	refresh := func(ctx context.Context) (V, bool, error) {
		v, err := fetch(ctx)
		if errors.Is(err, ErrNotFound) {
			return zero, false, nil
		}
		if err != nil {
			return zero, false, err
		}
		return v, true, nil
	}

	got := ns.Get(ctx, s.cache, key, refresh)
	if got.Status != cache.StatusMiss {
		if !got.Found {
			return zero, ErrNotFound
		}
		return got.Value, nil
	}

	// Miss: the caller owns the origin fetch and the write-back.
	v, err := fetch(ctx)
	if errors.Is(err, ErrNotFound) {
		if cerr := ns.SetAbsent(ctx, s.cache, key); cerr != nil {
			s.logger.Warn(ctx, "negative write-back failed",
				observe.Field{Key: "namespace", Value: ns.Name()},
				observe.Field{Key: "error", Value: cerr.Error()},
			)
		}
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("keystore: origin fetch %s: %w", ns.Name(), err)
	}
	if cerr := ns.Set(ctx, s.cache, key, v); cerr != nil {
		s.logger.Warn(ctx, "write-back failed",
			observe.Field{Key: "namespace", Value: ns.Name()},
			observe.Field{Key: "error", Value: cerr.Error()},
		)
	}
	return v, nil
}

// Ensure CachedStore implements Store
var _ Store = (*CachedStore)(nil)
