package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/authcache/observe"
)

// RefreshFunc re-fetches the authoritative value for a key during a
// stale-triggered refresh. It reports the encoded value, or ok=false when the
// origin confirms the record does not exist. An error leaves the cache
// unchanged.
type RefreshFunc func(ctx context.Context) (value []byte, ok bool, err error)

// Tiered composes an ordered list of tiers (fastest first) into one logical
// cache.
//
// Reads consult tiers in order and promote fresh values into faster tiers.
// Writes go through every tier. Stale reads trigger an asynchronous refresh,
// coalesced per (namespace, key) so concurrent callers share one in-flight
// origin fetch. Background work is detached from the triggering caller's
// context: an abandoned request does not cancel a refresh.
type Tiered struct {
	tiers          []Tier
	logger         observe.Logger
	refreshTimeout time.Duration
	now            func() time.Time

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewTiered creates a tiered cache over the given tiers, fastest first. The
// logger may be nil.
func NewTiered(logger observe.Logger, tiers ...Tier) (*Tiered, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}
	for _, t := range tiers {
		if t == nil {
			return nil, ErrNilTier
		}
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Tiered{
		tiers:          tiers,
		logger:         logger,
		refreshTimeout: 10 * time.Second,
		now:            time.Now,
	}, nil
}

// Get resolves (namespace, key) against the tiers in order.
//
// The first fresh entry wins and is promoted into the faster tiers that
// missed. Failing that, the first stale entry is returned immediately and, if
// refresh is non-nil, a background refresh is started (at most one in flight
// per key). If every tier misses, the result is a miss and no refresh fires;
// the caller computes the value and calls Set.
//
// A result whose entry has Absent set is a usable confirmed-negative: the
// caller should treat the record as not existing without consulting the
// origin.
func (c *Tiered) Get(ctx context.Context, namespace, key string, refresh RefreshFunc) Result {
	staleIdx := -1
	var stale Result

	for i, t := range c.tiers {
		res := t.Get(ctx, namespace, key)
		switch res.Status {
		case StatusFresh:
			c.promote(ctx, namespace, key, res.Entry, i)
			return res
		case StatusStale:
			if staleIdx < 0 {
				staleIdx = i
				stale = res
			}
		}
	}

	if staleIdx >= 0 {
		if refresh != nil {
			c.refreshAsync(ctx, namespace, key, refresh)
		}
		return stale
	}
	return Result{Status: StatusMiss}
}

// Set stamps the value with the current time and writes it through every
// tier. Per-tier write failures are logged, not propagated: the cache favors
// availability of fast tiers over strict consistency with slow ones.
func (c *Tiered) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := c.validate(namespace, key); err != nil {
		return err
	}
	c.writeThrough(ctx, namespace, key, Entry{Value: value, StoredAt: c.now()})
	return nil
}

// SetAbsent records a confirmed negative lookup across every tier.
func (c *Tiered) SetAbsent(ctx context.Context, namespace, key string) error {
	if err := c.validate(namespace, key); err != nil {
		return err
	}
	c.writeThrough(ctx, namespace, key, Entry{Absent: true, StoredAt: c.now()})
	return nil
}

// Remove deletes (namespace, key) from every tier. Used when the underlying
// record is mutated or deleted at the origin. Tier failures are joined and
// returned so the caller knows stale data may still be served from a tier
// that could not be reached.
func (c *Tiered) Remove(ctx context.Context, namespace, key string) error {
	if err := c.validate(namespace, key); err != nil {
		return err
	}
	var errs []error
	for _, t := range c.tiers {
		if err := t.Remove(ctx, namespace, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all in-flight background promotions and refreshes have
// completed. Intended for graceful shutdown and tests.
func (c *Tiered) Wait() {
	c.wg.Wait()
}

func (c *Tiered) validate(namespace, key string) error {
	if err := ValidateNamespace(namespace); err != nil {
		return err
	}
	return ValidateKey(key)
}

// promote copies a fresh entry found at tier index i into tiers 0..i-1,
// keeping the original StoredAt. Best-effort and asynchronous: the caller
// does not wait.
func (c *Tiered) promote(ctx context.Context, namespace, key string, entry Entry, i int) {
	if i == 0 {
		return
	}
	faster := c.tiers[:i]
	bg := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(bg, c.refreshTimeout)
		defer cancel()
		for _, t := range faster {
			if err := t.Set(ctx, namespace, key, entry); err != nil {
				c.logger.Warn(ctx, "tier promotion failed",
					observe.Field{Key: "tier", Value: t.Name()},
					observe.Field{Key: "namespace", Value: namespace},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}
	}()
}

// refreshAsync runs the refresh hook in the background, coalesced per
// (namespace, key). The singleflight group is the coalescing registry: its
// entry exists only while the refresh is in flight, so concurrent stale reads
// share one origin fetch and the registry cannot grow without bound.
func (c *Tiered) refreshAsync(ctx context.Context, namespace, key string, refresh RefreshFunc) {
	bg := context.WithoutCancel(ctx)

	ch := c.group.DoChan(entryKey(namespace, key), func() (any, error) {
		ctx, cancel := context.WithTimeout(bg, c.refreshTimeout)
		defer cancel()

		value, ok, err := refresh(ctx)
		if err != nil {
			// The stale value already served stands; a future stale read
			// may retry.
			c.logger.Warn(ctx, "stale refresh failed",
				observe.Field{Key: "namespace", Value: namespace},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return nil, err
		}

		entry := Entry{Value: value, Absent: !ok, StoredAt: c.now()}
		if !ok {
			entry.Value = nil
		}
		c.writeThrough(ctx, namespace, key, entry)
		return nil, nil
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-ch
	}()
}

func (c *Tiered) writeThrough(ctx context.Context, namespace, key string, entry Entry) {
	for _, t := range c.tiers {
		if err := t.Set(ctx, namespace, key, entry); err != nil {
			c.logger.Warn(ctx, "tier write failed",
				observe.Field{Key: "tier", Value: t.Name()},
				observe.Field{Key: "namespace", Value: namespace},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}
