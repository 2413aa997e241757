package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Namespace binds a logical namespace name to a value type V.
//
// Namespaces are the type-level registry of the cache: consumers declare a
// closed set of package-level Namespace values, and every get/set is checked
// against the declared value shape at compile time. Entries are encoded as
// JSON on the way into the tiers.
type Namespace[V any] struct {
	name string
}

// NewNamespace declares a namespace. The name must satisfy ValidateNamespace;
// namespaces are compile-time declarations, so an invalid name panics rather
// than returning an error.
func NewNamespace[V any](name string) Namespace[V] {
	if err := ValidateNamespace(name); err != nil {
		panic(fmt.Sprintf("cache: bad namespace %q: %v", name, err))
	}
	return Namespace[V]{name: name}
}

// Name returns the namespace name.
func (n Namespace[V]) Name() string { return n.name }

// Lookup is the typed outcome of a namespace read.
type Lookup[V any] struct {
	// Value is the decoded value. Meaningful only when Found is true.
	Value V

	// Found is false when the cache holds a confirmed-absent marker: the
	// origin was consulted and the record does not exist.
	Found bool

	// Status is the freshness classification. StatusMiss means the cache
	// does not know; the caller should consult the origin.
	Status Status
}

// Get resolves key against the tiered cache, decoding into V. A non-nil
// refresh hook is invoked (in the background, coalesced) when the cache
// returns a stale entry; it reports ok=false when the origin confirms the
// record does not exist.
//
// A stored entry that no longer decodes as V is treated as a miss and removed
// from every tier so the cache heals itself.
func (n Namespace[V]) Get(ctx context.Context, c *Tiered, key string, refresh func(ctx context.Context) (V, bool, error)) Lookup[V] {
	var rf RefreshFunc
	if refresh != nil {
		rf = func(ctx context.Context) ([]byte, bool, error) {
			v, ok, err := refresh(ctx)
			if err != nil || !ok {
				return nil, false, err
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, false, fmt.Errorf("cache: encode %s value: %w", n.name, err)
			}
			return data, true, nil
		}
	}

	res := c.Get(ctx, n.name, key, rf)
	if res.Status == StatusMiss {
		return Lookup[V]{Status: StatusMiss}
	}
	if res.Entry.Absent {
		return Lookup[V]{Status: res.Status}
	}

	var v V
	if err := json.Unmarshal(res.Entry.Value, &v); err != nil {
		// Schema drift or corruption: purge the entry everywhere.
		_ = c.Remove(context.WithoutCancel(ctx), n.name, key)
		return Lookup[V]{Status: StatusMiss}
	}
	return Lookup[V]{Value: v, Found: true, Status: res.Status}
}

// Set encodes value and writes it through every tier.
func (n Namespace[V]) Set(ctx context.Context, c *Tiered, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s value: %w", n.name, err)
	}
	return c.Set(ctx, n.name, key, data)
}

// SetAbsent records a confirmed negative lookup for key.
func (n Namespace[V]) SetAbsent(ctx context.Context, c *Tiered, key string) error {
	return c.SetAbsent(ctx, n.name, key)
}

// Remove deletes key from every tier.
func (n Namespace[V]) Remove(ctx context.Context, c *Tiered, key string) error {
	return c.Remove(ctx, n.name, key)
}
