package cache

import (
	"context"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Status classifies the outcome of a tier lookup.
type Status int

const (
	// StatusMiss means no usable entry: absent, expired beyond the stale
	// window, or corrupt.
	StatusMiss Status = iota

	// StatusStale means the entry is older than the fresh window but still
	// within the stale window. It is usable but should trigger a refresh.
	StatusStale

	// StatusFresh means the entry is younger than the fresh window and is
	// authoritative.
	StatusFresh
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	default:
		return "miss"
	}
}

// Entry is the unit of storage in every tier.
//
// Absent marks a confirmed negative lookup: the origin was consulted and the
// record does not exist. A cached absent marker is distinct from a miss, which
// means the cache simply does not know.
type Entry struct {
	// Value is the encoded value. Nil when Absent is true.
	Value []byte

	// Absent records a confirmed "not found" from the origin.
	Absent bool

	// StoredAt is when the value was fetched from the origin. Age is always
	// computed against StoredAt, never against the time of a tier write, so
	// promotion between tiers does not rejuvenate an entry.
	StoredAt time.Time
}

// Age returns the entry's age relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Result is the outcome of a tier lookup.
//
// When Status is StatusFresh or StatusStale and Entry.Absent is true, the
// cache holds a usable confirmed-absent marker for the key.
type Result struct {
	Status Status
	Entry  Entry
}

// Tier is a single storage backend capable of namespaced get/set/remove with
// per-entry timestamps.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get never returns an error; transport and decoding failures degrade to
//     StatusMiss and are recorded out of band.
//   - Set stores unconditionally from the caller's point of view and is
//     idempotent. A tier may enforce never-downgrade locally (reject writes
//     older than what it holds); otherwise it must converge to the freshest
//     observed value.
//   - Remove is idempotent; removing an absent key is not an error.
type Tier interface {
	// Name identifies the tier for telemetry ("memory", "edge").
	Name() string

	// Get retrieves and classifies the entry stored under (namespace, key).
	Get(ctx context.Context, namespace, key string) Result

	// Set stores an entry under (namespace, key).
	Set(ctx context.Context, namespace, key string, entry Entry) error

	// Remove deletes the entry stored under (namespace, key), if any.
	Remove(ctx context.Context, namespace, key string) error
}

// ValidateKey checks that a key is usable as a cache key.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidateNamespace checks that a namespace name is usable. Namespace names
// are part of edge-tier URLs and telemetry labels, so the character set is
// deliberately narrow.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return ErrInvalidNamespace
	}
	for _, r := range namespace {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return ErrInvalidNamespace
		}
	}
	return nil
}
