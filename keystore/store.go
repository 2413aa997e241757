package keystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Sentinel errors.
var (
	// ErrNotFound indicates the record does not exist at the origin. A
	// caller seeing ErrNotFound may have hit the cache's negative marker;
	// the origin was consulted at most once within the freshness window.
	ErrNotFound = errors.New("keystore: not found")

	// ErrNilStore indicates a nil origin Store was provided.
	ErrNilStore = errors.New("keystore: store is nil")

	// ErrNilCache indicates a nil tiered cache was provided.
	ErrNilCache = errors.New("keystore: cache is nil")
)

// Store is the origin of record for authorization-path data.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: missing records are reported as ErrNotFound, never as (nil, nil).
// - Context: methods must honor cancellation/deadlines.
type Store interface {
	// GetKeyBundle fetches a key with its API and grants.
	GetKeyBundle(ctx context.Context, id string) (*KeyBundle, error)

	// ListKeysByOwner lists an owner's keys, ordered by creation time. An
	// owner with no keys yields an empty slice, not ErrNotFound.
	ListKeysByOwner(ctx context.Context, ownerID string) ([]KeySummary, error)

	// GetAPI fetches an API by ID.
	GetAPI(ctx context.Context, id string) (*API, error)

	// GetUsage fetches the current usage window for a key.
	GetUsage(ctx context.Context, keyID string) (*Usage, error)
}

// HashKey returns the SHA-256 hex digest of raw key material. Only the
// digest is ever stored or compared.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
