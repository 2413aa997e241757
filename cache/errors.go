package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNilTier indicates a nil Tier was provided.
	ErrNilTier = errors.New("cache: tier is nil")

	// ErrNoTiers indicates NewTiered was called without any tiers.
	ErrNoTiers = errors.New("cache: at least one tier is required")

	// ErrInvalidKey indicates a key is empty or contains control characters.
	ErrInvalidKey = errors.New("cache: key is invalid")

	// ErrKeyTooLong indicates a key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrInvalidNamespace indicates a namespace name is empty or contains
	// characters outside [a-z0-9_-].
	ErrInvalidNamespace = errors.New("cache: namespace is invalid")

	// ErrInvalidWindows indicates the fresh/stale windows are inconsistent.
	ErrInvalidWindows = errors.New("cache: fresh window must be positive and must not exceed the stale window")

	// ErrInvalidCapacity indicates a non-positive local tier capacity.
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")

	// ErrInvalidEndpoint indicates a malformed edge tier endpoint URL.
	ErrInvalidEndpoint = errors.New("cache: edge endpoint is invalid")
)
