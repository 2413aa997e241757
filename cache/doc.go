// Package cache provides a tiered, instrumented cache for authorization-path
// lookups.
//
// It composes an ordered list of storage tiers (a bounded in-process tier and
// an optional remote edge tier) into one logical cache with read-through
// promotion, write-through propagation, and a two-phase fresh/stale expiration
// policy. Metrics and tracing attach by wrapping tiers, never by subclassing.
package cache
