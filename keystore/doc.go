// Package keystore resolves authorization-path data: API keys, their owning
// API, granted roles and permissions, and usage history.
//
// The origin of record is the Store interface (a SQL implementation is
// provided). CachedStore layers the tiered cache on top: read-through on a
// miss, negative caching of confirmed not-found lookups, background refresh
// of stale entries, and per-key invalidation on mutation.
package keystore
