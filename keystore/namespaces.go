package keystore

import "github.com/jonwraymond/authcache/cache"

// The closed set of cache namespaces for authorization-path data. Adding a
// namespace means adding a declaration here; there is no runtime
// registration, so a lookup can never cross-contaminate value shapes.
var (
	nsKeyByID     = cache.NewNamespace[*KeyBundle]("key_by_id")
	nsKeysByOwner = cache.NewNamespace[[]KeySummary]("keys_by_owner")
	nsAPIByID     = cache.NewNamespace[*API]("api_by_id")
	nsUsageByKey  = cache.NewNamespace[*Usage]("usage_by_key")
)
