package keystore

import "time"

// APIKey is a single issued key.
type APIKey struct {
	// ID is the key's stable identifier. Lookups are by ID, never by the
	// raw key material.
	ID string `json:"id"`

	// OwnerID identifies the account the key belongs to.
	OwnerID string `json:"owner_id"`

	// APIID is the API this key grants access to.
	APIID string `json:"api_id"`

	// KeyHash is the SHA-256 hex digest of the raw key. The raw key is
	// never stored.
	KeyHash string `json:"key_hash"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Disabled marks a key that must not authorize requests.
	Disabled bool `json:"disabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// API is the service an API key belongs to.
type API struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Usage is a key's request count for a usage window.
type Usage struct {
	KeyID       string    `json:"key_id"`
	WindowStart time.Time `json:"window_start"`
	Requests    int64     `json:"requests"`
}

// KeyBundle is everything the authorization path needs for one key: the key
// itself, its owning API, and the grants attached to it. This is the unit of
// caching for by-ID lookups.
type KeyBundle struct {
	Key         APIKey   `json:"key"`
	API         API      `json:"api"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// KeySummary is the per-owner listing shape: enough to render a key list
// without pulling full bundles.
type KeySummary struct {
	ID    string `json:"id"`
	APIID string `json:"api_id"`
	Name  string `json:"name"`
}
