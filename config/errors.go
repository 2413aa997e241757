package config

import "errors"

var (
	// ErrInvalidWindows indicates the freshness windows are malformed.
	ErrInvalidWindows = errors.New("config: fresh window must be positive and not exceed stale window")

	// ErrInvalidCapacity indicates a non-positive local cache capacity.
	ErrInvalidCapacity = errors.New("config: local capacity must be positive")

	// ErrInvalidEndpoint indicates a malformed edge endpoint URL.
	ErrInvalidEndpoint = errors.New("config: edge endpoint must be an absolute http(s) URL")

	// ErrMissingDSN indicates the database DSN was left empty.
	ErrMissingDSN = errors.New("config: database dsn is required")

	// ErrInvalidListen indicates a malformed listen address.
	ErrInvalidListen = errors.New("config: listen address must be host:port")

	// ErrInvalidDuration indicates a duration string that could not be parsed.
	ErrInvalidDuration = errors.New("config: invalid duration")
)
