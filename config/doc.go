// Package config loads and validates the authcached daemon configuration
// from a TOML file. Every knob has a usable default so a minimal file, or
// no file at all, yields a runnable single-tier setup.
package config
