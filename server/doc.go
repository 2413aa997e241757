// Package server exposes the cached keystore over HTTP.
//
// Read endpoints serve through the tiered cache; DELETE endpoints
// invalidate cached entries after an out-of-band mutation. Health and
// Prometheus metrics endpoints are mounted alongside the API.
package server
