// Package observe provides observability primitives for the cache service.
//
// It is a pure instrumentation library: no cache semantics, no transport, no
// I/O beyond exporter setup. Consumers wire the observer's tracer and meter
// into the cache tier decorators and server middleware.
package observe
