// Package resilience provides the failure-handling patterns used around
// the edge cache transport.
//
// A CircuitBreaker stops hammering the edge store once it has failed
// repeatedly, letting reads degrade to a local miss until a probe
// succeeds. Retry smooths transient write failures so the shared tier
// converges on the freshest value.
//
// The two compose: wrap the breaker inside the retry so an open circuit
// fails fast instead of being retried.
package resilience
