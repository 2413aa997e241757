// Package health provides liveness and readiness checking for the
// authcached daemon.
//
// A Checker probes a single dependency (the origin database, the shared
// edge tier, the local cache). The Aggregator fans registered checkers
// out in parallel and folds their results into an overall status that
// the HTTP handlers expose on /healthz, /readyz and /health.
//
// Status semantics:
//   - Healthy: the dependency is fully operational.
//   - Degraded: serving is possible but impaired, e.g. the edge tier is
//     unreachable while the local tier still answers.
//   - Unhealthy: the dependency is down and requests will fail.
package health
