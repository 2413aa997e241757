package health

import "errors"

var (
	// ErrCheckFailed marks a probe whose dependency is misconfigured or
	// returned an unusable answer.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a probe that did not answer within the
	// aggregator's per-check timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned when Check is asked for a name that
	// was never registered.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
