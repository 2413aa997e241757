package health

import (
	"context"
	"time"
)

// Status grades a dependency. The distinction that matters operationally is
// Degraded versus Unhealthy: a degraded authcached still answers reads from
// its local tier, an unhealthy one cannot be trusted to.
type Status int

const (
	// StatusHealthy means the dependency answered normally.
	StatusHealthy Status = iota
	// StatusDegraded means the dependency is impaired but service continues.
	StatusDegraded
	// StatusUnhealthy means the dependency is unusable.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	}
	return "unknown"
}

// Result is one probe's outcome.
type Result struct {
	// Status grades the probed dependency.
	Status Status

	// Message is a short human-readable explanation.
	Message string

	// Details carries probe-specific metadata, such as pool statistics.
	Details map[string]any

	// Duration is how long the probe ran; filled in by the aggregator.
	Duration time.Duration

	// Timestamp is when the probe ran.
	Timestamp time.Time

	// Error is set when the probe itself failed.
	Error error
}

// Healthy builds a passing result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a result for an impaired but serving dependency.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds a failing result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns a copy of r carrying probe metadata.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one dependency.
//
// Contract:
// - Concurrency: Check may be invoked concurrently by the aggregator.
// - Context: Check must return promptly once ctx is done.
type Checker interface {
	// Name identifies the dependency being probed.
	Name() string

	// Check runs the probe.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
