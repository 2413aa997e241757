package cache

import "time"

// Windows configures the two-phase expiration policy shared by all tiers.
//
// An entry younger than Fresh is authoritative. An entry older than Fresh but
// younger than Stale is returned immediately and triggers a background
// refresh. An entry older than Stale is treated as absent.
type Windows struct {
	// Fresh is the duration for which an entry is authoritative.
	Fresh time.Duration

	// Stale is the duration after which an entry is no longer usable at all.
	// Must be >= Fresh.
	Stale time.Duration
}

// DefaultWindows returns the default policy. Fresh: 1 minute, Stale: 24 hours.
func DefaultWindows() Windows {
	return Windows{
		Fresh: 1 * time.Minute,
		Stale: 24 * time.Hour,
	}
}

// Validate checks the windows for consistency. A cache must refuse to
// initialize with invalid windows.
func (w Windows) Validate() error {
	if w.Fresh <= 0 || w.Stale <= 0 || w.Fresh > w.Stale {
		return ErrInvalidWindows
	}
	return nil
}

// Classify maps an entry age to a status. A negative age (an entry stamped
// ahead of the local clock) classifies as fresh.
func (w Windows) Classify(age time.Duration) Status {
	switch {
	case age < w.Fresh:
		return StatusFresh
	case age < w.Stale:
		return StatusStale
	default:
		return StatusMiss
	}
}
