// Package clock provides injectable time for deterministic testing.
package clock

import "time"

// Clock supplies the current time. Every timestamp the engine writes comes
// through a Clock so tests can fix time.
type Clock interface {
	Now() time.Time
}

// System returns wall-clock time.
type System struct{}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Intended for tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return f.T
}
