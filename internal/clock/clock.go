// Package clock provides an injectable wall-clock time source.
// The engine and the trigger evaluator never call time.Now directly,
// so tests can drive rotation cadence deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is a wall-clock time source.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the real wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Manual is a Clock whose time only moves when told to.
// It is used by tests to replay rotation schedules.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the clock to an absolute time.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
