// Package clock provides time sources for implicit record timestamps.
package clock

import (
	"sync"
	"time"
)

// Real reads the wall clock in UTC.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a clock that only moves when told to, or by a fixed step after
// every read when one is set.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake time, then advances it by the step.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.step)
	return now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.current = f.current.Add(d)
	f.mu.Unlock()
}

// Step makes every later Now call advance the clock by d, so consecutive
// writes get distinct timestamps. Zero stops the clock again.
func (f *Fake) Step(d time.Duration) {
	f.mu.Lock()
	f.step = d
	f.mu.Unlock()
}
