package clock

import "time"

// Clock abstracts time for deterministic readiness checks.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

// Now returns the current time using the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually advanced clock used by tests and the offline probe.
type Fake struct {
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *Fake) Set(t time.Time) {
	f.now = t
}
