// Package wait holds the observed-condition primitives. A single screen
// check is never trusted; every read goes through a bounded poll loop.
package wait

import (
	"time"
)

// Sleeper sleeps through the run state. *runstate.RunState satisfies it.
type Sleeper interface {
	Check() error
	Sleep(d time.Duration) error
}

// Condition is polled until it reports true.
type Condition func() bool

// Budget is an explicit timeout expressed as poll count and interval.
type Budget struct {
	Interval time.Duration
	Polls    int
}

// Polls is shorthand for a Budget.
func Polls(n int, interval time.Duration) Budget {
	return Budget{Interval: interval, Polls: n}
}

// Timeout is the wall time the budget allows.
func (b Budget) Timeout() time.Duration {
	return time.Duration(b.Polls) * b.Interval
}

// Soft polls cond up to b.Polls times and reports whether it became true.
// The only error it returns comes from the run state (stop requested).
func Soft(s Sleeper, b Budget, cond Condition) (bool, error) {
	polls := b.Polls
	if polls < 1 {
		polls = 1
	}

	for i := 0; i < polls; i++ {
		if err := s.Check(); err != nil {
			return false, err
		}
		if cond() {
			return true, nil
		}
		if i == polls-1 {
			break
		}
		if err := s.Sleep(b.Interval); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Hard polls like Soft but returns onTimeout() when the condition never
// holds. onTimeout builds the typed failure for the caller's operation.
func Hard(s Sleeper, b Budget, cond Condition, onTimeout func() error) error {
	ok, err := Soft(s, b, cond)
	if err != nil {
		return err
	}
	if !ok {
		return onTimeout()
	}
	return nil
}

// Gone waits until cond stops holding.
func Gone(s Sleeper, b Budget, cond Condition) (bool, error) {
	return Soft(s, b, func() bool { return !cond() })
}
