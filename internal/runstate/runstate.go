// Package runstate holds the cooperative run/pause/stop flag shared by the
// driver loop and every input or wait call site.
package runstate

import (
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned from Check and Sleep once a stop was requested.
var ErrStopped = errors.New("run stopped")

// State is the operator-controlled run mode.
type State int

const (
	Running State = iota
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// RunState is a single process-wide value. Stopping is terminal; create a
// new RunState to run again.
type RunState struct {
	mu      sync.Mutex
	state   State
	changed chan struct{} // closed and replaced on every transition
	stopped chan struct{}
}

func New() *RunState {
	return &RunState{
		state:   Running,
		changed: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (r *RunState) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RunState) Pause()  { r.set(Paused) }
func (r *RunState) Resume() { r.set(Running) }
func (r *RunState) Stop()   { r.set(Stopping) }

// Done is closed once Stop has been called.
func (r *RunState) Done() <-chan struct{} {
	return r.stopped
}

func (r *RunState) set(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Stopping || r.state == s {
		return
	}
	r.state = s
	close(r.changed)
	r.changed = make(chan struct{})
	if s == Stopping {
		close(r.stopped)
	}
}

func (r *RunState) snapshot() (State, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.changed
}

// Check returns nil when running, blocks while paused and returns
// ErrStopped once stopping.
func (r *RunState) Check() error {
	for {
		s, changed := r.snapshot()
		switch s {
		case Running:
			return nil
		case Stopping:
			return ErrStopped
		}
		<-changed
	}
}

// Sleep waits for d. A stop interrupts the sleep immediately; a pause lets
// the timer run out and then blocks in Check until resumed.
func (r *RunState) Sleep(d time.Duration) error {
	if err := r.Check(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		_, changed := r.snapshot()
		select {
		case <-timer.C:
			return r.Check()
		case <-changed:
			if r.State() == Stopping {
				return ErrStopped
			}
		}
	}
}
