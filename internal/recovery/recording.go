package recovery

import (
	"context"
	"sync"
)

// FakeProcess is a Process double. Kill marks it as not running.
type FakeProcess struct {
	mu    sync.Mutex
	Alive bool
	Kills int

	// Err is returned from Running when set.
	Err error
}

func (p *FakeProcess) Running(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return false, p.Err
	}
	return p.Alive, nil
}

func (p *FakeProcess) Kill(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Kills++
	p.Alive = false
	return nil
}

// RecordingLauncher counts launches for testing. OnLaunch runs after each
// successful launch so a test can flip the screen to the main menu.
type RecordingLauncher struct {
	mu       sync.Mutex
	Launches int
	Err      error
	OnLaunch func()
}

func (l *RecordingLauncher) Launch(context.Context) error {
	l.mu.Lock()
	l.Launches++
	err, hook := l.Err, l.OnLaunch
	l.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook()
	}
	return nil
}

// Count returns how many launches were attempted.
func (l *RecordingLauncher) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Launches
}
