package recovery

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Process answers whether the game is running and can kill it.
type Process interface {
	Running(ctx context.Context) (bool, error)
	Kill(ctx context.Context) error
}

// Launcher starts the game.
type Launcher interface {
	Launch(ctx context.Context) error
}

// SystemProcess finds the game among the host processes by executable name.
type SystemProcess struct {
	Name string
}

func (s SystemProcess) find(ctx context.Context) ([]*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var out []*process.Process
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited while listing or not ours to inspect.
			continue
		}
		if sameExecutable(name, s.Name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s SystemProcess) Running(ctx context.Context) (bool, error) {
	found, err := s.find(ctx)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

func (s SystemProcess) Kill(ctx context.Context) error {
	found, err := s.find(ctx)
	if err != nil {
		return err
	}
	for _, p := range found {
		if err := p.KillWithContext(ctx); err != nil {
			return fmt.Errorf("kill %s (pid %d): %w", s.Name, p.Pid, err)
		}
	}
	return nil
}

// sameExecutable compares names case-insensitively, ignoring a .exe suffix.
func sameExecutable(a, b string) bool {
	norm := func(s string) string {
		if i := strings.LastIndexAny(s, `/\`); i >= 0 {
			s = s[i+1:]
		}
		return strings.TrimSuffix(strings.ToLower(s), ".exe")
	}
	return b != "" && norm(a) == norm(b)
}

// ExecLauncher starts the game detached. The game outlives the launch
// context; only the start itself is bounded by it.
type ExecLauncher struct {
	Command string
	Args    []string
	Dir     string
}

func (l *ExecLauncher) Launch(ctx context.Context) error {
	if l.Command == "" {
		return fmt.Errorf("no launch command configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := exec.Command(l.Command, l.Args...)
	c.Dir = l.Dir
	if err := c.Start(); err != nil {
		return fmt.Errorf("exec %s: %w", l.Command, err)
	}
	go func() { _ = c.Wait() }()
	return nil
}
