// Package game implements the interaction protocols shared by every station:
// container access, bed travel and basic player movement.
package game

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/wait"
)

// Keys are the in-game key bindings.
type Keys struct {
	Access    string `yaml:"access"`
	Inventory string `yaml:"inventory"`
	Close     string `yaml:"close"`
	Use       string `yaml:"use"`
	Crouch    string `yaml:"crouch"`
	Prone     string `yaml:"prone"`
	Attack    string `yaml:"attack"`
}

// DefaultKeys returns the stock bindings.
func DefaultKeys() Keys {
	return Keys{
		Access:    "e",
		Inventory: "i",
		Close:     "esc",
		Use:       "e",
		Crouch:    "c",
		Prone:     "x",
		Attack:    "f",
	}
}

// Env bundles the ports a protocol needs. All game-affecting calls happen on
// the single driver goroutine that owns an Env.
type Env struct {
	See  engine.Perception
	Do   engine.Actuator
	Run  wait.Sleeper
	Keys Keys
	Log  zerolog.Logger

	// Confidence used for template queries unless a spec overrides it.
	Confidence float64
}

func (e *Env) confidence(c float64) float64 {
	if c > 0 {
		return c
	}
	if e.Confidence > 0 {
		return e.Confidence
	}
	return constants.DefaultConfidence
}

// Visible is a one-shot check. Callers that need certainty poll it.
func (e *Env) Visible(id engine.TemplateID, region engine.Region) bool {
	if id == "" {
		return false
	}
	_, ok := e.See.Locate(id, region, e.confidence(0))
	return ok
}

// Sleep waits through the run state.
func (e *Env) Sleep(d time.Duration) error {
	return e.Run.Sleep(d)
}

// Soft is wait.Soft bound to this Env.
func (e *Env) Soft(b wait.Budget, cond wait.Condition) (bool, error) {
	return wait.Soft(e.Run, b, cond)
}

// Hard is wait.Hard bound to this Env.
func (e *Env) Hard(b wait.Budget, cond wait.Condition, onTimeout func() error) error {
	return wait.Hard(e.Run, b, cond, onTimeout)
}

// AwaitVisible hard-waits for a template.
func (e *Env) AwaitVisible(id engine.TemplateID, region engine.Region, b wait.Budget, onTimeout func() error) error {
	return e.Hard(b, func() bool { return e.Visible(id, region) }, onTimeout)
}

// ClearField selects and deletes the text of the focused input.
func (e *Env) ClearField() error {
	if err := e.Do.KeyDown("ctrl"); err != nil {
		return err
	}
	pressErr := e.Do.Press("a")
	if err := e.Do.KeyUp("ctrl"); err != nil {
		return err
	}
	if pressErr != nil {
		return pressErr
	}
	return e.Do.Press("backspace")
}
