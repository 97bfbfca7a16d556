// Package input drives the game through synthetic keyboard and mouse events.
package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/runstate"
)

// Robot implements engine.Actuator with robotgo. Points arrive in virtual
// screen coordinates and are scaled onto the selected display.
type Robot struct {
	run *runstate.RunState
	log zerolog.Logger

	mu            sync.Mutex
	offsetX       int
	offsetY       int
	scaleX        float64
	scaleY        float64
	keyDelay      time.Duration
	virtualWidth  int
	virtualHeight int
}

// NewRobot creates an actuator bound to run.
func NewRobot(run *runstate.RunState, virtualWidth, virtualHeight int, log zerolog.Logger) *Robot {
	return &Robot{
		run:           run,
		log:           log.With().Str("component", "input").Logger(),
		scaleX:        1,
		scaleY:        1,
		keyDelay:      30 * time.Millisecond,
		virtualWidth:  virtualWidth,
		virtualHeight: virtualHeight,
	}
}

// SetDisplayID maps virtual coordinates onto display id.
func (r *Robot) SetDisplayID(id int) {
	x, y, w, h := robotgo.GetDisplayBounds(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsetX, r.offsetY = x, y
	if r.virtualWidth > 0 && r.virtualHeight > 0 && w > 0 && h > 0 {
		r.scaleX = float64(w) / float64(r.virtualWidth)
		r.scaleY = float64(h) / float64(r.virtualHeight)
	}
	r.log.Info().Int("display", id).Int("x", x).Int("y", y).Msg("display offset set")
}

func (r *Robot) toScreen(p engine.Point) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsetX + int(float64(p.X)*r.scaleX), r.offsetY + int(float64(p.Y)*r.scaleY)
}

func (r *Robot) Press(key string) error {
	if err := r.run.Check(); err != nil {
		return err
	}
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

func (r *Robot) KeyDown(key string) error {
	if err := r.run.Check(); err != nil {
		return err
	}
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		return fmt.Errorf("key down %s: %w", key, err)
	}
	return nil
}

// KeyUp always releases the key, even after a stop, so nothing stays held.
func (r *Robot) KeyUp(key string) error {
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		return fmt.Errorf("key up %s: %w", key, err)
	}
	return r.run.Check()
}

func (r *Robot) MoveTo(p engine.Point) error {
	if err := r.run.Check(); err != nil {
		return err
	}
	x, y := r.toScreen(p)
	robotgo.Move(x, y)
	return nil
}

func (r *Robot) Click(p engine.Point, button engine.Button) error {
	if err := r.MoveTo(p); err != nil {
		return err
	}
	if err := r.run.Sleep(r.keyDelay); err != nil {
		return err
	}
	robotgo.Click(string(button))
	return nil
}

func (r *Robot) TypeText(text string) error {
	if err := r.run.Check(); err != nil {
		return err
	}
	robotgo.TypeStr(text)
	return nil
}

// MoveBy moves the mouse relative to its position; in game this turns the camera.
func (r *Robot) MoveBy(dx, dy int) error {
	if err := r.run.Check(); err != nil {
		return err
	}
	r.mu.Lock()
	sx, sy := int(float64(dx)*r.scaleX), int(float64(dy)*r.scaleY)
	r.mu.Unlock()
	robotgo.MoveRelative(sx, sy)
	return nil
}
