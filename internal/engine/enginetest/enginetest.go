// Package enginetest provides scripted perception, a recording actuator and
// a virtual-time run state for tests of the protocols built on top of them.
package enginetest

import (
	"fmt"
	"sync"
	"time"

	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/runstate"
)

// Perception answers template queries from scripts.
//
// Sequences are consumed one answer per Locate call; once exhausted the last
// answer sticks. Templates without a script fall back to Visible.
type Perception struct {
	mu sync.Mutex

	Sequences map[engine.TemplateID][]bool
	Visible   map[engine.TemplateID]bool
	Counts    map[engine.TemplateID]int
	Texts     []string
	TextErr   error

	// OnLocate, when set, overrides everything else.
	OnLocate func(id engine.TemplateID) bool

	Calls map[engine.TemplateID]int
}

func NewPerception() *Perception {
	return &Perception{
		Sequences: make(map[engine.TemplateID][]bool),
		Visible:   make(map[engine.TemplateID]bool),
		Counts:    make(map[engine.TemplateID]int),
		Calls:     make(map[engine.TemplateID]int),
	}
}

// Script queues answers for id.
func (p *Perception) Script(id engine.TemplateID, answers ...bool) *Perception {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sequences[id] = append(p.Sequences[id], answers...)
	return p
}

// Show sets a constant answer for id.
func (p *Perception) Show(id engine.TemplateID, visible bool) *Perception {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visible[id] = visible
	delete(p.Sequences, id)
	return p
}

func (p *Perception) answer(id engine.TemplateID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls[id]++

	if p.OnLocate != nil {
		return p.OnLocate(id)
	}
	if seq, ok := p.Sequences[id]; ok && len(seq) > 0 {
		v := seq[0]
		if len(seq) > 1 {
			p.Sequences[id] = seq[1:]
		}
		return v
	}
	return p.Visible[id]
}

func (p *Perception) Locate(id engine.TemplateID, _ engine.Region, _ float64) (engine.Rect, bool) {
	if !p.answer(id) {
		return engine.Rect{}, false
	}
	return engine.Rect{Max: engine.Point{X: 10, Y: 10}}, true
}

func (p *Perception) LocateAll(id engine.TemplateID, _ engine.Region, _ float64) []engine.Rect {
	p.mu.Lock()
	n := p.Counts[id]
	p.Calls[id]++
	p.mu.Unlock()

	out := make([]engine.Rect, n)
	for i := range out {
		out[i] = engine.Rect{Min: engine.Point{X: i * 100}, Max: engine.Point{X: i*100 + 10, Y: 10}}
	}
	return out
}

func (p *Perception) ReadText(_ engine.Region, _ engine.Charset, _ engine.TextMode) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TextErr != nil {
		return "", p.TextErr
	}
	if len(p.Texts) == 0 {
		return "", fmt.Errorf("no scripted text")
	}
	t := p.Texts[0]
	if len(p.Texts) > 1 {
		p.Texts = p.Texts[1:]
	}
	return t, nil
}

// CallCount returns how many times id was queried.
func (p *Perception) CallCount(id engine.TemplateID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[id]
}

// Action is one recorded input.
type Action struct {
	Kind   string // press, down, up, move, moveby, click, type
	Key    string
	Point  engine.Point
	DX, DY int
}

func (a Action) String() string {
	switch a.Kind {
	case "press", "down", "up":
		return a.Kind + " " + a.Key
	case "type":
		return "type " + a.Key
	case "moveby":
		return fmt.Sprintf("moveby %d,%d", a.DX, a.DY)
	default:
		return fmt.Sprintf("%s %d,%d", a.Kind, a.Point.X, a.Point.Y)
	}
}

// Actuator records every input. When Run is set each call checks it first,
// like the real device.
type Actuator struct {
	mu      sync.Mutex
	Run     interface{ Check() error }
	Actions []Action

	// OnAction runs after an action is recorded.
	OnAction func(a Action)
}

func (a *Actuator) record(act Action) error {
	if a.Run != nil {
		if err := a.Run.Check(); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.Actions = append(a.Actions, act)
	hook := a.OnAction
	a.mu.Unlock()
	if hook != nil {
		hook(act)
	}
	return nil
}

func (a *Actuator) Press(key string) error   { return a.record(Action{Kind: "press", Key: key}) }
func (a *Actuator) KeyDown(key string) error { return a.record(Action{Kind: "down", Key: key}) }
func (a *Actuator) KeyUp(key string) error   { return a.record(Action{Kind: "up", Key: key}) }
func (a *Actuator) MoveTo(p engine.Point) error {
	return a.record(Action{Kind: "move", Point: p})
}
func (a *Actuator) MoveBy(dx, dy int) error {
	return a.record(Action{Kind: "moveby", DX: dx, DY: dy})
}
func (a *Actuator) Click(p engine.Point, _ engine.Button) error {
	return a.record(Action{Kind: "click", Point: p})
}
func (a *Actuator) TypeText(text string) error { return a.record(Action{Kind: "type", Key: text}) }

// Len returns the number of recorded actions.
func (a *Actuator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Actions)
}

// Kinds lists recorded actions as strings.
func (a *Actuator) Kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.Actions))
	for i, act := range a.Actions {
		out[i] = act.String()
	}
	return out
}

// Count counts recorded actions of one kind and key ("" matches any key).
func (a *Actuator) Count(kind, key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, act := range a.Actions {
		if act.Kind == kind && (key == "" || act.Key == key) {
			n++
		}
	}
	return n
}

// Run is a virtual-time run state: Sleep advances Elapsed instantly.
type Run struct {
	mu      sync.Mutex
	Elapsed time.Duration
	Sleeps  int
	stopped bool

	// StopAt stops the run once Elapsed reaches it (zero disables).
	StopAt time.Duration
}

func (r *Run) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func (r *Run) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return runstate.ErrStopped
	}
	return nil
}

func (r *Run) Sleep(d time.Duration) error {
	if err := r.Check(); err != nil {
		return err
	}
	r.mu.Lock()
	r.Elapsed += d
	r.Sleeps++
	if r.StopAt > 0 && r.Elapsed >= r.StopAt {
		r.stopped = true
	}
	r.mu.Unlock()
	return r.Check()
}

// Now returns Elapsed.
func (r *Run) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Elapsed
}
