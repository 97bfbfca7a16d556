// Package station holds the schedulable units of work. Each station visits
// one waypoint and composes the container and travel protocols from package
// game; variants differ only in what they compose.
package station

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/clock"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

// Station is one schedulable unit of work.
//
// Ready must be a pure function of station state and now. Complete runs on
// the driver goroutine and updates readiness state before returning, also
// when it fails.
type Station interface {
	Name() string
	Ready(now time.Time) bool
	Complete() (Statistics, error)

	// State and Restore move the persisted part of the station in and out.
	State() State
	Restore(State)
}

// State is what survives a restart.
type State struct {
	Phase         int
	Cursor        int // next bed index for rotating stations
	LastCompleted time.Time
	ReadyAt       time.Time
	Signalled     bool
}

// Deps are the collaborators shared by every station.
type Deps struct {
	Env     *game.Env
	Travel  *game.Traveler
	Player  *game.Player
	Layout  game.Layout
	Clock   clock.Clock
	Catalog *items.Catalog
	Log     zerolog.Logger
}

func (d Deps) bag() *game.Container {
	return game.NewBag(d.Env, d.Layout.Bag)
}

func (d Deps) container(spec game.ContainerSpec) *game.Container {
	return game.NewContainer(d.Env, spec)
}

// withOpen opens c, runs fn and always tries to close c again, so no stale
// inventory is left on screen when the station moves on.
func withOpen(c *game.Container, fn func() error) (err error) {
	if err := c.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn()
}

// Always is ready on every tick.
type Always struct{}

func (Always) Ready(time.Time) bool { return true }

// Interval is ready once Every has elapsed since Last. A zero Last is ready.
type Interval struct {
	Every time.Duration
	Last  time.Time
}

func (i Interval) Ready(now time.Time) bool {
	if i.Last.IsZero() {
		return true
	}
	return !now.Before(i.Last.Add(i.Every))
}

// Next is the earliest time Ready reports true.
func (i Interval) Next() time.Time {
	return i.Last.Add(i.Every)
}

// Signal is a ready flag raised by another station. It is only touched on
// the driver goroutine.
type Signal struct {
	set bool
}

func (s *Signal) Raise()       { s.set = true }
func (s *Signal) Clear()       { s.set = false }
func (s *Signal) Raised() bool { return s.set }

// BedName is the waypoint of the i-th (zero based) bed of a rotating station.
func BedName(prefix string, i int) string {
	return fmt.Sprintf("%s%02d", prefix, i+1)
}

// arrive travels to bed and binds the player to ring facing front.
func (d Deps) arrive(bed string, ring *navigation.Ring) error {
	if err := d.Travel.TravelTo(game.Waypoint{Name: bed}); err != nil {
		return err
	}
	d.Player.Orient(ring, navigation.Front)
	return nil
}

// rotation tracks a station that visits one of several beds per Complete.
// A lap is one pass over every bed; a new lap starts once Every has
// elapsed since the previous one finished.
type rotation struct {
	count  int
	cursor int
	lap    Interval
}

func (r *rotation) ready(now time.Time) bool {
	return r.cursor > 0 || r.lap.Ready(now)
}

// advance moves to the next bed and reports whether a lap just finished.
func (r *rotation) advance(now time.Time) bool {
	r.cursor = (r.cursor + 1) % r.count
	if r.cursor == 0 {
		r.lap.Last = now
		return true
	}
	return false
}

func (r *rotation) restore(s State) {
	r.cursor = 0
	if r.count > 0 && s.Cursor > 0 {
		r.cursor = s.Cursor % r.count
	}
	r.lap.Last = s.LastCompleted
}
