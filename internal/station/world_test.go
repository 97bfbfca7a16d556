package station

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/clock"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/engine/enginetest"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// world reacts to input the way the game UI would, enough for the stations
// to run end to end.
type world struct {
	see   *enginetest.Perception
	do    *enginetest.Actuator
	run   *enginetest.Run
	clock *clock.Fake
	deps  Deps

	remoteOpen bool
	bagOpen    bool
	opens      int // remote open attempts

	// refuse reports whether the n-th remote open attempt is ignored.
	refuse func(n int) bool

	// pickupOnLookDown makes a use press right after looking down pick
	// crystals up instead of opening anything.
	pickupOnLookDown bool
	ground           int
	crystals         int
	meat             int
	lookingDown      bool

	visible map[engine.TemplateID]bool
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		see:     enginetest.NewPerception(),
		run:     &enginetest.Run{},
		clock:   clock.NewFake(t0),
		visible: make(map[engine.TemplateID]bool),
		refuse:  func(int) bool { return false },
	}
	w.do = &enginetest.Actuator{Run: w.run, OnAction: w.act}
	w.see.OnLocate = w.locate

	env := &game.Env{
		See:  w.see,
		Do:   w.do,
		Run:  w.run,
		Keys: game.DefaultKeys(),
		Log:  zerolog.Nop(),
	}
	layout := game.DefaultLayout()
	w.deps = Deps{
		Env:     env,
		Travel:  game.NewTraveler(env, layout.BedMap),
		Player:  game.NewPlayer(env, 1),
		Layout:  layout,
		Clock:   w.clock,
		Catalog: items.Default(),
		Log:     zerolog.Nop(),
	}
	return w
}

func (w *world) locate(id engine.TemplateID) bool {
	switch id {
	case "inventory/remote_open":
		return w.remoteOpen
	case "inventory/bag_open":
		return w.bagOpen
	case "bed/map_open", "bed/result_selected", "bed/white_flash", "hud/stamina", "inventory/items_added":
		return true
	case items.Crystal.Icon:
		return w.crystals > 0
	case items.Meat.Icon:
		return w.meat > 0
	}
	return w.visible[id]
}

func (w *world) act(a enginetest.Action) {
	switch {
	case a.Kind == "moveby":
		w.lookingDown = a.DY > 0
		return
	case a.Kind == "press" && a.Key == "i":
		w.bagOpen = true
	case a.Kind == "press" && a.Key == "esc":
		w.bagOpen = false
		w.remoteOpen = false
	case a.Kind == "press" && a.Key == "e":
		switch {
		case w.bagOpen && w.crystals > 0:
			w.crystals--
		case w.bagOpen && w.meat > 0:
			w.meat--
		case w.pickupOnLookDown && w.lookingDown:
			w.crystals += w.ground
			w.ground = 0
		default:
			w.opens++
			if !w.refuse(w.opens) {
				w.remoteOpen = true
			}
		}
	}
	w.lookingDown = false
}

// typed lists every text typed, in order.
func (w *world) typed() []string {
	var out []string
	for _, k := range w.do.Kinds() {
		if s, ok := strings.CutPrefix(k, "type "); ok {
			out = append(out, s)
		}
	}
	return out
}
