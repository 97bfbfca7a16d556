package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

func TestInterval_Boundary(t *testing.T) {
	i := Interval{Every: time.Hour, Last: t0}

	assert.False(t, i.Ready(t0))
	assert.False(t, i.Ready(t0.Add(time.Hour-time.Nanosecond)))
	assert.True(t, i.Ready(t0.Add(time.Hour)))
	assert.True(t, i.Ready(t0.Add(3*time.Hour)))
	assert.True(t, Interval{Every: time.Hour}.Ready(t0), "never completed is ready")
	assert.Equal(t, t0.Add(time.Hour), i.Next())
}

func TestReady_IsIdempotent(t *testing.T) {
	w := newWorld(t)
	stations := []Station{
		NewHealing(w.deps, HealingConfig{Bed: "heal", Interval: time.Hour}),
		NewDrop(w.deps, DropConfig{Bed: "dump", Interval: time.Hour}),
		NewCrystal(w.deps, CrystalConfig{Prefix: "crystal", Count: 3, Interval: time.Hour}, &Signal{}),
		NewCrop(w.deps, CropConfig{Prefix: "crop", Count: 2, Interval: time.Hour}),
		NewGrinding(w.deps, GrindingConfig{Bed: "grinder", Target: items.HeavyTurret.Name}, &Signal{}),
	}

	for _, s := range stations {
		s.Restore(State{LastCompleted: t0})
		before := s.State()
		now := t0.Add(30 * time.Minute)
		first := s.Ready(now)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, s.Ready(now), s.Name())
		}
		assert.Equal(t, before, s.State(), s.Name())
	}
	assert.Zero(t, w.do.Len(), "readiness never touches input")
}

func TestHealing_IntervalAfterComplete(t *testing.T) {
	w := newWorld(t)
	w.meat = 3
	h := NewHealing(w.deps, HealingConfig{Bed: "heal", Interval: 20 * time.Minute})

	require.True(t, h.Ready(t0))
	stats, err := h.Complete()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Counters["meat_eaten"])
	assert.Equal(t, []string{"heal", "cooked", "cooked", "cooked"}, w.typed())

	assert.False(t, h.Ready(t0.Add(20*time.Minute-time.Second)))
	assert.True(t, h.Ready(t0.Add(20*time.Minute)))
	assert.Equal(t, State{LastCompleted: t0}, h.State())
}

func TestHealing_FailureStillStampsInterval(t *testing.T) {
	w := newWorld(t)
	w.refuse = func(int) bool { return true }
	h := NewHealing(w.deps, HealingConfig{Bed: "heal", Interval: time.Hour})

	_, err := h.Complete()
	require.Error(t, err)
	assert.False(t, h.Ready(t0.Add(time.Minute)))
}

func TestDrop_CountsDroppedStacks(t *testing.T) {
	w := newWorld(t)
	w.see.Counts[items.Stone.Icon] = 4
	d := NewDrop(w.deps, DropConfig{Bed: "dump", Interval: time.Hour, Drop: []items.Item{items.Stone, items.Saddle}})

	stats, err := d.Complete()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Counters["dropped"])
	assert.Contains(t, w.do.Kinds(), "click 840,260")
	assert.False(t, w.bagOpen, "bag closed before leaving")
}

func TestCrystal_RotatesBedsAndSignalsGrinding(t *testing.T) {
	w := newWorld(t)
	w.pickupOnLookDown = true
	w.ground = 3
	w.see.Texts = []string{"95/100"}
	grind := &Signal{}
	c := NewCrystal(w.deps, CrystalConfig{
		Prefix:      "crystal",
		Count:       2,
		Interval:    time.Hour,
		Keep:        []items.Item{items.Saddle},
		VaultFullAt: 0.9,
		VaultFacing: navigation.Right,
	}, grind)

	require.True(t, c.Ready(t0))
	stats, err := c.Complete()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Produced[items.Crystal.Name])
	assert.False(t, stats.Lap)
	assert.True(t, grind.Raised())
	assert.Equal(t, 1, c.State().Cursor)
	assert.Contains(t, w.typed(), "crystal01")
	assert.False(t, w.remoteOpen)
	assert.False(t, w.bagOpen)

	w.clock.Advance(time.Minute)
	assert.True(t, c.Ready(w.clock.Now()), "mid-lap is always ready")
	stats, err = c.Complete()
	require.NoError(t, err)
	assert.True(t, stats.Lap)
	assert.Contains(t, w.typed(), "crystal02")
	assert.Equal(t, 0, c.State().Cursor)

	assert.False(t, c.Ready(w.clock.Now().Add(59*time.Minute)))
	assert.True(t, c.Ready(w.clock.Now().Add(time.Hour)))
}

func TestCrystal_FailureMovesToNextBed(t *testing.T) {
	w := newWorld(t)
	w.see.OnLocate = func(engine.TemplateID) bool { return false }
	c := NewCrystal(w.deps, CrystalConfig{Prefix: "crystal", Count: 3, Interval: time.Hour}, nil)

	_, err := c.Complete()
	require.Error(t, err)
	assert.Equal(t, 1, c.State().Cursor)
}

func TestCrop_SkipsUnreachablePlot(t *testing.T) {
	w := newWorld(t)
	w.see.Counts[items.Crop.Icon] = 2
	// attempt 1 is the seed storage
	w.refuse = func(n int) bool { return n == 3 }
	c := NewCrop(w.deps, CropConfig{Prefix: "crop", Count: 1, Interval: time.Hour, Stacks: 2, RefillBelow: constants.SeedRefillThreshold})

	stats, err := c.Complete()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counters["plots_skipped"])
	assert.Equal(t, 7, stats.Counters["plots_tended"])
	assert.Equal(t, 14, stats.Produced[items.Crop.Name])
	assert.True(t, stats.Refilled)
	assert.True(t, stats.Lap)
	assert.False(t, w.remoteOpen)
}

func TestCrop_MissingStorageDegradesRefill(t *testing.T) {
	w := newWorld(t)
	w.refuse = func(n int) bool { return n == 1 }
	c := NewCrop(w.deps, CropConfig{Prefix: "crop", Count: 2, Stacks: 1, RefillBelow: 10})

	stats, err := c.Complete()
	require.NoError(t, err)
	assert.False(t, stats.Refilled)
	assert.Equal(t, 1, stats.Counters["refill_skipped"])
	assert.Equal(t, 4, stats.Counters["plots_tended"])
}

func TestCrop_KeepsSeedsWhenStocked(t *testing.T) {
	w := newWorld(t)
	w.visible[items.Seed.Icon] = true
	w.see.Texts = []string{"80"}
	c := NewCrop(w.deps, CropConfig{Prefix: "crop", Count: 1, Stacks: 1, RefillBelow: 20})

	stats, err := c.Complete()
	require.NoError(t, err)
	assert.False(t, stats.Refilled)
	assert.Equal(t, 80, stats.Counters["seeds"])
}
