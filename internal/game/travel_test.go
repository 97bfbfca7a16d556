package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

func traveler(r *rig) *Traveler {
	return NewTraveler(r.env, DefaultLayout().BedMap)
}

func TestTravelTo_Success(t *testing.T) {
	r := newRig(t)
	r.see.Script("bed/map_open", false, true)
	r.see.Show("bed/result_selected", true)
	r.see.Show("bed/white_flash", true)
	r.see.Show("hud/stamina", true)

	require.NoError(t, traveler(r).TravelTo(Waypoint{Name: "crystal03"}))

	kinds := r.do.Kinds()
	assert.Equal(t, "press e", kinds[0])
	assert.Equal(t, 1, r.do.Count("type", "crystal03"))
	assert.Equal(t, "click 2260,1320", kinds[len(kinds)-1], "spawn is the last input")
}

func TestTravelTo_MapNeverOpens(t *testing.T) {
	r := newRig(t)

	err := traveler(r).TravelTo(Waypoint{Name: "crop01"})

	var notInitiated *TravelNotInitiatedError
	require.ErrorAs(t, err, &notInitiated)
	assert.Equal(t, "open bed map", notInitiated.Op())
	assert.Equal(t, []string{"press e"}, r.do.Kinds())
}

func TestTravelTo_DeathScreenSkipsAccess(t *testing.T) {
	r := newRig(t)
	r.see.Show("bed/death_screen", true)
	r.see.Show("bed/result_selected", true)
	r.see.Show("bed/white_flash", true)
	r.see.Show("hud/stamina", true)

	require.NoError(t, traveler(r).TravelTo(Waypoint{Name: "crop01"}))
	assert.Zero(t, r.do.Count("press", "e"))
}

func TestTravelTo_BedNeverSelected(t *testing.T) {
	r := newRig(t)
	r.see.Show("bed/map_open", true)

	err := traveler(r).TravelTo(Waypoint{Name: "missing"})

	var failed *TravelFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, constants.BedSelectRetries, r.do.Count("type", "missing"))
	assert.NotContains(t, r.do.Kinds(), "click 2260,1320")
}

func TestTravelTo_NoTransition(t *testing.T) {
	r := newRig(t)
	r.see.Show("bed/map_open", true)
	r.see.Show("bed/result_selected", true)
	r.see.Show("hud/stamina", true)

	err := traveler(r).TravelTo(Waypoint{Name: "grinder"})

	var notInitiated *TravelNotInitiatedError
	require.ErrorAs(t, err, &notInitiated)
	assert.Equal(t, "travel", notInitiated.Op())
	assert.Equal(t, 0, r.see.CallCount("hud/stamina"), "spawn cue is not checked without a transition")
}

func TestTravelTo_TransitionButNoSpawn(t *testing.T) {
	r := newRig(t)
	r.see.Show("bed/map_open", true)
	r.see.Show("bed/result_selected", true)
	r.see.Show("bed/white_flash", true)

	err := traveler(r).TravelTo(Waypoint{Name: "grinder"})

	var didNotSpawn *PlayerDidNotSpawnError
	require.ErrorAs(t, err, &didNotSpawn)
	assert.Equal(t, "grinder", didNotSpawn.Target())
	assert.Equal(t, constants.SpawnPolls, r.see.CallCount("hud/stamina"))
}

func TestTravelTo_CooldownNeverClears(t *testing.T) {
	r := newRig(t)
	r.see.Show("bed/map_open", true)
	r.see.Show("bed/result_selected", true)
	r.see.Show("bed/cooldown", true)

	err := traveler(r).TravelTo(Waypoint{Name: "crystal01"})

	var failed *TravelFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "bed cooldown", failed.Op())
	assert.NotContains(t, r.do.Kinds(), "click 2260,1320", "spawn is never clicked")
}

func TestPlayer_FaceTurnsShortestWay(t *testing.T) {
	r := newRig(t)
	p := NewPlayer(r.env, 2)
	p.Orient(navigation.Uniform(navigation.Front, navigation.Right, navigation.Back, navigation.Left), navigation.Front)

	require.NoError(t, p.Face(navigation.Left))
	assert.Equal(t, navigation.Left, p.Facing())
	assert.Equal(t, []string{"moveby -180,0"}, r.do.Kinds())

	require.NoError(t, p.Face(navigation.Right))
	assert.Equal(t, navigation.Right, p.Facing())
	assert.Equal(t, 3, r.do.Len())

	require.NoError(t, p.Face(navigation.Right))
	assert.Equal(t, 3, r.do.Len())
}

func TestPlayer_AttackStopsOnStop(t *testing.T) {
	r := newRig(t)
	r.run.StopAt = constants.AttackInterval * 2
	p := NewPlayer(r.env, 1)

	err := p.Attack(10)
	require.Error(t, err)
	assert.Equal(t, 2, r.do.Count("press", "f"))
}
