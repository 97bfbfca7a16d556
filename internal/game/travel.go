package game

import (
	"fmt"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/wait"
)

// Waypoint is a registered bed. Travel to it must end with the player
// observably loaded in.
type Waypoint struct {
	Name string
}

// BedMapSpec describes the fast-travel screen.
type BedMapSpec struct {
	MapIndicator engine.TemplateID // the bed map is open
	SearchField  engine.Point
	Defocus      engine.Point
	ResultRegion engine.Region
	Result       engine.TemplateID // a highlighted bed in the result list
	FirstResult  engine.Point
	SpawnButton  engine.Point
	Cooldown     engine.TemplateID // "bed on cooldown" label
	CooldownArea engine.Region

	Transition  engine.TemplateID // full screen white flash
	Spawned     engine.TemplateID // stamina indicator in the HUD
	SpawnedArea engine.Region

	DeathScreen engine.TemplateID // respawn screen shown after death
}

// Traveler relocates the player between waypoints.
type Traveler struct {
	env  *Env
	spec BedMapSpec
}

func NewTraveler(env *Env, spec BedMapSpec) *Traveler {
	return &Traveler{env: env, spec: spec}
}

// Spawned is a one-shot check for the loaded-in indicator.
func (t *Traveler) Spawned() bool {
	return t.env.Visible(t.spec.Spawned, t.spec.SpawnedArea)
}

func (t *Traveler) mapOpen() bool {
	return t.env.Visible(t.spec.MapIndicator, engine.Region{}) || t.env.Visible(t.spec.DeathScreen, engine.Region{})
}

// AwaitSpawned hard-waits for the loaded-in indicator.
func (t *Traveler) AwaitSpawned(target string, polls int) error {
	b := wait.Polls(polls, constants.SlowPollInterval)
	return t.env.AwaitVisible(t.spec.Spawned, t.spec.SpawnedArea, b, func() error {
		return &PlayerDidNotSpawnError{newTimeout("spawn", target, b.Timeout())}
	})
}

// TravelTo runs the bed map flow, then waits for the transition cue and the
// spawn cue with separate budgets. A missing transition means the command
// never registered; a missing spawn after a transition means the
// destination or the server is gone.
func (t *Traveler) TravelTo(wp Waypoint) error {
	log := t.env.Log.With().Str("bed", wp.Name).Logger()

	if err := t.openMap(wp); err != nil {
		return err
	}
	if err := t.selectBed(wp); err != nil {
		return err
	}
	if err := t.awaitCooldown(wp); err != nil {
		return err
	}
	if err := t.env.Do.Click(t.spec.SpawnButton, engine.ButtonLeft); err != nil {
		return err
	}

	transition := wait.Polls(constants.TransitionPolls, constants.DefaultPollInterval)
	if err := t.env.AwaitVisible(t.spec.Transition, engine.Region{}, transition, func() error {
		return &TravelNotInitiatedError{newTimeout("travel", wp.Name, transition.Timeout())}
	}); err != nil {
		return err
	}
	log.Debug().Msg("travel transition observed")

	if err := t.AwaitSpawned(wp.Name, constants.SpawnPolls); err != nil {
		return err
	}
	log.Debug().Msg("spawned")
	return t.env.Sleep(constants.WaitAfterSpawnCue)
}

// openMap opens the bed map from the bed the player stands on. On the death
// screen the map is already shown.
func (t *Traveler) openMap(wp Waypoint) error {
	if t.mapOpen() {
		return nil
	}
	if err := t.env.Do.Press(t.env.Keys.Access); err != nil {
		return err
	}

	b := wait.Polls(constants.BedMapPolls, constants.DefaultPollInterval)
	return t.env.Hard(b, t.mapOpen, func() error {
		return &TravelNotInitiatedError{newTimeout("open bed map", wp.Name, b.Timeout())}
	})
}

func (t *Traveler) selectBed(wp Waypoint) error {
	for attempt := 0; attempt < constants.BedSelectRetries; attempt++ {
		if err := t.env.Do.Click(t.spec.SearchField, engine.ButtonLeft); err != nil {
			return err
		}
		if err := t.env.ClearField(); err != nil {
			return err
		}
		if err := t.env.Do.TypeText(wp.Name); err != nil {
			return err
		}
		if err := t.env.Do.Click(t.spec.Defocus, engine.ButtonLeft); err != nil {
			return err
		}
		if err := t.env.Sleep(constants.BedSearchSettle); err != nil {
			return err
		}
		if err := t.env.Do.Click(t.spec.FirstResult, engine.ButtonLeft); err != nil {
			return err
		}

		selected, err := t.env.Soft(wait.Polls(5, constants.DefaultPollInterval), func() bool {
			return t.env.Visible(t.spec.Result, t.spec.ResultRegion)
		})
		if err != nil {
			return err
		}
		if selected {
			return nil
		}
		t.env.Log.Debug().Str("bed", wp.Name).Int("attempt", attempt+1).Msg("bed not selected")
	}
	return &TravelFailedError{newTimeout(fmt.Sprintf("select bed (%d attempts)", constants.BedSelectRetries), wp.Name,
		wait.Polls(5*constants.BedSelectRetries, constants.DefaultPollInterval).Timeout())}
}

func (t *Traveler) awaitCooldown(wp Waypoint) error {
	if t.spec.Cooldown == "" {
		return nil
	}
	b := wait.Polls(constants.BedCooldownPolls, constants.SlowPollInterval)
	return t.env.Hard(b, func() bool { return !t.env.Visible(t.spec.Cooldown, t.spec.CooldownArea) }, func() error {
		return &TravelFailedError{newTimeout("bed cooldown", wp.Name, b.Timeout())}
	})
}
