package station

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

// HealingConfig configures the healing stop.
type HealingConfig struct {
	Bed          string
	Interval     time.Duration
	FridgeFacing navigation.Direction
}

// Healing takes food from a fridge, eats it while regenerating and puts
// the leftovers back.
type Healing struct {
	deps  Deps
	cfg   HealingConfig
	log   zerolog.Logger
	ring  *navigation.Ring
	every Interval
}

func NewHealing(deps Deps, cfg HealingConfig) *Healing {
	return &Healing{
		deps:  deps,
		cfg:   cfg,
		log:   deps.Log.With().Str("station", "healing").Logger(),
		ring:  navigation.Uniform(navigation.Front, navigation.Right, navigation.Back, navigation.Left),
		every: Interval{Every: cfg.Interval},
	}
}

func (h *Healing) Name() string { return "healing" }

func (h *Healing) Ready(now time.Time) bool { return h.every.Ready(now) }

func (h *Healing) State() State { return State{LastCompleted: h.every.Last} }

func (h *Healing) Restore(s State) { h.every.Last = s.LastCompleted }

// Complete stamps the interval even on failure, so a broken fridge is not
// retried on every tick.
func (h *Healing) Complete() (stats Statistics, err error) {
	stats = newStats(h.Name(), h.deps.Clock.Now())
	defer func() {
		now := h.deps.Clock.Now()
		h.every.Last = now
		stats.finish(now)
	}()

	if err := h.deps.arrive(h.cfg.Bed, h.ring); err != nil {
		return stats, err
	}
	if err := h.deps.Player.Face(h.cfg.FridgeFacing); err != nil {
		return stats, err
	}

	fridge := h.deps.container(h.deps.Layout.Fridge)
	err = withOpen(fridge, func() error {
		if err := fridge.TakeAll(items.Meat.SearchAlias); err != nil {
			return err
		}
		return fridge.AwaitItemsAdded()
	})
	var notAdded *game.ItemsNotAddedError
	if errors.As(err, &notAdded) {
		h.log.Warn().Msg("fridge has no food")
		stats.Counters["no_food"]++
		return stats, nil
	}
	if err != nil {
		return stats, err
	}

	eaten, err := h.eat()
	stats.Counters["meat_eaten"] = eaten
	if err != nil {
		return stats, err
	}
	h.log.Info().Int("eaten", eaten).Msg("healed")

	return stats, withOpen(fridge, func() error {
		return fridge.TransferAll(items.Meat.SearchAlias)
	})
}

func (h *Healing) eat() (int, error) {
	bag := h.deps.bag()
	env := h.deps.Env
	eaten := 0
	err := withOpen(bag, func() error {
		if err := bag.Search(items.Meat.SearchAlias); err != nil {
			return err
		}
		for eaten < constants.HealMeatPerVisit {
			pt, ok := bag.Find(items.Meat)
			if !ok {
				return nil
			}
			if err := env.Do.MoveTo(pt); err != nil {
				return err
			}
			if err := env.Do.Press(env.Keys.Use); err != nil {
				return err
			}
			eaten++
			if err := env.Sleep(constants.HealEatDuration / constants.HealMeatPerVisit); err != nil {
				return err
			}
		}
		return nil
	})
	return eaten, err
}
