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

// CropConfig configures the crop plot towers.
type CropConfig struct {
	Prefix   string
	Count    int
	Interval time.Duration

	// Stacks is how many plots are stacked per tower.
	Stacks int
	// Towers lists where plot towers stand around the bed, in ring order.
	Towers []navigation.Direction
	// RefillBelow triggers a seed refill from the storage under the bed.
	RefillBelow int
}

// Crop visits one crop bed per Complete: restock seeds, then harvest and
// reseed every plot of every tower around the bed.
type Crop struct {
	deps Deps
	cfg  CropConfig
	log  zerolog.Logger
	ring *navigation.Ring
	rot  rotation
}

func NewCrop(deps Deps, cfg CropConfig) *Crop {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	if cfg.Stacks < 1 {
		cfg.Stacks = constants.CropTowerStacks
	}
	if len(cfg.Towers) == 0 {
		cfg.Towers = []navigation.Direction{navigation.Front, navigation.Right, navigation.Back, navigation.Left}
	}
	return &Crop{
		deps: deps,
		cfg:  cfg,
		log:  deps.Log.With().Str("station", "crop").Logger(),
		ring: navigation.Uniform(cfg.Towers...),
		rot:  rotation{count: cfg.Count, lap: Interval{Every: cfg.Interval}},
	}
}

func (c *Crop) Name() string { return "crop" }

func (c *Crop) Ready(now time.Time) bool { return c.rot.ready(now) }

func (c *Crop) State() State {
	return State{Cursor: c.rot.cursor, LastCompleted: c.rot.lap.Last}
}

func (c *Crop) Restore(s State) { c.rot.restore(s) }

func (c *Crop) Complete() (stats Statistics, err error) {
	stats = newStats(c.Name(), c.deps.Clock.Now())
	bed := BedName(c.cfg.Prefix, c.rot.cursor)
	log := c.log.With().Str("bed", bed).Logger()

	defer func() {
		now := c.deps.Clock.Now()
		stats.Lap = c.rot.advance(now)
		stats.finish(now)
	}()

	if err := c.deps.arrive(bed, c.ring); err != nil {
		return stats, err
	}
	if err := c.restock(&stats); err != nil {
		return stats, err
	}

	for stack := 0; stack < c.cfg.Stacks; stack++ {
		if stack > 0 {
			if err := c.deps.Player.Pitch(-constants.CropStackPitch); err != nil {
				return stats, err
			}
		}
		for _, dir := range c.ring.Order() {
			if err := c.deps.Player.Face(dir); err != nil {
				return stats, err
			}
			if err := c.tend(&stats); err != nil {
				return stats, err
			}
		}
	}
	if err := c.deps.Player.Pitch(constants.CropStackPitch * float64(c.cfg.Stacks-1)); err != nil {
		return stats, err
	}

	log.Info().
		Int("harvested", stats.Produced[items.Crop.Name]).
		Int("skipped", stats.Counters["plots_skipped"]).
		Msg("crop plots tended")
	return stats, nil
}

// tend harvests and reseeds the plot in front. An unreachable plot is
// skipped; the rest of the tower still runs.
func (c *Crop) tend(stats *Statistics) error {
	plot := c.deps.container(c.deps.Layout.CropPlot)
	err := withOpen(plot, func() error {
		stats.Produced[items.Crop.Name] += plot.Count(items.Crop)
		if err := plot.TakeAll(items.Crop.SearchAlias); err != nil {
			return err
		}
		if err := plot.TransferAll(items.Seed.SearchAlias); err != nil {
			return err
		}
		return plot.TransferAll(items.Fertilizer.SearchAlias)
	})

	var notAccessible *game.ContainerNotAccessibleError
	if errors.As(err, &notAccessible) {
		c.log.Debug().Str("facing", c.deps.Player.Facing().String()).Msg("plot not reachable, skipping")
		stats.Counters["plots_skipped"]++
		return nil
	}
	if err != nil {
		return err
	}
	stats.Counters["plots_tended"]++
	return nil
}

// restock deposits the previous harvest into the storage under the bed and
// refills seeds when the bag runs low. A missing storage turns both into
// no-ops.
func (c *Crop) restock(stats *Statistics) error {
	p := c.deps.Player
	if err := p.LookDown(); err != nil {
		return err
	}

	storage := c.deps.container(c.deps.Layout.Storage)
	bag := c.deps.bag()
	err := withOpen(storage, func() error {
		if err := storage.TransferAll(items.Crop.SearchAlias); err != nil {
			return err
		}
		seeds, err := bag.Quantity(items.Seed)
		if err != nil {
			c.log.Warn().Err(err).Msg("seed count unreadable, refilling")
			seeds = 0
		}
		stats.Counters["seeds"] = seeds
		if seeds >= c.cfg.RefillBelow {
			return nil
		}
		if err := storage.TakeAll(items.Seed.SearchAlias); err != nil {
			return err
		}
		stats.Refilled = true
		return nil
	})

	var notAccessible *game.ContainerNotAccessibleError
	if errors.As(err, &notAccessible) {
		c.log.Warn().Msg("seed storage not reachable, skipping refill")
		stats.Counters["refill_skipped"]++
		err = nil
	}
	if err != nil {
		return err
	}
	return p.Pitch(-90)
}
