package station

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
)

// DropConfig configures the dump stop.
type DropConfig struct {
	Bed      string
	Interval time.Duration
	Drop     []items.Item
}

// Drop empties junk from the bag at a dump bed so it does not pile up
// between grinding sessions.
type Drop struct {
	deps  Deps
	cfg   DropConfig
	log   zerolog.Logger
	ring  *navigation.Ring
	every Interval
}

func NewDrop(deps Deps, cfg DropConfig) *Drop {
	return &Drop{
		deps:  deps,
		cfg:   cfg,
		log:   deps.Log.With().Str("station", "drop").Logger(),
		ring:  navigation.Uniform(navigation.Front, navigation.Back),
		every: Interval{Every: cfg.Interval},
	}
}

func (d *Drop) Name() string { return "drop" }

func (d *Drop) Ready(now time.Time) bool { return d.every.Ready(now) }

func (d *Drop) State() State { return State{LastCompleted: d.every.Last} }

func (d *Drop) Restore(s State) { d.every.Last = s.LastCompleted }

func (d *Drop) Complete() (stats Statistics, err error) {
	stats = newStats(d.Name(), d.deps.Clock.Now())
	defer func() {
		now := d.deps.Clock.Now()
		d.every.Last = now
		stats.finish(now)
	}()

	if err := d.deps.arrive(d.cfg.Bed, d.ring); err != nil {
		return stats, err
	}

	bag := d.deps.bag()
	err = withOpen(bag, func() error {
		for _, it := range d.cfg.Drop {
			if err := bag.Search(it.SearchAlias); err != nil {
				return err
			}
			n := bag.Count(it)
			if n == 0 {
				continue
			}
			if err := bag.DropAll(""); err != nil {
				return err
			}
			stats.Counters["dropped"] += n
			d.log.Debug().Str("item", it.Name).Int("stacks", n).Msg("dropped")
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, d.deps.Env.Sleep(constants.DropStationSettle)
}
