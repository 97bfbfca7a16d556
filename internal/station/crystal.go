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

// CrystalConfig configures the crystal collection rotation.
type CrystalConfig struct {
	Prefix   string
	Count    int
	Interval time.Duration

	// Keep lists the loot deposited into the vault after cracking.
	Keep []items.Item
	// VaultFullAt is the vault fill ratio that signals grinding; zero
	// disables the check.
	VaultFullAt float64
	// VaultFacing is where the vault stands relative to the bed.
	VaultFacing navigation.Direction
}

// Crystal visits one crystal bed per Complete: pick up the crystals, crack
// them in the bag and deposit the loot worth keeping.
type Crystal struct {
	deps Deps
	cfg  CrystalConfig
	log  zerolog.Logger
	ring *navigation.Ring
	rot  rotation

	// grind is raised once the vault is nearly full.
	grind *Signal
}

func NewCrystal(deps Deps, cfg CrystalConfig, grind *Signal) *Crystal {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	return &Crystal{
		deps:  deps,
		cfg:   cfg,
		log:   deps.Log.With().Str("station", "crystal").Logger(),
		ring:  navigation.Uniform(navigation.Front, navigation.Right, navigation.Back, navigation.Left),
		rot:   rotation{count: cfg.Count, lap: Interval{Every: cfg.Interval}},
		grind: grind,
	}
}

func (c *Crystal) Name() string { return "crystal" }

func (c *Crystal) Ready(now time.Time) bool { return c.rot.ready(now) }

func (c *Crystal) State() State {
	return State{Cursor: c.rot.cursor, LastCompleted: c.rot.lap.Last}
}

func (c *Crystal) Restore(s State) { c.rot.restore(s) }

// Complete always moves on to the next bed, also on failure: crystals left
// behind are picked up on the next lap.
func (c *Crystal) Complete() (stats Statistics, err error) {
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
	if err := c.pickup(); err != nil {
		return stats, err
	}

	cracked, err := c.crack()
	stats.Produced[items.Crystal.Name] = cracked
	if err != nil {
		return stats, err
	}
	log.Info().Int("cracked", cracked).Msg("crystals cracked")

	if err := c.deposit(&stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (c *Crystal) pickup() error {
	p := c.deps.Player
	if err := p.LookDown(); err != nil {
		return err
	}
	if err := p.Use(); err != nil {
		return err
	}
	if err := c.deps.Env.Sleep(constants.CrystalPickupWait); err != nil {
		return err
	}
	return p.Pitch(-90)
}

// openBag retries on ContainerNotAccessible; the bag right after a pickup
// animation is often refused once.
func (c *Crystal) openBag(bag *game.Container) error {
	var err error
	for attempt := 0; attempt < constants.CrystalOpenRetries; attempt++ {
		err = bag.Open()
		var notAccessible *game.ContainerNotAccessibleError
		if !errors.As(err, &notAccessible) {
			return err
		}
		c.log.Debug().Int("attempt", attempt+1).Msg("bag refused, retrying")
	}
	return err
}

func (c *Crystal) crack() (int, error) {
	bag := c.deps.bag()
	if err := c.openBag(bag); err != nil {
		return 0, err
	}

	cracked := 0
	err := func() error {
		if err := bag.Search(items.Crystal.SearchAlias); err != nil {
			return err
		}
		for cracked < constants.MaxCrystalsPerVisit {
			pt, ok := bag.Find(items.Crystal)
			if !ok {
				return nil
			}
			if err := c.deps.Env.Do.MoveTo(pt); err != nil {
				return err
			}
			if err := c.deps.Env.Do.Press(c.deps.Env.Keys.Use); err != nil {
				return err
			}
			cracked++
			if err := c.deps.Env.Sleep(constants.CrystalUseInterval); err != nil {
				return err
			}
		}
		return nil
	}()

	if cerr := bag.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return cracked, err
}

func (c *Crystal) deposit(stats *Statistics) error {
	if err := c.deps.Player.Face(c.cfg.VaultFacing); err != nil {
		return err
	}

	vault := c.deps.container(c.deps.Layout.Vault)
	return withOpen(vault, func() error {
		for _, it := range c.cfg.Keep {
			if err := vault.TransferAll(it.SearchAlias); err != nil {
				return err
			}
			stats.Counters["deposits"]++
		}
		c.checkVault(vault, stats)
		return nil
	})
}

// checkVault reads the slot counter. An unreadable counter only skips the
// signal for this visit.
func (c *Crystal) checkVault(vault *game.Container, stats *Statistics) {
	if c.cfg.VaultFullAt <= 0 || c.grind == nil {
		return
	}
	used, max, err := vault.Capacity()
	if err != nil {
		c.log.Warn().Err(err).Msg("vault counter unreadable")
		return
	}
	stats.Counters["vault_used"] = used
	if max > 0 && float64(used) >= c.cfg.VaultFullAt*float64(max) {
		c.log.Info().Int("used", used).Int("max", max).Msg("vault full, grinding requested")
		stats.Counters["vault_full"] = 1
		c.grind.Raise()
	}
}
