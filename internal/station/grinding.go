package station

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
	"github.com/ConserveLee/farmbot/internal/wait"
)

// GrindPhase is the step of the grinding cycle. Phases form a strict cycle
// back to WaitingForItems.
type GrindPhase int

const (
	WaitingForItems GrindPhase = iota
	CraftingSubcomponents
	AwaitingCraft
	AwaitingPickup
)

func (p GrindPhase) String() string {
	switch p {
	case WaitingForItems:
		return "WaitingForItems"
	case CraftingSubcomponents:
		return "CraftingSubcomponents"
	case AwaitingCraft:
		return "AwaitingCraft"
	case AwaitingPickup:
		return "AwaitingPickup"
	default:
		return "Unknown"
	}
}

// GrindingConfig configures the grind and craft pipeline.
type GrindingConfig struct {
	Bed    string
	Target string
	// Limit caps how many targets one session crafts; zero means as many
	// as resources allow.
	Limit int

	VaultFacing      navigation.Direction
	GrinderFacing    navigation.Direction
	FabricatorFacing navigation.Direction
}

// Grinding grinds the vault loot into resources, crafts the target item
// and stores it. Each Complete runs exactly one phase.
type Grinding struct {
	deps Deps
	cfg  GrindingConfig
	log  zerolog.Logger
	ring *navigation.Ring

	phase   GrindPhase
	readyAt time.Time
	last    time.Time
	signal  *Signal

	// desired is set by CraftingSubcomponents, queued by AwaitingCraft.
	desired int
	queued  int
}

func NewGrinding(deps Deps, cfg GrindingConfig, signal *Signal) *Grinding {
	if signal == nil {
		signal = &Signal{}
	}
	return &Grinding{
		deps:   deps,
		cfg:    cfg,
		log:    deps.Log.With().Str("station", "grinding").Logger(),
		ring:   navigation.Uniform(navigation.Front, navigation.Right, navigation.Back, navigation.Left),
		signal: signal,
	}
}

func (g *Grinding) Name() string { return "grinding" }

// Phase is the current phase.
func (g *Grinding) Phase() GrindPhase { return g.phase }

// Ready waits for the vault signal in the first phase and for the
// estimated craft time in the others.
func (g *Grinding) Ready(now time.Time) bool {
	if now.Before(g.readyAt) {
		return false
	}
	if g.phase == WaitingForItems {
		return g.signal.Raised()
	}
	return true
}

func (g *Grinding) State() State {
	s := State{
		Phase:         int(g.phase),
		LastCompleted: g.last,
		ReadyAt:       g.readyAt,
		Signalled:     g.signal.Raised(),
	}
	switch g.phase {
	case AwaitingCraft:
		s.Cursor = g.desired
	case AwaitingPickup:
		s.Cursor = g.queued
	}
	return s
}

func (g *Grinding) Restore(s State) {
	g.phase = GrindPhase(s.Phase)
	if g.phase < WaitingForItems || g.phase > AwaitingPickup {
		g.phase = WaitingForItems
	}
	g.last = s.LastCompleted
	g.readyAt = s.ReadyAt
	if s.Signalled {
		g.signal.Raise()
	}
	switch g.phase {
	case AwaitingCraft:
		g.desired = s.Cursor
	case AwaitingPickup:
		g.queued = s.Cursor
	}
}

// Complete runs the current phase. On success the phase advances; on
// failure it stays and the station backs off so it cannot monopolise the
// scheduler.
func (g *Grinding) Complete() (stats Statistics, err error) {
	stats = newStats(g.Name(), g.deps.Clock.Now())
	stats.Phase = g.phase.String()
	log := g.log.With().Str("phase", g.phase.String()).Logger()

	defer func() {
		now := g.deps.Clock.Now()
		stats.finish(now)
		if err != nil {
			g.readyAt = now.Add(constants.StationRetryBackoff)
			return
		}
		g.last = now
	}()

	if err := g.deps.arrive(g.cfg.Bed, g.ring); err != nil {
		return stats, err
	}

	var next GrindPhase
	switch g.phase {
	case WaitingForItems:
		next, err = g.grind(&stats)
	case CraftingSubcomponents:
		next, err = g.craftSubcomponents(&stats)
	case AwaitingCraft:
		next, err = g.craftTarget(&stats)
	case AwaitingPickup:
		next, err = g.pickup(&stats)
	default:
		return stats, fmt.Errorf("grinding in unknown phase %d", g.phase)
	}
	if err != nil {
		return stats, err
	}

	log.Info().Str("next", next.String()).Msg("phase done")
	g.phase = next
	return stats, nil
}

// grind empties the vault into the grinder and moves the resources into
// the fabricator.
func (g *Grinding) grind(stats *Statistics) (GrindPhase, error) {
	p := g.deps.Player

	if err := p.Face(g.cfg.VaultFacing); err != nil {
		return 0, err
	}
	vault := g.deps.container(g.deps.Layout.Vault)
	if err := withOpen(vault, func() error { return vault.TakeAll("") }); err != nil {
		return 0, err
	}

	if err := p.Face(g.cfg.GrinderFacing); err != nil {
		return 0, err
	}
	grinder := g.deps.container(g.deps.Layout.Grinder)
	err := withOpen(grinder, func() error {
		if err := grinder.TransferAll(""); err != nil {
			return err
		}
		if err := g.deps.Env.Do.Click(g.deps.Layout.GrindAll, engine.ButtonLeft); err != nil {
			return err
		}
		ground, err := g.deps.Env.Soft(wait.Polls(constants.GrindPolls, constants.SlowPollInterval), func() bool {
			return grinder.Has(items.Ingot)
		})
		if err != nil {
			return err
		}
		if !ground {
			g.log.Warn().Msg("grinder produced nothing visible")
		}
		return grinder.TakeAll("")
	})
	if err != nil {
		return 0, err
	}

	if err := p.Face(g.cfg.FabricatorFacing); err != nil {
		return 0, err
	}
	fab := g.deps.container(g.deps.Layout.Fabricator)
	if err := withOpen(fab, func() error { return fab.TransferAll("") }); err != nil {
		return 0, err
	}

	g.signal.Clear()
	stats.Counters["grinds"]++
	return CraftingSubcomponents, nil
}

// owned reads every target component and raw resource in the fabricator.
func (g *Grinding) owned(fab *game.Container) (map[string]int, error) {
	recipe, ok := g.deps.Catalog.Recipe(g.cfg.Target)
	if !ok {
		return nil, fmt.Errorf("no recipe for %q", g.cfg.Target)
	}

	names := recipe.Components()
	for _, name := range recipe.Components() {
		if sub, ok := g.deps.Catalog.Recipe(name); ok {
			names = append(names, sub.Components()...)
		}
	}

	owned := make(map[string]int)
	for _, name := range names {
		if _, seen := owned[name]; seen {
			continue
		}
		it, ok := g.deps.Catalog.Item(name)
		if !ok {
			return nil, fmt.Errorf("unknown item %q in recipe", name)
		}
		n, err := fab.Quantity(it)
		if err != nil {
			return nil, err
		}
		owned[name] = n
	}
	return owned, nil
}

func (g *Grinding) craftSubcomponents(stats *Statistics) (GrindPhase, error) {
	if err := g.deps.Player.Face(g.cfg.FabricatorFacing); err != nil {
		return 0, err
	}

	fab := g.deps.container(g.deps.Layout.Fabricator)
	var plan CraftingPlan
	err := withOpen(fab, func() error {
		owned, err := g.owned(fab)
		if err != nil {
			return err
		}
		plan, err = NewCraftingPlan(g.deps.Catalog, g.cfg.Target, owned, g.cfg.Limit)
		if err != nil {
			return err
		}
		for _, c := range plan.Residual {
			if err := g.queue(fab, c); err != nil {
				return err
			}
			stats.Produced[c.Item] += c.Count
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if plan.Desired == 0 {
		g.log.Info().Msg("not enough resources for a single craft")
		return WaitingForItems, nil
	}

	g.desired = plan.Desired
	g.readyAt = g.deps.Clock.Now().Add(time.Duration(plan.CraftSeconds(g.deps.Catalog)) * time.Second)
	stats.Counters["planned"] = plan.Desired
	return AwaitingCraft, nil
}

func (g *Grinding) craftTarget(stats *Statistics) (GrindPhase, error) {
	if err := g.deps.Player.Face(g.cfg.FabricatorFacing); err != nil {
		return 0, err
	}

	fab := g.deps.container(g.deps.Layout.Fabricator)
	count := 0
	err := withOpen(fab, func() error {
		owned, err := g.owned(fab)
		if err != nil {
			return err
		}
		plan, err := NewCraftingPlan(g.deps.Catalog, g.cfg.Target, owned, g.cfg.Limit)
		if err != nil {
			return err
		}
		count = plan.Craftable
		if g.desired > 0 && count > g.desired {
			count = g.desired
		}
		if count == 0 {
			return nil
		}
		return g.queue(fab, Craft{Item: g.cfg.Target, Count: count})
	})
	if err != nil {
		return 0, err
	}

	g.desired = 0
	if count == 0 {
		g.log.Warn().Msg("subcomponents missing, nothing queued")
		return WaitingForItems, nil
	}

	recipe, _ := g.deps.Catalog.Recipe(g.cfg.Target)
	g.queued = count
	g.readyAt = g.deps.Clock.Now().Add(time.Duration(recipe.CraftSeconds*count) * time.Second)
	stats.Counters["queued"] = count
	return AwaitingPickup, nil
}

func (g *Grinding) pickup(stats *Statistics) (GrindPhase, error) {
	target, ok := g.deps.Catalog.Item(g.cfg.Target)
	if !ok {
		return 0, fmt.Errorf("unknown craft target %q", g.cfg.Target)
	}

	if err := g.deps.Player.Face(g.cfg.FabricatorFacing); err != nil {
		return 0, err
	}
	fab := g.deps.container(g.deps.Layout.Fabricator)
	err := withOpen(fab, func() error {
		if err := fab.TakeAll(target.SearchAlias); err != nil {
			return err
		}
		return fab.AwaitItemsAdded()
	})
	if err != nil {
		return 0, err
	}

	if err := g.deps.Player.Face(g.cfg.VaultFacing); err != nil {
		return 0, err
	}
	vault := g.deps.container(g.deps.Layout.Vault)
	if err := withOpen(vault, func() error { return vault.TransferAll(target.SearchAlias) }); err != nil {
		return 0, err
	}

	stats.Produced[target.Name] += g.queued
	g.queued = 0
	return WaitingForItems, nil
}

// queue types a crafting order into the fabricator's crafting tab.
func (g *Grinding) queue(fab *game.Container, c Craft) error {
	it, ok := g.deps.Catalog.Item(c.Item)
	if !ok {
		return fmt.Errorf("unknown item %q", c.Item)
	}

	env, layout := g.deps.Env, g.deps.Layout
	if err := env.Do.Click(layout.CraftTab, engine.ButtonLeft); err != nil {
		return err
	}
	if err := fab.Search(it.SearchAlias); err != nil {
		return err
	}
	pt, ok := fab.Find(it)
	if !ok {
		return fmt.Errorf("%s not craftable in %s", it.Name, fab.Name())
	}
	if err := env.Do.Click(pt, engine.ButtonLeft); err != nil {
		return err
	}
	if err := env.Do.Click(layout.CraftField, engine.ButtonLeft); err != nil {
		return err
	}
	if err := env.ClearField(); err != nil {
		return err
	}
	if err := env.Do.TypeText(strconv.Itoa(c.Count)); err != nil {
		return err
	}
	if err := env.Do.Press("enter"); err != nil {
		return err
	}
	g.log.Debug().Str("item", it.Name).Int("count", c.Count).Msg("craft queued")
	return env.Do.Click(layout.InvTab, engine.ButtonLeft)
}
