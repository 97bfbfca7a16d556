// Package farm wires the configured stations, devices, store and
// notifiers into a scheduler and owns one run at a time.
package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/clock"
	"github.com/ConserveLee/farmbot/internal/config"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/engine/input"
	"github.com/ConserveLee/farmbot/internal/engine/screen"
	"github.com/ConserveLee/farmbot/internal/engine/tesseract"
	"github.com/ConserveLee/farmbot/internal/game"
	"github.com/ConserveLee/farmbot/internal/items"
	"github.com/ConserveLee/farmbot/internal/navigation"
	"github.com/ConserveLee/farmbot/internal/notify"
	"github.com/ConserveLee/farmbot/internal/recovery"
	"github.com/ConserveLee/farmbot/internal/runstate"
	"github.com/ConserveLee/farmbot/internal/scheduler"
	"github.com/ConserveLee/farmbot/internal/station"
	"github.com/ConserveLee/farmbot/internal/store"
)

// ErrRunning is returned by Start while a run is in progress.
var ErrRunning = errors.New("bot is already running")

// Devices are the host-facing ports of a run.
type Devices struct {
	See    engine.Perception
	Do     engine.Actuator
	Shots  engine.Screenshotter
	Proc   recovery.Process
	Launch recovery.Launcher

	// Close releases whatever the devices hold open. May be nil.
	Close func()
}

// OpenDevices captures the given display, reads text with tesseract and
// drives the real mouse and keyboard.
func OpenDevices(cfg *config.Config, run *runstate.RunState, display int, log zerolog.Logger) (*Devices, error) {
	reader, err := tesseract.New(cfg.OCR.Language, screen.NewCorrections(cfg.OCR.Corrections))
	if err != nil {
		return nil, err
	}

	searcher := screen.NewSearcher(screen.Options{
		DisplayIndex:  display,
		AssetsDir:     cfg.Screen.Assets,
		Tolerance:     cfg.Screen.Tolerance,
		MinDistance:   cfg.Screen.MinDistance,
		VirtualWidth:  cfg.Screen.Width,
		VirtualHeight: cfg.Screen.Height,
	}, reader, log)
	n, err := searcher.LoadTemplates()
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	log.Info().Int("templates", n).Str("dir", cfg.Screen.Assets).Msg("templates loaded")
	if missing := MissingTemplates(searcher.Templates(), Templates()); len(missing) > 0 {
		log.Warn().Interface("missing", missing).Msg("some templates are not in the assets directory")
	}

	robot := input.NewRobot(run, cfg.Screen.Width, cfg.Screen.Height, log)
	robot.SetDisplayID(display)

	launcher := &recovery.ExecLauncher{Dir: cfg.Game.Dir}
	if len(cfg.Game.Launch) > 0 {
		launcher.Command = cfg.Game.Launch[0]
		launcher.Args = cfg.Game.Launch[1:]
	}

	return &Devices{
		See:    searcher,
		Do:     robot,
		Shots:  searcher,
		Proc:   recovery.SystemProcess{Name: cfg.Game.Process},
		Launch: launcher,
		Close:  func() { _ = reader.Close() },
	}, nil
}

// Stations builds the enabled stations in priority order. Crystal and
// grinding share the vault-full signal.
func Stations(cfg *config.Config, deps station.Deps) []station.Station {
	s := cfg.Stations
	grind := &station.Signal{}

	var out []station.Station
	for _, name := range cfg.EnabledStations() {
		switch name {
		case "healing":
			out = append(out, station.NewHealing(deps, station.HealingConfig{
				Bed:          s.Healing.Bed,
				Interval:     s.Healing.Interval,
				FridgeFacing: config.Direction(s.Healing.FridgeFacing),
			}))
		case "grinding":
			target := s.Grinding.Target
			if it, ok := deps.Catalog.Lookup(target); ok {
				target = it.Name
			}
			out = append(out, station.NewGrinding(deps, station.GrindingConfig{
				Bed:              s.Grinding.Bed,
				Target:           target,
				Limit:            s.Grinding.Limit,
				VaultFacing:      config.Direction(s.Grinding.VaultFacing),
				GrinderFacing:    config.Direction(s.Grinding.GrinderFacing),
				FabricatorFacing: config.Direction(s.Grinding.FabricatorFacing),
			}, grind))
		case "crystal":
			signal := grind
			if !s.Grinding.Enabled {
				signal = nil
			}
			out = append(out, station.NewCrystal(deps, station.CrystalConfig{
				Prefix:      s.Crystal.Prefix,
				Count:       s.Crystal.Count,
				Interval:    s.Crystal.Interval,
				Keep:        config.ResolveItems(deps.Catalog, cfg.Items.Keep),
				VaultFullAt: s.Crystal.VaultFullAt,
				VaultFacing: config.Direction(s.Crystal.VaultFacing),
			}, signal))
		case "crop":
			towers := make([]navigation.Direction, 0, len(s.Crop.Towers))
			for _, d := range s.Crop.Towers {
				towers = append(towers, config.Direction(d))
			}
			out = append(out, station.NewCrop(deps, station.CropConfig{
				Prefix:      s.Crop.Prefix,
				Count:       s.Crop.Count,
				Interval:    s.Crop.Interval,
				Stacks:      s.Crop.Stacks,
				Towers:      towers,
				RefillBelow: s.Crop.RefillBelow,
			}))
		case "drop":
			out = append(out, station.NewDrop(deps, station.DropConfig{
				Bed:      s.Drop.Bed,
				Interval: s.Drop.Interval,
				Drop:     config.ResolveItems(deps.Catalog, cfg.Items.Drop),
			}))
		}
	}
	return out
}

// Sinks returns the notification sinks the config asks for. The log sink
// is always present.
func Sinks(cfg *config.Config, log zerolog.Logger) []notify.Sink {
	sinks := []notify.Sink{notify.LogSink{Log: log}}
	if cfg.Notify.DiscordWebhook != "" {
		sinks = append(sinks, notify.NewDiscord(cfg.Notify.DiscordWebhook))
	}
	return sinks
}

// Parts are the run-scoped collaborators Assemble wires together.
type Parts struct {
	Devices  *Devices
	Run      *runstate.RunState
	Clock    clock.Clock
	Store    scheduler.StateStore // optional
	Notify   scheduler.Notifier   // optional
	OnStatus func(string)
}

// Assemble builds the game environment, the stations, the recovery
// handler and the scheduler driving them.
func Assemble(cfg *config.Config, p Parts, log zerolog.Logger) *scheduler.Scheduler {
	if p.Clock == nil {
		p.Clock = clock.RealClock{}
	}
	layout := game.DefaultLayout()

	env := &game.Env{
		See:        p.Devices.See,
		Do:         p.Devices.Do,
		Run:        p.Run,
		Keys:       cfg.Keys,
		Log:        log,
		Confidence: cfg.Screen.Confidence,
	}
	travel := game.NewTraveler(env, layout.BedMap)

	deps := station.Deps{
		Env:     env,
		Travel:  travel,
		Player:  game.NewPlayer(env, cfg.Game.PixelsPerDegree),
		Layout:  layout,
		Clock:   p.Clock,
		Catalog: items.Default(),
		Log:     log,
	}

	handler := recovery.NewHandler(env, travel, recovery.DefaultScreen(), p.Devices.Proc, p.Devices.Launch, recovery.Config{
		Session:    cfg.Game.Session,
		CrashDelay: cfg.Game.CrashDelay,
	})

	scfg := scheduler.Config{
		Stations: Stations(cfg, deps),
		Run:      p.Run,
		Clock:    p.Clock,
		Recovery: handler,
		Store:    p.Store,
		Notify:   p.Notify,
		Shots:    p.Devices.Shots,
		Log:      log,
		OnStatus: p.OnStatus,
	}
	return scheduler.New(scfg)
}

// stateStore is what a run needs from the station store.
type stateStore interface {
	scheduler.StateStore
	Flush(ctx context.Context) error
	Close() error
}

// Bot runs the farm loop in the background for the GUI and the CLI.
type Bot struct {
	cfg *config.Config
	log zerolog.Logger

	// Callbacks for UI updates
	OnStatus  func(string)
	OnStopped func(error)

	openDevices func(run *runstate.RunState, display int) (*Devices, error)
	openStore   func() (stateStore, error)

	mu      sync.Mutex
	display int
	sched   *scheduler.Scheduler
	done    chan struct{}
	lastErr error
}

func New(cfg *config.Config, log zerolog.Logger) *Bot {
	b := &Bot{
		cfg:     cfg,
		log:     log.With().Str("component", "farm").Logger(),
		display: cfg.Screen.Display,
	}
	b.openDevices = func(run *runstate.RunState, display int) (*Devices, error) {
		return OpenDevices(cfg, run, display, log)
	}
	b.openStore = func() (stateStore, error) {
		if cfg.State.DB == "" {
			return nil, nil
		}
		return store.OpenSQLite(cfg.State.DB, log)
	}
	return b
}

// SetDisplayID selects the monitor the next run captures and clicks on.
func (b *Bot) SetDisplayID(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.display = id
}

// Running reports whether a run is in progress.
func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sched != nil
}

// Start begins a run in the background. The run ends on Stop, on ctx
// cancellation or on an unrecoverable failure; OnStopped then receives
// the reason (nil for an operator stop).
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sched != nil {
		return ErrRunning
	}

	run := runstate.New()
	dev, err := b.openDevices(run, b.display)
	if err != nil {
		return fmt.Errorf("open devices: %w", err)
	}
	st, err := b.openStore()
	if err != nil {
		closeDevices(dev)
		return fmt.Errorf("open state store: %w", err)
	}

	dispatcher := notify.NewDispatcher(b.log, b.cfg.Notify.Queue, b.cfg.Notify.Timeout, Sinks(b.cfg, b.log)...)
	parts := Parts{
		Devices:  dev,
		Run:      run,
		Notify:   dispatcher,
		OnStatus: b.OnStatus,
	}
	if st != nil {
		parts.Store = st
	}
	sched := Assemble(b.cfg, parts, b.log)

	b.sched = sched
	b.done = make(chan struct{})
	b.lastErr = nil

	b.log.Info().Str("run", sched.RunID()).Strs("stations", b.cfg.EnabledStations()).Msg("bot started")
	b.status("Running")

	go b.run(ctx, sched, dev, st, b.done)
	return nil
}

func (b *Bot) run(ctx context.Context, sched *scheduler.Scheduler, dev *Devices, st stateStore, done chan struct{}) {
	defer close(done)

	err := sched.Run(ctx)

	if st != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if ferr := st.Flush(flushCtx); ferr != nil {
			b.log.Warn().Err(ferr).Msg("flush state store")
		}
		cancel()
		if cerr := st.Close(); cerr != nil {
			b.log.Warn().Err(cerr).Msg("close state store")
		}
	}
	closeDevices(dev)

	b.mu.Lock()
	b.sched = nil
	b.lastErr = err
	b.mu.Unlock()

	if err != nil {
		b.log.Error().Err(err).Msg("bot stopped")
		b.status("Stopped: " + err.Error())
	} else {
		b.log.Info().Msg("bot stopped")
		b.status("Stopped")
	}
	if b.OnStopped != nil {
		b.OnStopped(err)
	}
}

func closeDevices(dev *Devices) {
	if dev != nil && dev.Close != nil {
		dev.Close()
	}
}

func (b *Bot) current() *scheduler.Scheduler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sched
}

func (b *Bot) Pause() {
	if s := b.current(); s != nil {
		s.Pause()
	}
}

func (b *Bot) Resume() {
	if s := b.current(); s != nil {
		s.Resume()
	}
}

// Stop asks the run to end and waits until it has.
func (b *Bot) Stop() {
	b.mu.Lock()
	s, done := b.sched, b.done
	b.mu.Unlock()
	if s == nil {
		return
	}
	s.Stop()
	<-done
}

// Wait blocks until the current run ends and returns its reason.
func (b *Bot) Wait() error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Stats returns the running totals and the station in progress, if any.
func (b *Bot) Stats() (station.Totals, string, bool) {
	s := b.current()
	if s == nil {
		return station.Totals{}, "", false
	}
	return s.Stats(), s.Current(), true
}

func (b *Bot) status(msg string) {
	if b.OnStatus != nil {
		b.OnStatus(msg)
	}
}
