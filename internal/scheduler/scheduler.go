// Package scheduler drives the stations. One goroutine owns the game; it
// runs the first ready station to completion, hands failures to recovery
// and posts notifications without waiting on them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ConserveLee/farmbot/internal/clock"
	"github.com/ConserveLee/farmbot/internal/constants"
	"github.com/ConserveLee/farmbot/internal/engine"
	"github.com/ConserveLee/farmbot/internal/notify"
	"github.com/ConserveLee/farmbot/internal/recovery"
	"github.com/ConserveLee/farmbot/internal/runstate"
	"github.com/ConserveLee/farmbot/internal/station"
	"github.com/ConserveLee/farmbot/internal/store"
)

var (
	// ErrUnrecoverable ends a run after recovery could not fix a failure.
	ErrUnrecoverable = errors.New("unrecoverable failure")
	ErrNoStations    = errors.New("no stations enabled")
	errIdle          = errors.New("no station completed within the idle timeout")
)

// watchdogTask names the recovery pass forced by the idle watchdog.
const watchdogTask = "watchdog"

// Recoverer is the recovery handler.
type Recoverer interface {
	Recover(ctx context.Context, station string, cause error) (recovery.Session, error)
}

// StateStore persists station state. Writes must not block.
type StateStore interface {
	Load(ctx context.Context, station string) (store.Record, bool, error)
	Save(rec store.Record)
	RecordLap(lap store.Lap)
}

// Notifier accepts events without blocking.
type Notifier interface {
	Post(e notify.Event)
}

// worker is a Notifier with its own delivery goroutine, like
// *notify.Dispatcher. Run starts it and closes it after the final event.
type worker interface {
	Run(ctx context.Context) error
	Close()
}

// Config wires a Scheduler. Store, Notify and Shots are optional.
type Config struct {
	Stations []station.Station // in priority order
	Run      *runstate.RunState
	Clock    clock.Clock
	Recovery Recoverer
	Store    StateStore
	Notify   Notifier
	Shots    engine.Screenshotter
	Log      zerolog.Logger

	// IdleTimeout forces a recovery pass when nothing completed for this
	// long. Zero uses the default; negative disables it.
	IdleTimeout time.Duration
	// IdleInterval is the pause between ticks with nothing ready.
	IdleInterval time.Duration

	// OnStatus receives short human status lines for the GUI.
	OnStatus func(string)
}

// Scheduler runs stations in priority order.
type Scheduler struct {
	cfg   Config
	log   zerolog.Logger
	runID string

	mu         sync.Mutex
	totals     *station.Totals
	current    string
	lastDone   time.Time
	lapStarted time.Time
	lapOutput  int
}

func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Run == nil {
		cfg.Run = runstate.New()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = constants.IdleWatchdogTimeout
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = time.Second
	}

	now := cfg.Clock.Now()
	id := uuid.NewString()
	return &Scheduler{
		cfg:        cfg,
		log:        cfg.Log.With().Str("component", "scheduler").Str("run", id).Logger(),
		runID:      id,
		totals:     station.NewTotals(now),
		lastDone:   now,
		lapStarted: now,
	}
}

// RunID identifies this run in notifications and lap records.
func (s *Scheduler) RunID() string { return s.runID }

// Pause blocks the driver at its next input or wait.
func (s *Scheduler) Pause() {
	s.cfg.Run.Pause()
	s.status("Paused")
}

func (s *Scheduler) Resume() {
	s.cfg.Run.Resume()
	s.status("Running")
}

// Stop ends the run; the station in progress unwinds at its next input or
// wait.
func (s *Scheduler) Stop() { s.cfg.Run.Stop() }

// State is the run state the scheduler is driven by.
func (s *Scheduler) State() runstate.State { return s.cfg.Run.State() }

// Stats returns a snapshot of the run totals.
func (s *Scheduler) Stats() station.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals.Clone()
}

// Current names the station being completed, if any.
func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) status(msg string) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(msg)
	}
}

func (s *Scheduler) post(e notify.Event) {
	if s.cfg.Notify == nil {
		return
	}
	e.RunID = s.runID
	if e.At.IsZero() {
		e.At = s.cfg.Clock.Now()
	}
	s.cfg.Notify.Post(e)
}

func (s *Scheduler) snapshot() *station.Totals {
	t := s.Stats()
	return &t
}

// Restore loads persisted state into every station. Missing records leave
// the station at its initial state.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.cfg.Store == nil {
		return nil
	}
	for _, st := range s.cfg.Stations {
		rec, ok, err := s.cfg.Store.Load(ctx, st.Name())
		if err != nil {
			return fmt.Errorf("load state of %s: %w", st.Name(), err)
		}
		if !ok {
			continue
		}
		st.Restore(fromRecord(rec))
		s.log.Info().Str("station", st.Name()).Int("phase", rec.Phase).Int("cursor", rec.Cursor).
			Time("last_completed", rec.LastCompleted).Msg("state restored")
	}
	return nil
}

func (s *Scheduler) save(st station.Station) {
	if s.cfg.Store == nil {
		return
	}
	s.cfg.Store.Save(toRecord(st.Name(), st.State()))
}

func toRecord(name string, st station.State) store.Record {
	return store.Record{
		Station:       name,
		Phase:         st.Phase,
		Cursor:        st.Cursor,
		LastCompleted: st.LastCompleted,
		ReadyAt:       st.ReadyAt,
		Signalled:     st.Signalled,
	}
}

func fromRecord(rec store.Record) station.State {
	return station.State{
		Phase:         rec.Phase,
		Cursor:        rec.Cursor,
		LastCompleted: rec.LastCompleted,
		ReadyAt:       rec.ReadyAt,
		Signalled:     rec.Signalled,
	}
}

// Tick runs at most one station. It reports whether a station ran. The
// only errors are runstate.ErrStopped and ErrUnrecoverable.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if err := s.cfg.Run.Check(); err != nil {
		return false, err
	}
	now := s.cfg.Clock.Now()

	if s.cfg.IdleTimeout > 0 && now.Sub(s.lastDone) >= s.cfg.IdleTimeout {
		s.log.Warn().Dur("idle", now.Sub(s.lastDone)).Msg("idle watchdog fired")
		s.lastDone = now
		return true, s.failed(ctx, watchdogTask, errIdle)
	}

	for _, st := range s.cfg.Stations {
		if !st.Ready(now) {
			continue
		}
		return true, s.complete(ctx, st)
	}
	// Waiting on intervals is not being stuck.
	s.lastDone = now
	return false, nil
}

func (s *Scheduler) complete(ctx context.Context, st station.Station) error {
	name := st.Name()
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = ""
		s.mu.Unlock()
	}()

	s.status("Running " + name)
	log := s.log.With().Str("station", name).Logger()
	log.Info().Msg("station started")

	stats, err := st.Complete()
	s.save(st)

	if errors.Is(err, runstate.ErrStopped) {
		return err
	}
	if err != nil {
		// The cursor wraps even when the last bed failed; the lap still ends.
		if stats.Lap {
			s.mu.Lock()
			s.totals.Laps++
			s.mu.Unlock()
			s.lap(s.cfg.Clock.Now())
		}
		return s.failed(ctx, name, err)
	}

	now := s.cfg.Clock.Now()
	s.lastDone = now

	s.mu.Lock()
	s.totals.Add(stats)
	for _, v := range stats.Produced {
		if v > 0 {
			s.lapOutput += v
		}
	}
	s.mu.Unlock()

	log.Info().Dur("took", stats.Took).Interface("produced", stats.Produced).Interface("counters", stats.Counters).
		Bool("lap", stats.Lap).Msg("station completed")
	s.post(notify.Event{Kind: notify.StationCompleted, Station: name, Stats: ptr(stats.Clone())})

	if stats.Lap {
		s.lap(now)
	}
	return nil
}

func (s *Scheduler) lap(now time.Time) {
	s.mu.Lock()
	number := s.totals.Laps
	lap := store.Lap{
		RunID:      s.runID,
		Number:     number,
		FinishedAt: now,
		Took:       now.Sub(s.lapStarted),
		Produced:   s.lapOutput,
	}
	s.lapStarted = now
	s.lapOutput = 0
	s.mu.Unlock()

	s.log.Info().Int("lap", number).Dur("took", lap.Took).Int("produced", lap.Produced).Msg("lap completed")
	if s.cfg.Store != nil {
		s.cfg.Store.RecordLap(lap)
	}
	s.post(notify.Event{Kind: notify.LapCompleted, Totals: s.snapshot()})
}

func (s *Scheduler) failed(ctx context.Context, name string, err error) error {
	s.mu.Lock()
	s.totals.Fail(name)
	s.mu.Unlock()

	s.log.Error().Err(err).Str("station", name).Msg("station failed")
	e := notify.Event{Kind: notify.ErrorOccurred, Station: name, Err: err.Error()}
	if s.cfg.Shots != nil {
		shot, serr := s.cfg.Shots.Screenshot()
		if serr != nil {
			s.log.Warn().Err(serr).Msg("error screenshot failed")
		}
		e.Screenshot = shot
	}
	s.post(e)

	return s.recover(ctx, name, err)
}

func (s *Scheduler) recover(ctx context.Context, name string, cause error) error {
	if s.cfg.Recovery == nil {
		return fmt.Errorf("%w: %s: %w", ErrUnrecoverable, name, cause)
	}
	s.status("Recovering")

	sess, err := s.cfg.Recovery.Recover(ctx, name, cause)
	if err != nil {
		return err
	}
	if !sess.Fixed {
		return fmt.Errorf("%w: %s: %w", ErrUnrecoverable, name, cause)
	}

	s.mu.Lock()
	s.totals.Recoveries++
	s.mu.Unlock()
	if sess.Reconnected {
		s.lastDone = s.cfg.Clock.Now()
	}
	s.post(notify.Event{Kind: notify.Recovered, Station: name, Err: fmt.Sprintf("%s after: %v", sess.Remedy, cause)})
	return nil
}

// Run restores persisted state and drives the stations until the run is
// stopped, ctx is cancelled or a failure cannot be recovered. A stop is not
// an error. A Notifier with a worker goroutine is run alongside the driver
// and drained after the final "stopped" event.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.cfg.Stations) == 0 {
		return ErrNoStations
	}
	if err := s.Restore(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	w, hasWorker := s.cfg.Notify.(worker)
	if hasWorker {
		// The worker must outlive a failing driver to deliver the final event.
		wctx := context.WithoutCancel(ctx)
		g.Go(func() error { return w.Run(wctx) })
	}

	g.Go(func() (err error) {
		defer func() {
			reason := "stopped by operator"
			if err != nil {
				reason = err.Error()
			}
			s.post(notify.Event{Kind: notify.Stopped, Err: reason, Totals: s.snapshot()})
			s.status("Stopped")
			if hasWorker {
				w.Close()
			}
		}()
		return s.drive(gctx)
	})

	return g.Wait()
}

func (s *Scheduler) drive(ctx context.Context) error {
	run := s.cfg.Run
	go func() {
		select {
		case <-ctx.Done():
			run.Stop()
		case <-run.Done():
		}
	}()

	s.log.Info().Int("stations", len(s.cfg.Stations)).Msg("scheduler started")
	s.status("Running")
	for {
		ran, err := s.Tick(ctx)
		if errors.Is(err, runstate.ErrStopped) {
			s.log.Info().Msg("scheduler stopped")
			return nil
		}
		if err != nil {
			run.Stop()
			s.log.Error().Err(err).Msg("scheduler halted")
			return err
		}
		if ran {
			continue
		}
		s.status("Waiting")
		if err := run.Sleep(s.cfg.IdleInterval); err != nil {
			s.log.Info().Msg("scheduler stopped")
			return nil
		}
	}
}

func ptr[T any](v T) *T { return &v }
