package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/farmbot/internal/clock"
	"github.com/ConserveLee/farmbot/internal/notify"
	"github.com/ConserveLee/farmbot/internal/recovery"
	"github.com/ConserveLee/farmbot/internal/runstate"
	"github.com/ConserveLee/farmbot/internal/station"
	"github.com/ConserveLee/farmbot/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStation struct {
	name     string
	ready    bool
	err      error
	stats    station.Statistics
	state    station.State
	calls    int
	restored *station.State

	// onComplete runs inside Complete, before it returns.
	onComplete func(n int)
}

func (f *fakeStation) Name() string { return f.name }

func (f *fakeStation) Ready(time.Time) bool { return f.ready }

func (f *fakeStation) State() station.State { return f.state }

func (f *fakeStation) Restore(s station.State) { f.restored = &s }

func (f *fakeStation) Complete() (station.Statistics, error) {
	f.calls++
	f.state.Cursor = f.calls
	if f.onComplete != nil {
		f.onComplete(f.calls)
	}
	s := f.stats
	s.Station = f.name
	return s, f.err
}

type fakeRecovery struct {
	sessions []recovery.Session
	err      error
	calls    []string
}

func (f *fakeRecovery) Recover(_ context.Context, name string, _ error) (recovery.Session, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return recovery.Session{}, f.err
	}
	if len(f.sessions) == 0 {
		return recovery.Session{Fixed: true}, nil
	}
	s := f.sessions[0]
	if len(f.sessions) > 1 {
		f.sessions = f.sessions[1:]
	}
	return s, nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string]store.Record
	laps    []store.Lap
}

func newMemStore() *memStore { return &memStore{records: make(map[string]store.Record)} }

func (m *memStore) Load(_ context.Context, name string) (store.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[name]
	return r, ok, nil
}

func (m *memStore) Save(rec store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Station] = rec
}

func (m *memStore) RecordLap(lap store.Lap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.laps = append(m.laps, lap)
}

type postRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *postRecorder) Post(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *postRecorder) kinds() []notify.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

type fakeShots struct{}

func (fakeShots) Screenshot() ([]byte, error) { return []byte("png"), nil }

type rig struct {
	clock *clock.Fake
	rec   *fakeRecovery
	store *memStore
	posts *postRecorder
	run   *runstate.RunState
}

func newRig() *rig {
	return &rig{
		clock: clock.NewFake(t0),
		rec:   &fakeRecovery{},
		store: newMemStore(),
		posts: &postRecorder{},
		run:   runstate.New(),
	}
}

func (r *rig) scheduler(stations ...station.Station) *Scheduler {
	return New(Config{
		Stations: stations,
		Run:      r.run,
		Clock:    r.clock,
		Recovery: r.rec,
		Store:    r.store,
		Notify:   r.posts,
		Shots:    fakeShots{},
		Log:      zerolog.Nop(),
	})
}

func TestTick_FirstReadyStationWins(t *testing.T) {
	r := newRig()
	healing := &fakeStation{name: "healing"}
	crystal := &fakeStation{name: "crystal", ready: true}
	crop := &fakeStation{name: "crop", ready: true}
	s := r.scheduler(healing, crystal, crop)

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 0, healing.calls)
	assert.Equal(t, 1, crystal.calls)
	assert.Equal(t, 0, crop.calls, "one station per tick")
}

func TestTick_NothingReady(t *testing.T) {
	r := newRig()
	s := r.scheduler(&fakeStation{name: "drop"})

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, r.posts.kinds())
}

func TestTick_SuccessRecordsAndSaves(t *testing.T) {
	r := newRig()
	crop := &fakeStation{name: "crop", ready: true, stats: station.Statistics{
		Took:     time.Minute,
		Produced: map[string]int{"Crop": 30},
		Counters: map[string]int{"plots_tended": 8},
	}}
	s := r.scheduler(crop)

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	_, err = s.Tick(context.Background())
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Completions["crop"])
	assert.Equal(t, 60, stats.Produced["Crop"])
	assert.Equal(t, 16, stats.Counters["plots_tended"])
	assert.Equal(t, 2*time.Minute, stats.Busy)

	assert.Equal(t, 2, r.store.records["crop"].Cursor, "state saved after every complete")
	assert.Equal(t, []notify.Kind{notify.StationCompleted, notify.StationCompleted}, r.posts.kinds())
	assert.NotEmpty(t, r.posts.events[0].RunID)
	assert.Equal(t, 30, r.posts.events[0].Stats.Produced["Crop"])
}

func TestTick_LapCompleted(t *testing.T) {
	r := newRig()
	crystal := &fakeStation{name: "crystal", ready: true, stats: station.Statistics{
		Produced: map[string]int{"Gacha Crystal": 12},
	}}
	crystal.onComplete = func(n int) {
		r.clock.Advance(time.Minute)
		crystal.stats.Lap = n == 3
	}
	s := r.scheduler(crystal)

	for i := 0; i < 3; i++ {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []notify.Kind{
		notify.StationCompleted, notify.StationCompleted, notify.StationCompleted, notify.LapCompleted,
	}, r.posts.kinds())
	require.Len(t, r.store.laps, 1)
	lap := r.store.laps[0]
	assert.Equal(t, 1, lap.Number)
	assert.Equal(t, 36, lap.Produced)
	assert.Equal(t, 3*time.Minute, lap.Took)
	assert.Equal(t, s.RunID(), lap.RunID)
	assert.Equal(t, 1, r.posts.events[3].Totals.Laps)
}

func TestTick_LapEndsOnFailedLastBed(t *testing.T) {
	r := newRig()
	crystal := &fakeStation{name: "crystal", ready: true, stats: station.Statistics{
		Produced: map[string]int{"Gacha Crystal": 12},
	}}
	crystal.onComplete = func(n int) {
		r.clock.Advance(time.Minute)
		if n == 2 {
			crystal.stats.Lap = true
			crystal.err = errors.New("travel not initiated")
		}
	}
	s := r.scheduler(crystal)

	for i := 0; i < 2; i++ {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []notify.Kind{
		notify.StationCompleted, notify.LapCompleted, notify.ErrorOccurred, notify.Recovered,
	}, r.posts.kinds())
	require.Len(t, r.store.laps, 1)
	lap := r.store.laps[0]
	assert.Equal(t, 1, lap.Number)
	assert.Equal(t, 12, lap.Produced, "only the visit that succeeded counts")
	assert.Equal(t, 2*time.Minute, lap.Took)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Laps)
	assert.Equal(t, 1, stats.Failures["crystal"])

	// the next lap starts empty
	crystal.stats.Lap = false
	crystal.err = nil
	crystal.onComplete = func(int) {
		r.clock.Advance(time.Minute)
		crystal.stats.Lap = true
	}
	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, r.store.laps, 2)
	assert.Equal(t, 2, r.store.laps[1].Number)
	assert.Equal(t, 12, r.store.laps[1].Produced)
	assert.Equal(t, time.Minute, r.store.laps[1].Took)
}

func TestTick_FailureRecovered(t *testing.T) {
	r := newRig()
	r.rec.sessions = []recovery.Session{{Remedy: recovery.RemedyCloseMenu, Fixed: true}}
	grinding := &fakeStation{name: "grinding", ready: true, err: errors.New("container not accessible")}
	s := r.scheduler(grinding)

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Equal(t, []string{"grinding"}, r.rec.calls)
	assert.Equal(t, []notify.Kind{notify.ErrorOccurred, notify.Recovered}, r.posts.kinds())
	errEvent := r.posts.events[0]
	assert.Equal(t, "container not accessible", errEvent.Err)
	assert.Equal(t, []byte("png"), errEvent.Screenshot)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Failures["grinding"])
	assert.Equal(t, 1, stats.Recoveries)
	assert.Contains(t, r.store.records, "grinding", "failed stations still persist their state")
}

func TestTick_Unrecoverable(t *testing.T) {
	r := newRig()
	cause := errors.New("player did not spawn")
	r.rec.sessions = []recovery.Session{{Remedy: recovery.RemedyRelaunch, Err: errors.New("launch failed")}}
	s := r.scheduler(&fakeStation{name: "crystal", ready: true, err: cause})

	_, err := s.Tick(context.Background())
	require.ErrorIs(t, err, ErrUnrecoverable)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, s.Stats().Recoveries)
}

func TestTick_StopIsNeverRecovered(t *testing.T) {
	r := newRig()
	s := r.scheduler(&fakeStation{name: "crop", ready: true, err: runstate.ErrStopped})

	_, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, runstate.ErrStopped)
	assert.Empty(t, r.rec.calls)
	assert.Empty(t, r.posts.kinds())
}

func TestTick_RecoveryStopped(t *testing.T) {
	r := newRig()
	r.rec.err = runstate.ErrStopped
	s := r.scheduler(&fakeStation{name: "crop", ready: true, err: errors.New("x")})

	_, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, runstate.ErrStopped)
	assert.NotErrorIs(t, err, ErrUnrecoverable)
}

func TestTick_IdleWatchdog(t *testing.T) {
	r := newRig()
	crop := &fakeStation{name: "crop", ready: true, err: errors.New("plot not accessible")}
	crop.onComplete = func(int) { r.clock.Advance(6 * time.Minute) }
	s := r.scheduler(crop)

	for i := 0; i < 3; i++ {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"crop", "crop", "crop"}, r.rec.calls)

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "watchdog", r.rec.calls[3], "18 minutes without a completion forces a recovery pass")
	assert.Equal(t, 3, crop.calls, "the watchdog tick runs no station")

	kinds := r.posts.kinds()
	require.Len(t, kinds, 8)
	assert.Equal(t, []notify.Kind{notify.ErrorOccurred, notify.Recovered}, kinds[6:])
	idle := r.posts.events[6]
	assert.Equal(t, "watchdog", idle.Station)
	assert.Equal(t, errIdle.Error(), idle.Err)
	assert.Equal(t, []byte("png"), idle.Screenshot)
}

func TestTick_WaitingIsNotIdle(t *testing.T) {
	r := newRig()
	s := r.scheduler(&fakeStation{name: "healing"})

	for i := 0; i < 5; i++ {
		r.clock.Advance(10 * time.Minute)
		ran, err := s.Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, ran)
	}
	assert.Empty(t, r.rec.calls)
}

func TestTick_ReconnectResetsWatchdog(t *testing.T) {
	r := newRig()
	r.rec.sessions = []recovery.Session{{Remedy: recovery.RemedyRejoin, Fixed: true, Reconnected: true}}
	crop := &fakeStation{name: "crop", ready: true, err: errors.New("x")}
	crop.onComplete = func(int) { r.clock.Advance(16 * time.Minute) }
	s := r.scheduler(crop)

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"crop", "crop"}, r.rec.calls)
}

func TestRestore_FromStore(t *testing.T) {
	r := newRig()
	r.store.Save(store.Record{Station: "grinding", Phase: 2, Cursor: 5, Signalled: true})
	grinding := &fakeStation{name: "grinding"}
	crop := &fakeStation{name: "crop"}
	s := r.scheduler(grinding, crop)

	require.NoError(t, s.Restore(context.Background()))
	require.NotNil(t, grinding.restored)
	assert.Equal(t, station.State{Phase: 2, Cursor: 5, Signalled: true}, *grinding.restored)
	assert.Nil(t, crop.restored)
}

func TestStats_SnapshotIsDetached(t *testing.T) {
	r := newRig()
	s := r.scheduler(&fakeStation{name: "drop", ready: true, stats: station.Statistics{Counters: map[string]int{"dropped": 2}}})
	_, err := s.Tick(context.Background())
	require.NoError(t, err)

	snap := s.Stats()
	snap.Counters["dropped"] = 100
	assert.Equal(t, 2, s.Stats().Counters["dropped"])
}

func dispatcher() (*notify.Dispatcher, *notify.Recorder) {
	rec := &notify.Recorder{}
	return notify.NewDispatcher(zerolog.Nop(), 32, time.Second, rec), rec
}

func TestRun_StopsCleanly(t *testing.T) {
	r := newRig()
	d, rec := dispatcher()
	crop := &fakeStation{name: "crop", ready: true}
	crop.onComplete = func(n int) {
		if n == 2 {
			r.run.Stop()
		}
	}
	s := New(Config{Stations: []station.Station{crop}, Run: r.run, Clock: r.clock, Recovery: r.rec, Notify: d, Log: zerolog.Nop()})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 2, crop.calls)

	kinds := rec.Kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, notify.Stopped, kinds[len(kinds)-1], "stopped is the final event")
	assert.Equal(t, "stopped by operator", rec.Events()[len(kinds)-1].Err)
}

func TestRun_Unrecoverable(t *testing.T) {
	r := newRig()
	r.rec.sessions = []recovery.Session{{Remedy: recovery.RemedyCrashRestart}}
	d, rec := dispatcher()
	s := New(Config{
		Stations: []station.Station{&fakeStation{name: "crystal", ready: true, err: errors.New("travel failed")}},
		Run:      r.run,
		Clock:    r.clock,
		Recovery: r.rec,
		Notify:   d,
		Log:      zerolog.Nop(),
	})

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrUnrecoverable)
	assert.Equal(t, runstate.Stopping, r.run.State(), "the running flag is cleared")

	assert.Equal(t, []notify.Kind{notify.ErrorOccurred, notify.Stopped}, rec.Kinds())
	assert.Contains(t, rec.Events()[1].Err, "travel failed")
}

func TestRun_ContextCancelStops(t *testing.T) {
	r := newRig()
	ctx, cancel := context.WithCancel(context.Background())
	crop := &fakeStation{name: "crop", ready: true}
	crop.onComplete = func(n int) {
		if n == 1 {
			cancel()
			<-r.run.Done()
		}
	}
	s := r.scheduler(crop)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, crop.calls)
}

func TestRun_NoStations(t *testing.T) {
	r := newRig()
	assert.ErrorIs(t, r.scheduler().Run(context.Background()), ErrNoStations)
}

func TestPause_BlocksUntilResume(t *testing.T) {
	r := newRig()
	crop := &fakeStation{name: "crop", ready: true}
	s := r.scheduler(crop)
	s.Pause()

	done := make(chan error, 1)
	go func() {
		_, err := s.Tick(context.Background())
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("tick ran while paused")
	case <-time.After(50 * time.Millisecond):
	}

	s.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tick did not resume")
	}
	assert.Equal(t, 1, crop.calls)
}
