// Package store persists station state between runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Record is the persisted state of one station.
type Record struct {
	Station       string
	Phase         int
	Cursor        int
	LastCompleted time.Time
	ReadyAt       time.Time
	Signalled     bool
	UpdatedAt     time.Time
}

// Lap is one finished pass over the crystal beds.
type Lap struct {
	RunID      string
	Number     int
	FinishedAt time.Time
	Took       time.Duration
	Produced   int
}

// SQLite writes on a single goroutine so the driver never waits on disk.
// Reads go straight to the database. Station records are coalesced: only
// the newest record per station is waiting at any time, so a write can
// never be overtaken by an older one.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger

	mu      sync.Mutex
	pending map[string]Record
	wake    chan struct{}

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqLap reqKind = iota + 1
	reqFlush
)

type req struct {
	kind reqKind

	lap  Lap
	done chan struct{}
}

func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
		ch:      make(chan req, 256),
		pending: make(map[string]Record),
		wake:    make(chan struct{}, 1),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS station_state (
			station TEXT PRIMARY KEY,
			phase INTEGER NOT NULL,
			cursor INTEGER NOT NULL,
			last_completed TEXT NOT NULL,
			ready_at TEXT NOT NULL,
			signalled INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS laps (
			run_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			finished_at TEXT NOT NULL,
			took_ms INTEGER NOT NULL,
			produced INTEGER NOT NULL,
			PRIMARY KEY (run_id, number)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Save queues rec, replacing any record for the same station that is not
// written yet.
func (s *SQLite) Save(rec Record) {
	if s == nil || s.closed.Load() {
		return
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	s.pending[rec.Station] = rec
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RecordLap queues a lap row. Laps are informational and dropped when the
// queue is full.
func (s *SQLite) RecordLap(lap Lap) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqLap, lap: lap}:
	default:
	}
}

// Flush waits until every queued write is on disk.
func (s *SQLite) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLite) loop() {
	for {
		select {
		case <-s.wake:
			s.writePending()
		case r, ok := <-s.ch:
			if !ok {
				s.writePending()
				return
			}
			switch r.kind {
			case reqLap:
				if err := s.writeLap(r.lap); err != nil {
					s.log.Error().Err(err).Int("lap", r.lap.Number).Msg("record lap")
				}
			case reqFlush:
				s.writePending()
				close(r.done)
			}
		}
	}
}

func (s *SQLite) writePending() {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]Record, len(batch))
	s.mu.Unlock()

	for _, rec := range batch {
		if err := s.writeRecord(rec); err != nil {
			s.log.Error().Err(err).Str("station", rec.Station).Msg("save station state")
		}
	}
}

func (s *SQLite) writeRecord(rec Record) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO station_state(station,phase,cursor,last_completed,ready_at,signalled,updated_at) VALUES(?,?,?,?,?,?,?)`,
		rec.Station, rec.Phase, rec.Cursor,
		formatTime(rec.LastCompleted), formatTime(rec.ReadyAt),
		boolInt(rec.Signalled), formatTime(rec.UpdatedAt))
	return err
}

func (s *SQLite) writeLap(lap Lap) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO laps(run_id,number,finished_at,took_ms,produced) VALUES(?,?,?,?,?)`,
		lap.RunID, lap.Number, formatTime(lap.FinishedAt), lap.Took.Milliseconds(), lap.Produced)
	return err
}

// Load returns the stored state of station.
func (s *SQLite) Load(ctx context.Context, station string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT station,phase,cursor,last_completed,ready_at,signalled,updated_at FROM station_state WHERE station=?`, station)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load %s: %w", station, err)
	}
	return rec, true, nil
}

// List returns every stored station ordered by name.
func (s *SQLite) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station,phase,cursor,last_completed,ready_at,signalled,updated_at FROM station_state ORDER BY station`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Reset forgets station. Unknown names are not an error.
func (s *SQLite) Reset(ctx context.Context, station string) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM station_state WHERE station=?`, station)
	return err
}

// Laps returns the most recent laps, newest first.
func (s *SQLite) Laps(ctx context.Context, limit int) ([]Lap, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,number,finished_at,took_ms,produced FROM laps ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lap
	for rows.Next() {
		var (
			lap      Lap
			finished string
			tookMS   int64
		)
		if err := rows.Scan(&lap.RunID, &lap.Number, &finished, &tookMS, &lap.Produced); err != nil {
			return nil, err
		}
		lap.FinishedAt = parseTime(finished)
		lap.Took = time.Duration(tookMS) * time.Millisecond
		out = append(out, lap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec                    Record
		last, readyAt, updated string
		signalled              int
	)
	if err := sc.Scan(&rec.Station, &rec.Phase, &rec.Cursor, &last, &readyAt, &signalled, &updated); err != nil {
		return Record{}, err
	}
	rec.LastCompleted = parseTime(last)
	rec.ReadyAt = parseTime(readyAt)
	rec.UpdatedAt = parseTime(updated)
	rec.Signalled = signalled != 0
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
