package notify

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// LogSink writes events to the structured log.
type LogSink struct {
	Log zerolog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Send(_ context.Context, e Event) error {
	ev := s.Log.Info()
	if e.Kind == ErrorOccurred || e.Kind == Stopped {
		ev = s.Log.Warn()
	}
	ev = ev.Str("event", string(e.Kind)).Str("run", e.RunID)
	if e.Station != "" {
		ev = ev.Str("station", e.Station)
	}
	if e.Stats != nil {
		ev = ev.Dur("took", e.Stats.Took).Interface("produced", e.Stats.Produced)
	}
	if e.Totals != nil {
		ev = ev.Int("laps", e.Totals.Laps).Interface("totals", e.Totals.Produced)
	}
	if e.Err != "" {
		ev = ev.Str("error", e.Err)
	}
	if len(e.Screenshot) > 0 {
		ev = ev.Str("screenshot", humanize.Bytes(uint64(len(e.Screenshot))))
	}
	ev.Msg("notification")
	return nil
}

// Recorder keeps every event; used by tests and the GUI history.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (*Recorder) Name() string { return "recorder" }

func (r *Recorder) Send(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds lists the recorded event kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
