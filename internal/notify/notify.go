// Package notify delivers run events to the operator. Delivery happens on
// a background worker; posting never blocks the driver.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ConserveLee/farmbot/internal/station"
)

// Kind names an event.
type Kind string

const (
	StationCompleted Kind = "station_completed"
	ErrorOccurred    Kind = "error_occurred"
	LapCompleted     Kind = "lap_completed"
	Recovered        Kind = "recovered"
	Stopped          Kind = "stopped"
)

// Event is a self-contained snapshot; it never references live driver
// state.
type Event struct {
	Kind    Kind
	RunID   string
	At      time.Time
	Station string

	Stats  *station.Statistics
	Totals *station.Totals

	// Err is the error text; the error value itself stays on the driver.
	Err        string
	Screenshot []byte // PNG
}

// Sink delivers one event.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Dispatcher queues events for its sinks.
type Dispatcher struct {
	sinks   []Sink
	ch      chan Event
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

func NewDispatcher(log zerolog.Logger, queue int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if queue < 1 {
		queue = 1
	}
	return &Dispatcher{
		sinks:   sinks,
		ch:      make(chan Event, queue),
		timeout: timeout,
		log:     log.With().Str("component", "notify").Logger(),
	}
}

// Post queues e and returns at once. Events are dropped when the queue is
// full or the dispatcher is closed.
func (d *Dispatcher) Post(e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.log.Warn().Str("event", string(e.Kind)).Msg("notification dropped: queue full")
	}
}

// Dropped counts events lost to a full queue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Close stops accepting events. Run drains what is queued and returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
}

// Run delivers events until Close. A failing sink is logged and skipped;
// it never stops the worker.
func (d *Dispatcher) Run(ctx context.Context) error {
	for e := range d.ch {
		for _, s := range d.sinks {
			d.deliver(ctx, s, e)
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, e Event) {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := s.Send(sendCtx, e); err != nil {
		d.log.Error().Err(err).Str("sink", s.Name()).Str("event", string(e.Kind)).Msg("notification failed")
	}
}
