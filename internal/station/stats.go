package station

import (
	"maps"
	"time"
)

// Statistics describes one Complete call.
type Statistics struct {
	Station  string
	Started  time.Time
	Took     time.Duration
	Produced map[string]int
	Counters map[string]int

	// Refilled is set when consumables had to be restocked on this visit.
	Refilled bool
	// Lap is set when this call finished a full rotation over the beds.
	Lap bool
	// Phase is the phase the station was in when the call started.
	Phase string
}

func newStats(name string, started time.Time) Statistics {
	return Statistics{
		Station:  name,
		Started:  started,
		Produced: make(map[string]int),
		Counters: make(map[string]int),
	}
}

func (s *Statistics) finish(now time.Time) {
	s.Took = now.Sub(s.Started)
}

// Totals aggregates statistics over a run. It is owned by the driver;
// readers get a Clone.
type Totals struct {
	Started     time.Time
	Completions map[string]int
	Failures    map[string]int
	Produced    map[string]int
	Counters    map[string]int
	Laps        int
	Recoveries  int
	Busy        time.Duration
}

func NewTotals(started time.Time) *Totals {
	return &Totals{
		Started:     started,
		Completions: make(map[string]int),
		Failures:    make(map[string]int),
		Produced:    make(map[string]int),
		Counters:    make(map[string]int),
	}
}

// Add folds one successful completion in. Produced counts only grow.
func (t *Totals) Add(s Statistics) {
	t.Completions[s.Station]++
	for k, v := range s.Produced {
		if v > 0 {
			t.Produced[k] += v
		}
	}
	for k, v := range s.Counters {
		t.Counters[k] += v
	}
	if s.Refilled {
		t.Counters["refills"]++
	}
	if s.Lap {
		t.Laps++
	}
	t.Busy += s.Took
}

// Fail records a failed completion.
func (t *Totals) Fail(station string) {
	t.Failures[station]++
}

// Clone returns a deep copy safe to hand to another goroutine.
func (t *Totals) Clone() Totals {
	c := *t
	c.Completions = maps.Clone(t.Completions)
	c.Failures = maps.Clone(t.Failures)
	c.Produced = maps.Clone(t.Produced)
	c.Counters = maps.Clone(t.Counters)
	return c
}

// Clone returns a deep copy of s.
func (s Statistics) Clone() Statistics {
	c := s
	c.Produced = maps.Clone(s.Produced)
	c.Counters = maps.Clone(s.Counters)
	return c
}
