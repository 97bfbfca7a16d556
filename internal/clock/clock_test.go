package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockNow(t *testing.T) {
	clk := RealClock{}
	assert.False(t, clk.Now().IsZero())
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)
	assert.True(t, clk.Now().Equal(start))

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), clk.Now())

	later := start.Add(time.Hour)
	clk.Set(later)
	assert.Equal(t, later, clk.Now())
}
