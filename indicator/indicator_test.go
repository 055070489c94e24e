package indicator

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressCurveShape(t *testing.T) {
	c := ProgressCurve(rand.New(rand.NewSource(1)))

	require.Len(t, c.Times, Granularity+1)
	require.Len(t, c.Widths, Granularity+1)

	assert.Equal(t, 0.0, c.Times[0])
	assert.InDelta(t, 0.015, c.Times[1], 1e-9)
	assert.Equal(t, 1.0, c.Times[len(c.Times)-1])
	assert.True(t, sort.Float64sAreSorted(c.Times))

	assert.Equal(t, 0.0, c.Widths[0])
	assert.Equal(t, MinimumWidth, c.Widths[1])
	assert.Equal(t, MaximumWidth, c.Widths[len(c.Widths)-1])
	assert.True(t, sort.Float64sAreSorted(c.Widths))
}

func TestProgressCurveDeterministic(t *testing.T) {
	a := ProgressCurve(rand.New(rand.NewSource(42)))
	b := ProgressCurve(rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestCurveAt(t *testing.T) {
	c := ProgressCurve(rand.New(rand.NewSource(7)))

	assert.Equal(t, 0.0, c.At(0))
	assert.InDelta(t, MinimumWidth, c.At(150*time.Millisecond), 1e-9)
	assert.InDelta(t, MaximumWidth, c.At(MaximumDuration), 1e-9)
	assert.Equal(t, MaximumWidth, c.At(time.Minute))

	mid := c.At(75 * time.Millisecond)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, MinimumWidth)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "[          ]", Bar(0, 10))
	assert.Equal(t, "[#####     ]", Bar(0.5, 10))
	assert.Equal(t, "[##########]", Bar(MaximumWidth, 10))
	assert.Equal(t, "[##########]", Bar(2, 10))
	assert.Equal(t, "[    ]", Bar(-1, 4))
}

func TestPulseTracker(t *testing.T) {
	start := time.Unix(0, 0)
	p := NewPulseTracker(10)

	assert.False(t, p.Observe(10, start), "unchanged total")
	assert.False(t, p.Observe(9, start), "decrease")
	assert.True(t, p.Observe(11, start))
	assert.False(t, p.Observe(12, start.Add(100*time.Millisecond)), "too soon")
	assert.True(t, p.Observe(12, start.Add(PulseSpacing)))
	assert.Len(t, p.Active(), 2)

	p.Done(11)
	assert.Equal(t, []Pulse{{Total: 12, At: start.Add(PulseSpacing)}}, p.Active())

	p.Expire(start.Add(PulseSpacing + PulseDuration))
	assert.Empty(t, p.Active())
}

func TestPulseTrackerFirstObservationPrimes(t *testing.T) {
	var p PulseTracker
	now := time.Unix(0, 0)

	assert.False(t, p.Observe(100, now))
	assert.True(t, p.Observe(101, now))
}
