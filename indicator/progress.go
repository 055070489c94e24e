// Package indicator holds the timing logic behind the decorative progress
// bar and balance pulses, isolated from any rendering.
package indicator

import (
	"math/rand"
	"sort"
	"strings"
	"time"
)

const (
	BaseInterval    = 500 * time.Millisecond
	MaximumDuration = 10 * time.Second
	MinimumWidth    = 0.1
	MaximumWidth    = 0.975

	// first visible step lands early so the bar never looks stuck
	firstStep = 0.15
)

// Granularity is the number of keyframe steps after the start frame.
var Granularity = int(MaximumDuration / BaseInterval)

// Curve is a set of keyframes: at Times[i] (fraction of MaximumDuration) the
// bar is Widths[i] (fraction of full width) wide.
type Curve struct {
	Times  []float64
	Widths []float64
}

// ProgressCurve builds the loading-bar keyframes from rng. Widths rise
// monotonically from 0 through MinimumWidth to MaximumWidth.
func ProgressCurve(rng *rand.Rand) Curve {
	times := make([]float64, 0, Granularity+1)
	times = append(times, 0, firstStep/MaximumDuration.Seconds())
	for i := 2; i <= Granularity; i++ {
		times = append(times, float64(i)/float64(Granularity))
	}

	random := make([]float64, Granularity-2)
	for i := range random {
		random[i] = rng.Float64()
	}
	sort.Float64s(random)

	widths := make([]float64, 0, Granularity+1)
	widths = append(widths, 0, MinimumWidth)
	for _, r := range random {
		widths = append(widths, MinimumWidth+r*(MaximumWidth-MinimumWidth))
	}
	widths = append(widths, MaximumWidth)

	return Curve{Times: times, Widths: widths}
}

// At returns the width at elapsed time, interpolating linearly between frames.
func (c Curve) At(elapsed time.Duration) float64 {
	if len(c.Times) == 0 {
		return 0
	}
	t := elapsed.Seconds() / MaximumDuration.Seconds()
	if t <= 0 {
		return c.Widths[0]
	}
	for i := 1; i < len(c.Times); i++ {
		if t <= c.Times[i] {
			span := c.Times[i] - c.Times[i-1]
			if span <= 0 {
				return c.Widths[i]
			}
			frac := (t - c.Times[i-1]) / span
			return c.Widths[i-1] + frac*(c.Widths[i]-c.Widths[i-1])
		}
	}
	return c.Widths[len(c.Widths)-1]
}

// Bar renders width as a text bar of cells characters.
func Bar(width float64, cells int) string {
	filled := int(width*float64(cells) + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > cells {
		filled = cells
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", cells-filled) + "]"
}
