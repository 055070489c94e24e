package indicator

import (
	"sync"
	"time"
)

// PulseSpacing is the minimum gap between two pulses.
const PulseSpacing = 750 * time.Millisecond

// PulseDuration is how long a pulse stays visible.
const PulseDuration = 5 * time.Second

// Pulse marks one visible balance increase.
type Pulse struct {
	Total float64
	At    time.Time
}

// PulseTracker decides when a growing total deserves a new pulse: the total
// must exceed every total seen so far, must not already be pulsing, and the
// previous pulse must be at least PulseSpacing old.
type PulseTracker struct {
	mu      sync.Mutex
	largest float64
	primed  bool
	active  []Pulse
}

// NewPulseTracker starts tracking from initial; initial itself never pulses.
func NewPulseTracker(initial float64) *PulseTracker {
	return &PulseTracker{largest: initial, primed: true}
}

// Observe records total at now and reports whether a pulse was started.
func (p *PulseTracker) Observe(total float64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		p.largest, p.primed = total, true
		return false
	}
	if total <= p.largest {
		return false
	}
	for _, a := range p.active {
		if a.Total == total {
			return false
		}
	}
	if n := len(p.active); n > 0 && now.Sub(p.active[n-1].At) < PulseSpacing {
		return false
	}

	p.active = append(p.active, Pulse{Total: total, At: now})
	p.largest = total
	return true
}

// Done retires the pulse for total.
func (p *PulseTracker) Done(total float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.active[:0]
	for _, a := range p.active {
		if a.Total != total {
			kept = append(kept, a)
		}
	}
	p.active = kept
}

// Expire retires every pulse older than PulseDuration.
func (p *PulseTracker) Expire(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.active[:0]
	for _, a := range p.active {
		if now.Sub(a.At) < PulseDuration {
			kept = append(kept, a)
		}
	}
	p.active = kept
}

// Active returns the pulses currently shown.
func (p *PulseTracker) Active() []Pulse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Pulse(nil), p.active...)
}
