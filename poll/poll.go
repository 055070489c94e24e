// Package poll repeats an action on a fixed interval until its result
// satisfies a stop predicate or the poller is stopped.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/galihrivanto/unipig/logging"
)

var (
	// ErrRunning is returned by Start while a previous run is active.
	ErrRunning = errors.New("poller already running")

	// ErrPollingTimeout is delivered when the tick budget runs out.
	ErrPollingTimeout = errors.New("polling timed out")
)

// Action performs one poll. ctx is cancelled when the poller stops.
type Action[R any] func(ctx context.Context) (R, error)

// Outcome is the final result of a run.
type Outcome[R any] struct {
	Result R
	Err    error
	Ticks  int
}

type settings struct {
	failFast  bool
	immediate bool
	maxTicks  int
	logger    logging.Logger
}

// Option configures a Controller.
type Option func(*settings)

// WithFailFast stops on the first action error and delivers it.
// By default errors are logged and polling continues.
func WithFailFast() Option {
	return func(s *settings) { s.failFast = true }
}

// WithImmediate runs the first tick at once instead of after one interval.
func WithImmediate() Option {
	return func(s *settings) { s.immediate = true }
}

// WithMaxTicks delivers ErrPollingTimeout after n non-terminal ticks (0 => unlimited).
func WithMaxTicks(n int) Option {
	return func(s *settings) { s.maxTicks = n }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.logger = logging.OrNoop(l) }
}

// Controller runs at most one polling loop at a time.
type Controller[R any] struct {
	settings

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a stopped controller.
func New[R any](opts ...Option) *Controller[R] {
	c := &Controller[R]{settings: settings{logger: logging.Noop{}}}
	for _, opt := range opts {
		opt(&c.settings)
	}
	return c
}

// Running reports whether a loop is active.
func (c *Controller[R]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start begins polling. The returned channel receives exactly one Outcome when
// stop reports true (or on failure with WithFailFast, or when the tick budget
// is spent) and is then closed. After Stop the channel is closed without a
// value. Cancelling ctx behaves like Stop.
func (c *Controller[R]) Start(ctx context.Context, interval time.Duration, action Action[R], stop func(R) bool) (<-chan Outcome[R], error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil, ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan Outcome[R], 1)
	done := make(chan struct{})
	c.running, c.cancel, c.done = true, cancel, done

	go c.loop(runCtx, done, out, interval, action, stop)
	return out, nil
}

// Stop cancels the pending tick and any in-flight action, then waits for the
// loop to exit. Once Stop returns no action runs and nothing is delivered.
// Stop must not be called from inside an action.
func (c *Controller[R]) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	done := c.done
	c.mu.Unlock()

	<-done
}

// current reports whether the run owning done is still live.
// Caller must hold c.mu.
func (c *Controller[R]) current(ctx context.Context, done chan struct{}) bool {
	return ctx.Err() == nil && c.running && c.done == done
}

func (c *Controller[R]) loop(ctx context.Context, done chan struct{}, out chan Outcome[R], interval time.Duration, action Action[R], stop func(R) bool) {
	defer close(done)
	defer close(out)

	first := interval
	if c.immediate {
		first = 0
	}
	timer := time.NewTimer(first)
	defer timer.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			c.finish(done)
			return
		case <-timer.C:
		}

		c.mu.Lock()
		live := c.current(ctx, done)
		c.mu.Unlock()
		if !live {
			c.finish(done)
			return
		}

		ticks++
		result, err := action(ctx)

		var outcome *Outcome[R]
		switch {
		case err != nil && c.failFast:
			outcome = &Outcome[R]{Err: err, Ticks: ticks}
		case err != nil:
			c.logger.Printf("poll tick %d failed: %v", ticks, err)
		case stop(result):
			outcome = &Outcome[R]{Result: result, Ticks: ticks}
		}
		if outcome == nil && c.maxTicks > 0 && ticks >= c.maxTicks {
			outcome = &Outcome[R]{Err: fmt.Errorf("after %d ticks: %w", ticks, ErrPollingTimeout), Ticks: ticks}
		}

		if outcome != nil {
			c.mu.Lock()
			if c.current(ctx, done) {
				out <- *outcome
				c.running = false
				c.cancel()
			}
			c.mu.Unlock()
			return
		}

		timer.Reset(interval)
	}
}

// finish marks the controller stopped when the loop ends on ctx cancellation
// from outside Stop.
func (c *Controller[R]) finish(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done && c.running {
		c.running = false
		c.cancel()
	}
}
