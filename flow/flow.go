// Package flow implements a retryable sign -> submit -> result workflow.
//
// A Flow starts Idle. Trigger moves it through AwaitingSignature and
// AwaitingServer to Success or Failure, where it stays until Reset. Every
// asynchronous continuation is tagged with the generation that started it, so
// results arriving after a Reset never touch the flow.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/galihrivanto/unipig/logging"
)

// State is the position of a flow in its lifecycle.
type State int

const (
	Idle State = iota
	AwaitingSignature
	AwaitingServer
	Success
	Failure
)

var stateNames = map[State]string{
	Idle:              "idle",
	AwaitingSignature: "awaiting-signature",
	AwaitingServer:    "awaiting-server",
	Success:           "success",
	Failure:           "failure",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Pending reports whether s is one of the in-flight states.
func (s State) Pending() bool {
	return s == AwaitingSignature || s == AwaitingServer
}

// Terminal reports whether s requires a Reset before reuse.
func (s State) Terminal() bool {
	return s == Success || s == Failure
}

// ErrBusy is returned by Trigger when the flow is not Idle.
var ErrBusy = errors.New("flow is not idle")

// SignFunc obtains the signature authorising a submission of trigger.
type SignFunc[P, S any] func(ctx context.Context, trigger P) (S, error)

// SubmitFunc sends the signed request and returns the server payload.
type SubmitFunc[P, S, R any] func(ctx context.Context, trigger P, signature S) (R, error)

// Snapshot is what the UI surface sees of a flow.
type Snapshot[P, S, R any] struct {
	State     State
	Trigger   P
	Signature S
	Result    R
	Err       error
}

// IsError reports a Failure.
func (s Snapshot[P, S, R]) IsError() bool { return s.State == Failure }

// IsSuccess reports a Success.
func (s Snapshot[P, S, R]) IsSuccess() bool { return s.State == Success }

type settings struct {
	minDuration time.Duration
	timeout     time.Duration
	onSuccess   []func(ctx context.Context)
	logger      logging.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Flow.
type Option func(*settings)

// WithMinDuration delays the publication of the server outcome until at least
// d has passed since the request was sent.
func WithMinDuration(d time.Duration) Option {
	return func(s *settings) { s.minDuration = d }
}

// WithTimeout bounds the AwaitingServer phase.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithOnSuccess registers mutators invoked once per Success, in order.
func WithOnSuccess(fns ...func(ctx context.Context)) Option {
	return func(s *settings) { s.onSuccess = append(s.onSuccess, fns...) }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) { s.logger = logging.OrNoop(l) }
}

// Flow is one sign -> submit -> result state machine. It is safe for
// concurrent use.
type Flow[P, S, R any] struct {
	settings
	sign   SignFunc[P, S]
	submit SubmitFunc[P, S, R]

	// notifyMu orders each state change with its delivery, so observers see
	// changes in the order they happened. Held before mu.
	notifyMu sync.Mutex

	mu         sync.Mutex
	snap       Snapshot[P, S, R]
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	observers  map[int]func(Snapshot[P, S, R])
	nextID     int
}

// New returns an Idle flow.
func New[P, S, R any](sign SignFunc[P, S], submit SubmitFunc[P, S, R], opts ...Option) *Flow[P, S, R] {
	f := &Flow[P, S, R]{
		settings: settings{
			logger: logging.Noop{},
			now:    time.Now,
			sleep:  sleepCtx,
		},
		sign:      sign,
		submit:    submit,
		observers: make(map[int]func(Snapshot[P, S, R])),
	}
	for _, opt := range opts {
		opt(&f.settings)
	}
	return f
}

// Snapshot returns the current state.
func (f *Flow[P, S, R]) Snapshot() Snapshot[P, S, R] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// State returns the current state.
func (f *Flow[P, S, R]) State() State {
	return f.Snapshot().State
}

// Subscribe registers fn to receive every state change, in order. The returned
// function removes it; after it returns fn is no longer called for later
// changes. fn must not call Trigger or Reset on the same flow.
func (f *Flow[P, S, R]) Subscribe(fn func(Snapshot[P, S, R])) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.observers[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.observers, id)
			f.mu.Unlock()
		})
	}
}

// Trigger starts a run for trigger. It fails with ErrBusy unless the flow is
// Idle, leaving the state unchanged. The run continues after ctx is done only
// until its next suspension point.
func (f *Flow[P, S, R]) Trigger(ctx context.Context, trigger P) error {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if f.snap.State != Idle {
		state := f.snap.State
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, state)
	}

	f.generation++
	gen := f.generation
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	f.snap = Snapshot[P, S, R]{State: AwaitingSignature, Trigger: trigger}
	snap, observers := f.snap, f.observersLocked()
	f.mu.Unlock()

	notify(observers, snap)
	go f.run(runCtx, gen, trigger)
	return nil
}

// Reset returns the flow to Idle and clears the trigger payload, signature,
// result and error. A run still in flight is cancelled and its late results
// are dropped. Reset on an Idle flow does nothing.
func (f *Flow[P, S, R]) Reset() {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if f.snap.State == Idle {
		f.mu.Unlock()
		return
	}
	f.generation++
	f.closeRunLocked()
	f.snap = Snapshot[P, S, R]{}
	snap, observers := f.snap, f.observersLocked()
	f.mu.Unlock()

	notify(observers, snap)
}

// Wait blocks until the current run reaches a terminal state or is reset,
// and returns the snapshot at that moment. An Idle flow returns immediately.
func (f *Flow[P, S, R]) Wait(ctx context.Context) (Snapshot[P, S, R], error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return f.Snapshot(), ctx.Err()
		}
	}
	return f.Snapshot(), nil
}

func (f *Flow[P, S, R]) run(ctx context.Context, gen uint64, trigger P) {
	signature, err := f.sign(ctx, trigger)
	if err != nil {
		f.logger.Printf("flow: signing failed: %v", err)
		f.finish(gen, Failure, *new(R), err)
		return
	}
	if !f.advance(gen, func(s *Snapshot[P, S, R]) {
		s.State = AwaitingServer
		s.Signature = signature
	}) {
		return
	}

	result, err := f.request(ctx, trigger, signature)
	if err != nil {
		f.logger.Printf("flow: request failed: %v", err)
		f.finish(gen, Failure, result, err)
		return
	}
	if !f.settle(gen, Success, result, nil) {
		return
	}
	// mutators run before waiters are released and outlive a Reset
	mctx := context.WithoutCancel(ctx)
	for _, fn := range f.onSuccess {
		fn(mctx)
	}
	f.release(gen)
}

// request submits and holds the outcome until the minimum duration has passed.
func (f *Flow[P, S, R]) request(ctx context.Context, trigger P, signature S) (R, error) {
	started := f.now()

	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	result, err := f.submit(reqCtx, trigger, signature)

	if remaining := f.minDuration - f.now().Sub(started); remaining > 0 {
		if sleepErr := f.sleep(ctx, remaining); sleepErr != nil && err == nil {
			err = sleepErr
		}
	}
	return result, err
}

// advance applies mutate when gen is still current and notifies observers.
func (f *Flow[P, S, R]) advance(gen uint64, mutate func(*Snapshot[P, S, R])) bool {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return false
	}
	mutate(&f.snap)
	snap, observers := f.snap, f.observersLocked()
	f.mu.Unlock()

	notify(observers, snap)
	return true
}

// finish moves a current run into a terminal state and releases waiters.
func (f *Flow[P, S, R]) finish(gen uint64, state State, result R, err error) {
	if f.settle(gen, state, result, err) {
		f.release(gen)
	}
}

// settle records the terminal state of a current run.
func (f *Flow[P, S, R]) settle(gen uint64, state State, result R, err error) bool {
	return f.advance(gen, func(s *Snapshot[P, S, R]) {
		s.State = state
		s.Result = result
		s.Err = err
	})
}

// release ends a current run.
func (f *Flow[P, S, R]) release(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen == f.generation {
		f.closeRunLocked()
	}
}

// closeRunLocked cancels the run context and releases Wait callers.
func (f *Flow[P, S, R]) closeRunLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

func (f *Flow[P, S, R]) observersLocked() []func(Snapshot[P, S, R]) {
	out := make([]func(Snapshot[P, S, R]), 0, len(f.observers))
	for _, fn := range f.observers {
		out = append(out, fn)
	}
	return out
}

func notify[P, S, R any](observers []func(Snapshot[P, S, R]), snap Snapshot[P, S, R]) {
	for _, fn := range observers {
		fn(snap)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
