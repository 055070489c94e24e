// Package faucet claims tokens from the Twitter faucet: the player tweets a
// support message and the client polls the server until the claim lands.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/logging"
	"github.com/galihrivanto/unipig/poll"
	"github.com/galihrivanto/unipig/session"
	"github.com/galihrivanto/unipig/wallet"
)

// DefaultInterval is the delay between two status checks.
const DefaultInterval = 5 * time.Second

// ErrStopped is returned by Run when Stop interrupts the wait.
var ErrStopped = errors.New("faucet polling stopped")

// Team is the side a player joined.
type Team int

const (
	UNI Team = iota
	PIGI
)

func (t Team) String() string {
	if t == PIGI {
		return "PIGI"
	}
	return "UNI"
}

// ParseTeam parses "UNI" or "PIGI", case insensitively.
func ParseTeam(s string) (Team, error) {
	switch strings.ToUpper(s) {
	case "UNI":
		return UNI, nil
	case "PIGI":
		return PIGI, nil
	}
	return UNI, fmt.Errorf("unknown team %q", s)
}

// IntentURL returns the prefilled tweet for address.
func IntentURL(address string, team Team) string {
	v := url.Values{}
	v.Set("text", "༼ つ ◕_◕ ༽つ\n@UnipigExchange please give 🦄UNI and 🐷PIGI tokens to my Layer 2 wallet "+address)
	v.Set("url", "https://unipig.exchange")
	v.Set("hashtags", "team"+team.String())
	return "https://twitter.com/intent/tweet?" + v.Encode()
}

// Phase is what the faucet page shows.
type Phase int

const (
	Loading Phase = iota
	Error
	Ready
	Waiting
	Claimed
)

var phaseNames = [...]string{"loading", "error", "ready", "waiting", "claimed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// PhaseOf derives the page phase. A failed fetch is an error; no status yet
// or an unloaded tweet button is loading; a claimable status is ready until
// polling starts.
func PhaseOf(status *api.FaucetStatus, fetchErr error, loaded, polling bool) Phase {
	switch {
	case fetchErr != nil:
		return Error
	case status == nil:
		return Loading
	case !status.CanFaucet:
		return Claimed
	case !loaded:
		return Loading
	case polling:
		return Waiting
	default:
		return Ready
	}
}

// Fetcher reads the faucet status.
type Fetcher interface {
	FaucetData(ctx context.Context, req api.PermissionRequest) (*api.FaucetStatus, error)
}

// Option configures a Faucet.
type Option func(*Faucet)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(f *Faucet) { f.interval = d }
}

// WithLauncher sets how the tweet intent is shown.
func WithLauncher(l Launcher) Option {
	return func(f *Faucet) { f.launcher = l }
}

// WithSession records the twitter source on the session once claimed.
func WithSession(s *session.Session) Option {
	return func(f *Faucet) { f.session = s }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) Option {
	return func(f *Faucet) { f.logger = logging.OrNoop(l) }
}

// WithPollOptions passes options to the underlying poller.
func WithPollOptions(opts ...poll.Option) Option {
	return func(f *Faucet) { f.pollOpts = append(f.pollOpts, opts...) }
}

// WithPhaseHook is called on every phase change. Changes caused by a poll
// tick are reported from the polling goroutine.
func WithPhaseHook(fn func(Phase, *api.FaucetStatus)) Option {
	return func(f *Faucet) { f.hook = fn }
}

// Faucet runs the Twitter faucet for one wallet.
type Faucet struct {
	client   Fetcher
	signer   wallet.Signer
	launcher Launcher
	session  *session.Session
	interval time.Duration
	logger   logging.Logger
	pollOpts []poll.Option
	hook     func(Phase, *api.FaucetStatus)
	poller   *poll.Controller[*api.FaucetStatus]

	mu     sync.Mutex
	phase  Phase
	status *api.FaucetStatus
	cancel context.CancelFunc
}

// New creates a faucet for signer.
func New(client Fetcher, signer wallet.Signer, opts ...Option) *Faucet {
	f := &Faucet{
		client:   client,
		signer:   signer,
		interval: DefaultInterval,
		logger:   logging.Noop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.poller = poll.New[*api.FaucetStatus](append([]poll.Option{poll.WithLogger(f.logger)}, f.pollOpts...)...)
	return f
}

// Phase returns the current phase and the last status seen.
func (f *Faucet) Phase() (Phase, *api.FaucetStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, f.status
}

// Run signs a permission, fetches the status and, when the wallet can still
// claim, shows the tweet intent and polls until the claim is reported.
// It returns the final status.
func (f *Faucet) Run(ctx context.Context, team Team) (*api.FaucetStatus, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	f.set(Loading, nil)

	permission, err := wallet.DerivePermission(runCtx, f.signer, nil)
	if err != nil {
		return nil, f.fail(ctx, runCtx, nil, err)
	}
	req := api.NewPermissionRequest(f.signer.From(), permission)

	status, err := f.client.FaucetData(runCtx, req)
	if err != nil {
		f.logger.Printf("faucet data: %v", err)
		return nil, f.fail(ctx, runCtx, nil, err)
	}
	if !status.CanFaucet {
		f.claimed(status)
		return status, nil
	}

	if f.launcher != nil {
		release, err := f.launcher.Launch(runCtx, IntentURL(f.signer.From(), team))
		if err != nil {
			return status, f.fail(ctx, runCtx, status, fmt.Errorf("failed to show tweet: %w", err))
		}
		defer release()
	}
	if runCtx.Err() != nil {
		return status, f.fail(ctx, runCtx, status, runCtx.Err())
	}
	f.set(Waiting, status)

	outcomes, err := f.poller.Start(runCtx, f.interval, func(ctx context.Context) (*api.FaucetStatus, error) {
		return f.tick(ctx, req)
	}, func(s *api.FaucetStatus) bool {
		return s != nil && !s.CanFaucet
	})
	if err != nil {
		return status, err
	}

	outcome, ok := <-outcomes
	if !ok {
		return status, f.fail(ctx, runCtx, status, ErrStopped)
	}
	if outcome.Err != nil {
		return status, f.fail(ctx, runCtx, status, outcome.Err)
	}

	f.claimed(outcome.Result)
	return outcome.Result, nil
}

// tick fetches the status once. A failed fetch shows the error phase while
// polling goes on; the next good answer returns to waiting.
func (f *Faucet) tick(ctx context.Context, req api.PermissionRequest) (*api.FaucetStatus, error) {
	status, err := f.client.FaucetData(ctx, req)
	if ctx.Err() != nil {
		return status, err
	}

	phase, _ := f.Phase()
	switch {
	case err != nil:
		if phase != Error {
			f.set(Error, nil)
		}
	case phase == Error && status != nil && status.CanFaucet:
		f.set(Waiting, status)
	}
	return status, err
}

// fail maps an error of the run to what Run returns. A Stop yields
// ErrStopped and a cancelled caller its context error; both leave the phase.
func (f *Faucet) fail(parent, run context.Context, status *api.FaucetStatus, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case run.Err() != nil:
		return ErrStopped
	}
	f.set(Error, status)
	return err
}

// Stop cancels a pending Run, wherever it is suspended; that Run returns
// ErrStopped.
func (f *Faucet) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.poller.Stop()
}

func (f *Faucet) claimed(status *api.FaucetStatus) {
	f.set(Claimed, status)
	if f.session != nil && !f.session.HasSource(session.SourceTwitter) {
		f.session.AddSource(session.SourceTwitter)
	}
}

func (f *Faucet) set(phase Phase, status *api.FaucetStatus) {
	f.mu.Lock()
	f.phase, f.status = phase, status
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(phase, status)
	}
}
