// Package session owns the per-wallet caches that successful flows refresh.
package session

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/indicator"
	"github.com/galihrivanto/unipig/logging"
	"github.com/galihrivanto/unipig/wallet"
)

// PermissionTTL is how long a cached permission is reused for reads.
const PermissionTTL = 10 * time.Minute

// Source records how a wallet received tokens.
type Source string

const (
	SourceTwitter Source = "twitter"
	SourceAirdrop Source = "airdrop"
)

// BalanceReader reads the on-chain balance of an address.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (*big.Float, error)
}

// AddressDataFetcher fetches server side game state.
type AddressDataFetcher interface {
	AddressData(ctx context.Context, req api.PermissionRequest) (*api.AddressData, error)
}

// RPC reads balances from an Ethereum JSON-RPC endpoint.
type RPC struct {
	URL string
}

func (r RPC) Balance(ctx context.Context, address string) (*big.Float, error) {
	return wallet.Balance(ctx, r.URL, address)
}

// Session holds the signer and the caches refreshed after successful flows.
// Refreshes are the only writers; reads are allowed from anywhere.
type Session struct {
	signer   wallet.Signer
	balances BalanceReader
	server   AddressDataFetcher
	logger   logging.Logger
	now      func() time.Time


	mu          sync.RWMutex
	balance     *big.Float
	pulses      *indicator.PulseTracker
	addressData *api.AddressData
	permission  *wallet.Permission
	sources     map[Source]bool
}

// New creates a session for signer.
func New(signer wallet.Signer, balances BalanceReader, server AddressDataFetcher, logger logging.Logger) *Session {
	return &Session{
		signer:   signer,
		balances: balances,
		server:   server,
		logger:   logging.OrNoop(logger),
		now:      time.Now,
		sources:  make(map[Source]bool),
	}
}

// Signer returns the session wallet.
func (s *Session) Signer() wallet.Signer {
	return s.signer
}

// Address returns the session wallet address.
func (s *Session) Address() string {
	return s.signer.From()
}

// RefreshBalances re-reads the on-chain balance and records a pulse when it grew.
func (s *Session) RefreshBalances(ctx context.Context) error {
	if s.balances == nil {
		return nil
	}
	balance, err := s.balances.Balance(ctx, s.Address())
	if err != nil {
		return fmt.Errorf("failed to refresh balance: %w", err)
	}

	total, _ := balance.Float64()
	now := s.now()

	s.mu.Lock()
	s.balance = balance
	pulses := s.pulses
	if pulses == nil {
		// the first balance read is the baseline
		s.pulses = indicator.NewPulseTracker(total)
	}
	s.mu.Unlock()
	if pulses == nil {
		return nil
	}

	pulses.Expire(now)
	if pulses.Observe(total, now) {
		s.logger.Printf("balance increased to %s", balance.Text('f', 4))
	}
	return nil
}

// RefreshAddressData re-fetches boosts and layer-2 balances.
func (s *Session) RefreshAddressData(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	permission, err := s.readPermission(ctx)
	if err != nil {
		return err
	}

	data, err := s.server.AddressData(ctx, api.NewPermissionRequest(s.Address(), permission))
	if err != nil {
		return fmt.Errorf("failed to refresh address data: %w", err)
	}

	s.mu.Lock()
	s.addressData = data
	s.mu.Unlock()
	return nil
}

// readPermission reuses a recent permission for read-only requests.
func (s *Session) readPermission(ctx context.Context) (wallet.Permission, error) {
	s.mu.RLock()
	cached := s.permission
	s.mu.RUnlock()
	if cached != nil && s.now().Sub(time.Unix(cached.Time, 0)) < PermissionTTL {
		return *cached, nil
	}

	permission, err := wallet.DerivePermission(ctx, s.signer, s.now)
	if err != nil {
		return wallet.Permission{}, err
	}

	s.mu.Lock()
	s.permission = &permission
	s.mu.Unlock()
	return permission, nil
}

// Mutators returns the success callbacks for a flow: refresh balances, then
// refresh address data. Failures are logged.
func (s *Session) Mutators() []func(ctx context.Context) {
	return []func(ctx context.Context){
		func(ctx context.Context) {
			if err := s.RefreshBalances(ctx); err != nil {
				s.logger.Printf("%v", err)
			}
		},
		func(ctx context.Context) {
			if err := s.RefreshAddressData(ctx); err != nil {
				s.logger.Printf("%v", err)
			}
		},
	}
}

// Balance returns the last known on-chain balance, or nil.
func (s *Session) Balance() *big.Float {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return nil
	}
	return new(big.Float).Copy(s.balance)
}

// AddressData returns the last fetched address data, or nil.
func (s *Session) AddressData() *api.AddressData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addressData == nil {
		return nil
	}
	data := *s.addressData
	return &data
}

// BoostsLeft returns the remaining airdrops the wallet can trigger.
func (s *Session) BoostsLeft() int {
	if data := s.AddressData(); data != nil {
		return data.BoostsLeft
	}
	return 0
}

// AddSource records src.
func (s *Session) AddSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src] = true
}

// HasSource reports whether src was recorded.
func (s *Session) HasSource(src Source) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources[src]
}

// TakePulses returns the balance increases still on display and retires
// them, so each is shown once.
func (s *Session) TakePulses() []indicator.Pulse {
	s.mu.RLock()
	pulses := s.pulses
	s.mu.RUnlock()
	if pulses == nil {
		return nil
	}

	pulses.Expire(s.now())
	active := pulses.Active()
	for _, p := range active {
		pulses.Done(p.Total)
	}
	return active
}
