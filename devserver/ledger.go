package devserver

import (
	"errors"
	"strings"
	"sync"
)

const (
	// AirdropAmount is credited per token to both players of an airdrop.
	AirdropAmount = 5
	// FaucetAmount is credited per token when a tweet is recorded.
	FaucetAmount = 10
	// StartingBoosts is the boost allowance of a new account.
	StartingBoosts = 3
)

// Tokens lists the token symbols held by every account.
var Tokens = []string{"UNI", "PIGI"}

var (
	ErrSelfAirdrop       = errors.New("cannot airdrop to yourself")
	ErrAlreadyAirdropped = errors.New("pair already airdropped")
	ErrAlreadyTweeted    = errors.New("faucet already claimed")
)

type account struct {
	balances   map[string]int64
	boostsLeft int
	handle     *string
}

// Ledger is the in-memory game state. It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	pairs    map[string]bool
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]*account),
		pairs:    make(map[string]bool),
	}
}

func key(address string) string {
	return strings.ToLower(address)
}

// accountLocked returns the account for address, creating it.
// Caller must hold l.mu for writing.
func (l *Ledger) accountLocked(address string) *account {
	k := key(address)
	a, ok := l.accounts[k]
	if !ok {
		a = &account{balances: make(map[string]int64), boostsLeft: StartingBoosts}
		for _, t := range Tokens {
			a.balances[t] = 0
		}
		l.accounts[k] = a
	}
	return a
}

// Airdrop credits both players once per unordered pair.
func (l *Ledger) Airdrop(from, to string) error {
	a, b := key(from), key(to)
	if a == b {
		return ErrSelfAirdrop
	}
	pair := a + ":" + b
	if b < a {
		pair = b + ":" + a
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pairs[pair] {
		return ErrAlreadyAirdropped
	}
	l.pairs[pair] = true
	for _, addr := range []string{from, to} {
		acc := l.accountLocked(addr)
		for _, t := range Tokens {
			acc.balances[t] += AirdropAmount
		}
	}
	return nil
}

// Tweet records that address tweeted from handle and credits the faucet.
func (l *Ledger) Tweet(address, handle string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(address)
	if acc.handle != nil {
		return ErrAlreadyTweeted
	}
	acc.handle = &handle
	for _, t := range Tokens {
		acc.balances[t] += FaucetAmount
	}
	return nil
}

// FaucetStatus reports whether address can still claim and its handle.
func (l *Ledger) FaucetStatus(address string) (canFaucet bool, handle *string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[key(address)]
	if !ok || acc.handle == nil {
		return true, nil
	}
	h := *acc.handle
	return false, &h
}

// AddressData returns a copy of the balances and boosts of address.
func (l *Ledger) AddressData(address string) (balances map[string]int64, boostsLeft int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accountLocked(address)
	balances = make(map[string]int64, len(acc.balances))
	for t, v := range acc.balances {
		balances[t] = v
	}
	return balances, acc.boostsLeft
}
