// Package airdrop triggers a two-player airdrop after scanning another
// player's wallet code.
package airdrop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/galihrivanto/unipig/api"
	"github.com/galihrivanto/unipig/flow"
	"github.com/galihrivanto/unipig/wallet"
)

// ErrInvalidAddress is returned for scans that carry no usable address.
var ErrInvalidAddress = errors.New("invalid scanned address")

// Snapshot is the airdrop state exposed to the UI surface.
type Snapshot = flow.Snapshot[string, wallet.Permission, struct{}]

// Submitter sends airdrop requests.
type Submitter interface {
	Airdrop(ctx context.Context, req api.AirdropRequest) error
}

// Airdrop is the sign -> POST /api/airdrop flow for one wallet.
type Airdrop struct {
	*flow.Flow[string, wallet.Permission, struct{}]
	signer wallet.Signer
}

// New builds an airdrop flow for signer. A fresh permission is signed for
// every run.
func New(client Submitter, signer wallet.Signer, opts ...flow.Option) *Airdrop {
	sign := func(ctx context.Context, scanned string) (wallet.Permission, error) {
		return wallet.DerivePermission(ctx, signer, nil)
	}
	submit := func(ctx context.Context, scanned string, p wallet.Permission) (struct{}, error) {
		return struct{}{}, client.Airdrop(ctx, api.AirdropRequest{
			Address:        signer.From(),
			Signature:      p.Signature,
			ScannedAddress: scanned,
			Time:           p.Time,
		})
	}

	return &Airdrop{
		Flow:   flow.New(sign, submit, opts...),
		signer: signer,
	}
}

// Scan accepts a scanned referral link or bare address and triggers an
// airdrop to it.
func (a *Airdrop) Scan(ctx context.Context, scanned string) error {
	address, err := wallet.AddressFromReferral(scanned)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return a.Trigger(ctx, address)
}

// AutoReset waits for the current run to end, keeps the terminal state visible
// for display, then resets the flow. It returns the terminal snapshot.
func (a *Airdrop) AutoReset(ctx context.Context, display time.Duration) (Snapshot, error) {
	snap, err := a.Wait(ctx)
	if err != nil || !snap.State.Terminal() {
		return snap, err
	}

	timer := time.NewTimer(display)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return snap, ctx.Err()
	case <-timer.C:
	}

	a.Reset()
	return snap, nil
}

// Notice is the message shown once an airdrop ends.
func Notice(s Snapshot) string {
	switch s.State {
	case flow.Failure:
		return "Oops! An error occurred, please try again."
	case flow.Success:
		return fmt.Sprintf("Boom. Airdrop complete. You and %s just got tokens on the OVM. Layer two-kens, if you will.",
			wallet.TruncateAddress(s.Trigger, 4))
	default:
		return ""
	}
}
