package api

import (
	"context"

	"github.com/galihrivanto/unipig/wallet"
)

const (
	AirdropPath     = "/api/airdrop"
	FaucetDataPath  = "/api/get-twitter-faucet-data"
	AddressDataPath = "/api/get-address-data"
	TweetPath       = "/api/tweet"
)

// AirdropRequest asks the server to airdrop tokens to both players.
// Time is the permission timestamp the signature was made over.
type AirdropRequest struct {
	Address        string `json:"address"`
	Signature      string `json:"signature"`
	ScannedAddress string `json:"scannedAddress"`
	Time           int64  `json:"time,omitempty"`
}

// PermissionRequest identifies a wallet with a signed permission.
type PermissionRequest struct {
	Address   string `json:"address"`
	Time      int64  `json:"time"`
	Signature string `json:"signature"`
}

// NewPermissionRequest pairs address with p.
func NewPermissionRequest(address string, p wallet.Permission) PermissionRequest {
	return PermissionRequest{Address: address, Time: p.Time, Signature: p.Signature}
}

// FaucetStatus is the Twitter faucet state of a wallet. CanFaucet turning
// false means the claim has been made.
type FaucetStatus struct {
	CanFaucet     bool    `json:"canFaucet"`
	TwitterHandle *string `json:"twitterHandle"`
}

// Handle returns the twitter handle or "".
func (s *FaucetStatus) Handle() string {
	if s == nil || s.TwitterHandle == nil {
		return ""
	}
	return *s.TwitterHandle
}

// AddressData is the per-wallet game state kept by the server.
type AddressData struct {
	BoostsLeft int              `json:"boostsLeft"`
	Balances   map[string]int64 `json:"balances"`
}

// Airdrop triggers an airdrop for req. The response body is ignored.
func (c *Client) Airdrop(ctx context.Context, req AirdropRequest) error {
	return c.Post(ctx, AirdropPath, req, nil)
}

// FaucetData fetches the Twitter faucet status.
func (c *Client) FaucetData(ctx context.Context, req PermissionRequest) (*FaucetStatus, error) {
	var status FaucetStatus
	if err := c.Post(ctx, FaucetDataPath, req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AddressData fetches boosts and layer-2 balances.
func (c *Client) AddressData(ctx context.Context, req PermissionRequest) (*AddressData, error) {
	var data AddressData
	if err := c.Post(ctx, AddressDataPath, req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
