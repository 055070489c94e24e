package wallet

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Wallet is a locally held secp256k1 account.
type Wallet struct {
	Address    string
	PrivateKey string
}

// GenerateWallet creates a new random wallet.
func GenerateWallet() (*Wallet, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	return &Wallet{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PrivateKey: fmt.Sprintf("%x", crypto.FromECDSA(privateKey)),
	}, nil
}

// FromPrivateKey builds a wallet from a hex encoded private key.
func FromPrivateKey(privateKeyHex string) (*Wallet, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Wallet{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PrivateKey: privateKeyHex,
	}, nil
}

// LoadWallet reads a hex private key from path.
func LoadWallet(path string) (*Wallet, error) {
	privateKeyHex, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromPrivateKey(string(privateKeyHex))
}

// Save writes the private key to path.
// currently only naive implementation
func (w *Wallet) Save(path string) error {
	return os.WriteFile(path, []byte(w.PrivateKey), 0600)
}

// From returns the wallet address.
func (w *Wallet) From() string {
	return w.Address
}

// Balance returns the native balance of address in whole tokens.
func Balance(ctx context.Context, rpcURL, address string) (*big.Float, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, err
	}

	return new(big.Float).Quo(new(big.Float).SetInt(balance), big.NewFloat(1e18)), nil
}

// TruncateAddress shortens a 0x address to n hex characters on each side.
func TruncateAddress(address string, n int) string {
	body := strings.TrimPrefix(address, "0x")
	if n <= 0 || len(body) <= 2*n {
		return address
	}
	return "0x" + body[:n] + "..." + body[len(body)-n:]
}

// IsAddress reports whether s is a 0x prefixed hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
