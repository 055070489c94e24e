package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrSigning marks every failure of a signing capability.
	ErrSigning = errors.New("signing failed")

	// ErrSignatureRejected is returned when the signing agent declines the request.
	ErrSignatureRejected = errors.New("signature request rejected")

	// ErrInvalidSignature is returned when a signature does not recover to the expected address.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer is an account able to sign arbitrary messages. The signature may be
// produced by an agent outside this process that prompts the user.
type Signer interface {
	From() string
	SignMessage(ctx context.Context, message string) (string, error)
}

// SigningError wraps any failure reported by a Signer.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool { return target == ErrSigning }

// Sign implements eth_sign
func (w *Wallet) Sign(data []byte) ([]byte, error) {
	privateKey, err := crypto.HexToECDSA(w.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	signature, err := crypto.Sign(textHash(data), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	// Convert signature to Ethereum format
	signature[64] += 27

	return signature, nil
}

// PersonalSign implements personal_sign
func (w *Wallet) PersonalSign(message string) (string, error) {
	signature, err := w.Sign(messageBytes(message))
	if err != nil {
		return "", err
	}

	return hexutil.Encode(signature), nil
}

// SignMessage signs message with the local key.
func (w *Wallet) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.PersonalSign(message)
}

// RecoverAddress returns the address that produced a personal_sign signature over message.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", ErrInvalidSignature)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, ErrInvalidSignature)
	}

	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(textHash(messageBytes(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%v: %w", err, ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// textHash adds the Ethereum prefix
func textHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}

// messageBytes decodes message if it's hex encoded
func messageBytes(message string) []byte {
	if strings.HasPrefix(message, "0x") {
		if data, err := hex.DecodeString(strings.TrimPrefix(message, "0x")); err == nil {
			return data
		}
	}
	return []byte(message)
}
