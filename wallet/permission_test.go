package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSigner struct{ err error }

func (f failingSigner) From() string { return "0x742d35Cc6634C0532925a3b844Bc454e4438f44e" }

func (f failingSigner) SignMessage(context.Context, string) (string, error) { return "", f.err }

func TestPermissionMessage(t *testing.T) {
	assert.Equal(t, "I am 0xABC and the time is 42", PermissionMessage("0xABC", 42))
}

func TestDerivePermission(t *testing.T) {
	w, err := GenerateWallet()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	p, err := DerivePermission(context.Background(), w, func() time.Time { return now })
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), p.Time)

	assert.NoError(t, VerifyPermission(w.Address, p, now.Add(time.Minute), time.Hour))
}

func TestDerivePermissionSigningError(t *testing.T) {
	cause := errors.New("user closed the popup")

	_, err := DerivePermission(context.Background(), failingSigner{err: cause}, nil)

	var signingErr *SigningError
	require.ErrorAs(t, err, &signingErr)
	assert.ErrorIs(t, err, ErrSigning)
	assert.ErrorIs(t, err, cause)
}

func TestVerifyPermission(t *testing.T) {
	w, err := GenerateWallet()
	require.NoError(t, err)
	other, err := GenerateWallet()
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	p, err := DerivePermission(context.Background(), w, func() time.Time { return now })
	require.NoError(t, err)

	t.Run("wrong signer", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPermission(other.Address, p, now, 0), ErrInvalidSignature)
	})

	t.Run("stale", func(t *testing.T) {
		assert.ErrorIs(t, VerifyPermission(w.Address, p, now.Add(2*time.Hour), time.Hour), ErrPermissionExpired)
	})

	t.Run("no window", func(t *testing.T) {
		assert.NoError(t, VerifyPermission(w.Address, p, now.Add(48*time.Hour), 0))
	})

	t.Run("bad address", func(t *testing.T) {
		assert.Error(t, VerifyPermission("pig", p, now, 0))
	})
}
