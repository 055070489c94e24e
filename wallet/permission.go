package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPermissionExpired is returned when a permission is older than the accepted window.
var ErrPermissionExpired = errors.New("permission expired")

// Permission proves ownership of an address at a point in time.
type Permission struct {
	Time      int64  `json:"time"`
	Signature string `json:"signature"`
}

// PermissionMessage builds the canonical message signed for a permission.
func PermissionMessage(address string, unix int64) string {
	return fmt.Sprintf("I am %s and the time is %d", address, unix)
}

// DerivePermission signs a fresh permission for signer. The timestamp is taken
// before the signer is invoked, so a slow agent produces an older permission.
func DerivePermission(ctx context.Context, signer Signer, now func() time.Time) (Permission, error) {
	if now == nil {
		now = time.Now
	}
	unix := now().Unix()

	signature, err := signer.SignMessage(ctx, PermissionMessage(signer.From(), unix))
	if err != nil {
		return Permission{}, &SigningError{Err: err}
	}

	return Permission{Time: unix, Signature: signature}, nil
}

// VerifyPermission checks that p was signed by address. When maxAge is
// positive, permissions older than maxAge relative to now are rejected.
func VerifyPermission(address string, p Permission, now time.Time, maxAge time.Duration) error {
	if !IsAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(p.Time, 0))
		if age > maxAge {
			return fmt.Errorf("permission is %s old: %w", age.Round(time.Second), ErrPermissionExpired)
		}
	}

	recovered, err := RecoverAddress(PermissionMessage(address, p.Time), p.Signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered.Hex(), address) {
		return fmt.Errorf("signed by %s: %w", recovered.Hex(), ErrInvalidSignature)
	}
	return nil
}
