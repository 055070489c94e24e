package wallet

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// ReferralBase is the landing page encoded in shared QR codes.
const ReferralBase = "https://unipig.exchange"

// ReferralURL returns the link another player scans to reach address.
func ReferralURL(address string) string {
	return ReferralBase + "?referrer=" + url.QueryEscape(address)
}

// QRCode renders the referral link of address as a PNG image.
func QRCode(address string, size int) ([]byte, error) {
	qr, err := qrcode.New(ReferralURL(address), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}

// WriteQRCode writes the referral QR code of address to path.
func WriteQRCode(address, path string, size int) error {
	return qrcode.WriteFile(ReferralURL(address), qrcode.Medium, size, path)
}

// AddressFromReferral extracts the referrer address from a scanned link.
// Bare addresses are returned as is.
func AddressFromReferral(scanned string) (string, error) {
	if IsAddress(scanned) {
		return scanned, nil
	}

	u, err := url.Parse(scanned)
	if err != nil {
		return "", fmt.Errorf("unrecognised code: %w", err)
	}
	address := u.Query().Get("referrer")
	if !IsAddress(address) {
		return "", fmt.Errorf("no referrer address in %q", scanned)
	}
	return address, nil
}
