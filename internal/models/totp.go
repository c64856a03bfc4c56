package models

import (
	"bytes"
	"encoding/base64"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret creates a fresh TOTP key for the account.
func GenerateTOTPSecret(username, issuer string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
	})
}

// TOTPQRCode renders the provisioning QR code as a base64-encoded PNG.
func TOTPQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VerifyTOTPCode checks a code against a stored secret.
func VerifyTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}
