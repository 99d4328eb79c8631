package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidTOTP is returned when a one-time code does not validate.
var ErrInvalidTOTP = errors.New("security: invalid totp code")

// TOTPEnrollment is a freshly generated secret and its provisioning URL.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// GenerateTOTP creates a new TOTP secret for the account.
func GenerateTOTP(issuer, account string) (TOTPEnrollment, error) {
	if strings.TrimSpace(issuer) == "" {
		issuer = adminIssuer
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("security: generate totp: %w", err)
	}
	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP checks code against secret at the given time, allowing one
// period of clock skew.
func ValidateTOTP(secret, code string, at time.Time) error {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return ErrInvalidTOTP
	}
	if at.IsZero() {
		at = time.Now()
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidTOTP
	}
	return nil
}
