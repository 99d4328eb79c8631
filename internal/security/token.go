package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminIssuer        = "leaddesk"
	purposeAdmin       = "admin"
	purposeTOTPPending = "totp-pending"
	pendingTOTPExpiry  = 5 * time.Minute
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("security: invalid token")

// AdminClaims are the claims carried by admin session tokens.
type AdminClaims struct {
	AdminID  uint64 `json:"admin_id"`
	Username string `json:"username"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateAdminToken issues a session token for the admin.
func GenerateAdminToken(secret string, adminID uint64, username string, expiry time.Duration, now time.Time) (string, time.Time, error) {
	return signAdminToken(secret, adminID, username, purposeAdmin, expiry, now)
}

// GeneratePendingTOTPToken issues a short-lived token that only allows the
// second login step.
func GeneratePendingTOTPToken(secret string, adminID uint64, username string, now time.Time) (string, time.Time, error) {
	return signAdminToken(secret, adminID, username, purposeTOTPPending, pendingTOTPExpiry, now)
}

// ParseAdminToken validates a session token.
func ParseAdminToken(secret, token string) (*AdminClaims, error) {
	return parseAdminToken(secret, token, purposeAdmin)
}

// ParsePendingTOTPToken validates a token issued by GeneratePendingTOTPToken.
func ParsePendingTOTPToken(secret, token string) (*AdminClaims, error) {
	return parseAdminToken(secret, token, purposeTOTPPending)
}

func signAdminToken(secret string, adminID uint64, username, purpose string, expiry time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, fmt.Errorf("security: empty jwt secret")
	}
	if now.IsZero() {
		now = time.Now()
	}
	expiresAt := now.Add(expiry)
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		Purpose:  purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    adminIssuer,
			Subject:   strconv.FormatUint(adminID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("security: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func parseAdminToken(secret, token, purpose string) (*AdminClaims, error) {
	if secret == "" || token == "" {
		return nil, ErrInvalidToken
	}
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(adminIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.AdminID == 0 || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
