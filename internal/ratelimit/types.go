package ratelimit

import (
	"context"
	"time"
)

// Backend decides whether a key is still inside its cooldown window.
// A call that finds the key free records the action in the same step.
type Backend interface {
	Check(ctx context.Context, key string, cooldown time.Duration, now time.Time) (limited bool, err error)
}

// Scope names the action a cooldown key belongs to.
type Scope string

const (
	// ScopeContact limits public contact-form submissions.
	ScopeContact Scope = "contact"
	// ScopeSheetFetch limits the public sheet-fetch function.
	ScopeSheetFetch Scope = "sheet"
	// ScopeLogin limits admin login attempts.
	ScopeLogin Scope = "login"
	// ScopeLoginTOTP limits one-time code guesses per admin account.
	ScopeLoginTOTP Scope = "login-totp"
)
