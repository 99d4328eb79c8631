package handlers

import (
	"context"
	"time"

	"github.com/fixturedesk/leaddesk/internal/quote"
)

// RateSource returns the current public rate cards.
type RateSource interface {
	Load(ctx context.Context) ([]quote.Rate, error)
}

// Limiter answers whether a key is still cooling down, recording it if not.
type Limiter interface {
	IsRateLimited(ctx context.Context, key string, cooldown time.Duration) bool
}
