package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults for the in-memory cooldown ledger.
const (
	DefaultCooldown      = time.Minute
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// CooldownOptions configures a CooldownLimiter.
type CooldownOptions struct {
	// DefaultCooldown applies when IsRateLimited is called without a cooldown.
	DefaultCooldown time.Duration
	// Retention is how long an untouched entry survives a sweep.
	Retention time.Duration
	// SweepInterval is how often the janitor sweeps.
	SweepInterval time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// CooldownLimiter remembers the last accepted action per key and rejects
// repeats inside the cooldown window.
type CooldownLimiter struct {
	mu     sync.Mutex
	ledger map[string]time.Time

	defaultCooldown time.Duration
	retention       time.Duration
	sweepInterval   time.Duration
	now             func() time.Time

	janitorMu sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewCooldownLimiter constructs a CooldownLimiter. Zero options take defaults.
func NewCooldownLimiter(opts CooldownOptions) *CooldownLimiter {
	if opts.DefaultCooldown <= 0 {
		opts.DefaultCooldown = DefaultCooldown
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CooldownLimiter{
		ledger:          make(map[string]time.Time),
		defaultCooldown: opts.DefaultCooldown,
		retention:       opts.Retention,
		sweepInterval:   opts.SweepInterval,
		now:             opts.Now,
	}
}

// IsRateLimited reports whether key is still cooling down. When it is not,
// the current time is recorded for key. A limited call leaves the record alone.
func (l *CooldownLimiter) IsRateLimited(key string, cooldown ...time.Duration) bool {
	window := l.defaultCooldown
	if len(cooldown) > 0 {
		window = cooldown[0]
	}
	limited, _ := l.Check(context.Background(), key, window, l.now())
	return limited
}

// Check implements Backend.
func (l *CooldownLimiter) Check(_ context.Context, key string, cooldown time.Duration, now time.Time) (bool, error) {
	if key == "" {
		return false, nil
	}
	if cooldown <= 0 {
		cooldown = l.defaultCooldown
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.ledger[key]; ok && now.Sub(last) < cooldown {
		return true, nil
	}
	l.ledger[key] = now
	return false, nil
}

// Sweep drops entries older than the retention window and returns how many went.
func (l *CooldownLimiter) Sweep() int {
	cutoff := l.now().Add(-l.retention)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, last := range l.ledger {
		if last.Before(cutoff) {
			delete(l.ledger, key)
			removed++
		}
	}
	return removed
}

// Clear empties the ledger.
func (l *CooldownLimiter) Clear() {
	l.mu.Lock()
	l.ledger = make(map[string]time.Time)
	l.mu.Unlock()
}

// Len returns the number of keys in the ledger.
func (l *CooldownLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ledger)
}

// Start launches the background sweep. It stops when ctx is done or Stop is called.
// Calling Start on a running limiter is a no-op.
func (l *CooldownLimiter) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.janitorMu.Lock()
	defer l.janitorMu.Unlock()
	if l.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					log.Debugf("rate limit: swept %d idle keys", removed)
				}
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit. Safe to call twice.
func (l *CooldownLimiter) Stop() {
	l.janitorMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.janitorMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
