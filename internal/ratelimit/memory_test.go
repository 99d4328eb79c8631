package ratelimit

import (
	"context"
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCooldownLimiter_LimitsThenReleases(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: 200 * time.Millisecond, Now: clock.Now})

	if l.IsRateLimited("a@example.com") {
		t.Fatalf("expected first call to pass")
	}
	if !l.IsRateLimited("a@example.com") {
		t.Fatalf("expected immediate repeat to be limited")
	}
	clock.Advance(250 * time.Millisecond)
	if l.IsRateLimited("a@example.com") {
		t.Fatalf("expected call after cooldown to pass")
	}
}

func TestCooldownLimiter_LimitedCallDoesNotExtendWindow(t *testing.T) {
	clock := &testClock{now: time.Unix(1000, 0)}
	l := NewCooldownLimiter(CooldownOptions{Now: clock.Now})
	cooldown := 100 * time.Millisecond

	if l.IsRateLimited("k", cooldown) {
		t.Fatalf("expected first call to pass")
	}
	clock.Advance(60 * time.Millisecond)
	if !l.IsRateLimited("k", cooldown) {
		t.Fatalf("expected limited at 60ms")
	}
	if !l.IsRateLimited("k", cooldown) {
		t.Fatalf("expected still limited immediately after a limited call")
	}
	clock.Advance(40 * time.Millisecond)
	if l.IsRateLimited("k", cooldown) {
		t.Fatalf("expected window measured from the accepted call, not the limited ones")
	}
}

func TestCooldownLimiter_KeysAreIndependent(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: time.Hour})
	if l.IsRateLimited("a") || l.IsRateLimited("b") {
		t.Fatalf("expected first call per key to pass")
	}
	if !l.IsRateLimited("a") {
		t.Fatalf("expected a limited")
	}
}

func TestCooldownLimiter_EmptyKeyNeverLimited(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: time.Hour})
	if l.IsRateLimited("") || l.IsRateLimited("") {
		t.Fatalf("expected empty key to pass")
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty key not recorded")
	}
}

func TestCooldownLimiter_SweepDropsStaleEntries(t *testing.T) {
	clock := &testClock{now: time.Unix(1000, 0)}
	l := NewCooldownLimiter(CooldownOptions{
		DefaultCooldown: time.Hour,
		Retention:       10 * time.Minute,
		Now:             clock.Now,
	})

	l.IsRateLimited("old")
	clock.Advance(11 * time.Minute)
	l.IsRateLimited("fresh")

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", l.Len())
	}
	// The swept key behaves as a first-ever call even though its cooldown
	// (an hour) has not elapsed.
	if l.IsRateLimited("old") {
		t.Fatalf("expected swept key to pass as a first call")
	}
	if !l.IsRateLimited("fresh") {
		t.Fatalf("expected fresh key still limited")
	}
}

func TestCooldownLimiter_Clear(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: time.Hour})
	l.IsRateLimited("a")
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger")
	}
	if l.IsRateLimited("a") {
		t.Fatalf("expected cleared key to pass")
	}
}

func TestCooldownLimiter_JanitorSweepsAndStops(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{
		DefaultCooldown: time.Hour,
		Retention:       10 * time.Millisecond,
		SweepInterval:   5 * time.Millisecond,
	})
	l.Start(context.Background())
	l.Start(context.Background())
	l.IsRateLimited("k")

	deadline := time.Now().Add(time.Second)
	for l.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not sweep the idle key")
		}
		time.Sleep(5 * time.Millisecond)
	}

	l.Stop()
	l.Stop()

	l.IsRateLimited("k")
	time.Sleep(40 * time.Millisecond)
	if l.Len() != 1 {
		t.Fatalf("expected no sweeps after Stop")
	}
}

func TestCooldownLimiter_JanitorStopsWithContext(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()
	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop did not return after context cancel")
	}
}

func TestCooldownLimiter_RealClockScenario(t *testing.T) {
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: 200 * time.Millisecond})
	if l.IsRateLimited("a@example.com") {
		t.Fatalf("expected first call to pass")
	}
	if !l.IsRateLimited("a@example.com") {
		t.Fatalf("expected repeat to be limited")
	}
	time.Sleep(250 * time.Millisecond)
	if l.IsRateLimited("a@example.com") {
		t.Fatalf("expected call after 250ms to pass")
	}
}

func TestCooldownLimiter_ZeroCooldownTakesDefault(t *testing.T) {
	clock := &testClock{now: time.Unix(1000, 0)}
	l := NewCooldownLimiter(CooldownOptions{DefaultCooldown: time.Minute, Now: clock.Now})

	if limited, _ := l.Check(context.Background(), "k", 0, clock.Now()); limited {
		t.Fatalf("expected first call to pass")
	}
	clock.Advance(30 * time.Second)
	if limited, _ := l.Check(context.Background(), "k", 0, clock.Now()); !limited {
		t.Fatalf("expected zero cooldown to use the one minute default")
	}
}

func TestCooldownLimiter_WindowComesFromEachCall(t *testing.T) {
	clock := &testClock{now: time.Unix(1000, 0)}
	l := NewCooldownLimiter(CooldownOptions{Now: clock.Now})

	if l.IsRateLimited("k", time.Second) {
		t.Fatalf("expected first call to pass")
	}
	clock.Advance(2 * time.Second)
	if !l.IsRateLimited("k", 5*time.Second) {
		t.Fatalf("expected the longer window of the second call to apply")
	}
}
