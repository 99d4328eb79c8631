package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoader_CachesUntilExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var calls atomic.Int32
	l := NewLoader(time.Minute, clock.Now, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})

	for i := 0; i < 3; i++ {
		v, err := l.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if v != 1 {
			t.Fatalf("expected cached value 1, got %d", v)
		}
	}

	clock.Advance(time.Minute)
	v, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load after expiry: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected reload after expiry, got %d", v)
	}
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	fail := true
	l := NewLoader(time.Minute, nil, func(context.Context) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	if _, err := l.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	fail = false
	v, err := l.Load(context.Background())
	if err != nil || v != "ok" {
		t.Fatalf("expected ok after recovery, got %q err=%v", v, err)
	}
}

func TestLoader_InvalidateForcesReload(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader(time.Hour, nil, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	l.Invalidate()
	v, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected reload after invalidate, got %d", v)
	}
}

func TestLoader_ConcurrentMissesShareLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(time.Hour, nil, func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := l.Load(context.Background()); err != nil || v != 42 {
				t.Errorf("expected 42, got %d err=%v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
}
