package cache

import (
	"sync"
	"time"
)

// Expiring holds at most one value that stays valid for a fixed duration.
type Expiring[T any] struct {
	mu       sync.RWMutex
	expiry   time.Duration
	now      func() time.Time
	value    T
	hasValue bool
	storedAt time.Time
}

// NewExpiring constructs an empty Expiring cache. A nil clock uses time.Now.
func NewExpiring[T any](expiry time.Duration, now func() time.Time) *Expiring[T] {
	if now == nil {
		now = time.Now
	}
	return &Expiring[T]{expiry: expiry, now: now}
}

// Get returns the stored value when it is still valid.
func (c *Expiring[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.validLocked() {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores the value and stamps the current time, replacing any previous value.
func (c *Expiring[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	c.hasValue = true
	c.storedAt = c.now()
	c.mu.Unlock()
}

// IsValid reports whether a value is present and younger than the expiry.
func (c *Expiring[T]) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validLocked()
}

// Clear drops the stored value.
func (c *Expiring[T]) Clear() {
	c.mu.Lock()
	var zero T
	c.value = zero
	c.hasValue = false
	c.storedAt = time.Time{}
	c.mu.Unlock()
}

// StoredAt returns when the current value was stored, or the zero time.
func (c *Expiring[T]) StoredAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storedAt
}

func (c *Expiring[T]) validLocked() bool {
	if !c.hasValue {
		return false
	}
	return c.now().Sub(c.storedAt) < c.expiry
}
