package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches a fresh value for a Loader.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Loader serves a value from an Expiring cache and reloads it on miss.
// Concurrent misses share a single call to the load function.
type Loader[T any] struct {
	cache *Expiring[T]
	load  LoadFunc[T]
	group singleflight.Group
}

// NewLoader constructs a Loader with the given expiry and load function.
func NewLoader[T any](expiry time.Duration, now func() time.Time, load LoadFunc[T]) *Loader[T] {
	return &Loader[T]{
		cache: NewExpiring[T](expiry, now),
		load:  load,
	}
}

// Load returns the cached value or loads and caches a fresh one.
// Load errors are returned and never cached.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	if v, ok := l.cache.Get(); ok {
		return v, nil
	}
	if l.load == nil {
		var zero T
		return zero, fmt.Errorf("cache loader: nil load func")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	res, err, _ := l.group.Do("load", func() (any, error) {
		if v, ok := l.cache.Get(); ok {
			return v, nil
		}
		v, errLoad := l.load(ctx)
		if errLoad != nil {
			return nil, errLoad
		}
		l.cache.Set(v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Invalidate drops the cached value so the next Load reloads.
func (l *Loader[T]) Invalidate() {
	l.cache.Clear()
}

// Cached exposes the underlying cache.
func (l *Loader[T]) Cached() *Expiring[T] {
	return l.cache
}
