package fetch

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Outcome is how a single fetch ended.
type Outcome int

const (
	// OutcomeApplied means the result became the visible state.
	OutcomeApplied Outcome = iota + 1
	// OutcomeDiscarded means the owner was not active when the result arrived.
	OutcomeDiscarded
	// OutcomeCancelled means the token was superseded or cancelled first.
	OutcomeCancelled
	// OutcomeErrored means the fetch failed and the failure was reported.
	OutcomeErrored
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Reporter receives fetch failures other than cancellation.
type Reporter func(operation string, err error)

// Func performs the fetch for key. It should return promptly once ctx is done.
type Func[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Snapshot is a copy of an operation's visible state.
type Snapshot[K comparable, T any] struct {
	Key     K
	Value   T
	Loaded  bool
	Loading bool
	Err     error
}

// Operation is one logical fetch slot. At most one token is current; starting
// a new fetch cancels the previous one, and only the current token may change
// the visible state.
type Operation[K comparable, T any] struct {
	name   string
	life   *Lifecycle
	report Reporter
	apply  func(key K, value T) error

	applyMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  Snapshot[K, T]

	wg sync.WaitGroup
}

// NewOperation registers a new operation with life. A nil reporter logs.
func NewOperation[K comparable, T any](life *Lifecycle, name string, report Reporter) *Operation[K, T] {
	if life == nil {
		life = NewLifecycle()
		life.Activate()
	}
	if report == nil {
		report = logReporter
	}
	op := &Operation[K, T]{name: name, life: life, report: report}
	life.register(op)
	return op
}

// OnApply installs a hook that runs whenever a result is applied. Hooks run
// one at a time outside the state lock; a result superseded while its hook
// ran is reported as OutcomeCancelled and never becomes visible. A hook error
// turns the outcome into OutcomeErrored.
func (o *Operation[K, T]) OnApply(fn func(key K, value T) error) {
	o.mu.Lock()
	o.apply = fn
	o.mu.Unlock()
}

// Start cancels any in-flight fetch and begins a new one. The returned
// channel yields exactly one Outcome and is then closed.
func (o *Operation[K, T]) Start(ctx context.Context, key K, fn Func[K, T]) <-chan Outcome {
	out := make(chan Outcome, 1)
	if ctx == nil {
		ctx = context.Background()
	}
	if o.life.State() == StateDisposed || fn == nil {
		out <- OutcomeDiscarded
		close(out)
		return out
	}

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state.Loading = true
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		var outcome Outcome
		defer func() {
			out <- outcome
			close(out)
		}()
		defer o.finish(gen, cancel)

		value, err := fn(runCtx, key)
		outcome = o.complete(runCtx, gen, key, value, err)
	}()
	return out
}

// Run starts a fetch and waits for its outcome.
func (o *Operation[K, T]) Run(ctx context.Context, key K, fn Func[K, T]) Outcome {
	return <-o.Start(ctx, key, fn)
}

// Cancel invalidates the current token, if any. Safe to call repeatedly.
func (o *Operation[K, T]) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
}

// Reset cancels the current token and returns the visible state to zero values.
func (o *Operation[K, T]) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelLocked()
	o.state = Snapshot[K, T]{}
}

// Snapshot returns a copy of the visible state.
func (o *Operation[K, T]) Snapshot() Snapshot[K, T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Wait blocks until every fetch goroutine started by the operation returned.
func (o *Operation[K, T]) Wait() {
	o.wg.Wait()
}

func (o *Operation[K, T]) cancelLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	o.state.Loading = false
}

func (o *Operation[K, T]) complete(ctx context.Context, gen uint64, key K, value T, err error) Outcome {
	if outcome, done := o.settle(ctx, gen, err); done {
		return outcome
	}

	// The hook runs without o.mu so Snapshot and Cancel stay responsive.
	// applyMu keeps hooks in start order; each re-checks its token first.
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	o.mu.Lock()
	apply := o.apply
	o.mu.Unlock()
	if outcome, done := o.settle(ctx, gen, nil); done {
		return outcome
	}

	var errApply error
	if apply != nil {
		errApply = apply(key, value)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return OutcomeCancelled
	}
	if !o.life.Active() {
		return OutcomeDiscarded
	}
	if errApply != nil {
		o.state.Err = errApply
		o.report(o.name, errApply)
		return OutcomeErrored
	}
	o.state.Key = key
	o.state.Value = value
	o.state.Loaded = true
	o.state.Err = nil
	return OutcomeApplied
}

// settle decides outcomes that need no apply. done is false when the result
// may still be applied.
func (o *Operation[K, T]) settle(ctx context.Context, gen uint64, err error) (Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen || errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return OutcomeCancelled, true
	}
	if !o.life.Active() {
		return OutcomeDiscarded, true
	}
	if err != nil {
		o.state.Err = err
		o.report(o.name, err)
		return OutcomeErrored, true
	}
	return 0, false
}

func (o *Operation[K, T]) finish(gen uint64, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		o.state.Loading = false
		o.cancel = nil
	}
}

func logReporter(operation string, err error) {
	log.WithError(err).WithField("operation", operation).Warn("fetch failed")
}
