// Package fetch ties asynchronous loads to the lifetime of whatever owns
// their results, so that only the newest load for a slot may publish and
// nothing publishes after the owner is gone.
package fetch

import (
	"sync"
	"sync/atomic"
)

// State is the owner's lifecycle state.
type State int32

const (
	// StateNotReady is the state before Activate.
	StateNotReady State = iota
	// StateActive allows results to be applied.
	StateActive
	// StateDisposed is terminal; results are discarded.
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

type resetter interface {
	Reset()
}

// Lifecycle tracks whether the owner of a set of operations is still alive.
type Lifecycle struct {
	state atomic.Int32

	mu  sync.Mutex
	ops []resetter
}

// NewLifecycle returns a lifecycle in StateNotReady.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Activate moves NotReady to Active. It returns false once disposed.
func (l *Lifecycle) Activate() bool {
	if l.state.CompareAndSwap(int32(StateNotReady), int32(StateActive)) {
		return true
	}
	return l.State() == StateActive
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Active reports whether results may be applied.
func (l *Lifecycle) Active() bool {
	return l.State() == StateActive
}

// Dispose marks the lifecycle disposed, cancels every registered operation
// and resets their state. Further calls do nothing.
func (l *Lifecycle) Dispose() {
	if State(l.state.Swap(int32(StateDisposed))) == StateDisposed {
		return
	}
	l.mu.Lock()
	ops := l.ops
	l.ops = nil
	l.mu.Unlock()
	for _, op := range ops {
		op.Reset()
	}
}

func (l *Lifecycle) register(op resetter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}
