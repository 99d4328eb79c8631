package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type reportLog struct {
	mu   sync.Mutex
	errs []error
}

func (r *reportLog) report(_ string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *reportLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func activeLifecycle(t *testing.T) *Lifecycle {
	t.Helper()
	life := NewLifecycle()
	if !life.Activate() {
		t.Fatalf("expected activate to succeed")
	}
	return life
}

// sleepFetch ignores cancellation on purpose so that stale completions
// reach the operation.
func sleepFetch(delays map[string]time.Duration) Func[string, string] {
	return func(_ context.Context, key string) (string, error) {
		time.Sleep(delays[key])
		return "record-" + key, nil
	}
}

func TestOperation_AppliesResult(t *testing.T) {
	op := NewOperation[string, string](activeLifecycle(t), "record", nil)

	outcome := op.Run(context.Background(), "1", sleepFetch(nil))
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}
	snap := op.Snapshot()
	if !snap.Loaded || snap.Key != "1" || snap.Value != "record-1" || snap.Loading || snap.Err != nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestOperation_NewerFetchSupersedesOlder(t *testing.T) {
	op := NewOperation[string, string](activeLifecycle(t), "record", nil)
	fn := sleepFetch(map[string]time.Duration{"1": 60 * time.Millisecond, "2": 10 * time.Millisecond})

	first := op.Start(context.Background(), "1", fn)
	time.Sleep(10 * time.Millisecond)
	second := op.Start(context.Background(), "2", fn)

	if got := <-second; got != OutcomeApplied {
		t.Fatalf("expected second fetch applied, got %s", got)
	}
	if got := <-first; got != OutcomeCancelled {
		t.Fatalf("expected first fetch cancelled, got %s", got)
	}
	op.Wait()

	snap := op.Snapshot()
	if snap.Key != "2" || snap.Value != "record-2" {
		t.Fatalf("expected only record 2 visible, got %+v", snap)
	}
	if snap.Loading {
		t.Fatalf("expected loading cleared")
	}
}

func TestOperation_StaleCompletionDoesNotClearNewerLoading(t *testing.T) {
	op := NewOperation[string, string](activeLifecycle(t), "record", nil)
	release := make(chan struct{})
	fn := func(_ context.Context, key string) (string, error) {
		if key == "2" {
			<-release
		}
		return key, nil
	}

	first := op.Start(context.Background(), "1", func(ctx context.Context, key string) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return fn(ctx, key)
	})
	second := op.Start(context.Background(), "2", fn)
	if got := <-first; got != OutcomeCancelled {
		t.Fatalf("expected first cancelled, got %s", got)
	}
	if !op.Snapshot().Loading {
		t.Fatalf("expected newer fetch still loading")
	}
	close(release)
	if got := <-second; got != OutcomeApplied {
		t.Fatalf("expected second applied, got %s", got)
	}
}

func TestOperation_CancellationIsSilent(t *testing.T) {
	reports := &reportLog{}
	op := NewOperation[string, string](activeLifecycle(t), "record", reports.report)

	started := make(chan struct{})
	ch := op.Start(context.Background(), "1", func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-started
	op.Cancel()
	op.Cancel()

	if got := <-ch; got != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
	if reports.count() != 0 {
		t.Fatalf("expected cancellation not reported")
	}
	if snap := op.Snapshot(); snap.Loaded || snap.Err != nil || snap.Loading {
		t.Fatalf("expected untouched state, got %+v", snap)
	}
}

func TestOperation_ErrorsAreReported(t *testing.T) {
	reports := &reportLog{}
	op := NewOperation[string, string](activeLifecycle(t), "record", reports.report)
	boom := errors.New("boom")

	outcome := op.Run(context.Background(), "1", func(context.Context, string) (string, error) {
		return "", boom
	})
	if outcome != OutcomeErrored {
		t.Fatalf("expected errored, got %s", outcome)
	}
	if reports.count() != 1 {
		t.Fatalf("expected one report, got %d", reports.count())
	}
	snap := op.Snapshot()
	if !errors.Is(snap.Err, boom) || snap.Loading {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if got := op.Run(context.Background(), "2", sleepFetch(nil)); got != OutcomeApplied {
		t.Fatalf("expected recovery, got %s", got)
	}
	if op.Snapshot().Err != nil {
		t.Fatalf("expected error cleared after success")
	}
}

func TestOperation_DeadlineIsAnErrorNotACancellation(t *testing.T) {
	reports := &reportLog{}
	op := NewOperation[string, string](activeLifecycle(t), "record", reports.report)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	outcome := op.Run(ctx, "1", func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if outcome != OutcomeErrored {
		t.Fatalf("expected errored on deadline, got %s", outcome)
	}
	if reports.count() != 1 {
		t.Fatalf("expected deadline reported")
	}
}

func TestOperation_DisposeDiscardsLateResult(t *testing.T) {
	life := activeLifecycle(t)
	op := NewOperation[string, string](life, "record", nil)

	if got := op.Run(context.Background(), "1", sleepFetch(nil)); got != OutcomeApplied {
		t.Fatalf("expected applied, got %s", got)
	}

	started := make(chan struct{})
	ch := op.Start(context.Background(), "2", func(context.Context, string) (string, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return "late", nil
	})
	<-started
	life.Dispose()
	life.Dispose()

	if got := <-ch; got != OutcomeCancelled {
		t.Fatalf("expected cancelled after dispose, got %s", got)
	}
	snap := op.Snapshot()
	if snap.Loaded || snap.Value != "" || snap.Key != "" {
		t.Fatalf("expected reset state after dispose, got %+v", snap)
	}
	if got := op.Run(context.Background(), "3", sleepFetch(nil)); got != OutcomeDiscarded {
		t.Fatalf("expected start after dispose to be discarded, got %s", got)
	}
}

func TestOperation_NotReadyOwnerDiscards(t *testing.T) {
	life := NewLifecycle()
	op := NewOperation[string, string](life, "record", nil)

	if got := op.Run(context.Background(), "1", sleepFetch(nil)); got != OutcomeDiscarded {
		t.Fatalf("expected discarded before activate, got %s", got)
	}
	if op.Snapshot().Loaded {
		t.Fatalf("expected no state before activate")
	}
	life.Activate()
	if got := op.Run(context.Background(), "1", sleepFetch(nil)); got != OutcomeApplied {
		t.Fatalf("expected applied after activate, got %s", got)
	}
}

func TestOperation_ApplyHookRunsOnlyForCurrentToken(t *testing.T) {
	op := NewOperation[string, string](activeLifecycle(t), "record", nil)
	var applied []string
	op.OnApply(func(key, _ string) error {
		applied = append(applied, key)
		return nil
	})
	fn := sleepFetch(map[string]time.Duration{"1": 40 * time.Millisecond})

	first := op.Start(context.Background(), "1", fn)
	time.Sleep(10 * time.Millisecond)
	second := op.Start(context.Background(), "2", fn)
	<-first
	<-second

	if len(applied) != 1 || applied[0] != "2" {
		t.Fatalf("expected apply hook for 2 only, got %v", applied)
	}
}

func TestOperation_ApplyHookErrorIsReported(t *testing.T) {
	reports := &reportLog{}
	op := NewOperation[string, string](activeLifecycle(t), "record", reports.report)
	op.OnApply(func(string, string) error { return errors.New("store failed") })

	if got := op.Run(context.Background(), "1", sleepFetch(nil)); got != OutcomeErrored {
		t.Fatalf("expected errored, got %s", got)
	}
	if op.Snapshot().Loaded {
		t.Fatalf("expected value not applied when hook fails")
	}
	if reports.count() != 1 {
		t.Fatalf("expected hook failure reported")
	}
}

func TestOperation_SnapshotDoesNotWaitForApplyHook(t *testing.T) {
	op := NewOperation[string, string](activeLifecycle(t), "record", nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	op.OnApply(func(string, string) error {
		close(entered)
		<-release
		return nil
	})

	result := op.Start(context.Background(), "1", sleepFetch(nil))
	<-entered

	snap := make(chan Snapshot[string, string], 1)
	go func() { snap <- op.Snapshot() }()
	select {
	case got := <-snap:
		if !got.Loading || got.Loaded {
			t.Fatalf("expected loading state while the hook runs, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("Snapshot blocked behind the apply hook")
	}

	// A result superseded while its hook ran never becomes visible.
	op.Cancel()
	close(release)
	if got := <-result; got != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
	if op.Snapshot().Loaded {
		t.Fatalf("expected superseded result not applied")
	}
}

func TestLifecycle_States(t *testing.T) {
	life := NewLifecycle()
	if life.State() != StateNotReady || life.Active() {
		t.Fatalf("expected not ready")
	}
	if !life.Activate() || !life.Activate() {
		t.Fatalf("expected activate to be idempotent")
	}
	life.Dispose()
	if life.State() != StateDisposed {
		t.Fatalf("expected disposed")
	}
	if life.Activate() {
		t.Fatalf("expected activate after dispose to fail")
	}
}
