package sheets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/fixturedesk/leaddesk/internal/fetch"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultSyncInterval = 30 * time.Minute
	defaultStoreTimeout = 10 * time.Second
	defaultLockTTL      = 2 * time.Minute
	lockKeyPrefix       = "leaddesk:sheets:"
)

var (
	// ErrUnknownSource is returned for a source name that is not configured.
	ErrUnknownSource = errors.New("sheets: unknown source")
	// ErrSyncBusy is returned when another instance holds the sync lock.
	ErrSyncBusy = errors.New("sheets: sync already running elsewhere")
)

// Source is a configured spreadsheet pulled on a schedule.
type Source struct {
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Range string `yaml:"range" json:"range"`
	Kind  string `yaml:"kind" json:"kind"`
}

// Target identifies what a sync fetched.
type Target struct {
	SpreadsheetID string
	Range         string
}

// SyncerOption customises a Syncer.
type SyncerOption func(*Syncer)

// WithInterval sets the schedule interval.
func WithInterval(interval time.Duration) SyncerOption {
	return func(s *Syncer) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLocker makes scheduled runs take a redis lock per source so only one
// instance syncs a source at a time.
func WithLocker(locker *redislock.Client, ttl time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithImportHook is called after rate card rows from a source were imported.
func WithImportHook(fn func(source string, result ImportResult)) SyncerOption {
	return func(s *Syncer) {
		s.onImport = fn
	}
}

// Syncer keeps sheet snapshots in the database up to date.
type Syncer struct {
	db       *gorm.DB
	fetcher  Fetcher
	interval time.Duration
	locker   *redislock.Client
	lockTTL  time.Duration
	now      func() time.Time
	onImport func(source string, result ImportResult)

	sources map[string]Source
	names   []string
	life    *fetch.Lifecycle
	ops     map[string]*fetch.Operation[Target, [][]string]

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSyncer constructs a sheets syncer. Sources without a name are ignored.
func NewSyncer(db *gorm.DB, fetcher Fetcher, sources []Source, opts ...SyncerOption) *Syncer {
	if db == nil || fetcher == nil {
		return nil
	}
	s := &Syncer{
		db:       db,
		fetcher:  fetcher,
		interval: defaultSyncInterval,
		lockTTL:  defaultLockTTL,
		now:      time.Now,
		sources:  make(map[string]Source, len(sources)),
		life:     fetch.NewLifecycle(),
		ops:      make(map[string]*fetch.Operation[Target, [][]string], len(sources)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, src := range sources {
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			continue
		}
		if _, dup := s.sources[src.Name]; dup {
			log.Warnf("sheets syncer: duplicate source %q ignored", src.Name)
			continue
		}
		s.sources[src.Name] = src
		s.names = append(s.names, src.Name)

		source := src
		op := fetch.NewOperation[Target, [][]string](s.life, "sheet "+source.Name, nil)
		op.OnApply(func(target Target, rows [][]string) error {
			return s.apply(source, target, rows)
		})
		s.ops[source.Name] = op
	}
	sort.Strings(s.names)
	return s
}

// Sources returns the configured sources ordered by name.
func (s *Syncer) Sources() []Source {
	if s == nil {
		return nil
	}
	out := make([]Source, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.sources[name])
	}
	return out
}

// Start activates the syncer and runs the schedule in the background.
func (s *Syncer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || !s.life.Activate() {
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
	log.Infof("sheets syncer started (sources=%d interval=%s)", len(s.names), s.interval)
}

// Activate allows manual syncs without starting the schedule.
func (s *Syncer) Activate() bool {
	if s == nil {
		return false
	}
	return s.life.Activate()
}

// Stop ends the schedule, cancels in-flight fetches and drops their results.
func (s *Syncer) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.life.Dispose()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, op := range s.ops {
		op.Wait()
	}
}

func (s *Syncer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.syncScheduled(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncScheduled(ctx)
		}
	}
}

func (s *Syncer) syncScheduled(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("sheets syncer: sync failed")
	}
}

// SyncOnce syncs every source once, taking the redis lock when configured.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("sheets syncer: nil syncer")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, name := range s.names {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.syncLocked(ctx, name); err != nil {
			if errors.Is(err, ErrSyncBusy) {
				log.Debugf("sheets syncer: %s busy on another instance", name)
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) syncLocked(ctx context.Context, name string) error {
	if s.locker == nil {
		_, err := s.SyncSource(ctx, name)
		return err
	}
	lock, errObtain := s.locker.Obtain(ctx, lockKeyPrefix+name, s.lockTTL, nil)
	if errObtain != nil {
		if errors.Is(errObtain, redislock.ErrNotObtained) {
			return ErrSyncBusy
		}
		log.WithError(errObtain).Warn("sheets syncer: lock unavailable, syncing without it")
		_, err := s.SyncSource(ctx, name)
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if errRelease := lock.Release(releaseCtx); errRelease != nil && !errors.Is(errRelease, redislock.ErrLockNotHeld) {
			log.WithError(errRelease).Warn("sheets syncer: release lock failed")
		}
	}()
	_, err := s.SyncSource(ctx, name)
	return err
}

// SyncSource fetches one source now. A sync already running for the same
// source is superseded; its result is dropped.
func (s *Syncer) SyncSource(ctx context.Context, name string) (fetch.Outcome, error) {
	if s == nil {
		return fetch.OutcomeDiscarded, fmt.Errorf("sheets syncer: nil syncer")
	}
	src, ok := s.sources[name]
	if !ok {
		return fetch.OutcomeDiscarded, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	spreadsheetID, errID := ExtractSpreadsheetID(src.URL)
	if errID != nil {
		return fetch.OutcomeErrored, fmt.Errorf("sheets syncer: source %s: %w", name, errID)
	}
	target := Target{SpreadsheetID: spreadsheetID, Range: strings.TrimSpace(src.Range)}

	op := s.ops[name]
	outcome := op.Run(ctx, target, func(ctx context.Context, t Target) ([][]string, error) {
		return s.fetcher.Fetch(ctx, t.SpreadsheetID, t.Range)
	})
	if outcome != fetch.OutcomeErrored {
		return outcome, nil
	}

	errSync := op.Snapshot().Err
	if errSync == nil {
		errSync = fmt.Errorf("sheets syncer: source %s failed", name)
	}
	storeCtx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
	defer cancel()
	if errRecord := RecordFailure(storeCtx, s.db, name, target, errSync, s.now()); errRecord != nil {
		log.WithError(errRecord).Warn("sheets syncer: record failure")
	}
	return outcome, errSync
}

// Status returns the visible state of a source's sync slot.
func (s *Syncer) Status(name string) (fetch.Snapshot[Target, [][]string], bool) {
	if s == nil {
		return fetch.Snapshot[Target, [][]string]{}, false
	}
	op, ok := s.ops[name]
	if !ok {
		return fetch.Snapshot[Target, [][]string]{}, false
	}
	return op.Snapshot(), true
}

func (s *Syncer) apply(src Source, target Target, rows [][]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultStoreTimeout)
	defer cancel()
	if err := StoreSnapshot(ctx, s.db, src.Name, target, rows, s.now()); err != nil {
		return err
	}
	if src.Kind != KindRateCards {
		return nil
	}
	result, errImport := ImportRateCards(ctx, s.db, rows)
	if errImport != nil {
		return errImport
	}
	log.Infof("sheets syncer: %s imported %d rate cards (%d skipped)", src.Name, result.Imported, result.Skipped)
	if s.onImport != nil {
		s.onImport(src.Name, result)
	}
	return nil
}
