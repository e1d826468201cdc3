package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/extract"
	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/tracking"
	"github.com/sirupsen/logrus"
)

// ErrItemNotFound is returned by SampleNow when the fetched page does not
// contain the tracked item.
var ErrItemNotFound = errors.New("item not found on page")

// Store is the part of the tracking store the scheduler reads and writes.
type Store interface {
	Get(ctx context.Context, id string) (*tracking.Item, error)
	ListAll(ctx context.Context) ([]tracking.Item, error)
	ApplySample(ctx context.Context, id string, rec product.Record, at time.Time) (*tracking.Change, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	// Sampling period per item, clamped with ClampPeriod
	Period time.Duration
	// Timeout per document fetch
	FetchTimeout time.Duration
	// How often Start's reconcile job re-reads the watch-list. Zero means
	// DefaultReconcileInterval; negative disables it.
	ReconcileInterval time.Duration
}

// DefaultReconcileInterval is how often a running scheduler picks up items
// tracked or untracked by other processes.
const DefaultReconcileInterval = time.Minute

// reconcileKey is the timer key of the reconcile job. It can never be an
// identifier.
const reconcileKey = "reconcile"

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Period:            DefaultPeriod,
		FetchTimeout:      docsource.DefaultTimeout,
		ReconcileInterval: DefaultReconcileInterval,
	}
}

// Scheduler samples every tracked item periodically and reports price
// changes. A failed cycle is dropped; the item's next cycle runs on schedule.
type Scheduler struct {
	store     Store
	provider  docsource.Provider
	extractor *extract.Extractor
	notifier  Notifier
	timer     Timer
	metrics   *Metrics
	config    *Config
	log       logrus.FieldLogger
	now       func() time.Time

	mu          sync.Mutex
	generations map[string]uint64
	nextGen     uint64
	ctx         context.Context
	cancel      context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sets the change event sink. Without one, events are only
// logged.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithTimer replaces the default cron timer.
func WithTimer(t Timer) Option {
	return func(s *Scheduler) { s.timer = t }
}

// WithMetrics sets the collectors updated by sampling.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the scheduler's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithClock sets the time source used to stamp samples.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(
	store Store,
	provider docsource.Provider,
	extractor *extract.Extractor,
	config *Config,
	opts ...Option,
) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if extractor == nil {
		extractor = extract.New(nil)
	}

	s := &Scheduler{
		store:       store,
		provider:    provider,
		extractor:   extractor,
		config:      config,
		log:         logrus.StandardLogger(),
		now:         time.Now,
		generations: make(map[string]uint64),
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timer == nil {
		s.timer = NewCronTimer()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Period returns the effective sampling period.
func (s *Scheduler) Period() time.Duration {
	return ClampPeriod(s.config.Period)
}

// Start arms a schedule for every tracked item, arms the reconcile job and
// starts the timer. Cycles run under ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked items: %w", err)
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, item := range items {
		if err := s.Schedule(item.Identifier); err != nil {
			return err
		}
	}

	if interval := s.reconcileInterval(); interval > 0 {
		err := s.timer.Register(reconcileKey, interval, func() {
			if err := s.Reconcile(s.baseContext()); err != nil {
				s.log.WithError(err).Warn("failed to reconcile schedules")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to arm reconcile job: %w", err)
		}
	}

	s.timer.Start()
	s.log.WithFields(logrus.Fields{
		"items":  len(items),
		"period": s.Period().String(),
	}).Info("scheduler started")
	return nil
}

// Stop cancels in-flight cycles, disarms every schedule and waits for
// running cycles to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.timer.Stop()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) reconcileInterval() time.Duration {
	if s.config.ReconcileInterval == 0 {
		return DefaultReconcileInterval
	}
	return s.config.ReconcileInterval
}

// Reconcile brings the schedules in line with the store: items tracked
// elsewhere are scheduled and items no longer tracked are unscheduled.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	items, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked items: %w", err)
	}

	tracked := make(map[string]bool, len(items))
	added := 0
	for _, item := range items {
		tracked[item.Identifier] = true
		if s.Scheduled(item.Identifier) {
			continue
		}
		if err := s.Schedule(item.Identifier); err != nil {
			return err
		}
		added++
	}

	removed := 0
	for _, id := range s.scheduledIDs() {
		if tracked[id] {
			continue
		}
		// The listing may predate a Track that scheduled id since.
		item, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			s.Unschedule(id)
			removed++
		}
	}

	if added > 0 || removed > 0 {
		s.log.WithFields(logrus.Fields{"added": added, "removed": removed}).Info("schedules reconciled")
	}
	return nil
}

func (s *Scheduler) scheduledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.generations))
	for id := range s.generations {
		ids = append(ids, id)
	}
	return ids
}

// Schedule arms periodic sampling for id, replacing an existing schedule.
func (s *Scheduler) Schedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGen++
	gen := s.nextGen
	if err := s.timer.Register(id, s.Period(), func() { s.cycle(id, gen) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", id, err)
	}
	s.generations[id] = gen
	s.metrics.scheduled.Set(float64(len(s.generations)))
	return nil
}

// Unschedule disarms id. A cycle already running for it discards its result.
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer.Cancel(id)
	delete(s.generations, id)
	s.metrics.scheduled.Set(float64(len(s.generations)))
}

// Scheduled reports whether id has an armed schedule.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.generations[id]
	return ok
}

// SampleNow runs one sampling cycle for id immediately and returns the
// change event, if any. Unlike scheduled cycles, failures are returned.
func (s *Scheduler) SampleNow(ctx context.Context, id string) (*ChangeEvent, error) {
	return s.sample(ctx, id, func() bool { return true })
}

// Acquire fetches target and extracts its record. Without an identifier the
// page must be a single item, or its first item is used.
func (s *Scheduler) Acquire(ctx context.Context, target docsource.Target) (product.Record, error) {
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	page, err := s.provider.Fetch(ctx, target)
	if err != nil {
		return product.Record{}, err
	}

	if target.Identifier != "" {
		rec, ok := s.extractor.ExtractItem(page, target.Identifier)
		if !ok {
			return product.Record{}, ErrItemNotFound
		}
		return rec, nil
	}

	records := s.extractor.ExtractBatch(page, nil)
	if len(records) == 0 {
		return product.Record{}, ErrItemNotFound
	}
	return records[0], nil
}

// current reports whether gen is still the live registration for id.
func (s *Scheduler) current(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[id] == gen
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cycle is the timer callback. Errors end the cycle quietly.
func (s *Scheduler) cycle(id string, gen uint64) {
	if !s.current(id, gen) {
		return
	}

	_, err := s.sample(s.baseContext(), id, func() bool { return s.current(id, gen) })
	if err != nil {
		s.log.WithFields(logrus.Fields{"identifier": id}).WithError(err).Debug("sampling cycle abandoned")
	}
}

// sample acquires, extracts and applies one sample for id. live is checked
// before the store is touched and again before notifying; a false result
// discards the cycle.
func (s *Scheduler) sample(ctx context.Context, id string, live func() bool) (*ChangeEvent, error) {
	log := s.log.WithFields(logrus.Fields{"identifier": id})

	item, err := s.store.Get(ctx, id)
	if err != nil {
		s.record(ResultStoreError)
		return nil, err
	}
	if item == nil {
		s.record(ResultMissing)
		return nil, tracking.ErrNotTracked
	}

	target := docsource.Target{Identifier: id}
	if item.Snapshot.ProductURL != nil {
		target.URL = *item.Snapshot.ProductURL
	}

	fetchCtx := ctx
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	page, err := s.provider.Fetch(fetchCtx, target)
	if err != nil {
		s.record(ResultUnavailable)
		log.WithError(err).Warn("document unavailable")
		return nil, err
	}

	rec, ok := s.extractor.ExtractItem(page, id)
	if !ok {
		s.record(ResultNotFound)
		log.WithFields(logrus.Fields{"url": page.URL}).Warn("item not found on page")
		return nil, ErrItemNotFound
	}

	if !live() {
		s.record(ResultDiscarded)
		return nil, tracking.ErrNotTracked
	}

	change, err := s.store.ApplySample(ctx, id, rec, s.now())
	if errors.Is(err, tracking.ErrNotTracked) {
		s.record(ResultMissing)
		return nil, err
	}
	if err != nil {
		s.record(ResultStoreError)
		log.WithError(err).Warn("failed to apply sample")
		return nil, err
	}
	if change == nil {
		s.record(ResultUnchanged)
		return nil, nil
	}

	if !live() {
		s.record(ResultDiscarded)
		return nil, tracking.ErrNotTracked
	}

	event := newChangeEvent(change)
	s.record(ResultChanged)
	s.metrics.changes.Inc()

	log.WithFields(logrus.Fields{
		"old_price": event.OldPrice.String(),
		"new_price": event.NewPrice.String(),
		"percent":   event.PercentChange().String(),
	}).Info("price changed")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, event); err != nil {
			log.WithError(err).Warn("failed to deliver change event")
		}
	}

	return &event, nil
}

func (s *Scheduler) record(result string) {
	s.metrics.samples.WithLabelValues(result).Inc()
}
