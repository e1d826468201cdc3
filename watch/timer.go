package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sampling period bounds.
const (
	DefaultPeriod = 24 * time.Hour
	MinPeriod     = 5 * time.Minute
	MaxPeriod     = 7 * 24 * time.Hour
)

// ClampPeriod returns d limited to [MinPeriod, MaxPeriod]; zero or negative
// means DefaultPeriod.
func ClampPeriod(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultPeriod
	case d < MinPeriod:
		return MinPeriod
	case d > MaxPeriod:
		return MaxPeriod
	default:
		return d
	}
}

// Timer fires a function periodically per registered key.
type Timer interface {
	// Register arms fn to run every period under id, replacing any earlier
	// registration for the same id.
	Register(id string, period time.Duration, fn func()) error
	// Cancel disarms id. Runs already in progress are not interrupted.
	Cancel(id string)
	Start()
	// Stop disarms everything and waits for running functions to return.
	Stop()
}

// CronTimer is a Timer backed by robfig/cron. Each registration is a
// cron.Every schedule, so it re-arms itself after every run.
type CronTimer struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewCronTimer creates a stopped timer.
func NewCronTimer() *CronTimer {
	return &CronTimer{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

func (t *CronTimer) Register(id string, period time.Duration, fn func()) error {
	if period <= 0 {
		return fmt.Errorf("invalid period %s for %s", period, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[id]; ok {
		t.cron.Remove(entry)
	}
	t.entries[id] = t.cron.Schedule(cron.Every(period), cron.FuncJob(fn))
	return nil
}

func (t *CronTimer) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[id]; ok {
		t.cron.Remove(entry)
		delete(t.entries, id)
	}
}

func (t *CronTimer) Start() {
	t.cron.Start()
}

func (t *CronTimer) Stop() {
	<-t.cron.Stop().Done()
}

// Next returns the next scheduled run for id, or the zero time when id is not
// registered or the timer is not running.
func (t *CronTimer) Next(id string) time.Time {
	t.mu.Lock()
	entry, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return t.cron.Entry(entry).Next
}
