package watch

import (
	"context"

	"github.com/pevans/shelfwatch/docsource"
	"github.com/pevans/shelfwatch/product"
	"github.com/pevans/shelfwatch/tracking"
)

// Tracker is the tracking store as seen by the Service.
type Tracker interface {
	Store
	Add(ctx context.Context, rec product.Record) (*tracking.Item, bool, error)
	Untrack(ctx context.Context, id string) (bool, error)
}

// Service keeps the watch-list and the schedules in step. CLI commands and
// the API change the watch-list only through it.
type Service struct {
	store     Tracker
	scheduler *Scheduler
}

// NewService creates a service over store and scheduler.
func NewService(store Tracker, scheduler *Scheduler) *Service {
	return &Service{store: store, scheduler: scheduler}
}

// Scheduler returns the service's scheduler.
func (s *Service) Scheduler() *Scheduler {
	return s.scheduler
}

// Track stores rec and arms its schedule. Tracking an item twice is a no-op.
func (s *Service) Track(ctx context.Context, rec product.Record) (*tracking.Item, error) {
	item, _, err := s.add(ctx, rec)
	return item, err
}

// TrackTarget acquires the page for target and tracks the extracted item.
// The bool reports whether the item was newly tracked.
func (s *Service) TrackTarget(ctx context.Context, target docsource.Target) (*tracking.Item, bool, error) {
	rec, err := s.scheduler.Acquire(ctx, target)
	if err != nil {
		return nil, false, err
	}
	return s.add(ctx, rec)
}

func (s *Service) add(ctx context.Context, rec product.Record) (*tracking.Item, bool, error) {
	item, created, err := s.store.Add(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	if !s.scheduler.Scheduled(item.Identifier) {
		if err := s.scheduler.Schedule(item.Identifier); err != nil {
			return nil, false, err
		}
	}
	return item, created, nil
}

// Untrack cancels the schedule before removing the item, so no cycle for id
// can emit an event afterwards.
func (s *Service) Untrack(ctx context.Context, id string) (bool, error) {
	s.scheduler.Unschedule(id)
	return s.store.Untrack(ctx, id)
}

// Get returns the tracked item for id, or nil.
func (s *Service) Get(ctx context.Context, id string) (*tracking.Item, error) {
	return s.store.Get(ctx, id)
}

// List returns every tracked item.
func (s *Service) List(ctx context.Context) ([]tracking.Item, error) {
	return s.store.ListAll(ctx)
}
