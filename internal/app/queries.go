package app

import (
	"context"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

type QueryService struct {
	repo     domain.TourRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.TourRepository, c domain.Cache, ttl time.Duration, now func() time.Time) *QueryService {
	if now == nil {
		now = time.Now
	}
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, now: now}
}

// UnassignedTours lists upcoming, non-cancelled tours that still need a
// guide. The sync run invalidates the cache after every batch.
func (s *QueryService) UnassignedTours(ctx context.Context) ([]domain.TourRecord, error) {
	var out []domain.TourRecord
	if ok, _ := s.cache.Get(ctx, unassignedCacheKey, &out); ok {
		return out, nil
	}
	today := s.now().UTC().Format("2006-01-02")
	out, err := s.repo.ListUnassigned(ctx, today)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, unassignedCacheKey, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// SyncStatus returns the global last-sync marker, nil when no run has
// completed yet.
func (s *QueryService) SyncStatus(ctx context.Context) (*time.Time, error) {
	return s.repo.SyncMarker(ctx)
}
