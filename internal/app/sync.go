package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/adapters/observability"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

const unassignedCacheKey = "tours:unassigned"

// SyncService drives one end-to-end sync run: search, transform, reconcile,
// advance the global marker. Runs are strictly sequential; overlapping runs
// from independent callers are safe because upserts are idempotent.
type SyncService struct {
	source     domain.BookingSource
	tf         *Transformer
	rec        *Reconciler
	repo       domain.TourRepository
	cache      domain.Cache
	enabled    bool
	windowDays int
	now        func() time.Time
}

func NewSyncService(source domain.BookingSource, tf *Transformer, rec *Reconciler,
	repo domain.TourRepository, cache domain.Cache, enabled bool, windowDays int,
	now func() time.Time) *SyncService {
	if windowDays <= 0 {
		windowDays = 14
	}
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		source: source, tf: tf, rec: rec, repo: repo, cache: cache,
		enabled: enabled, windowDays: windowDays, now: now,
	}
}

// Run syncs the window [from, to]. Zero times default to [today, today+N].
// Per-record failures are isolated into the result's error list; a search
// or configuration failure aborts the run with no partial result.
func (s *SyncService) Run(ctx context.Context, from, to time.Time) (domain.SyncResult, error) {
	if !s.enabled || s.source == nil {
		return domain.SyncResult{}, domain.ErrSyncDisabled
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, s.windowDays)
	}

	raw, variant, err := s.source.Search(ctx, from, to)
	if err != nil {
		observability.ObserveSyncRun("failed", 0)
		return domain.SyncResult{}, fmt.Errorf("booking search: %w", err)
	}

	res := domain.SyncResult{Total: len(raw), Errors: []string{}}
	for i, b := range raw {
		rec, err := s.tf.Transform(ctx, b)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("booking %d: transform: %v", i, err))
			_ = s.repo.LogSkip(ctx, bookingRef(b), "transform: "+err.Error())
			continue
		}
		outcome, err := s.rec.Upsert(ctx, rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("booking %s: persist: %v", refOf(rec), err))
			_ = s.repo.LogSkip(ctx, refOf(rec), "persist: "+err.Error())
			continue
		}
		if outcome.Rescheduled {
			log.Info().Str("booking", refOf(rec)).
				Str("date", rec.Date).Str("time", rec.Time).
				Msg("booking rescheduled")
		}
		res.Synced++
	}

	// The marker moves once per completed run, not per record. A crash
	// mid-run reprocesses the same window on the next run.
	if err := s.repo.SetSyncMarker(ctx, s.now().UTC()); err != nil {
		log.Error().Err(err).Msg("failed to advance sync marker")
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, unassignedCacheKey)
	}

	outcome := "ok"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	observability.ObserveSyncRun(outcome, res.Synced)
	log.Info().Str("variant", variant).
		Int("total", res.Total).Int("synced", res.Synced).Int("errors", len(res.Errors)).
		Time("from", from).Time("to", to).
		Msg("sync run completed")
	return res, nil
}

func bookingRef(b map[string]any) string {
	if s := firstStringyAlias(b, "booking_id"); s != nil {
		return *s
	}
	if s := firstStringyAlias(b, "external_id"); s != nil {
		return *s
	}
	return "unknown"
}

func refOf(rec domain.TourRecord) string {
	if rec.BookingID != nil {
		return *rec.BookingID
	}
	if rec.ExternalID != nil {
		return *rec.ExternalID
	}
	return "unknown"
}
