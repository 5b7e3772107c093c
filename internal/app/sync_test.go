package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/app"
	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

type fakeSource struct {
	bookings []map[string]any
	err      error
	from, to time.Time
	calls    int
}

func (f *fakeSource) Search(ctx context.Context, from, to time.Time) ([]map[string]any, string, error) {
	f.calls++
	f.from, f.to = from, to
	if f.err != nil {
		return nil, "", f.err
	}
	return f.bookings, "booking-search-iso", nil
}

func booking(id int, date string) map[string]any {
	return map[string]any{
		"bookingId":     float64(id),
		"startDateTime": date + "T10:00:00Z",
		"fields":        map[string]any{"title": "Duomo Tour"},
	}
}

func newSyncService(src domain.BookingSource, repo *fakeRepo, enabled bool) *app.SyncService {
	clock := tickingClock(time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC))
	tf := app.NewTransformer(nil, nil, 0)
	rec := app.NewReconciler(repo, clock)
	return app.NewSyncService(src, tf, rec, repo, &fakeCache{}, enabled, 14, clock)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	src := &fakeSource{bookings: []map[string]any{
		booking(1, "2025-06-02"),
		booking(2, "2025-06-03"),
		{"title": "no ids at all"}, // transform fails
		booking(4, "2025-06-04"),
		booking(5, "2025-06-05"),
	}}
	repo := &fakeRepo{}
	svc := newSyncService(src, repo, true)

	res, err := svc.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("run must not abort on a per-record failure: %v", err)
	}
	if res.Total != 5 || res.Synced != 4 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(repo.skips) != 1 {
		t.Fatalf("skip ledger = %v, want one entry", repo.skips)
	}
}

func TestRun_DisabledReturnsConfigurationError(t *testing.T) {
	repo := &fakeRepo{}
	svc := newSyncService(&fakeSource{}, repo, false)

	_, err := svc.Run(context.Background(), time.Time{}, time.Time{})
	if !errors.Is(err, domain.ErrSyncDisabled) {
		t.Fatalf("err = %v, want ErrSyncDisabled", err)
	}
}

func TestRun_SearchFailureAbortsRun(t *testing.T) {
	repo := &fakeRepo{}
	svc := newSyncService(&fakeSource{err: &domain.UpstreamError{Status: 500}}, repo, true)

	_, err := svc.Run(context.Background(), time.Time{}, time.Time{})
	if err == nil {
		t.Fatalf("expected run-level failure")
	}
	if len(repo.markerSets) != 0 {
		t.Fatalf("marker must not advance on an aborted run")
	}
}

func TestRun_MarkerAdvancesOncePerRun(t *testing.T) {
	src := &fakeSource{bookings: []map[string]any{
		booking(1, "2025-06-02"),
		booking(2, "2025-06-03"),
		booking(3, "2025-06-04"),
	}}
	repo := &fakeRepo{}
	svc := newSyncService(src, repo, true)

	if _, err := svc.Run(context.Background(), time.Time{}, time.Time{}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.markerSets) != 1 {
		t.Fatalf("marker sets = %d, want exactly 1 per run", len(repo.markerSets))
	}
}

func TestRun_DefaultWindow(t *testing.T) {
	src := &fakeSource{}
	repo := &fakeRepo{}
	svc := newSyncService(src, repo, true)

	if _, err := svc.Run(context.Background(), time.Time{}, time.Time{}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if src.to.Sub(src.from) != 14*24*time.Hour {
		t.Fatalf("window = %s..%s, want 14 days", src.from, src.to)
	}
}

func TestRun_ExplicitWindowRespected(t *testing.T) {
	src := &fakeSource{}
	repo := &fakeRepo{}
	svc := newSyncService(src, repo, true)

	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Run(context.Background(), from, to); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !src.from.Equal(from) || !src.to.Equal(to) {
		t.Fatalf("window = %s..%s", src.from, src.to)
	}
}

func TestRun_PersistenceFailureIsolated(t *testing.T) {
	src := &fakeSource{bookings: []map[string]any{booking(1, "2025-06-02")}}
	repo := &fakeRepo{insertErr: errors.New("deadlock")}
	svc := newSyncService(src, repo, true)

	res, err := svc.Run(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("per-record persistence failure must not abort: %v", err)
	}
	if res.Synced != 0 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}
