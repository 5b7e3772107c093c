package domain

import (
	"context"
	"time"
)

type TourRepository interface {
	// Write paths
	Insert(ctx context.Context, t TourRecord) error
	Update(ctx context.Context, t TourRecord) error
	LogSkip(ctx context.Context, bookingRef, reason string) error
	SetSyncMarker(ctx context.Context, at time.Time) error

	// Read paths
	FindByExternalKey(ctx context.Context, bookingID, externalID *string) (TourRecord, error)
	ListUnassigned(ctx context.Context, fromDate string) ([]TourRecord, error)
	SyncMarker(ctx context.Context) (*time.Time, error)
}

// BookingSource yields raw upstream bookings for a date window. The second
// return value names the request variant that produced them.
type BookingSource interface {
	Search(ctx context.Context, from, to time.Time) ([]map[string]any, string, error)
}

// ProductCatalog resolves rate metadata from the upstream platform. Used as
// a secondary signal for language inference.
type ProductCatalog interface {
	RateTitle(ctx context.Context, activityID, rateID string) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
