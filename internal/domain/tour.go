package domain

import "time"

// GuidePaymentPending is the initial guide-payment state for every synced
// tour. It tracks what we owe the guide and is unrelated to the customer
// payment status Bokun reports.
const GuidePaymentPending = "awaiting guide payment"

// TourRecord is the normalized representation of one upstream booking, used
// for scheduling, guide assignment and guide-payment tracking.
type TourRecord struct {
	ID               int64
	BookingID        *string // upstream parent booking id
	ExternalID       *string // upstream product-booking id
	ConfirmationCode *string

	Title       string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM
	DurationMin *int
	Language    *string
	Participants int

	CustomerName  *string
	CustomerEmail *string
	CustomerPhone *string

	BookingChannel *string
	Amount         *float64

	Cancelled          bool
	NeedsAssignment    bool
	GuidePaymentStatus string

	Rescheduled   bool
	OriginalDate  *string
	OriginalTime  *string
	RescheduledAt *time.Time

	// Operator-owned; never written by sync.
	GuideID *int64
	Notes   *string

	LastSyncedAt time.Time
	RawJSON      []byte // full upstream booking payload
}

// SyncResult summarizes one sync run. It is returned to the caller and never
// persisted.
type SyncResult struct {
	Synced int      `json:"synced_count"`
	Total  int      `json:"total_bookings"`
	Errors []string `json:"errors"`
}

// UpsertOutcome reports what the reconciler did with one record.
type UpsertOutcome struct {
	Inserted    bool
	Rescheduled bool
}
