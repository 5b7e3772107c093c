package app

import (
	"context"
	"errors"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

// Reconciler idempotently merges canonical records into the store. Two
// overlapping runs applying the same snapshot to the same key converge to
// the same row; no lock is taken.
type Reconciler struct {
	repo domain.TourRepository
	now  func() time.Time
}

func NewReconciler(repo domain.TourRepository, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{repo: repo, now: now}
}

// Upsert inserts or updates one record keyed by upstream booking id or
// external id.
//
// Update rules:
//   - identity fields, once set, are never regressed to nil
//   - a date/time change marks the record rescheduled; the stored schedule
//     is snapshotted into OriginalDate/OriginalTime only the first time
//   - operator-owned fields (guide, notes, assignment flag, guide-payment
//     status) are never touched
//   - everything else mirrors the incoming snapshot, cancellation included
func (r *Reconciler) Upsert(ctx context.Context, incoming domain.TourRecord) (domain.UpsertOutcome, error) {
	stored, err := r.repo.FindByExternalKey(ctx, incoming.BookingID, incoming.ExternalID)
	if errors.Is(err, domain.ErrNotFound) {
		incoming.NeedsAssignment = true
		incoming.GuidePaymentStatus = domain.GuidePaymentPending
		incoming.LastSyncedAt = r.now()
		if err := r.repo.Insert(ctx, incoming); err != nil {
			return domain.UpsertOutcome{}, err
		}
		return domain.UpsertOutcome{Inserted: true}, nil
	}
	if err != nil {
		return domain.UpsertOutcome{}, err
	}

	merged := stored
	if incoming.BookingID != nil {
		merged.BookingID = incoming.BookingID
	}
	if incoming.ExternalID != nil {
		merged.ExternalID = incoming.ExternalID
	}
	if incoming.ConfirmationCode != nil {
		merged.ConfirmationCode = incoming.ConfirmationCode
	}

	rescheduled := incoming.Date != "" &&
		(incoming.Date != stored.Date || incoming.Time != stored.Time)
	if rescheduled {
		if !stored.Rescheduled {
			origDate, origTime := stored.Date, stored.Time
			merged.OriginalDate = &origDate
			merged.OriginalTime = &origTime
		}
		merged.Rescheduled = true
		at := r.now()
		merged.RescheduledAt = &at
		merged.Date = incoming.Date
		merged.Time = incoming.Time
	}

	merged.Title = incoming.Title
	merged.DurationMin = incoming.DurationMin
	merged.Language = incoming.Language
	merged.Participants = incoming.Participants
	merged.CustomerName = incoming.CustomerName
	merged.CustomerEmail = incoming.CustomerEmail
	merged.CustomerPhone = incoming.CustomerPhone
	merged.BookingChannel = incoming.BookingChannel
	merged.Amount = incoming.Amount
	merged.Cancelled = incoming.Cancelled
	merged.RawJSON = incoming.RawJSON
	merged.LastSyncedAt = r.now()

	if err := r.repo.Update(ctx, merged); err != nil {
		return domain.UpsertOutcome{}, err
	}
	return domain.UpsertOutcome{Rescheduled: rescheduled}, nil
}
