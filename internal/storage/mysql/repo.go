package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/DhaNu1204/guide-florence-with-locals-sub001/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Insert(ctx context.Context, t domain.TourRecord) error {
	_, err := r.db.ExecContext(ctx, insertTourSQL,
		valStr(t.BookingID),
		valStr(t.ExternalID),
		valStr(t.ConfirmationCode),
		t.Title,
		t.Date,
		t.Time,
		valInt(t.DurationMin),
		valStr(t.Language),
		t.Participants,
		valStr(t.CustomerName),
		valStr(t.CustomerEmail),
		valStr(t.CustomerPhone),
		valStr(t.BookingChannel),
		valF64(t.Amount),
		t.Cancelled,
		t.NeedsAssignment,
		t.GuidePaymentStatus,
		t.Rescheduled,
		valStr(t.OriginalDate),
		valStr(t.OriginalTime),
		valTime(t.RescheduledAt),
		t.LastSyncedAt,
		valJSON(t.RawJSON),
	)
	return err
}

func (r *Repo) Update(ctx context.Context, t domain.TourRecord) error {
	_, err := r.db.ExecContext(ctx, updateTourSQL,
		valStr(t.BookingID),
		valStr(t.ExternalID),
		valStr(t.ConfirmationCode),
		t.Title,
		t.Date,
		t.Time,
		valInt(t.DurationMin),
		valStr(t.Language),
		t.Participants,
		valStr(t.CustomerName),
		valStr(t.CustomerEmail),
		valStr(t.CustomerPhone),
		valStr(t.BookingChannel),
		valF64(t.Amount),
		t.Cancelled,
		t.Rescheduled,
		valStr(t.OriginalDate),
		valStr(t.OriginalTime),
		valTime(t.RescheduledAt),
		t.LastSyncedAt,
		valJSON(t.RawJSON),
		t.ID,
	)
	return err
}

func (r *Repo) FindByExternalKey(ctx context.Context, bookingID, externalID *string) (domain.TourRecord, error) {
	row := r.db.QueryRowContext(ctx, findByExternalKeySQL, valStr(bookingID), valStr(externalID))
	return scanTour(row)
}

func (r *Repo) ListUnassigned(ctx context.Context, fromDate string) ([]domain.TourRecord, error) {
	rows, err := r.db.QueryContext(ctx, listUnassignedSQL, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TourRecord
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) LogSkip(ctx context.Context, bookingRef, reason string) error {
	_, err := r.db.ExecContext(ctx, insertSkipSQL, bookingRef, reason)
	return err
}

func (r *Repo) SetSyncMarker(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx, upsertSyncMarkerSQL, at)
	return err
}

func (r *Repo) SyncMarker(ctx context.Context) (*time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, selectSyncMarkerSQL).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTour(row rowScanner) (domain.TourRecord, error) {
	var t domain.TourRecord
	var (
		bookingID, externalID, confirmation     sql.NullString
		durationMin                             sql.NullInt64
		language                                sql.NullString
		custName, custEmail, custPhone, channel sql.NullString
		amount                                  sql.NullFloat64
		originalDate, originalTime              sql.NullString
		rescheduledAt                           sql.NullTime
		guideID                                 sql.NullInt64
		notes                                   sql.NullString
		raw                                     []byte
	)
	if err := row.Scan(
		&t.ID,
		&bookingID, &externalID, &confirmation,
		&t.Title, &t.Date, &t.Time,
		&durationMin, &language, &t.Participants,
		&custName, &custEmail, &custPhone,
		&channel, &amount,
		&t.Cancelled, &t.NeedsAssignment, &t.GuidePaymentStatus,
		&t.Rescheduled, &originalDate, &originalTime, &rescheduledAt,
		&guideID, &notes,
		&t.LastSyncedAt, &raw,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.TourRecord{}, domain.ErrNotFound
		}
		return domain.TourRecord{}, err
	}

	if bookingID.Valid {
		s := bookingID.String
		t.BookingID = &s
	}
	if externalID.Valid {
		s := externalID.String
		t.ExternalID = &s
	}
	if confirmation.Valid {
		s := confirmation.String
		t.ConfirmationCode = &s
	}
	if durationMin.Valid {
		d := int(durationMin.Int64)
		t.DurationMin = &d
	}
	if language.Valid {
		s := language.String
		t.Language = &s
	}
	if custName.Valid {
		s := custName.String
		t.CustomerName = &s
	}
	if custEmail.Valid {
		s := custEmail.String
		t.CustomerEmail = &s
	}
	if custPhone.Valid {
		s := custPhone.String
		t.CustomerPhone = &s
	}
	if channel.Valid {
		s := channel.String
		t.BookingChannel = &s
	}
	if amount.Valid {
		f := amount.Float64
		t.Amount = &f
	}
	if originalDate.Valid {
		s := originalDate.String
		t.OriginalDate = &s
	}
	if originalTime.Valid {
		s := originalTime.String
		t.OriginalTime = &s
	}
	if rescheduledAt.Valid {
		at := rescheduledAt.Time
		t.RescheduledAt = &at
	}
	if guideID.Valid {
		id := guideID.Int64
		t.GuideID = &id
	}
	if notes.Valid {
		s := notes.String
		t.Notes = &s
	}
	if len(raw) > 0 {
		t.RawJSON = append([]byte(nil), raw...)
	}
	return t, nil
}
