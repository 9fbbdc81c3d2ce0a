package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zeinbus/internal/booking"
)

// Submission outcomes. A pending record holds its idempotency key while the
// backend call is in flight.
const (
	SubmissionPending   = "pending"
	SubmissionSubmitted = "submitted"
	SubmissionRejected  = "rejected"
	SubmissionFailed    = "failed"
)

// SubmissionRecord is one attempt to create a booking. Idempotency keys are
// scoped to the user that sent them.
type SubmissionRecord struct {
	ID             int64
	IdempotencyKey string
	UserID         string
	TripDate       string
	TripType       string
	Seats          int
	TripCost       booking.Money
	Status         string
	Error          string
	BookingID      string
	CreatedAt      time.Time
}

const submissionColumns = `id, idempotency_key, user_id, COALESCE(trip_date, ''), COALESCE(trip_type, ''),
		       seats, trip_cost, status, COALESCE(error, ''), COALESCE(booking_id, ''), created_at`

// ReserveSubmission claims the user's idempotency key as pending. It returns
// nil when the claim succeeded. Otherwise it returns the record holding the
// key: a submitted booking, or a pending attempt created after staleBefore.
// Rejected and failed attempts, and pending ones older than staleBefore, are
// claimed again.
func (db *DB) ReserveSubmission(ctx context.Context, r *SubmissionRecord, staleBefore time.Time) (*SubmissionRecord, error) {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO submissions (idempotency_key, user_id, trip_date, trip_type, seats, trip_cost, status, error, booking_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?)
		ON CONFLICT(user_id, idempotency_key) DO UPDATE SET
			trip_date = excluded.trip_date,
			trip_type = excluded.trip_type,
			seats = excluded.seats,
			trip_cost = excluded.trip_cost,
			status = excluded.status,
			error = NULL,
			booking_id = NULL,
			created_at = excluded.created_at
		WHERE submissions.status IN (?, ?)
		   OR (submissions.status = ? AND submissions.created_at < ?)`,
		r.IdempotencyKey, r.UserID, r.TripDate, r.TripType, r.Seats, r.TripCost,
		SubmissionPending, created.UTC(),
		SubmissionRejected, SubmissionFailed, SubmissionPending, staleBefore.UTC())
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 1 {
		r.Status = SubmissionPending
		r.CreatedAt = created
		return nil, nil
	}

	held, err := db.GetSubmission(ctx, r.UserID, r.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if held == nil {
		return nil, fmt.Errorf("submission %q vanished while reserving", r.IdempotencyKey)
	}
	return held, nil
}

// RecordSubmission stores the outcome of an attempt. A key the user already
// used updates the earlier record instead of adding a new one.
func (db *DB) RecordSubmission(ctx context.Context, r *SubmissionRecord) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO submissions (idempotency_key, user_id, trip_date, trip_type, seats, trip_cost, status, error, booking_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, idempotency_key) DO UPDATE SET
			trip_date = COALESCE(NULLIF(excluded.trip_date, ''), submissions.trip_date),
			trip_type = COALESCE(NULLIF(excluded.trip_type, ''), submissions.trip_type),
			seats = CASE WHEN excluded.seats > 0 THEN excluded.seats ELSE submissions.seats END,
			trip_cost = CASE WHEN excluded.trip_cost > 0 THEN excluded.trip_cost ELSE submissions.trip_cost END,
			status = excluded.status,
			error = excluded.error,
			booking_id = excluded.booking_id`,
		r.IdempotencyKey, r.UserID, r.TripDate, r.TripType, r.Seats, r.TripCost,
		r.Status, nullString(r.Error), nullString(r.BookingID), created.UTC())
	return err
}

// GetSubmission returns the user's attempt recorded under key, or nil when
// there is none.
func (db *DB) GetSubmission(ctx context.Context, userID, key string) (*SubmissionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE user_id = ? AND idempotency_key = ?`, userID, key)

	var r SubmissionRecord
	err := row.Scan(&r.ID, &r.IdempotencyKey, &r.UserID, &r.TripDate, &r.TripType,
		&r.Seats, &r.TripCost, &r.Status, &r.Error, &r.BookingID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// ListSubmissions returns the user's most recent attempts first.
func (db *DB) ListSubmissions(ctx context.Context, userID string, limit int) ([]SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubmissionRecord
	for rows.Next() {
		var r SubmissionRecord
		if err := rows.Scan(&r.ID, &r.IdempotencyKey, &r.UserID, &r.TripDate, &r.TripType,
			&r.Seats, &r.TripCost, &r.Status, &r.Error, &r.BookingID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
