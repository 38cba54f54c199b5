package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/apperr"
	"bandspace/internal/audit"
	"bandspace/internal/events"
	"bandspace/pkg/db"
)

// Repository is the Postgres Store.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const bookingColumns = `id, venue_id, band_id, requester_id, event_type, starts_at, ends_at, full_day, state, notes, created_at, updated_at`

const approvalColumns = `id, booking_id, approver_id, decision, responded_at, created_at`

func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

func (r *Repository) Booking(ctx context.Context, id string) (*Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, q, id), id)
}

func (r *Repository) Approvals(ctx context.Context, bookingID string) ([]Approval, error) {
	return listApprovals(ctx, r.db, bookingID)
}

func (r *Repository) PendingApprovals(ctx context.Context, userID string) ([]PendingApproval, error) {
	const q = `
SELECT a.id, a.booking_id, a.approver_id, a.decision, a.responded_at, a.created_at,
       b.id, b.venue_id, b.band_id, b.requester_id, b.event_type, b.starts_at, b.ends_at, b.full_day, b.state, b.notes, b.created_at, b.updated_at
FROM booking_approvals a
JOIN bookings b ON b.id = a.booking_id
WHERE a.approver_id = $1 AND a.decision = 'UNDECIDED' AND b.state = 'PENDING_APPROVALS'
ORDER BY b.starts_at ASC
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PendingApproval{}
	for rows.Next() {
		var p PendingApproval
		a, b := &p.Approval, &p.Booking
		if err := rows.Scan(
			&a.ID, &a.BookingID, &a.ApproverID, &a.Decision, &a.RespondedAt, &a.CreatedAt,
			&b.ID, &b.VenueID, &b.BandID, &b.RequesterID, &b.Type, &b.StartsAt, &b.EndsAt, &b.FullDay, &b.State, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SharedBookings(ctx context.Context, userID string, from, to time.Time) ([]View, error) {
	const q = `
SELECT b.id, b.venue_id, b.band_id, b.requester_id, b.event_type, b.starts_at, b.ends_at, b.full_day, b.state, b.notes, b.created_at, b.updated_at,
       v.name, v.color, COALESCE(bd.name, ''), COALESCE(bd.color, '')
FROM bookings b
JOIN venues v ON v.id = b.venue_id
LEFT JOIN bands bd ON bd.id = b.band_id
WHERE (b.requester_id = $1
       OR b.band_id IN (SELECT band_id FROM band_members WHERE user_id = $1))
  AND ($2::timestamptz IS NULL OR b.ends_at > $2)
  AND ($3::timestamptz IS NULL OR b.starts_at < $3)
ORDER BY b.starts_at ASC
`
	rows, err := r.db.Query(ctx, q, userID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []View{}
	for rows.Next() {
		var v View
		b := &v.Booking
		if err := rows.Scan(
			&b.ID, &b.VenueID, &b.BandID, &b.RequesterID, &b.Type, &b.StartsAt, &b.EndsAt, &b.FullDay, &b.State, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
			&v.VenueName, &v.VenueColor, &v.BandName, &v.BandColor,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) Timeline(ctx context.Context, bookingID string) ([]events.Event, error) {
	return events.ListByBooking(ctx, r.db, bookingID)
}

// StartingBetween lists bookings of type t starting in [from, to) that are
// neither cancelled nor rejected.
func (r *Repository) StartingBetween(ctx context.Context, t EventType, from, to time.Time) ([]Booking, error) {
	q := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE event_type = $1 AND state NOT IN ('CANCELLED', 'REJECTED') AND starts_at >= $2 AND starts_at < $3
ORDER BY starts_at ASC
`
	rows, err := r.db.Query(ctx, q, t, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) InsertBooking(ctx context.Context, b *Booking) error {
	q := `INSERT INTO bookings (` + bookingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := t.tx.Exec(ctx, q,
		b.ID, b.VenueID, b.BandID, b.RequesterID, b.Type, b.StartsAt, b.EndsAt, b.FullDay, b.State, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("unknown venue or band")
	}
	return err
}

func (t pgTx) BookingForUpdate(ctx context.Context, id string) (*Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(t.tx.QueryRow(ctx, q, id), id)
}

func (t pgTx) SaveBooking(ctx context.Context, b *Booking) error {
	const q = `
UPDATE bookings
SET starts_at = $2, ends_at = $3, state = $4, notes = $5, updated_at = $6
WHERE id = $1
`
	_, err := t.tx.Exec(ctx, q, b.ID, b.StartsAt, b.EndsAt, b.State, b.Notes, b.UpdatedAt)
	return err
}

func (t pgTx) InsertApprovals(ctx context.Context, rows []Approval) error {
	q := `INSERT INTO booking_approvals (` + approvalColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	batch := &pgx.Batch{}
	for _, a := range rows {
		batch.Queue(q, a.ID, a.BookingID, a.ApproverID, a.Decision, a.RespondedAt, a.CreatedAt)
	}
	err := t.tx.SendBatch(ctx, batch).Close()
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("unknown approver")
	}
	return err
}

func (t pgTx) ApprovalForUpdate(ctx context.Context, id string) (*Approval, error) {
	q := `SELECT ` + approvalColumns + ` FROM booking_approvals WHERE id = $1 FOR UPDATE`
	var a Approval
	err := t.tx.QueryRow(ctx, q, id).Scan(&a.ID, &a.BookingID, &a.ApproverID, &a.Decision, &a.RespondedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("approval %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t pgTx) SaveApproval(ctx context.Context, a *Approval) error {
	// The decision column only moves away from UNDECIDED once.
	const q = `
UPDATE booking_approvals
SET decision = $2, responded_at = $3
WHERE id = $1 AND decision = 'UNDECIDED'
`
	tag, err := t.tx.Exec(ctx, q, a.ID, a.Decision, a.RespondedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("approval %s was already answered", a.ID)
	}
	return nil
}

func (t pgTx) Approvals(ctx context.Context, bookingID string) ([]Approval, error) {
	return listApprovals(ctx, t.tx, bookingID)
}

func (t pgTx) AppendTimeline(ctx context.Context, bookingID string, e TimelineEntry) error {
	return events.Insert(ctx, t.tx, bookingID, e.Type, e.Summary, e.Actor, e.At, e.Data)
}

func (t pgTx) Audit(ctx context.Context, b *Booking, action, actor string, metadata any) error {
	venueID := b.VenueID
	return audit.Insert(ctx, t.tx, &venueID, "booking", b.ID, action, actor, metadata)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listApprovals(ctx context.Context, q querier, bookingID string) ([]Approval, error) {
	sql := `SELECT ` + approvalColumns + ` FROM booking_approvals WHERE booking_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := q.Query(ctx, sql, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Approval{}
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.BookingID, &a.ApproverID, &a.Decision, &a.RespondedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row, id string) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.VenueID, &b.BandID, &b.RequesterID, &b.Type, &b.StartsAt, &b.EndsAt, &b.FullDay, &b.State, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
