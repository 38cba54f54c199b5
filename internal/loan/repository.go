package loan

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/apperr"
	"bandspace/internal/party"
	"bandspace/pkg/db"
)

// querier is satisfied by both pgx.Tx and *pgxpool.Pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const loanColumns = `id, item_id, lender_id, recipient_user_id, recipient_band_id, origin_venue_id, destination_venue_id, state, notes, lent_at, due_at, returned_at`

func Insert(ctx context.Context, tx pgx.Tx, l *Loan) error {
	recipientUser, recipientBand := l.Recipient.Columns()
	q := `
INSERT INTO loans (item_id, lender_id, recipient_user_id, recipient_band_id, origin_venue_id, destination_venue_id, state, notes, lent_at, due_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + loanColumns
	created, err := scanLoan(tx.QueryRow(ctx, q,
		l.ItemID, l.LenderID, recipientUser, recipientBand,
		l.OriginVenueID, l.DestinationVenueID, l.State, l.Notes, l.LentAt, l.DueAt,
	), "")
	switch {
	case db.IsUniqueViolation(err):
		return apperr.InvalidState("item %s is already on loan", l.ItemID)
	case db.IsForeignKeyViolation(err):
		return apperr.Validation("unknown recipient or venue")
	case err != nil:
		return err
	}
	*l = *created
	return nil
}

// OpenForItem returns the ACTIVE or OVERDUE loan on itemID, or nil.
func OpenForItem(ctx context.Context, tx pgx.Tx, itemID string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE item_id = $1 AND state IN ('ACTIVE', 'OVERDUE') FOR UPDATE`
	l, err := scanLoan(tx.QueryRow(ctx, q, itemID), "")
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return l, err
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	return scanLoan(tx.QueryRow(ctx, q, id), id)
}

func Save(ctx context.Context, tx pgx.Tx, l *Loan) error {
	const q = `UPDATE loans SET state = $2, returned_at = $3 WHERE id = $1`
	_, err := tx.Exec(ctx, q, l.ID, l.State, l.ReturnedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	return scanLoan(r.db.QueryRow(ctx, q, id), id)
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Loan, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE TRUE`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += ` AND ` + cond + ` = $` + strconv.Itoa(len(args))
	}
	if f.State != "" {
		add("state", f.State)
	}
	if f.ItemID != "" {
		add("item_id", f.ItemID)
	}
	if f.LenderID != "" {
		add("lender_id", f.LenderID)
	}
	q += ` ORDER BY lent_at DESC`
	return r.list(ctx, q, args...)
}

// ListOverdue returns loans already flagged OVERDUE plus ACTIVE loans past
// due that the sweep has not reached yet.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]Loan, error) {
	q := `
SELECT ` + loanColumns + `
FROM loans
WHERE state = 'OVERDUE' OR (state = 'ACTIVE' AND due_at < $1)
ORDER BY due_at ASC
`
	return r.list(ctx, q, now)
}

// DueBetween lists ACTIVE loans due in [from, to).
func (r *Repository) DueBetween(ctx context.Context, from, to time.Time) ([]Loan, error) {
	q := `
SELECT ` + loanColumns + `
FROM loans
WHERE state = 'ACTIVE' AND due_at >= $1 AND due_at < $2
ORDER BY due_at ASC
`
	return r.list(ctx, q, from, to)
}

// MarkOverdue flips every ACTIVE loan past due to OVERDUE and returns them.
func MarkOverdue(ctx context.Context, tx pgx.Tx, now time.Time) ([]Loan, error) {
	q := `
UPDATE loans SET state = 'OVERDUE'
WHERE state = 'ACTIVE' AND due_at < $1
RETURNING ` + loanColumns
	rows, err := tx.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// RecipientUserIDs expands a party into user ids: the user itself or the
// band's members.
func RecipientUserIDs(ctx context.Context, q querier, p party.Party) ([]string, error) {
	if p.IsUser() {
		return []string{p.ID()}, nil
	}
	rows, err := q.Query(ctx, `SELECT user_id FROM band_members WHERE band_id = $1 ORDER BY joined_at`, p.ID())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]Loan, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Loan, error) {
	defer rows.Close()

	out := []Loan{}
	for rows.Next() {
		l, err := scanLoan(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLoan(row pgx.Row, id string) (*Loan, error) {
	var l Loan
	var recipientUser, recipientBand *string
	err := row.Scan(&l.ID, &l.ItemID, &l.LenderID, &recipientUser, &recipientBand,
		&l.OriginVenueID, &l.DestinationVenueID, &l.State, &l.Notes, &l.LentAt, &l.DueAt, &l.ReturnedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("loan %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if l.Recipient, err = party.FromColumns(recipientUser, recipientBand); err != nil {
		return nil, err
	}
	return &l, nil
}
