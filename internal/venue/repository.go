package venue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bandspace/internal/apperr"
	"bandspace/internal/booking"
	"bandspace/pkg/db"
)

const DefaultColor = "#4CAF50"

type Venue struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	AdminID    string          `json:"adminId"`
	MonthlyFee decimal.Decimal `json:"monthlyFee"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type Member struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const venueColumns = `id, name, color, admin_id, monthly_fee::text, created_at, updated_at`

// Create inserts v and enrolls its admin as the first member.
func Create(ctx context.Context, tx pgx.Tx, v *Venue) error {
	q := `
INSERT INTO venues (name, color, admin_id, monthly_fee)
VALUES ($1, $2, $3, CAST($4 AS numeric))
RETURNING ` + venueColumns
	created, err := scanVenue(tx.QueryRow(ctx, q, v.Name, v.Color, v.AdminID, v.MonthlyFee.String()), "")
	if err != nil {
		return err
	}
	*v = *created
	return AddMember(ctx, tx, v.ID, v.AdminID)
}

func (r *Repository) Get(ctx context.Context, id string) (*Venue, error) {
	q := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`
	return scanVenue(r.db.QueryRow(ctx, q, id), id)
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Venue, error) {
	q := `SELECT ` + venueColumns + ` FROM venues WHERE id = $1 FOR UPDATE`
	return scanVenue(tx.QueryRow(ctx, q, id), id)
}

// ListForUser returns the venues userID administers or belongs to, directly
// or through a band.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Venue, error) {
	q := `
SELECT ` + venueColumns + `
FROM venues
WHERE admin_id = $1
   OR id IN (SELECT venue_id FROM venue_members WHERE user_id = $1)
   OR id IN (SELECT b.venue_id FROM bands b JOIN band_members bm ON bm.band_id = b.id WHERE bm.user_id = $1)
ORDER BY name ASC
`
	return r.list(ctx, q, userID)
}

// ListWithFees returns venues charging a monthly fee.
func (r *Repository) ListWithFees(ctx context.Context) ([]Venue, error) {
	q := `SELECT ` + venueColumns + ` FROM venues WHERE monthly_fee > 0 ORDER BY id`
	return r.list(ctx, q)
}

func Update(ctx context.Context, tx pgx.Tx, v *Venue) error {
	const q = `
UPDATE venues
SET name = $2, color = $3, monthly_fee = CAST($4 AS numeric), updated_at = NOW()
WHERE id = $1
`
	_, err := tx.Exec(ctx, q, v.ID, v.Name, v.Color, v.MonthlyFee.String())
	return err
}

// Delete removes a venue that nothing references any more.
func Delete(ctx context.Context, tx pgx.Tx, id string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM venue_members WHERE venue_id = $1`, id); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `DELETE FROM venues WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.InvalidState("venue still has bands, bookings or items")
	}
	return err
}

func (r *Repository) Members(ctx context.Context, venueID string) ([]Member, error) {
	const q = `
SELECT u.id, u.first_name, u.last_name, u.email, vm.joined_at
FROM venue_members vm
JOIN users u ON u.id = vm.user_id
WHERE vm.venue_id = $1
ORDER BY vm.joined_at ASC
`
	rows, err := r.db.Query(ctx, q, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MemberIDs returns the direct members of venueID.
func (r *Repository) MemberIDs(ctx context.Context, venueID string) ([]string, error) {
	return collectIDs(ctx, r.db, `SELECT user_id FROM venue_members WHERE venue_id = $1 ORDER BY joined_at ASC, user_id ASC`, venueID)
}

// AddMember is idempotent.
func AddMember(ctx context.Context, tx pgx.Tx, venueID, userID string) error {
	const q = `
INSERT INTO venue_members (venue_id, user_id)
VALUES ($1, $2)
ON CONFLICT (venue_id, user_id) DO NOTHING
`
	_, err := tx.Exec(ctx, q, venueID, userID)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("user %s not found", userID)
	}
	return err
}

func RemoveMember(ctx context.Context, tx pgx.Tx, venueID, userID string) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM venue_members WHERE venue_id = $1 AND user_id = $2`, venueID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// VenueMembers snapshots who shares venueID: direct members and members of
// every band hosted there. It implements booking.Membership.
func (r *Repository) VenueMembers(ctx context.Context, venueID string) (*booking.VenueMembers, error) {
	v, err := r.Get(ctx, venueID)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT user_id FROM venue_members WHERE venue_id = $1
UNION
SELECT bm.user_id FROM band_members bm JOIN bands b ON b.id = bm.band_id WHERE b.venue_id = $1
ORDER BY 1
`
	ids, err := collectIDs(ctx, r.db, q, venueID)
	if err != nil {
		return nil, err
	}
	return &booking.VenueMembers{VenueID: v.ID, AdminID: v.AdminID, Members: ids}, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]Venue, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Venue{}
	for rows.Next() {
		v, err := scanVenue(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func collectIDs(ctx context.Context, pool *pgxpool.Pool, q string, args ...any) ([]string, error) {
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func scanVenue(row pgx.Row, id string) (*Venue, error) {
	var v Venue
	var fee string
	err := row.Scan(&v.ID, &v.Name, &v.Color, &v.AdminID, &fee, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("venue %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if v.MonthlyFee, err = decimal.NewFromString(fee); err != nil {
		return nil, err
	}
	return &v, nil
}

const invitationColumns = `i.id, i.venue_id, v.name, i.from_user_id, i.to_user_id, i.state, i.created_at, i.responded_at`

// IsMember reports whether userID is a direct member of venueID.
func IsMember(ctx context.Context, tx pgx.Tx, venueID, userID string) (bool, error) {
	var ok bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM venue_members WHERE venue_id = $1 AND user_id = $2)`, venueID, userID).Scan(&ok)
	return ok, err
}

func InsertInvitation(ctx context.Context, tx pgx.Tx, inv *Invitation) error {
	const q = `
INSERT INTO venue_invitations (venue_id, from_user_id, to_user_id)
VALUES ($1, $2, $3)
RETURNING id, state, created_at
`
	err := tx.QueryRow(ctx, q, inv.VenueID, inv.FromUserID, inv.ToUserID).Scan(&inv.ID, &inv.State, &inv.CreatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.InvalidState("user %s already has a pending invitation", inv.ToUserID)
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("user %s not found", inv.ToUserID)
	}
	return err
}

func InvitationForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Invitation, error) {
	q := `
SELECT ` + invitationColumns + `
FROM venue_invitations i
JOIN venues v ON v.id = i.venue_id
WHERE i.id = $1
FOR UPDATE OF i
`
	inv, err := scanInvitation(tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidText(err) {
		return nil, apperr.NotFound("invitation %s not found", id)
	}
	return inv, err
}

func SaveInvitation(ctx context.Context, tx pgx.Tx, inv *Invitation) error {
	_, err := tx.Exec(ctx, `UPDATE venue_invitations SET state = $2, responded_at = $3 WHERE id = $1`, inv.ID, inv.State, inv.RespondedAt)
	return err
}

// InvitationsForUser lists invitations sent to userID, newest first. An
// empty state lists all of them.
func (r *Repository) InvitationsForUser(ctx context.Context, userID string, state InvitationState) ([]Invitation, error) {
	q := `
SELECT ` + invitationColumns + `
FROM venue_invitations i
JOIN venues v ON v.id = i.venue_id
WHERE i.to_user_id = $1 AND ($2 = '' OR i.state = $2)
ORDER BY i.created_at DESC
`
	return r.invitations(ctx, q, userID, string(state))
}

func (r *Repository) InvitationsForVenue(ctx context.Context, venueID string) ([]Invitation, error) {
	q := `
SELECT ` + invitationColumns + `
FROM venue_invitations i
JOIN venues v ON v.id = i.venue_id
WHERE i.venue_id = $1
ORDER BY i.created_at DESC
`
	return r.invitations(ctx, q, venueID)
}

func (r *Repository) invitations(ctx context.Context, q string, args ...any) ([]Invitation, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.VenueID, &inv.VenueName, &inv.FromUserID, &inv.ToUserID, &inv.State, &inv.CreatedAt, &inv.RespondedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
