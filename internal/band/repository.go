package band

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/apperr"
	"bandspace/pkg/db"
)

type Band struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	VenueID     string    `json:"venueId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Member struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const bandColumns = `id, name, description, color, venue_id, created_at, updated_at`

func Create(ctx context.Context, tx pgx.Tx, b *Band) error {
	q := `
INSERT INTO bands (name, description, color, venue_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + bandColumns
	created, err := scanBand(tx.QueryRow(ctx, q, b.Name, b.Description, b.Color, b.VenueID), "")
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("unknown venue")
	}
	if err != nil {
		return err
	}
	*b = *created
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Band, error) {
	q := `SELECT ` + bandColumns + ` FROM bands WHERE id = $1`
	return scanBand(r.db.QueryRow(ctx, q, id), id)
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Band, error) {
	q := `SELECT ` + bandColumns + ` FROM bands WHERE id = $1 FOR UPDATE`
	return scanBand(tx.QueryRow(ctx, q, id), id)
}

// List filters by venue and a case-insensitive name fragment; empty filters match all.
func (r *Repository) List(ctx context.Context, venueID, nameLike string) ([]Band, error) {
	q := `
SELECT ` + bandColumns + `
FROM bands
WHERE ($1 = '' OR venue_id::text = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
ORDER BY name ASC
`
	rows, err := r.db.Query(ctx, q, venueID, nameLike)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Band{}
	for rows.Next() {
		b, err := scanBand(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Band, error) {
	q := `
SELECT ` + bandColumns + `
FROM bands
WHERE id IN (SELECT band_id FROM band_members WHERE user_id = $1)
ORDER BY name ASC
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Band{}
	for rows.Next() {
		b, err := scanBand(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func Update(ctx context.Context, tx pgx.Tx, b *Band) error {
	const q = `
UPDATE bands
SET name = $2, description = $3, color = $4, updated_at = NOW()
WHERE id = $1
`
	_, err := tx.Exec(ctx, q, b.ID, b.Name, b.Description, b.Color)
	return err
}

func Delete(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `DELETE FROM bands WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.InvalidState("band still owns items or loans")
	}
	return err
}

func (r *Repository) Members(ctx context.Context, bandID string) ([]Member, error) {
	const q = `
SELECT u.id, u.first_name, u.last_name, bm.joined_at
FROM band_members bm
JOIN users u ON u.id = bm.user_id
WHERE bm.band_id = $1
ORDER BY bm.joined_at ASC
`
	rows, err := r.db.Query(ctx, q, bandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.FirstName, &m.LastName, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) MemberIDs(ctx context.Context, bandID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM band_members WHERE band_id = $1 ORDER BY user_id`, bandID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func IsMember(ctx context.Context, tx pgx.Tx, bandID, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM band_members WHERE band_id = $1 AND user_id = $2)`
	var ok bool
	err := tx.QueryRow(ctx, q, bandID, userID).Scan(&ok)
	return ok, err
}

// AddMember is idempotent.
func AddMember(ctx context.Context, tx pgx.Tx, bandID, userID string) error {
	const q = `
INSERT INTO band_members (band_id, user_id)
VALUES ($1, $2)
ON CONFLICT (band_id, user_id) DO NOTHING
`
	_, err := tx.Exec(ctx, q, bandID, userID)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("user %s not found", userID)
	}
	return err
}

func RemoveMember(ctx context.Context, tx pgx.Tx, bandID, userID string) (bool, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM band_members WHERE band_id = $1 AND user_id = $2`, bandID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanBand(row pgx.Row, id string) (*Band, error) {
	var b Band
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Color, &b.VenueID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("band %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
