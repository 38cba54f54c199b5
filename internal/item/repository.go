package item

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/apperr"
	"bandspace/internal/party"
	"bandspace/pkg/db"
)

type Item struct {
	ID              string      `json:"id"`
	Description     string      `json:"description"`
	Quantity        int         `json:"quantity"`
	Owner           party.Party `json:"owner"`
	OriginalVenueID string      `json:"originalVenueId"`
	CurrentVenueID  string      `json:"currentVenueId"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Away reports whether the item currently sits outside its home venue.
func (i Item) Away() bool {
	return i.CurrentVenueID != i.OriginalVenueID
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, description, quantity, owner_user_id, owner_band_id, original_venue_id, current_venue_id, created_at, updated_at`

func Create(ctx context.Context, tx pgx.Tx, it *Item) error {
	ownerUser, ownerBand := it.Owner.Columns()
	q := `
INSERT INTO items (description, quantity, owner_user_id, owner_band_id, original_venue_id, current_venue_id)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING ` + itemColumns
	created, err := scanItem(tx.QueryRow(ctx, q, it.Description, it.Quantity, ownerUser, ownerBand, it.OriginalVenueID), "")
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("unknown owner or venue")
	}
	if err != nil {
		return err
	}
	*it = *created
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return scanItem(r.db.QueryRow(ctx, q, id), id)
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 FOR UPDATE`
	return scanItem(tx.QueryRow(ctx, q, id), id)
}

// ListByVenue returns items whose home or current venue is venueID.
func (r *Repository) ListByVenue(ctx context.Context, venueID string) ([]Item, error) {
	q := `
SELECT ` + itemColumns + `
FROM items
WHERE original_venue_id = $1 OR current_venue_id = $1
ORDER BY description ASC
`
	return r.list(ctx, q, venueID)
}

// ListForUser returns items in any venue userID belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Item, error) {
	q := `
SELECT ` + itemColumns + `
FROM items
WHERE original_venue_id IN (SELECT venue_id FROM venue_members WHERE user_id = $1)
   OR current_venue_id IN (SELECT venue_id FROM venue_members WHERE user_id = $1)
ORDER BY description ASC
`
	return r.list(ctx, q, userID)
}

func Update(ctx context.Context, tx pgx.Tx, it *Item) error {
	const q = `UPDATE items SET description = $2, quantity = $3, updated_at = NOW() WHERE id = $1`
	_, err := tx.Exec(ctx, q, it.ID, it.Description, it.Quantity)
	return err
}

func SetCurrentVenue(ctx context.Context, tx pgx.Tx, id, venueID string) error {
	const q = `UPDATE items SET current_venue_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.Exec(ctx, q, id, venueID)
	if db.IsForeignKeyViolation(err) {
		return apperr.Validation("unknown venue")
	}
	return err
}

func Delete(ctx context.Context, tx pgx.Tx, id string) error {
	const q = `SELECT EXISTS (SELECT 1 FROM loans WHERE item_id = $1 AND state IN ('ACTIVE', 'OVERDUE'))`
	var lent bool
	if err := tx.QueryRow(ctx, q, id).Scan(&lent); err != nil {
		return err
	}
	if lent {
		return apperr.InvalidState("item is on loan")
	}
	_, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	return err
}

// CanManage reports whether userID owns it directly or through a band.
func CanManage(ctx context.Context, tx pgx.Tx, it *Item, userID string) (bool, error) {
	if it.Owner.IsUser() {
		return it.Owner.ID() == userID, nil
	}
	const q = `SELECT EXISTS (SELECT 1 FROM band_members WHERE band_id = $1 AND user_id = $2)`
	var ok bool
	err := tx.QueryRow(ctx, q, it.Owner.ID(), userID).Scan(&ok)
	return ok, err
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]Item, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		it, err := scanItem(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row, id string) (*Item, error) {
	var it Item
	var ownerUser, ownerBand *string
	err := row.Scan(&it.ID, &it.Description, &it.Quantity, &ownerUser, &ownerBand, &it.OriginalVenueID, &it.CurrentVenueID, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("item %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if it.Owner, err = party.FromColumns(ownerUser, ownerBand); err != nil {
		return nil, err
	}
	return &it, nil
}
