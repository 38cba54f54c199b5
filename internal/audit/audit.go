// Package audit records administrative actions taken on shared resources.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	ID        string          `json:"id"`
	VenueID   *string         `json:"venueId,omitempty"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entityId"`
	Action    string          `json:"action"`
	Actor     string          `json:"actor"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Insert appends an entry inside tx so it commits with the change it describes.
func Insert(ctx context.Context, tx pgx.Tx, venueID *string, entity, entityID, action, actor string, metadata any) error {
	var s *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (venue_id, entity, entity_id, action, actor, metadata)
VALUES ($1, $2, $3, $4, $5, CAST($6 AS jsonb))
`
	_, err := tx.Exec(ctx, q, venueID, entity, entityID, action, actor, s)
	return err
}

func ListByVenue(ctx context.Context, db *pgxpool.Pool, venueID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
SELECT id, venue_id, entity, entity_id, action, actor, COALESCE(metadata, '{}'::jsonb), created_at
FROM audit_logs
WHERE venue_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := db.Query(ctx, q, venueID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VenueID, &e.Entity, &e.EntityID, &e.Action, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
