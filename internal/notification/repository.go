package notification

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bandspace/internal/apperr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, ns []Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, type, title, message, action_url, priority, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
`
	batch := &pgx.Batch{}
	for _, n := range ns {
		batch.Queue(q, n.ID, n.UserID, n.Type, n.Title, n.Message, n.ActionURL, n.Priority, n.CreatedAt)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

func (r *Repository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
SELECT id, user_id, type, title, message, action_url, priority, is_read, read_at, created_at
FROM notifications
WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := r.db.Query(ctx, q, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.ActionURL, &n.Priority, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`
	var n int64
	err := r.db.QueryRow(ctx, q, userID).Scan(&n)
	return n, err
}

// MarkRead marks one notification read. Only its owner may do so.
func (r *Repository) MarkRead(ctx context.Context, id, userID string) error {
	const q = `
UPDATE notifications
SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
WHERE id = $1
RETURNING user_id
`
	var owner string
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, q, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("notification %s not found", id)
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return apperr.Forbidden("notification belongs to another user")
	}
	return tx.Commit(ctx)
}

func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	const q = `UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT is_read`
	tag, err := r.db.Exec(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
