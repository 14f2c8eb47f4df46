package store

import (
	"context"
	"database/sql"
	"time"
)

const broadcastColumns = `broadcast_id, author_user_id, audience, subject, body, push_enabled, created_at, processed_at`

func scanBroadcast(row *sql.Row) (Broadcast, error) {
	var b Broadcast
	err := row.Scan(&b.BroadcastID, &b.AuthorUserID, &b.Audience, &b.Subject, &b.Body,
		&b.PushEnabled, &b.CreatedAt, &b.ProcessedAt)
	return b, err
}

type CreateBroadcastParams struct {
	AuthorUserID int64
	Audience     string
	Subject      sql.NullString
	Body         string
	PushEnabled  bool
}

func (q *Queries) CreateBroadcast(ctx context.Context, arg CreateBroadcastParams) (Broadcast, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO broadcasts (author_user_id, audience, subject, body, push_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING `+broadcastColumns,
		arg.AuthorUserID, arg.Audience, arg.Subject, arg.Body, arg.PushEnabled, time.Now().UTC())
	return scanBroadcast(row)
}

func (q *Queries) GetBroadcast(ctx context.Context, broadcastID int64) (Broadcast, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+broadcastColumns+` FROM broadcasts WHERE broadcast_id = ?`, broadcastID)
	return scanBroadcast(row)
}

func (q *Queries) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	return q.queryBroadcasts(ctx, `
		SELECT `+broadcastColumns+` FROM broadcasts ORDER BY created_at DESC`)
}

// ListUnprocessedBroadcasts returns broadcasts awaiting fan-out, oldest first.
func (q *Queries) ListUnprocessedBroadcasts(ctx context.Context) ([]Broadcast, error) {
	return q.queryBroadcasts(ctx, `
		SELECT `+broadcastColumns+` FROM broadcasts WHERE processed_at IS NULL ORDER BY created_at ASC`)
}

func (q *Queries) MarkBroadcastProcessed(ctx context.Context, broadcastID int64, processedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE broadcasts SET processed_at = ? WHERE broadcast_id = ?`,
		processedAt.UTC(), broadcastID)
	return err
}

func (q *Queries) CountUnprocessedBroadcasts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM broadcasts WHERE processed_at IS NULL`).Scan(&n)
	return n, err
}

func (q *Queries) queryBroadcasts(ctx context.Context, query string, args ...any) ([]Broadcast, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var broadcasts []Broadcast
	for rows.Next() {
		var b Broadcast
		if err := rows.Scan(&b.BroadcastID, &b.AuthorUserID, &b.Audience, &b.Subject, &b.Body,
			&b.PushEnabled, &b.CreatedAt, &b.ProcessedAt); err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}
