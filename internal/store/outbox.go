package store

import (
	"context"
	"database/sql"
	"time"
)

const outboxColumns = `outbox_id, user_id, broadcast_id, recipient, channel, message_type, payload, status, retry_count, send_at, created_at, sent_at, last_error`

type CreateOutboxItemParams struct {
	UserID      sql.NullInt64
	BroadcastID sql.NullInt64
	Recipient   string
	Channel     string
	MessageType string
	Payload     sql.NullString
	SendAt      time.Time
}

// CreateOutboxItem inserts a pending delivery. Producers call this on the
// same transaction as their domain write.
func (q *Queries) CreateOutboxItem(ctx context.Context, arg CreateOutboxItemParams) (OutboxItem, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO outbox (user_id, broadcast_id, recipient, channel, message_type, payload, status, retry_count, send_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)
		RETURNING `+outboxColumns,
		arg.UserID, arg.BroadcastID, arg.Recipient, arg.Channel, arg.MessageType,
		arg.Payload, arg.SendAt.UTC(), time.Now().UTC())

	var item OutboxItem
	err := row.Scan(&item.OutboxID, &item.UserID, &item.BroadcastID, &item.Recipient,
		&item.Channel, &item.MessageType, &item.Payload, &item.Status, &item.RetryCount,
		&item.SendAt, &item.CreatedAt, &item.SentAt, &item.LastError)
	return item, err
}

// CreateBroadcastOutboxItem inserts a broadcast fan-out item. The partial
// unique index on (broadcast_id, user_id, channel, recipient) makes re-runs
// after partial failure skip rows that already exist; the returned count is
// 0 for such duplicates.
func (q *Queries) CreateBroadcastOutboxItem(ctx context.Context, arg CreateOutboxItemParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO outbox (user_id, broadcast_id, recipient, channel, message_type, payload, status, retry_count, send_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)
		ON CONFLICT (broadcast_id, user_id, channel, recipient) WHERE broadcast_id IS NOT NULL DO NOTHING`,
		arg.UserID, arg.BroadcastID, arg.Recipient, arg.Channel, arg.MessageType,
		arg.Payload, arg.SendAt.UTC(), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FetchPendingOutbox returns due pending items oldest first.
func (q *Queries) FetchPendingOutbox(ctx context.Context, limit int64) ([]OutboxItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE status = 'pending' AND send_at <= ?
		ORDER BY created_at ASC, outbox_id ASC
		LIMIT ?`, time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutboxItem
	for rows.Next() {
		var item OutboxItem
		if err := rows.Scan(&item.OutboxID, &item.UserID, &item.BroadcastID, &item.Recipient,
			&item.Channel, &item.MessageType, &item.Payload, &item.Status, &item.RetryCount,
			&item.SendAt, &item.CreatedAt, &item.SentAt, &item.LastError); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (q *Queries) GetOutboxItem(ctx context.Context, outboxID int64) (OutboxItem, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox WHERE outbox_id = ?`, outboxID)

	var item OutboxItem
	err := row.Scan(&item.OutboxID, &item.UserID, &item.BroadcastID, &item.Recipient,
		&item.Channel, &item.MessageType, &item.Payload, &item.Status, &item.RetryCount,
		&item.SendAt, &item.CreatedAt, &item.SentAt, &item.LastError)
	return item, err
}

type UpdateOutboxStatusParams struct {
	OutboxID   int64
	Status     string
	RetryCount int64
	SentAt     sql.NullTime
	LastError  sql.NullString
}

func (q *Queries) UpdateOutboxStatus(ctx context.Context, arg UpdateOutboxStatusParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, retry_count = ?, sent_at = ?, last_error = ?
		WHERE outbox_id = ?`,
		arg.Status, arg.RetryCount, arg.SentAt, arg.LastError, arg.OutboxID)
	return err
}

// RequeueFailedOutbox flips failed items back to pending so the next drain
// retries them. Returns the number of requeued items.
func (q *Queries) RequeueFailedOutbox(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE outbox SET status = 'pending' WHERE status = 'failed'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CountOutboxByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox WHERE status = ?`, status).Scan(&n)
	return n, err
}
