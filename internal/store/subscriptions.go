package store

import (
	"context"
	"time"
)

const subscriptionColumns = `sub_id, user_id, endpoint, p256dh_key, auth_key, created_at`

type UpsertPushSubscriptionParams struct {
	UserID    int64
	Endpoint  string
	P256dhKey string
	AuthKey   string
}

// UpsertPushSubscription registers a browser endpoint. Re-subscribing with
// the same endpoint refreshes the keys and owner.
func (q *Queries) UpsertPushSubscription(ctx context.Context, arg UpsertPushSubscriptionParams) (PushSubscription, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key
		RETURNING `+subscriptionColumns,
		arg.UserID, arg.Endpoint, arg.P256dhKey, arg.AuthKey, time.Now().UTC())

	var s PushSubscription
	err := row.Scan(&s.SubID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt)
	return s, err
}

func (q *Queries) GetPushSubscriptionByEndpoint(ctx context.Context, endpoint string) (PushSubscription, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)

	var s PushSubscription
	err := row.Scan(&s.SubID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt)
	return s, err
}

func (q *Queries) ListPushSubscriptionsByUser(ctx context.Context, userID int64) ([]PushSubscription, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = ? ORDER BY sub_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.SubID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// DeletePushSubscriptionByEndpoint removes a dead endpoint regardless of owner.
// The push sender calls this on 404/410 responses.
func (q *Queries) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := q.db.ExecContext(ctx, `
		DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	return err
}

// DeletePushSubscriptionForUser removes an endpoint scoped to its owner and
// reports whether a row was deleted.
func (q *Queries) DeletePushSubscriptionForUser(ctx context.Context, userID int64, endpoint string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`, userID, endpoint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
