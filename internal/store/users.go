package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `user_id, phone, name, role, created_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.Phone, &u.Name, &u.Role, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	Phone string
	Name  sql.NullString
	Role  string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (phone, name, role, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING `+userColumns,
		arg.Phone, arg.Name, arg.Role, time.Now().UTC())
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, userID int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

func (q *Queries) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
	return scanUser(row)
}

type UpdateUserParams struct {
	UserID int64
	Phone  string
	Name   sql.NullString
	Role   string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE users SET phone = ?, name = ?, role = ?
		WHERE user_id = ?
		RETURNING `+userColumns,
		arg.Phone, arg.Name, arg.Role, arg.UserID)
	return scanUser(row)
}

func (q *Queries) DeleteUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	return err
}

// ListUsers returns all users, optionally filtered by a case-insensitive
// match on phone or name.
func (q *Queries) ListUsers(ctx context.Context, search string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if search != "" {
		query += ` WHERE phone LIKE ? OR name LIKE ?`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY user_id ASC`
	return q.queryUsers(ctx, query, args...)
}

func (q *Queries) ListUsersByRole(ctx context.Context, role string) ([]User, error) {
	return q.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY user_id ASC`, role)
}

// ListActiveUsers returns users with a booking or report created since the
// given time.
func (q *Queries) ListActiveUsers(ctx context.Context, since time.Time) ([]User, error) {
	return q.queryUsers(ctx, `
		SELECT `+userColumns+` FROM users u
		WHERE EXISTS (SELECT 1 FROM bookings b WHERE b.user_id = u.user_id AND b.created_at >= ?)
		   OR EXISTS (SELECT 1 FROM reports r WHERE r.user_id = u.user_id AND r.created_at >= ?)
		ORDER BY user_id ASC`, since, since)
}

func (q *Queries) CountUsersByRole(ctx context.Context) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

func (q *Queries) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Phone, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
