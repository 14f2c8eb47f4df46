package store

import (
	"context"
	"database/sql"
	"time"
)

const assignmentColumns = `rec_id, user_id, schedule_id, day_of_week, time_slot, buddy_name, description, is_active, created_at`

func scanAssignment(row *sql.Row) (RecurringAssignment, error) {
	var a RecurringAssignment
	err := row.Scan(&a.RecID, &a.UserID, &a.ScheduleID, &a.DayOfWeek, &a.TimeSlot,
		&a.BuddyName, &a.Description, &a.IsActive, &a.CreatedAt)
	return a, err
}

type CreateRecurringAssignmentParams struct {
	UserID      int64
	ScheduleID  int64
	DayOfWeek   int64
	TimeSlot    string
	BuddyName   sql.NullString
	Description sql.NullString
	IsActive    bool
}

func (q *Queries) CreateRecurringAssignment(ctx context.Context, arg CreateRecurringAssignmentParams) (RecurringAssignment, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO recurring_assignments (user_id, schedule_id, day_of_week, time_slot, buddy_name, description, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+assignmentColumns,
		arg.UserID, arg.ScheduleID, arg.DayOfWeek, arg.TimeSlot,
		arg.BuddyName, arg.Description, arg.IsActive, time.Now().UTC())
	return scanAssignment(row)
}

func (q *Queries) GetRecurringAssignment(ctx context.Context, recID int64) (RecurringAssignment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM recurring_assignments WHERE rec_id = ?`, recID)
	return scanAssignment(row)
}

type UpdateRecurringAssignmentParams struct {
	RecID       int64
	UserID      int64
	ScheduleID  int64
	DayOfWeek   int64
	TimeSlot    string
	BuddyName   sql.NullString
	Description sql.NullString
	IsActive    bool
}

func (q *Queries) UpdateRecurringAssignment(ctx context.Context, arg UpdateRecurringAssignmentParams) (RecurringAssignment, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE recurring_assignments
		SET user_id = ?, schedule_id = ?, day_of_week = ?, time_slot = ?, buddy_name = ?, description = ?, is_active = ?
		WHERE rec_id = ?
		RETURNING `+assignmentColumns,
		arg.UserID, arg.ScheduleID, arg.DayOfWeek, arg.TimeSlot,
		arg.BuddyName, arg.Description, arg.IsActive, arg.RecID)
	return scanAssignment(row)
}

func (q *Queries) DeleteRecurringAssignment(ctx context.Context, recID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM recurring_assignments WHERE rec_id = ?`, recID)
	return err
}

func (q *Queries) ListRecurringAssignments(ctx context.Context) ([]RecurringAssignment, error) {
	return q.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM recurring_assignments ORDER BY rec_id ASC`)
}

func (q *Queries) ListActiveRecurringAssignments(ctx context.Context) ([]RecurringAssignment, error) {
	return q.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM recurring_assignments WHERE is_active = TRUE ORDER BY rec_id ASC`)
}

func (q *Queries) queryAssignments(ctx context.Context, query string, args ...any) ([]RecurringAssignment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []RecurringAssignment
	for rows.Next() {
		var a RecurringAssignment
		if err := rows.Scan(&a.RecID, &a.UserID, &a.ScheduleID, &a.DayOfWeek, &a.TimeSlot,
			&a.BuddyName, &a.Description, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
