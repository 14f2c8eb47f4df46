package store

import (
	"context"
	"database/sql"
	"time"
)

const scheduleColumns = `schedule_id, name, cron_expr, start_date, end_date, duration_minutes, is_active, created_at`

func scanSchedule(row *sql.Row) (Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ScheduleID, &s.Name, &s.CronExpr, &s.StartDate, &s.EndDate,
		&s.DurationMinutes, &s.IsActive, &s.CreatedAt)
	return s, err
}

type CreateScheduleParams struct {
	Name            string
	CronExpr        string
	StartDate       sql.NullTime
	EndDate         sql.NullTime
	DurationMinutes int64
	IsActive        bool
}

func (q *Queries) CreateSchedule(ctx context.Context, arg CreateScheduleParams) (Schedule, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO schedules (name, cron_expr, start_date, end_date, duration_minutes, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+scheduleColumns,
		arg.Name, arg.CronExpr, arg.StartDate, arg.EndDate, arg.DurationMinutes, arg.IsActive, time.Now().UTC())
	return scanSchedule(row)
}

func (q *Queries) GetSchedule(ctx context.Context, scheduleID int64) (Schedule, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+` FROM schedules WHERE schedule_id = ?`, scheduleID)
	return scanSchedule(row)
}

type UpdateScheduleParams struct {
	ScheduleID      int64
	Name            string
	CronExpr        string
	StartDate       sql.NullTime
	EndDate         sql.NullTime
	DurationMinutes int64
	IsActive        bool
}

func (q *Queries) UpdateSchedule(ctx context.Context, arg UpdateScheduleParams) (Schedule, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE schedules
		SET name = ?, cron_expr = ?, start_date = ?, end_date = ?, duration_minutes = ?, is_active = ?
		WHERE schedule_id = ?
		RETURNING `+scheduleColumns,
		arg.Name, arg.CronExpr, arg.StartDate, arg.EndDate, arg.DurationMinutes, arg.IsActive, arg.ScheduleID)
	return scanSchedule(row)
}

func (q *Queries) DeleteSchedule(ctx context.Context, scheduleID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM schedules WHERE schedule_id = ?`, scheduleID)
	return err
}

func (q *Queries) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return q.querySchedules(ctx, `
		SELECT `+scheduleColumns+` FROM schedules ORDER BY schedule_id ASC`)
}

func (q *Queries) ListActiveSchedules(ctx context.Context) ([]Schedule, error) {
	return q.querySchedules(ctx, `
		SELECT `+scheduleColumns+` FROM schedules WHERE is_active = TRUE ORDER BY schedule_id ASC`)
}

func (q *Queries) CountActiveSchedules(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM schedules WHERE is_active = TRUE`).Scan(&n)
	return n, err
}

func (q *Queries) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ScheduleID, &s.Name, &s.CronExpr, &s.StartDate, &s.EndDate,
			&s.DurationMinutes, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
