package store

import (
	"context"
	"database/sql"
	"time"
)

const reportColumns = `report_id, booking_id, user_id, severity, message, latitude, longitude, accuracy, location_timestamp, created_at, archived_at`

func scanReport(row *sql.Row) (Report, error) {
	var r Report
	err := row.Scan(&r.ReportID, &r.BookingID, &r.UserID, &r.Severity, &r.Message,
		&r.Latitude, &r.Longitude, &r.Accuracy, &r.LocationTimestamp, &r.CreatedAt, &r.ArchivedAt)
	return r, err
}

type CreateReportParams struct {
	BookingID         sql.NullInt64
	UserID            int64
	Severity          string
	Message           string
	Latitude          sql.NullFloat64
	Longitude         sql.NullFloat64
	Accuracy          sql.NullFloat64
	LocationTimestamp sql.NullTime
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO reports (booking_id, user_id, severity, message, latitude, longitude, accuracy, location_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+reportColumns,
		arg.BookingID, arg.UserID, arg.Severity, arg.Message,
		arg.Latitude, arg.Longitude, arg.Accuracy, arg.LocationTimestamp, time.Now().UTC())
	return scanReport(row)
}

func (q *Queries) GetReport(ctx context.Context, reportID int64) (Report, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM reports WHERE report_id = ?`, reportID)
	return scanReport(row)
}

// ListReports returns reports newest first, optionally including archived ones.
func (q *Queries) ListReports(ctx context.Context, includeArchived bool) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ReportID, &r.BookingID, &r.UserID, &r.Severity, &r.Message,
			&r.Latitude, &r.Longitude, &r.Accuracy, &r.LocationTimestamp, &r.CreatedAt, &r.ArchivedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ArchiveReportsBefore stamps archived_at on unarchived reports created
// before the cutoff and returns how many rows changed.
func (q *Queries) ArchiveReportsBefore(ctx context.Context, cutoff, archivedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE reports SET archived_at = ?
		WHERE created_at < ? AND archived_at IS NULL`,
		archivedAt.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetReportArchived(ctx context.Context, reportID int64, archivedAt sql.NullTime) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE reports SET archived_at = ? WHERE report_id = ?`, archivedAt, reportID)
	return err
}

// ReportStatsRow is one (severity, archived) bucket of the stats query.
type ReportStatsRow struct {
	Severity string
	Archived bool
	Count    int64
}

func (q *Queries) ReportStats(ctx context.Context) ([]ReportStatsRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT severity, archived_at IS NOT NULL AS archived, COUNT(*)
		FROM reports
		GROUP BY severity, archived
		ORDER BY severity, archived`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ReportStatsRow
	for rows.Next() {
		var s ReportStatsRow
		if err := rows.Scan(&s.Severity, &s.Archived, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
