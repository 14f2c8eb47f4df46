package store

import (
	"context"
	"database/sql"
	"time"
)

const bookingColumns = `booking_id, user_id, schedule_id, shift_start, shift_end, buddy_name, checked_in_at, attended, is_recurring, created_at`

func scanBooking(row *sql.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.BookingID, &b.UserID, &b.ScheduleID, &b.ShiftStart, &b.ShiftEnd,
		&b.BuddyName, &b.CheckedInAt, &b.Attended, &b.IsRecurring, &b.CreatedAt)
	return b, err
}

type CreateBookingParams struct {
	UserID      int64
	ScheduleID  int64
	ShiftStart  time.Time
	ShiftEnd    time.Time
	BuddyName   sql.NullString
	IsRecurring bool
}

// CreateBooking inserts a booking row. The UNIQUE (schedule_id, shift_start)
// constraint arbitrates concurrent claims on the same slot.
func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO bookings (user_id, schedule_id, shift_start, shift_end, buddy_name, is_recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+bookingColumns,
		arg.UserID, arg.ScheduleID, arg.ShiftStart.UTC(), arg.ShiftEnd.UTC(),
		arg.BuddyName, arg.IsRecurring, time.Now().UTC())
	return scanBooking(row)
}

func (q *Queries) GetBooking(ctx context.Context, bookingID int64) (Booking, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE booking_id = ?`, bookingID)
	return scanBooking(row)
}

func (q *Queries) GetBookingByShift(ctx context.Context, scheduleID int64, shiftStart time.Time) (Booking, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE schedule_id = ? AND shift_start = ?`,
		scheduleID, shiftStart.UTC())
	return scanBooking(row)
}

func (q *Queries) DeleteBooking(ctx context.Context, bookingID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM bookings WHERE booking_id = ?`, bookingID)
	return err
}

func (q *Queries) SetBookingCheckIn(ctx context.Context, bookingID int64, checkedInAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE bookings SET checked_in_at = ? WHERE booking_id = ?`,
		checkedInAt.UTC(), bookingID)
	return err
}

func (q *Queries) SetBookingAttendance(ctx context.Context, bookingID int64, attended bool) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE bookings SET attended = ? WHERE booking_id = ?`,
		attended, bookingID)
	return err
}

// ListBookingsByUser returns a user's bookings joined with schedule names,
// newest shift first.
func (q *Queries) ListBookingsByUser(ctx context.Context, userID int64) ([]BookingWithSchedule, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT b.booking_id, b.user_id, b.schedule_id, b.shift_start, b.shift_end,
		       b.buddy_name, b.checked_in_at, b.attended, b.is_recurring, b.created_at,
		       s.name
		FROM bookings b
		JOIN schedules s ON s.schedule_id = b.schedule_id
		WHERE b.user_id = ?
		ORDER BY b.shift_start DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []BookingWithSchedule
	for rows.Next() {
		var b BookingWithSchedule
		if err := rows.Scan(&b.BookingID, &b.UserID, &b.ScheduleID, &b.ShiftStart, &b.ShiftEnd,
			&b.BuddyName, &b.CheckedInAt, &b.Attended, &b.IsRecurring, &b.CreatedAt,
			&b.ScheduleName); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListBookingsInRange returns bookings with shift_start in [from, to) joined
// with the booker's identity, used to annotate enumerated slots.
func (q *Queries) ListBookingsInRange(ctx context.Context, from, to time.Time) ([]BookingWithUser, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT b.booking_id, b.user_id, b.schedule_id, b.shift_start, b.shift_end,
		       b.buddy_name, b.checked_in_at, b.attended, b.is_recurring, b.created_at,
		       u.name, u.phone
		FROM bookings b
		JOIN users u ON u.user_id = b.user_id
		WHERE b.shift_start >= ? AND b.shift_start < ?
		ORDER BY b.shift_start ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []BookingWithUser
	for rows.Next() {
		var b BookingWithUser
		if err := rows.Scan(&b.BookingID, &b.UserID, &b.ScheduleID, &b.ShiftStart, &b.ShiftEnd,
			&b.BuddyName, &b.CheckedInAt, &b.Attended, &b.IsRecurring, &b.CreatedAt,
			&b.UserName, &b.UserPhone); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (q *Queries) CountBookingsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings WHERE shift_start >= ? AND shift_start < ?`,
		from.UTC(), to.UTC()).Scan(&n)
	return n, err
}
