// Package service implements the domain operations: booking arbitration,
// recurring assignment materialization, broadcast fan-out, report archival
// and the user/schedule management around them.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/cronutil"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/metrics"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// Outbox message types produced by booking operations.
const (
	MsgBookingConfirmation = "BOOKING_CONFIRMATION"
	MsgBookingCancellation = "BOOKING_CANCELLATION"
	MsgAdminAssignment     = "ADMIN_SHIFT_ASSIGNMENT"
	MsgAdminUnassignment   = "ADMIN_SHIFT_UNASSIGNMENT"
)

const checkInEarlyWindow = 30 * time.Minute

// BookingService arbitrates bookings against the virtual slot space.
type BookingService struct {
	store  *store.Store
	cfg    *config.Config
	logger zerolog.Logger
}

func NewBookingService(s *store.Store, cfg *config.Config) *BookingService {
	return &BookingService{
		store:  s,
		cfg:    cfg,
		logger: logging.WithComponent("booking"),
	}
}

// CreateBooking validates the slot against the schedule's cron expression and
// claims it. The booking row and its confirmation outbox items commit in one
// transaction; a concurrent loser sees ErrBookingConflict and no side effects.
func (s *BookingService) CreateBooking(ctx context.Context, userID, scheduleID int64, startTime time.Time, buddyName sql.NullString) (store.Booking, error) {
	logger := logging.WithContext(ctx, s.logger)

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Booking{}, ErrUserNotFound
		}
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load user for booking")
		return store.Booking{}, ErrInternalServer
	}

	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Int64("schedule_id", scheduleID).Msg("schedule not found for booking attempt")
			return store.Booking{}, ErrScheduleNotFound
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to load schedule for booking")
		return store.Booking{}, ErrInternalServer
	}

	utcStartTime := startTime.UTC()
	now := time.Now().UTC()

	if err := s.validateSlot(logger, schedule, utcStartTime, now); err != nil {
		metrics.RecordBooking("rejected")
		return store.Booking{}, err
	}
	if !utcStartTime.After(now.Add(s.cfg.BookingMinLead)) {
		logger.Warn().
			Int64("schedule_id", scheduleID).
			Time("start_time", utcStartTime).
			Dur("min_lead", s.cfg.BookingMinLead).
			Msg("booking attempt below minimum lead time")
		metrics.RecordBooking("rejected")
		return store.Booking{}, ErrBookingTooSoon
	}

	shiftEnd := utcStartTime.Add(time.Duration(schedule.DurationMinutes) * time.Minute)

	var booking store.Booking
	err = s.store.ExecTx(ctx, func(q *store.Queries) error {
		existing, err := q.GetBookingByShift(ctx, scheduleID, utcStartTime)
		if err == nil {
			if existing.UserID == userID {
				return ErrAlreadyBookedByUser
			}
			return ErrBookingConflict
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check slot: %w", err)
		}

		booking, err = q.CreateBooking(ctx, store.CreateBookingParams{
			UserID:     userID,
			ScheduleID: scheduleID,
			ShiftStart: utcStartTime,
			ShiftEnd:   shiftEnd,
			BuddyName:  buddyName,
		})
		if err != nil {
			if store.IsUniqueConstraintError(err) {
				return ErrBookingConflict
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		payload := fmt.Sprintf(`{"booking_id": %d, "user_id": %d, "schedule_name": %q, "shift_start": %q}`,
			booking.BookingID, booking.UserID, schedule.Name, booking.ShiftStart.Format(time.RFC3339))
		return enqueueUserNotification(ctx, q, user, MsgBookingConfirmation, payload)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingConflict), errors.Is(err, ErrAlreadyBookedByUser):
			logger.Warn().
				Int64("schedule_id", scheduleID).
				Time("start_time", utcStartTime).
				Msg("booking conflict")
			metrics.RecordBooking("conflict")
			return store.Booking{}, err
		default:
			logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to create booking")
			metrics.RecordBooking("error")
			return store.Booking{}, ErrInternalServer
		}
	}

	logger.Info().
		Str("event", "booking.created").
		Int64("booking_id", booking.BookingID).
		Int64("user_id", userID).
		Int64("schedule_id", scheduleID).
		Time("shift_start", booking.ShiftStart).
		Msg("booking created")
	metrics.RecordBooking("created")
	return booking, nil
}

// validateSlot checks the requested start against the schedule's date window,
// its cron expression and the booking horizon.
func (s *BookingService) validateSlot(logger zerolog.Logger, schedule store.Schedule, startTime, now time.Time) error {
	if schedule.StartDate.Valid && startTime.Before(schedule.StartDate.Time.UTC()) {
		logger.Warn().
			Int64("schedule_id", schedule.ScheduleID).
			Time("start_time", startTime).
			Msg("booking attempt before schedule start date")
		return ErrShiftTimeInvalid
	}
	// end_date is a date; the schedule stays bookable through its last second.
	if schedule.EndDate.Valid && startTime.After(schedule.EndDate.Time.UTC().AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		logger.Warn().
			Int64("schedule_id", schedule.ScheduleID).
			Time("start_time", startTime).
			Msg("booking attempt after schedule end date")
		return ErrShiftTimeInvalid
	}

	horizon := now.Add(s.cfg.RecurringHorizon())
	if startTime.After(horizon) {
		logger.Warn().
			Int64("schedule_id", schedule.ScheduleID).
			Time("start_time", startTime).
			Time("horizon", horizon).
			Msg("booking attempt beyond the booking horizon")
		return ErrShiftTimeInvalid
	}

	if !cronutil.Matches(schedule.CronExpr, startTime) {
		logger.Warn().
			Int64("schedule_id", schedule.ScheduleID).
			Time("start_time", startTime).
			Str("cron_expr", schedule.CronExpr).
			Msg("requested start_time does not match a cron occurrence")
		return ErrShiftTimeInvalid
	}
	return nil
}

// CancelBooking deletes the booking and enqueues a cancellation notification.
// The caller must own the booking or be an admin, and the shift must still be
// further away than the cancellation cutoff.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, callerID int64, callerRole string) error {
	logger := logging.WithContext(ctx, s.logger)

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to load booking for cancellation")
		return ErrInternalServer
	}

	if booking.UserID != callerID && callerRole != store.RoleAdmin {
		logger.Warn().
			Int64("booking_id", bookingID).
			Int64("booking_owner_id", booking.UserID).
			Int64("caller_id", callerID).
			Msg("caller forbidden to cancel booking")
		return ErrForbiddenUpdate
	}

	now := time.Now().UTC()
	deadline := booking.ShiftStart.Add(-s.cfg.CancelCutoff)
	if now.After(deadline) {
		logger.Warn().
			Int64("booking_id", bookingID).
			Time("shift_start", booking.ShiftStart).
			Time("cancellation_deadline", deadline).
			Msg("cancellation attempt too late")
		return ErrBookingCannotBeCancelled
	}

	owner, err := s.store.GetUserByID(ctx, booking.UserID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", booking.UserID).Msg("failed to load booking owner for cancellation")
		return ErrInternalServer
	}

	err = s.store.ExecTx(ctx, func(q *store.Queries) error {
		if err := q.DeleteBooking(ctx, bookingID); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		payload := fmt.Sprintf(`{"booking_id": %d, "user_id": %d, "shift_start": %q, "cancelled_at": %q}`,
			bookingID, booking.UserID, booking.ShiftStart.Format(time.RFC3339), now.Format(time.RFC3339))
		return enqueueUserNotification(ctx, q, owner, MsgBookingCancellation, payload)
	})
	if err != nil {
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to cancel booking")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "booking.cancelled").
		Int64("booking_id", bookingID).
		Int64("caller_id", callerID).
		Msg("booking cancelled")
	metrics.RecordBooking("cancelled")
	return nil
}

// MarkCheckIn stamps checked_in_at when now falls inside
// [shift_start - 30min, shift_end].
func (s *BookingService) MarkCheckIn(ctx context.Context, bookingID, callerID int64) (store.Booking, error) {
	logger := logging.WithContext(ctx, s.logger)

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Booking{}, ErrBookingNotFound
		}
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to load booking for check-in")
		return store.Booking{}, ErrInternalServer
	}

	if booking.UserID != callerID {
		return store.Booking{}, ErrForbiddenUpdate
	}

	now := time.Now().UTC()
	if now.Before(booking.ShiftStart.Add(-checkInEarlyWindow)) {
		logger.Warn().
			Int64("booking_id", bookingID).
			Time("shift_start", booking.ShiftStart).
			Msg("check-in attempt too early")
		return store.Booking{}, ErrCheckInTooEarly
	}
	if now.After(booking.ShiftEnd) {
		logger.Warn().
			Int64("booking_id", bookingID).
			Time("shift_end", booking.ShiftEnd).
			Msg("check-in attempt after shift end")
		return store.Booking{}, ErrCheckInWindowClosed
	}

	if err := s.store.SetBookingCheckIn(ctx, bookingID, now); err != nil {
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to store check-in")
		return store.Booking{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "booking.checked_in").
		Int64("booking_id", bookingID).
		Time("checked_in_at", now).
		Msg("booking checked in")
	metrics.RecordBooking("checked_in")

	booking.CheckedInAt = sql.NullTime{Time: now, Valid: true}
	return booking, nil
}

// MarkAttendance records whether the owner actually showed up, after the
// shift has ended.
func (s *BookingService) MarkAttendance(ctx context.Context, bookingID, callerID int64, attended bool) (store.Booking, error) {
	logger := logging.WithContext(ctx, s.logger)

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Booking{}, ErrBookingNotFound
		}
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to load booking for attendance")
		return store.Booking{}, ErrInternalServer
	}

	if booking.UserID != callerID {
		return store.Booking{}, ErrForbiddenUpdate
	}
	if time.Now().UTC().Before(booking.ShiftEnd) {
		return store.Booking{}, ErrAttendanceTooEarly
	}

	if err := s.store.SetBookingAttendance(ctx, bookingID, attended); err != nil {
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to store attendance")
		return store.Booking{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "booking.attendance_marked").
		Int64("booking_id", bookingID).
		Bool("attended", attended).
		Msg("attendance marked")

	booking.Attended = sql.NullBool{Bool: attended, Valid: true}
	return booking, nil
}

// GetUserBookings returns all bookings of one user with schedule names.
func (s *BookingService) GetUserBookings(ctx context.Context, userID int64) ([]store.BookingWithSchedule, error) {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load user for booking list")
		return nil, ErrInternalServer
	}

	bookings, err := s.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to list user bookings")
		return nil, ErrInternalServer
	}
	return bookings, nil
}

// AdminAssignUserToShift books a slot on behalf of another user. Slot
// validation matches CreateBooking; the lead-time rule does not apply.
func (s *BookingService) AdminAssignUserToShift(ctx context.Context, targetUserID, scheduleID int64, shiftStart time.Time) (store.Booking, error) {
	logger := logging.WithContext(ctx, s.logger)

	target, err := s.store.GetUserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Booking{}, ErrUserNotFound
		}
		logger.Error().Err(err).Int64("target_user_id", targetUserID).Msg("failed to load target user for assignment")
		return store.Booking{}, ErrInternalServer
	}

	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Booking{}, ErrScheduleNotFound
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to load schedule for assignment")
		return store.Booking{}, ErrInternalServer
	}

	utcStart := shiftStart.UTC()
	if err := s.validateSlot(logger, schedule, utcStart, time.Now().UTC()); err != nil {
		return store.Booking{}, err
	}
	shiftEnd := utcStart.Add(time.Duration(schedule.DurationMinutes) * time.Minute)

	var booking store.Booking
	err = s.store.ExecTx(ctx, func(q *store.Queries) error {
		_, err := q.GetBookingByShift(ctx, scheduleID, utcStart)
		if err == nil {
			return ErrBookingConflict
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check slot: %w", err)
		}

		booking, err = q.CreateBooking(ctx, store.CreateBookingParams{
			UserID:     targetUserID,
			ScheduleID: scheduleID,
			ShiftStart: utcStart,
			ShiftEnd:   shiftEnd,
		})
		if err != nil {
			if store.IsUniqueConstraintError(err) {
				return ErrBookingConflict
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		payload := fmt.Sprintf(`{"booking_id": %d, "user_id": %d, "shift_start": %q, "assigned_by": "admin"}`,
			booking.BookingID, booking.UserID, booking.ShiftStart.Format(time.RFC3339))
		return enqueueUserNotification(ctx, q, target, MsgAdminAssignment, payload)
	})
	if err != nil {
		if errors.Is(err, ErrBookingConflict) {
			return store.Booking{}, ErrBookingConflict
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to assign user to shift")
		return store.Booking{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "booking.admin_assigned").
		Int64("booking_id", booking.BookingID).
		Int64("assigned_user_id", targetUserID).
		Int64("schedule_id", scheduleID).
		Msg("user assigned to shift by admin")
	metrics.RecordBooking("created")
	return booking, nil
}

// AdminUnassignUserFromShift removes the booking on a slot, if any, and
// notifies the unassigned user.
func (s *BookingService) AdminUnassignUserFromShift(ctx context.Context, scheduleID int64, shiftStart time.Time) error {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.store.GetSchedule(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrScheduleNotFound
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to load schedule for unassignment")
		return ErrInternalServer
	}

	utcStart := shiftStart.UTC()
	booking, err := s.store.GetBookingByShift(ctx, scheduleID, utcStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to load booking for unassignment")
		return ErrInternalServer
	}

	owner, err := s.store.GetUserByID(ctx, booking.UserID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", booking.UserID).Msg("failed to load owner for unassignment")
		return ErrInternalServer
	}

	err = s.store.ExecTx(ctx, func(q *store.Queries) error {
		if err := q.DeleteBooking(ctx, booking.BookingID); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		payload := fmt.Sprintf(`{"booking_id": %d, "user_id": %d, "shift_start": %q, "unassigned_by": "admin", "unassigned_at": %q}`,
			booking.BookingID, booking.UserID, booking.ShiftStart.Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
		return enqueueUserNotification(ctx, q, owner, MsgAdminUnassignment, payload)
	})
	if err != nil {
		logger.Error().Err(err).Int64("booking_id", booking.BookingID).Msg("failed to unassign user from shift")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "booking.admin_unassigned").
		Int64("booking_id", booking.BookingID).
		Int64("user_id", booking.UserID).
		Int64("schedule_id", scheduleID).
		Msg("user unassigned from shift by admin")
	metrics.RecordBooking("cancelled")
	return nil
}

// enqueueUserNotification inserts an sms item for the user's phone and one
// push item per registered endpoint, all on the caller's transaction.
func enqueueUserNotification(ctx context.Context, q *store.Queries, user store.User, messageType, payload string) error {
	sendAt := time.Now().UTC().Add(-1 * time.Second)
	userID := sql.NullInt64{Int64: user.UserID, Valid: true}

	if _, err := q.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
		UserID:      userID,
		Recipient:   user.Phone,
		Channel:     store.ChannelSMS,
		MessageType: messageType,
		Payload:     store.NullString(payload),
		SendAt:      sendAt,
	}); err != nil {
		return fmt.Errorf("enqueue sms item: %w", err)
	}

	subs, err := q.ListPushSubscriptionsByUser(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	for _, sub := range subs {
		if _, err := q.CreateOutboxItem(ctx, store.CreateOutboxItemParams{
			UserID:      userID,
			Recipient:   sub.Endpoint,
			Channel:     store.ChannelPush,
			MessageType: messageType,
			Payload:     store.NullString(payload),
			SendAt:      sendAt,
		}); err != nil {
			return fmt.Errorf("enqueue push item: %w", err)
		}
	}
	return nil
}
