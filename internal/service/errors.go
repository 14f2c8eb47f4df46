package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrBookingNotFound  = errors.New("booking not found")

	ErrShiftTimeInvalid    = errors.New("requested shift time is invalid for the schedule or outside its active window")
	ErrBookingConflict     = errors.New("shift slot is already booked")
	ErrAlreadyBookedByUser = errors.New("user already booked this shift slot")
	ErrForbiddenUpdate     = errors.New("user not authorized to update this booking")

	ErrBookingTooSoon           = errors.New("shift start does not meet the minimum lead time")
	ErrCheckInTooEarly          = errors.New("check-in is too early - can only check in up to 30 minutes before shift starts")
	ErrCheckInWindowClosed      = errors.New("check-in window has closed - shift has already ended")
	ErrAttendanceTooEarly       = errors.New("attendance can only be marked after the shift has ended")
	ErrBookingCannotBeCancelled = errors.New("booking cannot be cancelled - shift has already started or is too close to start time")

	ErrAssignmentNotFound = errors.New("recurring assignment not found")
	ErrAssignmentConflict = errors.New("an active recurring assignment already covers this slot")
	ErrInvalidTimeSlot    = errors.New("time slot must be formatted as HH:MM-HH:MM")

	ErrReportNotFound    = errors.New("report not found")
	ErrBroadcastNotFound = errors.New("broadcast not found")

	ErrInvalidPhone = errors.New("phone number is not a valid E.164 number")
	ErrOTPInvalid   = errors.New("verification code is invalid or expired")

	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
)
