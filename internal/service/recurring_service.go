package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/shifts"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// RecurringService applies standing assignments to future slots and manages
// the assignment rules themselves.
type RecurringService struct {
	store  *store.Store
	shifts *shifts.Service
	cfg    *config.Config
	logger zerolog.Logger
}

func NewRecurringService(s *store.Store, sh *shifts.Service, cfg *config.Config) *RecurringService {
	return &RecurringService{
		store:  s,
		shifts: sh,
		cfg:    cfg,
		logger: logging.WithComponent("recurring"),
	}
}

// MaterializeUpcoming pre-creates bookings for every free slot inside the
// horizon that matches an active assignment. Already-booked slots are
// skipped, so re-running inside the same horizon creates nothing new.
func (s *RecurringService) MaterializeUpcoming(ctx context.Context, now time.Time) (int, error) {
	logger := logging.WithContext(ctx, s.logger)
	now = now.UTC()

	assignments, err := s.store.ListActiveRecurringAssignments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active assignments: %w", err)
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	byPattern := make(map[string]store.RecurringAssignment, len(assignments))
	for _, a := range assignments {
		byPattern[patternKey(a.ScheduleID, a.DayOfWeek, a.TimeSlot)] = a
	}

	// Assignments are weekly patterns, so the window extends one week past
	// the horizon: the last matching weekday of the horizon week is
	// materialized even when the horizon boundary cuts that week short.
	horizonEnd := now.Add(s.cfg.RecurringHorizon() + 7*24*time.Hour)

	slots, err := s.shifts.ListAvailable(ctx, shifts.ListParams{
		From: now,
		To:   horizonEnd,
	})
	if err != nil {
		return 0, fmt.Errorf("enumerate slots: %w", err)
	}

	created := 0
	for _, slot := range slots {
		if slot.IsBooked {
			continue
		}
		key := patternKey(slot.ScheduleID, int64(slot.StartTime.UTC().Weekday()), slotTimeRange(slot.StartTime, slot.EndTime))
		assignment, ok := byPattern[key]
		if !ok {
			continue
		}

		_, err := s.store.CreateBooking(ctx, store.CreateBookingParams{
			UserID:      assignment.UserID,
			ScheduleID:  slot.ScheduleID,
			ShiftStart:  slot.StartTime,
			ShiftEnd:    slot.EndTime,
			BuddyName:   assignment.BuddyName,
			IsRecurring: true,
		})
		if err != nil {
			// A booking that appeared after enumeration is a skip, not a failure.
			if store.IsUniqueConstraintError(err) {
				logger.Debug().
					Int64("schedule_id", slot.ScheduleID).
					Time("shift_start", slot.StartTime).
					Msg("slot taken since enumeration, skipping")
				continue
			}
			return created, fmt.Errorf("materialize booking for assignment %d: %w", assignment.RecID, err)
		}
		created++
	}

	if created > 0 {
		logger.Info().
			Str("event", "recurring.materialized").
			Int("created", created).
			Time("horizon_end", horizonEnd).
			Msg("recurring bookings materialized")
	}
	return created, nil
}

func patternKey(scheduleID, dayOfWeek int64, timeSlot string) string {
	return fmt.Sprintf("%d_%d_%s", scheduleID, dayOfWeek, timeSlot)
}

func slotTimeRange(start, end time.Time) string {
	return start.UTC().Format("15:04") + "-" + end.UTC().Format("15:04")
}

// AssignmentParams carries the mutable fields of a recurring assignment.
type AssignmentParams struct {
	UserID      int64
	ScheduleID  int64
	DayOfWeek   int64
	TimeSlot    string
	BuddyName   string
	Description string
	IsActive    bool
}

func (p AssignmentParams) validate() error {
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be between 0 and 6", ErrInvalidInput)
	}
	return validateTimeSlot(p.TimeSlot)
}

// validateTimeSlot requires the exact HH:MM-HH:MM shape.
func validateTimeSlot(timeSlot string) error {
	if len(timeSlot) != 11 || timeSlot[5] != '-' {
		return ErrInvalidTimeSlot
	}
	for _, part := range []string{timeSlot[:5], timeSlot[6:]} {
		if _, err := time.Parse("15:04", part); err != nil {
			return ErrInvalidTimeSlot
		}
	}
	return nil
}

func (s *RecurringService) ListAssignments(ctx context.Context) ([]store.RecurringAssignment, error) {
	assignments, err := s.store.ListRecurringAssignments(ctx)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list assignments")
		return nil, ErrInternalServer
	}
	return assignments, nil
}

func (s *RecurringService) GetAssignment(ctx context.Context, recID int64) (store.RecurringAssignment, error) {
	assignment, err := s.store.GetRecurringAssignment(ctx, recID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RecurringAssignment{}, ErrAssignmentNotFound
		}
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Int64("rec_id", recID).Msg("failed to load assignment")
		return store.RecurringAssignment{}, ErrInternalServer
	}
	return assignment, nil
}

func (s *RecurringService) CreateAssignment(ctx context.Context, params AssignmentParams) (store.RecurringAssignment, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.RecurringAssignment{}, err
	}
	if err := s.checkReferences(ctx, params); err != nil {
		return store.RecurringAssignment{}, err
	}

	assignment, err := s.store.CreateRecurringAssignment(ctx, store.CreateRecurringAssignmentParams{
		UserID:      params.UserID,
		ScheduleID:  params.ScheduleID,
		DayOfWeek:   params.DayOfWeek,
		TimeSlot:    params.TimeSlot,
		BuddyName:   store.NullString(params.BuddyName),
		Description: store.NullString(params.Description),
		IsActive:    params.IsActive,
	})
	if err != nil {
		if store.IsUniqueConstraintError(err) {
			return store.RecurringAssignment{}, ErrAssignmentConflict
		}
		logger.Error().Err(err).Msg("failed to create assignment")
		return store.RecurringAssignment{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "recurring.assignment_created").
		Int64("rec_id", assignment.RecID).
		Int64("schedule_id", assignment.ScheduleID).
		Int64("day_of_week", assignment.DayOfWeek).
		Str("time_slot", assignment.TimeSlot).
		Msg("recurring assignment created")
	return assignment, nil
}

func (s *RecurringService) UpdateAssignment(ctx context.Context, recID int64, params AssignmentParams) (store.RecurringAssignment, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.RecurringAssignment{}, err
	}
	if err := s.checkReferences(ctx, params); err != nil {
		return store.RecurringAssignment{}, err
	}

	assignment, err := s.store.UpdateRecurringAssignment(ctx, store.UpdateRecurringAssignmentParams{
		RecID:       recID,
		UserID:      params.UserID,
		ScheduleID:  params.ScheduleID,
		DayOfWeek:   params.DayOfWeek,
		TimeSlot:    params.TimeSlot,
		BuddyName:   store.NullString(params.BuddyName),
		Description: store.NullString(params.Description),
		IsActive:    params.IsActive,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RecurringAssignment{}, ErrAssignmentNotFound
		}
		if store.IsUniqueConstraintError(err) {
			return store.RecurringAssignment{}, ErrAssignmentConflict
		}
		logger.Error().Err(err).Int64("rec_id", recID).Msg("failed to update assignment")
		return store.RecurringAssignment{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "recurring.assignment_updated").
		Int64("rec_id", recID).
		Msg("recurring assignment updated")
	return assignment, nil
}

func (s *RecurringService) DeleteAssignment(ctx context.Context, recID int64) error {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.GetAssignment(ctx, recID); err != nil {
		return err
	}
	if err := s.store.DeleteRecurringAssignment(ctx, recID); err != nil {
		logger.Error().Err(err).Int64("rec_id", recID).Msg("failed to delete assignment")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "recurring.assignment_deleted").
		Int64("rec_id", recID).
		Msg("recurring assignment deleted")
	return nil
}

func (s *RecurringService) checkReferences(ctx context.Context, params AssignmentParams) error {
	if _, err := s.store.GetUserByID(ctx, params.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return ErrInternalServer
	}
	if _, err := s.store.GetSchedule(ctx, params.ScheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrScheduleNotFound
		}
		return ErrInternalServer
	}
	return nil
}
