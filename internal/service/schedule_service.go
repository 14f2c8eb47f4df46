package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/cronutil"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// ScheduleService manages the recurrence rules that define the slot space.
type ScheduleService struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewScheduleService(s *store.Store) *ScheduleService {
	return &ScheduleService{
		store:  s,
		logger: logging.WithComponent("schedule"),
	}
}

// ScheduleParams carries the mutable fields of a schedule.
type ScheduleParams struct {
	Name            string
	CronExpr        string
	StartDate       *time.Time
	EndDate         *time.Time
	DurationMinutes int64
	IsActive        bool
}

func (p ScheduleParams) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if p.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidInput)
	}
	if err := cronutil.Validate(p.CronExpr); err != nil {
		return err
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidInput)
	}
	return nil
}

// ListActive returns the schedules shown to the public.
func (s *ScheduleService) ListActive(ctx context.Context) ([]store.Schedule, error) {
	schedules, err := s.store.ListActiveSchedules(ctx)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list active schedules")
		return nil, ErrInternalServer
	}
	return schedules, nil
}

// ListAll returns every schedule for the admin surface.
func (s *ScheduleService) ListAll(ctx context.Context) ([]store.Schedule, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list schedules")
		return nil, ErrInternalServer
	}
	return schedules, nil
}

func (s *ScheduleService) Get(ctx context.Context, scheduleID int64) (store.Schedule, error) {
	schedule, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Schedule{}, ErrScheduleNotFound
		}
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to load schedule")
		return store.Schedule{}, ErrInternalServer
	}
	return schedule, nil
}

func (s *ScheduleService) Create(ctx context.Context, params ScheduleParams) (store.Schedule, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.Schedule{}, err
	}

	schedule, err := s.store.CreateSchedule(ctx, store.CreateScheduleParams{
		Name:            params.Name,
		CronExpr:        params.CronExpr,
		StartDate:       store.NullTime(params.StartDate),
		EndDate:         store.NullTime(params.EndDate),
		DurationMinutes: params.DurationMinutes,
		IsActive:        params.IsActive,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to create schedule")
		return store.Schedule{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "schedule.created").
		Int64("schedule_id", schedule.ScheduleID).
		Str("cron_expr", schedule.CronExpr).
		Msg("schedule created")
	return schedule, nil
}

func (s *ScheduleService) Update(ctx context.Context, scheduleID int64, params ScheduleParams) (store.Schedule, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.Schedule{}, err
	}

	schedule, err := s.store.UpdateSchedule(ctx, store.UpdateScheduleParams{
		ScheduleID:      scheduleID,
		Name:            params.Name,
		CronExpr:        params.CronExpr,
		StartDate:       store.NullTime(params.StartDate),
		EndDate:         store.NullTime(params.EndDate),
		DurationMinutes: params.DurationMinutes,
		IsActive:        params.IsActive,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Schedule{}, ErrScheduleNotFound
		}
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to update schedule")
		return store.Schedule{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "schedule.updated").
		Int64("schedule_id", scheduleID).
		Msg("schedule updated")
	return schedule, nil
}

// Delete removes a schedule and cascades to its bookings and assignments.
func (s *ScheduleService) Delete(ctx context.Context, scheduleID int64) error {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.Get(ctx, scheduleID); err != nil {
		return err
	}
	if err := s.store.DeleteSchedule(ctx, scheduleID); err != nil {
		logger.Error().Err(err).Int64("schedule_id", scheduleID).Msg("failed to delete schedule")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "schedule.deleted").
		Int64("schedule_id", scheduleID).
		Msg("schedule deleted")
	return nil
}

// Preview expands a candidate cron expression without persisting anything,
// so admins can inspect the slots a schedule would produce.
func (s *ScheduleService) Preview(ctx context.Context, cronExpr string, from, to time.Time, durationMinutes int64, limit int) ([]cronutil.Occurrence, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidInput)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: preview window is empty", ErrInvalidInput)
	}

	exp, err := cronutil.Expand(cronExpr, from, to, time.Duration(durationMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	occurrences := []cronutil.Occurrence{}
	for {
		if limit > 0 && len(occurrences) >= limit {
			break
		}
		occ, ok := exp.Next()
		if !ok {
			break
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, nil
}
