package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// activeUserWindow is how far back a booking or report counts a user as active.
const activeUserWindow = 30 * 24 * time.Hour

// UserService covers the admin-facing user management and dashboard counts.
type UserService struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewUserService(s *store.Store) *UserService {
	return &UserService{
		store:  s,
		logger: logging.WithComponent("user"),
	}
}

// UserParams carries the mutable fields of a user.
type UserParams struct {
	Phone string
	Name  string
	Role  string
}

func validRole(role string) bool {
	switch role {
	case store.RoleGuest, store.RoleOwl, store.RoleAdmin:
		return true
	}
	return false
}

func (s *UserService) List(ctx context.Context, search string) ([]store.User, error) {
	users, err := s.store.ListUsers(ctx, search)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list users")
		return nil, ErrInternalServer
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrUserNotFound
		}
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to load user")
		return store.User{}, ErrInternalServer
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, params UserParams) (store.User, error) {
	logger := logging.WithContext(ctx, s.logger)

	e164, err := NormalizePhone(params.Phone)
	if err != nil {
		return store.User{}, err
	}
	if !validRole(params.Role) {
		return store.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, params.Role)
	}

	user, err := s.store.CreateUser(ctx, store.CreateUserParams{
		Phone: e164,
		Name:  store.NullString(params.Name),
		Role:  params.Role,
	})
	if err != nil {
		if store.IsUniqueConstraintError(err) {
			return store.User{}, fmt.Errorf("%w: phone already registered", ErrInvalidInput)
		}
		logger.Error().Err(err).Msg("failed to create user")
		return store.User{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "user.created").
		Int64("user_id", user.UserID).
		Str("role", user.Role).
		Msg("user created by admin")
	return user, nil
}

func (s *UserService) Update(ctx context.Context, userID int64, params UserParams) (store.User, error) {
	logger := logging.WithContext(ctx, s.logger)

	e164, err := NormalizePhone(params.Phone)
	if err != nil {
		return store.User{}, err
	}
	if !validRole(params.Role) {
		return store.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, params.Role)
	}

	user, err := s.store.UpdateUser(ctx, store.UpdateUserParams{
		UserID: userID,
		Phone:  e164,
		Name:   store.NullString(params.Name),
		Role:   params.Role,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrUserNotFound
		}
		if store.IsUniqueConstraintError(err) {
			return store.User{}, fmt.Errorf("%w: phone already registered", ErrInvalidInput)
		}
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to update user")
		return store.User{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "user.updated").
		Int64("user_id", userID).
		Str("role", user.Role).
		Msg("user updated by admin")
	return user, nil
}

// Delete removes a user; bookings, assignments and subscriptions cascade
// while reports survive with a detached booking reference.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("failed to delete user")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "user.deleted").
		Int64("user_id", userID).
		Msg("user deleted by admin")
	return nil
}

// Dashboard summarises the state of the system for the admin landing page.
type Dashboard struct {
	UsersByRole           map[string]int64 `json:"users_by_role"`
	ActiveSchedules       int64            `json:"active_schedules"`
	UpcomingBookings      int64            `json:"upcoming_bookings"`
	PendingOutbox         int64            `json:"pending_outbox"`
	FailedOutbox          int64            `json:"permanently_failed_outbox"`
	UnprocessedBroadcasts int64            `json:"unprocessed_broadcasts"`
}

func (s *UserService) Dashboard(ctx context.Context) (Dashboard, error) {
	logger := logging.WithContext(ctx, s.logger)
	now := time.Now().UTC()

	var (
		dash Dashboard
		err  error
	)
	if dash.UsersByRole, err = s.store.CountUsersByRole(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to count users")
		return Dashboard{}, ErrInternalServer
	}
	if dash.ActiveSchedules, err = s.store.CountActiveSchedules(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to count schedules")
		return Dashboard{}, ErrInternalServer
	}
	if dash.UpcomingBookings, err = s.store.CountBookingsBetween(ctx, now, now.Add(activeUserWindow)); err != nil {
		logger.Error().Err(err).Msg("failed to count bookings")
		return Dashboard{}, ErrInternalServer
	}
	if dash.PendingOutbox, err = s.store.CountOutboxByStatus(ctx, store.OutboxPending); err != nil {
		logger.Error().Err(err).Msg("failed to count pending outbox")
		return Dashboard{}, ErrInternalServer
	}
	if dash.FailedOutbox, err = s.store.CountOutboxByStatus(ctx, store.OutboxPermanentlyFailed); err != nil {
		logger.Error().Err(err).Msg("failed to count failed outbox")
		return Dashboard{}, ErrInternalServer
	}
	if dash.UnprocessedBroadcasts, err = s.store.CountUnprocessedBroadcasts(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to count broadcasts")
		return Dashboard{}, ErrInternalServer
	}
	return dash, nil
}
