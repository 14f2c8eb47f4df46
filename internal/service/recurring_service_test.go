package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/shifts"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
	"github.com/Fermain/night-owls-go-sub006/internal/store/storetest"
)

func newRecurringService(s *store.Store) *service.RecurringService {
	return service.NewRecurringService(s, shifts.NewService(s), testConfig())
}

func TestMaterializeUpcomingFridayEvenings(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	user := newUser(t, s, "+27821000020", store.RoleOwl)
	// Friday 18:00, two hours.
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	_, err := svc.CreateAssignment(ctx, service.AssignmentParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		DayOfWeek:  5,
		TimeSlot:   "18:00-20:00",
		BuddyName:  "Bob",
		IsActive:   true,
	})
	require.NoError(t, err)

	// 2025-01-01 is a Wednesday; the 14-day horizon covers three Fridays.
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	created, err := svc.MaterializeUpcoming(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	for _, day := range []int{3, 10, 17} {
		start := time.Date(2025, 1, day, 18, 0, 0, 0, time.UTC)
		booking, err := s.GetBookingByShift(ctx, schedule.ScheduleID, start)
		require.NoError(t, err, "expected booking on 2025-01-%02d", day)
		assert.Equal(t, user.UserID, booking.UserID)
		assert.True(t, booking.IsRecurring)
		assert.Equal(t, "Bob", booking.BuddyName.String)
	}

	// Re-running inside the same horizon creates nothing new.
	created, err = svc.MaterializeUpcoming(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestMaterializeSkipsBookedSlots(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	owl := newUser(t, s, "+27821000021", store.RoleOwl)
	walkIn := newUser(t, s, "+27821000022", store.RoleOwl)
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	_, err := svc.CreateAssignment(ctx, service.AssignmentParams{
		UserID:     owl.UserID,
		ScheduleID: schedule.ScheduleID,
		DayOfWeek:  5,
		TimeSlot:   "18:00-20:00",
		IsActive:   true,
	})
	require.NoError(t, err)

	// A walk-in already holds the first Friday.
	firstFriday := time.Date(2025, 1, 3, 18, 0, 0, 0, time.UTC)
	_, err = s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     walkIn.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: firstFriday,
		ShiftEnd:   firstFriday.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	created, err := svc.MaterializeUpcoming(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	kept, err := s.GetBookingByShift(ctx, schedule.ScheduleID, firstFriday)
	require.NoError(t, err)
	assert.Equal(t, walkIn.UserID, kept.UserID, "existing booking is never overwritten")
}

func TestMaterializeIgnoresInactiveAssignments(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	user := newUser(t, s, "+27821000023", store.RoleOwl)
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	_, err := svc.CreateAssignment(ctx, service.AssignmentParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		DayOfWeek:  5,
		TimeSlot:   "18:00-20:00",
		IsActive:   false,
	})
	require.NoError(t, err)

	created, err := svc.MaterializeUpcoming(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestAssignmentValidation(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	user := newUser(t, s, "+27821000024", store.RoleOwl)
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	cases := []struct {
		name    string
		params  service.AssignmentParams
		wantErr error
	}{
		{
			name:    "day of week out of range",
			params:  service.AssignmentParams{UserID: user.UserID, ScheduleID: schedule.ScheduleID, DayOfWeek: 7, TimeSlot: "18:00-20:00"},
			wantErr: service.ErrInvalidInput,
		},
		{
			name:    "malformed time slot",
			params:  service.AssignmentParams{UserID: user.UserID, ScheduleID: schedule.ScheduleID, DayOfWeek: 5, TimeSlot: "6pm to 8pm"},
			wantErr: service.ErrInvalidTimeSlot,
		},
		{
			name:    "hour out of range",
			params:  service.AssignmentParams{UserID: user.UserID, ScheduleID: schedule.ScheduleID, DayOfWeek: 5, TimeSlot: "25:00-26:00"},
			wantErr: service.ErrInvalidTimeSlot,
		},
		{
			name:    "unknown user",
			params:  service.AssignmentParams{UserID: 99999, ScheduleID: schedule.ScheduleID, DayOfWeek: 5, TimeSlot: "18:00-20:00"},
			wantErr: service.ErrUserNotFound,
		},
		{
			name:    "unknown schedule",
			params:  service.AssignmentParams{UserID: user.UserID, ScheduleID: 99999, DayOfWeek: 5, TimeSlot: "18:00-20:00"},
			wantErr: service.ErrScheduleNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAssignment(ctx, tc.params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAssignmentUniquePattern(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	alice := newUser(t, s, "+27821000025", store.RoleOwl)
	bob := newUser(t, s, "+27821000026", store.RoleOwl)
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	params := service.AssignmentParams{
		UserID:     alice.UserID,
		ScheduleID: schedule.ScheduleID,
		DayOfWeek:  5,
		TimeSlot:   "18:00-20:00",
		IsActive:   true,
	}
	first, err := svc.CreateAssignment(ctx, params)
	require.NoError(t, err)

	params.UserID = bob.UserID
	_, err = svc.CreateAssignment(ctx, params)
	assert.ErrorIs(t, err, service.ErrAssignmentConflict)

	// Deactivating the first frees the pattern; the partial index only
	// constrains active assignments.
	params.UserID = alice.UserID
	params.IsActive = false
	_, err = svc.UpdateAssignment(ctx, first.RecID, params)
	require.NoError(t, err)

	params.UserID = bob.UserID
	params.IsActive = true
	_, err = svc.CreateAssignment(ctx, params)
	require.NoError(t, err)
}

func TestAssignmentLifecycle(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := newRecurringService(s)

	user := newUser(t, s, "+27821000027", store.RoleOwl)
	schedule := newSchedule(t, s, "Friday Patrol", "0 18 * * 5", 120)

	created, err := svc.CreateAssignment(ctx, service.AssignmentParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		DayOfWeek:  5,
		TimeSlot:   "18:00-20:00",
		IsActive:   true,
	})
	require.NoError(t, err)

	got, err := svc.GetAssignment(ctx, created.RecID)
	require.NoError(t, err)
	assert.Equal(t, created.RecID, got.RecID)

	list, err := svc.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteAssignment(ctx, created.RecID))
	_, err = svc.GetAssignment(ctx, created.RecID)
	assert.ErrorIs(t, err, service.ErrAssignmentNotFound)

	err = svc.DeleteAssignment(ctx, created.RecID)
	assert.ErrorIs(t, err, service.ErrAssignmentNotFound)
}
