package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
	"github.com/Fermain/night-owls-go-sub006/internal/store/storetest"
)

func TestCreateShiftReport(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewReportService(s, testConfig())

	owner := newUser(t, s, "+27821000050", store.RoleOwl)
	other := newUser(t, s, "+27821000051", store.RoleOwl)
	schedule := newSchedule(t, s, "Night Watch", "0 0 * * *", 120)
	now := time.Now().UTC()

	booking, err := s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     owner.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: now.Add(-time.Hour),
		ShiftEnd:   now.Add(time.Hour),
	})
	require.NoError(t, err)

	lat, lng := -33.918861, 18.4233
	report, err := svc.CreateShiftReport(ctx, booking.BookingID, owner.UserID, service.ReportParams{
		Severity:  store.SeveritySuspicion,
		Message:   "Unfamiliar vehicle circling the block",
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID, report.BookingID.Int64)
	assert.Equal(t, store.SeveritySuspicion, report.Severity)
	assert.InDelta(t, lat, report.Latitude.Float64, 1e-9)

	_, err = svc.CreateShiftReport(ctx, booking.BookingID, other.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "all quiet",
	})
	assert.ErrorIs(t, err, service.ErrForbiddenUpdate)

	_, err = svc.CreateShiftReport(ctx, 99999, owner.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "all quiet",
	})
	assert.ErrorIs(t, err, service.ErrBookingNotFound)
}

func TestCreateOffShiftReport(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewReportService(s, testConfig())

	user := newUser(t, s, "+27821000052", store.RoleOwl)

	report, err := svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: store.SeverityIncident,
		Message:  "Gate forced open overnight",
	})
	require.NoError(t, err)
	assert.False(t, report.BookingID.Valid)

	_, err = svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: "catastrophic",
		Message:  "bad severity",
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
	})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestReportSurvivesBookingCancellation(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewReportService(s, testConfig())

	user := newUser(t, s, "+27821000053", store.RoleOwl)
	schedule := newSchedule(t, s, "Night Watch", "0 0 * * *", 120)
	now := time.Now().UTC()

	booking, err := s.CreateBooking(ctx, store.CreateBookingParams{
		UserID:     user.UserID,
		ScheduleID: schedule.ScheduleID,
		ShiftStart: now.Add(-time.Hour),
		ShiftEnd:   now.Add(time.Hour),
	})
	require.NoError(t, err)

	report, err := svc.CreateShiftReport(ctx, booking.BookingID, user.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "quiet shift",
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBooking(ctx, booking.BookingID))

	got, err := svc.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.False(t, got.BookingID.Valid, "booking reference is cleared, report kept")
}

func TestArchiveOldReports(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.ReportRetentionDays = 30
	svc := service.NewReportService(s, cfg)

	user := newUser(t, s, "+27821000054", store.RoleOwl)

	oldReport, err := svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "stale report",
	})
	require.NoError(t, err)
	freshReport, err := svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "fresh report",
	})
	require.NoError(t, err)

	// Backdate one report past the retention threshold.
	now := time.Now().UTC()
	_, err = s.DB().ExecContext(ctx, `UPDATE reports SET created_at = ? WHERE report_id = ?`,
		now.AddDate(0, 0, -60), oldReport.ReportID)
	require.NoError(t, err)

	count, err := svc.ArchiveOld(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	archived, err := svc.Get(ctx, oldReport.ReportID)
	require.NoError(t, err)
	assert.True(t, archived.ArchivedAt.Valid)

	fresh, err := svc.Get(ctx, freshReport.ReportID)
	require.NoError(t, err)
	assert.False(t, fresh.ArchivedAt.Valid)

	// Already-archived rows are not touched again.
	count, err = svc.ArchiveOld(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSetArchivedRoundTrip(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewReportService(s, testConfig())

	user := newUser(t, s, "+27821000055", store.RoleOwl)
	report, err := svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
		Severity: store.SeverityNormal,
		Message:  "to be archived",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetArchived(ctx, report.ReportID, true))
	got, err := svc.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.True(t, got.ArchivedAt.Valid)

	// Archived reports drop out of the default listing.
	visible, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.SetArchived(ctx, report.ReportID, false))
	got, err = svc.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.False(t, got.ArchivedAt.Valid)

	err = svc.SetArchived(ctx, 99999, true)
	assert.ErrorIs(t, err, service.ErrReportNotFound)
}

func TestReportStats(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	svc := service.NewReportService(s, testConfig())

	user := newUser(t, s, "+27821000056", store.RoleOwl)
	for _, severity := range []string{store.SeverityNormal, store.SeverityNormal, store.SeverityIncident} {
		_, err := svc.CreateOffShiftReport(ctx, user.UserID, service.ReportParams{
			Severity: severity,
			Message:  "stats fixture",
		})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	counts := map[string]int64{}
	for _, row := range stats {
		counts[row.Severity] += row.Count
	}
	assert.Equal(t, int64(2), counts[store.SeverityNormal])
	assert.Equal(t, int64(1), counts[store.SeverityIncident])
}
