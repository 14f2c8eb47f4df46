package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		DevMode:              true,
		JWTSecret:            "test-secret",
		JWTExpiry:            time.Hour,
		OTPTTL:               10 * time.Minute,
		OutboxBatchSize:      10,
		OutboxMaxRetries:     3,
		SMSProvider:          config.SMSProviderLog,
		OTPLogPath:           "sms_outbox.log",
		PushTTL:              600 * time.Second,
		CancelCutoff:         2 * time.Hour,
		RecurringHorizonDays: 14,
		ReportRetentionDays:  365,
	}
}

func newUser(t *testing.T, s *store.Store, phone, role string) store.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), store.CreateUserParams{
		Phone: phone,
		Name:  store.NullString("Test User " + phone),
		Role:  role,
	})
	require.NoError(t, err)
	return user
}

func newSchedule(t *testing.T, s *store.Store, name, cronExpr string, durationMinutes int64) store.Schedule {
	t.Helper()
	schedule, err := s.CreateSchedule(context.Background(), store.CreateScheduleParams{
		Name:            name,
		CronExpr:        cronExpr,
		DurationMinutes: durationMinutes,
		IsActive:        true,
	})
	require.NoError(t, err)
	return schedule
}

// nextMidnight returns the first UTC midnight at least two days out, which is
// always a valid occurrence of the "0 0 * * *" recurrence and inside the
// default 14-day horizon.
func nextMidnight() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 2)
}

func pendingOutbox(t *testing.T, s *store.Store) []store.OutboxItem {
	t.Helper()
	items, err := s.FetchPendingOutbox(context.Background(), 100)
	require.NoError(t, err)
	return items
}
