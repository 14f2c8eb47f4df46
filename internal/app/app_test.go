package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Fermain/night-owls-go-sub006/internal/app"
	"github.com/Fermain/night-owls-go-sub006/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerPort:             0,
		DatabasePath:           filepath.Join(dir, "app.db"),
		JWTSecret:              "test-secret",
		JWTExpiry:              time.Hour,
		OTPTTL:                 10 * time.Minute,
		OutboxBatchSize:        10,
		OutboxMaxRetries:       3,
		SMSProvider:            config.SMSProviderLog,
		OTPLogPath:             filepath.Join(dir, "sms_outbox.log"),
		CancelCutoff:           2 * time.Hour,
		RecurringHorizonDays:   14,
		ReportRetentionDays:    365,
		JobDrainSchedule:       "@every 1h",
		JobBroadcastSchedule:   "@every 1h",
		JobMaterializeSchedule: "@every 1h",
		JobArchiveSchedule:     "@every 1h",
		ShutdownTimeout:        2 * time.Second,
		JobStopTimeout:         2 * time.Second,
	}
}

// The wired application serves, then drains in order on cancellation: HTTP
// listeners close before the job scheduler, the store last.
func TestRunShutsDownCleanly(t *testing.T) {
	a, err := app.New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestNewRejectsBadJobSpec(t *testing.T) {
	cfg := testConfig(t)
	cfg.JobDrainSchedule = "not a cron spec"

	_, err := app.New(cfg)
	require.Error(t, err)
}
