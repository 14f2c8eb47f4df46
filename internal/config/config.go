// Package config loads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
)

// SMS provider selection values.
const (
	SMSProviderLog    = "log"
	SMSProviderTwilio = "twilio"
)

// Config holds every runtime option of the service.
type Config struct {
	// Server
	ServerPort  int
	DevMode     bool
	LogLevel    string
	LogFormat   string
	MetricsAddr string // empty disables the metrics listener

	// Storage
	DatabasePath string

	// Auth
	JWTSecret string
	JWTExpiry time.Duration
	OTPTTL    time.Duration

	// Outbox
	OutboxBatchSize  int
	OutboxMaxRetries int
	OTPLogPath       string

	// SMS delivery
	SMSProvider      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushTTL         time.Duration

	// Domain policy
	BookingMinLead       time.Duration
	CancelCutoff         time.Duration
	RecurringHorizonDays int
	ReportRetentionDays  int

	// Job cadences (robfig/cron specs, "@every ..." allowed)
	JobDrainSchedule       string
	JobBroadcastSchedule   string
	JobMaterializeSchedule string
	JobArchiveSchedule     string

	// Shutdown bounds
	ShutdownTimeout time.Duration
	JobStopTimeout  time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	logger := logging.WithComponent("config")

	if err := godotenv.Load(); err == nil {
		logger.Info().Msg("loaded .env file")
	}

	cfg := &Config{
		ServerPort:  ParseInt("SERVER_PORT", 5888),
		DevMode:     ParseBool("DEV_MODE", false),
		LogLevel:    ParseString("LOG_LEVEL", "info"),
		LogFormat:   ParseString("LOG_FORMAT", "json"),
		MetricsAddr: ParseString("METRICS_ADDR", ""),

		DatabasePath: ParseString("DATABASE_PATH", "./night-owls.db"),

		JWTSecret: ParseString("JWT_SECRET", ""),
		JWTExpiry: ParseDuration("JWT_EXPIRY", 168*time.Hour),
		OTPTTL:    ParseDuration("OTP_TTL", 10*time.Minute),

		OutboxBatchSize:  ParseInt("OUTBOX_BATCH_SIZE", 10),
		OutboxMaxRetries: ParseInt("OUTBOX_MAX_RETRIES", 3),
		OTPLogPath:       ParseString("OTP_LOG_PATH", "./sms_outbox.log"),

		SMSProvider:      ParseString("SMS_PROVIDER", SMSProviderLog),
		TwilioAccountSID: ParseString("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  ParseString("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: ParseString("TWILIO_FROM_NUMBER", ""),

		VAPIDPublicKey:  ParseString("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: ParseString("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    ParseString("VAPID_SUBJECT", ""),
		PushTTL:         ParseDuration("PUSH_TTL", 600*time.Second),

		BookingMinLead:       ParseDuration("BOOKING_MIN_LEAD", 0),
		CancelCutoff:         ParseDuration("CANCEL_CUTOFF", 2*time.Hour),
		RecurringHorizonDays: ParseInt("RECURRING_HORIZON_DAYS", 14),
		ReportRetentionDays:  ParseInt("REPORT_RETENTION_DAYS", 365),

		JobDrainSchedule:       ParseString("JOB_DRAIN_SCHEDULE", "@every 1m"),
		JobBroadcastSchedule:   ParseString("JOB_BROADCAST_SCHEDULE", "@every 30s"),
		JobMaterializeSchedule: ParseString("JOB_MATERIALIZE_SCHEDULE", "@every 1h"),
		JobArchiveSchedule:     ParseString("JOB_ARCHIVE_SCHEDULE", "0 2 * * *"),

		ShutdownTimeout: ParseDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		JobStopTimeout:  ParseDuration("JOB_STOP_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	var problems []string

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT %d out of range", c.ServerPort))
	}
	if c.DatabasePath == "" {
		problems = append(problems, "DATABASE_PATH must not be empty")
	}
	if c.OutboxBatchSize < 1 {
		problems = append(problems, fmt.Sprintf("OUTBOX_BATCH_SIZE %d must be positive", c.OutboxBatchSize))
	}
	if c.OutboxMaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("OUTBOX_MAX_RETRIES %d must not be negative", c.OutboxMaxRetries))
	}
	if c.RecurringHorizonDays < 1 {
		problems = append(problems, fmt.Sprintf("RECURRING_HORIZON_DAYS %d must be positive", c.RecurringHorizonDays))
	}
	if c.ReportRetentionDays < 1 {
		problems = append(problems, fmt.Sprintf("REPORT_RETENTION_DAYS %d must be positive", c.ReportRetentionDays))
	}
	if c.PushTTL <= 0 {
		problems = append(problems, "PUSH_TTL must be positive")
	}

	switch c.SMSProvider {
	case SMSProviderLog:
		if c.OTPLogPath == "" {
			problems = append(problems, "OTP_LOG_PATH must not be empty with SMS_PROVIDER=log")
		}
	case SMSProviderTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
			problems = append(problems, "SMS_PROVIDER=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown SMS_PROVIDER %q", c.SMSProvider))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("unknown LOG_FORMAT %q", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// PushEnabled reports whether web push delivery is fully configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" && c.VAPIDSubject != ""
}

// RecurringHorizon returns the materialization horizon as a duration.
func (c *Config) RecurringHorizon() time.Duration {
	return time.Duration(c.RecurringHorizonDays) * 24 * time.Hour
}

// ReportRetention returns the report retention threshold as a duration.
func (c *Config) ReportRetention() time.Duration {
	return time.Duration(c.ReportRetentionDays) * 24 * time.Hour
}
