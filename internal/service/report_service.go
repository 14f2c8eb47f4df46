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
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// ReportService records shift and off-shift reports and owns their archival.
type ReportService struct {
	store  *store.Store
	cfg    *config.Config
	logger zerolog.Logger
}

func NewReportService(s *store.Store, cfg *config.Config) *ReportService {
	return &ReportService{
		store:  s,
		cfg:    cfg,
		logger: logging.WithComponent("report"),
	}
}

// ReportParams carries the submitted fields of a report.
type ReportParams struct {
	Severity          string
	Message           string
	Latitude          *float64
	Longitude         *float64
	Accuracy          *float64
	LocationTimestamp *time.Time
}

func (p ReportParams) validate() error {
	switch p.Severity {
	case store.SeverityNormal, store.SeveritySuspicion, store.SeverityIncident:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, p.Severity)
	}
	if p.Message == "" {
		return fmt.Errorf("%w: message must not be empty", ErrInvalidInput)
	}
	return nil
}

// CreateShiftReport files a report against a booking the caller owns.
func (s *ReportService) CreateShiftReport(ctx context.Context, bookingID, callerID int64, params ReportParams) (store.Report, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.Report{}, err
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Report{}, ErrBookingNotFound
		}
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to load booking for report")
		return store.Report{}, ErrInternalServer
	}
	if booking.UserID != callerID {
		return store.Report{}, ErrForbiddenUpdate
	}

	report, err := s.insert(ctx, sql.NullInt64{Int64: bookingID, Valid: true}, callerID, params)
	if err != nil {
		logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to create shift report")
		return store.Report{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "report.created").
		Int64("report_id", report.ReportID).
		Int64("booking_id", bookingID).
		Str("severity", report.Severity).
		Msg("shift report filed")
	return report, nil
}

// CreateOffShiftReport files a report with no booking attached.
func (s *ReportService) CreateOffShiftReport(ctx context.Context, callerID int64, params ReportParams) (store.Report, error) {
	logger := logging.WithContext(ctx, s.logger)

	if err := params.validate(); err != nil {
		return store.Report{}, err
	}

	report, err := s.insert(ctx, sql.NullInt64{}, callerID, params)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create off-shift report")
		return store.Report{}, ErrInternalServer
	}

	logger.Info().
		Str("event", "report.created").
		Int64("report_id", report.ReportID).
		Str("severity", report.Severity).
		Msg("off-shift report filed")
	return report, nil
}

func (s *ReportService) insert(ctx context.Context, bookingID sql.NullInt64, userID int64, params ReportParams) (store.Report, error) {
	return s.store.CreateReport(ctx, store.CreateReportParams{
		BookingID:         bookingID,
		UserID:            userID,
		Severity:          params.Severity,
		Message:           params.Message,
		Latitude:          nullFloat(params.Latitude),
		Longitude:         nullFloat(params.Longitude),
		Accuracy:          nullFloat(params.Accuracy),
		LocationTimestamp: store.NullTime(params.LocationTimestamp),
	})
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (s *ReportService) List(ctx context.Context, includeArchived bool) ([]store.Report, error) {
	reports, err := s.store.ListReports(ctx, includeArchived)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to list reports")
		return nil, ErrInternalServer
	}
	return reports, nil
}

func (s *ReportService) Get(ctx context.Context, reportID int64) (store.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Report{}, ErrReportNotFound
		}
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Int64("report_id", reportID).Msg("failed to load report")
		return store.Report{}, ErrInternalServer
	}
	return report, nil
}

// SetArchived stamps or clears archived_at on a single report.
func (s *ReportService) SetArchived(ctx context.Context, reportID int64, archived bool) error {
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.Get(ctx, reportID); err != nil {
		return err
	}

	archivedAt := sql.NullTime{}
	if archived {
		archivedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	if err := s.store.SetReportArchived(ctx, reportID, archivedAt); err != nil {
		logger.Error().Err(err).Int64("report_id", reportID).Msg("failed to update report archival")
		return ErrInternalServer
	}

	logger.Info().
		Str("event", "report.archival_changed").
		Int64("report_id", reportID).
		Bool("archived", archived).
		Msg("report archival changed")
	return nil
}

// ArchiveOld stamps archived_at on reports older than the retention
// threshold. Re-running is a no-op for already-archived rows.
func (s *ReportService) ArchiveOld(ctx context.Context, now time.Time) (int64, error) {
	logger := logging.WithContext(ctx, s.logger)
	now = now.UTC()

	cutoff := now.Add(-s.cfg.ReportRetention())
	count, err := s.store.ArchiveReportsBefore(ctx, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("archive reports: %w", err)
	}

	if count > 0 {
		logger.Info().
			Str("event", "report.archived").
			Int64("count", count).
			Time("cutoff", cutoff).
			Msg("old reports archived")
	}
	return count, nil
}

// Stats returns report counts bucketed by severity and archival state.
func (s *ReportService) Stats(ctx context.Context) ([]store.ReportStatsRow, error) {
	stats, err := s.store.ReportStats(ctx)
	if err != nil {
		logger := logging.WithContext(ctx, s.logger)
		logger.Error().Err(err).Msg("failed to load report stats")
		return nil, ErrInternalServer
	}
	return stats, nil
}
