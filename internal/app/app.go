// Package app wires the service graph and owns the process lifecycle:
// store open and migration, job scheduling, HTTP serving and the ordered
// shutdown of all of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Fermain/night-owls-go-sub006/internal/api"
	"github.com/Fermain/night-owls-go-sub006/internal/config"
	"github.com/Fermain/night-owls-go-sub006/internal/jobs"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/outbox"
	"github.com/Fermain/night-owls-go-sub006/internal/service"
	"github.com/Fermain/night-owls-go-sub006/internal/shifts"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// App is the fully wired service.
type App struct {
	cfg           *config.Config
	store         *store.Store
	runner        *jobs.Runner
	apiServer     *http.Server
	metricsServer *http.Server
	logger        zerolog.Logger
}

// New opens the store, applies migrations and builds the wiring graph.
// Any error here is a startup failure.
func New(cfg *config.Config) (*App, error) {
	logger := logging.WithComponent("app")

	st, err := store.Open(cfg.DatabasePath, store.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	authService := service.NewAuthService(st, cfg)
	scheduleService := service.NewScheduleService(st)
	shiftService := shifts.NewService(st)
	bookingService := service.NewBookingService(st, cfg)
	recurringService := service.NewRecurringService(st, shiftService, cfg)
	reportService := service.NewReportService(st, cfg)
	broadcastService := service.NewBroadcastService(st)
	pushService := service.NewPushService(st)
	userService := service.NewUserService(st)

	var smsSender outbox.Sender
	switch cfg.SMSProvider {
	case config.SMSProviderTwilio:
		smsSender = outbox.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	default:
		smsSender = outbox.NewSMSLogSender(cfg.OTPLogPath)
	}

	var pushSender outbox.Sender
	if cfg.PushEnabled() {
		pushSender = outbox.NewPushSender(st, cfg)
	} else {
		logger.Warn().Msg("VAPID keys not configured, push delivery disabled")
	}

	dispatcher := outbox.NewDispatcher(st, smsSender, pushSender, cfg.OutboxBatchSize, cfg.OutboxMaxRetries)

	runner := jobs.NewRunner(cfg.JobStopTimeout)
	for _, job := range []struct {
		name string
		spec string
		fn   jobs.Job
	}{
		{"drain-outbox", cfg.JobDrainSchedule, func(ctx context.Context) error {
			_, errored := dispatcher.Drain(ctx)
			if errored > 0 {
				return fmt.Errorf("%d outbox deliveries errored", errored)
			}
			return nil
		}},
		{"process-broadcasts", cfg.JobBroadcastSchedule, func(ctx context.Context) error {
			_, err := broadcastService.ProcessPending(ctx)
			return err
		}},
		{"materialize-recurring", cfg.JobMaterializeSchedule, func(ctx context.Context) error {
			_, err := recurringService.MaterializeUpcoming(ctx, time.Now().UTC())
			return err
		}},
		{"archive-reports", cfg.JobArchiveSchedule, func(ctx context.Context) error {
			_, err := reportService.ArchiveOld(ctx, time.Now().UTC())
			return err
		}},
	} {
		if err := runner.Register(job.name, job.spec, job.fn); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Auth:       authService,
		Schedules:  scheduleService,
		Shifts:     shiftService,
		Bookings:   bookingService,
		Recurring:  recurringService,
		Reports:    reportService,
		Broadcasts: broadcastService,
		Push:       pushService,
		Users:      userService,
	})

	app := &App{
		cfg:    cfg,
		store:  st,
		runner: runner,
		apiServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
			Handler:           server.Router(),
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		app.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return app, nil
}

// Run serves until ctx is cancelled or a server fails, then shuts down in
// order: HTTP first so no new requests are accepted while in-flight ones
// drain, the job scheduler next, store last.
func (a *App) Run(ctx context.Context) error {
	a.runner.Start()

	g, serveCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info().
			Str("event", "startup").
			Str("addr", a.apiServer.Addr).
			Msg("API server listening")
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	if a.metricsServer != nil {
		g.Go(func() error {
			a.logger.Info().Str("addr", a.metricsServer.Addr).Msg("metrics server listening")
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	<-serveCtx.Done()
	a.logger.Info().Str("event", "shutdown").Msg("shutting down")

	// Bounded contexts detached from the cancelled root.
	base := context.WithoutCancel(ctx)

	httpCtx, cancelHTTP := context.WithTimeout(base, a.cfg.ShutdownTimeout)
	defer cancelHTTP()
	if err := a.apiServer.Shutdown(httpCtx); err != nil {
		a.logger.Warn().Err(err).Msg("api server shutdown incomplete")
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(httpCtx); err != nil {
			a.logger.Warn().Err(err).Msg("metrics server shutdown incomplete")
		}
	}

	stopCtx, cancelStop := context.WithTimeout(base, a.cfg.JobStopTimeout+time.Second)
	if err := a.runner.Stop(stopCtx); err != nil {
		a.logger.Warn().Err(err).Msg("job runner did not stop cleanly")
	}
	cancelStop()

	serveErr := g.Wait()

	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	a.logger.Info().Str("event", "shutdown.completed").Msg("shutdown complete")
	return nil
}
