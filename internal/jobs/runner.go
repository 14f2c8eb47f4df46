// Package jobs schedules the periodic maintenance work: outbox drains,
// broadcast fan-out, recurring materialization and report archival.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/metrics"
)

// Job is one unit of periodic work. The context is cancelled on shutdown.
type Job func(ctx context.Context) error

// Runner owns the process-wide cron scheduler. Each job is wrapped with
// panic recovery and overlap suppression, so a slow run never stacks a
// second one of the same job.
type Runner struct {
	cron        *cron.Cron
	stopTimeout time.Duration
	logger      zerolog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

func NewRunner(stopTimeout time.Duration) *Runner {
	logger := logging.WithComponent("jobs")
	cl := cronLogger{logger: logger}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		stopTimeout: stopTimeout,
		logger:      logger,
		baseCtx:     baseCtx,
		cancelBase:  cancel,
	}
}

// Register schedules a named job. The spec is a robfig/cron expression;
// "@every" descriptors are accepted here, unlike in schedule recurrences.
func (r *Runner) Register(name, spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx := logging.ContextWithJobID(r.baseCtx, uuid.NewString())
		logger := logging.WithContext(ctx, r.logger).With().Str("job", name).Logger()

		start := time.Now()
		err := job(ctx)
		elapsed := time.Since(start)

		if err != nil {
			metrics.RecordJobRun(name, "error", elapsed)
			logger.Error().Err(err).
				Str("event", "job.failed").
				Dur("duration", elapsed).
				Msg("job run failed")
			return
		}
		metrics.RecordJobRun(name, "ok", elapsed)
		logger.Debug().
			Str("event", "job.completed").
			Dur("duration", elapsed).
			Msg("job run completed")
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}

	r.logger.Info().
		Str("job", name).
		Str("schedule", spec).
		Msg("job registered")
	return nil
}

// Start begins triggering registered jobs.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info().Str("event", "jobs.started").Msg("job runner started")
}

// Stop halts new triggers and waits for in-flight jobs up to the stop
// timeout. Stragglers keep running with a cancelled context and are logged.
func (r *Runner) Stop(ctx context.Context) error {
	drained := r.cron.Stop()
	r.cancelBase()

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()

	select {
	case <-drained.Done():
		r.logger.Info().Str("event", "jobs.stopped").Msg("job runner stopped cleanly")
		return nil
	case <-timer.C:
		r.logger.Warn().
			Str("event", "jobs.stop_timeout").
			Dur("timeout", r.stopTimeout).
			Msg("in-flight jobs did not finish before the stop timeout")
		return fmt.Errorf("job runner stop timed out after %s", r.stopTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to the cron.Logger interface used by the
// recovery and overlap wrappers.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(fieldMap(keysAndValues)).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(fieldMap(keysAndValues)).Msg(msg)
}

func fieldMap(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
