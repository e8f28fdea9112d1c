package pipeline

// scheduler.go triggers pipeline runs on a cron schedule.
//
// A scheduled run that finds another run active is skipped, not queued. Run
// failures are logged and never stop the scheduler. A run that has started
// finishes even when the scheduler is stopped; only the pipeline timeout
// bounds it.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a pipeline on a standard five-field cron expression.
type Scheduler struct {
	pipeline *Pipeline
	spec     string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewScheduler validates spec and returns a stopped scheduler.
func NewScheduler(p *Pipeline, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		pipeline: p,
		spec:     spec,
		logger:   logger.With("component", "scheduler"),
	}
	s.cron = cron.New(cron.WithLogger(cronLogger{s.logger}))
	return s, nil
}

// Start runs the schedule until ctx is cancelled, then waits for an
// in-flight run to finish. Cancelling ctx stops new runs, not the current one.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.logger.Info("scheduler started", "schedule", s.spec)
	s.cron.Start()

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Entries returns the registered cron entries with their next fire times.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.logger.Info("scheduled run starting")
	res, err := s.pipeline.Run(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("scheduled run skipped, another run is active")
	case errors.Is(err, ErrValidationFailed):
		s.logger.Warn("scheduled run blocked by validation",
			"run_id", res.RunID,
			"failed", res.Summary.Failed,
		)
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err, "code", MapError(err).Code)
	default:
		s.logger.Info("scheduled run completed", "run_id", res.RunID, "loaded_rows", res.LoadedRows)
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
