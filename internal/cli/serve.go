package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
	"github.com/JonMunkholm/salesetl/internal/web"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run on a schedule",
		Long: `Start the HTTP server. Runs are triggered with POST /api/runs and, when a
schedule is set, by cron. Overlapping runs are refused.

Stops on SIGINT or SIGTERM after the in-flight run finishes or the shutdown
timeout passes.`,
		Example: `  # Serve on :8080 and run every night at 02:00
  salesetl serve --schedule "0 2 * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("schedule") {
				cfg.Schedule.Cron = schedule
			}
			return serve(runContext(cmd), cfg)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for scheduled runs (env SCHEDULE_CRON)")
	return cmd
}

// serve blocks until ctx is cancelled or the server fails.
func serve(ctx context.Context, cfg *config.Config) error {
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	var sched *pipeline.Scheduler
	if cfg.Schedule.Cron != "" {
		sched, err = pipeline.NewScheduler(p, cfg.Schedule.Cron, slog.Default())
		if err != nil {
			return err
		}
	}

	srv := web.NewServer(p, cfg.Server)
	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if sched != nil {
		eg.Go(func() error {
			return sched.Start(egctx)
		})
	}

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if running, since := p.Guard().Running(); running {
			slog.Info("waiting for pipeline run to complete", "running_since", since)
			if err := p.Guard().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("pipeline run did not complete in time", "error", err)
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
