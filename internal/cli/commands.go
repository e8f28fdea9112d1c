package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
	"github.com/JonMunkholm/salesetl/internal/report"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, transform, validate and load",
		Long: `Run the full pipeline once.

The validation report is printed before the load decision. When any check
fails nothing is loaded and the command exits with status 2.`,
		Example: `  # Run with settings from the environment
  salesetl run

  # Load a different file into postgres
  salesetl run --source data/raw/march.csv --driver postgres --dsn postgres://etl@localhost/warehouse

  # Machine-readable result for CI
  salesetl run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, cfg, false, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run result as JSON")
	return cmd
}

func newValidateCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run every check without loading",
		Long: `Extract, transform and validate the source, then stop. The destination
is never touched. Exits with status 2 when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, cfg, true, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run result as JSON")
	return cmd
}

func newVerifyCmd(cfg *config.Config) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Show the first rows of the destination table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline(cfg)
			if err != nil {
				return err
			}
			sample, err := p.Sample(runContext(cmd), cfg.Pipeline.Table, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return report.JSON(out, sample)
			}
			report.Sample(out, sample)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of rows (default: --sample-size)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the sample as JSON")
	return cmd
}

// execute runs the pipeline once, loading unless dryRun is set.
func execute(cmd *cobra.Command, cfg *config.Config, dryRun, jsonOutput bool) error {
	out := cmd.OutOrStdout()

	var opts []pipeline.Option
	if !jsonOutput {
		opts = append(opts, printHook(out))
	}
	p, err := newPipeline(cfg, opts...)
	if err != nil {
		return err
	}

	run := p.Run
	if dryRun {
		run = p.Validate
	}
	res, err := run(runContext(cmd))

	if !jsonOutput {
		printOutcome(out, cmd.ErrOrStderr(), res, err)
		return err
	}
	if res != nil {
		if encErr := report.JSON(out, res); encErr != nil {
			return encErr
		}
	}
	return err
}
