// Package cli provides the command-line interface for salesetl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/load"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
	"github.com/JonMunkholm/salesetl/internal/report"
	"github.com/JonMunkholm/salesetl/internal/rules"
)

// Version information (set at build time).
var Version = "0.1.0"

// Exit codes returned by ExitCode.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitBlocked = 2 // validation failed, nothing was loaded
)

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrValidationFailed):
		return ExitBlocked
	default:
		return ExitError
	}
}

// NewRootCmd creates the root command. Persistent flags override the
// corresponding fields of cfg before any subcommand runs.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "salesetl",
		Short: "salesetl - validation-gated sales ETL",
		Long: `salesetl extracts a sales CSV, cleans it, runs data-quality checks and
loads the result into a database table only when every check passes.

Settings come from the environment (and .env); flags override them.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if err := applyFlags(cmd.Root().PersistentFlags(), cfg); err != nil {
				return err
			}
			return cfg.Validate()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("source", "", "source CSV file (env SOURCE_PATH)")
	pf.String("delimiter", "", "field delimiter (env SOURCE_DELIMITER)")
	pf.String("table", "", "destination table (env TABLE_NAME)")
	pf.String("driver", "", "database driver: sqlite, postgres, mysql (env DB_DRIVER)")
	pf.String("dsn", "", "database DSN or sqlite path (env DATABASE_URL)")
	pf.String("rules", "", "YAML file overriding validation rules (env RULES_FILE)")
	pf.Int("sample-size", 0, "rows read back after loading (env VERIFY_SAMPLE_SIZE)")
	pf.Duration("timeout", 0, "maximum duration of a run (env PIPELINE_TIMEOUT)")

	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{load.DriverSQLite, load.DriverPostgres, load.DriverMySQL}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRunCmd(cfg))
	rootCmd.AddCommand(newValidateCmd(cfg))
	rootCmd.AddCommand(newVerifyCmd(cfg))
	rootCmd.AddCommand(newServeCmd(cfg))

	return rootCmd
}

// Execute runs the root command with args against cfg.
func Execute(ctx context.Context, cfg *config.Config, args []string) error {
	rootCmd := NewRootCmd(cfg)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// applyFlags copies every explicitly set persistent flag into cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"source":    &cfg.Pipeline.SourcePath,
		"delimiter": &cfg.Pipeline.Delimiter,
		"table":     &cfg.Pipeline.Table,
		"driver":    &cfg.Database.Driver,
		"dsn":       &cfg.Database.URL,
		"rules":     &cfg.Pipeline.RulesFile,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed("sample-size") {
		n, err := fs.GetInt("sample-size")
		if err != nil {
			return err
		}
		cfg.Pipeline.SampleSize = n
	}
	if fs.Changed("timeout") {
		d, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Pipeline.Timeout = d
	}
	return nil
}

// newPipeline builds a pipeline from cfg, loading the rules file if one is set.
func newPipeline(cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	r, err := rules.Load(cfg.Pipeline.RulesFile)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		SourcePath: cfg.Pipeline.SourcePath,
		Delimiter:  cfg.Pipeline.DelimiterRune(),
		Table:      cfg.Pipeline.Table,
		Destination: load.Destination{
			Driver:   cfg.Database.Driver,
			DSN:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		},
		Rules:      r,
		SampleSize: cfg.Pipeline.SampleSize,
		Timeout:    cfg.Pipeline.Timeout,
	}, opts...), nil
}

// printHook renders the validation report as soon as the checks finish, so
// the report always precedes the load decision.
func printHook(w io.Writer) pipeline.Option {
	return pipeline.WithReportHook(func(_ context.Context, res *pipeline.Result) {
		report.Checks(w, res.Report())
	})
}

// printOutcome writes what follows the report: the loaded sample and the
// summary on success, the reason the run stopped otherwise.
func printOutcome(out, errOut io.Writer, res *pipeline.Result, err error) {
	if res != nil && res.Sample != nil {
		_, _ = fmt.Fprintf(out, "\nSample of %s:\n", res.Table)
		report.Sample(out, res.Sample)
	}
	if res != nil {
		_, _ = fmt.Fprintln(out)
		report.Summary(out, res)
	}
	if err == nil {
		return
	}
	switch {
	case res != nil && res.Stage == pipeline.StageExtract:
		_, _ = fmt.Fprintln(errOut, "Extraction failed. Pipeline stopped.")
	case errors.Is(err, pipeline.ErrValidationFailed):
		_, _ = fmt.Fprintln(errOut, "Validation failed. Data will NOT be loaded.")
	}
	_, _ = fmt.Fprintln(errOut, pipeline.FormatUserError(err))
}

// runContext applies no deadline of its own; the pipeline enforces its timeout.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
