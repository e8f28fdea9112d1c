// Package pipeline sequences a sales ETL run: extract, transform, validate,
// and, only when every check passed, load and verify.
//
// Structural failures (missing or unparsable source, unparsable dates) stop
// the run at once. Data-quality defects never stop the checks: every check
// runs, the report hook sees the complete report, and only then is the
// verdict applied. A single failed check blocks the whole load.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/salesetl/internal/core"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/load"
	"github.com/JonMunkholm/salesetl/internal/logging"
)

// ErrValidationFailed is returned when at least one data-quality check failed
// and the load was therefore skipped.
var ErrValidationFailed = errors.New("validation failed")

// Stage is the last pipeline stage a run reached.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
	StageLoad      Stage = "load"
	StageVerify    Stage = "verify"
	StageDone      Stage = "done"
)

// DefaultSampleSize is how many rows are read back after a load.
const DefaultSampleSize = 5

// Options configures what a pipeline reads and where it writes.
type Options struct {
	SourcePath  string
	Delimiter   rune
	Table       string
	Destination load.Destination
	Rules       core.Rules
	SampleSize  int
	Timeout     time.Duration
}

// Loader writes a dataset and reads a sample back.
type Loader interface {
	Load(ctx context.Context, dest load.Destination, ds *core.Dataset, table string) (int64, error)
	Verify(ctx context.Context, dest load.Destination, table string, limit int) (*load.Sample, error)
}

// dbLoader opens a scoped connection per call.
type dbLoader struct{}

func (dbLoader) Load(ctx context.Context, dest load.Destination, ds *core.Dataset, table string) (int64, error) {
	return load.Load(ctx, dest, ds, table)
}

func (dbLoader) Verify(ctx context.Context, dest load.Destination, table string, limit int) (*load.Sample, error) {
	return load.Verify(ctx, dest, table, limit)
}

// Result describes one pipeline run.
type Result struct {
	RunID             string             `json:"run_id"`
	StartedAt         time.Time          `json:"started_at"`
	Duration          time.Duration      `json:"-"`
	DurationMS        int64              `json:"duration_ms"`
	SourcePath        string             `json:"source"`
	Table             string             `json:"table"`
	Destination       string             `json:"destination"`
	DryRun            bool               `json:"dry_run"`
	Stage             Stage              `json:"stage"`
	Extracted         int                `json:"extracted"`
	Transformed       int                `json:"transformed"`
	DuplicatesRemoved int                `json:"duplicates_removed"`
	Checks            []core.CheckResult `json:"checks"`
	Summary           core.Summary       `json:"summary"`
	Validated         bool               `json:"validated"`
	Loaded            bool               `json:"loaded"`
	LoadedRows        int64              `json:"loaded_rows"`
	Sample            *load.Sample       `json:"sample,omitempty"`
	Error             string             `json:"error,omitempty"`
	ErrorCode         string             `json:"error_code,omitempty"`
}

// Report returns the validation report of the run.
func (r *Result) Report() core.Report {
	return core.Report{Summary: r.Summary, Results: r.Checks}
}

// Succeeded reports whether the run finished without error.
func (r *Result) Succeeded() bool {
	return r.Stage == StageDone && r.Error == ""
}

// Pipeline runs the ETL sequence. It is safe for concurrent use; overlapping
// runs are refused by its RunGuard.
type Pipeline struct {
	opts     Options
	guard    *RunGuard
	loader   Loader
	observer core.Observer
	onReport func(context.Context, *Result)
	now      func() time.Time

	mu     sync.RWMutex
	latest *Result
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoader replaces the database loader.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithGuard shares a RunGuard between pipelines.
func WithGuard(g *RunGuard) Option {
	return func(p *Pipeline) { p.guard = g }
}

// WithObserver receives every transform and check event in addition to the log.
func WithObserver(obs core.Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithReportHook is called with the validated result before the verdict is
// applied, so the full report is always shown before anything is loaded.
func WithReportHook(fn func(context.Context, *Result)) Option {
	return func(p *Pipeline) { p.onReport = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline for opts.
func New(opts Options, options ...Option) *Pipeline {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	p := &Pipeline{
		opts:   opts,
		guard:  NewRunGuard(),
		loader: dbLoader{},
		now:    time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Options returns the pipeline's configuration.
func (p *Pipeline) Options() Options { return p.opts }

// Guard returns the pipeline's run guard.
func (p *Pipeline) Guard() *RunGuard { return p.guard }

// Latest returns the most recent finished run, or nil.
func (p *Pipeline) Latest() *Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Run executes the full pipeline. It returns ErrValidationFailed (wrapped)
// when any check failed; the result is non-nil whenever the run started.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.run(ctx, false)
}

// Validate runs extract, transform and validate without loading.
func (p *Pipeline) Validate(ctx context.Context) (*Result, error) {
	return p.run(ctx, true)
}

// Sample reads up to limit rows of table from the destination.
func (p *Pipeline) Sample(ctx context.Context, table string, limit int) (*load.Sample, error) {
	if table == "" {
		table = p.opts.Table
	}
	if limit <= 0 {
		limit = p.opts.SampleSize
	}
	return p.loader.Verify(ctx, p.opts.Destination, table, limit)
}

func (p *Pipeline) run(ctx context.Context, dryRun bool) (*Result, error) {
	if err := p.guard.TryAcquire(); err != nil {
		return nil, err
	}
	defer p.guard.Release()

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	res := &Result{
		RunID:       uuid.NewString(),
		StartedAt:   p.now(),
		SourcePath:  p.opts.SourcePath,
		Table:       p.opts.Table,
		Destination: p.opts.Destination.String(),
		DryRun:      dryRun,
	}
	ctx = logging.WithRunID(ctx, res.RunID)
	logger := logging.WithFields(ctx, "table", p.opts.Table)
	obs := core.MultiObserver(core.LogObserver(logger), p.observer)
	rules := p.opts.Rules

	// Extract
	res.Stage = StageExtract
	logger.Info("extracting", "source", p.opts.SourcePath)
	raw, err := extract.File(ctx, p.opts.SourcePath, extract.Options{Delimiter: p.opts.Delimiter})
	if err != nil {
		logger.Error("extraction failed, pipeline stopped", "error", err)
		return p.finish(res, fmt.Errorf("extract: %w", err))
	}
	res.Extracted = raw.Len()
	logger.Info("extracted", "rows", raw.Len(), "columns", raw.ColumnNames())

	// Transform
	res.Stage = StageTransform
	tr, err := core.NewTransformer(rules, core.WithTransformObserver(obs)).Transform(raw)
	if err != nil {
		logger.Error("transform failed, pipeline stopped", "error", err)
		return p.finish(res, err)
	}
	res.Transformed = tr.Dataset.Len()
	res.DuplicatesRemoved = tr.DuplicatesRemoved

	// Validate
	res.Stage = StageValidate
	v := core.NewValidator(
		core.WithObserver(obs),
		core.WithColumns(rules.Columns),
		core.WithClock(p.now),
	)
	RunChecks(v, rules, raw.Len(), tr)
	report := v.Report()
	res.Checks = report.Results
	res.Summary = report.Summary
	res.Validated = v.GenerateReport()

	if p.onReport != nil {
		p.onReport(ctx, res)
	}

	if !res.Validated {
		logger.Warn("validation failed, data will NOT be loaded",
			"failed", report.Summary.Failed,
			"total", report.Summary.Total,
		)
		return p.finish(res, fmt.Errorf("%w: %d of %d checks failed",
			ErrValidationFailed, report.Summary.Failed, report.Summary.Total))
	}
	if dryRun {
		logger.Info("all validations passed, dry run: load skipped")
		res.Stage = StageDone
		return p.finish(res, nil)
	}

	// Load
	res.Stage = StageLoad
	logger.Info("all validations passed, loading", "destination", res.Destination)
	n, err := p.loader.Load(ctx, p.opts.Destination, tr.Dataset, p.opts.Table)
	if err != nil {
		logger.Error("load failed", "error", err)
		return p.finish(res, fmt.Errorf("load: %w", err))
	}
	res.Loaded = true
	res.LoadedRows = n

	// Verify
	res.Stage = StageVerify
	sample, err := p.loader.Verify(ctx, p.opts.Destination, p.opts.Table, p.opts.SampleSize)
	if err != nil {
		logger.Error("verify failed", "error", err)
		return p.finish(res, fmt.Errorf("verify: %w", err))
	}
	res.Sample = sample

	res.Stage = StageDone
	logger.Info("pipeline completed successfully",
		"extracted", res.Extracted,
		"transformed", res.Transformed,
		"checks_passed", fmt.Sprintf("%d/%d", res.Summary.Passed, res.Summary.Total),
		"loaded_rows", res.LoadedRows,
		"destination", res.Destination,
	)
	return p.finish(res, nil)
}

// finish stamps the result, records it as the latest run and returns err.
func (p *Pipeline) finish(res *Result, err error) (*Result, error) {
	res.Duration = p.now().Sub(res.StartedAt)
	res.DurationMS = res.Duration.Milliseconds()
	if err != nil {
		res.Error = err.Error()
		res.ErrorCode = MapError(err).Code
	}

	p.mu.Lock()
	p.latest = res
	p.mu.Unlock()
	return res, err
}

// RunChecks runs the full check sequence for rules against a transform result.
// sourceRows is the extracted row count. Rows removed as duplicates are
// expected losses; the report shows both the raw count and the removals.
func RunChecks(v *core.Validator, rules core.Rules, sourceRows int, tr *core.TransformResult) bool {
	ds := tr.Dataset
	v.SchemaValidation(ds, rules.ExpectedColumns)
	v.DedupedRowCountCheck(sourceRows, tr.DuplicatesRemoved, ds.Len())
	v.NullCheck(ds, rules.RequiredColumns)
	v.DataTypeCheck(ds, rules.ExpectedTypes)
	v.DuplicateCheck(ds, rules.KeyColumn)
	for _, rr := range rules.Ranges {
		v.RangeCheck(ds, rr.Column, rr.Min, rr.Max)
	}
	v.TransformationAccuracyCheck(ds)
	return v.GenerateReport()
}
