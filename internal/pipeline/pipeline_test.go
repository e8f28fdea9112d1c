package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/salesetl/internal/core"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/load"
)

const header = "order_id,customer_id,product_name,quantity,price,order_date,region\n"

const goodCSV = header +
	"1,C001,  wireless mouse ,2,25.50,2024-01-15,North\n" +
	"2,C002,usb cable,3,2.5,2024-01-16,South\n" +
	"3,C003,Laptop Stand,1,45.00,01/17/2024,East\n" +
	"3,C003,Laptop Stand,1,45.00,01/17/2024,East\n"

// fakeLoader records calls instead of touching a database.
type fakeLoader struct {
	mu      sync.Mutex
	events  *[]string
	loaded  *core.Dataset
	loadErr error
}

func (f *fakeLoader) Load(_ context.Context, _ load.Destination, ds *core.Dataset, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, "load:"+table)
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	f.loaded = ds
	return int64(ds.Len()), nil
}

func (f *fakeLoader) Verify(_ context.Context, _ load.Destination, table string, limit int) (*load.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.events = append(*f.events, "verify:"+table)
	return &load.Sample{Table: table, Columns: []string{"order_id"}, Rows: [][]any{{int64(1)}}}, nil
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestPipeline(t *testing.T, source string) (*Pipeline, *fakeLoader, *[]string) {
	t.Helper()
	events := &[]string{}
	fl := &fakeLoader{events: events}
	p := New(Options{
		SourcePath:  source,
		Table:       "sales",
		Destination: load.Destination{Driver: load.DriverSQLite, DSN: ":memory:"},
		Rules:       core.DefaultRules(),
	},
		WithLoader(fl),
		WithReportHook(func(_ context.Context, r *Result) {
			*events = append(*events, "report")
		}),
	)
	return p, fl, events
}

func TestRun_LoadsWhenAllChecksPass(t *testing.T) {
	p, fl, events := newTestPipeline(t, writeSource(t, goodCSV))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"report", "load:sales", "verify:sales"}, *events, "report must precede load")
	assert.Equal(t, StageDone, res.Stage)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 4, res.Extracted)
	assert.Equal(t, 3, res.Transformed)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, core.Summary{Total: 8, Passed: 8, Failed: 0}, res.Summary)
	assert.True(t, res.Loaded)
	assert.Equal(t, int64(3), res.LoadedRows)
	assert.NotNil(t, res.Sample)
	assert.NotEmpty(t, res.RunID)

	require.NotNil(t, fl.loaded)
	assert.Equal(t, []string{
		"order_id", "customer_id", "product_name", "quantity", "price", "order_date", "region", "total_amount",
	}, fl.loaded.ColumnNames(), "no transient columns may reach the loader")

	assert.Same(t, res, p.Latest())
}

func TestRun_AnyFailedCheckBlocksLoad(t *testing.T) {
	tests := []struct {
		name      string
		csv       string
		wantCheck string
	}{
		{
			name:      "non-numeric price",
			csv:       header + "1,C001,Mouse,2,abc,2024-01-15,North\n",
			wantCheck: core.CheckNulls,
		},
		{
			name:      "quantity out of range",
			csv:       header + "1,C001,Mouse,500,1.00,2024-01-15,North\n",
			wantCheck: "Range Check (quantity)",
		},
		{
			name:      "price out of range",
			csv:       header + "1,C001,Mouse,1,20000,2024-01-15,North\n",
			wantCheck: "Range Check (price)",
		},
		{
			name:      "missing customer",
			csv:       header + "1,,Mouse,1,1.00,2024-01-15,North\n",
			wantCheck: core.CheckNulls,
		},
		{
			name:      "unexpected column",
			csv:       "order_id,customer_id,product_name,quantity,price,order_date,region,notes\n1,C1,Mouse,1,1.00,2024-01-15,North,x\n",
			wantCheck: core.CheckSchema,
		},
		{
			name:      "text order ids",
			csv:       header + "A1,C001,Mouse,1,1.00,2024-01-15,North\n",
			wantCheck: core.CheckDataTypes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fl, events := newTestPipeline(t, writeSource(t, tt.csv))

			res, err := p.Run(context.Background())
			require.ErrorIs(t, err, ErrValidationFailed)
			require.NotNil(t, res)

			assert.Equal(t, []string{"report"}, *events, "loader must not be invoked")
			assert.Nil(t, fl.loaded)
			assert.False(t, res.Validated)
			assert.False(t, res.Loaded)
			assert.Equal(t, StageValidate, res.Stage)
			assert.Equal(t, 8, res.Summary.Total, "all checks run even after a failure")
			assert.Equal(t, "VAL001", res.ErrorCode)

			var failed []string
			for _, c := range res.Checks {
				if c.Status == core.StatusFailed {
					failed = append(failed, c.CheckName)
				}
			}
			assert.Contains(t, failed, tt.wantCheck)
		})
	}
}

func TestRun_StructuralFailuresStopBeforeValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  func(t *testing.T) string
		wantErr error
		stage   Stage
	}{
		{
			name:    "missing source",
			source:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.csv") },
			wantErr: extract.ErrSourceNotFound,
			stage:   StageExtract,
		},
		{
			name:    "unparsable source",
			source:  func(t *testing.T) string { return writeSource(t, "") },
			wantErr: extract.ErrSourceUnparsable,
			stage:   StageExtract,
		},
		{
			name: "unparsable date",
			source: func(t *testing.T) string {
				return writeSource(t, header+"1,C001,Mouse,1,1.00,someday,North\n")
			},
			wantErr: core.ErrUnparsableDate,
			stage:   StageTransform,
		},
		{
			name:    "missing transform column",
			source:  func(t *testing.T) string { return writeSource(t, "order_id,price\n1,2\n") },
			wantErr: core.ErrMissingColumn,
			stage:   StageTransform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, events := newTestPipeline(t, tt.source(t))

			res, err := p.Run(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, *events, "no report and no load after a structural failure")
			assert.Equal(t, tt.stage, res.Stage)
			assert.Empty(t, res.Checks)
		})
	}
}

func TestValidate_NeverLoads(t *testing.T) {
	p, fl, events := newTestPipeline(t, writeSource(t, goodCSV))

	res, err := p.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.True(t, res.Validated)
	assert.False(t, res.Loaded)
	assert.Equal(t, []string{"report"}, *events)
	assert.Nil(t, fl.loaded)
}

func TestRun_LoadErrorIsReported(t *testing.T) {
	p, fl, _ := newTestPipeline(t, writeSource(t, goodCSV))
	fl.loadErr = errors.New("dial tcp: connection refused")

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageLoad, res.Stage)
	assert.False(t, res.Loaded)
	assert.Equal(t, "DB001", res.ErrorCode)
}

func TestRun_RefusesOverlappingRuns(t *testing.T) {
	p, _, events := newTestPipeline(t, writeSource(t, goodCSV))

	require.NoError(t, p.Guard().TryAcquire())
	res, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, res)
	assert.Empty(t, *events)
	p.Guard().Release()

	_, err = p.Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_VerdictIsIdempotent(t *testing.T) {
	source := writeSource(t, header+"1,C001,Mouse,2,abc,2024-01-15,North\n2,C002,Cable,1,1.0,2024-01-16,South\n")
	p, _, _ := newTestPipeline(t, source)

	first, err1 := p.Validate(context.Background())
	second, err2 := p.Validate(context.Background())

	assert.Equal(t, errors.Is(err1, ErrValidationFailed), errors.Is(err2, ErrValidationFailed))
	require.Len(t, second.Checks, len(first.Checks))
	for i := range first.Checks {
		assert.Equal(t, first.Checks[i].Status, second.Checks[i].Status)
		assert.Equal(t, first.Checks[i].Message, second.Checks[i].Message)
	}
}

func TestRun_EndToEndSQLite(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{
		SourcePath:  writeSource(t, goodCSV),
		Table:       "sales",
		Destination: load.Destination{Driver: load.DriverSQLite, DSN: filepath.Join(dir, "warehouse", "sales.db")},
		Rules:       core.DefaultRules(),
		SampleSize:  2,
	})

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.LoadedRows)
	require.NotNil(t, res.Sample)
	assert.Len(t, res.Sample.Rows, 2)
	assert.Equal(t, "Wireless Mouse", res.Sample.Rows[0][2])

	sample, err := p.Sample(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, sample.Rows, 3)
}

func TestRunChecks_RowCountAccountsForDuplicates(t *testing.T) {
	ds, err := extract.Read(context.Background(), strings.NewReader(goodCSV), extract.Options{})
	require.NoError(t, err)
	tr, err := core.NewTransformer(core.DefaultRules()).Transform(ds)
	require.NoError(t, err)

	v := core.NewValidator()
	assert.True(t, RunChecks(v, core.DefaultRules(), ds.Len(), tr))
	assert.Equal(t, "Source: 4 (1 duplicate removed), Target: 3", v.Results()[1].Message)
}

func TestRunChecks_RowCountFailsOnUnexplainedLoss(t *testing.T) {
	ds, err := extract.Read(context.Background(), strings.NewReader(goodCSV), extract.Options{})
	require.NoError(t, err)
	tr, err := core.NewTransformer(core.DefaultRules()).Transform(ds)
	require.NoError(t, err)

	v := core.NewValidator()
	assert.False(t, RunChecks(v, core.DefaultRules(), ds.Len()+1, tr))
	assert.Equal(t, core.StatusFailed, v.Results()[1].Status)
	assert.Equal(t, "Mismatch! Source: 5 (1 duplicate removed), Target: 3", v.Results()[1].Message)
}
