package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
)

const header = "order_id,customer_id,product_name,quantity,price,order_date,region\n"

const goodCSV = header +
	"1,C001,wireless mouse,2,25.50,2024-01-15,North\n" +
	"2,C002,usb cable,3,2.5,2024-01-16,South\n" +
	"2,C002,usb cable,3,2.5,2024-01-16,South\n" +
	"3,C003,laptop stand,1,45.00,2024-01-17,East\n"

const missingPriceCSV = header +
	"1,C001,wireless mouse,2,,2024-01-15,North\n"

func testConfig(t *testing.T, csv string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(source, []byte(csv), 0o644))

	return &config.Config{
		Pipeline: config.PipelineConfig{SourcePath: source, Delimiter: ",", Table: "sales", SampleSize: 5, Timeout: time.Minute},
		Database: config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(dir, "warehouse", "sales.db"), MaxConns: 1},
		Server:   config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func execCmd(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(cfg)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRun_PrintsReportThenLoads(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	out, _, err := execCmd(t, cfg, "run")
	require.NoError(t, err)

	report := strings.Index(out, "VALIDATION REPORT")
	verdict := strings.Index(out, "ALL VALIDATIONS PASSED")
	loaded := strings.Index(out, "Loaded:       3 rows into sales")
	require.True(t, report >= 0 && verdict >= 0 && loaded >= 0, out)
	assert.Less(t, report, verdict)
	assert.Less(t, verdict, loaded)
	assert.Contains(t, out, "1 duplicates removed")
	assert.Contains(t, out, "(3 rows)")
	assert.FileExists(t, cfg.Database.URL)
}

func TestRun_BlockedByValidation(t *testing.T) {
	cfg := testConfig(t, missingPriceCSV)

	out, errOut, err := execCmd(t, cfg, "run")
	require.ErrorIs(t, err, pipeline.ErrValidationFailed)
	assert.Equal(t, ExitBlocked, ExitCode(err))

	assert.Contains(t, out, "Null Check")
	assert.Contains(t, out, "VALIDATION(S) FAILED")
	assert.Contains(t, errOut, "Data will NOT be loaded")
	assert.Contains(t, errOut, "VAL001")
	assert.NoFileExists(t, cfg.Database.URL)
}

func TestRun_ExtractionFailure(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	_, errOut, err := execCmd(t, cfg, "run", "--source", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))
	assert.Contains(t, errOut, "Extraction failed. Pipeline stopped.")
	assert.Contains(t, errOut, "SRC001")
}

func TestRun_JSON(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	out, _, err := execCmd(t, cfg, "run", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "VALIDATION REPORT")

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Loaded)
	assert.Equal(t, int64(3), res.LoadedRows)
	assert.Len(t, res.Checks, 8)
}

func TestValidate_NeverLoads(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	out, _, err := execCmd(t, cfg, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ALL VALIDATIONS PASSED")
	assert.Contains(t, out, "no (dry run)")
	assert.NoFileExists(t, cfg.Database.URL)
}

func TestVerify_AfterRun(t *testing.T) {
	cfg := testConfig(t, goodCSV)
	_, _, err := execCmd(t, cfg, "run")
	require.NoError(t, err)

	out, _, err := execCmd(t, cfg, "verify", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "total_amount")
	assert.Contains(t, out, "(2 rows)")
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	_, _, err := execCmd(t, cfg, "validate", "--table", "sales_march", "--sample-size", "3", "--timeout", "2m", "--delimiter", ";")
	// The file is comma separated, so the semicolon delimiter breaks the schema.
	require.Error(t, err)

	assert.Equal(t, "sales_march", cfg.Pipeline.Table)
	assert.Equal(t, 3, cfg.Pipeline.SampleSize)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, ';', cfg.Pipeline.DelimiterRune())
}

func TestFlagsAreValidated(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	_, _, err := execCmd(t, cfg, "validate", "--driver", "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestFlagsFixInvalidEnvironment(t *testing.T) {
	cfg := testConfig(t, goodCSV)
	cfg.Database.Driver = "oracle"

	out, _, err := execCmd(t, cfg, "validate", "--driver", "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Contains(t, out, "ALL VALIDATIONS PASSED")
}

func TestRulesFileApplied(t *testing.T) {
	cfg := testConfig(t, goodCSV)
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("ranges:\n  - column: price\n    min: 0\n    max: 10\n"), 0o644))

	out, _, err := execCmd(t, cfg, "validate", "--rules", rulesPath)
	require.ErrorIs(t, err, pipeline.ErrValidationFailed)
	assert.Contains(t, out, "Range Check (price)")
	assert.NotContains(t, out, "Range Check (quantity)")
}

func TestServe_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t, goodCSV)

	_, _, err := execCmd(t, cfg, "serve", "--schedule", "whenever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(pipeline.ErrRunInProgress))
	assert.Equal(t, ExitBlocked, ExitCode(pipeline.ErrValidationFailed))
}
