// Package report renders pipeline runs for terminals, API clients and browsers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JonMunkholm/salesetl/internal/core"
	"github.com/JonMunkholm/salesetl/internal/load"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
)

// Verdict lines printed after the check table.
const (
	VerdictPassed = "ALL VALIDATIONS PASSED"
	VerdictFailed = "VALIDATION(S) FAILED"
)

func symbol(s core.Status) string {
	if s == core.StatusPassed {
		return "✓"
	}
	return "✗"
}

// Checks writes the validation report: one row per check in run order,
// then the pass/fail counts and the verdict.
func Checks(w io.Writer, rep core.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("VALIDATION REPORT")
	t.AppendHeader(table.Row{"", "Check", "Status", "Message"})
	for _, r := range rep.Results {
		t.AppendRow(table.Row{symbol(r.Status), r.CheckName, string(r.Status), r.Message})
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "Total Checks: %d\nPassed: %d\nFailed: %d\n",
		rep.Summary.Total, rep.Summary.Passed, rep.Summary.Failed)
	if rep.OK() {
		_, _ = fmt.Fprintln(w, VerdictPassed)
	} else {
		_, _ = fmt.Fprintf(w, "%d %s\n", rep.Summary.Failed, VerdictFailed)
	}
}

// Sample writes rows read back from the destination table.
func Sample(w io.Writer, s *load.Sample) {
	if s == nil || len(s.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range s.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			if v == nil {
				v = "NULL"
			}
			r[i] = v
		}
		t.AppendRow(r)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(s.Rows))
}

// Summary writes the closing summary of a run.
func Summary(w io.Writer, res *pipeline.Result) {
	_, _ = fmt.Fprintf(w, "Run:          %s\n", res.RunID)
	_, _ = fmt.Fprintf(w, "Extracted:    %d rows\n", res.Extracted)
	_, _ = fmt.Fprintf(w, "Transformed:  %d rows (%d duplicates removed)\n", res.Transformed, res.DuplicatesRemoved)
	_, _ = fmt.Fprintf(w, "Validations:  %d/%d passed\n", res.Summary.Passed, res.Summary.Total)
	switch {
	case res.Loaded:
		_, _ = fmt.Fprintf(w, "Loaded:       %d rows into %s (%s)\n", res.LoadedRows, res.Table, res.Destination)
	case res.DryRun && res.Validated:
		_, _ = fmt.Fprintln(w, "Loaded:       no (dry run)")
	default:
		_, _ = fmt.Fprintln(w, "Loaded:       no, data will NOT be loaded")
	}
	_, _ = fmt.Fprintf(w, "Duration:     %s\n", res.Duration.Round(time.Millisecond))
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
