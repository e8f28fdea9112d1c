package core

// validate.go implements the data-quality gate run against a transformed dataset.
//
// A Validator is constructed once per pipeline run. Each check method appends
// exactly one CheckResult, passed or failed, and returns whether it passed.
// Checks only read the dataset. Data-quality defects never surface as Go
// errors; they are FAILED results, and GenerateReport is the single verdict
// the orchestrator consults before loading anything.

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// Check names as they appear in reports.
const (
	CheckSchema    = "Schema Validation"
	CheckRowCount  = "Row Count Check"
	CheckNulls     = "Null Check"
	CheckDataTypes = "Data Type Check"
	CheckDuplicate = "Duplicate Check"
	CheckAccuracy  = "Transformation Accuracy"
)

// RangeCheckName returns the report name of the range check on column.
func RangeCheckName(column string) string {
	return fmt.Sprintf("Range Check (%s)", column)
}

// CheckResult records one check outcome. It is never modified after creation.
type CheckResult struct {
	CheckName string    `json:"check"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Passed reports whether the check passed.
func (r CheckResult) Passed() bool { return r.Status == StatusPassed }

// Summary counts check outcomes.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Report is the derived view of a validation run.
type Report struct {
	Summary Summary       `json:"summary"`
	Results []CheckResult `json:"results"`
}

// OK reports whether every check passed.
func (r Report) OK() bool { return r.Summary.Failed == 0 }

// Validator accumulates check results for one pipeline run.
type Validator struct {
	columns TransformColumns
	obs     Observer
	now     func() time.Time
	results []CheckResult
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithObserver sends one event per check to obs.
func WithObserver(obs Observer) ValidatorOption {
	return func(v *Validator) {
		if obs != nil {
			v.obs = obs
		}
	}
}

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithColumns sets the columns read by the transformation accuracy check.
func WithColumns(cols TransformColumns) ValidatorOption {
	return func(v *Validator) { v.columns = cols }
}

// NewValidator returns a Validator with an empty result list.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		columns: DefaultRules().Columns,
		obs:     discard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// record appends a result and notifies the observer.
func (v *Validator) record(name string, passed bool, msg string, attrs ...any) bool {
	status := StatusFailed
	if passed {
		status = StatusPassed
	}
	ts := v.now()
	v.results = append(v.results, CheckResult{
		CheckName: name,
		Status:    status,
		Message:   msg,
		Timestamp: ts,
	})
	v.obs.Observe(Event{
		Stage:   StageValidate,
		Step:    name,
		Status:  status,
		Message: msg,
		Attrs:   attrs,
		Time:    ts,
	})
	return passed
}

// SchemaValidation passes when the dataset's column set equals expected.
// Missing and extra columns are reported together in one result.
func (v *Validator) SchemaValidation(ds *Dataset, expected []string) bool {
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
	}
	have := make(map[string]bool, len(ds.columns))
	for _, c := range ds.columns {
		have[c.Name] = true
	}

	missing := []string{}
	for c := range want {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	extra := []string{}
	for c := range have {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) == 0 && len(extra) == 0 {
		return v.record(CheckSchema, true, fmt.Sprintf("All %d columns present", len(want)))
	}
	msg := fmt.Sprintf("Missing: [%s], Extra: [%s]", strings.Join(missing, ", "), strings.Join(extra, ", "))
	return v.record(CheckSchema, false, msg, "missing", missing, "extra", extra)
}

// RowCountCheck passes when source and target counts are equal.
func (v *Validator) RowCountCheck(source, target int) bool {
	return v.DedupedRowCountCheck(source, 0, target)
}

// DedupedRowCountCheck passes when extracted rows less the removed duplicates
// equal target. The message reports the raw extracted count.
func (v *Validator) DedupedRowCountCheck(extracted, removed, target int) bool {
	source := fmt.Sprintf("%d", extracted)
	switch {
	case removed == 1:
		source += " (1 duplicate removed)"
	case removed > 1:
		source += fmt.Sprintf(" (%d duplicates removed)", removed)
	}
	if extracted-removed == target {
		return v.record(CheckRowCount, true, fmt.Sprintf("Source: %s, Target: %d", source, target))
	}
	return v.record(CheckRowCount, false,
		fmt.Sprintf("Mismatch! Source: %s, Target: %d", source, target),
		"source", extracted, "duplicates_removed", removed, "target", target)
}

// NullCheck passes when none of columns hold a null.
func (v *Validator) NullCheck(ds *Dataset, columns []string) bool {
	var found []string
	for _, col := range columns {
		vals, ok := ds.Values(col)
		if !ok {
			return v.record(CheckNulls, false, "column not found: "+col)
		}
		n := 0
		for _, val := range vals {
			if val.IsNull() {
				n++
			}
		}
		if n > 0 {
			found = append(found, fmt.Sprintf("%s=%d", col, n))
		}
	}
	if len(found) == 0 {
		return v.record(CheckNulls, true, fmt.Sprintf("No nulls in %d columns", len(columns)))
	}
	return v.record(CheckNulls, false, "Found nulls: "+strings.Join(found, ", "))
}

// DataTypeCheck passes when, for every column, the expected keyword is a
// case-insensitive substring of the column's type name ("int" matches "int64").
func (v *Validator) DataTypeCheck(ds *Dataset, expected map[string]string) bool {
	var failures []string
	for _, col := range sortedKeys(expected) {
		want := expected[col]
		c, ok := ds.Column(col)
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: expected %s, column not found", col, want))
			continue
		}
		if !strings.Contains(strings.ToLower(c.Kind.String()), strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("%s: expected %s, got %s", col, want, c.Kind))
		}
	}
	if len(failures) == 0 {
		return v.record(CheckDataTypes, true, fmt.Sprintf("All %d columns have correct types", len(expected)))
	}
	return v.record(CheckDataTypes, false, strings.Join(failures, "; "))
}

// DuplicateCheck passes when no value of key repeats. Each repeat after the
// first occurrence counts once; nulls are equal to each other.
func (v *Validator) DuplicateCheck(ds *Dataset, key string) bool {
	vals, ok := ds.Values(key)
	if !ok {
		return v.record(CheckDuplicate, false, "column not found: "+key)
	}
	seen := make(map[string]struct{}, len(vals))
	dups := 0
	for _, val := range vals {
		k := val.key()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	if dups == 0 {
		return v.record(CheckDuplicate, true, "No duplicates in "+key)
	}
	return v.record(CheckDuplicate, false, fmt.Sprintf("Found %d duplicates in %s", dups, key), "duplicates", dups)
}

// RangeCheck passes when every non-null value in column lies in [min, max].
// Nulls are left to the null check.
func (v *Validator) RangeCheck(ds *Dataset, column string, min, max float64) bool {
	name := RangeCheckName(column)
	c, ok := ds.Column(column)
	if !ok {
		return v.record(name, false, "column not found: "+column)
	}
	if !c.Kind.Numeric() {
		return v.record(name, false, fmt.Sprintf("column %s is not numeric (%s)", column, c.Kind))
	}
	vals, _ := ds.Values(column)
	out := 0
	for _, val := range vals {
		f, ok := val.Number()
		if !ok {
			continue
		}
		if f < min || f > max {
			out++
		}
	}
	if out == 0 {
		return v.record(name, true, fmt.Sprintf("All values between %s and %s", formatBound(min), formatBound(max)))
	}
	return v.record(name, false, fmt.Sprintf("Found %d values out of range", out), "out_of_range", out)
}

// TransformationAccuracyCheck passes when every stored total equals
// quantity * price exactly. A null total matches only a null product.
func (v *Validator) TransformationAccuracyCheck(ds *Dataset) bool {
	cols := v.columns
	for _, col := range []string{cols.Quantity, cols.Price, cols.TotalAmount} {
		if _, ok := ds.Column(col); !ok {
			return v.record(CheckAccuracy, false, "column not found: "+col)
		}
	}

	mismatched := 0
	for i := 0; i < ds.Len(); i++ {
		q, _ := ds.Value(i, cols.Quantity)
		p, _ := ds.Value(i, cols.Price)
		total, _ := ds.Value(i, cols.TotalAmount)

		want, wantOK := product(q, p)
		got, gotOK := total.Number()
		switch {
		case !wantOK && !gotOK && total.IsNull():
		case wantOK && gotOK && want == got:
		default:
			mismatched++
		}
	}
	if mismatched == 0 {
		return v.record(CheckAccuracy, true, fmt.Sprintf("All %s = %s × %s", cols.TotalAmount, cols.Quantity, cols.Price))
	}
	return v.record(CheckAccuracy, false, fmt.Sprintf("Found %d rows with incorrect calculations", mismatched), "mismatched", mismatched)
}

// Results returns a copy of the recorded results in order.
func (v *Validator) Results() []CheckResult {
	out := make([]CheckResult, len(v.results))
	copy(out, v.results)
	return out
}

// Report summarizes the recorded results.
func (v *Validator) Report() Report {
	r := Report{Results: v.Results()}
	for _, res := range r.Results {
		if res.Passed() {
			r.Summary.Passed++
		} else {
			r.Summary.Failed++
		}
	}
	r.Summary.Total = len(r.Results)
	return r
}

// GenerateReport returns true iff no recorded check failed.
// It is the only gate that decides whether the dataset may be loaded.
func (v *Validator) GenerateReport() bool {
	return v.Report().OK()
}

// product multiplies two numeric cells. ok is false when either is null.
func product(a, b Value) (float64, bool) {
	x, ok := a.Number()
	if !ok {
		return 0, false
	}
	y, ok := b.Number()
	if !ok {
		return 0, false
	}
	return x * y, true
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
