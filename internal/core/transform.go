package core

// transform.go applies the fixed cleaning rules to an extracted dataset.
//
// The rules run in a fixed order on a private copy of the input:
//  1. product_name: trim and title-case
//  2. price: coerce to float, unparsable becomes null
//  3. quantity: coerce to nullable int, unparsable or fractional becomes null
//  4. total_amount: quantity * price, null if either side is null
//  5. order_date: best-effort date parse, unparsable aborts the transform
//  6. drop rows repeating an earlier order_id
//
// Numeric coercion is silent on purpose: bad numbers surface later as FAILED
// null checks. A bad date is a structural failure and stops the run.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrMissingColumn is returned when a column the rules rewrite is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrUnparsableDate is returned when an order date cannot be parsed.
	ErrUnparsableDate = errors.New("unparsable date")
)

// TransformResult is the cleaned dataset plus transform metadata.
type TransformResult struct {
	Dataset           *Dataset
	DuplicatesRemoved int
}

// Transformer applies the cleaning rules.
type Transformer struct {
	cols  TransformColumns
	obs   Observer
	title cases.Caser
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithTransformObserver sends one event per transform step to obs.
func WithTransformObserver(obs Observer) TransformerOption {
	return func(t *Transformer) {
		if obs != nil {
			t.obs = obs
		}
	}
}

// NewTransformer returns a Transformer reading the columns named in rules.
func NewTransformer(rules Rules, opts ...TransformerOption) *Transformer {
	t := &Transformer{
		cols:  rules.Columns,
		obs:   discard,
		title: cases.Title(language.Und),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transformer) emit(step, msg string, attrs ...any) {
	t.obs.Observe(Event{
		Stage:   StageTransform,
		Step:    step,
		Message: msg,
		Attrs:   attrs,
		Time:    time.Now(),
	})
}

// Transform returns a cleaned copy of input. input is never modified.
func (t *Transformer) Transform(input *Dataset) (*TransformResult, error) {
	c := t.cols
	for _, name := range []string{c.OrderID, c.ProductName, c.Quantity, c.Price, c.OrderDate} {
		if _, ok := input.Column(name); !ok {
			return nil, fmt.Errorf("transform: %w: %s", ErrMissingColumn, name)
		}
	}

	ds := input.Clone()
	t.emit("start", "Starting data transformation", "rows", ds.Len())

	t.normalizeText(ds)
	t.coercePrice(ds)
	t.coerceQuantity(ds)
	t.deriveTotal(ds)
	if err := t.parseDates(ds); err != nil {
		return nil, err
	}
	removed := t.dropDuplicates(ds)

	t.emit("done", "Transformation complete", "rows", ds.Len(), "duplicates_removed", removed)
	return &TransformResult{Dataset: ds, DuplicatesRemoved: removed}, nil
}

func (t *Transformer) normalizeText(ds *Dataset) {
	col := t.cols.ProductName
	vals, _ := ds.Values(col)
	for i, v := range vals {
		v = ToText(v)
		if v.Valid {
			v = TextValue(t.title.String(strings.TrimSpace(v.Text)))
		}
		vals[i] = v
	}
	ds.setColumn(col, KindText, vals)
	t.emit("clean_text", "Cleaned product names", "column", col)
}

func (t *Transformer) coercePrice(ds *Dataset) {
	col := t.cols.Price
	vals, _ := ds.Values(col)
	nulls := 0
	for i, v := range vals {
		vals[i] = ToFloat(v)
		if v.Valid && !vals[i].Valid {
			nulls++
		}
	}
	ds.setColumn(col, KindFloat, vals)
	t.emit("coerce", "Converted price to numeric", "column", col, "coerced_to_null", nulls)
}

func (t *Transformer) coerceQuantity(ds *Dataset) {
	col := t.cols.Quantity
	vals, _ := ds.Values(col)
	nulls, lossy := 0, 0
	for i, v := range vals {
		out, frac := ToInt(v)
		if frac {
			lossy++
		}
		if v.Valid && !out.Valid {
			nulls++
		}
		vals[i] = out
	}
	ds.setColumn(col, KindInt, vals)
	t.emit("coerce", "Converted quantity to integer", "column", col, "coerced_to_null", nulls, "fractional", lossy)
}

func (t *Transformer) deriveTotal(ds *Dataset) {
	c := t.cols
	qty, _ := ds.Values(c.Quantity)
	price, _ := ds.Values(c.Price)
	totals := make([]Value, ds.Len())
	for i := range totals {
		if p, ok := product(qty[i], price[i]); ok {
			totals[i] = FloatValue(p)
		} else {
			totals[i] = Null(KindFloat)
		}
	}
	ds.setColumn(c.TotalAmount, KindFloat, totals)
	t.emit("derive", "Calculated total amount", "column", c.TotalAmount)
}

func (t *Transformer) parseDates(ds *Dataset) error {
	col := t.cols.OrderDate
	vals, _ := ds.Values(col)
	for i, v := range vals {
		if !v.Valid || v.Kind == KindTime {
			continue
		}
		s := strings.TrimSpace(v.String())
		if s == "" {
			vals[i] = Null(KindTime)
			continue
		}
		ts, err := ParseDate(s)
		if err != nil {
			return fmt.Errorf("transform: row %d: %w %q: %v", i+1, ErrUnparsableDate, s, err)
		}
		vals[i] = TimeValue(ts)
	}
	ds.setColumn(col, KindTime, vals)
	t.emit("parse_dates", "Converted order_date to datetime", "column", col)
	return nil
}

func (t *Transformer) dropDuplicates(ds *Dataset) int {
	col := t.cols.OrderID
	vals, _ := ds.Values(col)
	keep := make([]bool, len(vals))
	seen := make(map[string]struct{}, len(vals))
	removed := 0
	for i, v := range vals {
		k := v.key()
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		keep[i] = true
	}
	ds.keepRows(keep)
	t.emit("dedupe", fmt.Sprintf("Removed %d duplicate rows", removed), "column", col, "removed", removed)
	return removed
}
