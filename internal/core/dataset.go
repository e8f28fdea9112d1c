package core

// dataset.go defines the in-memory tabular model shared by every pipeline stage.
//
// A Dataset is an ordered list of rows over an ordered list of typed columns.
// Each cell is a Value; a Value with Valid=false is the null marker, the same
// convention pgtype uses for database NULLs. Stages never edit a Dataset they
// were handed: the Transformer works on a Clone and checks only read.

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindTime
)

// String returns the type name reported by the data type check.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	case KindTime:
		return "datetime"
	default:
		return "string"
	}
}

// Numeric reports whether values of this kind can be compared as numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a single nullable cell.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Text  string
	Time  time.Time
	Valid bool
}

// Null returns the null marker for a column of the given kind.
func Null(k Kind) Value { return Value{Kind: k} }

// IntValue returns a valid integer cell.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i, Valid: true} }

// FloatValue returns a valid float cell.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f, Valid: true} }

// TextValue returns a valid text cell.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s, Valid: true} }

// TimeValue returns a valid datetime cell.
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t, Valid: true} }

// IsNull reports whether the cell holds the null marker.
func (v Value) IsNull() bool { return !v.Valid }

// Number returns the cell as a float64. ok is false for nulls and non-numeric kinds.
func (v Value) Number() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// String renders the cell as text. Nulls render as the empty string.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindTime:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format(time.DateOnly)
		}
		return v.Time.Format(time.DateTime)
	default:
		return v.Text
	}
}

// Any returns the native Go value of the cell, or nil for nulls.
// Used when handing rows to database drivers and JSON encoders.
func (v Value) Any() any {
	if !v.Valid {
		return nil
	}
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindTime:
		return v.Time
	default:
		return v.Text
	}
}

// key identifies the cell for duplicate detection. All nulls share one key.
func (v Value) key() string {
	if !v.Valid {
		return "\x00null"
	}
	return v.String()
}

// Column describes one named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Dataset is an ordered sequence of rows with named, typed columns.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    [][]Value
}

// NewDataset creates an empty dataset with the given columns.
// Panics on duplicate column names.
func NewDataset(columns ...Column) *Dataset {
	d := &Dataset{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := d.index[c.Name]; dup {
			panic(fmt.Sprintf("duplicate column: %s", c.Name))
		}
		d.columns[i] = c
		d.index[c.Name] = i
	}
	return d
}

// AppendRow adds a row. Values are positional and must match the column count.
// A non-null value must have its column's kind; nulls are re-tagged to it.
func (d *Dataset) AppendRow(values ...Value) error {
	if len(values) != len(d.columns) {
		return fmt.Errorf("row has %d values, dataset has %d columns", len(values), len(d.columns))
	}
	row := make([]Value, len(values))
	for i, v := range values {
		col := d.columns[i]
		if !v.Valid {
			row[i] = Null(col.Kind)
			continue
		}
		if v.Kind != col.Kind {
			return fmt.Errorf("column %q: value of type %s in %s column", col.Name, v.Kind, col.Kind)
		}
		row[i] = v
	}
	d.rows = append(d.rows, row)
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column list in order.
func (d *Dataset) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// ColumnNames returns the column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Value returns the cell at row i in the named column.
func (d *Dataset) Value(i int, name string) (Value, bool) {
	pos, ok := d.index[name]
	if !ok || i < 0 || i >= len(d.rows) {
		return Value{}, false
	}
	return d.rows[i][pos], true
}

// RowValues returns a copy of row i in column order.
func (d *Dataset) RowValues(i int) []Value {
	out := make([]Value, len(d.columns))
	copy(out, d.rows[i])
	return out
}

// Values returns a copy of the named column's cells in row order.
func (d *Dataset) Values(name string) ([]Value, bool) {
	pos, ok := d.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(d.rows))
	for i, row := range d.rows {
		out[i] = row[pos]
	}
	return out, true
}

// Clone returns an independent deep copy.
func (d *Dataset) Clone() *Dataset {
	c := NewDataset(d.columns...)
	c.rows = make([][]Value, len(d.rows))
	for i, row := range d.rows {
		c.rows[i] = make([]Value, len(row))
		copy(c.rows[i], row)
	}
	return c
}

// setColumn replaces the named column, or appends it when absent.
// values must hold one cell per row.
func (d *Dataset) setColumn(name string, kind Kind, values []Value) {
	pos, ok := d.index[name]
	if !ok {
		pos = len(d.columns)
		d.columns = append(d.columns, Column{Name: name, Kind: kind})
		d.index[name] = pos
		for i := range d.rows {
			d.rows[i] = append(d.rows[i], Value{})
		}
	}
	d.columns[pos].Kind = kind
	for i := range d.rows {
		v := values[i]
		if !v.Valid {
			v = Null(kind)
		}
		d.rows[i][pos] = v
	}
}

// keepRows drops every row whose keep flag is false, preserving order.
func (d *Dataset) keepRows(keep []bool) {
	out := d.rows[:0]
	for i, row := range d.rows {
		if keep[i] {
			out = append(out, row)
		}
	}
	d.rows = out
}
