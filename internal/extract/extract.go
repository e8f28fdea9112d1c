// Package extract reads a delimited flat file into a core.Dataset.
//
// The first non-empty record is the header. Column kinds are inferred from the
// data: a column is int when every non-empty cell parses as an integer, float
// when every non-empty cell parses as a number, and text otherwise. Empty
// cells are nulls. Text cells are kept exactly as read; trimming and casing
// belong to the transform rules.
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/salesetl/internal/core"
)

var (
	// ErrSourceNotFound is returned when the source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrSourceUnparsable is returned when the source cannot be read as a delimited table.
	ErrSourceUnparsable = errors.New("source file unparsable")
)

// Options configures extraction.
type Options struct {
	// Delimiter separates fields. Zero means comma.
	Delimiter rune
}

// File reads the delimited file at path.
func File(ctx context.Context, path string, opts Options) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnparsable, path, err)
	}
	defer f.Close()

	ds, err := Read(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read parses delimited data from r. A leading UTF-8 byte order mark is
// dropped and invalid UTF-8 is replaced with U+FFFD.
func Read(ctx context.Context, r io.Reader, opts Options) (*core.Dataset, error) {
	decoded := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	var header []string
	var records [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnparsable, err)
		}
		if isEmptyRow(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrSourceUnparsable, line, len(rec), len(header))
		}
		records = append(records, rec)
	}
	if header == nil {
		return nil, fmt.Errorf("%w: no header row", ErrSourceUnparsable)
	}

	cols, err := columns(header, records)
	if err != nil {
		return nil, err
	}
	ds := core.NewDataset(cols...)
	for _, rec := range records {
		row := make([]core.Value, len(cols))
		for i, c := range cols {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			row[i] = cellValue(cell, c.Kind)
		}
		if err := ds.AppendRow(row...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnparsable, err)
		}
	}
	return ds, nil
}

// columns names and types the columns.
func columns(header []string, records [][]string) ([]core.Column, error) {
	seen := make(map[string]bool, len(header))
	cols := make([]core.Column, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("%w: header column %d is blank", ErrSourceUnparsable, i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrSourceUnparsable, name)
		}
		seen[name] = true
		cols[i] = core.Column{Name: name, Kind: inferKind(i, records)}
	}
	return cols, nil
}

// inferKind picks the narrowest kind that every non-empty cell in column i fits.
// A column with no values at all is text.
func inferKind(i int, records [][]string) core.Kind {
	isInt, isFloat, hasValue := true, true, false
	for _, rec := range records {
		if i >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[i])
		if cell == "" {
			continue
		}
		hasValue = true
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt {
			if _, ok := core.ParseNumber(cell); !ok {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !hasValue:
		return core.KindText
	case isInt:
		return core.KindInt
	case isFloat:
		return core.KindFloat
	default:
		return core.KindText
	}
}

func cellValue(cell string, kind core.Kind) core.Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return core.Null(kind)
	}
	switch kind {
	case core.KindInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return core.IntValue(n)
	case core.KindFloat:
		f, _ := core.ParseNumber(trimmed)
		return core.FloatValue(f)
	default:
		return core.TextValue(cell)
	}
}

func isEmptyRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
