package core

// convert.go provides the value coercions used by the cleaning rules.
//
// Numeric coercions never fail: a cell that cannot be read as a number comes
// back as the null marker, and the null check reports it later. Date parsing
// is the exception and returns an error, which aborts the transform.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// numericRegex validates that a string is a plain decimal or scientific number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses s as a float. Surrounding whitespace is ignored;
// anything else that is not a plain number, including NaN and Inf, is rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ToFloat coerces a cell to a float cell. Unparsable input becomes null.
func ToFloat(v Value) Value {
	if !v.Valid {
		return Null(KindFloat)
	}
	switch v.Kind {
	case KindFloat:
		return v
	case KindInt:
		return FloatValue(float64(v.Int))
	case KindText:
		if f, ok := ParseNumber(v.Text); ok {
			return FloatValue(f)
		}
	}
	return Null(KindFloat)
}

// ToInt coerces a cell to a nullable integer cell. Unparsable input becomes null,
// as do integral values outside the int64 range.
// lossy is true only when the input was a number with a fractional part; such
// values are nulled rather than truncated.
func ToInt(v Value) (out Value, lossy bool) {
	if !v.Valid {
		return Null(KindInt), false
	}
	var f float64
	switch v.Kind {
	case KindInt:
		return v, false
	case KindFloat:
		f = v.Float
	case KindText:
		s := strings.TrimSpace(v.Text)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), false
		}
		var ok bool
		if f, ok = ParseNumber(s); !ok {
			return Null(KindInt), false
		}
	default:
		return Null(KindInt), false
	}
	if math.Trunc(f) != f {
		return Null(KindInt), true
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return Null(KindInt), false
	}
	return IntValue(int64(f)), false
}

// ParseDate parses s with a best-effort generic date parser.
// Ambiguous numeric dates are read month first; a date that only makes sense
// day first, such as 15/01/2024, is read day first.
func ParseDate(s string) (time.Time, error) {
	return dateparse.ParseIn(strings.TrimSpace(s), time.UTC, dateparse.RetryAmbiguousDateWithSwap(true))
}

// ToText renders any cell as a text cell. Nulls stay null.
func ToText(v Value) Value {
	if !v.Valid {
		return Null(KindText)
	}
	if v.Kind == KindText {
		return v
	}
	return TextValue(v.String())
}
