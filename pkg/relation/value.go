package relation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts used when a driver hands back time.Time values. Fractional seconds
// are kept without trailing zeros, matching the text pandas writes for
// datetime columns; the offset is appended only when it is not UTC.
const (
	TimestampLayout       = "2006-01-02 15:04:05.999999999"
	TimestampOffsetLayout = "2006-01-02 15:04:05.999999999-07:00"
)

// Kind classifies the values held by a column.
type Kind int

const (
	// KindNull means every value in the column is NULL.
	KindNull Kind = iota
	// KindInteger means every non-NULL value is an int64.
	KindInteger
	// KindReal means every non-NULL value is numeric and at least one is a float64.
	KindReal
	// KindText means at least one non-NULL value is a string.
	KindText
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Normalize converts a value scanned from a database driver into one of the
// relation cell types: nil, int64, float64 or string.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, float64, string:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
		return int64(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return FormatTime(x)
	case interface{ Float64() float64 }:
		// Driver decimal types (e.g. DuckDB DECIMAL).
		return x.Float64()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FormatTime renders t in its own location.
func FormatTime(t time.Time) string {
	if _, offset := t.Zone(); offset != 0 {
		return t.Format(TimestampOffsetLayout)
	}
	return t.Format(TimestampLayout)
}

// IsNull reports whether v represents SQL NULL.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// AsFloat converts a numeric cell to float64.
// Numeric text is parsed; NULL and non-numeric values report false.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString renders a non-NULL cell as text.
func AsString(v any) (string, bool) {
	if IsNull(v) {
		return "", false
	}
	return Format(v), true
}

// Format renders a cell for delimited output. NULL becomes the empty string.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// KindOf infers the kind of the named column from its values.
func (r *Relation) KindOf(column string) Kind {
	idx := r.ColumnIndex(column)
	if idx < 0 {
		return KindNull
	}

	kind := KindNull
	for _, row := range r.Rows {
		switch row[idx].(type) {
		case nil:
		case int64:
			if kind == KindNull {
				kind = KindInteger
			}
		case float64:
			if IsNull(row[idx]) {
				continue
			}
			if kind != KindText {
				kind = KindReal
			}
		default:
			return KindText
		}
	}
	return kind
}
