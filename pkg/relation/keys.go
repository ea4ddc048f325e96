package relation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// KeyFunc maps a join-key cell to its comparison key.
// The boolean is false for NULL cells, which never match anything.
type KeyFunc func(v any) (string, bool)

// keyTypeSep separates the text of a non-string key from its type tag.
const keyTypeSep = "\x1f"

// ExactKey compares text keys literally. Provider names that differ only in
// case or surrounding whitespace do not match. Non-text keys carry their type,
// so int64(7) matches float64(7) but never "7".
func ExactKey(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	return typedKey(v)
}

// FoldKey compares text keys after trimming surrounding whitespace and applying
// Unicode case folding, so "Aetna " and "AETNA" match. Non-text keys compare
// as in ExactKey.
func FoldKey(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return cases.Fold().String(strings.TrimSpace(s)), true
	}
	return typedKey(v)
}

func typedKey(v any) (string, bool) {
	if IsNull(v) {
		return "", false
	}
	switch v.(type) {
	case int64, float64:
		return Format(v) + keyTypeSep + "number", true
	default:
		return Format(v) + keyTypeSep + fmt.Sprintf("%T", v), true
	}
}

// DisplayKey returns the printable part of a comparison key.
func DisplayKey(key string) string {
	text, _, _ := strings.Cut(key, keyTypeSep)
	return text
}

// KeyFuncFor returns FoldKey when normalize is set and ExactKey otherwise.
func KeyFuncFor(normalize bool) KeyFunc {
	if normalize {
		return FoldKey
	}
	return ExactKey
}

// KeyCount is a distinct key with the number of rows carrying it.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DistinctKeys returns the distinct non-NULL keys of a column in order of first
// appearance, with the number of rows per key, plus the number of NULL keys.
func DistinctKeys(r *Relation, column string, keyFn KeyFunc) ([]KeyCount, int, error) {
	idx := r.ColumnIndex(column)
	if idx < 0 {
		return nil, 0, &MissingColumnError{Relation: r.Name, Column: column}
	}
	if keyFn == nil {
		keyFn = ExactKey
	}

	var (
		keys  []KeyCount
		pos   = make(map[string]int)
		nulls int
	)
	for _, row := range r.Rows {
		k, ok := keyFn(row[idx])
		if !ok {
			nulls++
			continue
		}
		if i, seen := pos[k]; seen {
			keys[i].Count++
			continue
		}
		pos[k] = len(keys)
		keys = append(keys, KeyCount{Key: k, Count: 1})
	}
	return keys, nulls, nil
}
