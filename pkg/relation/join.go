package relation

import (
	"fmt"
)

// DefaultSuffix is appended to right-hand columns whose names collide with a
// left-hand column.
const DefaultSuffix = "_policy"

// JoinSpec configures a left outer equality join.
type JoinSpec struct {
	// LeftKey is the key column of the left relation.
	LeftKey string

	// RightKey is the key column of the right relation.
	RightKey string

	// Suffix renames colliding right-hand columns. Empty means DefaultSuffix.
	Suffix string

	// Key maps key cells to comparison keys. Nil means ExactKey.
	Key KeyFunc
}

func (s JoinSpec) keyFunc() KeyFunc {
	if s.Key == nil {
		return ExactKey
	}
	return s.Key
}

func (s JoinSpec) suffix() string {
	if s.Suffix == "" {
		return DefaultSuffix
	}
	return s.Suffix
}

// LeftJoin performs a left outer hash join of left and right.
//
// Every left row appears in the output. A left row whose key matches k right
// rows produces k output rows (fan-out), in right-table order; a row with no
// match, or a NULL key, produces one row with NULL in every right-hand column.
// The output holds all left columns followed by all right columns; right
// columns whose names collide are renamed with the spec's suffix.
func LeftJoin(left, right *Relation, spec JoinSpec) (*Relation, error) {
	li := left.ColumnIndex(spec.LeftKey)
	if li < 0 {
		return nil, &MissingColumnError{Relation: left.Name, Column: spec.LeftKey}
	}
	ri := right.ColumnIndex(spec.RightKey)
	if ri < 0 {
		return nil, &MissingColumnError{Relation: right.Name, Column: spec.RightKey}
	}
	keyFn := spec.keyFunc()

	// Build: key -> right row positions, in right order.
	buckets := make(map[string][]int, right.Len())
	for pos, row := range right.Rows {
		k, ok := keyFn(row[ri])
		if !ok {
			continue
		}
		buckets[k] = append(buckets[k], pos)
	}

	columns := joinColumns(left.Columns, right.Columns, spec.suffix())
	lw, rw := left.Width(), right.Width()
	nullRight := make([]any, rw)

	rows := make([][]any, 0, left.Len())
	for _, lrow := range left.Rows {
		var matches []int
		if k, ok := keyFn(lrow[li]); ok {
			matches = buckets[k]
		}
		if len(matches) == 0 {
			rows = append(rows, concatRow(lrow, nullRight, lw, rw))
			continue
		}
		for _, pos := range matches {
			rows = append(rows, concatRow(lrow, right.Rows[pos], lw, rw))
		}
	}

	return New(fmt.Sprintf("%s_%s", left.Name, right.Name), columns, rows)
}

func concatRow(l, r []any, lw, rw int) []any {
	row := make([]any, lw+rw)
	copy(row, l)
	copy(row[lw:], r)
	return row
}

// joinColumns names the output columns, suffixing right-hand collisions.
func joinColumns(left, right []string, suffix string) []string {
	leftSet := make(map[string]bool, len(left))
	for _, c := range left {
		leftSet[c] = true
	}
	// Every original name is reserved up front so a suffixed rename never
	// claims a name the right side already uses.
	taken := make(map[string]bool, len(left)+len(right))
	for _, c := range left {
		taken[c] = true
	}
	for _, c := range right {
		taken[c] = true
	}

	out := make([]string, 0, len(left)+len(right))
	out = append(out, left...)
	for _, c := range right {
		if !leftSet[c] {
			out = append(out, c)
			continue
		}
		name := c + suffix
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s%s_%d", c, suffix, n)
		}
		taken[name] = true
		out = append(out, name)
	}
	return out
}
