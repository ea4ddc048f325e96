// Package relation provides the in-memory tabular structure the pipeline works on:
// an ordered set of named columns and rows kept in storage order, plus the
// relational operations used by the join pipeline (left outer join, projection).
//
// Cell values are normalized to a small set of Go types: nil (SQL NULL), int64,
// float64 and string. Use Normalize when filling a relation from a driver.
package relation

import (
	"fmt"
)

// Relation is an in-memory table.
type Relation struct {
	// Name is the source table name, or a descriptive name for derived relations.
	Name string

	// Columns holds the column names in order.
	Columns []string

	// Rows holds the cell values; every row has len(Columns) cells.
	Rows [][]any

	index map[string]int
}

// New creates a relation with the given columns and rows.
// Rows are used as-is; each row must have one cell per column.
func New(name string, columns []string, rows [][]any) (*Relation, error) {
	r := &Relation{
		Name:    name,
		Columns: append(make([]string, 0, len(columns)), columns...),
		Rows:    rows,
	}
	if err := r.buildIndex(); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("relation %s: row %d has %d values, expected %d", name, i, len(row), len(columns))
		}
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(name string, columns []string, rows [][]any) *Relation {
	r, err := New(name, columns, rows)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Relation) buildIndex() error {
	r.index = make(map[string]int, len(r.Columns))
	for i, col := range r.Columns {
		if _, dup := r.index[col]; dup {
			return fmt.Errorf("relation %s: duplicate column %q", r.Name, col)
		}
		r.index[col] = i
	}
	return nil
}

// Len returns the number of rows.
func (r *Relation) Len() int {
	return len(r.Rows)
}

// Width returns the number of columns.
func (r *Relation) Width() int {
	return len(r.Columns)
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (r *Relation) ColumnIndex(name string) int {
	if r.index == nil {
		_ = r.buildIndex()
	}
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether the relation has the named column.
func (r *Relation) HasColumn(name string) bool {
	return r.ColumnIndex(name) >= 0
}

// Column returns the values of the named column in row order.
func (r *Relation) Column(name string) ([]any, bool) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Value returns the cell at row i in the named column.
// It returns nil when the column does not exist.
func (r *Relation) Value(i int, column string) any {
	idx := r.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	return r.Rows[i][idx]
}

// Append adds a row, validating its width.
func (r *Relation) Append(row []any) error {
	if len(row) != len(r.Columns) {
		return fmt.Errorf("relation %s: row has %d values, expected %d", r.Name, len(row), len(r.Columns))
	}
	r.Rows = append(r.Rows, row)
	return nil
}

// Clone returns a deep copy of the relation's column list and rows.
// Cell values are immutable scalars, so they are shared.
func (r *Relation) Clone() *Relation {
	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = append([]any(nil), row...)
	}
	return MustNew(r.Name, r.Columns, rows)
}

// Rename returns a shallow copy of r with a different name.
func (r *Relation) Rename(name string) *Relation {
	c := *r
	c.Name = name
	return &c
}

// WithColumnFrom returns a copy of r with a new trailing column whose values are
// copied from an existing column. It is a no-op copy when source is absent.
func (r *Relation) WithColumnFrom(name, source string) (*Relation, error) {
	if r.HasColumn(name) {
		return nil, fmt.Errorf("relation %s: column %q already exists", r.Name, name)
	}
	src := r.ColumnIndex(source)
	if src < 0 {
		return r.Clone(), nil
	}

	columns := append(append([]string(nil), r.Columns...), name)
	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		next := make([]any, len(row)+1)
		copy(next, row)
		next[len(row)] = row[src]
		rows[i] = next
	}
	return New(r.Name, columns, rows)
}

// MissingColumnError is returned when an operation references an absent column.
type MissingColumnError struct {
	Relation string
	Column   string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("relation %s has no column %q", e.Relation, e.Column)
}
