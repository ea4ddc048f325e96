package adapter

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations invoked before Connect.
var ErrNotConnected = errors.New("database connection not established")

// TableNotFoundError is returned when a requested table does not exist.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}

// IsTableNotFound reports whether err is, or wraps, a *TableNotFoundError.
func IsTableNotFound(err error) bool {
	var nf *TableNotFoundError
	return errors.As(err, &nf)
}

// ColumnNotFoundError is returned when an index names a column the table lacks.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %s not found in table %s", e.Column, e.Table)
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check your target.type in claimjoin.yaml", e.Type, e.Available)
}
