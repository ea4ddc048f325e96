package pipeline

import (
	"fmt"
)

// Sink identifies a persistence target.
type Sink string

// Persistence sinks.
const (
	SinkTable Sink = "table"
	SinkIndex Sink = "index"
	SinkFile  Sink = "file"
)

// MissingInputError is returned when a required input table is absent.
type MissingInputError struct {
	Table string
	Err   error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("required input table %s is missing: %v", e.Table, e.Err)
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned when writing the output table, an index or an
// export file fails.
type PersistenceError struct {
	Sink   Sink
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to write %s %s: %v", e.Sink, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ReportingError records a summary statistics failure. It is attached to the
// Result and never fails a run.
type ReportingError struct {
	Err error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("summary statistics unavailable: %v", e.Err)
}

func (e *ReportingError) Unwrap() error {
	return e.Err
}
