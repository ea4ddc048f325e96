package core

import "time"

// Store defines the interface for the run journal.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	CreateRun(pipeline string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, outcome RunOutcome) error
	GetLatestRun(pipeline string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one execution of a join pipeline.
type Run struct {
	ID          string     `json:"id"`
	Pipeline    string     `json:"pipeline"`
	Mode        string     `json:"mode,omitempty"`
	Status      RunStatus  `json:"status"`
	RowCount    int64      `json:"row_count"`
	OutputTable string     `json:"output_table,omitempty"`
	OutputFile  string     `json:"output_file,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RunOutcome carries the fields recorded when a run finishes.
type RunOutcome struct {
	Status      RunStatus
	Mode        string
	RowCount    int64
	OutputTable string
	OutputFile  string
	Error       string
}
