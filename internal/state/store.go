// Package state provides the run journal for claimjoin using SQLite.
// It records every pipeline run with its status, mode, row count and outputs.
package state

import (
	"github.com/leapstack-labs/claimjoin/pkg/core"
)

// Type aliases so callers can stay on the state package.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// RunOutcome is an alias for core.RunOutcome.
	RunOutcome = core.RunOutcome
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
)
