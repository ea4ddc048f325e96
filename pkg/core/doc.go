// Package core defines the shared language of the claimjoin system.
//
// This package contains:
//   - Store contracts (AdapterConfig, DialectConfig, TableMetadata)
//   - Run journal entities (Run, RunStatus)
//   - Configuration types (TargetConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
