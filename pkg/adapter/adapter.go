// Package adapter provides the database adapter contract for claimjoin.
//
// An adapter is the explicitly passed store handle of a pipeline run: it is
// connected once, used to load the source relations and persist the joined
// relation, and closed on every exit path by its owner.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"

	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// Type aliases so callers can stay on the adapter package for store types.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// IndexSpec is an alias for core.IndexSpec.
	IndexSpec = core.IndexSpec
)

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// GetTableMetadata retrieves column names, types and the row count of a
	// table. A missing table yields a *TableNotFoundError.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// ReadTable loads the full contents of a table, rows in storage order.
	// A missing table yields a *TableNotFoundError.
	ReadTable(ctx context.Context, table string) (*relation.Relation, error)

	// WriteTable replaces the named table with the relation's contents.
	WriteTable(ctx context.Context, table string, rel *relation.Relation) error

	// CreateIndex creates a single-column index if it does not already exist.
	// A missing column yields a *ColumnNotFoundError.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// DialectConfig returns the static dialect configuration.
	DialectConfig() *core.DialectConfig
}
