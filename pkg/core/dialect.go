package core

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data — no handler functions.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "sqlite", "duckdb", "postgres")
	Name string

	// Identifiers defines quoting rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for SQLite/DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Types maps inferred column kinds to the dialect's type names
	Types TypeNames
}

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote  string // Quote character: ", `
	Escape string // Escape sequence: "", ``
}

// TypeNames holds the column type used for each inferred value kind.
type TypeNames struct {
	Integer string
	Real    string
	Text    string
}
