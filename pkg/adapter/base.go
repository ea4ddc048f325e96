package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, ReadTable, WriteTable and CreateIndex implementations.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     core.AdapterConfig
	Logger  *slog.Logger
	Dialect *core.DialectConfig
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		err := b.DB.Close()
		b.DB = nil
		return err
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// DialectConfig returns the adapter's dialect.
func (b *BaseSQLAdapter) DialectConfig() *core.DialectConfig {
	return b.Dialect
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses the configured schema, then the dialect's default schema, if not specified.
func (b *BaseSQLAdapter) ParseQualifiedName(table string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema, table
	}
	if b.Dialect != nil {
		return b.Dialect.DefaultSchema, table
	}
	return "", table
}

// QuoteIdent quotes a single identifier using the dialect's quoting rules.
func (b *BaseSQLAdapter) QuoteIdent(name string) string {
	q, esc := `"`, `""`
	if b.Dialect != nil && b.Dialect.Identifiers.Quote != "" {
		q, esc = b.Dialect.Identifiers.Quote, b.Dialect.Identifiers.Escape
	}
	return q + strings.ReplaceAll(name, q, esc) + q
}

// QuoteTable quotes a possibly schema-qualified table reference.
func (b *BaseSQLAdapter) QuoteTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	for i, p := range parts {
		parts[i] = b.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// Placeholder formats the n-th (1-based) query parameter.
func (b *BaseSQLAdapter) Placeholder(n int) string {
	if b.Dialect != nil && b.Dialect.Placeholder == core.PlaceholderDollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// TableExists checks information_schema.tables for the table.
// Adapters without an information schema override this.
func (b *BaseSQLAdapter) TableExists(ctx context.Context, table string) (bool, error) {
	if b.DB == nil {
		return false, ErrNotConnected
	}
	schema, name := b.ParseQualifiedName(table)

	//nolint:gosec // Placeholders come from the dialect
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
		b.Placeholder(1), b.Placeholder(2),
	)
	var n int
	if err := b.DB.QueryRowContext(ctx, query, schema, name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}

// GetTableMetadataCommon provides a shared implementation of GetTableMetadata.
// Uses information_schema.columns with dialect-appropriate placeholders.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := b.ParseQualifiedName(table)

	//nolint:gosec // Placeholders are safe - they come from the dialect
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, b.Placeholder(1), b.Placeholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}

	return &core.TableMetadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: b.countRows(ctx, table),
	}, nil
}

func (b *BaseSQLAdapter) countRows(ctx context.Context, table string) int64 {
	countQuery := "SELECT COUNT(*) FROM " + b.QuoteTable(table) //nolint:gosec // Identifier is quoted
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal error, just set to 0
		return 0
	}
	return rowCount
}

// ReadTableWith loads a table after checking its existence with exists.
// Concrete adapters pass their own TableExists so overrides are honored.
func (b *BaseSQLAdapter) ReadTableWith(ctx context.Context, table string, exists func(context.Context, string) (bool, error)) (*relation.Relation, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	ok, err := exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &TableNotFoundError{Table: table}
	}

	rows, err := b.DB.QueryContext(ctx, "SELECT * FROM "+b.QuoteTable(table)) //nolint:gosec // Identifier is quoted
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	rel, err := ScanRelation(table, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}

	b.logger().Debug("read table", slog.String("table", table), slog.Int("rows", rel.Len()), slog.Int("columns", rel.Width()))
	return rel, nil
}

// ReadTable loads a table using the information_schema existence check.
func (b *BaseSQLAdapter) ReadTable(ctx context.Context, table string) (*relation.Relation, error) {
	return b.ReadTableWith(ctx, table, b.TableExists)
}

// ScanRelation drains rows into a relation, normalizing every cell.
func ScanRelation(name string, rows *sql.Rows) (*relation.Relation, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = relation.Normalize(v)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return relation.New(name, cols, data)
}

// ColumnType maps a column's inferred kind to the dialect type name.
func (b *BaseSQLAdapter) ColumnType(kind relation.Kind) string {
	t := core.TypeNames{Integer: "INTEGER", Real: "REAL", Text: "TEXT"}
	if b.Dialect != nil && b.Dialect.Types.Text != "" {
		t = b.Dialect.Types
	}
	switch kind {
	case relation.KindInteger:
		return t.Integer
	case relation.KindReal:
		return t.Real
	default:
		return t.Text
	}
}

// CreateTableSQL renders the CREATE TABLE statement for a relation.
func (b *BaseSQLAdapter) CreateTableSQL(table string, rel *relation.Relation) string {
	defs := make([]string, len(rel.Columns))
	for i, col := range rel.Columns {
		defs[i] = b.QuoteIdent(col) + " " + b.ColumnType(rel.KindOf(col))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", b.QuoteTable(table), strings.Join(defs, ", "))
}

// InsertSQL renders the parameterized INSERT statement for a relation.
func (b *BaseSQLAdapter) InsertSQL(table string, rel *relation.Relation) string {
	cols := make([]string, len(rel.Columns))
	marks := make([]string, len(rel.Columns))
	for i, col := range rel.Columns {
		cols[i] = b.QuoteIdent(col)
		marks[i] = b.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", b.QuoteTable(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// WriteTable drops and recreates the table, then inserts every row, all in
// one transaction. Either the new contents are visible or the old table is.
func (b *BaseSQLAdapter) WriteTable(ctx context.Context, table string, rel *relation.Relation) (err error) {
	if b.DB == nil {
		return ErrNotConnected
	}
	if rel.Width() == 0 {
		return fmt.Errorf("cannot write table %s: relation has no columns", table)
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+b.QuoteTable(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	if _, err = tx.ExecContext(ctx, b.CreateTableSQL(table, rel)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, b.InsertSQL(table, rel))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rel.Rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}

	b.logger().Debug("wrote table", slog.String("table", table), slog.Int("rows", rel.Len()))
	return nil
}

// CreateIndexWith creates a single-column index if it does not already exist,
// after checking with metadata that the column exists. SQLite would otherwise
// accept an unknown double-quoted name as a string literal and index a constant.
func (b *BaseSQLAdapter) CreateIndexWith(ctx context.Context, spec core.IndexSpec, metadata func(context.Context, string) (*core.TableMetadata, error)) error {
	if b.DB == nil {
		return ErrNotConnected
	}

	meta, err := metadata(ctx, spec.Table)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
	}
	if !meta.HasColumn(spec.Column) {
		return fmt.Errorf("failed to create index %s: %w", spec.Name, &ColumnNotFoundError{Table: spec.Table, Column: spec.Column})
	}

	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		b.QuoteIdent(spec.Name), b.QuoteTable(spec.Table), b.QuoteIdent(spec.Column))
	if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create index %s: %w", spec.Name, err)
	}
	return nil
}

// CreateIndex creates a single-column index, checking the column through
// information_schema.columns.
func (b *BaseSQLAdapter) CreateIndex(ctx context.Context, spec core.IndexSpec) error {
	return b.CreateIndexWith(ctx, spec, b.GetTableMetadataCommon)
}
