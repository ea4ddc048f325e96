package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
	"github.com/leapstack-labs/claimjoin/pkg/core"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// Dialect is the PostgreSQL dialect configuration.
var Dialect = &core.DialectConfig{
	Name:          "postgres",
	Identifiers:   core.IdentifierConfig{Quote: `"`, Escape: `""`},
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Types:         core.TypeNames{Integer: "BIGINT", Real: "DOUBLE PRECISION", Text: "TEXT"},
}

// Params holds PostgreSQL-specific configuration.
type Params struct {
	// SearchPath is applied to every connection (e.g., "analytics,public").
	SearchPath string `mapstructure:"search_path"`

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`
}

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, Dialect: Dialect},
	}
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}
	dsn := buildPostgresDSN(cfg, params)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}
	if err := mapstructure.Decode(raw, params); err != nil {
		return nil, fmt.Errorf("invalid postgres params: %w", err)
	}
	return params, nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config, params *Params) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if params != nil && params.SearchPath != "" {
		dsn += fmt.Sprintf(" search_path=%s", params.SearchPath)
	}
	if params != nil && params.ApplicationName != "" {
		dsn += fmt.Sprintf(" application_name=%s", params.ApplicationName)
	}

	return dsn
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table)
}

// ReadTable loads a table into memory.
func (a *Adapter) ReadTable(ctx context.Context, table string) (*relation.Relation, error) {
	return a.ReadTableWith(ctx, table, a.TableExists)
}

// WriteTable replaces the table using COPY FROM STDIN inside one transaction.
func (a *Adapter) WriteTable(ctx context.Context, table string, rel *relation.Relation) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}
	if rel.Width() == 0 {
		return fmt.Errorf("cannot write table %s: relation has no columns", table)
	}

	// Get the underlying pgx connection for COPY support
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()
		return a.copyTable(ctx, pgxConn, table, rel)
	})
}

func (a *Adapter) copyTable(ctx context.Context, conn *pgx.Conn, table string, rel *relation.Relation) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "DROP TABLE IF EXISTS "+a.QuoteTable(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	if _, err = tx.Exec(ctx, a.CreateTableSQL(table, rel)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	ident := pgx.Identifier(strings.SplitN(table, ".", 2))
	n, err := tx.CopyFrom(ctx, ident, rel.Columns, pgx.CopyFromRows(rel.Rows))
	if err != nil {
		return fmt.Errorf("failed to copy rows into %s: %w", table, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table, err)
	}

	a.Logger.Debug("copied table", slog.String("table", table), slog.Int64("rows", n))
	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
