package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/leapstack-labs/claimjoin/pkg/adapter"
	"github.com/leapstack-labs/claimjoin/pkg/relation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		params   *Params
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "with search path",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Username: "analyst",
			},
			params:   &Params{SearchPath: "healthcare", ApplicationName: "claimjoin"},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable user=analyst search_path=healthcare application_name=claimjoin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildPostgresDSN(tt.config, tt.params)
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams(map[string]any{"search_path": "healthcare,public"})
	require.NoError(t, err)
	assert.Equal(t, "healthcare,public", got.SearchPath)

	got, err = parseParams(nil)
	require.NoError(t, err)
	assert.Equal(t, &Params{}, got)
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp, "New() should return non-nil adapter")
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.Equal(t, "postgres", adp.DialectConfig().Name, "dialect name should be postgres")
	assert.Equal(t, "$1", adp.Placeholder(1))

	var _ adapter.Adapter = adp
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
	}{
		{
			name: "exec without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.Exec(ctx, "SELECT 1")
			},
		},
		{
			name: "create index without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.CreateIndex(ctx, adapter.IndexSpec{Name: "idx_out_a", Table: "out", Column: "a"})
			},
		},
		{
			name: "get metadata without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.GetTableMetadata(ctx, "claims")
				return err
			},
		},
		{
			name: "write without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				return adp.WriteTable(ctx, "out", relation.MustNew("out", []string{"a"}, nil))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.operation(context.Background(), New(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not established")
		})
	}
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"), "postgres adapter should be registered")

	factory, ok := adapter.Get("postgres")
	require.True(t, ok, "should be able to get postgres factory")

	pg, ok := factory(nil).(*Adapter)
	assert.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, "postgres", pg.DialectConfig().Name)
}

func TestAdapter_Close(t *testing.T) {
	// Close should not error even without connection
	adp := New(nil)
	assert.NoError(t, adp.Close())
}

// TestAdapter_Live runs against a real server when CLAIMJOIN_TEST_POSTGRES_DSN is set.
func TestAdapter_Live(t *testing.T) {
	dsn := os.Getenv("CLAIMJOIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CLAIMJOIN_TEST_POSTGRES_DSN not set")
	}

	pgCfg, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{
		Host:     pgCfg.Host,
		Port:     int(pgCfg.Port),
		Database: pgCfg.Database,
		Username: pgCfg.User,
		Password: pgCfg.Password,
	}))
	defer func() { _ = adp.Close() }()

	rel := relation.MustNew("claimjoin_live_test", []string{"provider_id", "billing_amount"}, [][]any{
		{"P1", 100.5},
		{"P2", nil},
	})
	require.NoError(t, adp.WriteTable(ctx, "claimjoin_live_test", rel))
	defer func() { _ = adp.Exec(ctx, "DROP TABLE IF EXISTS claimjoin_live_test") }()

	got, err := adp.ReadTable(ctx, "claimjoin_live_test")
	require.NoError(t, err)
	assert.Equal(t, rel.Rows, got.Rows)
}
