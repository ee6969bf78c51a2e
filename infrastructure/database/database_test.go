package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesaver/config"
	"imagesaver/domain/observability/mocks"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    path,
	}, mocks.NewNopLogger(), mocks.NewNopMetrics())
	require.NoError(t, err)
	return db
}

func TestOpen_SQLiteAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	db := openTestDB(t, path)
	require.NoError(t, db.Close())

	// Reopening must not fail on already applied migrations
	db = openTestDB(t, path)
	defer db.Close()

	var versions []int
	require.NoError(t, db.Select(context.Background(), &versions, "SELECT version FROM schema_migrations ORDER BY version"))
	assert.Equal(t, []int{1}, versions)

	var count int
	require.NoError(t, db.Get(context.Background(), &count, "SELECT COUNT(*) FROM tokens"))
	assert.Equal(t, 0, count)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"},
		mocks.NewNopLogger(), mocks.NewNopMetrics())
	assert.Error(t, err)
}

func TestStatementBuilder_Placeholders(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	query, _, err := sqlite.StatementBuilder().Select("token").From("tokens").Where("token = ?", "x").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT token FROM tokens WHERE token = ?", query)

	pg := &DB{driver: DriverPostgres}
	query, _, err = pg.StatementBuilder().Select("token").From("tokens").Where("token = ?", "x").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT token FROM tokens WHERE token = $1", query)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"tokens.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_time_format=sqlite",
		sqliteDSN("tokens.db"))
	assert.Contains(t, sqliteDSN("file:x.db?mode=rwc"), "file:x.db?mode=rwc&_pragma=busy_timeout(5000)")
	assert.NotContains(t, sqliteDSN(":memory:"), "journal_mode")
}

func TestOpen_SQLiteCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "tokens.db")

	db := openTestDB(t, path)
	defer db.Close()

	assert.FileExists(t, path)
}
