// Package database opens the SQL token store. SQLite (modernc, no cgo) is the
// default backend, PostgreSQL is supported through lib/pq.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"imagesaver/config"
	"imagesaver/domain/observability"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqlitePragmas are applied to every pooled connection through the DSN
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// DB wraps a sqlx connection pool with logging and metrics
type DB struct {
	conn    *sqlx.DB
	driver  string
	logger  observability.Logger
	metrics observability.Metrics
}

// Open connects to the configured database and applies pending migrations
func Open(ctx context.Context, cfg config.DatabaseConfig, logger observability.Logger, metrics observability.Metrics) (*DB, error) {
	driver := strings.ToLower(cfg.Driver)

	dsn := cfg.DSN
	switch driver {
	case DriverSQLite:
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = sqliteDSN(cfg.DSN)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logger.Info("Connecting to database", "driver", driver)

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		logger.Error("Failed to open database connection", "error", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent updates
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{
		conn:    conn,
		driver:  driver,
		logger:  logger,
		metrics: metrics,
	}

	if err := d.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database ready", "driver", driver)
	metrics.IncrementCounter("database.connection.success", map[string]string{"type": driver})

	return d, nil
}

// Driver returns the driver name
func (d *DB) Driver() string {
	return d.driver
}

// StatementBuilder returns a squirrel builder with the driver's placeholders
func (d *DB) StatementBuilder() squirrel.StatementBuilderType {
	if d.driver == DriverPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

// Execute runs a query that doesn't return rows
func (d *DB) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()

	result, err := d.conn.ExecContext(ctx, query, args...)

	d.recordMetrics("execute", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to execute query", "error", err)
		return nil, err
	}

	return result, nil
}

// Get executes a query and scans the result into dest (single row)
func (d *DB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	startTime := time.Now()

	err := d.conn.GetContext(ctx, dest, query, args...)

	d.recordMetrics("get", time.Since(startTime), err)

	if err != nil && err != sql.ErrNoRows {
		d.logger.Error("Failed to get row", "error", err, "query", query)
	}
	return err
}

// Select executes a query and scans the result into dest (multiple rows)
func (d *DB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	startTime := time.Now()

	err := d.conn.SelectContext(ctx, dest, query, args...)

	d.recordMetrics("select", time.Since(startTime), err)

	if err != nil {
		d.logger.Error("Failed to select rows", "error", err, "query", query)
	}
	return err
}

// Ping verifies the connection
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// Close closes the database connection
func (d *DB) Close() error {
	d.logger.Info("Closing database connection")
	return d.conn.Close()
}

// recordMetrics records operation metrics
func (d *DB) recordMetrics(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil && err != sql.ErrNoRows {
		status = "error"
	}
	d.metrics.IncrementCounter("database.operations", map[string]string{
		"operation": operation,
		"status":    status,
	})
	d.metrics.RecordHistogram("database.operation.duration_seconds", duration.Seconds(), map[string]string{
		"operation": operation,
	})
}

// ensureSQLiteDir creates the parent directory of a plain file path DSN
func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// sqliteDSN appends the connection pragmas to a file path or URI
func sqliteDSN(dsn string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		if dsn == ":memory:" && strings.HasPrefix(p, "journal_mode") {
			continue
		}
		params = append(params, "_pragma="+p)
	}

	// Store timestamps in a layout the driver parses back into time.Time
	params = append(params, "_time_format=sqlite")

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
