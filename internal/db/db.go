// Package db provides the SQL-backed event log, task metadata, fitness samples
// and analytics store. It runs on PostgreSQL (server) or SQLite (local CLI).
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	"github.com/ConfabulousDev/habitstat/internal/logger"
)

var tracer = otel.Tracer("habitstat/db")

// Dialect identifies the SQL engine behind a DB.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// DB wraps a database connection and the dialect its queries are written for.
// Queries use $N placeholders; each placeholder appears once, in ascending
// order, so they can be rewritten to ? for SQLite.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Connect establishes a connection to PostgreSQL
func Connect(dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(10)
	// Recycle connections periodically to avoid stale connections
	conn.SetConnMaxLifetime(20 * time.Minute)

	return &DB{conn: conn, dialect: Postgres}, nil
}

// ConnectWithRetry calls Connect until it succeeds or ctx is done, waiting
// one second between attempts. Used at startup while the database boots.
func ConnectWithRetry(ctx context.Context, dsn string) (*DB, error) {
	const retryDelay = time.Second
	for attempt := 1; ; attempt++ {
		db, err := Connect(dsn)
		if err == nil {
			return db, nil
		}
		logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		case <-time.After(retryDelay):
		}
	}
}

// OpenSQLite opens or creates a local SQLite database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, dialect: SQLite}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect returns the SQL engine behind the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Conn returns the underlying *sql.DB connection.
// Used by migrations and tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive (used by the health check).
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Exec executes a query without returning rows (for testing)
func (db *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.rebind(query), args...)
}

// rebind rewrites $N placeholders to ? for SQLite.
func (db *DB) rebind(query string) string {
	if db.dialect != SQLite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '$' && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// initSchema creates SQLite tables if they don't exist. It mirrors the
// PostgreSQL migrations with SQLite types.
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS habits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at_ms INTEGER NOT NULL,
		deleted_at_ms INTEGER
	);

	CREATE TABLE IF NOT EXISTS completion_events (
		id TEXT PRIMARY KEY,
		task_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at_ms INTEGER NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS fitness_samples (
		user_id TEXT NOT NULL,
		sample_date TEXT NOT NULL,
		data_type TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (user_id, sample_date, data_type)
	);

	CREATE TABLE IF NOT EXISTS task_analytics (
		task_id INTEGER NOT NULL,
		range_key TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		completion_rate REAL NOT NULL,
		current_streak INTEGER NOT NULL,
		longest_streak INTEGER NOT NULL,
		total_completions INTEGER NOT NULL,
		avg_completion_minutes REAL NOT NULL,
		time_of_day TEXT NOT NULL,
		computed_at_ms INTEGER NOT NULL,
		PRIMARY KEY (task_id, range_key)
	);

	CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id);
	CREATE INDEX IF NOT EXISTS idx_events_user_time ON completion_events(user_id, occurred_at_ms);
	CREATE INDEX IF NOT EXISTS idx_events_task_time ON completion_events(task_id, occurred_at_ms);
	CREATE INDEX IF NOT EXISTS idx_task_analytics_user ON task_analytics(user_id);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
