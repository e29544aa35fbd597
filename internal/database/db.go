package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

const sqliteFile = "scriptmatch.db"

// DB represents the database connection with pooling
type DB struct {
	*sqlx.DB
	pool    *ConnectionPool
	dialect goose.Dialect
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sqlx.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sqlx.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// IsPostgresDSN reports whether dsn points at a postgres server
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewDB opens the database, sizes the pool and applies migrations. A
// postgres URL in dsn selects pgx; anything else falls back to a sqlite
// file under dataDir (or dsn itself when it is a sqlite path).
func NewDB(ctx context.Context, dataDir, dsn string) (*DB, error) {
	driver, dialect, connStr, err := resolveDSN(dataDir, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute) // 25 max open, 5 idle, 5min lifetime

	database := &DB{
		DB:      db,
		pool:    pool,
		dialect: dialect,
	}

	if err := database.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"driver", driver,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

func resolveDSN(dataDir, dsn string) (driver string, dialect goose.Dialect, connStr string, err error) {
	if IsPostgresDSN(dsn) {
		return "pgx", goose.DialectPostgres, dsn, nil
	}

	path := dsn
	if path == "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return "", "", "", fmt.Errorf("failed to create data directory: %w", err)
		}
		path = filepath.Join(dataDir, sqliteFile)
	}

	connStr = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	return "sqlite3", goose.DialectSQLite3, connStr, nil
}

// migrate applies the embedded migrations for the active dialect
func (db *DB) migrate(ctx context.Context) error {
	dir := "migrations/sqlite3"
	if db.dialect == goose.DialectPostgres {
		dir = "migrations/postgres"
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(db.dialect, db.DB.DB, fsys)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}

	for _, r := range results {
		slog.Debug("Applied migration", "source", r.Source.Path, "duration", r.Duration)
	}

	return nil
}

// Dialect returns the goose dialect of the connection
func (db *DB) Dialect() goose.Dialect {
	return db.dialect
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}
