package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DB wraps a single-connection sql.DB and acts as the serial execution
// queue for one database file: every statement, batch and transaction
// runs one at a time in call order.
type DB struct {
	sqlDB *sql.DB
	path  string

	// mu serialises all work against the connection.
	mu sync.Mutex

	// stmts caches prepared statements by SQL text. Guarded by mu.
	stmts map[string]*sql.Stmt

	logger Logger
}

// Config contains database configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates a new database connection with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Pins the pool to one connection (the serial queue)
//  5. Verifies the connection with a ping and restricts file permissions
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: statements never interleave, and SAVEPOINT/transaction
	// state always lives on the connection that created it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{
		sqlDB:  sqlDB,
		path:   cfg.Path,
		stmts:  make(map[string]*sql.Stmt),
		logger: noopLogger{},
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file exists after the ping; restrict it to the owner.
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Best effort

	return db, nil
}

// SetLogger sets the logger used for engine error diagnostics.
func (db *DB) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	db.logger = logger
}

// Close releases cached statements and closes the connection.
func (db *DB) Close() error {
	if db == nil || db.sqlDB == nil {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.clearStatementsLocked()
	if err := db.sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	db.sqlDB = nil
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible and functioning.
func (db *DB) HealthCheck(ctx context.Context) error {
	rows, err := db.QueryRows(ctx, "SELECT 1 AS ok")
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if len(rows) != 1 {
		return fmt.Errorf("database health check failed: unexpected row count %d", len(rows))
	}
	return nil
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.sqlDB.Stats()
}
