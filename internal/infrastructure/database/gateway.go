package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// maxCachedStatements bounds the prepared statement cache. Query text with
// caller-supplied WHERE conditions would otherwise grow it without limit.
const maxCachedStatements = 64

// identifierPattern matches names accepted for tables and savepoints.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Statement is one SQL statement with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// StoredRow maps column name to the raw value returned by the engine:
// string, int64, float64, []byte or nil.
type StoredRow map[string]any

// Run executes a single statement.
//
// The engine error is returned wrapped in ErrExecFailed and logged with
// the statement text; callers translate it into their own failure kinds.
func (db *DB) Run(ctx context.Context, query string, args ...any) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.sqlDB == nil {
		return ErrClosed
	}

	stmt, err := db.prepareLocked(ctx, query)
	if err != nil {
		db.logger.Error("prepare failed", "sql", query, "error", err)
		return fmt.Errorf("%w: %w", ErrExecFailed, err)
	}
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		db.logger.Error("statement failed", "sql", query, "error", err)
		return fmt.Errorf("%w: %w", ErrExecFailed, err)
	}
	return nil
}

// RunBatch executes statements as one atomic unit. If the engine rejects
// any of them the transaction is rolled back in full and ErrBatchFailed
// is returned wrapping the engine error.
func (db *DB) RunBatch(ctx context.Context, stmts []Statement) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.sqlDB == nil {
		return ErrClosed
	}
	if len(stmts) == 0 {
		return nil
	}

	// Prepare before the transaction takes the only connection.
	prepared := make(map[string]*sql.Stmt, len(stmts))
	for _, s := range stmts {
		if _, ok := prepared[s.SQL]; ok {
			continue
		}
		stmt, err := db.prepareLocked(ctx, s.SQL)
		if err != nil {
			db.logger.Error("prepare failed", "sql", s.SQL, "error", err)
			return fmt.Errorf("%w: %w", ErrBatchFailed, err)
		}
		prepared[s.SQL] = stmt
	}

	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrBatchFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for i, s := range stmts {
		if _, err := tx.StmtContext(ctx, prepared[s.SQL]).ExecContext(ctx, s.Args...); err != nil {
			db.logger.Error("batch statement failed",
				"index", i,
				"sql", s.SQL,
				"error", err,
			)
			return fmt.Errorf("%w: statement %d: %w", ErrBatchFailed, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrBatchFailed, err)
	}
	return nil
}

// QueryRows executes a read and drains every row into memory before
// returning. An empty result is an empty slice, not an error.
func (db *DB) QueryRows(ctx context.Context, query string, args ...any) ([]StoredRow, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.sqlDB == nil {
		return nil, ErrClosed
	}

	stmt, err := db.prepareLocked(ctx, query)
	if err != nil {
		db.logger.Error("prepare failed", "sql", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		db.logger.Error("query failed", "sql", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return drainRows(rows)
}

// Transaction runs fn inside one transaction on the serial connection.
// A non-nil error from fn rolls everything back.
//
// fn must use the supplied Tx exclusively; calling back into db from fn
// deadlocks on the serial queue.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.sqlDB == nil {
		return ErrClosed
	}

	sqlTx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(&Tx{tx: sqlTx, db: db}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// prepareLocked returns a cached prepared statement for query. Caller holds db.mu.
func (db *DB) prepareLocked(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := db.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := db.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(db.stmts) >= maxCachedStatements {
		db.clearStatementsLocked()
	}
	db.stmts[query] = stmt
	return stmt, nil
}

// clearStatementsLocked closes and forgets every cached statement. Caller holds db.mu.
func (db *DB) clearStatementsLocked() {
	for q, stmt := range db.stmts {
		stmt.Close() //nolint:errcheck // Nothing useful to do on failure
		delete(db.stmts, q)
	}
}

// Tx is a transaction on the serial connection, handed to Transaction callbacks.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// Exec executes a single statement within the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := t.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecFailed, err)
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	// Reuse an already-prepared statement; preparing a new one on the pool
	// would wait for the connection this transaction holds.
	if stmt, ok := t.db.stmts[query]; ok {
		return t.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	}
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryRows executes a read within the transaction and drains it eagerly.
func (t *Tx) QueryRows(ctx context.Context, query string, args ...any) ([]StoredRow, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return drainRows(rows)
}

// Savepoint runs fn inside a named SAVEPOINT. When fn fails, only the work
// done since the savepoint is undone; the enclosing transaction continues.
func (t *Tx) Savepoint(ctx context.Context, name string, fn func() error) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: savepoint %q", ErrInvalidIdentifier, name)
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("%w: savepoint %s: %w", ErrExecFailed, name, err)
	}

	if fnErr := fn(); fnErr != nil {
		if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
			return fmt.Errorf("rolling back to savepoint %s: %w (after %w)", name, err, fnErr)
		}
		if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
			return fmt.Errorf("releasing savepoint %s: %w (after %w)", name, err, fnErr)
		}
		return fnErr
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("%w: releasing savepoint %s: %w", ErrExecFailed, name, err)
	}
	return nil
}

// drainRows reads all rows into memory and closes rows.
func drainRows(rows *sql.Rows) ([]StoredRow, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %w", ErrQueryFailed, err)
	}

	result := make([]StoredRow, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", ErrQueryFailed, err)
		}

		row := make(StoredRow, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %w", ErrQueryFailed, err)
	}
	return result, nil
}
