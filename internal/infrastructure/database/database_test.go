package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("returns path", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Open(context.Background(), Config{})
		if !errors.Is(err, ErrEmptyPath) {
			t.Errorf("Open() error = %v, want ErrEmptyPath", err)
		}
	})
}

// TestHealthCheck verifies the health check functionality.
func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestClose verifies that a closed database rejects further work.
func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := db.Run(ctx, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Run() after Close error = %v, want ErrClosed", err)
	}
	if _, err := db.QueryRows(ctx, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("QueryRows() after Close error = %v, want ErrClosed", err)
	}
}

// TestRun verifies single statement execution.
func TestRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Run(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)"); err != nil {
		t.Fatalf("Run(CREATE) error = %v", err)
	}
	if err := db.Run(ctx, "INSERT INTO items (id, name) VALUES (?, ?)", 1, "first"); err != nil {
		t.Fatalf("Run(INSERT) error = %v", err)
	}

	rows, err := db.QueryRows(ctx, "SELECT id, name FROM items")
	if err != nil {
		t.Fatalf("QueryRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["id"] != int64(1) {
		t.Errorf("id = %v (%T), want 1", rows[0]["id"], rows[0]["id"])
	}
	if name, _ := asString(rows[0]["name"]); name != "first" {
		t.Errorf("name = %v, want first", rows[0]["name"])
	}

	t.Run("engine error is wrapped", func(t *testing.T) {
		err := db.Run(ctx, "INSERT INTO missing_table (id) VALUES (1)")
		if !errors.Is(err, ErrExecFailed) {
			t.Errorf("Run() error = %v, want ErrExecFailed", err)
		}
	})
}

// TestRunBatch verifies batches commit or roll back as a unit.
func TestRunBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Run(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY, qty INTEGER CHECK (qty >= 0))"); err != nil {
		t.Fatalf("Run(CREATE) error = %v", err)
	}
	insert := "INSERT INTO items (id, qty) VALUES (?, ?)"

	t.Run("commits all statements", func(t *testing.T) {
		err := db.RunBatch(ctx, []Statement{
			{SQL: insert, Args: []any{1, 10}},
			{SQL: insert, Args: []any{2, 20}},
		})
		if err != nil {
			t.Fatalf("RunBatch() error = %v", err)
		}
		if n := countRows(t, db, "items"); n != 2 {
			t.Errorf("rows = %d, want 2", n)
		}
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		err := db.RunBatch(ctx, []Statement{
			{SQL: insert, Args: []any{3, 30}},
			{SQL: insert, Args: []any{4, -1}},
			{SQL: insert, Args: []any{5, 50}},
		})
		if !errors.Is(err, ErrBatchFailed) {
			t.Fatalf("RunBatch() error = %v, want ErrBatchFailed", err)
		}
		if n := countRows(t, db, "items"); n != 2 {
			t.Errorf("rows = %d, want 2 (nothing from the failed batch)", n)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		if err := db.RunBatch(ctx, nil); err != nil {
			t.Errorf("RunBatch(nil) error = %v", err)
		}
	})
}

// TestQueryRowsEmpty verifies an empty result is an empty, non-nil slice.
func TestQueryRowsEmpty(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Run(ctx, "CREATE TABLE items (id INTEGER)"); err != nil {
		t.Fatalf("Run(CREATE) error = %v", err)
	}

	rows, err := db.QueryRows(ctx, "SELECT * FROM items")
	if err != nil {
		t.Fatalf("QueryRows() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("QueryRows() = %#v, want empty slice", rows)
	}

	if _, err := db.QueryRows(ctx, "SELECT * FROM missing_table"); !errors.Is(err, ErrQueryFailed) {
		t.Errorf("QueryRows(missing) error = %v, want ErrQueryFailed", err)
	}
}

// TestTransaction verifies callback transactions and savepoints.
func TestTransaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Run(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("Run(CREATE) error = %v", err)
	}

	t.Run("commit", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *Tx) error {
			return tx.Exec(ctx, "INSERT INTO items (id) VALUES (?)", 1)
		})
		if err != nil {
			t.Fatalf("Transaction() error = %v", err)
		}
		if n := countRows(t, db, "items"); n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.Transaction(ctx, func(tx *Tx) error {
			if err := tx.Exec(ctx, "INSERT INTO items (id) VALUES (?)", 2); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Transaction() error = %v, want boom", err)
		}
		if n := countRows(t, db, "items"); n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
	})

	t.Run("savepoint undoes only its own work", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *Tx) error {
			if err := tx.Exec(ctx, "INSERT INTO items (id) VALUES (?)", 10); err != nil {
				return err
			}
			spErr := tx.Savepoint(ctx, "inner", func() error {
				if err := tx.Exec(ctx, "INSERT INTO items (id) VALUES (?)", 11); err != nil {
					return err
				}
				// Duplicate key fails inside the savepoint.
				return tx.Exec(ctx, "INSERT INTO items (id) VALUES (?)", 10)
			})
			if spErr == nil {
				t.Error("Savepoint() error = nil, want duplicate key failure")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Transaction() error = %v", err)
		}

		rows, err := db.QueryRows(ctx, "SELECT id FROM items WHERE id >= 10 ORDER BY id")
		if err != nil {
			t.Fatalf("QueryRows() error = %v", err)
		}
		if len(rows) != 1 || rows[0]["id"] != int64(10) {
			t.Errorf("rows = %v, want only id 10", rows)
		}
	})

	t.Run("invalid savepoint name", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *Tx) error {
			return tx.Savepoint(ctx, "bad name;", func() error { return nil })
		})
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("Transaction() error = %v, want ErrInvalidIdentifier", err)
		}
	})
}

// TestCatalog verifies table and column lookups.
func TestCatalog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, q := range []string{
		"CREATE TABLE zebra (b TEXT, a INTEGER)",
		"CREATE TABLE apple (id INTEGER PRIMARY KEY AUTOINCREMENT)",
	} {
		if err := db.Run(ctx, q); err != nil {
			t.Fatalf("Run(%q) error = %v", q, err)
		}
	}

	exists, err := db.TableExists(ctx, "zebra")
	if err != nil || !exists {
		t.Errorf("TableExists(zebra) = %v, %v; want true, nil", exists, err)
	}
	exists, err = db.TableExists(ctx, "nope")
	if err != nil || exists {
		t.Errorf("TableExists(nope) = %v, %v; want false, nil", exists, err)
	}

	// AUTOINCREMENT creates sqlite_sequence, which must not be listed.
	tables, err := db.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "apple" || tables[1] != "zebra" {
		t.Errorf("ListTables() = %v, want [apple zebra]", tables)
	}

	cols, err := TableColumns(ctx, db, "zebra")
	if err != nil {
		t.Fatalf("TableColumns() error = %v", err)
	}
	if len(cols) != 2 || cols[0] != "a" || cols[1] != "b" {
		t.Errorf("TableColumns() = %v, want [a b]", cols)
	}

	if _, err := TableColumns(ctx, db, "zebra; DROP TABLE apple"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("TableColumns(injection) error = %v, want ErrInvalidIdentifier", err)
	}
}

// TestStatementCacheBounded verifies the prepared statement cache is capped.
func TestStatementCacheBounded(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < maxCachedStatements+10; i++ {
		q := "SELECT " + strconv.Itoa(i) + " AS v"
		if _, err := db.QueryRows(ctx, q); err != nil {
			t.Fatalf("QueryRows(%q) error = %v", q, err)
		}
	}

	db.mu.Lock()
	n := len(db.stmts)
	db.mu.Unlock()
	if n > maxCachedStatements {
		t.Errorf("cached statements = %d, want <= %d", n, maxCachedStatements)
	}
}

// TestStats verifies the pool is pinned to one connection.
func TestStats(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func countRows(t *testing.T, db *DB, table string) int64 {
	t.Helper()

	rows, err := db.QueryRows(context.Background(), "SELECT count(*) AS n FROM "+table)
	if err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	n, _ := rows[0]["n"].(int64)
	return n
}
