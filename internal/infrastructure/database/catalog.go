package database

import (
	"context"
	"fmt"
	"sort"
)

// Querier is satisfied by *DB and *Tx.
type Querier interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]StoredRow, error)
}

// TableExists reports whether a table named name exists, using a count(*)
// against sqlite_master.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	rows, err := q.QueryRows(ctx,
		"SELECT count(*) AS n FROM sqlite_master WHERE type = 'table' AND name = ?",
		name,
	)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	n, _ := rows[0]["n"].(int64)
	return n > 0, nil
}

// ListTables returns the names of all user tables in name order.
// SQLite's internal sqlite_* tables are excluded.
func ListTables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryRows(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\\_%' ESCAPE '\\' ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := asString(row["name"]); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// TableColumns returns the column names of table, sorted.
func TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}

	rows, err := q.QueryRows(ctx, "PRAGMA table_info("+QuoteIdentifier(table)+")")
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	cols := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := asString(row["name"]); ok {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols, nil
}

// TableExists reports whether the named table exists.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	return TableExists(ctx, db, name)
}

// ListTables returns all user table names.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	return ListTables(ctx, db)
}

// asString accepts the two representations the driver uses for TEXT.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
