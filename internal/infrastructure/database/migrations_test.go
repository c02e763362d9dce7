package database

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const testVersionKey = "DBVersion"

// memVersions is an in-memory VersionStore.
type memVersions struct {
	values map[string]string
	setErr error
}

func newMemVersions() *memVersions {
	return &memVersions{values: make(map[string]string)}
}

func (m *memVersions) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memVersions) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

// schemaOf returns a SchemaCreator running the given DDL statements.
func schemaOf(ddl ...string) SchemaCreator {
	return func(ctx context.Context, tx *Tx) error {
		var errs []error
		for _, q := range ddl {
			if err := tx.Exec(ctx, q); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// TestMigratorState verifies the version state machine inputs.
func TestMigratorState(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name     string
		recorded string
		set      bool
		want     MigrationState
	}{
		{"nothing recorded", "", false, StateUninitialized},
		{"empty recorded", "", true, StateUninitialized},
		{"same version", "1.0", true, StateUpToDate},
		{"different version", "0.9", true, StateStaleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemVersions()
			if tt.set {
				store.values[testVersionKey] = tt.recorded
			}
			m := NewMigrator(db, store, testVersionKey, "1.0", schemaOf())
			if got := m.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMigratorInitialise verifies the first run creates the schema and
// records the version.
func TestMigratorInitialise(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()

	m := NewMigrator(db, store, testVersionKey, "1.0",
		schemaOf("CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT)"))

	report := m.Run(ctx)
	if report.State != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", report.State)
	}
	if report.Err != nil {
		t.Fatalf("Run() Err = %v", report.Err)
	}
	if !report.VersionPersisted || store.values[testVersionKey] != "1.0" {
		t.Errorf("version = %q (persisted %v), want 1.0", store.values[testVersionKey], report.VersionPersisted)
	}
	if ok, _ := db.TableExists(ctx, "users"); !ok {
		t.Error("users table was not created")
	}

	// Second run is a no-op.
	report = m.Run(ctx)
	if report.State != StateUpToDate || report.VersionPersisted {
		t.Errorf("second Run() = %+v, want up_to_date without persisting", report)
	}
}

// TestMigratorUpgrade verifies shared columns survive a version change.
func TestMigratorUpgrade(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()
	store.values[testVersionKey] = "1.0"

	mustRun(t, db,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, legacy TEXT)",
		"INSERT INTO users (id, name, legacy) VALUES (1, 'ann', 'x'), (2, 'bob', 'y')",
		"CREATE TABLE retired (id INTEGER)",
	)

	m := NewMigrator(db, store, testVersionKey, "2.0", schemaOf(
		"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT, email TEXT DEFAULT 'none')",
	))
	report := m.Run(ctx)

	if report.Err != nil || len(report.Failed) != 0 {
		t.Fatalf("Run() Err = %v, Failed = %v", report.Err, report.Failed)
	}
	if !report.VersionPersisted || store.values[testVersionKey] != "2.0" {
		t.Errorf("version = %q, want 2.0", store.values[testVersionKey])
	}
	if got := report.Copied["users"]; len(got) != 1 || got[0] != "id, name" {
		t.Errorf("Copied[users] = %v, want [id, name]", got)
	}
	if len(report.Snapshots) != 2 {
		t.Errorf("Snapshots = %v, want 2 entries", report.Snapshots)
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if strings.Join(tables, ",") != "users" {
		t.Errorf("tables = %v, want only users (backups and retired dropped)", tables)
	}

	rows, err := db.QueryRows(ctx, "SELECT id, name, email FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("QueryRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if name, _ := asString(rows[1]["name"]); name != "bob" {
		t.Errorf("name = %v, want bob", rows[1]["name"])
	}
	if email, _ := asString(rows[0]["email"]); email != "none" {
		t.Errorf("email = %v, want column default", rows[0]["email"])
	}
}

// TestMigratorNoSharedColumns verifies a table with nothing in common ends
// up empty but present.
func TestMigratorNoSharedColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()
	store.values[testVersionKey] = "1.0"

	mustRun(t, db,
		"CREATE TABLE things (a TEXT)",
		"INSERT INTO things (a) VALUES ('gone')",
	)

	m := NewMigrator(db, store, testVersionKey, "2.0", schemaOf("CREATE TABLE IF NOT EXISTS things (b TEXT)"))
	report := m.Run(ctx)
	if report.Err != nil || !report.VersionPersisted {
		t.Fatalf("Run() = %+v", report)
	}
	if n := countRows(t, db, "things"); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

// TestMigratorRecoversLeftoverBackups verifies backups from an interrupted
// pass are copied back, oldest first, and then dropped.
func TestMigratorRecoversLeftoverBackups(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()
	store.values[testVersionKey] = "1.0"

	// An earlier pass renamed users to users_bak and created a fresh users
	// table before it was interrupted.
	mustRun(t, db,
		"CREATE TABLE users_bak (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users_bak (id, name) VALUES (1, 'old'), (2, 'kept')",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'new')",
	)

	m := NewMigrator(db, store, testVersionKey, "2.0",
		schemaOf("CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT)"))
	report := m.Run(ctx)
	if report.Err != nil || len(report.Failed) != 0 {
		t.Fatalf("Run() Err = %v, Failed = %v", report.Err, report.Failed)
	}

	// The live table took the next free name.
	if len(report.Snapshots) != 1 || report.Snapshots[0].Backup != "users_bak_2" {
		t.Errorf("Snapshots = %+v, want users -> users_bak_2", report.Snapshots)
	}

	rows, err := db.QueryRows(ctx, "SELECT id, name FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("QueryRows() error = %v", err)
	}
	got := make(map[int64]string)
	for _, r := range rows {
		id, _ := r["id"].(int64)
		got[id], _ = asString(r["name"])
	}
	if got[1] != "new" || got[2] != "kept" {
		t.Errorf("rows = %v, want 1:new 2:kept", got)
	}

	tables, _ := db.ListTables(ctx)
	if strings.Join(tables, ",") != "users" {
		t.Errorf("tables = %v, want only users", tables)
	}
}

// TestMigratorKeepsBackupsOnFailure verifies a failing create keeps the
// backups and leaves the version unrecorded.
func TestMigratorKeepsBackupsOnFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()
	store.values[testVersionKey] = "1.0"

	mustRun(t, db,
		"CREATE TABLE orders (id INTEGER PRIMARY KEY)",
		"INSERT INTO orders (id) VALUES (7)",
	)

	m := NewMigrator(db, store, testVersionKey, "2.0", schemaOf("CREATE TABLE broken (((("))
	report := m.Run(ctx)

	if report.Err == nil {
		t.Fatal("Run() Err = nil, want create failure")
	}
	if report.VersionPersisted || store.values[testVersionKey] != "1.0" {
		t.Errorf("version = %q, want 1.0 unchanged", store.values[testVersionKey])
	}
	if ok, _ := db.TableExists(ctx, "orders_bak"); !ok {
		t.Error("orders_bak was dropped, want it kept for the next attempt")
	}
	if n := countRows(t, db, "orders_bak"); n != 1 {
		t.Errorf("orders_bak rows = %d, want 1", n)
	}

	// A corrected schema on the next start recovers the data.
	m = NewMigrator(db, store, testVersionKey, "2.0",
		schemaOf("CREATE TABLE IF NOT EXISTS orders (id INTEGER PRIMARY KEY)"))
	report = m.Run(ctx)
	if report.Err != nil || !report.VersionPersisted {
		t.Fatalf("retry Run() = %+v", report)
	}
	if n := countRows(t, db, "orders"); n != 1 {
		t.Errorf("orders rows = %d, want 1", n)
	}
}

// TestMigratorVersionWriteFailure verifies a store failure is reported.
func TestMigratorVersionWriteFailure(t *testing.T) {
	db := openTestDB(t)
	store := newMemVersions()
	store.setErr = errors.New("disk full")

	m := NewMigrator(db, store, testVersionKey, "1.0", schemaOf())
	report := m.Run(context.Background())
	if report.VersionPersisted || report.Err == nil {
		t.Errorf("Run() = %+v, want unpersisted with error", report)
	}
}

// TestParseBackupName verifies backup name decoding.
func TestParseBackupName(t *testing.T) {
	tests := []struct {
		name        string
		wantBase    string
		wantAttempt int
		wantOK      bool
	}{
		{"users_bak", "users", 1, true},
		{"users_bak_2", "users", 2, true},
		{"user_bak_data_bak_10", "user_bak_data", 10, true},
		{"users", "", 0, false},
		{"_bak", "", 0, false},
		{"users_bak_1", "", 0, false},
		{"users_bak_x", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, attempt, ok := parseBackupName(tt.name)
			if base != tt.wantBase || attempt != tt.wantAttempt || ok != tt.wantOK {
				t.Errorf("parseBackupName(%q) = %q, %d, %v; want %q, %d, %v",
					tt.name, base, attempt, ok, tt.wantBase, tt.wantAttempt, tt.wantOK)
			}
		})
	}
}

// TestNextBackupName verifies collision-free backup naming.
func TestNextBackupName(t *testing.T) {
	taken := map[string]bool{"users_bak": true, "users_bak_2": true}
	if got := nextBackupName("users", taken); got != "users_bak_3" {
		t.Errorf("nextBackupName() = %q, want users_bak_3", got)
	}
	if got := nextBackupName("orders", taken); got != "orders_bak" {
		t.Errorf("nextBackupName() = %q, want orders_bak", got)
	}
}

// TestMigratorUpgradeKeywordNames verifies tables and columns named after
// SQL keywords are renamed, copied and dropped.
func TestMigratorUpgradeKeywordNames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := newMemVersions()
	store.values[testVersionKey] = "1.0"

	mustRun(t, db,
		`CREATE TABLE "order" ("id" INTEGER PRIMARY KEY, "group" TEXT, "select" TEXT)`,
		`INSERT INTO "order" ("id", "group", "select") VALUES (1, 'a', 'x')`,
	)

	m := NewMigrator(db, store, testVersionKey, "2.0", schemaOf(
		`CREATE TABLE IF NOT EXISTS "order" ("id" INTEGER PRIMARY KEY, "group" TEXT)`,
	))
	report := m.Run(ctx)

	if report.Err != nil || len(report.Failed) != 0 || !report.VersionPersisted {
		t.Fatalf("Run() Err = %v, Failed = %v, persisted = %v", report.Err, report.Failed, report.VersionPersisted)
	}
	if got := report.Copied["order"]; len(got) != 1 || got[0] != "group, id" {
		t.Errorf("Copied[order] = %v, want [group, id]", got)
	}

	rows, err := db.QueryRows(ctx, `SELECT "group" FROM "order" WHERE "id" = 1`)
	if err != nil {
		t.Fatalf("QueryRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if group, _ := asString(rows[0]["group"]); group != "a" {
		t.Errorf("group = %v, want a", rows[0]["group"])
	}
}

// TestIsBackupName verifies which table names are reserved for backups.
func TestIsBackupName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"feed_bak", true},
		{"sales_bak_2024", true},
		{"users_bak_2", true},
		{"feed", false},
		{"bakery", false},
		{"feed_bakery", false},
		{"users_bak_1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackupName(tt.name); got != tt.want {
				t.Errorf("IsBackupName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

// TestQuoteIdentifier verifies identifier quoting.
func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{"order", `"order"`},
		{`we"ird`, `"we""ird"`},
	}

	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if got := QuoteIdentifiers([]string{"id", "group"}); got != `"id", "group"` {
		t.Errorf("QuoteIdentifiers() = %s", got)
	}
}

// TestCopyColumnsSQL verifies the copy statement shape.
func TestCopyColumnsSQL(t *testing.T) {
	got := CopyColumnsSQL("users_bak", "users", intersect([]string{"name", "id", "old"}, []string{"id", "name", "new"}))
	want := `INSERT OR REPLACE INTO "users" ("id", "name") SELECT "id", "name" FROM "users_bak"`
	if got != want {
		t.Errorf("CopyColumnsSQL() = %q, want %q", got, want)
	}
}

func mustRun(t *testing.T, db *DB, queries ...string) {
	t.Helper()
	for _, q := range queries {
		if err := db.Run(context.Background(), q); err != nil {
			t.Fatalf("Run(%q) error = %v", q, err)
		}
	}
}
