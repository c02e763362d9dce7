package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// backupSuffix marks a renamed pre-migration table: "<name>_bak", or
// "<name>_bak_<n>" when an earlier attempt already holds "<name>_bak".
const backupSuffix = "_bak"

// MigrationState is the state of the persisted schema version relative to
// the version the process was built with.
type MigrationState int

// Migration states.
const (
	// StateUninitialized means no version has been recorded yet.
	StateUninitialized MigrationState = iota

	// StateUpToDate means the recorded version equals the current one.
	StateUpToDate

	// StateStaleVersion means a different version is recorded.
	StateStaleVersion
)

// String returns the state name used in logs.
func (s MigrationState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateUpToDate:
		return "up_to_date"
	case StateStaleVersion:
		return "stale_version"
	default:
		return "unknown"
	}
}

// VersionStore persists the applied schema version outside the database.
// *prefs.Store satisfies it.
type VersionStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// SchemaCreator creates every current-schema table inside tx. It should
// attempt all tables and return the joined errors of those that failed.
type SchemaCreator func(ctx context.Context, tx *Tx) error

// TableSnapshot describes one table moved aside during a migration pass.
type TableSnapshot struct {
	Table   string
	Backup  string
	Columns []string
}

// MigrationReport summarises one Migrator.Run.
type MigrationReport struct {
	State       MigrationState
	FromVersion string
	ToVersion   string

	// Snapshots lists the tables renamed away in this pass.
	Snapshots []TableSnapshot

	// Copied maps new table name to the columns copied into it per source.
	Copied map[string][]string

	// Failed lists tables whose rename, creation or copy failed.
	Failed []string

	// VersionPersisted is true when the current version was recorded.
	VersionPersisted bool

	// Err is the first pass-level failure, if any. Migration never fails
	// the caller; this is informational.
	Err error
}

// Migrator moves a database from whatever schema version is recorded to
// the current one, preserving data in columns shared by both schemas.
type Migrator struct {
	db      *DB
	store   VersionStore
	key     string
	version string
	create  SchemaCreator
	logger  Logger
}

// NewMigrator creates a Migrator for db. key names the version entry in
// store; version is the current schema version; create builds the
// current schema.
func NewMigrator(db *DB, store VersionStore, key, version string, create SchemaCreator) *Migrator {
	return &Migrator{
		db:      db,
		store:   store,
		key:     key,
		version: version,
		create:  create,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for migration progress and failures.
func (m *Migrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// State reports where the recorded version stands.
func (m *Migrator) State() MigrationState {
	recorded, ok := m.store.Get(m.key)
	switch {
	case !ok || recorded == "":
		return StateUninitialized
	case recorded == m.version:
		return StateUpToDate
	default:
		return StateStaleVersion
	}
}

// Run evaluates the state machine once and performs whatever transition
// is due.
//
// # Atomicity
//
// The stale-version pass runs inside a single transaction: a crash at any
// point leaves the database exactly as it was, and the next start retries
// from StateStaleVersion. Inside the pass, each rename and each copy runs
// under its own savepoint, so one failing table never undoes the others.
//
// The version is persisted only when every rename, create and copy
// succeeded. Otherwise the failed tables' backups are kept and reused as
// recovery sources on the next run.
func (m *Migrator) Run(ctx context.Context) MigrationReport {
	recorded, _ := m.store.Get(m.key)
	report := MigrationReport{
		State:       m.State(),
		FromVersion: recorded,
		ToVersion:   m.version,
		Copied:      make(map[string][]string),
	}

	m.logger.Info("checking schema version",
		"recorded", recorded,
		"current", m.version,
		"state", report.State.String(),
	)

	switch report.State {
	case StateUpToDate:
		return report
	case StateUninitialized:
		m.initialise(ctx, &report)
	case StateStaleVersion:
		m.upgrade(ctx, &report)
	}

	if report.Err == nil && len(report.Failed) == 0 {
		if err := m.store.Set(m.key, m.version); err != nil {
			report.Err = fmt.Errorf("persisting schema version: %w", err)
			m.logger.Error("persisting schema version failed", "error", err)
		} else {
			report.VersionPersisted = true
			m.logger.Info("schema version recorded", "version", m.version)
		}
	} else {
		m.logger.Warn("schema version not recorded, migration will be retried",
			"failed_tables", report.Failed,
			"error", report.Err,
		)
	}

	return report
}

// initialise creates the current schema on a database with no recorded version.
func (m *Migrator) initialise(ctx context.Context, report *MigrationReport) {
	m.logger.Info("initialising database schema", "version", m.version)

	err := m.db.Transaction(ctx, func(tx *Tx) error {
		return m.create(ctx, tx)
	})
	if err != nil {
		report.Err = fmt.Errorf("creating schema: %w", err)
		m.logger.Error("creating schema failed", "error", err)
	}
}

// upgrade performs the stale-version pass.
func (m *Migrator) upgrade(ctx context.Context, report *MigrationReport) {
	m.logger.Info("upgrading database schema",
		"from", report.FromVersion,
		"to", report.ToVersion,
	)

	err := m.db.Transaction(ctx, func(tx *Tx) error {
		return m.upgradeTx(ctx, tx, report)
	})
	if err != nil {
		// The pass was rolled back as a whole; nothing partial survives.
		report.Err = fmt.Errorf("migration pass: %w", err)
		report.Snapshots = nil
		report.Copied = make(map[string][]string)
		m.logger.Error("migration pass rolled back", "error", err)
		return
	}

	m.logger.Info("database upgrade complete",
		"tables", len(report.Copied),
		"failed", len(report.Failed),
	)
}

// upgradeTx is the body of the stale-version pass.
func (m *Migrator) upgradeTx(ctx context.Context, tx *Tx, report *MigrationReport) error {
	// 1. Existing tables, split into live tables and leftovers from an
	// earlier pass that did not complete.
	existing, err := ListTables(ctx, tx)
	if err != nil {
		return err
	}

	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}

	backups := make(map[string][]backupRef) // base table -> backups, any order
	var live []string
	for _, name := range existing {
		if base, attempt, ok := parseBackupName(name); ok {
			backups[base] = append(backups[base], backupRef{name: name, attempt: attempt})
			m.logger.Warn("found backup table from an earlier migration", "table", name)
			continue
		}
		live = append(live, name)
	}

	failed := make(map[string]bool)

	// 2. Rename each live table aside. A failed rename keeps that table
	// out of recovery and blocks the version from being recorded.
	for i, table := range live {
		backup := nextBackupName(table, taken)
		err := tx.Savepoint(ctx, "rename_"+strconv.Itoa(i), func() error {
			return tx.Exec(ctx, RenameTableSQL(table, backup))
		})
		if err != nil {
			failed[table] = true
			m.logger.Error("backing up table failed", "table", table, "backup", backup, "error", err)
			continue
		}
		taken[backup] = true
		_, attempt, _ := parseBackupName(backup)
		backups[table] = append(backups[table], backupRef{name: backup, attempt: attempt})

		cols, err := TableColumns(ctx, tx, backup)
		if err != nil {
			m.logger.Warn("reading backup columns failed", "backup", backup, "error", err)
		}
		report.Snapshots = append(report.Snapshots, TableSnapshot{Table: table, Backup: backup, Columns: cols})
		m.logger.Info("table backed up", "table", table, "backup", backup)
	}

	// 3. Current schema.
	createErr := m.create(ctx, tx)
	if createErr != nil {
		m.logger.Error("creating current schema failed", "error", createErr)
	}

	// 4. Tables that exist now and are not backups.
	now, err := ListTables(ctx, tx)
	if err != nil {
		return err
	}
	current := make(map[string]bool, len(now))
	for _, name := range now {
		if _, _, ok := parseBackupName(name); !ok {
			current[name] = true
		}
	}

	// 5. Copy shared columns from each backup, oldest attempt first, so
	// rows written after an incomplete pass win over older copies.
	copyIndex := 0
	for _, table := range sortedKeys(current) {
		if failed[table] {
			continue
		}
		refs := backups[table]
		sort.Slice(refs, func(i, j int) bool { return refs[i].attempt < refs[j].attempt })

		newCols, err := TableColumns(ctx, tx, table)
		if err != nil {
			failed[table] = true
			m.logger.Error("reading new table columns failed", "table", table, "error", err)
			continue
		}

		for _, ref := range refs {
			oldCols, err := TableColumns(ctx, tx, ref.name)
			if err != nil {
				failed[table] = true
				m.logger.Error("reading backup columns failed", "backup", ref.name, "error", err)
				break
			}

			common := intersect(oldCols, newCols)
			if len(common) == 0 {
				m.logger.Info("no shared columns, nothing to copy", "table", table, "backup", ref.name)
				continue
			}

			copyIndex++
			err = tx.Savepoint(ctx, "copy_"+strconv.Itoa(copyIndex), func() error {
				return tx.Exec(ctx, CopyColumnsSQL(ref.name, table, common))
			})
			if err != nil {
				failed[table] = true
				m.logger.Error("copying data failed",
					"from", ref.name,
					"to", table,
					"columns", strings.Join(common, ", "),
					"error", err,
				)
				break
			}
			report.Copied[table] = append(report.Copied[table], strings.Join(common, ", "))
			m.logger.Info("data copied",
				"from", ref.name,
				"to", table,
				"columns", strings.Join(common, ", "),
			)
		}
	}

	// 6. Drop backups that are no longer needed: those of tables that
	// copied cleanly, and those of tables dropped from the schema (only
	// when the schema was created without error).
	for _, base := range sortedKeys(backups) {
		keep := failed[base] || (!current[base] && createErr != nil)
		if keep {
			for _, ref := range backups[base] {
				m.logger.Warn("keeping backup for next attempt", "backup", ref.name)
			}
			continue
		}
		for _, ref := range backups[base] {
			if err := tx.Exec(ctx, DropTableSQL(ref.name)); err != nil {
				failed[base] = true
				m.logger.Error("dropping backup failed", "backup", ref.name, "error", err)
			}
		}
	}

	report.Failed = sortedKeys(failed)
	if createErr != nil {
		report.Err = fmt.Errorf("creating current schema: %w", createErr)
	}
	return nil
}

// backupRef is a backup table and the attempt number encoded in its name.
type backupRef struct {
	name    string
	attempt int
}

// parseBackupName splits "<base>_bak" (attempt 1) or "<base>_bak_<n>"
// (attempt n, n >= 2).
func parseBackupName(name string) (base string, attempt int, ok bool) {
	if strings.HasSuffix(name, backupSuffix) {
		base = strings.TrimSuffix(name, backupSuffix)
		if base == "" {
			return "", 0, false
		}
		return base, 1, true
	}

	idx := strings.LastIndex(name, backupSuffix+"_")
	if idx <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[idx+len(backupSuffix)+1:])
	if err != nil || n < 2 {
		return "", 0, false
	}
	return name[:idx], n, true
}

// nextBackupName returns the first free backup name for table.
func nextBackupName(table string, taken map[string]bool) string {
	name := table + backupSuffix
	for n := 2; taken[name]; n++ {
		name = table + backupSuffix + "_" + strconv.Itoa(n)
	}
	return name
}

// intersect returns the sorted names present in both sorted inputs.
func intersect(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, c := range b {
		inB[c] = true
	}
	var out []string
	for _, c := range a {
		if inB[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RenameTableSQL returns ALTER TABLE ... RENAME TO ...
func RenameTableSQL(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QuoteIdentifier(from), QuoteIdentifier(to))
}

// DropTableSQL returns DROP TABLE IF EXISTS ...
func DropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdentifier(table)
}

// CopyColumnsSQL copies cols from src into dst. Rows that collide on the
// destination's primary key replace the earlier copy.
func CopyColumnsSQL(src, dst string, cols []string) string {
	list := QuoteIdentifiers(cols)
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) SELECT %s FROM %s",
		QuoteIdentifier(dst), list, list, QuoteIdentifier(src))
}
