package orm

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/nerrad567/recordstore/internal/infrastructure/database"
)

// Operation names passed to notifiers and recorders.
const (
	OpCreate = "create"
	OpUpsert = "upsert"
	OpQuery  = "query"
	OpDelete = "delete"
)

// Logger is the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeNotifier is told about every committed write.
// *mqtt.ChangePublisher satisfies it.
type ChangeNotifier interface {
	PublishChange(table, op string, rows int) error
}

// OperationRecorder receives timing for every operation.
// *influxdb.Client satisfies it.
type OperationRecorder interface {
	WriteOperation(table, op string, rows int, elapsed time.Duration, err error)
}

// Schema is one record type in the current schema.
type Schema struct {
	typ reflect.Type
}

// SchemaOf returns the Schema entry for T.
func SchemaOf[T Record]() Schema {
	return Schema{typ: reflect.TypeFor[T]()}
}

// Options configures Open.
type Options struct {
	// Path is the database file. See database.ResolvePath.
	Path        string
	WALMode     bool
	BusyTimeout int

	// Versions stores the applied schema version. Required.
	Versions database.VersionStore

	// VersionKey names the version entry. Defaults to "DBVersion".
	VersionKey string

	// NamespaceVersionKey scopes VersionKey to this database's directory
	// and file, so per-user databases migrate independently.
	NamespaceVersionKey bool

	// SchemaVersion is the current schema version token. Required.
	SchemaVersion string

	// Tables lists every record type of the current schema. Migration
	// recreates exactly these.
	Tables []Schema

	// Codec encodes Blob fields. Defaults to JSON.
	Codec Codec

	Logger   Logger
	Notifier ChangeNotifier
	Recorder OperationRecorder
}

// DefaultVersionKey is the version entry name when Options.VersionKey is empty.
const DefaultVersionKey = "DBVersion"

// Manager owns one database file. Every operation runs on its serial
// connection in call order.
type Manager struct {
	db       *database.DB
	codec    Codec
	logger   Logger
	notifier ChangeNotifier
	recorder OperationRecorder
	report   database.MigrationReport
}

// Open opens the database, brings its schema to SchemaVersion and returns
// the manager. Migration problems are logged and available from
// MigrationReport; they never fail Open.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Versions == nil {
		return nil, fmt.Errorf("%w: version store is required", ErrInvalidOptions)
	}
	if opts.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: schema version is required", ErrInvalidOptions)
	}

	m := &Manager{
		codec:    opts.Codec,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
	}
	if m.codec == nil {
		m.codec = JSONCodec{}
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}

	// Surface describe errors before touching the file.
	for _, s := range opts.Tables {
		desc, err := Describe(s.typ)
		if err != nil {
			return nil, err
		}
		m.warnUnusedEnumKeys(desc)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        opts.Path,
		WALMode:     opts.WALMode,
		BusyTimeout: opts.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	db.SetLogger(m.logger)
	m.db = db

	migrator := database.NewMigrator(db, opts.Versions, versionKey(opts), opts.SchemaVersion,
		func(ctx context.Context, tx *database.Tx) error {
			return createSchemas(ctx, tx, opts.Tables)
		})
	migrator.SetLogger(m.logger)
	m.report = migrator.Run(ctx)

	m.logger.Info("record store opened",
		"path", opts.Path,
		"schema_version", opts.SchemaVersion,
		"codec", m.codec.Name(),
	)
	return m, nil
}

// versionKey returns the preference key holding the applied version.
func versionKey(opts Options) string {
	key := opts.VersionKey
	if key == "" {
		key = DefaultVersionKey
	}
	if opts.NamespaceVersionKey {
		key += ":" + filepath.Base(filepath.Dir(opts.Path)) + "/" + filepath.Base(opts.Path)
	}
	return key
}

// createSchemas creates every table in tables, attempting all of them.
func createSchemas(ctx context.Context, tx *database.Tx, tables []Schema) error {
	var errs []error
	for _, s := range tables {
		desc, err := Describe(s.typ)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := tx.Exec(ctx, CreateTableSQL(desc.Table, desc.Columns)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrTableCreationFailed, desc.Table, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// MigrationReport returns the outcome of the migration run by Open.
func (m *Manager) MigrationReport() database.MigrationReport {
	return m.report
}

// ExistsTable reports whether a table named name exists. Lookup failures
// are logged and reported as false.
func (m *Manager) ExistsTable(ctx context.Context, name string) bool {
	ok, err := m.db.TableExists(ctx, name)
	if err != nil {
		m.logger.Error("table existence check failed", "table", name, "error", err)
		return false
	}
	return ok
}

// DeleteTable deletes the rows of table matching every column = value
// pair in conditions. An empty map deletes all rows; the table itself
// is kept.
//
// Values are written into the statement as quoted literals. Column names
// are not checked beyond being identifiers and must come from trusted code.
func (m *Manager) DeleteTable(ctx context.Context, table string, conditions map[string]string) error {
	start := time.Now()
	err := m.deleteTable(ctx, table, conditions)
	m.observe(table, OpDelete, 0, start, err)
	if err == nil {
		m.notify(table, OpDelete, 0)
	}
	return err
}

func (m *Manager) deleteTable(ctx context.Context, table string, conditions map[string]string) error {
	if !identifierPattern.MatchString(table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}
	for col := range conditions {
		if !identifierPattern.MatchString(col) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, col)
		}
	}
	if err := m.db.Run(ctx, DeleteWhereSQL(table, conditions)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeleteFailed, table, err)
	}
	return nil
}

func (m *Manager) warnUnusedEnumKeys(desc *Descriptor) {
	if keys := desc.UnusedEnumKeys(); len(keys) > 0 {
		m.logger.Warn("enum policy names unknown columns",
			"table", desc.Table,
			"keys", keys,
		)
	}
}

// observe hands operation timing to the recorder, if any.
func (m *Manager) observe(table, op string, rows int, start time.Time, err error) {
	if m.recorder == nil {
		return
	}
	m.recorder.WriteOperation(table, op, rows, time.Since(start), err)
}

// notify announces a committed write. Notification failures are logged only.
func (m *Manager) notify(table, op string, rows int) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.PublishChange(table, op, rows); err != nil {
		m.logger.Warn("change notification failed",
			"table", table,
			"op", op,
			"error", err,
		)
	}
}
