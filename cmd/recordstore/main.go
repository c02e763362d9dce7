// recordstore - embedded SQLite record store
//
// This is the command-line entry point. It opens the configured store,
// brings its schema up to date and runs a short demonstration:
// create a table, write a record, read it back, delete it.
//
// Usage:
//
//	recordstore [demo|clean|purge]
//
//   - demo  (default) run the demonstration against the configured store
//   - clean remove the database file and its journal files
//   - purge remove every database folder under the cache directory
//
// The configuration file is configs/config.yaml unless RECORDSTORE_CONFIG
// names another. A missing default file means built-in defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nerrad567/recordstore/internal/infrastructure/config"
	"github.com/nerrad567/recordstore/internal/infrastructure/database"
	"github.com/nerrad567/recordstore/internal/infrastructure/influxdb"
	"github.com/nerrad567/recordstore/internal/infrastructure/logging"
	"github.com/nerrad567/recordstore/internal/infrastructure/mqtt"
	"github.com/nerrad567/recordstore/internal/infrastructure/prefs"
	"github.com/nerrad567/recordstore/internal/orm"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when RECORDSTORE_CONFIG is unset.
	defaultConfigPath = "configs/config.yaml"

	// prefsFileName is the preferences file created in the cache directory.
	prefsFileName = "recordstore-prefs.yaml"
)

// Commands accepted as the first argument.
const (
	cmdDemo  = "demo"
	cmdClean = "clean"
	cmdPurge = "purge"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context, args []string) error {
	command := cmdDemo
	if len(args) > 0 {
		command = args[0]
	}
	switch command {
	case cmdDemo, cmdClean, cmdPurge:
	default:
		return fmt.Errorf("unknown command %q (want %s, %s or %s)", command, cmdDemo, cmdClean, cmdPurge)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting recordstore",
		"command", command,
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	dbPath, err := database.ResolvePath(cfg.Store.CacheDir, cfg.Store.UserID, cfg.Store.FileName)
	if err != nil {
		return fmt.Errorf("resolving database path: %w", err)
	}

	switch command {
	case cmdClean:
		return waitCleanup(ctx, database.CleanCacheFiles(filepath.Dir(dbPath), cfg.Store.FileName, log))
	case cmdPurge:
		return waitCleanup(ctx, database.RemoveDatabaseDirs(cacheDirOf(dbPath), log))
	}

	store, closeStore, err := openStore(ctx, cfg, dbPath, log)
	if err != nil {
		return err
	}
	defer closeStore()

	return runDemo(ctx, store, log)
}

// loadConfig reads the configuration file. The default path may be absent;
// an explicitly configured one may not.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("RECORDSTORE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// cacheDirOf returns the cache directory a resolved database path lives in.
func cacheDirOf(dbPath string) string {
	return filepath.Dir(filepath.Dir(dbPath))
}

// prefsPath returns the configured preferences file, or the default one
// in the cache directory.
func prefsPath(cfg *config.Config, dbPath string) string {
	if cfg.Store.PreferencesFile != "" {
		return cfg.Store.PreferencesFile
	}
	return filepath.Join(cacheDirOf(dbPath), prefsFileName)
}

// waitCleanup blocks until a background cleanup finishes or ctx ends.
func waitCleanup(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// openStore wires preferences, the optional observers and the record
// store. The returned func releases everything in reverse order.
func openStore(ctx context.Context, cfg *config.Config, dbPath string, log *logging.Logger) (*orm.Manager, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	versions, err := prefs.Open(prefsPath(cfg, dbPath))
	if err != nil {
		return nil, nil, fmt.Errorf("opening preferences: %w", err)
	}
	log.Info("preferences loaded", "path", versions.Path())

	codec, err := orm.CodecByName(cfg.Store.BlobCodec)
	if err != nil {
		return nil, nil, err
	}

	opts := orm.Options{
		Path:                dbPath,
		WALMode:             cfg.Store.WALMode,
		BusyTimeout:         cfg.Store.BusyTimeout,
		Versions:            versions,
		VersionKey:          cfg.Store.VersionKey,
		NamespaceVersionKey: cfg.Store.NamespaceVersionKey,
		SchemaVersion:       cfg.Store.SchemaVersion,
		Tables:              demoTables(),
		Codec:               codec,
		Logger:              log,
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		closers = append(closers, func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		opts.Notifier = mqtt.NewChangePublisher(mqttClient, mqttClient.Topics(), mqttClient.QoS())
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topics", mqttClient.Topics().AllTableChanges(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		closers = append(closers, func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		opts.Recorder = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	store, err := orm.Open(ctx, opts)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("opening record store: %w", err)
	}
	closers = append(closers, func() {
		log.Info("closing record store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing record store", "error", closeErr)
		}
	})

	report := store.MigrationReport()
	log.Info("schema ready",
		"state", report.State.String(),
		"from", report.FromVersion,
		"to", report.ToVersion,
		"version_persisted", report.VersionPersisted,
	)
	if report.Err != nil {
		log.Warn("migration incomplete", "failed_tables", report.Failed, "error", report.Err)
	}

	return store, closeAll, nil
}

// runDemo creates the users table, writes one user, reads it back and
// deletes it again.
func runDemo(ctx context.Context, store *orm.Manager, log *logging.Logger) error {
	if err := orm.CreateTable[User](ctx, store); err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	user := User{
		ID:       1,
		Name:     "Zhang San Li Si",
		Profiles: []Profile{{Age: 25, Email: "test@example.com"}},
		IsSelf:   true,
		Role:     RoleOwner,
	}
	if err := orm.InsertOrUpdate(ctx, store, user, false); err != nil {
		return fmt.Errorf("writing user: %w", err)
	}

	users, err := orm.Query[User](ctx, store, "id = 1")
	if err != nil {
		return fmt.Errorf("querying users: %w", err)
	}
	for _, u := range users {
		log.Info("user loaded",
			"id", u.ID,
			"name", u.Name,
			"role", u.Role.String(),
			"profiles", len(u.Profiles),
		)
	}

	if err := store.DeleteTable(ctx, User{}.TableName(), map[string]string{"id": "1"}); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	log.Info("demo complete",
		"users_read", len(users),
		"table_exists", store.ExistsTable(ctx, User{}.TableName()),
	)
	return nil
}
