package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported blob codec names for StoreConfig.BlobCodec.
const (
	CodecJSON    = "json"
	CodecBSON    = "bson"
	CodecMsgpack = "msgpack"
)

// Config is the root configuration structure for recordstore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// StoreConfig contains the embedded SQLite store settings.
type StoreConfig struct {
	// CacheDir is the directory under which database folders are created.
	// Empty means the platform user cache directory (os.UserCacheDir).
	CacheDir string `yaml:"cache_dir"`

	// UserID optionally namespaces the database folder: "<user_id>DB" instead of "DB".
	UserID string `yaml:"user_id"`

	// FileName is the database file name inside the database folder.
	FileName string `yaml:"file_name"`

	// SchemaVersion is the current schema version token. A change triggers migration.
	SchemaVersion string `yaml:"schema_version"`

	// VersionKey is the preferences key under which the applied version is stored.
	VersionKey string `yaml:"version_key"`

	// NamespaceVersionKey scopes VersionKey to the resolved database path so
	// per-user databases can evolve independently.
	NamespaceVersionKey bool `yaml:"namespace_version_key"`

	// PreferencesFile is the YAML file holding process-wide preferences.
	// Empty means "<cache_dir>/recordstore-prefs.yaml".
	PreferencesFile string `yaml:"preferences_file"`

	// BlobCodec selects the payload format for blob columns: json, bson or msgpack.
	BlobCodec string `yaml:"blob_codec"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains settings for publishing table change events.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// MaxDelay caps the automatic reconnect backoff (seconds).
	MaxDelay int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the operation metrics sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RECORDSTORE_SECTION_KEY
// For example: RECORDSTORE_STORE_CACHE_DIR, RECORDSTORE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file is present.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			FileName:      "recordstore.db",
			SchemaVersion: "1.0",
			VersionKey:    "DBVersion",
			BlobCodec:     CodecJSON,
			WALMode:       true,
			BusyTimeout:   5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "recordstore",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "recordstore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				MaxDelay: 60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "recordstore",
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("RECORDSTORE_STORE_CACHE_DIR"); v != "" {
		cfg.Store.CacheDir = v
	}
	if v := os.Getenv("RECORDSTORE_STORE_USER_ID"); v != "" {
		cfg.Store.UserID = v
	}
	if v := os.Getenv("RECORDSTORE_STORE_SCHEMA_VERSION"); v != "" {
		cfg.Store.SchemaVersion = v
	}
	if v := os.Getenv("RECORDSTORE_STORE_BLOB_CODEC"); v != "" {
		cfg.Store.BlobCodec = v
	}

	// MQTT
	if v := os.Getenv("RECORDSTORE_MQTT_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.MQTT.Enabled = enabled
		}
	}
	if v := os.Getenv("RECORDSTORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RECORDSTORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RECORDSTORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("RECORDSTORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Store.FileName == "" {
		errs = append(errs, "store.file_name is required")
	}
	if strings.ContainsAny(c.Store.FileName, `/\`) {
		errs = append(errs, "store.file_name must not contain path separators")
	}
	if c.Store.SchemaVersion == "" {
		errs = append(errs, "store.schema_version is required")
	}
	if c.Store.VersionKey == "" {
		errs = append(errs, "store.version_key is required")
	}
	if c.Store.BusyTimeout < 0 {
		errs = append(errs, "store.busy_timeout must not be negative")
	}

	switch strings.ToLower(c.Store.BlobCodec) {
	case CodecJSON, CodecBSON, CodecMsgpack:
	default:
		errs = append(errs, fmt.Sprintf("store.blob_codec %q is not one of json, bson, msgpack", c.Store.BlobCodec))
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
