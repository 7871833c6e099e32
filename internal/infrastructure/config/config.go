package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the device agent.
// It is loaded from YAML and can be overridden by CIOT_* environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Broker    BrokerConfig    `yaml:"broker"`
	Register  RegisterConfig  `yaml:"register"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig describes the device this agent runs on.
type DeviceConfig struct {
	// Name is the human-readable device name posted after connecting.
	Name string `yaml:"name"`

	// Version is the firmware version posted after connecting.
	Version string `yaml:"version"`

	// Protocol selects the transport. Only "mqtt" is supported.
	Protocol string `yaml:"protocol"`

	// HeartbeatInterval is how often basic info is re-posted. 0 disables it.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// BrokerConfig contains the IoT broker connection settings.
type BrokerConfig struct {
	URL  string `yaml:"url"`
	Port string `yaml:"port"`

	// CACert is a PEM file enabling one-way TLS. Empty means plain TCP.
	CACert string `yaml:"ca_cert"`

	KeepAlive    time.Duration `yaml:"keep_alive"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

// RegisterConfig selects and configures the device authenticator.
type RegisterConfig struct {
	// Mode is "static" (pre-provisioned identity) or "http" (dynamic registration).
	Mode string `yaml:"mode"`

	URL           string              `yaml:"url"`
	ProductKey    string              `yaml:"product_key"`
	ProductSecret string              `yaml:"product_secret"`
	DeviceID      string              `yaml:"device_id"`
	DeviceSecret  string              `yaml:"device_secret"`
	Identifiers   map[string][]string `yaml:"identifiers"`

	// Cache stores issued identities in the local database.
	Cache bool `yaml:"cache"`
}

// LifecycleConfig tunes connection teardown and request handling.
type LifecycleConfig struct {
	DisconnectGrace  time.Duration `yaml:"disconnect_grace"`
	TeardownPoll     time.Duration `yaml:"teardown_poll"`
	TeardownTimeout  time.Duration `yaml:"teardown_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	Workers          int           `yaml:"workers"`
	PreserveIdentity bool          `yaml:"preserve_identity"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// InfluxDBConfig contains the message-log sink settings.
type InfluxDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP server timeouts.
type APITimeoutConfig struct {
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
	Idle  time.Duration `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. CIOT_* environment variables
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with the agent's defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Version:           "1.0.0",
			Protocol:          "mqtt",
			HeartbeatInterval: 5 * time.Minute,
		},
		Broker: BrokerConfig{
			Port:         "8883",
			KeepAlive:    30 * time.Second,
			ReconnectMin: 2 * time.Second,
			ReconnectMax: 60 * time.Second,
		},
		Register: RegisterConfig{
			Mode: "static",
		},
		Lifecycle: LifecycleConfig{
			DisconnectGrace: time.Second,
			TeardownPoll:    100 * time.Millisecond,
			TeardownTimeout: 30 * time.Second,
			RequestTimeout:  10 * time.Second,
			Workers:         4,
		},
		Database: DatabaseConfig{
			Path:        "./data/ciotd.db",
			WALMode:     true,
			BusyTimeout: 5 * time.Second,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "iot_message_log",
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10 * time.Second,
				Write: 10 * time.Second,
				Idle:  60 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies CIOT_* environment variables. Secrets are
// expected to arrive this way rather than through the file.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"CIOT_BROKER_URL", &cfg.Broker.URL},
		{"CIOT_CA_CERT", &cfg.Broker.CACert},
		{"CIOT_PRODUCT_SECRET", &cfg.Register.ProductSecret},
		{"CIOT_DEVICE_SECRET", &cfg.Register.DeviceSecret},
		{"CIOT_DATABASE_PATH", &cfg.Database.Path},
		{"CIOT_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"CIOT_LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.URL == "" {
		errs = append(errs, "broker.url is required (or set CIOT_BROKER_URL)")
	}
	if c.Device.Name == "" {
		errs = append(errs, "device.name is required")
	}
	if !strings.EqualFold(c.Device.Protocol, "mqtt") {
		errs = append(errs, fmt.Sprintf("device.protocol %q is not supported (only mqtt)", c.Device.Protocol))
	}
	if c.Broker.ReconnectMin > c.Broker.ReconnectMax {
		errs = append(errs, "broker.reconnect_min must not exceed broker.reconnect_max")
	}

	if c.Register.ProductKey == "" {
		errs = append(errs, "register.product_key is required")
	}
	switch c.Register.Mode {
	case "static":
		if c.Register.DeviceID == "" {
			errs = append(errs, "register.device_id is required in static mode")
		}
		if c.Register.DeviceSecret == "" && c.Register.ProductSecret == "" {
			errs = append(errs, "register.device_secret is required in static mode (or set CIOT_DEVICE_SECRET)")
		}
	case "http":
		if c.Register.URL == "" {
			errs = append(errs, "register.url is required in http mode")
		}
		if c.Register.ProductSecret == "" {
			errs = append(errs, "register.product_secret is required in http mode (or set CIOT_PRODUCT_SECRET)")
		}
		if len(c.Register.Identifiers) == 0 {
			errs = append(errs, "register.identifiers must not be empty in http mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("register.mode %q must be static or http", c.Register.Mode))
	}
	if c.Register.Cache && !c.Database.Enabled {
		errs = append(errs, "register.cache requires database.enabled")
	}

	if c.Lifecycle.Workers < 1 {
		errs = append(errs, "lifecycle.workers must be at least 1")
	}
	if c.Lifecycle.TeardownPoll <= 0 {
		errs = append(errs, "lifecycle.teardown_poll must be positive")
	}
	if c.Lifecycle.TeardownTimeout < 0 {
		errs = append(errs, "lifecycle.teardown_timeout must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// APIAddr returns the status API listen address.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
