package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
)

// Config is the root configuration structure for the field I/O core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	FieldIO   FieldIOConfig   `yaml:"fieldio"`

	// Drivers are virtual variable drivers declared at startup. Their
	// fields are written only through the API.
	Drivers []driver.Declaration `yaml:"drivers"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. Tokens are HS256-signed with
// Secret and must carry Issuer when it is set.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// FieldIOConfig tunes the field data plane.
type FieldIOConfig struct {
	// MaxPollFields caps the number of fields one poll may name.
	MaxPollFields int `yaml:"max_poll_fields"`

	// HistoryQueue is the length of the history recorder queue.
	HistoryQueue int `yaml:"history_queue"`

	// EventQueue is the length of the trigger event dispatcher queue.
	EventQueue int `yaml:"event_queue"`

	// HistoryRetention is how long field_history rows are kept, in hours.
	// Zero keeps them forever.
	HistoryRetention int `yaml:"history_retention"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/fieldio.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-fieldio",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		FieldIO: FieldIOConfig{
			MaxPollFields:    10000,
			HistoryQueue:     1024,
			EventQueue:       256,
			HistoryRetention: 24 * 30,
		},
	}
}

// Environment overrides, keyed by variable name. Unset or unparsable
// values leave the file value in place.
func envStrings(cfg *Config) map[string]*string {
	return map[string]*string{
		"GRAYLOGIC_SITE_ID":        &cfg.Site.ID,
		"GRAYLOGIC_DATABASE_PATH":  &cfg.Database.Path,
		"GRAYLOGIC_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"GRAYLOGIC_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"GRAYLOGIC_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"GRAYLOGIC_API_HOST":       &cfg.API.Host,
		"GRAYLOGIC_INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"GRAYLOGIC_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"GRAYLOGIC_LOG_LEVEL":      &cfg.Logging.Level,
		"GRAYLOGIC_JWT_SECRET":     &cfg.Security.JWT.Secret,
		"GRAYLOGIC_JWT_ISSUER":     &cfg.Security.JWT.Issuer,
	}
}

func envInts(cfg *Config) map[string]*int {
	return map[string]*int{
		"GRAYLOGIC_MQTT_PORT":                 &cfg.MQTT.Broker.Port,
		"GRAYLOGIC_API_PORT":                  &cfg.API.Port,
		"GRAYLOGIC_FIELDIO_MAX_POLL_FIELDS":   &cfg.FieldIO.MaxPollFields,
		"GRAYLOGIC_FIELDIO_HISTORY_RETENTION": &cfg.FieldIO.HistoryRetention,
	}
}

func envBools(cfg *Config) map[string]*bool {
	return map[string]*bool{
		"GRAYLOGIC_MQTT_ENABLED":     &cfg.MQTT.Enabled,
		"GRAYLOGIC_INFLUXDB_ENABLED": &cfg.InfluxDB.Enabled,
	}
}

// applyEnvOverrides applies GRAYLOGIC_* environment variables on top of
// the file values.
func applyEnvOverrides(cfg *Config) {
	for key, dst := range envStrings(cfg) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	for key, dst := range envInts(cfg) {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = n
		}
	}
	for key, dst := range envBools(cfg) {
		if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.FieldIO.MaxPollFields < 1 {
		errs = append(errs, "fieldio.max_poll_fields must be positive")
	}
	if c.FieldIO.HistoryQueue < 1 || c.FieldIO.EventQueue < 1 {
		errs = append(errs, "fieldio.history_queue and fieldio.event_queue must be positive")
	}
	if c.FieldIO.HistoryRetention < 0 {
		errs = append(errs, "fieldio.history_retention must not be negative")
	}

	seen := make(map[string]bool, len(c.Drivers))
	for i, d := range c.Drivers {
		if err := driver.ValidateMoniker(d.Moniker); err != nil {
			errs = append(errs, fmt.Sprintf("drivers[%d]: %v", i, err))
			continue
		}
		if seen[d.Moniker] {
			errs = append(errs, fmt.Sprintf("drivers[%d]: duplicate moniker %q", i, d.Moniker))
		}
		seen[d.Moniker] = true
	}

	// Security validation - JWT secret is REQUIRED.
	// Field writes drive physical outputs, so the API is never left open.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetHistoryRetention returns how long field history is kept. Zero means
// forever.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.FieldIO.HistoryRetention) * time.Hour
}
