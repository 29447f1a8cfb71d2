package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
fieldio:
  max_poll_fields: 500
security:
  jwt:
    secret: "`+validJWTSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.FieldIO.MaxPollFields != 500 {
		t.Errorf("FieldIO.MaxPollFields = %d, want 500", cfg.FieldIO.MaxPollFields)
	}
	// Unset keys keep their defaults.
	if cfg.FieldIO.HistoryQueue != 1024 || cfg.API.Port != 8090 {
		t.Errorf("defaults lost: history_queue=%d api.port=%d", cfg.FieldIO.HistoryQueue, cfg.API.Port)
	}
}

func TestLoad_Drivers(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+validJWTSecret+`"
drivers:
  - moniker: vars
    fields:
      - name: Setpoint
        type: Float
        access: RW
        limits: "Range:5,35"
      - name: Occupied
        type: Bool
        access: RW
        trigger:
          kind: AnyChange
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []driver.Declaration{{
		Moniker: "vars",
		Fields: []driver.FieldSpec{
			{Definition: field.Definition{Name: "Setpoint", Type: field.TypeFloat, Access: field.AccessReadWrite, Limits: "Range:5,35"}},
			{
				Definition: field.Definition{Name: "Occupied", Type: field.TypeBool, Access: field.AccessReadWrite},
				Trigger:    &field.TriggerConfig{Kind: field.TriggerAnyChange},
			},
		},
	}}
	if diff := cmp.Diff(want, cfg.Drivers); diff != "" {
		t.Errorf("Drivers (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFieldType(t *testing.T) {
	path := writeConfig(t, `
drivers:
  - moniker: vars
    fields:
      - name: X
        type: Decimal
        access: RW
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an unknown field type")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"zero poll limit", func(c *Config) { c.FieldIO.MaxPollFields = 0 }, "max_poll_fields"},
		{"zero event queue", func(c *Config) { c.FieldIO.EventQueue = 0 }, "event_queue"},
		{"negative retention", func(c *Config) { c.FieldIO.HistoryRetention = -1 }, "history_retention"},
		{"bad moniker", func(c *Config) { c.Drivers = []driver.Declaration{{Moniker: "9lives"}} }, "drivers[0]"},
		{"duplicate moniker", func(c *Config) {
			c.Drivers = []driver.Declaration{{Moniker: "vars"}, {Moniker: "vars"}}
		}, "duplicate moniker"},
		{"missing JWT secret", func(c *Config) { c.Security.JWT.Secret = "" }, "security.jwt.secret is required"},
		{"JWT secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		FieldIO: FieldIOConfig{HistoryRetention: 48},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetHistoryRetention(); got != 48*time.Hour {
		t.Errorf("GetHistoryRetention() = %v, want 48h", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_MQTT_ENABLED", "true")
	t.Setenv("GRAYLOGIC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_API_PORT", "9000")
	t.Setenv("GRAYLOGIC_INFLUXDB_ENABLED", "1")
	t.Setenv("GRAYLOGIC_INFLUXDB_URL", "http://influx:8086")
	t.Setenv("GRAYLOGIC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_LOG_LEVEL", "debug")
	t.Setenv("GRAYLOGIC_FIELDIO_MAX_POLL_FIELDS", "250")
	t.Setenv("GRAYLOGIC_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	got := map[string]any{
		"database.path":           cfg.Database.Path,
		"mqtt.enabled":            cfg.MQTT.Enabled,
		"mqtt.host":               cfg.MQTT.Broker.Host,
		"mqtt.username":           cfg.MQTT.Auth.Username,
		"mqtt.password":           cfg.MQTT.Auth.Password,
		"api.host":                cfg.API.Host,
		"api.port":                cfg.API.Port,
		"influxdb.enabled":        cfg.InfluxDB.Enabled,
		"influxdb.url":            cfg.InfluxDB.URL,
		"influxdb.token":          cfg.InfluxDB.Token,
		"logging.level":           cfg.Logging.Level,
		"fieldio.max_poll_fields": cfg.FieldIO.MaxPollFields,
		"jwt.secret":              cfg.Security.JWT.Secret,
	}
	want := map[string]any{
		"database.path":           "/custom/path.db",
		"mqtt.enabled":            true,
		"mqtt.host":               "mqtt.example.com",
		"mqtt.username":           "testuser",
		"mqtt.password":           "testpass",
		"api.host":                "192.168.1.1",
		"api.port":                9000,
		"influxdb.enabled":        true,
		"influxdb.url":            "http://influx:8086",
		"influxdb.token":          "secret-token",
		"logging.level":           "debug",
		"fieldio.max_poll_fields": 250,
		"jwt.secret":              "jwt-secret",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overrides (-want +got):\n%s", diff)
	}
}

func TestApplyEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_API_PORT", "eighty")
	t.Setenv("GRAYLOGIC_MQTT_ENABLED", "perhaps")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8090 || cfg.MQTT.Enabled {
		t.Errorf("malformed overrides applied: port=%d mqtt.enabled=%v", cfg.API.Port, cfg.MQTT.Enabled)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave MQTT and InfluxDB disabled")
	}
	if cfg.FieldIO.MaxPollFields != 10000 {
		t.Errorf("defaultConfig FieldIO.MaxPollFields = %d, want 10000", cfg.FieldIO.MaxPollFields)
	}
}
