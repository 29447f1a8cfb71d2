package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/logging"
)

const testJWTSecret = "test-secret-key-at-least-32-chars!"

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails validation without a database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", writeTestConfig(t, `
site:
  id: test-site
database:
  path: ""
security:
  jwt:
    secret: "`+testJWTSecret+`"
`))
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_InvalidDriver verifies a bad driver declaration stops startup.
func TestRun_InvalidDriver(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GRAYLOGIC_CONFIG", writeTestConfig(t, `
site:
  id: test-site
database:
  path: "`+filepath.Join(dir, "test.db")+`"
api:
  host: "127.0.0.1"
  port: `+fmt.Sprint(freePort(t))+`
security:
  jwt:
    secret: "`+testJWTSecret+`"
drivers:
  - moniker: vars
    fields:
      - name: Setpoint
        type: Float
        access: RW
        limits: "Range:35,5"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an inverted range limit")
	}
}

// TestRun_StartupAndShutdown starts the core with MQTT and InfluxDB
// disabled, checks the API answers, then cancels.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	t.Setenv("GRAYLOGIC_CONFIG", writeTestConfig(t, `
site:
  id: test-site
database:
  path: "`+filepath.Join(dir, "test.db")+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: warn
  format: text
  output: stdout
api:
  host: "127.0.0.1"
  port: `+fmt.Sprint(port)+`
security:
  jwt:
    secret: "`+testJWTSecret+`"
drivers:
  - moniker: vars
    fields:
      - name: Setpoint
        type: Float
        access: RW
        limits: "Range:5,35"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	healthy := false
	for i := 0; i < 50 && !healthy; i++ {
		resp, err := http.Get(url) //nolint:noctx // test polling
		if err == nil {
			healthy = resp.StatusCode == http.StatusOK
			resp.Body.Close() //nolint:errcheck // test
		}
		if !healthy {
			time.Sleep(100 * time.Millisecond)
		}
	}
	if !healthy {
		t.Error("API never reported healthy")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("run() = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GRAYLOGIC_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

type fakePruner struct {
	calls chan time.Duration
}

func (p *fakePruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	p.calls <- olderThan
	return 1, nil
}

// TestPruneHistory verifies an immediate prune with the configured retention.
func TestPruneHistory(t *testing.T) {
	p := &fakePruner{calls: make(chan time.Duration, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pruneHistory(ctx, p, 48*time.Hour, logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard))
		close(done)
	}()

	select {
	case got := <-p.calls:
		if got != 48*time.Hour {
			t.Errorf("Prune(%v), want 48h", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no prune at startup")
	}
	cancel()
	<-done
}
