package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docopt/docopt-go"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-fieldio/internal/api"
	"github.com/nerrad567/gray-logic-fieldio/internal/driver"
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/logging"
)

const (
	testSecret = "test-secret-key-at-least-32-chars!"
	testIssuer = "graylogic-fieldio"
)

func parse(t *testing.T, args ...string) docopt.Opts {
	t.Helper()
	opts, err := docopt.ParseArgs(usage, args, version)
	if err != nil {
		t.Fatalf("ParseArgs(%v) = %v", args, err)
	}
	return opts
}

func newCore(t *testing.T) (*driver.Registry, string) {
	t.Helper()
	registry := driver.NewRegistry()
	specs := []driver.FieldSpec{
		{Definition: field.Definition{Name: "Setpoint", Type: field.TypeFloat, Access: field.AccessReadWrite, Limits: "Range:5,35"}},
		{Definition: field.Definition{Name: "Power", Type: field.TypeBool, Access: field.AccessReadWrite}},
	}
	if _, err := registry.Declare(context.Background(), "hvac", specs); err != nil {
		t.Fatal(err)
	}
	lights := []driver.FieldSpec{{Definition: field.Definition{Name: "On", Type: field.TypeBool, Access: field.AccessReadWrite}}}
	if _, err := registry.Declare(context.Background(), "lights", lights); err != nil {
		t.Fatal(err)
	}

	srv, err := api.New(api.Deps{
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret, Issuer: testIssuer}},
		Logger:   logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard),
		Registry: registry,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return registry, ts.URL
}

func TestToken(t *testing.T) {
	var out bytes.Buffer
	opts := parse(t, "token", "--secret="+testSecret, "--subject=ops", "--ttl=5m")
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() = %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithIssuer(testIssuer))
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("subject = %q, want ops", claims.Subject)
	}

	if err := run(context.Background(), parse(t, "token", "--secret="+testSecret, "--ttl=soon"), &out); err == nil {
		t.Error("run() accepted an invalid ttl")
	}
}

func TestTopology(t *testing.T) {
	_, url := newCore(t)

	var out bytes.Buffer
	if err := run(context.Background(), parse(t, "topology", "--url="+url, "--secret="+testSecret), &out); err != nil {
		t.Fatalf("run() = %v", err)
	}
	for _, want := range []string{"hvac", "Setpoint", "Float", "Range:5,35", "lights"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("topology output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := run(context.Background(), parse(t, "topology", "--url="+url, "--secret="+testSecret, "--json"), &out); err != nil {
		t.Fatalf("run(--json) = %v", err)
	}
	var topo fieldio.Topology
	if err := json.Unmarshal(out.Bytes(), &topo); err != nil {
		t.Fatalf("decoding json topology: %v", err)
	}
	if len(topo.Drivers) != 2 {
		t.Errorf("drivers = %d, want 2", len(topo.Drivers))
	}
}

func TestPoll(t *testing.T) {
	registry, url := newCore(t)
	if _, err := registry.WriteField("hvac", "Setpoint", "21"); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.WriteField("lights", "On", "True"); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	opts := parse(t, "poll", "--url="+url, "--secret="+testSecret, "--driver=hvac", "--count=1")
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run() = %v", err)
	}
	if !strings.Contains(out.String(), "hvac.Setpoint = 21") {
		t.Errorf("poll output missing setpoint:\n%s", out.String())
	}
	if strings.Contains(out.String(), "lights.On") {
		t.Errorf("poll output includes an unselected driver:\n%s", out.String())
	}
}

func TestRun_NeedsCredentials(t *testing.T) {
	t.Setenv("GRAYLOGIC_JWT_SECRET", "")
	if err := run(context.Background(), parse(t, "topology"), io.Discard); err == nil {
		t.Error("run() without token or secret should fail")
	}
}

func TestDriverSelector(t *testing.T) {
	sel := driverSelector(" hvac, lights ,")
	for moniker, want := range map[string]bool{"hvac": true, "lights": true, "boiler": false, "": false} {
		if got := sel(moniker, fieldio.FieldTopology{}); got != want {
			t.Errorf("selector(%q) = %v, want %v", moniker, got, want)
		}
	}
}
