package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
)

// useMigrations installs fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := Migrations, MigrationsDir
	Migrations, MigrationsDir = fsys, dir
	t.Cleanup(func() { Migrations, MigrationsDir = origFS, origDir })
}

var testMigrations = fstest.MapFS{
	"sql/20260301_120000_field_values.up.sql": {Data: []byte(
		`CREATE TABLE test_values (moniker TEXT NOT NULL, field TEXT NOT NULL, PRIMARY KEY (moniker, field)) STRICT;`)},
	"sql/20260301_120000_field_values.down.sql": {Data: []byte(`DROP TABLE test_values;`)},
	"sql/20260315_090000_field_events.up.sql": {Data: []byte(
		`CREATE TABLE test_events (id TEXT PRIMARY KEY) STRICT;`)},
	"sql/20260315_090000_field_events.down.sql": {Data: []byte(`DROP TABLE test_events;`)},
	"sql/README.md": {Data: []byte("not a migration")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"test_values", "test_events"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	var versions []string
	for _, r := range applied {
		versions = append(versions, r.Version)
		if r.AppliedAt.IsZero() {
			t.Errorf("migration %s has no applied time", r.Version)
		}
	}
	if diff := cmp.Diff([]string{"20260301_120000", "20260315_090000"}, versions); diff != "" {
		t.Errorf("applied versions (-want +got):\n%s", diff)
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "test_events") {
		t.Error("latest migration was not rolled back")
	}
	if !tableExists(t, db, "test_values") {
		t.Error("earlier migration was rolled back too")
	}

	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Name != "field_events" {
		t.Errorf("pending after rollback = %+v, want field_events", pending)
	}
}

func TestMigrateFailureKeepsEarlierMigrations(t *testing.T) {
	broken := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte(`CREATE TABLE ok_table (id INTEGER) STRICT;`)},
		"20260102_000000_broken.up.sql": {Data: []byte(`CREATE TABLE ;`)},
	}
	useMigrations(t, broken, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() with broken SQL succeeded")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("migration before the failure was not kept")
	}
	applied, pending, _ := db.GetMigrationStatus(ctx)
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied %d pending %d, want 1 and 1", len(applied), len(pending))
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20260301_120000_field_values.up.sql", "20260301_120000", "field_values", true, true},
		{"20260301_120000_field_values.down.sql", "20260301_120000", "field_values", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "", true, true},
		{"readme.txt", "", "", false, false},
		{"20260301_120000_field_values.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
		{"2026_1200_short.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantIsUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, isUp, tt.wantVersion, tt.wantName, tt.wantIsUp)
			}
		})
	}
}
