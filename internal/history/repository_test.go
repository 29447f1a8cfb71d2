package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-fieldio/migrations"
)

// setupTestDB opens a temporary database with the real schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

// snapshot builds a snapshot of a fresh store after writing text.
func snapshot(t *testing.T, moniker string, def field.Definition, text string) field.Snapshot {
	t.Helper()
	st, err := field.NewStoreFromDefinition(moniker, def)
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		if _, err := st.SetValueFromText(text); err != nil {
			t.Fatal(err)
		}
	}
	return st.Snapshot()
}

var setpointDef = field.Definition{Name: "Setpoint", Type: field.TypeFloat, Access: field.AccessReadWrite, Limits: "Range:5,35"}

func TestSaveAndLastValue(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, ok, err := repo.LastValue(ctx, "hvac", "Setpoint"); err != nil || ok {
		t.Fatalf("LastValue() on empty db = %v, %v", ok, err)
	}

	for _, text := range []string{"20", "21.5"} {
		rec, err := RecordFromSnapshot(snapshot(t, "hvac", setpointDef, text))
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save(%s) error = %v", text, err)
		}
	}

	data, ok, err := repo.LastValue(ctx, "hvac", "Setpoint")
	if err != nil || !ok {
		t.Fatalf("LastValue() = %v, %v", ok, err)
	}
	v, err := field.DecodeValue(data)
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}
	if v.Float() != 21.5 {
		t.Errorf("restored value = %v, want 21.5", v)
	}

	// The persisted form restores a store without a trigger firing.
	st := field.NewStore("hvac", setpointDef, nil)
	if err := st.Restore(data); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if st.FormatText() != "21.5" {
		t.Errorf("restored store = %s", st.FormatText())
	}
}

func TestValues(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	defs := []struct {
		def  field.Definition
		text string
	}{
		{setpointDef, "19"},
		{field.Definition{Name: "Mode", Type: field.TypeString, Access: field.AccessRead, Limits: "Enum:Heat,Cool"}, "Cool"},
		{field.Definition{Name: "Power", Type: field.TypeBool, Access: field.AccessReadWrite}, "True"},
	}
	for _, d := range defs {
		rec, _ := RecordFromSnapshot(snapshot(t, "hvac", d.def, d.text))
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	other, _ := RecordFromSnapshot(snapshot(t, "lights", field.Definition{Name: "Level", Type: field.TypeCard, Access: field.AccessRead}, "3"))
	_ = repo.Save(ctx, other)

	got, err := repo.Values(ctx, "hvac")
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	type row struct {
		Field string
		Type  field.Type
		Text  string
	}
	var rows []row
	for _, rec := range got {
		rows = append(rows, row{rec.Field, rec.Type, rec.Text})
	}
	want := []row{
		{"Mode", field.TypeString, "Cool"},
		{"Power", field.TypeBool, "True"},
		{"Setpoint", field.TypeFloat, "19"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("Values() (-want +got):\n%s", diff)
	}
}

func TestHistory(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	st := field.NewStore("hvac", setpointDef, nil)
	for _, text := range []string{"10", "11", "12"} {
		if _, err := st.SetValueFromText(text); err != nil {
			t.Fatal(err)
		}
		rec, _ := RecordFromSnapshot(st.Snapshot())
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	st.SetInError(true)
	rec, _ := RecordFromSnapshot(st.Snapshot())
	_ = repo.Save(ctx, rec)

	entries, err := repo.History(ctx, "hvac", "Setpoint", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	type row struct {
		Text    string
		InError bool
		Serial  uint32
	}
	var got []row
	for _, e := range entries {
		got = append(got, row{e.Text, e.InError, e.Serial})
	}
	want := []row{{"12", true, 4}, {"12", false, 3}, {"11", false, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("History() newest first (-want +got):\n%s", diff)
	}

	all, _ := repo.History(ctx, "hvac", "Setpoint", 0)
	if len(all) != 4 {
		t.Errorf("History(limit 0) returned %d entries, want 4", len(all))
	}
}

func TestSaveRejectsIncompleteRecord(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	err := repo.Save(context.Background(), Record{Field: "X", Data: []byte{1}})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Save() error = %v, want ErrInvalidRecord", err)
	}
}

func TestPrune(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	old, _ := RecordFromSnapshot(snapshot(t, "hvac", setpointDef, "10"))
	old.At = time.Now().Add(-48 * time.Hour)
	recent, _ := RecordFromSnapshot(snapshot(t, "hvac", setpointDef, "11"))
	_ = repo.Save(ctx, old)
	_ = repo.Save(ctx, recent)

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d rows, want 1", n)
	}
	if _, ok, _ := repo.LastValue(ctx, "hvac", "Setpoint"); !ok {
		t.Error("Prune() removed the last value")
	}
	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) succeeded")
	}
}

func TestEventLog(t *testing.T) {
	log := NewEventLog(setupTestDB(t))
	ctx := context.Background()

	st := field.NewStore("hvac", setpointDef, nil)
	sink := &eventCollector{}
	st.SetEventSink(sink)
	if err := st.SetTrigger(&field.TriggerConfig{Kind: field.TriggerAnyChange}); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"20", "21", "22"} {
		_, _ = st.SetValueFromText(text)
	}
	lights := field.NewStore("lights", field.Definition{Name: "On", Type: field.TypeBool, Access: field.AccessReadWrite}, nil)
	lights.SetEventSink(sink)
	_ = lights.SetTrigger(&field.TriggerConfig{Kind: field.TriggerAnyChange})
	_, _ = lights.SetBool(true)

	for _, ev := range sink.events {
		if err := log.Append(ctx, ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	// Duplicate delivery is harmless.
	if err := log.Append(ctx, sink.events[0]); err != nil {
		t.Fatalf("Append(duplicate) error = %v", err)
	}

	page, err := log.List(ctx, EventFilter{Moniker: "hvac", Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Events) != 2 {
		t.Fatalf("List() total %d, page %d; want 3 and 2", page.Total, len(page.Events))
	}
	if diff := cmp.Diff(sink.events[2], page.Events[0], cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("newest event (-want +got):\n%s", diff)
	}

	all, _ := log.List(ctx, EventFilter{})
	if all.Total != 4 || all.Limit != defaultHistoryLimit {
		t.Errorf("List() total %d limit %d", all.Total, all.Limit)
	}
	none, _ := log.List(ctx, EventFilter{Moniker: "hvac", Field: "Mode"})
	if none.Total != 0 || none.Events == nil {
		t.Errorf("List(no match) = %+v, want an empty page", none)
	}
}

type eventCollector struct {
	events []field.TriggerEvent
}

func (c *eventCollector) FieldTriggered(ev field.TriggerEvent) {
	c.events = append(c.events, ev)
}
