package field

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recordingSink collects trigger events and change snapshots.
type recordingSink struct {
	mu      sync.Mutex
	events  []TriggerEvent
	changes []Snapshot
}

func (r *recordingSink) FieldTriggered(ev TriggerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) FieldChanged(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, s)
}

func (r *recordingSink) eventValues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, ev := range r.events {
		out = append(out, ev.Value)
	}
	return out
}

func newTestStore(t *testing.T, def Definition) *Store {
	t.Helper()
	if def.Access == 0 {
		def.Access = AccessReadWrite
	}
	s, err := NewStoreFromDefinition("vars", def)
	if err != nil {
		t.Fatalf("NewStoreFromDefinition(%+v) = %v", def, err)
	}
	return s
}

func TestNewStoreLimitTypeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewStore with an Int limit on a Card field did not panic")
		}
	}()
	NewStore("vars", Definition{Name: "Count", Type: TypeCard, Access: AccessRead}, MustParseLimit(TypeInt, ""))
}

func TestNewStoreFromDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{"bad limits", Definition{Name: "Level", Type: TypeInt, Access: AccessRead, Limits: "Range:9,1"}, ErrLimitSyntax},
		{"no name", Definition{Type: TypeInt, Access: AccessRead}, ErrInvalidDefinition},
		{"bad type", Definition{Name: "X", Type: Type(0), Access: AccessRead}, ErrInvalidDefinition},
		{"bad access", Definition{Name: "X", Type: TypeInt}, ErrInvalidDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStoreFromDefinition("vars", tt.def); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewStoreFromDefinition() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreStartsAtLimitDefault(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Mode", Type: TypeString, Limits: "Enum:Auto,Heat,Cool"})
	if got := s.FormatText(); got != "Auto" {
		t.Errorf("initial value = %q, want Auto", got)
	}
	if s.SerialNum() != 0 || s.State() != StateNoValue {
		t.Errorf("initial serial %d state %s", s.SerialNum(), s.State())
	}
}

func TestAlwaysWrite(t *testing.T) {
	tests := []struct {
		alwaysWrite bool
		wantResult  Result
		wantSerial  uint32
	}{
		{false, ResultUnchanged, 1},
		{true, ResultChanged, 2},
	}
	for _, tt := range tests {
		s := newTestStore(t, Definition{Name: "Pulse", Type: TypeCard, AlwaysWrite: tt.alwaysWrite})
		if _, err := s.SetCard(3); err != nil {
			t.Fatal(err)
		}
		res, err := s.SetCard(3)
		if err != nil {
			t.Fatal(err)
		}
		if res != tt.wantResult || s.SerialNum() != tt.wantSerial {
			t.Errorf("always_write=%v: rewrite = %s serial %d, want %s serial %d",
				tt.alwaysWrite, res, s.SerialNum(), tt.wantResult, tt.wantSerial)
		}
	}
}

func TestSetValueFromTextValidationError(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Level", Type: TypeInt, Limits: "Range:-1,10"})
	_, _ = s.SetInt(4)

	res, err := s.SetValueFromText("11")
	if res != ResultInvalid {
		t.Errorf("result = %s, want Invalid", res)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	want := ValidationError{Field: "Level", Text: "11", Limit: "Range:-1,10", Reason: ve.Reason}
	if diff := cmp.Diff(want, *ve); diff != "" {
		t.Errorf("ValidationError mismatch (-want +got):\n%s", diff)
	}
	if s.FormatText() != "4" || s.SerialNum() != 1 {
		t.Errorf("store changed after invalid write: %s serial %d", s.FormatText(), s.SerialNum())
	}

	// Native writes are validated too.
	if _, err := s.SetInt(-2); !errors.Is(err, ErrValidation) {
		t.Errorf("SetInt(-2) = %v, want ErrValidation", err)
	}
}

func TestStoreStateMachine(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Temp", Type: TypeFloat})

	steps := []struct {
		name string
		do   func()
		want State
	}{
		{"fresh", func() {}, StateNoValue},
		{"error before first value", func() { s.SetInError(true) }, StateInError},
		{"good value", func() { s.SetFloat(20.5) }, StateHasValue},
		{"error", func() { s.SetInError(true) }, StateInError},
		{"error cleared", func() { s.SetInError(false) }, StateHasValue},
		{"value again", func() { s.SetFloat(21) }, StateHasValue},
	}
	for _, st := range steps {
		st.do()
		if got := s.State(); got != st.want {
			t.Errorf("%s: State() = %s, want %s", st.name, got, st.want)
		}
	}
}

// Trigger "value > 100", unidirectional, over 50, 150, 200, 50, 150.
func TestUnidirectionalTriggerScenario(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Power", Type: TypeInt})
	sink := &recordingSink{}
	s.SetEventSink(sink)
	if err := s.SetTrigger(&TriggerConfig{
		Kind:       TriggerExpression,
		Expression: "value > 100",
		Latch:      LatchUnidirectional,
	}); err != nil {
		t.Fatal(err)
	}

	for _, v := range []int32{50, 150, 200, 50, 150} {
		if _, err := s.SetInt(v); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"150", "150"}, sink.eventValues()); diff != "" {
		t.Errorf("fired values mismatch (-want +got):\n%s", diff)
	}

	ev := sink.events[0]
	if ev.Field != "Power" || ev.Moniker != "vars" || ev.Serial != 2 {
		t.Errorf("event = %+v", ev)
	}
	if sink.events[0].ID == sink.events[1].ID {
		t.Error("events share an id")
	}
}

func TestAnyChangeTriggerFiresOnChangedOnly(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Scene", Type: TypeCard})
	sink := &recordingSink{}
	s.SetEventSink(sink)
	if err := s.SetTrigger(&TriggerConfig{Kind: TriggerAnyChange}); err != nil {
		t.Fatal(err)
	}

	for _, v := range []uint32{1, 1, 2, 2, 3} {
		_, _ = s.SetCard(v)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, sink.eventValues()); diff != "" {
		t.Errorf("fired values mismatch (-want +got):\n%s", diff)
	}
}

func TestTriggerEventCarriesPreviousError(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Door", Type: TypeBool})
	sink := &recordingSink{}
	s.SetEventSink(sink)
	_ = s.SetTrigger(&TriggerConfig{Kind: TriggerAnyChange})

	s.SetInError(true)
	_, _ = s.SetBool(true)
	_, _ = s.SetBool(false)

	if len(sink.events) != 2 {
		t.Fatalf("got %d events, want 2", len(sink.events))
	}
	if !sink.events[0].PrevInError || sink.events[1].PrevInError {
		t.Errorf("PrevInError = %v, %v; want true, false", sink.events[0].PrevInError, sink.events[1].PrevInError)
	}
}

func TestObserverSeesEveryChange(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Count", Type: TypeCard})
	obs := &recordingSink{}
	s.SetObserver(obs)

	_, _ = s.SetCard(1)
	_, _ = s.SetCard(1)
	s.SetInError(true)
	s.SetInError(false)
	_, _ = s.SetCard(2)

	var serials []uint32
	for _, c := range obs.changes {
		serials = append(serials, c.Value.SerialNum())
	}
	if diff := cmp.Diff([]uint32{1, 2, 3}, serials); diff != "" {
		t.Errorf("observed serials mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverSeesChangesInCommitOrder(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Count", Type: TypeCard})
	obs := &recordingSink{}
	s.SetObserver(obs)

	const writers, writes = 8, 200
	var wg sync.WaitGroup
	for g := 0; g < writers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= writes; i++ {
				_, _ = s.SetCard(uint32(g*10000 + i))
			}
		}(g)
	}
	wg.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.changes) != writers*writes {
		t.Fatalf("observed %d changes, want %d", len(obs.changes), writers*writes)
	}
	for i, c := range obs.changes {
		if got := c.Value.SerialNum(); got != uint32(i+1) {
			t.Fatalf("change %d has serial %d, want %d", i, got, i+1)
		}
	}
}

func TestStep(t *testing.T) {
	t.Run("enum wraps", func(t *testing.T) {
		s := newTestStore(t, Definition{Name: "Fan", Type: TypeString, Limits: "Enum:Off,Low,High"})
		var got []string
		for i := 0; i < 4; i++ {
			if _, err := s.Step(true, true); err != nil {
				t.Fatal(err)
			}
			got = append(got, s.FormatText())
		}
		if diff := cmp.Diff([]string{"Low", "High", "Off", "Low"}, got); diff != "" {
			t.Errorf("step sequence mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("range stops at end", func(t *testing.T) {
		s := newTestStore(t, Definition{Name: "Vol", Type: TypeCard, Limits: "Range:0,1"})
		_, _ = s.SetCard(1)
		res, err := s.Step(true, false)
		if err != nil || res != ResultUnchanged {
			t.Errorf("Step at max = %s, %v; want Unchanged", res, err)
		}
	})

	t.Run("float not steppable", func(t *testing.T) {
		s := newTestStore(t, Definition{Name: "Temp", Type: TypeFloat, Limits: "Range:0,1"})
		if _, err := s.Step(true, true); !errors.Is(err, ErrNotSteppable) {
			t.Errorf("Step on float = %v, want ErrNotSteppable", err)
		}
	})

	t.Run("bool toggles", func(t *testing.T) {
		s := newTestStore(t, Definition{Name: "Light", Type: TypeBool})
		_, _ = s.Step(true, true)
		_, _ = s.Step(true, true)
		if got := s.FormatText(); got != "False" {
			t.Errorf("after two toggles = %s, want False", got)
		}
	})
}

func TestRestore(t *testing.T) {
	src := NewValue(0, 0, TypeInt)
	_, _ = src.SetInt(7, nil)
	src.SetError(true)
	data, _ := src.MarshalBinary()

	s := newTestStore(t, Definition{Name: "Level", Type: TypeInt, Limits: "Range:0,10"})
	sink := &recordingSink{}
	s.SetEventSink(sink)
	s.SetObserver(sink)
	_ = s.SetTrigger(&TriggerConfig{Kind: TriggerAnyChange})

	if err := s.Restore(data); err != nil {
		t.Fatal(err)
	}
	if s.FormatText() != "7" || s.State() != StateInError {
		t.Errorf("restored %s state %s, want 7 InError", s.FormatText(), s.State())
	}
	if len(sink.events) != 0 || len(sink.changes) != 0 {
		t.Errorf("restore notified: %d events, %d changes", len(sink.events), len(sink.changes))
	}

	t.Run("type mismatch", func(t *testing.T) {
		b := NewValue(0, 0, TypeBool)
		data, _ := b.MarshalBinary()
		if err := s.Restore(data); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("Restore(bool) = %v, want ErrTypeMismatch", err)
		}
	})

	t.Run("outside current limit", func(t *testing.T) {
		v := NewValue(0, 0, TypeInt)
		_, _ = v.SetInt(99, nil)
		data, _ := v.MarshalBinary()
		if err := s.Restore(data); !errors.Is(err, ErrValidation) {
			t.Errorf("Restore(99) = %v, want ErrValidation", err)
		}
	})
}

func TestReplaceLimit(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Level", Type: TypeInt, Limits: "Range:0,10"})
	_, _ = s.SetInt(8)

	changed, err := s.ReplaceLimit("range: 0 , 10")
	if err != nil || changed {
		t.Errorf("identical ReplaceLimit = %v, %v; want false, nil", changed, err)
	}

	changed, err = s.ReplaceLimit("Range:0,5")
	if err != nil || !changed {
		t.Fatalf("ReplaceLimit = %v, %v; want true, nil", changed, err)
	}
	if s.State() != StateInError {
		t.Errorf("out-of-range value after ReplaceLimit: state %s, want InError", s.State())
	}
	if got := s.Definition().Limits; got != "Range:0,5" {
		t.Errorf("Definition().Limits = %q", got)
	}

	if _, err := s.ReplaceLimit("Enum:A"); !errors.Is(err, ErrLimitSyntax) {
		t.Errorf("ReplaceLimit(Enum) on Int = %v, want ErrLimitSyntax", err)
	}
}

func TestReadIfNewer(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Count", Type: TypeCard})
	s.Bind(2, 5)

	if _, ok := s.ReadIfNewer(0); ok {
		t.Error("fresh store reported newer than serial 0")
	}
	_, _ = s.SetCard(9)
	snap, ok := s.ReadIfNewer(0)
	if !ok {
		t.Fatal("ReadIfNewer(0) after write = false")
	}
	if snap.Value.Card() != 9 || snap.Value.SerialNum() != 1 || snap.Value.DriverID() != 2 || snap.Value.FieldID() != 5 {
		t.Errorf("snapshot = %v ids %d/%d", snap.Value, snap.Value.DriverID(), snap.Value.FieldID())
	}
	if _, ok := s.ReadIfNewer(1); ok {
		t.Error("ReadIfNewer(current serial) = true")
	}
}

func TestConcurrentReadersSeeConsistentTuple(t *testing.T) {
	s := newTestStore(t, Definition{Name: "Counter", Type: TypeCard})
	const writes = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(1); i <= writes; i++ {
			_, _ = s.SetCard(i)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				snap := s.Snapshot()
				if snap.Value.Card() != snap.Value.SerialNum() {
					t.Errorf("torn read: value %d serial %d", snap.Value.Card(), snap.Value.SerialNum())
					return
				}
			}
		}()
	}
	wg.Wait()
}
