package field

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is the lifecycle state of a stored field.
type State uint8

// Field states. A field starts in StateNoValue and moves between
// StateHasValue and StateInError for the rest of its life.
const (
	StateNoValue State = iota
	StateHasValue
	StateInError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoValue:
		return "NoValue"
	case StateHasValue:
		return "HasValue"
	case StateInError:
		return "InError"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// TriggerEvent is emitted when a field's trigger fires.
type TriggerEvent struct {
	ID          ulid.ULID `json:"id"`
	Field       string    `json:"field"`
	Moniker     string    `json:"moniker"`
	Value       string    `json:"value"`
	PrevInError bool      `json:"prev_in_error"`
	Serial      uint32    `json:"serial"`
	At          time.Time `json:"at"`
}

// EventSink receives trigger events. It is called outside the store lock,
// from the writing goroutine, and must not block for long.
type EventSink interface {
	FieldTriggered(ev TriggerEvent)
}

// Observer is told about every change (value or error raise) to a store.
// Like EventSink it runs on the writing goroutine, outside the lock.
type Observer interface {
	FieldChanged(s Snapshot)
}

// Snapshot is a consistent copy of a store's value, serial number and error
// flag, taken under the store lock.
type Snapshot struct {
	Moniker string
	Field   string
	Value   *Value
	At      time.Time
}

// Store owns one field: its definition, limit, value and optional trigger.
// Drivers write through it; poll requests read from it concurrently.
//
// The (value, serial, error) tuple is guarded by one lock so readers never
// see a serial number paired with a payload from a different write.
type Store struct {
	mu sync.RWMutex

	moniker string
	def     Definition
	limit   Limit
	value   *Value
	trigger *EventTrigger

	sink     EventSink
	observer Observer
	// notifyMu is taken before mu is released so notifications leave in
	// commit order.
	notifyMu sync.Mutex

	lastTriggerErr error
}

// NewStore creates a store for def owned by the driver named moniker. The
// limit must be for def.Type; a nil limit installs the null policy. The
// value starts at the limit's default.
func NewStore(moniker string, def Definition, limit Limit) *Store {
	if limit == nil {
		limit = MustParseLimit(def.Type, "")
	}
	if limit.FieldType() != def.Type {
		programming("field %s: %s limit on a %s field", def.Name, limit.FieldType(), def.Type)
	}
	v := NewValue(0, 0, def.Type)
	limit.applyDefault(v)
	return &Store{
		moniker: moniker,
		def:     def,
		limit:   limit,
		value:   v,
	}
}

// NewStoreFromDefinition validates def, parses its limits text and creates
// the store.
func NewStoreFromDefinition(moniker string, def Definition) (*Store, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	limit, err := ParseLimit(def.Type, def.Limits)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", def.Name, err)
	}
	return NewStore(moniker, def, limit), nil
}

// SetEventSink installs the destination for trigger events.
func (s *Store) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// SetObserver installs a change observer.
func (s *Store) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// SetTrigger installs, reconfigures or (with nil) removes the trigger.
// Reconfiguring keeps the latch state. An empty FieldName defaults to the
// field's name.
func (s *Store) SetTrigger(cfg *TriggerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg == nil {
		s.trigger = nil
		return nil
	}
	c := *cfg
	if c.FieldName == "" {
		c.FieldName = s.def.Name
	}
	if s.trigger != nil {
		return s.trigger.Reconfigure(c, s.def.Type)
	}
	tr, err := NewEventTrigger(c, s.def.Type)
	if err != nil {
		return err
	}
	s.trigger = tr
	return nil
}

// Trigger returns the trigger configuration, if one is installed.
func (s *Store) Trigger() (TriggerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trigger == nil {
		return TriggerConfig{}, false
	}
	return s.trigger.Config(), true
}

// LastTriggerError returns the error of the most recent trigger evaluation,
// or nil.
func (s *Store) LastTriggerError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTriggerErr
}

// Moniker returns the owning driver's moniker.
func (s *Store) Moniker() string { return s.moniker }

// Definition returns the field definition. Limits reflects the limit
// currently installed.
func (s *Store) Definition() Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// Name returns the field name.
func (s *Store) Name() string { return s.def.Name }

// Type returns the field type.
func (s *Store) Type() Type { return s.def.Type }

// Limit returns the current limit.
func (s *Store) Limit() Limit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limit
}

// Bind assigns the ids the poll protocol uses for this field.
func (s *Store) Bind(driverID, fieldID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value.Bind(driverID, fieldID)
}

// IDs returns the bound driver and field ids.
func (s *Store) IDs() (driverID, fieldID uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.driverID, s.value.fieldID
}

// SerialNum returns the current serial number.
func (s *Store) SerialNum() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.serial
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.value.inError:
		return StateInError
	case s.value.gotFirst:
		return StateHasValue
	default:
		return StateNoValue
	}
}

// FormatText returns the canonical text of the current value.
func (s *Store) FormatText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value.FormatText()
}

// Snapshot returns a consistent copy of the current value.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(time.Now())
}

// ReadIfNewer returns a snapshot when the serial number differs from the
// one the caller already has.
func (s *Store) ReadIfNewer(serial uint32) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value.serial == serial {
		return Snapshot{}, false
	}
	return s.snapshotLocked(time.Now()), true
}

func (s *Store) snapshotLocked(at time.Time) Snapshot {
	return Snapshot{
		Moniker: s.moniker,
		Field:   s.def.Name,
		Value:   s.value.Clone(),
		At:      at,
	}
}

// limitAs returns the store's limit as its concrete type. The caller holds
// the lock.
func limitAs[L Limit](s *Store) L {
	l, ok := s.limit.(L)
	if !ok {
		programming("field %s: %T limit accessed as %T", s.def.Name, s.limit, l)
	}
	return l
}

// SetBool writes a Bool field.
func (s *Store) SetBool(b bool) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setBool(b, limitAs[*BoolLimit](s), force)
	})
}

// SetCard writes a Card field.
func (s *Store) SetCard(c uint32) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setCard(c, limitAs[*CardLimit](s), force)
	})
}

// SetInt writes an Int field.
func (s *Store) SetInt(i int32) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setInt(i, limitAs[*IntLimit](s), force)
	})
}

// SetFloat writes a Float field.
func (s *Store) SetFloat(f float64) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setFloat(f, limitAs[*FloatLimit](s), force)
	})
}

// SetString writes a String field.
func (s *Store) SetString(str string) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setString(str, limitAs[*StringLimit](s), force)
	})
}

// SetStringList writes a StringList field.
func (s *Store) SetStringList(list []string) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setStringList(list, limitAs[*StringListLimit](s), force)
	})
}

// SetTime writes a Time field from ticks.
func (s *Store) SetTime(ticks uint64) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setTime(ticks, limitAs[*TimeLimit](s), force)
	})
}

// SetValueFromText parses and writes text. Validation failures return
// ResultInvalid and a *ValidationError naming the field.
func (s *Store) SetValueFromText(text string) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		return v.setFromText(text, s.limit, force)
	})
}

// Step moves the field to the next (or previous) value of its limit. At the
// end of the range without wrap the result is ResultUnchanged. Limits with
// no ordering return ErrNotSteppable.
func (s *Store) Step(forward, wrap bool) (Result, error) {
	return s.write(func(v *Value, force bool) (Result, error) {
		switch lim := s.limit.(type) {
		case *BoolLimit:
			next, ok := lim.Next(v.b, forward, wrap)
			if !ok {
				return ResultUnchanged, nil
			}
			return v.setBool(next, lim, force)
		case *CardLimit:
			if lim.bounds.form == formNone {
				break
			}
			next, ok := lim.Next(v.c, forward, wrap)
			if !ok {
				return ResultUnchanged, nil
			}
			return v.setCard(next, lim, force)
		case *IntLimit:
			if lim.bounds.form == formNone {
				break
			}
			next, ok := lim.Next(v.i, forward, wrap)
			if !ok {
				return ResultUnchanged, nil
			}
			return v.setInt(next, lim, force)
		case *StringLimit:
			if lim.kind != StringEnum {
				break
			}
			next, ok := lim.Next(v.s, forward, wrap)
			if !ok {
				return ResultUnchanged, nil
			}
			return v.setString(next, lim, force)
		}
		return ResultInvalid, fmt.Errorf("%w: field %s has limit %s", ErrNotSteppable, s.def.Name, s.limit.Describe())
	})
}

// write runs fn under the lock, then evaluates the trigger on a change and
// delivers the event and change notification after unlocking.
func (s *Store) write(fn func(v *Value, force bool) (Result, error)) (Result, error) {
	s.mu.Lock()

	prevInError := s.value.inError
	res, err := fn(s.value, s.def.AlwaysWrite)
	if err != nil {
		s.mu.Unlock()
		return res, withField(err, s.def.Name)
	}
	if res != ResultChanged {
		s.mu.Unlock()
		return res, nil
	}

	now := time.Now()
	var ev *TriggerEvent
	if s.trigger != nil {
		fire, terr := s.trigger.Evaluate(s.value)
		s.lastTriggerErr = terr
		if fire {
			ev = &TriggerEvent{
				ID:          ulid.Make(),
				Field:       s.def.Name,
				Moniker:     s.moniker,
				Value:       s.value.FormatText(),
				PrevInError: prevInError,
				Serial:      s.value.serial,
				At:          now,
			}
		}
	}
	s.unlockAndNotify(ev, now)
	return res, nil
}

// unlockAndNotify releases mu and then delivers ev and the change
// notification for the current value. The caller holds mu and has committed
// a change.
func (s *Store) unlockAndNotify(ev *TriggerEvent, now time.Time) {
	sink, observer := s.sink, s.observer
	var snap Snapshot
	if observer != nil {
		snap = s.snapshotLocked(now)
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()

	if ev != nil && sink != nil {
		sink.FieldTriggered(*ev)
	}
	if observer != nil {
		observer.FieldChanged(snap)
	}
}

// SetInError raises or clears the field's error flag. Raising it bumps the
// serial number; clearing it does not.
func (s *Store) SetInError(inError bool) Result {
	s.mu.Lock()
	res := s.value.SetError(inError)
	if res != ResultChanged {
		s.mu.Unlock()
		return res
	}
	s.unlockAndNotify(nil, time.Now())
	return res
}

// Restore loads a persisted value without firing the trigger or notifying
// the observer. The value must match the field type and pass the current
// limit.
func (s *Store) Restore(data []byte) error {
	decoded, err := DecodeValue(data)
	if err != nil {
		return fmt.Errorf("field %s: %w", s.def.Name, err)
	}
	if decoded.typ != s.def.Type {
		return fmt.Errorf("%w: field %s is %s, persisted value is %s",
			ErrTypeMismatch, s.def.Name, s.def.Type, decoded.typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.value.setFromText(decoded.FormatText(), s.limit, true); err != nil {
		return withField(err, s.def.Name)
	}
	if decoded.inError {
		s.value.SetError(true)
	}
	return nil
}

// ReplaceLimit installs a new limit parsed from text. It reports false when
// the new limit is structurally identical to the current one. A current
// value the new limit rejects puts the field in error.
func (s *Store) ReplaceLimit(text string) (bool, error) {
	limit, err := ParseLimit(s.def.Type, text)
	if err != nil {
		return false, fmt.Errorf("field %s: %w", s.def.Name, err)
	}

	s.mu.Lock()
	if limit.SameLimits(s.limit) {
		s.mu.Unlock()
		return false, nil
	}
	s.limit = limit
	s.def.Limits = limit.Describe()
	var res Result
	if err := limit.ValidateText(s.value.FormatText()); err != nil {
		res = s.value.SetError(true)
	}
	if res != ResultChanged {
		s.mu.Unlock()
		return true, nil
	}
	s.unlockAndNotify(nil, time.Now())
	return true, nil
}
