package field

import (
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// TriggerKind selects when a trigger fires.
type TriggerKind uint8

// Trigger kinds.
const (
	TriggerUnused     TriggerKind = iota // never fires
	TriggerAnyChange                     // fires on every changed write
	TriggerExpression                    // fires when the expression holds
)

var triggerKindNames = map[TriggerKind]string{
	TriggerUnused:     "Unused",
	TriggerAnyChange:  "AnyChange",
	TriggerExpression: "Expression",
}

// String returns the kind name.
func (k TriggerKind) String() string {
	if name, ok := triggerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TriggerKind(%d)", uint8(k))
}

// ParseTriggerKind converts a kind name (case-insensitive) to a TriggerKind.
// Empty text means Unused.
func ParseTriggerKind(s string) (TriggerKind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TriggerUnused, nil
	}
	for k, name := range triggerKindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k TriggerKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TriggerKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTriggerKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// LatchMode suppresses repeated firing while an expression stays true.
type LatchMode uint8

// Latch modes. They only apply to expression triggers.
const (
	LatchNone           LatchMode = iota // fire on every true evaluation
	LatchUnidirectional                  // fire on false to true only
	LatchBidirectional                   // fire on every transition
)

var latchModeNames = map[LatchMode]string{
	LatchNone:           "None",
	LatchUnidirectional: "Unidirectional",
	LatchBidirectional:  "Bidirectional",
}

// String returns the latch mode name.
func (m LatchMode) String() string {
	if name, ok := latchModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("LatchMode(%d)", uint8(m))
}

// ParseLatchMode converts a latch mode name (case-insensitive). Empty text
// means None.
func ParseLatchMode(s string) (LatchMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LatchNone, nil
	}
	for m, name := range latchModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown latch mode %q", ErrInvalidTrigger, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m LatchMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *LatchMode) UnmarshalText(b []byte) error {
	parsed, err := ParseLatchMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TriggerConfig is the declarative part of a trigger.
//
// Expressions are evaluated with three variables: value (the new payload;
// Card, Int and Time as int, Float as float64, String as string, StringList
// as []string), name (the field name) and in_error. For example:
//
//	value > 100
//	value in ["Open", "Ajar"]
//	len(value) > 0 && !in_error
type TriggerConfig struct {
	FieldName  string      `json:"field_name" yaml:"field_name"`
	Kind       TriggerKind `json:"kind" yaml:"kind"`
	Expression string      `json:"expression,omitempty" yaml:"expression,omitempty"`
	Latch      LatchMode   `json:"latch,omitempty" yaml:"latch,omitempty"`
}

// EventTrigger decides, per changed write, whether a field event fires.
// The configuration and the latch state are kept apart: equality and
// cloning only look at the configuration.
type EventTrigger struct {
	cfg     TriggerConfig
	program *vm.Program

	// last is the previous expression result, used for latching.
	last bool
}

// NewEventTrigger validates cfg and compiles its expression for a field of
// type t.
func NewEventTrigger(cfg TriggerConfig, t Type) (*EventTrigger, error) {
	program, err := compileTrigger(cfg, t)
	if err != nil {
		return nil, err
	}
	return &EventTrigger{cfg: cfg, program: program}, nil
}

func compileTrigger(cfg TriggerConfig, t Type) (*vm.Program, error) {
	if _, ok := triggerKindNames[cfg.Kind]; !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidTrigger, uint8(cfg.Kind))
	}
	if _, ok := latchModeNames[cfg.Latch]; !ok {
		return nil, fmt.Errorf("%w: latch mode %d", ErrInvalidTrigger, uint8(cfg.Latch))
	}
	if cfg.Kind != TriggerExpression {
		if cfg.Latch != LatchNone {
			return nil, fmt.Errorf("%w: latching needs an expression trigger", ErrInvalidTrigger)
		}
		return nil, nil
	}
	if strings.TrimSpace(cfg.Expression) == "" {
		return nil, fmt.Errorf("%w: expression is empty", ErrInvalidTrigger)
	}

	env := triggerEnv(NewValue(0, 0, t), cfg.FieldName)
	program, err := expr.Compile(cfg.Expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTriggerExpression, err)
	}
	return program, nil
}

// triggerEnv builds the expression environment for v.
func triggerEnv(v *Value, name string) map[string]any {
	var value any
	switch v.typ {
	case TypeCard:
		value = int(v.c)
	case TypeInt:
		value = int(v.i)
	case TypeTime:
		value = int(v.t)
	default:
		value = v.Native()
	}
	return map[string]any{
		"value":    value,
		"name":     name,
		"in_error": v.inError,
	}
}

// Config returns the trigger configuration.
func (tr *EventTrigger) Config() TriggerConfig { return tr.cfg }

// Kind returns the trigger kind.
func (tr *EventTrigger) Kind() TriggerKind { return tr.cfg.Kind }

// LatchState returns the last expression result seen.
func (tr *EventTrigger) LatchState() bool { return tr.last }

// Evaluate reports whether the trigger fires for a changed write that left
// the field at v. Only the latch state is mutated. An expression that fails
// to run does not fire and leaves the latch state alone.
func (tr *EventTrigger) Evaluate(v *Value) (bool, error) {
	switch tr.cfg.Kind {
	case TriggerAnyChange:
		return true, nil
	case TriggerExpression:
	default:
		return false, nil
	}

	if v.typ == TypeTime && v.t > math.MaxInt64 {
		return false, fmt.Errorf("%w: %s: time %#x is beyond expression range", ErrTriggerExpression, tr.cfg.FieldName, v.t)
	}
	out, err := expr.Run(tr.program, triggerEnv(v, tr.cfg.FieldName))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrTriggerExpression, tr.cfg.FieldName, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s: result is %T, not bool", ErrTriggerExpression, tr.cfg.FieldName, out)
	}
	return tr.latch(result), nil
}

// latch applies the latch mode to an expression result.
func (tr *EventTrigger) latch(result bool) bool {
	last := tr.last
	tr.last = result
	switch tr.cfg.Latch {
	case LatchUnidirectional:
		return result && !last
	case LatchBidirectional:
		return result != last
	default:
		return result
	}
}

// Equal compares configurations only.
func (tr *EventTrigger) Equal(o *EventTrigger) bool {
	if tr == nil || o == nil {
		return tr == o
	}
	return tr.cfg == o.cfg
}

// Clone copies the configuration. The copy starts with a clear latch.
func (tr *EventTrigger) Clone() *EventTrigger {
	return &EventTrigger{cfg: tr.cfg, program: tr.program}
}

// Reconfigure installs a new configuration for a field of type t, carrying
// the latch state across. On error the trigger is unchanged.
func (tr *EventTrigger) Reconfigure(cfg TriggerConfig, t Type) error {
	program, err := compileTrigger(cfg, t)
	if err != nil {
		return err
	}
	tr.cfg = cfg
	tr.program = program
	return nil
}
