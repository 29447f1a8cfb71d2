package field

import (
	"fmt"
	"strings"
)

// Representation is a hint to user interfaces about the most natural editor
// for a field, derived from its limits.
type Representation uint8

// UI representations.
const (
	RepNone Representation = iota
	RepCheckbox
	RepCombo
	RepSelectionDialog
	RepSpinner
	RepSlider
	RepFreeText
	RepTimePicker
)

// String returns the representation name.
func (r Representation) String() string {
	switch r {
	case RepNone:
		return "None"
	case RepCheckbox:
		return "Checkbox"
	case RepCombo:
		return "Combo"
	case RepSelectionDialog:
		return "SelectionDialog"
	case RepSpinner:
		return "Spinner"
	case RepSlider:
		return "Slider"
	case RepFreeText:
		return "FreeText"
	case RepTimePicker:
		return "TimePicker"
	default:
		return fmt.Sprintf("Representation(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Representation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Limit is the validation policy of a field. It is a closed set: the only
// implementations are *BoolLimit, *CardLimit, *IntLimit, *FloatLimit,
// *StringLimit, *StringListLimit and *TimeLimit, one per field type.
//
// Limits are immutable once parsed and safe to share between goroutines.
type Limit interface {
	// FieldType is the field type this limit applies to.
	FieldType() Type

	// Describe returns the canonical limit text ("None" for a null policy).
	Describe() string

	// ValidateText checks that text parses and passes the limit.
	ValidateText(text string) error

	// Representation is the preferred UI editor for the field.
	Representation() Representation

	// SameLimits reports structural equality with other.
	SameLimits(other Limit) bool

	// applyDefault moves a fresh value onto the limit's default. It also
	// seals the interface.
	applyDefault(v *Value)
}

// Limit keywords, matched case-insensitively.
const (
	kwRange    = "range"
	kwGtThan   = "gtthan"
	kwLsThan   = "lsthan"
	kwEnum     = "enum"
	kwRegex    = "regex"
	kwMediaImg = "mediaimg"

	describeNone = "None"
)

// spinnerMaxSpan is the widest integer range shown as a spinner rather
// than a slider.
const spinnerMaxSpan = 100

// ParseLimit parses limit text for a field of type t. Empty text installs the
// null policy for the type, so callers can always assume a non-nil Limit.
//
// Grammar (keyword case-insensitive):
//
//	Range:<min>,<max>     Card, Int, Float; inclusive, min <= max
//	GtThan:<v>            Card, Int, Float; values > v
//	LsThan:<v>            Card, Int, Float; values < v
//	Enum:<v1>,<v2>,...    String; case-sensitive, first is the default
//	Regex:<pattern>       String; whole-string match
//	MediaImg:<path>,...   String; media image repository path whitelist
func ParseLimit(t Type, text string) (Limit, error) {
	text = strings.TrimSpace(text)

	var keyword, payload string
	if text != "" {
		k, p, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q: expected <keyword>:<value>", ErrLimitSyntax, text)
		}
		keyword, payload = strings.ToLower(strings.TrimSpace(k)), p
		if keyword == "" {
			return nil, fmt.Errorf("%w: %q: missing keyword", ErrLimitSyntax, text)
		}
	}

	switch t {
	case TypeBool:
		if text != "" {
			return nil, fmt.Errorf("%w: %s fields take no limits, got %q", ErrLimitSyntax, t, text)
		}
		return &BoolLimit{}, nil
	case TypeCard:
		return parseCardLimit(keyword, payload)
	case TypeInt:
		return parseIntLimit(keyword, payload)
	case TypeFloat:
		return parseFloatLimit(keyword, payload)
	case TypeString:
		return parseStringLimit(keyword, payload)
	case TypeStringList:
		if text != "" {
			return nil, fmt.Errorf("%w: %s fields take no limits, got %q", ErrLimitSyntax, t, text)
		}
		return &StringListLimit{}, nil
	case TypeTime:
		if text != "" {
			return nil, fmt.Errorf("%w: %s fields take no limits, got %q", ErrLimitSyntax, t, text)
		}
		return &TimeLimit{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
}

// MustParseLimit is like ParseLimit but panics on error. Intended for
// static declarations and tests.
func MustParseLimit(t Type, text string) Limit {
	l, err := ParseLimit(t, text)
	if err != nil {
		panic(err)
	}
	return l
}

// rangeForm records which keyword produced a numeric range so Describe can
// render it the way it was declared.
type rangeForm uint8

const (
	formNone rangeForm = iota
	formRange
	formGtThan
	formLsThan
)

// splitRange parses "<min>,<max>".
func splitRange(payload string) (lo, hi string, err error) {
	lo, hi, ok := strings.Cut(payload, ",")
	if !ok || strings.Contains(hi, ",") {
		return "", "", fmt.Errorf("%w: range needs exactly two values, got %q", ErrLimitSyntax, payload)
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi), nil
}

func unknownKeyword(t Type, keyword string) error {
	return fmt.Errorf("%w: keyword %q is not valid for %s fields", ErrLimitSyntax, keyword, t)
}

// -----------------------------------------------------------------------------
// Bool
// -----------------------------------------------------------------------------

// BoolLimit is the (null) policy of Bool fields.
type BoolLimit struct{}

// FieldType implements Limit.
func (*BoolLimit) FieldType() Type { return TypeBool }

// Describe implements Limit.
func (*BoolLimit) Describe() string { return describeNone }

// ParseText converts text to a bool.
func (l *BoolLimit) ParseText(text string) (bool, error) {
	b, err := parseBool(text)
	if err != nil {
		return false, invalid(l, text, err.Error())
	}
	return b, nil
}

// Validate implements the native overload; every bool is valid.
func (*BoolLimit) Validate(bool) error { return nil }

// ValidateText implements Limit.
func (l *BoolLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Next steps false to true going forward, true to false going backward.
// Wrapping turns the other direction into a toggle.
func (*BoolLimit) Next(current, forward, wrap bool) (bool, bool) {
	switch {
	case forward && !current, !forward && current:
		return !current, true
	case wrap:
		return !current, true
	default:
		return current, false
	}
}

// Default is false.
func (*BoolLimit) Default() bool { return false }

// Representation implements Limit.
func (*BoolLimit) Representation() Representation { return RepCheckbox }

// SameLimits implements Limit.
func (*BoolLimit) SameLimits(other Limit) bool {
	_, ok := other.(*BoolLimit)
	return ok
}

func (*BoolLimit) applyDefault(*Value) {}

// -----------------------------------------------------------------------------
// Time
// -----------------------------------------------------------------------------

// TimeLimit is the (null) policy of Time fields.
type TimeLimit struct{}

// FieldType implements Limit.
func (*TimeLimit) FieldType() Type { return TypeTime }

// Describe implements Limit.
func (*TimeLimit) Describe() string { return describeNone }

// ParseText converts text to ticks.
func (l *TimeLimit) ParseText(text string) (uint64, error) {
	t, err := parseTime(text)
	if err != nil {
		return 0, invalid(l, text, err.Error())
	}
	return t, nil
}

// Validate implements the native overload; every tick count is valid.
func (*TimeLimit) Validate(uint64) error { return nil }

// ValidateText implements Limit.
func (l *TimeLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Default is the epoch.
func (*TimeLimit) Default() uint64 { return 0 }

// Representation implements Limit.
func (*TimeLimit) Representation() Representation { return RepTimePicker }

// SameLimits implements Limit.
func (*TimeLimit) SameLimits(other Limit) bool {
	_, ok := other.(*TimeLimit)
	return ok
}

func (*TimeLimit) applyDefault(*Value) {}

// -----------------------------------------------------------------------------
// StringList
// -----------------------------------------------------------------------------

// StringListLimit is the (null) policy of StringList fields.
type StringListLimit struct{}

// FieldType implements Limit.
func (*StringListLimit) FieldType() Type { return TypeStringList }

// Describe implements Limit.
func (*StringListLimit) Describe() string { return describeNone }

// ParseText converts list text to its elements.
func (l *StringListLimit) ParseText(text string) ([]string, error) {
	items, err := splitItems(text)
	if err != nil {
		return nil, invalid(l, text, err.Error())
	}
	return items, nil
}

// Validate implements the native overload; every list is valid.
func (*StringListLimit) Validate([]string) error { return nil }

// ValidateText implements Limit.
func (l *StringListLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Default is the empty list.
func (*StringListLimit) Default() []string { return []string{} }

// Representation implements Limit.
func (*StringListLimit) Representation() Representation { return RepNone }

// SameLimits implements Limit.
func (*StringListLimit) SameLimits(other Limit) bool {
	_, ok := other.(*StringListLimit)
	return ok
}

func (*StringListLimit) applyDefault(*Value) {}
