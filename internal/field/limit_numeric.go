package field

import (
	"fmt"
	"math"
	"strings"
)

// integer is the set of native types behind integral fields.
type integer interface {
	~uint32 | ~int32
}

// intBounds is the inclusive range shared by Card and Int limits. GtThan and
// LsThan are normalised to inclusive bounds at parse time; form remembers the
// keyword for Describe.
type intBounds[T integer] struct {
	form     rangeForm
	min, max T
}

func (b intBounds[T]) contains(v T) bool {
	return b.form == formNone || (v >= b.min && v <= b.max)
}

func (b intBounds[T]) describe() string {
	switch b.form {
	case formRange:
		return fmt.Sprintf("Range:%d,%d", b.min, b.max)
	case formGtThan:
		return fmt.Sprintf("GtThan:%d", int64(b.min)-1)
	case formLsThan:
		return fmt.Sprintf("LsThan:%d", int64(b.max)+1)
	default:
		return describeNone
	}
}

func (b intBounds[T]) reason() string {
	return fmt.Sprintf("must be between %d and %d", b.min, b.max)
}

// clampZero is the default value: zero, moved into range if needed.
func (b intBounds[T]) clampZero() T {
	var zero T
	if b.form == formNone {
		return zero
	}
	switch {
	case zero < b.min:
		return b.min
	case zero > b.max:
		return b.max
	default:
		return zero
	}
}

func (b intBounds[T]) next(cur T, forward, wrap bool) (T, bool) {
	if b.form == formNone {
		return cur, false
	}
	if cur < b.min {
		return b.min, true
	}
	if cur > b.max {
		return b.max, true
	}
	if forward {
		if cur < b.max {
			return cur + 1, true
		}
		if wrap {
			return b.min, true
		}
		return cur, false
	}
	if cur > b.min {
		return cur - 1, true
	}
	if wrap {
		return b.max, true
	}
	return cur, false
}

func (b intBounds[T]) representation() Representation {
	if b.form != formRange {
		return RepFreeText
	}
	if int64(b.max)-int64(b.min) <= spinnerMaxSpan {
		return RepSpinner
	}
	return RepSlider
}

// parseIntBounds parses an integral limit payload. lowest and highest are the
// native type's extremes, used to turn exclusive bounds into inclusive ones.
func parseIntBounds[T integer](t Type, keyword, payload string, parse func(string) (T, error), lowest, highest T) (intBounds[T], error) {
	var b intBounds[T]
	value := func(s string) (T, error) {
		v, err := parse(s)
		if err != nil {
			return v, fmt.Errorf("%w: %s value %q: %v", ErrLimitSyntax, t, s, err)
		}
		return v, nil
	}

	switch keyword {
	case "":
		return b, nil
	case kwRange:
		lo, hi, err := splitRange(payload)
		if err != nil {
			return b, err
		}
		if b.min, err = value(lo); err != nil {
			return b, err
		}
		if b.max, err = value(hi); err != nil {
			return b, err
		}
		if b.min > b.max {
			return b, fmt.Errorf("%w: range minimum %d exceeds maximum %d", ErrLimitSyntax, b.min, b.max)
		}
		b.form = formRange
	case kwGtThan:
		v, err := value(strings.TrimSpace(payload))
		if err != nil {
			return b, err
		}
		if v == highest {
			return b, fmt.Errorf("%w: no %s value is greater than %d", ErrLimitSyntax, t, v)
		}
		b.form, b.min, b.max = formGtThan, v+1, highest
	case kwLsThan:
		v, err := value(strings.TrimSpace(payload))
		if err != nil {
			return b, err
		}
		if v == lowest {
			return b, fmt.Errorf("%w: no %s value is less than %d", ErrLimitSyntax, t, v)
		}
		b.form, b.min, b.max = formLsThan, lowest, v-1
	default:
		return b, unknownKeyword(t, keyword)
	}
	return b, nil
}

// -----------------------------------------------------------------------------
// Card
// -----------------------------------------------------------------------------

// CardLimit is the policy of Card (uint32) fields.
type CardLimit struct {
	bounds intBounds[uint32]
}

func parseCardLimit(keyword, payload string) (*CardLimit, error) {
	b, err := parseIntBounds(TypeCard, keyword, payload, parseCard, 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	return &CardLimit{bounds: b}, nil
}

// FieldType implements Limit.
func (*CardLimit) FieldType() Type { return TypeCard }

// Describe implements Limit.
func (l *CardLimit) Describe() string { return l.bounds.describe() }

// Bounds returns the inclusive range and whether one is set.
func (l *CardLimit) Bounds() (min, max uint32, ok bool) {
	return l.bounds.min, l.bounds.max, l.bounds.form != formNone
}

// ParseText converts text to a uint32 within the limit.
func (l *CardLimit) ParseText(text string) (uint32, error) {
	c, err := parseCard(text)
	if err != nil {
		return 0, invalid(l, text, err.Error())
	}
	if !l.bounds.contains(c) {
		return 0, invalid(l, text, l.bounds.reason())
	}
	return c, nil
}

// Validate checks a native value against the limit.
func (l *CardLimit) Validate(c uint32) error {
	if !l.bounds.contains(c) {
		return invalid(l, formatCard(c), l.bounds.reason())
	}
	return nil
}

// ValidateText implements Limit.
func (l *CardLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Default is zero clamped into the range.
func (l *CardLimit) Default() uint32 { return l.bounds.clampZero() }

// Next returns the adjacent value within the range. Unbounded limits are not
// steppable.
func (l *CardLimit) Next(current uint32, forward, wrap bool) (uint32, bool) {
	return l.bounds.next(current, forward, wrap)
}

// Representation implements Limit.
func (l *CardLimit) Representation() Representation { return l.bounds.representation() }

// SameLimits implements Limit.
func (l *CardLimit) SameLimits(other Limit) bool {
	o, ok := other.(*CardLimit)
	return ok && l.bounds == o.bounds
}

func (l *CardLimit) applyDefault(v *Value) { v.c = l.Default() }

// -----------------------------------------------------------------------------
// Int
// -----------------------------------------------------------------------------

// IntLimit is the policy of Int (int32) fields.
type IntLimit struct {
	bounds intBounds[int32]
}

func parseIntLimit(keyword, payload string) (*IntLimit, error) {
	b, err := parseIntBounds(TypeInt, keyword, payload, parseInt, math.MinInt32, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return &IntLimit{bounds: b}, nil
}

// FieldType implements Limit.
func (*IntLimit) FieldType() Type { return TypeInt }

// Describe implements Limit.
func (l *IntLimit) Describe() string { return l.bounds.describe() }

// Bounds returns the inclusive range and whether one is set.
func (l *IntLimit) Bounds() (min, max int32, ok bool) {
	return l.bounds.min, l.bounds.max, l.bounds.form != formNone
}

// ParseText converts text to an int32 within the limit.
func (l *IntLimit) ParseText(text string) (int32, error) {
	i, err := parseInt(text)
	if err != nil {
		return 0, invalid(l, text, err.Error())
	}
	if !l.bounds.contains(i) {
		return 0, invalid(l, text, l.bounds.reason())
	}
	return i, nil
}

// Validate checks a native value against the limit.
func (l *IntLimit) Validate(i int32) error {
	if !l.bounds.contains(i) {
		return invalid(l, formatInt(i), l.bounds.reason())
	}
	return nil
}

// ValidateText implements Limit.
func (l *IntLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Default is zero clamped into the range.
func (l *IntLimit) Default() int32 { return l.bounds.clampZero() }

// Next returns the adjacent value within the range. Unbounded limits are not
// steppable.
func (l *IntLimit) Next(current int32, forward, wrap bool) (int32, bool) {
	return l.bounds.next(current, forward, wrap)
}

// Representation implements Limit.
func (l *IntLimit) Representation() Representation { return l.bounds.representation() }

// SameLimits implements Limit.
func (l *IntLimit) SameLimits(other Limit) bool {
	o, ok := other.(*IntLimit)
	return ok && l.bounds == o.bounds
}

func (l *IntLimit) applyDefault(v *Value) { v.i = l.Default() }

// -----------------------------------------------------------------------------
// Float
// -----------------------------------------------------------------------------

// FloatLimit is the policy of Float fields. GtThan and LsThan bounds are
// exclusive; Range bounds are inclusive.
type FloatLimit struct {
	form     rangeForm
	min, max float64
}

func parseFloatLimit(keyword, payload string) (*FloatLimit, error) {
	value := func(s string) (float64, error) {
		f, err := parseFloat(s)
		if err != nil {
			return 0, fmt.Errorf("%w: Float value %q: %v", ErrLimitSyntax, s, err)
		}
		return f, nil
	}

	l := &FloatLimit{min: math.Inf(-1), max: math.Inf(1)}
	switch keyword {
	case "":
	case kwRange:
		lo, hi, err := splitRange(payload)
		if err != nil {
			return nil, err
		}
		if l.min, err = value(lo); err != nil {
			return nil, err
		}
		if l.max, err = value(hi); err != nil {
			return nil, err
		}
		if l.min > l.max {
			return nil, fmt.Errorf("%w: range minimum %s exceeds maximum %s",
				ErrLimitSyntax, formatFloat(l.min), formatFloat(l.max))
		}
		l.form = formRange
	case kwGtThan:
		v, err := value(strings.TrimSpace(payload))
		if err != nil {
			return nil, err
		}
		l.form, l.min = formGtThan, v
	case kwLsThan:
		v, err := value(strings.TrimSpace(payload))
		if err != nil {
			return nil, err
		}
		l.form, l.max = formLsThan, v
	default:
		return nil, unknownKeyword(TypeFloat, keyword)
	}
	return l, nil
}

// FieldType implements Limit.
func (*FloatLimit) FieldType() Type { return TypeFloat }

// Describe implements Limit.
func (l *FloatLimit) Describe() string {
	switch l.form {
	case formRange:
		return "Range:" + formatFloat(l.min) + "," + formatFloat(l.max)
	case formGtThan:
		return "GtThan:" + formatFloat(l.min)
	case formLsThan:
		return "LsThan:" + formatFloat(l.max)
	default:
		return describeNone
	}
}

// Bounds returns the range and whether one is set. Unset sides are infinite.
func (l *FloatLimit) Bounds() (min, max float64, ok bool) {
	return l.min, l.max, l.form != formNone
}

func (l *FloatLimit) contains(f float64) bool {
	switch l.form {
	case formRange:
		return f >= l.min && f <= l.max
	case formGtThan:
		return f > l.min
	case formLsThan:
		return f < l.max
	default:
		return true
	}
}

func (l *FloatLimit) reason() string {
	switch l.form {
	case formGtThan:
		return "must be greater than " + formatFloat(l.min)
	case formLsThan:
		return "must be less than " + formatFloat(l.max)
	default:
		return "must be between " + formatFloat(l.min) + " and " + formatFloat(l.max)
	}
}

// ParseText converts text to a float64 within the limit.
func (l *FloatLimit) ParseText(text string) (float64, error) {
	f, err := parseFloat(text)
	if err != nil {
		return 0, invalid(l, text, err.Error())
	}
	if !l.contains(f) {
		return 0, invalid(l, text, l.reason())
	}
	return f, nil
}

// Validate checks a native value against the limit. NaN and infinities are
// never valid.
func (l *FloatLimit) Validate(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return invalid(l, formatFloat(f), "not a finite number")
	}
	if !l.contains(f) {
		return invalid(l, formatFloat(f), l.reason())
	}
	return nil
}

// ValidateText implements Limit.
func (l *FloatLimit) ValidateText(text string) error {
	_, err := l.ParseText(text)
	return err
}

// Default is zero moved to the nearest valid value.
func (l *FloatLimit) Default() float64 {
	switch {
	case l.contains(0):
		return 0
	case l.form == formRange && 0 < l.min:
		return l.min
	case l.form == formRange:
		return l.max
	case l.form == formGtThan:
		return math.Nextafter(l.min, math.Inf(1))
	default:
		return math.Nextafter(l.max, math.Inf(-1))
	}
}

// Representation implements Limit.
func (l *FloatLimit) Representation() Representation {
	if l.form == formRange {
		return RepSlider
	}
	return RepFreeText
}

// SameLimits implements Limit.
func (l *FloatLimit) SameLimits(other Limit) bool {
	o, ok := other.(*FloatLimit)
	return ok && *l == *o
}

func (l *FloatLimit) applyDefault(v *Value) { v.f = l.Default() }
