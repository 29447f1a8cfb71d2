package field

import (
	"fmt"
	"slices"
)

// Result is the outcome of a write.
type Result uint8

// Write results.
const (
	// ResultUnchanged means the write was accepted but the value is identical
	// to the stored one; the serial number did not move.
	ResultUnchanged Result = iota

	// ResultChanged means the value was stored and the serial number bumped.
	ResultChanged

	// ResultInvalid means the write failed validation; nothing was stored.
	ResultInvalid
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultUnchanged:
		return "Unchanged"
	case ResultChanged:
		return "Changed"
	case ResultInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Value holds the current value of one field together with the bookkeeping
// the poll protocol relies on: the field's ids, a serial number bumped on
// every change, an error flag and a got-first-value flag.
//
// Exactly one payload slot is meaningful, selected by the type. Reading the
// wrong slot is a programming error and panics.
//
// Value is not safe for concurrent use; Store provides the locking.
type Value struct {
	typ Type

	b    bool
	c    uint32
	i    int32
	f    float64
	s    string
	list []string
	t    uint64

	driverID uint32
	fieldID  uint32
	serial   uint32
	inError  bool
	gotFirst bool
}

// NewValue creates a value of type t bound to the given ids, holding the
// type's zero value with serial 0, no error and no first value.
func NewValue(driverID, fieldID uint32, t Type) *Value {
	if !t.Valid() {
		programming("new value of invalid type %d", uint8(t))
	}
	v := &Value{typ: t, driverID: driverID, fieldID: fieldID}
	if t == TypeStringList {
		v.list = []string{}
	}
	return v
}

// Type returns the field type.
func (v *Value) Type() Type { return v.typ }

// DriverID returns the id of the driver the value is bound to.
func (v *Value) DriverID() uint32 { return v.driverID }

// FieldID returns the id of the field the value is bound to.
func (v *Value) FieldID() uint32 { return v.fieldID }

// SerialNum returns the change serial number. Zero means no change has
// happened since the value was created.
func (v *Value) SerialNum() uint32 { return v.serial }

// InError reports whether the field is flagged as in error.
func (v *Value) InError() bool { return v.inError }

// GotFirstValue reports whether the field has ever been legitimately
// written (or flagged in error) since it was bound.
func (v *Value) GotFirstValue() bool { return v.gotFirst }

// Bind moves the value to new ids. The serial number is kept so that it never
// goes backwards for a client that missed the rebind; the first-value flag is
// reset. Binding to the ids the value already has changes nothing.
func (v *Value) Bind(driverID, fieldID uint32) {
	if v.driverID == driverID && v.fieldID == fieldID {
		return
	}
	v.driverID = driverID
	v.fieldID = fieldID
	v.gotFirst = false
}

func (v *Value) mustBe(t Type) {
	if v.typ != t {
		programming("%s access on a %s value", t, v.typ)
	}
}

// Bool returns the payload of a Bool value.
func (v *Value) Bool() bool { v.mustBe(TypeBool); return v.b }

// Card returns the payload of a Card value.
func (v *Value) Card() uint32 { v.mustBe(TypeCard); return v.c }

// Int returns the payload of an Int value.
func (v *Value) Int() int32 { v.mustBe(TypeInt); return v.i }

// Float returns the payload of a Float value.
func (v *Value) Float() float64 { v.mustBe(TypeFloat); return v.f }

// Str returns the payload of a String value.
func (v *Value) Str() string { v.mustBe(TypeString); return v.s }

// StringList returns a copy of the payload of a StringList value.
func (v *Value) StringList() []string { v.mustBe(TypeStringList); return slices.Clone(v.list) }

// Time returns the payload of a Time value in ticks.
func (v *Value) Time() uint64 { v.mustBe(TypeTime); return v.t }

// Native returns the payload as its Go type: bool, uint32, int32, float64,
// string, []string or uint64.
func (v *Value) Native() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeCard:
		return v.c
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeStringList:
		return slices.Clone(v.list)
	case TypeTime:
		return v.t
	default:
		programming("native of invalid type %d", uint8(v.typ))
		return nil
	}
}

// commit finishes an accepted write. A write counts as a change when the
// payload moved, when force is set, or when the field has no legitimate
// value yet (never written, or in error).
func (v *Value) commit(same, force bool) Result {
	if same && !force && v.gotFirst && !v.inError {
		return ResultUnchanged
	}
	v.serial++
	if v.serial == 0 {
		// Zero is reserved for "never read" on the client side.
		v.serial = 1
	}
	v.gotFirst = true
	v.inError = false
	return ResultChanged
}

// SetBool stores b. The limit may be nil.
func (v *Value) SetBool(b bool, l *BoolLimit) (Result, error) {
	return v.setBool(b, l, false)
}

func (v *Value) setBool(b bool, l *BoolLimit, force bool) (Result, error) {
	v.mustBe(TypeBool)
	if l != nil {
		if err := l.Validate(b); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.b == b
	v.b = b
	return v.commit(same, force), nil
}

// SetCard stores c after validating it against l, which may be nil.
func (v *Value) SetCard(c uint32, l *CardLimit) (Result, error) {
	return v.setCard(c, l, false)
}

func (v *Value) setCard(c uint32, l *CardLimit, force bool) (Result, error) {
	v.mustBe(TypeCard)
	if l != nil {
		if err := l.Validate(c); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.c == c
	v.c = c
	return v.commit(same, force), nil
}

// SetInt stores i after validating it against l, which may be nil.
func (v *Value) SetInt(i int32, l *IntLimit) (Result, error) {
	return v.setInt(i, l, false)
}

func (v *Value) setInt(i int32, l *IntLimit, force bool) (Result, error) {
	v.mustBe(TypeInt)
	if l != nil {
		if err := l.Validate(i); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.i == i
	v.i = i
	return v.commit(same, force), nil
}

// SetFloat stores f after validating it against l, which may be nil.
func (v *Value) SetFloat(f float64, l *FloatLimit) (Result, error) {
	return v.setFloat(f, l, false)
}

func (v *Value) setFloat(f float64, l *FloatLimit, force bool) (Result, error) {
	v.mustBe(TypeFloat)
	if l != nil {
		if err := l.Validate(f); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.f == f
	v.f = f
	return v.commit(same, force), nil
}

// SetString stores s after validating it against l, which may be nil.
func (v *Value) SetString(s string, l *StringLimit) (Result, error) {
	return v.setString(s, l, false)
}

func (v *Value) setString(s string, l *StringLimit, force bool) (Result, error) {
	v.mustBe(TypeString)
	if l != nil {
		if err := l.Validate(s); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.s == s
	v.s = s
	return v.commit(same, force), nil
}

// SetStringList stores a copy of list. The limit may be nil.
func (v *Value) SetStringList(list []string, l *StringListLimit) (Result, error) {
	return v.setStringList(list, l, false)
}

func (v *Value) setStringList(list []string, l *StringListLimit, force bool) (Result, error) {
	v.mustBe(TypeStringList)
	if l != nil {
		if err := l.Validate(list); err != nil {
			return ResultInvalid, err
		}
	}
	if list == nil {
		list = []string{}
	}
	same := slices.Equal(v.list, list)
	v.list = slices.Clone(list)
	return v.commit(same, force), nil
}

// SetTime stores ticks. The limit may be nil.
func (v *Value) SetTime(ticks uint64, l *TimeLimit) (Result, error) {
	return v.setTime(ticks, l, false)
}

func (v *Value) setTime(ticks uint64, l *TimeLimit, force bool) (Result, error) {
	v.mustBe(TypeTime)
	if l != nil {
		if err := l.Validate(ticks); err != nil {
			return ResultInvalid, err
		}
	}
	same := v.t == ticks
	v.t = ticks
	return v.commit(same, force), nil
}

// SetFromText parses text through l and stores the result. A nil limit
// stands for the null policy of the value's type. On failure the value is
// untouched and the error is a *ValidationError.
func (v *Value) SetFromText(text string, l Limit) (Result, error) {
	return v.setFromText(text, l, false)
}

func (v *Value) setFromText(text string, l Limit, force bool) (Result, error) {
	if l == nil {
		l = MustParseLimit(v.typ, "")
	}
	if l.FieldType() != v.typ {
		programming("%s limit applied to a %s value", l.FieldType(), v.typ)
	}

	switch lim := l.(type) {
	case *BoolLimit:
		b, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setBool(b, nil, force)
	case *CardLimit:
		c, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setCard(c, nil, force)
	case *IntLimit:
		i, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setInt(i, nil, force)
	case *FloatLimit:
		f, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setFloat(f, nil, force)
	case *StringLimit:
		s, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setString(s, nil, force)
	case *StringListLimit:
		list, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setStringList(list, nil, force)
	case *TimeLimit:
		t, err := lim.ParseText(text)
		if err != nil {
			return ResultInvalid, err
		}
		return v.setTime(t, nil, force)
	default:
		programming("unknown limit %T", l)
		return ResultInvalid, nil
	}
}

// SetError sets the error flag. Raising the flag counts as a change (serial
// bump, first value recorded); clearing it does not, the next good write
// does.
func (v *Value) SetError(inError bool) Result {
	if inError == v.inError {
		return ResultUnchanged
	}
	v.inError = inError
	if !inError {
		return ResultUnchanged
	}
	v.serial++
	if v.serial == 0 {
		v.serial = 1
	}
	v.gotFirst = true
	return ResultChanged
}

// FormatText returns the canonical text form of the payload, which
// SetFromText accepts back unchanged.
func (v *Value) FormatText() string {
	switch v.typ {
	case TypeBool:
		return formatBool(v.b)
	case TypeCard:
		return formatCard(v.c)
	case TypeInt:
		return formatInt(v.i)
	case TypeFloat:
		return formatFloat(v.f)
	case TypeString:
		return v.s
	case TypeStringList:
		return formatList(v.list)
	case TypeTime:
		return formatTime(v.t)
	default:
		programming("format of invalid type %d", uint8(v.typ))
		return ""
	}
}

// Equal reports whether two values have the same type, payload and error
// flag. Ids, serial numbers and the first-value flag are not compared.
func (v *Value) Equal(o *Value) bool {
	if v.typ != o.typ || v.inError != o.inError {
		return false
	}
	return v.samePayload(o)
}

func (v *Value) samePayload(o *Value) bool {
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeCard:
		return v.c == o.c
	case TypeInt:
		return v.i == o.i
	case TypeFloat:
		return v.f == o.f
	case TypeString:
		return v.s == o.s
	case TypeStringList:
		return slices.Equal(v.list, o.list)
	case TypeTime:
		return v.t == o.t
	default:
		return false
	}
}

// Clone returns a deep copy, ids and serial included.
func (v *Value) Clone() *Value {
	c := *v
	c.list = slices.Clone(v.list)
	return &c
}

// String implements fmt.Stringer for logging.
func (v *Value) String() string {
	state := ""
	if v.inError {
		state = " (in error)"
	}
	return fmt.Sprintf("%s %s#%d%s", v.typ, v.FormatText(), v.serial, state)
}
