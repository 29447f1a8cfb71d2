package field

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the data type of a field. It is fixed for the life of the
// field and doubles as the one-byte type tag in the persisted value form.
type Type uint8

// Field types.
const (
	TypeBool       Type = 1
	TypeCard       Type = 2 // uint32
	TypeInt        Type = 3 // int32
	TypeFloat      Type = 4 // float64
	TypeString     Type = 5
	TypeStringList Type = 6
	TypeTime       Type = 7 // uint64 ticks, see TicksPerSecond
)

// AllTypes returns every field type in tag order.
func AllTypes() []Type {
	return []Type{
		TypeBool,
		TypeCard,
		TypeInt,
		TypeFloat,
		TypeString,
		TypeStringList,
		TypeTime,
	}
}

// String returns the canonical name of the type.
func (t Type) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeCard:
		return "Card"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	case TypeStringList:
		return "StringList"
	case TypeTime:
		return "Time"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the defined field types.
func (t Type) Valid() bool {
	return t >= TypeBool && t <= TypeTime
}

// ParseType converts a type name (case-insensitive) to a Type.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes() {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// MarshalText implements encoding.TextMarshaler so types render by name in
// JSON and YAML.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Access describes who may write a field.
type Access uint8

// Field access modes.
const (
	AccessRead      Access = 1
	AccessWrite     Access = 2
	AccessReadWrite Access = 3
)

// String returns the canonical name of the access mode.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	case AccessReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Access(%d)", uint8(a))
	}
}

// Readable reports whether clients may read the field.
func (a Access) Readable() bool { return a&AccessRead != 0 }

// Writable reports whether clients may write the field.
func (a Access) Writable() bool { return a&AccessWrite != 0 }

// ParseAccess converts an access name (case-insensitive) to an Access.
// "R", "W" and "RW" are accepted as short forms.
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "r":
		return AccessRead, nil
	case "write", "w":
		return AccessWrite, nil
	case "readwrite", "rw", "":
		return AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAccess, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Access) UnmarshalText(b []byte) error {
	parsed, err := ParseAccess(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Definition is the static declaration of a field, supplied by the driver
// when it registers its fields.
type Definition struct {
	// Name is unique within the owning driver.
	Name string `json:"name" yaml:"name"`

	Type   Type   `json:"type" yaml:"type"`
	Access Access `json:"access" yaml:"access"`

	// Limits is the textual limit policy, e.g. "Range:0,100" or "Enum:A,B".
	Limits string `json:"limits,omitempty" yaml:"limits,omitempty"`

	// AlwaysWrite makes every accepted write count as a change, for pulse
	// and write-only fields where repeating a value is meaningful.
	AlwaysWrite bool `json:"always_write,omitempty" yaml:"always_write,omitempty"`
}

// Validate checks the definition for structural problems. It does not parse
// the limits text.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(d.Name) > maxFieldNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDefinition, maxFieldNameLength)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: field %s: %w", ErrInvalidDefinition, d.Name, ErrInvalidType)
	}
	if d.Access < AccessRead || d.Access > AccessReadWrite {
		return fmt.Errorf("%w: field %s: %w", ErrInvalidDefinition, d.Name, ErrInvalidAccess)
	}
	return nil
}

const maxFieldNameLength = 128

// Time field values are expressed in ticks of 100ns since the Unix epoch.
const (
	TicksPerSecond     = 10_000_000
	nanosecondsPerTick = 100
)

// TimeToTicks converts a time.Time to field ticks. Times before the epoch
// clamp to zero.
func TimeToTicks(t time.Time) uint64 {
	ns := t.UnixNano()
	if ns <= 0 {
		return 0
	}
	return uint64(ns / nanosecondsPerTick)
}

// TicksToTime converts field ticks to a UTC time.Time.
func TicksToTime(ticks uint64) time.Time {
	sec := ticks / TicksPerSecond
	rem := ticks % TicksPerSecond
	return time.Unix(int64(sec), int64(rem)*nanosecondsPerTick).UTC()
}
