package field

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name         string
		typ          Type
		text         string
		wantErr      error
		wantDescribe string
	}{
		{name: "empty bool", typ: TypeBool, text: "", wantDescribe: "None"},
		{name: "empty card", typ: TypeCard, text: "", wantDescribe: "None"},
		{name: "empty string", typ: TypeString, text: "  ", wantDescribe: "None"},
		{name: "empty time", typ: TypeTime, text: "", wantDescribe: "None"},
		{name: "empty list", typ: TypeStringList, text: "", wantDescribe: "None"},
		{name: "int range", typ: TypeInt, text: "Range:-1,10", wantDescribe: "Range:-1,10"},
		{name: "keyword case-insensitive", typ: TypeInt, text: "rAnGe: -1 , 10", wantDescribe: "Range:-1,10"},
		{name: "card hex range", typ: TypeCard, text: "Range:0x10,0xFF", wantDescribe: "Range:16,255"},
		{name: "card gtthan", typ: TypeCard, text: "GtThan:0", wantDescribe: "GtThan:0"},
		{name: "int lsthan", typ: TypeInt, text: "LsThan:-5", wantDescribe: "LsThan:-5"},
		{name: "float range", typ: TypeFloat, text: "Range:-0.5,99.25", wantDescribe: "Range:-0.5,99.25"},
		{name: "float gtthan", typ: TypeFloat, text: "GtThan:1.5", wantDescribe: "GtThan:1.5"},
		{name: "single value range", typ: TypeCard, text: "Range:7,7", wantDescribe: "Range:7,7"},
		{name: "enum", typ: TypeString, text: "Enum:This,That,The Other", wantDescribe: "Enum:This,That,The Other"},
		{name: "enum quoted comma", typ: TypeString, text: `Enum:"a,b",c`, wantDescribe: `Enum:"a,b",c`},
		{name: "regex", typ: TypeString, text: "Regex:[A-Z]{3}", wantDescribe: "Regex:[A-Z]{3}"},
		{name: "media", typ: TypeString, text: "MediaImg:/Media/Images/", wantDescribe: "MediaImg:/Media/Images/"},

		{name: "inverted range", typ: TypeInt, text: "Range:10,-1", wantErr: ErrLimitSyntax},
		{name: "inverted float range", typ: TypeFloat, text: "Range:2,1", wantErr: ErrLimitSyntax},
		{name: "range one value", typ: TypeCard, text: "Range:1", wantErr: ErrLimitSyntax},
		{name: "range three values", typ: TypeCard, text: "Range:1,2,3", wantErr: ErrLimitSyntax},
		{name: "range not a number", typ: TypeInt, text: "Range:a,b", wantErr: ErrLimitSyntax},
		{name: "card negative", typ: TypeCard, text: "Range:-1,5", wantErr: ErrLimitSyntax},
		{name: "card gtthan max", typ: TypeCard, text: "GtThan:4294967295", wantErr: ErrLimitSyntax},
		{name: "card lsthan zero", typ: TypeCard, text: "LsThan:0", wantErr: ErrLimitSyntax},
		{name: "int lsthan min", typ: TypeInt, text: "LsThan:-2147483648", wantErr: ErrLimitSyntax},
		{name: "float nan", typ: TypeFloat, text: "GtThan:NaN", wantErr: ErrLimitSyntax},
		{name: "no colon", typ: TypeInt, text: "Range", wantErr: ErrLimitSyntax},
		{name: "missing keyword", typ: TypeInt, text: ":5", wantErr: ErrLimitSyntax},
		{name: "wrong keyword for type", typ: TypeInt, text: "Enum:A,B", wantErr: ErrLimitSyntax},
		{name: "bool with limits", typ: TypeBool, text: "Range:0,1", wantErr: ErrLimitSyntax},
		{name: "time with limits", typ: TypeTime, text: "Range:0,1", wantErr: ErrLimitSyntax},
		{name: "empty enum", typ: TypeString, text: "Enum:", wantErr: ErrLimitSyntax},
		{name: "enum empty item", typ: TypeString, text: "Enum:A,,B", wantErr: ErrLimitSyntax},
		{name: "enum duplicate", typ: TypeString, text: "Enum:A,B,A", wantErr: ErrLimitSyntax},
		{name: "enum unterminated quote", typ: TypeString, text: `Enum:"A,B`, wantErr: ErrLimitSyntax},
		{name: "bad regex", typ: TypeString, text: "Regex:[a-", wantErr: ErrLimitSyntax},
		{name: "empty regex", typ: TypeString, text: "Regex:", wantErr: ErrLimitSyntax},
		{name: "invalid type", typ: Type(0), text: "", wantErr: ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ParseLimit(tt.typ, tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseLimit(%s, %q) error = %v, want %v", tt.typ, tt.text, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLimit(%s, %q) error = %v", tt.typ, tt.text, err)
			}
			if l.FieldType() != tt.typ {
				t.Errorf("FieldType() = %s, want %s", l.FieldType(), tt.typ)
			}
			if got := l.Describe(); got != tt.wantDescribe {
				t.Errorf("Describe() = %q, want %q", got, tt.wantDescribe)
			}
		})
	}
}

func TestParseLimitDescribeIsReparseable(t *testing.T) {
	inputs := []struct {
		typ  Type
		text string
	}{
		{TypeInt, "range:-1,10"},
		{TypeCard, "GtThan:9"},
		{TypeFloat, "LsThan:-0.25"},
		{TypeString, `Enum:" padded ",x`},
		{TypeString, `MediaImg:/a/,/b/`},
		{TypeString, `Regex:\d+`},
	}
	for _, in := range inputs {
		first := MustParseLimit(in.typ, in.text)
		second, err := ParseLimit(in.typ, first.Describe())
		if err != nil {
			t.Fatalf("reparse %q: %v", first.Describe(), err)
		}
		if !first.SameLimits(second) {
			t.Errorf("reparse of %q is not the same limit", first.Describe())
		}
	}
}

// Range "-1,10" on an Int field.
func TestIntRangeValidation(t *testing.T) {
	l := MustParseLimit(TypeInt, "Range:-1,10").(*IntLimit)

	tests := []struct {
		value int32
		ok    bool
	}{
		{-1, true},
		{10, true},
		{0, true},
		{11, false},
		{-2, false},
	}
	for _, tt := range tests {
		err := l.Validate(tt.value)
		if tt.ok && err != nil {
			t.Errorf("Validate(%d) = %v, want nil", tt.value, err)
		}
		if !tt.ok && !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%d) = %v, want ErrValidation", tt.value, err)
		}
	}

	if _, err := l.ParseText("11"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseText(11) = %v, want ErrValidation", err)
	}
	got, err := l.ParseText(" -1 ")
	if err != nil || got != -1 {
		t.Errorf("ParseText(-1) = %d, %v", got, err)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	l := MustParseLimit(TypeInt, "Range:-1,10")
	err := l.ValidateText("42")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("ValidateText error = %T, want *ValidationError", err)
	}
	if ve.Text != "42" {
		t.Errorf("Text = %q, want 42", ve.Text)
	}
	if ve.Limit != "Range:-1,10" {
		t.Errorf("Limit = %q, want Range:-1,10", ve.Limit)
	}
	if ve.Reason == "" {
		t.Error("Reason is empty")
	}
}

func TestExclusiveBounds(t *testing.T) {
	card := MustParseLimit(TypeCard, "GtThan:5").(*CardLimit)
	if card.Validate(5) == nil {
		t.Error("GtThan:5 accepted 5")
	}
	if err := card.Validate(6); err != nil {
		t.Errorf("GtThan:5 rejected 6: %v", err)
	}

	f := MustParseLimit(TypeFloat, "LsThan:1").(*FloatLimit)
	if f.Validate(1) == nil {
		t.Error("LsThan:1 accepted 1")
	}
	if err := f.Validate(0.999); err != nil {
		t.Errorf("LsThan:1 rejected 0.999: %v", err)
	}

	fr := MustParseLimit(TypeFloat, "Range:0,1").(*FloatLimit)
	for _, v := range []float64{0, 1, 0.5} {
		if err := fr.Validate(v); err != nil {
			t.Errorf("Range:0,1 rejected %v: %v", v, err)
		}
	}
	if fr.Validate(math.NaN()) == nil {
		t.Error("float limit accepted NaN")
	}
	if MustParseLimit(TypeFloat, "").(*FloatLimit).Validate(math.Inf(1)) == nil {
		t.Error("null float limit accepted +Inf")
	}
}

// Enumeration "This,That,The Other".
func TestEnumLimit(t *testing.T) {
	l := MustParseLimit(TypeString, "Enum:This,That,The Other").(*StringLimit)

	if got := l.Default(); got != "This" {
		t.Errorf("Default() = %q, want This", got)
	}
	if err := l.Validate("that"); !errors.Is(err, ErrValidation) {
		t.Errorf(`Validate("that") = %v, want ErrValidation`, err)
	}
	if err := l.Validate("That"); err != nil {
		t.Errorf(`Validate("That") = %v, want nil`, err)
	}
	if diff := cmp.Diff([]string{"This", "That", "The Other"}, l.Values()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestStringLimitKinds(t *testing.T) {
	tests := []struct {
		name  string
		limit string
		value string
		ok    bool
	}{
		{"any accepts anything", "", "whatever, really", true},
		{"regex whole match", "Regex:[A-Z]{3}", "ABC", true},
		{"regex rejects longer", "Regex:[A-Z]{3}", "ABCD", false},
		{"regex rejects partial", "Regex:[A-Z]{3}", "xABC", false},
		{"regex alternation anchored", "Regex:on|off", "onoff", false},
		{"media prefix", "MediaImg:/Media/Images/", "/media/images/door.png", true},
		{"media empty", "MediaImg:/Media/Images/", "", true},
		{"media outside", "MediaImg:/Media/Images/", "/etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := MustParseLimit(TypeString, tt.limit)
			err := l.ValidateText(tt.value)
			if tt.ok != (err == nil) {
				t.Errorf("ValidateText(%q) = %v, want ok=%v", tt.value, err, tt.ok)
			}
		})
	}
}

func TestRepresentation(t *testing.T) {
	tests := []struct {
		typ  Type
		text string
		want Representation
	}{
		{TypeBool, "", RepCheckbox},
		{TypeCard, "", RepFreeText},
		{TypeCard, "Range:0,100", RepSpinner},
		{TypeInt, "Range:-50,51", RepSlider},
		{TypeInt, "GtThan:0", RepFreeText},
		{TypeFloat, "Range:0,1", RepSlider},
		{TypeFloat, "", RepFreeText},
		{TypeString, "", RepFreeText},
		{TypeString, "Enum:A,B", RepCombo},
		{TypeString, "MediaImg:/img/", RepSelectionDialog},
		{TypeString, "Regex:.*", RepFreeText},
		{TypeStringList, "", RepNone},
		{TypeTime, "", RepTimePicker},
	}
	for _, tt := range tests {
		got := MustParseLimit(tt.typ, tt.text).Representation()
		if got != tt.want {
			t.Errorf("%s %q: Representation() = %s, want %s", tt.typ, tt.text, got, tt.want)
		}
	}
}

func TestSameLimits(t *testing.T) {
	tests := []struct {
		name string
		a, b Limit
		want bool
	}{
		{"same range", MustParseLimit(TypeInt, "Range:0,10"), MustParseLimit(TypeInt, "range: 0, 10"), true},
		{"different max", MustParseLimit(TypeInt, "Range:0,10"), MustParseLimit(TypeInt, "Range:0,11"), false},
		{"card vs int", MustParseLimit(TypeCard, "Range:0,10"), MustParseLimit(TypeInt, "Range:0,10"), false},
		{"range vs gtthan", MustParseLimit(TypeInt, "Range:1,2147483647"), MustParseLimit(TypeInt, "GtThan:0"), false},
		{"same enum", MustParseLimit(TypeString, "Enum:A,B"), MustParseLimit(TypeString, "Enum: A , B"), true},
		{"enum order", MustParseLimit(TypeString, "Enum:A,B"), MustParseLimit(TypeString, "Enum:B,A"), false},
		{"regex", MustParseLimit(TypeString, "Regex:a+"), MustParseLimit(TypeString, "Regex:a+"), true},
		{"bools", MustParseLimit(TypeBool, ""), MustParseLimit(TypeBool, ""), true},
		{"float", MustParseLimit(TypeFloat, "Range:0,1.5"), MustParseLimit(TypeFloat, "Range:0,1.5"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SameLimits(tt.b); got != tt.want {
				t.Errorf("SameLimits() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext(t *testing.T) {
	t.Run("int range", func(t *testing.T) {
		l := MustParseLimit(TypeInt, "Range:0,2").(*IntLimit)
		steps := []struct {
			cur           int32
			forward, wrap bool
			want          int32
			ok            bool
		}{
			{0, true, false, 1, true},
			{2, true, false, 2, false},
			{2, true, true, 0, true},
			{0, false, false, 0, false},
			{0, false, true, 2, true},
			{7, true, false, 2, true},
		}
		for _, s := range steps {
			got, ok := l.Next(s.cur, s.forward, s.wrap)
			if got != s.want || ok != s.ok {
				t.Errorf("Next(%d, %v, %v) = %d, %v; want %d, %v", s.cur, s.forward, s.wrap, got, ok, s.want, s.ok)
			}
		}
	})

	t.Run("unbounded card", func(t *testing.T) {
		l := MustParseLimit(TypeCard, "").(*CardLimit)
		if _, ok := l.Next(3, true, true); ok {
			t.Error("unbounded card limit is steppable")
		}
	})

	t.Run("enum", func(t *testing.T) {
		l := MustParseLimit(TypeString, "Enum:This,That,The Other").(*StringLimit)
		if got, ok := l.Next("This", true, false); !ok || got != "That" {
			t.Errorf("Next(This) = %q, %v", got, ok)
		}
		if got, ok := l.Next("The Other", true, false); ok || got != "The Other" {
			t.Errorf("Next(The Other, no wrap) = %q, %v", got, ok)
		}
		if got, ok := l.Next("The Other", true, true); !ok || got != "This" {
			t.Errorf("Next(The Other, wrap) = %q, %v", got, ok)
		}
		if got, ok := l.Next("This", false, true); !ok || got != "The Other" {
			t.Errorf("Prev(This, wrap) = %q, %v", got, ok)
		}
		if got, ok := l.Next("bogus", true, false); !ok || got != "This" {
			t.Errorf("Next(bogus) = %q, %v", got, ok)
		}
	})

	t.Run("regex not steppable", func(t *testing.T) {
		l := MustParseLimit(TypeString, "Regex:.*").(*StringLimit)
		if _, ok := l.Next("x", true, true); ok {
			t.Error("regex limit is steppable")
		}
	})

	t.Run("bool", func(t *testing.T) {
		l := MustParseLimit(TypeBool, "").(*BoolLimit)
		if got, ok := l.Next(false, true, false); !ok || !got {
			t.Errorf("Next(false, fwd) = %v, %v", got, ok)
		}
		if got, ok := l.Next(true, true, false); ok || !got {
			t.Errorf("Next(true, fwd, no wrap) = %v, %v", got, ok)
		}
		if got, ok := l.Next(true, true, true); !ok || got {
			t.Errorf("Next(true, fwd, wrap) = %v, %v", got, ok)
		}
	})
}

func TestLimitDefaults(t *testing.T) {
	if got := MustParseLimit(TypeInt, "Range:5,10").(*IntLimit).Default(); got != 5 {
		t.Errorf("Range:5,10 default = %d, want 5", got)
	}
	if got := MustParseLimit(TypeInt, "Range:-10,-5").(*IntLimit).Default(); got != -5 {
		t.Errorf("Range:-10,-5 default = %d, want -5", got)
	}
	if got := MustParseLimit(TypeCard, "GtThan:3").(*CardLimit).Default(); got != 4 {
		t.Errorf("GtThan:3 default = %d, want 4", got)
	}
	f := MustParseLimit(TypeFloat, "GtThan:0").(*FloatLimit)
	if err := f.Validate(f.Default()); err != nil {
		t.Errorf("GtThan:0 default %v is invalid: %v", f.Default(), err)
	}
	if got := MustParseLimit(TypeFloat, "Range:2.5,3").(*FloatLimit).Default(); got != 2.5 {
		t.Errorf("Range:2.5,3 default = %v, want 2.5", got)
	}
}
