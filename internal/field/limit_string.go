package field

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// StringKind is the flavour of a String limit.
type StringKind uint8

// String limit kinds.
const (
	StringAny StringKind = iota
	StringEnum
	StringRegex
	StringMediaImg
)

// StringLimit is the policy of String fields: unrestricted, an enumeration,
// a whole-string regular expression, or a media image path whitelist.
type StringLimit struct {
	kind    StringKind
	items   []string // enum values or media path prefixes
	pattern string
	re      *regexp.Regexp
}

func parseStringLimit(keyword, payload string) (*StringLimit, error) {
	switch keyword {
	case "":
		return &StringLimit{kind: StringAny}, nil

	case kwEnum:
		items, err := splitItems(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: enum: %v", ErrLimitSyntax, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: enum needs at least one value", ErrLimitSyntax)
		}
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			if item == "" {
				return nil, fmt.Errorf("%w: enum values cannot be empty", ErrLimitSyntax)
			}
			if _, dup := seen[item]; dup {
				return nil, fmt.Errorf("%w: duplicate enum value %q", ErrLimitSyntax, item)
			}
			seen[item] = struct{}{}
		}
		return &StringLimit{kind: StringEnum, items: items}, nil

	case kwRegex:
		pattern := strings.TrimSpace(payload)
		if pattern == "" {
			return nil, fmt.Errorf("%w: regex pattern is empty", ErrLimitSyntax)
		}
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%w: regex: %v", ErrLimitSyntax, err)
		}
		return &StringLimit{kind: StringRegex, pattern: pattern, re: re}, nil

	case kwMediaImg:
		items, err := splitItems(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: media paths: %v", ErrLimitSyntax, err)
		}
		for _, item := range items {
			if item == "" {
				return nil, fmt.Errorf("%w: media paths cannot be empty", ErrLimitSyntax)
			}
		}
		return &StringLimit{kind: StringMediaImg, items: items}, nil

	default:
		return nil, unknownKeyword(TypeString, keyword)
	}
}

// FieldType implements Limit.
func (*StringLimit) FieldType() Type { return TypeString }

// Kind returns the limit flavour.
func (l *StringLimit) Kind() StringKind { return l.kind }

// Values returns a copy of the enumeration values (or media path prefixes).
func (l *StringLimit) Values() []string { return slices.Clone(l.items) }

// Describe implements Limit.
func (l *StringLimit) Describe() string {
	switch l.kind {
	case StringEnum:
		return "Enum:" + describeItems(l.items)
	case StringRegex:
		return "Regex:" + l.pattern
	case StringMediaImg:
		return "MediaImg:" + describeItems(l.items)
	default:
		return describeNone
	}
}

// describeItems joins items with commas, quoting only those that would not
// survive splitItems unquoted.
func describeItems(items []string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if item != strings.TrimSpace(item) || strings.ContainsAny(item, `,"\`) {
			parts[i] = formatList([]string{item})
		} else {
			parts[i] = item
		}
	}
	return strings.Join(parts, ",")
}

// ParseText validates text as a string value. Strings are taken verbatim.
func (l *StringLimit) ParseText(text string) (string, error) {
	if err := l.Validate(text); err != nil {
		return "", err
	}
	return text, nil
}

// Validate checks a native value against the limit.
func (l *StringLimit) Validate(s string) error {
	switch l.kind {
	case StringEnum:
		if !slices.Contains(l.items, s) {
			return invalid(l, s, "not one of the enumerated values")
		}
	case StringRegex:
		if !l.re.MatchString(s) {
			return invalid(l, s, "does not match the pattern")
		}
	case StringMediaImg:
		if s != "" && !l.mediaAllowed(s) {
			return invalid(l, s, "not in an allowed media image path")
		}
	}
	return nil
}

// mediaAllowed matches path prefixes case-insensitively, as media repository
// paths are.
func (l *StringLimit) mediaAllowed(s string) bool {
	lower := strings.ToLower(s)
	for _, prefix := range l.items {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// ValidateText implements Limit.
func (l *StringLimit) ValidateText(text string) error {
	return l.Validate(text)
}

// Default is the first enumerated value, or the empty string.
func (l *StringLimit) Default() string {
	if l.kind == StringEnum {
		return l.items[0]
	}
	return ""
}

// Next steps through enumerated values. A current value outside the
// enumeration moves to the first value. Other kinds are not steppable.
func (l *StringLimit) Next(current string, forward, wrap bool) (string, bool) {
	if l.kind != StringEnum {
		return current, false
	}
	idx := slices.Index(l.items, current)
	if idx < 0 {
		return l.items[0], true
	}
	last := len(l.items) - 1
	switch {
	case forward && idx < last:
		return l.items[idx+1], true
	case forward && wrap:
		return l.items[0], true
	case !forward && idx > 0:
		return l.items[idx-1], true
	case !forward && wrap:
		return l.items[last], true
	default:
		return current, false
	}
}

// Representation implements Limit.
func (l *StringLimit) Representation() Representation {
	switch l.kind {
	case StringEnum:
		return RepCombo
	case StringMediaImg:
		return RepSelectionDialog
	default:
		return RepFreeText
	}
}

// SameLimits implements Limit.
func (l *StringLimit) SameLimits(other Limit) bool {
	o, ok := other.(*StringLimit)
	return ok &&
		l.kind == o.kind &&
		l.pattern == o.pattern &&
		slices.Equal(l.items, o.items)
}

func (l *StringLimit) applyDefault(v *Value) { v.s = l.Default() }
