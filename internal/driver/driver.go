package driver

import (
	"fmt"
	"regexp"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// FieldSpec declares one field of a driver, optionally with an event
// trigger.
type FieldSpec struct {
	field.Definition `yaml:",inline"`

	// Trigger is optional. An empty FieldName is filled in from the field.
	Trigger *field.TriggerConfig `json:"trigger,omitempty" yaml:"trigger,omitempty"`
}

// Declaration is a full driver declaration: its moniker and fields. Virtual
// drivers are loaded from configuration in this form.
type Declaration struct {
	Moniker string      `json:"moniker" yaml:"moniker"`
	Fields  []FieldSpec `json:"fields" yaml:"fields"`
}

// Driver is a registered driver. A Driver value is immutable: when the
// driver redeclares a different field set the registry swaps in a new
// Driver with a new field list id, reusing the stores of unchanged fields.
type Driver struct {
	id          uint32
	moniker     string
	fieldListID uint32
	stores      []*field.Store // field id n is stores[n-1]
	byName      map[string]int
}

// ID returns the driver id used by the poll protocol.
func (d *Driver) ID() uint32 { return d.id }

// Moniker returns the driver's unique name.
func (d *Driver) Moniker() string { return d.moniker }

// FieldListID returns the stamp of the driver's field set.
func (d *Driver) FieldListID() uint32 { return d.fieldListID }

// FieldCount returns the number of fields.
func (d *Driver) FieldCount() int { return len(d.stores) }

// Fields returns the driver's stores in field id order.
func (d *Driver) Fields() []*field.Store {
	out := make([]*field.Store, len(d.stores))
	copy(out, d.stores)
	return out
}

// Field returns a store by field name.
func (d *Driver) Field(name string) (*field.Store, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.stores[i], true
}

// FieldByID returns a store by field id.
func (d *Driver) FieldByID(id uint32) (*field.Store, bool) {
	if id == 0 || int(id) > len(d.stores) {
		return nil, false
	}
	return d.stores[id-1], true
}

// Access returns the declared access of a field.
func (d *Driver) Access(name string) (field.Access, bool) {
	i, ok := d.byName[name]
	if !ok {
		return 0, false
	}
	return d.stores[i].Definition().Access, true
}

// monikerPattern allows identifiers such as "hvac", "Var_Driver.1" or
// "knx-gw2".
var monikerPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{0,63}$`)

// ValidateMoniker checks a driver moniker.
func ValidateMoniker(moniker string) error {
	if !monikerPattern.MatchString(moniker) {
		return fmt.Errorf("%w: %q", ErrInvalidMoniker, moniker)
	}
	return nil
}

// parsedSpec is a FieldSpec with its limit parsed.
type parsedSpec struct {
	FieldSpec
	limit field.Limit
}

// parseSpecs validates a field set: every definition, unique names, limits
// that parse and triggers that compile.
func parseSpecs(specs []FieldSpec) ([]parsedSpec, error) {
	out := make([]parsedSpec, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFields, err)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: field %s declared twice", ErrInvalidFields, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		limit, err := field.ParseLimit(spec.Type, spec.Limits)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", ErrInvalidFields, spec.Name, err)
		}
		if spec.Trigger != nil {
			cfg := *spec.Trigger
			if cfg.FieldName == "" {
				cfg.FieldName = spec.Name
			}
			if _, err := field.NewEventTrigger(cfg, spec.Type); err != nil {
				return nil, fmt.Errorf("%w: field %s: %w", ErrInvalidFields, spec.Name, err)
			}
			spec.Trigger = &cfg
		}
		out = append(out, parsedSpec{FieldSpec: spec, limit: limit})
	}
	return out, nil
}

// compatible reports whether an existing store can carry spec, possibly
// after a limit change. Its value survives the redeclaration.
func compatible(st *field.Store, spec parsedSpec) bool {
	def := st.Definition()
	return def.Name == spec.Name &&
		def.Type == spec.Type &&
		def.Access == spec.Access &&
		def.AlwaysWrite == spec.AlwaysWrite
}

// reusable reports whether an existing store serves spec unchanged.
func reusable(st *field.Store, spec parsedSpec) bool {
	return compatible(st, spec) && st.Limit().SameLimits(spec.limit)
}

// sameFieldSet reports whether a redeclaration leaves the field list as it
// is: same fields in the same order with the same definitions and limits.
func (d *Driver) sameFieldSet(specs []parsedSpec) bool {
	if len(specs) != len(d.stores) {
		return false
	}
	for i, spec := range specs {
		if !reusable(d.stores[i], spec) {
			return false
		}
	}
	return true
}
