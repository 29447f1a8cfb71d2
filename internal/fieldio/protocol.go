package fieldio

import (
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Topology is the discovery answer: every driver and field the server
// exposes, with the stamps a packet must echo back.
type Topology struct {
	DriverListID uint32           `json:"driver_list_id"`
	Drivers      []DriverTopology `json:"drivers"`
}

// DriverTopology describes one driver.
type DriverTopology struct {
	ID          uint32          `json:"id"`
	Moniker     string          `json:"moniker"`
	FieldListID uint32          `json:"field_list_id"`
	Fields      []FieldTopology `json:"fields"`
}

// FieldTopology describes one field.
type FieldTopology struct {
	ID     uint32       `json:"id"`
	Name   string       `json:"name"`
	Type   field.Type   `json:"type"`
	Access field.Access `json:"access"`
	Limits string       `json:"limits,omitempty"`
}

// Driver returns the driver with the given moniker.
func (t *Topology) Driver(moniker string) (DriverTopology, bool) {
	for _, d := range t.Drivers {
		if d.Moniker == moniker {
			return d, true
		}
	}
	return DriverTopology{}, false
}

// Field returns the field with the given name.
func (d DriverTopology) Field(name string) (FieldTopology, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldTopology{}, false
}

// PollResponse answers a poll. Only fields whose serial number moved are
// included. Drivers whose field list changed are listed in StaleDrivers and
// contribute no values.
type PollResponse struct {
	DriverListID uint32
	StaleDrivers []uint32
	Values       []PolledValue
}

// PolledValue is one changed field.
type PolledValue struct {
	DriverID uint32
	FieldID  uint32
	Serial   uint32
	Value    *field.Value
}
