package fieldio

import (
	"fmt"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// FieldEntry is one polled field as the client knows it.
type FieldEntry struct {
	ID     uint32
	Type   field.Type
	Serial uint32 // last serial seen, 0 for never read
}

// DriverEntry is one driver's part of a packet.
type DriverEntry struct {
	ID          uint32
	FieldListID uint32
	Fields      []FieldEntry
}

type driverSlot struct {
	id          uint32
	fieldListID uint32
	fields      []FieldEntry
	index       map[uint32]int // field id -> position in fields
}

// Packet is the client-held description of what to poll: for each driver,
// its field list id and, for each field, the serial number last read. It is
// sent whole on every poll so the server can skip unchanged fields.
//
// Packets are owned by a single goroutine.
type Packet struct {
	driverListID uint32
	drivers      []*driverSlot
	index        map[uint32]int // driver id -> position in drivers

	// packetID changes on every structural mutation so result caches know
	// when positions have moved. Serial updates do not touch it.
	packetID uint64
}

// NewPacket creates an empty packet stamped with driverListID.
func NewPacket(driverListID uint32) *Packet {
	return &Packet{
		driverListID: driverListID,
		index:        make(map[uint32]int),
	}
}

// DriverListID returns the topology stamp the packet was built against.
func (p *Packet) DriverListID() uint32 { return p.driverListID }

// PacketID returns the structural version of the packet.
func (p *Packet) PacketID() uint64 { return p.packetID }

// DriverCount returns the number of drivers in the packet.
func (p *Packet) DriverCount() int { return len(p.drivers) }

// FieldCount returns the total number of fields across all drivers.
func (p *Packet) FieldCount() int {
	n := 0
	for _, d := range p.drivers {
		n += len(d.fields)
	}
	return n
}

// Drivers returns a copy of the packet contents in order.
func (p *Packet) Drivers() []DriverEntry {
	out := make([]DriverEntry, len(p.drivers))
	for i, d := range p.drivers {
		out[i] = DriverEntry{
			ID:          d.id,
			FieldListID: d.fieldListID,
			Fields:      append([]FieldEntry(nil), d.fields...),
		}
	}
	return out
}

// Reset clears the packet and stamps it with a new driver list id.
func (p *Packet) Reset(driverListID uint32) {
	p.driverListID = driverListID
	p.drivers = nil
	p.index = make(map[uint32]int)
	p.packetID++
}

// AddDriver appends a driver and returns its position.
func (p *Packet) AddDriver(driverID, fieldListID uint32) (int, error) {
	if _, ok := p.index[driverID]; ok {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateDriver, driverID)
	}
	p.drivers = append(p.drivers, &driverSlot{
		id:          driverID,
		fieldListID: fieldListID,
		index:       make(map[uint32]int),
	})
	idx := len(p.drivers) - 1
	p.index[driverID] = idx
	p.packetID++
	return idx, nil
}

// FindDriver returns the position of a driver.
func (p *Packet) FindDriver(driverID uint32) (int, bool) {
	idx, ok := p.index[driverID]
	return idx, ok
}

// RemoveDriverAt removes the driver at position idx and all its fields.
func (p *Packet) RemoveDriverAt(idx int) {
	if idx < 0 || idx >= len(p.drivers) {
		programming("driver position %d out of range (%d drivers)", idx, len(p.drivers))
	}
	p.drivers = append(p.drivers[:idx], p.drivers[idx+1:]...)
	p.index = make(map[uint32]int, len(p.drivers))
	for i, d := range p.drivers {
		p.index[d.id] = i
	}
	p.packetID++
}

func (p *Packet) mustDriver(driverID uint32) *driverSlot {
	idx, ok := p.index[driverID]
	if !ok {
		programming("driver %d is not in the packet", driverID)
	}
	return p.drivers[idx]
}

// AddField appends a field with serial 0 to a driver and returns its
// position within the driver. The driver must be in the packet.
func (p *Packet) AddField(driverID, fieldID uint32, t field.Type) (int, error) {
	d := p.mustDriver(driverID)
	if _, ok := d.index[fieldID]; ok {
		return 0, fmt.Errorf("%w: driver %d field %d", ErrDuplicateField, driverID, fieldID)
	}
	d.fields = append(d.fields, FieldEntry{ID: fieldID, Type: t})
	idx := len(d.fields) - 1
	d.index[fieldID] = idx
	p.packetID++
	return idx, nil
}

// AddOrFindField returns the position of a field, adding it if missing.
// Adding the same field twice is harmless, which makes rediscovery a merge.
// A known field whose type changed is reset to serial 0.
func (p *Packet) AddOrFindField(driverID, fieldID uint32, t field.Type) int {
	d := p.mustDriver(driverID)
	if idx, ok := d.index[fieldID]; ok {
		if d.fields[idx].Type != t {
			d.fields[idx] = FieldEntry{ID: fieldID, Type: t}
			p.packetID++
		}
		return idx
	}
	idx, _ := p.AddField(driverID, fieldID, t)
	return idx
}

// FindField returns the position of a field within its driver.
func (p *Packet) FindField(driverID, fieldID uint32) (int, bool) {
	didx, ok := p.index[driverID]
	if !ok {
		return 0, false
	}
	idx, ok := p.drivers[didx].index[fieldID]
	return idx, ok
}

// RemoveFieldAt removes the field at position idx of a driver.
func (p *Packet) RemoveFieldAt(driverID uint32, idx int) {
	d := p.mustDriver(driverID)
	if idx < 0 || idx >= len(d.fields) {
		programming("field position %d out of range (%d fields)", idx, len(d.fields))
	}
	d.fields = append(d.fields[:idx], d.fields[idx+1:]...)
	d.index = make(map[uint32]int, len(d.fields))
	for i, f := range d.fields {
		d.index[f.ID] = i
	}
	p.packetID++
}

// SetSerialNum records the serial number last read for a field. The field
// must be in the packet. The packet id does not change.
func (p *Packet) SetSerialNum(driverID, fieldID, serial uint32) {
	d := p.mustDriver(driverID)
	idx, ok := d.index[fieldID]
	if !ok {
		programming("field %d is not in driver %d", fieldID, driverID)
	}
	d.fields[idx].Serial = serial
}

// SerialNum returns the serial number last read for a field. The field must
// be in the packet.
func (p *Packet) SerialNum(driverID, fieldID uint32) uint32 {
	d := p.mustDriver(driverID)
	idx, ok := d.index[fieldID]
	if !ok {
		programming("field %d is not in driver %d", fieldID, driverID)
	}
	return d.fields[idx].Serial
}
