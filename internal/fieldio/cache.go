package fieldio

import (
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

type fieldKey struct {
	driverID uint32
	fieldID  uint32
}

// ResultCache keeps the last value received for every field of a packet,
// laid out in packet order. When the packet's structure changes (its packet
// id moves) the layout is rebuilt; values of fields still present are kept.
type ResultCache struct {
	packetID uint64
	built    bool
	keys     []fieldKey
	pos      map[fieldKey]int
	values   []*field.Value
}

// NewResultCache creates an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{pos: make(map[fieldKey]int)}
}

// Sync rebuilds the layout if p changed structurally since the last call.
// It reports whether a rebuild happened.
func (c *ResultCache) Sync(p *Packet) bool {
	if c.built && c.packetID == p.PacketID() {
		return false
	}

	old := c.pos
	oldValues := c.values

	n := p.FieldCount()
	c.keys = make([]fieldKey, 0, n)
	c.values = make([]*field.Value, 0, n)
	c.pos = make(map[fieldKey]int, n)
	for _, d := range p.drivers {
		for _, f := range d.fields {
			k := fieldKey{d.id, f.ID}
			var v *field.Value
			if i, ok := old[k]; ok && oldValues[i] != nil && oldValues[i].Type() == f.Type {
				v = oldValues[i]
			}
			c.pos[k] = len(c.keys)
			c.keys = append(c.keys, k)
			c.values = append(c.values, v)
		}
	}
	c.packetID = p.PacketID()
	c.built = true
	return true
}

// Put stores a polled value. Values for fields outside the packet are
// dropped and reported false.
func (c *ResultCache) Put(p *Packet, pv PolledValue) bool {
	c.Sync(p)
	i, ok := c.pos[fieldKey{pv.DriverID, pv.FieldID}]
	if !ok {
		return false
	}
	c.values[i] = pv.Value
	return true
}

// Get returns the last value received for a field.
func (c *ResultCache) Get(driverID, fieldID uint32) (*field.Value, bool) {
	i, ok := c.pos[fieldKey{driverID, fieldID}]
	if !ok || c.values[i] == nil {
		return nil, false
	}
	return c.values[i], true
}

// Len returns the number of slots, received or not.
func (c *ResultCache) Len() int { return len(c.keys) }
