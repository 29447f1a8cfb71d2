package fieldio

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Wire messages start with a kind byte and a version byte, followed by
// varint-framed fields:
//
//	packet:   driver-list-id, driver-count,
//	          [driver-id, field-list-id, field-count, [field-id, type:1, serial]*]*
//	topology: driver-list-id, driver-count,
//	          [driver-id, moniker, field-list-id, field-count,
//	           [field-id, name, type:1, access:1, limits]*]*
//	response: driver-list-id, stale-count, [driver-id]*,
//	          value-count, [driver-id, field-id, serial, value-bytes]*
//
// Values inside a response use the persisted field value form.
const (
	kindPacket   byte = 'P'
	kindTopology byte = 'T'
	kindResponse byte = 'R'

	wireVersion byte = 1
)

// ContentType is the media type of every wire message.
const ContentType = "application/x-graylogic-fieldio"

// MarshalBinary implements encoding.BinaryMarshaler. The packet id is local
// and not sent.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := []byte{kindPacket, wireVersion}
	b = protowire.AppendVarint(b, uint64(p.driverListID))
	b = protowire.AppendVarint(b, uint64(len(p.drivers)))
	for _, d := range p.drivers {
		b = protowire.AppendVarint(b, uint64(d.id))
		b = protowire.AppendVarint(b, uint64(d.fieldListID))
		b = protowire.AppendVarint(b, uint64(len(d.fields)))
		for _, f := range d.fields {
			b = protowire.AppendVarint(b, uint64(f.ID))
			b = append(b, byte(f.Type))
			b = protowire.AppendVarint(b, uint64(f.Serial))
		}
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. The packet is
// replaced and its packet id bumped.
func (p *Packet) UnmarshalBinary(data []byte) error {
	r := newReader(data, kindPacket)
	decoded := NewPacket(r.u32())
	drivers := r.count(3)
	for range drivers {
		id, flid := r.u32(), r.u32()
		if r.err != nil {
			break
		}
		if _, err := decoded.AddDriver(id, flid); err != nil {
			r.fail(err)
			break
		}
		fields := r.count(3)
		for range fields {
			fid, t, serial := r.u32(), field.Type(r.u8()), r.u32()
			if r.err != nil {
				break
			}
			if !t.Valid() {
				r.fail(fmt.Errorf("field %d has type tag %d", fid, uint8(t)))
				break
			}
			if _, err := decoded.AddField(id, fid, t); err != nil {
				r.fail(err)
				break
			}
			decoded.SetSerialNum(id, fid, serial)
		}
	}
	if err := r.done(); err != nil {
		return err
	}

	p.driverListID = decoded.driverListID
	p.drivers = decoded.drivers
	p.index = decoded.index
	p.packetID++
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *Topology) MarshalBinary() ([]byte, error) {
	b := []byte{kindTopology, wireVersion}
	b = protowire.AppendVarint(b, uint64(t.DriverListID))
	b = protowire.AppendVarint(b, uint64(len(t.Drivers)))
	for _, d := range t.Drivers {
		b = protowire.AppendVarint(b, uint64(d.ID))
		b = protowire.AppendString(b, d.Moniker)
		b = protowire.AppendVarint(b, uint64(d.FieldListID))
		b = protowire.AppendVarint(b, uint64(len(d.Fields)))
		for _, f := range d.Fields {
			b = protowire.AppendVarint(b, uint64(f.ID))
			b = protowire.AppendString(b, f.Name)
			b = append(b, byte(f.Type), byte(f.Access))
			b = protowire.AppendString(b, f.Limits)
		}
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *Topology) UnmarshalBinary(data []byte) error {
	r := newReader(data, kindTopology)
	out := Topology{DriverListID: r.u32()}
	drivers := r.count(4)
	out.Drivers = make([]DriverTopology, 0, drivers)
	for range drivers {
		d := DriverTopology{ID: r.u32(), Moniker: r.str(), FieldListID: r.u32()}
		fields := r.count(5)
		d.Fields = make([]FieldTopology, 0, fields)
		for range fields {
			f := FieldTopology{
				ID:     r.u32(),
				Name:   r.str(),
				Type:   field.Type(r.u8()),
				Access: field.Access(r.u8()),
				Limits: r.str(),
			}
			if r.err == nil && !f.Type.Valid() {
				r.fail(fmt.Errorf("field %q has type tag %d", f.Name, uint8(f.Type)))
			}
			d.Fields = append(d.Fields, f)
		}
		out.Drivers = append(out.Drivers, d)
	}
	if err := r.done(); err != nil {
		return err
	}
	*t = out
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (resp *PollResponse) MarshalBinary() ([]byte, error) {
	b := []byte{kindResponse, wireVersion}
	b = protowire.AppendVarint(b, uint64(resp.DriverListID))
	b = protowire.AppendVarint(b, uint64(len(resp.StaleDrivers)))
	for _, id := range resp.StaleDrivers {
		b = protowire.AppendVarint(b, uint64(id))
	}
	b = protowire.AppendVarint(b, uint64(len(resp.Values)))
	var err error
	for _, v := range resp.Values {
		b = protowire.AppendVarint(b, uint64(v.DriverID))
		b = protowire.AppendVarint(b, uint64(v.FieldID))
		b = protowire.AppendVarint(b, uint64(v.Serial))
		var value []byte
		if value, err = v.Value.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("driver %d field %d: %w", v.DriverID, v.FieldID, err)
		}
		b = protowire.AppendBytes(b, value)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (resp *PollResponse) UnmarshalBinary(data []byte) error {
	r := newReader(data, kindResponse)
	out := PollResponse{DriverListID: r.u32()}
	stale := r.count(1)
	for range stale {
		out.StaleDrivers = append(out.StaleDrivers, r.u32())
	}
	values := r.count(5)
	for range values {
		pv := PolledValue{DriverID: r.u32(), FieldID: r.u32(), Serial: r.u32()}
		raw := r.raw()
		if r.err != nil {
			break
		}
		v, err := field.DecodeValue(raw)
		if err != nil {
			r.fail(err)
			break
		}
		v.Bind(pv.DriverID, pv.FieldID)
		pv.Value = v
		out.Values = append(out.Values, pv)
	}
	if err := r.done(); err != nil {
		return err
	}
	*resp = out
	return nil
}

// reader consumes a wire message, remembering the first error so decoders
// can read straight through and check once.
type reader struct {
	b   []byte
	err error
}

func newReader(data []byte, kind byte) *reader {
	r := &reader{b: data}
	switch {
	case len(data) < 2:
		r.fail(fmt.Errorf("message of %d bytes", len(data)))
	case data[0] != kind:
		r.fail(fmt.Errorf("message kind %q, want %q", data[0], kind))
	case data[1] != wireVersion:
		r.fail(fmt.Errorf("wire version %d, want %d", data[1], wireVersion))
	default:
		r.b = data[2:]
	}
	return r
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %v", ErrDecodingFailed, err)
		r.b = nil
	}
}

func (r *reader) varint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *reader) u32() uint32 {
	v := r.varint()
	if v > math.MaxUint32 {
		r.fail(fmt.Errorf("value %d overflows uint32", v))
		return 0
	}
	return uint32(v)
}

// count reads an element count and checks it against the bytes left, given
// the smallest encoding of one element.
func (r *reader) count(minElemSize int) int {
	v := r.varint()
	if r.err != nil {
		return 0
	}
	if v > uint64(len(r.b)/minElemSize) {
		r.fail(fmt.Errorf("count %d exceeds message", v))
		return 0
	}
	return int(v)
}

func (r *reader) u8() byte {
	if r.err != nil {
		return 0
	}
	if len(r.b) == 0 {
		r.fail(fmt.Errorf("unexpected end of message"))
		return 0
	}
	c := r.b[0]
	r.b = r.b[1:]
	return c
}

func (r *reader) raw() []byte {
	if r.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.fail(protowire.ParseError(n))
		return nil
	}
	r.b = r.b[n:]
	return v
}

func (r *reader) str() string {
	return string(r.raw())
}

func (r *reader) done() error {
	if r.err == nil && len(r.b) > 0 {
		r.fail(fmt.Errorf("%d trailing bytes", len(r.b)))
	}
	return r.err
}
