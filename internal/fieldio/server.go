package fieldio

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Logger defines the logging interface used by the server and client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Source is the server's view of the hosted drivers. The driver registry
// implements it.
type Source interface {
	// DriverListID returns the current driver list stamp.
	DriverListID() uint32

	// FieldListID returns a driver's current field list stamp.
	FieldListID(driverID uint32) (uint32, bool)

	// Store returns the store behind a field.
	Store(driverID, fieldID uint32) (*field.Store, bool)

	// Topology describes every driver and field.
	Topology() Topology
}

// DefaultMaxPollFields bounds the number of fields a single poll may ask for.
const DefaultMaxPollFields = 10000

// Server answers discovery and poll requests against a Source. It holds no
// per-client state and is safe for concurrent use.
type Server struct {
	source        Source
	maxPollFields int
	logger        Logger
}

// NewServer creates a server over source.
func NewServer(source Source) *Server {
	return &Server{
		source:        source,
		maxPollFields: DefaultMaxPollFields,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMaxPollFields changes the per-poll field limit. Values below one are
// ignored.
func (s *Server) SetMaxPollFields(n int) {
	if n > 0 {
		s.maxPollFields = n
	}
}

// Topology returns the current discovery answer.
func (s *Server) Topology() Topology {
	return s.source.Topology()
}

// Poll compares the packet against the current state.
//
// A driver list mismatch rejects the whole poll with ErrDriverListStale.
// A driver whose field list id differs (or whose fields have vanished) is
// reported in StaleDrivers. Remaining fields are included only when their
// serial number differs from the one in the packet.
func (s *Server) Poll(p *Packet) (*PollResponse, error) {
	current := s.source.DriverListID()
	if p.driverListID != current {
		return nil, fmt.Errorf("%w: client %d, server %d", ErrDriverListStale, p.driverListID, current)
	}
	if n := p.FieldCount(); n > s.maxPollFields {
		return nil, fmt.Errorf("%w: %d fields, limit %d", ErrPollTooLarge, n, s.maxPollFields)
	}

	resp := &PollResponse{DriverListID: current}
	for _, d := range p.drivers {
		values, ok := s.pollDriver(d)
		if !ok {
			resp.StaleDrivers = append(resp.StaleDrivers, d.id)
			continue
		}
		resp.Values = append(resp.Values, values...)
	}

	if len(resp.StaleDrivers) > 0 {
		s.logger.Debug("poll found stale drivers", "drivers", resp.StaleDrivers)
	}
	return resp, nil
}

// pollDriver collects the changed fields of one driver. It reports false
// when the driver's field list no longer matches the packet.
func (s *Server) pollDriver(d *driverSlot) ([]PolledValue, bool) {
	flid, ok := s.source.FieldListID(d.id)
	if !ok || flid != d.fieldListID {
		return nil, false
	}

	var values []PolledValue
	for _, f := range d.fields {
		store, ok := s.source.Store(d.id, f.ID)
		if !ok || store.Type() != f.Type {
			return nil, false
		}
		snap, newer := store.ReadIfNewer(f.Serial)
		if !newer {
			continue
		}
		values = append(values, PolledValue{
			DriverID: d.id,
			FieldID:  f.ID,
			Serial:   snap.Value.SerialNum(),
			Value:    snap.Value,
		})
	}
	return values, true
}

// HandleTopology serves an encoded discovery request.
func (s *Server) HandleTopology(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topo := s.source.Topology()
	return topo.MarshalBinary()
}

// HandlePoll serves an encoded poll request.
func (s *Server) HandlePoll(ctx context.Context, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Packet{}
	if err := p.UnmarshalBinary(req); err != nil {
		return nil, err
	}
	resp, err := s.Poll(p)
	if err != nil {
		return nil, err
	}
	return resp.MarshalBinary()
}
