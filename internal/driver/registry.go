package driver

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Restorer supplies the last persisted value of a field. The history
// repository implements it.
type Restorer interface {
	LastValue(ctx context.Context, moniker, name string) ([]byte, bool, error)
}

// Registry holds the drivers hosted by the core and the stores behind
// their fields. It stamps the topology for the poll protocol and
// implements fieldio.Source.
//
// All public methods are thread-safe.
type Registry struct {
	mu           sync.RWMutex
	byMoniker    map[string]*Driver
	byID         map[uint32]*Driver
	nextID       uint32
	driverListID uint32

	sink     field.EventSink
	observer field.Observer
	restorer Restorer
	logger   Logger
}

// NewRegistry creates an empty registry. The driver list id starts at 1.
func NewRegistry() *Registry {
	return &Registry{
		byMoniker:    make(map[string]*Driver),
		byID:         make(map[uint32]*Driver),
		nextID:       1,
		driverListID: 1,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEventSink sets the sink given to every store created from now on.
func (r *Registry) SetEventSink(sink field.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// SetObserver sets the observer given to every store created from now on.
func (r *Registry) SetObserver(o field.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// SetRestorer sets where new stores load their last persisted value from.
func (r *Registry) SetRestorer(restorer Restorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restorer = restorer
}

// Declare registers a driver or redeclares its fields.
//
// A new driver gets the next driver id and moves the driver list id on. A
// redeclaration that leaves the field set as it is only updates triggers
// and keeps every stamp. Otherwise the field list id moves on; fields whose
// definition is compatible keep their store (and value), the rest start
// fresh and are restored from the Restorer when one is set.
func (r *Registry) Declare(ctx context.Context, moniker string, specs []FieldSpec) (*Driver, error) {
	if err := ValidateMoniker(moniker); err != nil {
		return nil, err
	}
	parsed, err := parseSpecs(specs)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", moniker, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.byMoniker[moniker]
	if exists && old.sameFieldSet(parsed) {
		for i, spec := range parsed {
			if err := old.stores[i].SetTrigger(spec.Trigger); err != nil {
				return nil, fmt.Errorf("driver %s: %w: %w", moniker, ErrInvalidFields, err)
			}
		}
		r.logger.Debug("driver redeclared unchanged", "moniker", moniker, "id", old.id)
		return old, nil
	}

	d := &Driver{
		moniker:     moniker,
		fieldListID: 1,
		stores:      make([]*field.Store, 0, len(parsed)),
		byName:      make(map[string]int, len(parsed)),
	}
	if exists {
		d.id = old.id
		d.fieldListID = old.fieldListID + 1
	} else {
		d.id = r.nextID
	}

	for i, spec := range parsed {
		st, err := r.storeFor(ctx, moniker, old, spec, d.id, uint32(i+1))
		if err != nil {
			return nil, fmt.Errorf("driver %s: %w", moniker, err)
		}
		d.stores = append(d.stores, st)
		d.byName[spec.Name] = i
	}

	if exists {
		detachDropped(old, d)
	} else {
		r.nextID++
		r.driverListID++
	}
	r.byMoniker[moniker] = d
	r.byID[d.id] = d

	r.logger.Info("driver declared",
		"moniker", moniker,
		"id", d.id,
		"fields", len(d.stores),
		"field_list_id", d.fieldListID,
		"driver_list_id", r.driverListID,
	)
	return d, nil
}

// storeFor returns the store for spec bound to the given ids: the old
// driver's store when it is compatible, otherwise a fresh one. A fresh store
// is bound before its persisted value is restored. The caller holds the lock.
func (r *Registry) storeFor(ctx context.Context, moniker string, old *Driver, spec parsedSpec, driverID, fieldID uint32) (*field.Store, error) {
	if old != nil {
		if st, ok := old.Field(spec.Name); ok && compatible(st, spec) {
			if !st.Limit().SameLimits(spec.limit) {
				if _, err := st.ReplaceLimit(spec.Limits); err != nil {
					return nil, err
				}
			}
			if err := st.SetTrigger(spec.Trigger); err != nil {
				return nil, err
			}
			st.Bind(driverID, fieldID)
			return st, nil
		}
	}

	st := field.NewStore(moniker, spec.Definition, spec.limit)
	st.Bind(driverID, fieldID)
	if spec.Trigger != nil {
		if err := st.SetTrigger(spec.Trigger); err != nil {
			return nil, err
		}
	}
	r.restore(ctx, st)
	st.SetEventSink(r.sink)
	st.SetObserver(r.observer)
	return st, nil
}

// detachDropped disconnects the stores of old that next no longer uses.
// A nil next drops them all.
func detachDropped(old, next *Driver) {
	for _, st := range old.stores {
		if next != nil && slices.Contains(next.stores, st) {
			continue
		}
		st.SetEventSink(nil)
		st.SetObserver(nil)
	}
}

// restore loads the last persisted value into st. Failures are logged and
// leave the field at its default.
func (r *Registry) restore(ctx context.Context, st *field.Store) {
	if r.restorer == nil {
		return
	}
	data, ok, err := r.restorer.LastValue(ctx, st.Moniker(), st.Name())
	if err != nil {
		r.logger.Warn("loading persisted field value failed",
			"moniker", st.Moniker(), "field", st.Name(), "error", err)
		return
	}
	if !ok {
		return
	}
	if err := st.Restore(data); err != nil {
		r.logger.Warn("persisted field value rejected",
			"moniker", st.Moniker(), "field", st.Name(), "error", err)
		return
	}
	r.logger.Debug("field value restored", "moniker", st.Moniker(), "field", st.Name())
}

// DeclareAll declares every driver in decls, stopping at the first failure.
func (r *Registry) DeclareAll(ctx context.Context, decls []Declaration) error {
	for _, decl := range decls {
		if _, err := r.Declare(ctx, decl.Moniker, decl.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Remove unregisters a driver. The driver list id moves on.
func (r *Registry) Remove(moniker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byMoniker[moniker]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, moniker)
	}
	delete(r.byMoniker, moniker)
	delete(r.byID, d.id)
	r.driverListID++

	detachDropped(d, nil)
	r.logger.Info("driver removed", "moniker", moniker, "id", d.id, "driver_list_id", r.driverListID)
	return nil
}

// Driver returns a driver by moniker.
func (r *Registry) Driver(moniker string) (*Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byMoniker[moniker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, moniker)
	}
	return d, nil
}

// Drivers returns every driver in id order.
func (r *Registry) Drivers() []*Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Driver, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Driver) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Field returns the store behind a driver's field.
func (r *Registry) Field(moniker, name string) (*field.Store, error) {
	d, err := r.Driver(moniker)
	if err != nil {
		return nil, err
	}
	st, ok := d.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, moniker, name)
	}
	return st, nil
}

// WriteField applies a client write given as text. Read-only fields are
// rejected with ErrNotWritable; rejected values come back as a
// *field.ValidationError.
func (r *Registry) WriteField(moniker, name, text string) (field.Result, error) {
	st, err := r.Field(moniker, name)
	if err != nil {
		return field.ResultInvalid, err
	}
	if !st.Definition().Access.Writable() {
		return field.ResultInvalid, fmt.Errorf("%w: %s.%s", ErrNotWritable, moniker, name)
	}
	res, err := st.SetValueFromText(text)
	if err != nil {
		return res, err
	}
	r.logger.Debug("field written", "moniker", moniker, "field", name, "result", res)
	return res, nil
}

// StepField moves a writable field to the next or previous value of its
// limit. Limits without an ordering return field.ErrNotSteppable.
func (r *Registry) StepField(moniker, name string, forward, wrap bool) (field.Result, error) {
	st, err := r.Field(moniker, name)
	if err != nil {
		return field.ResultInvalid, err
	}
	if !st.Definition().Access.Writable() {
		return field.ResultInvalid, fmt.Errorf("%w: %s.%s", ErrNotWritable, moniker, name)
	}
	res, err := st.Step(forward, wrap)
	if err != nil {
		return res, err
	}
	r.logger.Debug("field stepped", "moniker", moniker, "field", name, "forward", forward, "result", res)
	return res, nil
}

// Stats summarises the registry for monitoring.
type Stats struct {
	Drivers      int    `json:"drivers"`
	Fields       int    `json:"fields"`
	InError      int    `json:"in_error"`
	NoValue      int    `json:"no_value"`
	DriverListID uint32 `json:"driver_list_id"`
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Drivers: len(r.byID), DriverListID: r.driverListID}
	for _, d := range r.byID {
		for _, st := range d.stores {
			s.Fields++
			switch st.State() {
			case field.StateInError:
				s.InError++
			case field.StateNoValue:
				s.NoValue++
			}
		}
	}
	return s
}

// DriverListID implements fieldio.Source.
func (r *Registry) DriverListID() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.driverListID
}

// FieldListID implements fieldio.Source.
func (r *Registry) FieldListID(driverID uint32) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[driverID]
	if !ok {
		return 0, false
	}
	return d.fieldListID, true
}

// Store implements fieldio.Source.
func (r *Registry) Store(driverID, fieldID uint32) (*field.Store, bool) {
	r.mu.RLock()
	d, ok := r.byID[driverID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return d.FieldByID(fieldID)
}

// Topology implements fieldio.Source.
func (r *Registry) Topology() fieldio.Topology {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topo := fieldio.Topology{
		DriverListID: r.driverListID,
		Drivers:      make([]fieldio.DriverTopology, 0, len(r.byID)),
	}
	for _, d := range r.byID {
		dt := fieldio.DriverTopology{
			ID:          d.id,
			Moniker:     d.moniker,
			FieldListID: d.fieldListID,
			Fields:      make([]fieldio.FieldTopology, 0, len(d.stores)),
		}
		for i, st := range d.stores {
			def := st.Definition()
			dt.Fields = append(dt.Fields, fieldio.FieldTopology{
				ID:     uint32(i + 1),
				Name:   def.Name,
				Type:   def.Type,
				Access: def.Access,
				Limits: def.Limits,
			})
		}
		topo.Drivers = append(topo.Drivers, dt)
	}
	slices.SortFunc(topo.Drivers, func(a, b fieldio.DriverTopology) int { return cmp.Compare(a.ID, b.ID) })
	return topo
}

var _ fieldio.Source = (*Registry)(nil)
