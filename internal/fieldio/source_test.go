package fieldio

import (
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// fakeSource is an in-memory Source. Field ids are 1-based positions in
// the driver's store list.
type fakeSource struct {
	mu           sync.RWMutex
	driverListID uint32
	drivers      []*fakeDriver
}

type fakeDriver struct {
	id          uint32
	moniker     string
	fieldListID uint32
	stores      []*field.Store
	access      []field.Access
}

func newFakeSource(driverListID uint32) *fakeSource {
	return &fakeSource{driverListID: driverListID}
}

func (s *fakeSource) addDriver(t *testing.T, id uint32, moniker string, defs ...field.Definition) *fakeDriver {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &fakeDriver{id: id, moniker: moniker, fieldListID: 1}
	for i, def := range defs {
		store, err := field.NewStoreFromDefinition(moniker, def)
		if err != nil {
			t.Fatalf("NewStoreFromDefinition(%s) = %v", def.Name, err)
		}
		store.Bind(id, uint32(i+1))
		d.stores = append(d.stores, store)
		d.access = append(d.access, def.Access)
	}
	s.drivers = append(s.drivers, d)
	return d
}

func (s *fakeSource) store(driverID uint32, name string) *field.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.id != driverID {
			continue
		}
		for _, st := range d.stores {
			if st.Name() == name {
				return st
			}
		}
	}
	return nil
}

func (s *fakeSource) setDriverListID(id uint32) {
	s.mu.Lock()
	s.driverListID = id
	s.mu.Unlock()
}

func (s *fakeSource) bumpFieldList(driverID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drivers {
		if d.id == driverID {
			d.fieldListID++
		}
	}
}

func (s *fakeSource) DriverListID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driverListID
}

func (s *fakeSource) FieldListID(driverID uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.id == driverID {
			return d.fieldListID, true
		}
	}
	return 0, false
}

func (s *fakeSource) Store(driverID, fieldID uint32) (*field.Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		if d.id == driverID && fieldID >= 1 && int(fieldID) <= len(d.stores) {
			return d.stores[fieldID-1], true
		}
	}
	return nil, false
}

func (s *fakeSource) Topology() Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topo := Topology{DriverListID: s.driverListID}
	for _, d := range s.drivers {
		dt := DriverTopology{ID: d.id, Moniker: d.moniker, FieldListID: d.fieldListID}
		for i, st := range d.stores {
			def := st.Definition()
			dt.Fields = append(dt.Fields, FieldTopology{
				ID:     uint32(i + 1),
				Name:   def.Name,
				Type:   def.Type,
				Access: d.access[i],
				Limits: def.Limits,
			})
		}
		topo.Drivers = append(topo.Drivers, dt)
	}
	return topo
}

// hvacDriver declares the fields most tests poll.
func hvacDriver(t *testing.T, src *fakeSource, id uint32) *fakeDriver {
	t.Helper()
	return src.addDriver(t, id, "hvac",
		field.Definition{Name: "Power", Type: field.TypeBool, Access: field.AccessReadWrite},
		field.Definition{Name: "Setpoint", Type: field.TypeFloat, Access: field.AccessReadWrite, Limits: "Range:5,35"},
		field.Definition{Name: "Mode", Type: field.TypeString, Access: field.AccessRead, Limits: "Enum:Heat,Cool,Auto"},
		field.Definition{Name: "Reset", Type: field.TypeBool, Access: field.AccessWrite, AlwaysWrite: true},
	)
}

func mustSet(t *testing.T, st *field.Store, text string) {
	t.Helper()
	if _, err := st.SetValueFromText(text); err != nil {
		t.Fatalf("%s.SetValueFromText(%q) = %v", st.Name(), text, err)
	}
}
