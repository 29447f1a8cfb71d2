package fieldio

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Update is one changed field returned by Client.Poll.
type Update struct {
	Moniker  string
	Field    string
	DriverID uint32
	FieldID  uint32
	Serial   uint32
	Value    *field.Value
}

// Selector picks the fields a client polls. A nil selector polls everything.
type Selector func(moniker string, f FieldTopology) bool

type fieldName struct {
	moniker string
	name    string
}

// Client discovers a server's fields and polls them for changes. It owns
// one packet and is not safe for concurrent use.
type Client struct {
	transport Transport
	selector  Selector
	logger    Logger

	packet   *Packet
	topology Topology
	names    map[fieldKey]fieldName
	ids      map[fieldName]fieldKey
	cache    *ResultCache
}

// NewClient creates a client over transport.
func NewClient(transport Transport) *Client {
	return &Client{
		transport: transport,
		logger:    noopLogger{},
		cache:     NewResultCache(),
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Select restricts which fields discovery adds to the packet. It takes
// effect on the next Discover.
func (c *Client) Select(sel Selector) {
	c.selector = sel
}

// Packet returns the client's packet.
func (c *Client) Packet() *Packet { return c.packet }

// Topology returns the last discovery answer.
func (c *Client) Topology() Topology { return c.topology }

// Discover fetches the server topology and rebuilds the packet from it. All
// serial numbers restart at zero, so the next poll returns every value.
func (c *Client) Discover(ctx context.Context) error {
	topo, err := c.fetchTopology(ctx)
	if err != nil {
		return err
	}
	return c.rebuild(topo)
}

func (c *Client) fetchTopology(ctx context.Context) (Topology, error) {
	var topo Topology
	data, err := c.transport.Topology(ctx)
	if err != nil {
		return topo, fmt.Errorf("discovering fields: %w", err)
	}
	if err := topo.UnmarshalBinary(data); err != nil {
		return topo, fmt.Errorf("discovering fields: %w", err)
	}
	return topo, nil
}

func (c *Client) rebuild(topo Topology) error {
	if c.packet == nil {
		c.packet = NewPacket(topo.DriverListID)
	} else {
		c.packet.Reset(topo.DriverListID)
	}
	c.names = make(map[fieldKey]fieldName)
	c.ids = make(map[fieldName]fieldKey)

	for _, d := range topo.Drivers {
		if err := c.addDriver(d); err != nil {
			return err
		}
	}
	c.topology = topo
	c.cache.Sync(c.packet)

	c.logger.Info("field topology discovered",
		"driver_list_id", topo.DriverListID,
		"drivers", c.packet.DriverCount(),
		"fields", c.packet.FieldCount(),
	)
	return nil
}

// addDriver adds the selected readable fields of d. A driver with no such
// fields stays out of the packet.
func (c *Client) addDriver(d DriverTopology) error {
	added := false
	for _, f := range d.Fields {
		if !f.Access.Readable() {
			continue
		}
		if c.selector != nil && !c.selector(d.Moniker, f) {
			continue
		}
		if !added {
			if _, err := c.packet.AddDriver(d.ID, d.FieldListID); err != nil {
				return fmt.Errorf("discovering fields: %w", err)
			}
			added = true
		}
		c.packet.AddOrFindField(d.ID, f.ID, f.Type)
		k, n := fieldKey{d.ID, f.ID}, fieldName{d.Moniker, f.Name}
		c.names[k] = n
		c.ids[n] = k
	}
	return nil
}

// rediscoverDrivers refreshes only the drivers whose field lists moved. The
// other drivers keep their serial numbers. If the driver list itself moved
// in the meantime the whole packet is rebuilt.
func (c *Client) rediscoverDrivers(ctx context.Context, stale []uint32) error {
	topo, err := c.fetchTopology(ctx)
	if err != nil {
		return err
	}
	if topo.DriverListID != c.packet.DriverListID() {
		return c.rebuild(topo)
	}

	for _, id := range stale {
		if idx, ok := c.packet.FindDriver(id); ok {
			c.packet.RemoveDriverAt(idx)
		}
		for k, n := range c.names {
			if k.driverID == id {
				delete(c.names, k)
				delete(c.ids, n)
			}
		}
		for _, d := range topo.Drivers {
			if d.ID == id {
				if err := c.addDriver(d); err != nil {
					return err
				}
			}
		}
	}
	c.topology = topo
	c.cache.Sync(c.packet)

	c.logger.Info("field lists rediscovered", "drivers", stale, "fields", c.packet.FieldCount())
	return nil
}

// Poll fetches the fields that changed since the last poll. When the
// server reports a stale topology the client resynchronises and retries
// once. Each field appears at most once in the result. The first call
// discovers implicitly.
func (c *Client) Poll(ctx context.Context) ([]Update, error) {
	if c.packet == nil {
		if err := c.Discover(ctx); err != nil {
			return nil, err
		}
	}

	updates, stale, err := c.pollOnce(ctx)
	switch {
	case errors.Is(err, ErrDriverListStale):
		c.logger.Info("driver list changed, rediscovering", "error", err)
		if err := c.Discover(ctx); err != nil {
			return updates, err
		}
	case err != nil:
		return updates, err
	case len(stale) == 0:
		return updates, nil
	default:
		c.logger.Info("field lists changed, rediscovering", "drivers", stale)
		if err := c.rediscoverDrivers(ctx, stale); err != nil {
			return updates, err
		}
	}

	more, stale, err := c.pollOnce(ctx)
	updates = mergeUpdates(updates, more)
	if err == nil && len(stale) > 0 {
		err = fmt.Errorf("%w: drivers %v", ErrFieldListStale, stale)
	}
	return updates, err
}

// mergeUpdates appends more to updates, replacing earlier entries for the
// same field.
func mergeUpdates(updates, more []Update) []Update {
	if len(updates) == 0 {
		return more
	}
	pos := make(map[fieldKey]int, len(updates))
	for i, u := range updates {
		pos[fieldKey{u.DriverID, u.FieldID}] = i
	}
	for _, u := range more {
		if i, ok := pos[fieldKey{u.DriverID, u.FieldID}]; ok {
			updates[i] = u
			continue
		}
		pos[fieldKey{u.DriverID, u.FieldID}] = len(updates)
		updates = append(updates, u)
	}
	return updates
}

// pollOnce sends the packet once. It returns the drivers the server
// reported as stale alongside the updates of the others.
func (c *Client) pollOnce(ctx context.Context) ([]Update, []uint32, error) {
	req, err := c.packet.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	data, err := c.transport.Poll(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	var resp PollResponse
	if err := resp.UnmarshalBinary(data); err != nil {
		return nil, nil, err
	}

	updates := make([]Update, 0, len(resp.Values))
	for _, pv := range resp.Values {
		if _, ok := c.packet.FindField(pv.DriverID, pv.FieldID); !ok {
			c.logger.Warn("poll returned unrequested field", "driver_id", pv.DriverID, "field_id", pv.FieldID)
			continue
		}
		c.packet.SetSerialNum(pv.DriverID, pv.FieldID, pv.Serial)
		c.cache.Put(c.packet, pv)

		n := c.names[fieldKey{pv.DriverID, pv.FieldID}]
		updates = append(updates, Update{
			Moniker:  n.moniker,
			Field:    n.name,
			DriverID: pv.DriverID,
			FieldID:  pv.FieldID,
			Serial:   pv.Serial,
			Value:    pv.Value,
		})
	}
	return updates, resp.StaleDrivers, nil
}

// Value returns the last value received for a field.
func (c *Client) Value(moniker, name string) (*field.Value, bool) {
	k, ok := c.ids[fieldName{moniker, name}]
	if !ok {
		return nil, false
	}
	return c.cache.Get(k.driverID, k.fieldID)
}
