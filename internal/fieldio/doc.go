// Package fieldio moves field values from the core to remote readers.
//
// A reader describes what it wants in a Packet: every driver it polls, each
// with the fields it cares about and the serial number it last saw for each
// of them. The server answers with only the fields whose serial number moved,
// so an idle system costs one small round trip per poll.
//
// # Architecture
//
//	 reader                                        core
//	┌──────────────────────┐                     ┌──────────────────────────┐
//	│ Client               │  topology request   │ Server                   │
//	│   Discover ──────────┼────────────────────►│   HandleTopology         │
//	│                      │                     │        │                 │
//	│   Packet             │  poll(packet)       │        ▼                 │
//	│   [drv][fld][serial] ├────────────────────►│   HandlePoll ──► Source  │
//	│                      │                     │        │       (driver   │
//	│   ResultCache ◄──────┼─────────────────────┤        ▼       registry) │
//	│                      │  changed values     │   field.Store            │
//	└──────────────────────┘                     │   .ReadIfNewer           │
//	                                             └──────────────────────────┘
//
// # Staleness
//
// Two stamps protect a packet against topology changes:
//
//   - The driver list id changes whenever a driver is added or removed. A
//     packet carrying an old one is rejected outright with
//     ErrDriverListStale (HTTP 409 over the wire).
//   - Each driver's field list id changes whenever that driver redeclares
//     its fields. Affected drivers are listed in PollResponse.StaleDrivers
//     and the rest of the poll is answered normally.
//
// Client.Poll handles both by rediscovering and retrying once. Both errors
// match ErrStale.
//
// # Wire format
//
// Messages are compact varint streams (see wire.go). Transports are plain
// pipes: LocalTransport for in-process use and tests, HTTPTransport for the
// REST API at TopologyPath and PollPath.
//
// # Thread safety
//
// Server is safe for concurrent use and keeps no per-client state. Packet,
// ResultCache and Client belong to one goroutine.
package fieldio
