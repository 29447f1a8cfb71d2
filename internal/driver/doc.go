// Package driver hosts the drivers of the core and the field stores behind
// them.
//
// A driver is identified by its moniker and declares its fields as a list
// of FieldSpec values. The Registry turns a declaration into field.Store
// instances, binds them to poll protocol ids and stamps the topology:
//
//   - driver ids are assigned from 1 and never reused
//   - the driver list id moves on whenever a driver is added or removed
//   - a driver's field list id moves on whenever it redeclares a different
//     field set; an identical redeclaration changes nothing
//
// Fields that survive a redeclaration with the same name, type, access and
// always-write flag keep their store and value, even if their limit
// changes. New stores are restored from the last persisted value when a
// Restorer is configured.
//
// Virtual drivers have no hardware behind them. They are declared from
// configuration and their fields are only ever written by clients through
// WriteField:
//
//	drivers:
//	  - moniker: Vars
//	    fields:
//	      - name: AwayMode
//	        type: Bool
//	        access: ReadWrite
//	        trigger:
//	          kind: AnyChange
//	      - name: Occupancy
//	        type: Card
//	        access: ReadWrite
//	        limits: "Range:0,20"
//
// The Registry implements fieldio.Source, so a fieldio.Server can answer
// discovery and polls straight from it.
package driver
