// Package field provides typed field values for Gray Logic drivers.
//
// A field is one named, typed data point exposed by a driver: a relay state,
// a setpoint, a media title. This package owns everything about a single
// field. The batched polling protocol that moves many fields to clients lives
// in package fieldio.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                              Store                              │
//	│                                                                 │
//	│  ┌──────────────┐   ┌──────────────┐   ┌─────────────────────┐  │
//	│  │  Definition  │   │    Limit     │   │    EventTrigger     │  │
//	│  │  (types.go)  │   │ (limit*.go)  │   │    (trigger.go)     │  │
//	│  │ • name, type │   │ • parse text │   │ • AnyChange         │  │
//	│  │ • access     │   │ • validate   │   │ • expr expressions  │  │
//	│  │ • always wr. │   │ • step, hint │   │ • latching          │  │
//	│  └──────────────┘   └──────┬───────┘   └──────────┬──────────┘  │
//	│                            │                      │             │
//	│                     ┌──────▼───────┐              │             │
//	│                     │    Value     │──────────────┘             │
//	│                     │  (value.go)  │                            │
//	│                     │ • payload    │                            │
//	│                     │ • serial     │                            │
//	│                     │ • error flag │                            │
//	│                     └──────────────┘                            │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Limits
//
// Limits are parsed from compact text declared with the field:
//
//	Range:-1,10            inclusive numeric range
//	GtThan:0 / LsThan:100  exclusive open-ended ranges
//	Enum:Off,Low,High      enumeration, first value is the default
//	Regex:[A-Z]{3}         whole-string regular expression
//	MediaImg:/images/      media image path whitelist
//
// Empty text installs a null policy, so every store has a limit.
//
// # Serial Numbers
//
// Every accepted change bumps the value's serial number by one, as does
// raising the error flag. Clients remember the serial they last saw and the
// server only sends fields whose serial moved. A write of an identical value
// is Unchanged unless the field is in error, has never been written, or is
// declared AlwaysWrite.
//
// # Usage
//
//	store, err := field.NewStoreFromDefinition("thermostat", field.Definition{
//	    Name:   "Setpoint",
//	    Type:   field.TypeFloat,
//	    Access: field.AccessReadWrite,
//	    Limits: "Range:5,30",
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := store.SetValueFromText("21.5")
//
// # Thread Safety
//
// Store is safe for concurrent use: one writer (the driver) and many readers
// (poll requests). Limits are immutable. Value and EventTrigger are not
// synchronised on their own.
package field
