// Package history persists field values and fired trigger events.
//
//	field.Store ──FieldChanged──► Recorder ──queue──► writer goroutine
//	                                                   │
//	                                  ┌────────────────┼──────────────────┐
//	                                  ▼                                   ▼
//	                       SQLiteRepository.Save                 MetricWriter
//	                       field_values (last value)             (InfluxDB, numeric
//	                       field_history (every change)           fields only)
//
// The Recorder is a field.Observer. It never blocks the writer of a field:
// when its queue is full the change is dropped and counted.
//
// At startup the driver registry restores every field from field_values
// through SQLiteRepository.LastValue. Restoring does not fire triggers.
//
// EventLog keeps fired trigger events in field_events, keyed by the event
// ULID, and pages them newest first for the API.
package history
