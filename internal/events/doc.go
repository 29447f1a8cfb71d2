// Package events fans fired field triggers out to the rest of the system.
//
// A Dispatcher is the field.EventSink installed on every store. It queues
// events without blocking the writer and delivers them from one goroutine
// to each configured target:
//
//	Publisher    MQTT, topic graylogic/core/event/field_trigger/{moniker}
//	Broadcaster  WebSocket hub, channel "field.trigger"
//	Appender     history.EventLog (field_events table)
//
// Every target is optional. A failing target is logged and does not stop
// delivery to the others. Events are delivered in the order they fired.
package events
