package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Field topics sit under the core prefix so existing core
// subscribers see trigger events next to other core events.
const (
	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// EventFieldTrigger is the core event type of a fired field trigger.
const EventFieldTrigger = "field_trigger"

// Topics provides builders for the MQTT topics the field I/O core uses.
//
//	topics := mqtt.Topics{}
//	topics.FieldTrigger("hvac")           // graylogic/core/event/field_trigger/hvac
//	topics.FieldSet("hvac", "Setpoint")   // graylogic/core/field/hvac/Setpoint/set
type Topics struct{}

// CoreEvent returns the topic for a core event type.
//
// Example: graylogic/core/event/field_trigger
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// FieldTrigger returns the topic trigger events of a driver are published on.
//
// Example: graylogic/core/event/field_trigger/hvac
func (t Topics) FieldTrigger(moniker string) string {
	return t.CoreEvent(EventFieldTrigger) + "/" + moniker
}

// FieldSet returns the command topic that writes a field. The payload is
// the value text.
//
// Example: graylogic/core/field/hvac/Setpoint/set
func (Topics) FieldSet(moniker, name string) string {
	return fmt.Sprintf("%s/field/%s/%s/set", TopicPrefixCore, moniker, name)
}

// AllFieldSets returns the pattern matching every field write command.
//
// Pattern: graylogic/core/field/+/+/set
func (Topics) AllFieldSets() string {
	return fmt.Sprintf("%s/field/+/+/set", TopicPrefixCore)
}

// AllFieldTriggers returns the pattern matching every trigger event.
//
// Pattern: graylogic/core/event/field_trigger/+
func (t Topics) AllFieldTriggers() string {
	return t.CoreEvent(EventFieldTrigger) + "/+"
}

// ParseFieldSet extracts the moniker and field name from a write command
// topic. It reports false for any other topic.
func (Topics) ParseFieldSet(topic string) (moniker, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCore+"/field/")
	if !found {
		return "", "", false
	}
	rest, found = strings.CutSuffix(rest, "/set")
	if !found {
		return "", "", false
	}
	moniker, name, found = strings.Cut(rest, "/")
	if !found || moniker == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return moniker, name, true
}

// SystemStatus returns the system status topic, which carries the online,
// offline and LWT messages.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
