// Package mqtt provides MQTT client connectivity for the field I/O core.
//
// The broker is the core's internal message bus. This service uses it to:
//   - publish fired field triggers on graylogic/core/event/field_trigger/{moniker}
//   - accept field writes on graylogic/core/field/{moniker}/{field}/set
//   - announce online/offline status with a Last Will on graylogic/system/status
//
// The client reconnects with backoff and restores its subscriptions after
// every reconnect. Handlers run on paho goroutines; a panicking handler is
// recovered and logged.
//
// # Security Considerations
//
//   - Use TLS in production (cfg.Broker.TLS=true)
//   - Field writes arriving over MQTT are trusted to the broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.FieldTrigger("hvac")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
