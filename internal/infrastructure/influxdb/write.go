package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementFieldValues is the measurement numeric field values are
// written to. Each point is tagged with the driver moniker and field name
// and carries one "value" field.
const MeasurementFieldValues = "field_values"

// WriteFieldValue records a numeric field value. Bool fields arrive as 0 or
// 1. The write is non-blocking and batched. It implements
// history.MetricWriter.
//
//	client.WriteFieldValue("hvac", "Setpoint", 21.5, snapshot.At)
func (c *Client) WriteFieldValue(moniker, name string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(fieldValuePoint(moniker, name, value, at))
}

func fieldValuePoint(moniker, name string, value float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFieldValues,
		map[string]string{
			"moniker": moniker,
			"field":   name,
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}
