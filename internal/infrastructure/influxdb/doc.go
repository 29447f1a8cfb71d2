// Package influxdb writes numeric field values to InfluxDB.
//
// The history recorder hands every changed Bool, Card, Int and Float field
// to Client.WriteFieldValue. Points land in the "field_values" measurement,
// tagged moniker and field, with a single "value" field:
//
//	field_values,field=Setpoint,moniker=hvac value=21.5 1767225600000000000
//
// Writes are non-blocking and batched (batch_size, flush_interval in the
// configuration). Asynchronous write failures reach the SetOnError
// callback. Connection and health check errors are returned directly.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	recorder.SetMetrics(client)
package influxdb
