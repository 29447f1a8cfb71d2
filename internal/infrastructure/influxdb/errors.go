package influxdb

import "errors"

var (
	// ErrNotConnected is reported by HealthCheck on a closed client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a failed startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps asynchronous batch write errors passed to the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")

	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
