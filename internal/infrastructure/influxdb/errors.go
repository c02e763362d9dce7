package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrDisabled is returned by Connect when metrics are disabled in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps asynchronous batch failures passed to SetOnError.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
