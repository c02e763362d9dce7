package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// operationMeasurement is the measurement every store operation is written to.
const operationMeasurement = "store_operations"

// WriteOperation records one store operation. Tags are table, op and
// status ("ok" or "error"); fields are rows and duration_ms.
//
// The write is non-blocking and batched. It is a no-op when the client
// is not connected.
func (c *Client) WriteOperation(table, op string, rows int, elapsed time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(operationPoint(table, op, rows, elapsed, err, time.Now()))
}

// operationPoint builds the point written by WriteOperation.
func operationPoint(table, op string, rows int, elapsed time.Duration, err error, ts time.Time) *write.Point {
	status := "ok"
	if err != nil {
		status = "error"
	}

	return write.NewPoint(
		operationMeasurement,
		map[string]string{
			"table":  table,
			"op":     op,
			"status": status,
		},
		map[string]interface{}{
			"rows":        rows,
			"duration_ms": float64(elapsed) / float64(time.Millisecond),
		},
		ts,
	)
}
