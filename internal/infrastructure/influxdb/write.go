package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementWorkerRequests = "worker_requests"
	MeasurementSubscriberLag  = "subscriber_lag"
)

// ObserveRequest records one worker bridge request.
//
// Written as worker_requests with tags op and outcome and field
// duration_ms. The write is non-blocking; points are batched.
//
// Parameters:
//   - op: "tokenize" or "get_furigana"
//   - outcome: "ok", "fallback", "timeout" or "error"
//   - d: Time from acquiring the worker to the reply or fallback
func (c *Client) ObserveRequest(op, outcome string, d time.Duration) {
	c.writePoint(MeasurementWorkerRequests,
		map[string]string{
			"op":      op,
			"outcome": outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(d.Microseconds()) / 1000,
		},
	)
}

// ObserveLag records a subscriber skipping ahead past missed broadcasts.
func (c *Client) ObserveLag(missed uint64) {
	c.writePoint(MeasurementSubscriberLag, nil,
		map[string]interface{}{
			"missed": int64(missed), //nolint:gosec // bounded by hub capacity times sends
		},
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if c == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
