// Package influxdb writes server telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go v2: a startup ping, non-blocking batched
// writes, and a HealthCheck used by GET /api/v1/health.
//
// # Measurements
//
//   - worker_requests: tags op, outcome; field duration_ms
//   - subscriber_lag: field missed
//
// Input events themselves are never stored.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bridge.SetObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Write errors arrive asynchronously and go to the logger set with SetLogger.
package influxdb
