// Package api serves the WebSocket relay and a small read-only REST API.
//
// Every WebSocket connection becomes a Session. On accept it receives one
// gamepad_connected message per known device carrying that device's state,
// then every broadcast message in order. Requests (ping, get_state,
// tokenize, get_furigana) are answered on the same connection only.
//
// REST endpoints under /api/v1:
//   - GET /health: status, version, worker state, session and device
//     counts, per-sink checks (db, mqtt, influxdb) and mirror counters
//   - GET /state: registry snapshot
//   - GET /sessions: connected subscribers
//   - GET /worker: worker bridge counters
//   - GET /audit: audit trail, when the database is enabled
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
