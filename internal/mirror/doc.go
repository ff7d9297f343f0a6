// Package mirror copies the gamepad broadcast stream to an external
// message bus.
//
// A Mirror is one more hub subscriber. Each message keeps its exact
// WebSocket encoding and is published under its "type", so a bus consumer
// sees the same bytes an overlay client would.
package mirror
