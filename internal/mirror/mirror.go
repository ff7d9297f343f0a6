package mirror

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gsmoverlay/input-server/internal/broadcast"
	"github.com/gsmoverlay/input-server/internal/protocol"
)

// Publisher sends one broadcast message to an external bus.
// *mqtt.Client satisfies it.
type Publisher interface {
	PublishEvent(msgType string, payload []byte) error
}

// Logger defines the logging interface used by the mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Stats counts what the mirror has done since Run started.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
	Missed    uint64 `json:"missed"`
}

// Mirror republishes every broadcast message through a Publisher. It
// subscribes to the hub like a WebSocket session would and is subject to
// the same lag skip-ahead.
type Mirror struct {
	hub    *broadcast.Hub
	pub    Publisher
	logger Logger

	published atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64
	missed    atomic.Uint64
}

// New creates a mirror from hub to pub.
func New(hub *broadcast.Hub, pub Publisher) *Mirror {
	return &Mirror{hub: hub, pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Run relays until ctx is cancelled or the hub closes. Publish failures
// are counted and logged but never stop the relay.
//
// Returns:
//   - error: Always nil
func (m *Mirror) Run(ctx context.Context) error {
	sub := m.hub.Subscribe()
	defer sub.Close()

	for {
		msg, err := sub.Recv(ctx)
		var lagged *broadcast.LaggedError
		switch {
		case errors.As(err, &lagged):
			m.missed.Add(lagged.Missed)
			m.logger.Warn("mirror lagged", "missed", lagged.Missed)
			continue
		case err != nil:
			return nil
		}
		m.relay(msg)
	}
}

func (m *Mirror) relay(msg string) {
	msgType := protocol.TypeOf(msg)
	if msgType == "" {
		m.skipped.Add(1)
		m.logger.Debug("mirror skipped untyped message")
		return
	}
	if err := m.pub.PublishEvent(msgType, []byte(msg)); err != nil {
		// Per-message failures while the broker is away would flood the log.
		if m.failed.Add(1) == 1 {
			m.logger.Warn("mirror publish failed", "type", msgType, "error", err)
		} else {
			m.logger.Debug("mirror publish failed", "type", msgType, "error", err)
		}
		return
	}
	m.published.Add(1)
}

// Stats returns the mirror counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Published: m.published.Load(),
		Failed:    m.failed.Load(),
		Skipped:   m.skipped.Load(),
		Missed:    m.missed.Load(),
	}
}
