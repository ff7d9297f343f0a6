package api

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gsmoverlay/input-server/internal/audit"
	"github.com/gsmoverlay/input-server/internal/broadcast"
	"github.com/gsmoverlay/input-server/internal/gamepad"
	"github.com/gsmoverlay/input-server/internal/protocol"
	"github.com/gsmoverlay/input-server/internal/worker"
)

// defaultSendBuffer is the per-session outbound queue length.
const defaultSendBuffer = 256

// Transport is a text-message connection to one subscriber.
//
// ReadText blocks until a text message arrives; non-text frames are
// skipped by the implementation. ReadText returns io.EOF on a normal
// close. Close must unblock a pending ReadText.
type Transport interface {
	ReadText() (string, error)
	WriteText(msg string) error
	Close() error
}

// Worker answers tokenize and furigana requests.
type Worker interface {
	Tokenize(ctx context.Context, text string) worker.TokenizeResult
	Furigana(ctx context.Context, text string) worker.FuriganaResult
	Stats() worker.Stats
}

// LagObserver is told how many broadcast messages a session skipped.
type LagObserver interface {
	ObserveLag(missed uint64)
}

// Logger defines the logging interface used by sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SessionInfo describes a live session for the REST API.
type SessionInfo struct {
	ID          string    `json:"id"`
	Peer        string    `json:"peer"`
	ConnectedAt time.Time `json:"connected_at"`
}

// SessionDeps holds what a session talks to.
type SessionDeps struct {
	Hub        *broadcast.Hub
	Registry   *gamepad.Registry
	Worker     Worker
	Lag        LagObserver     // optional
	Audit      *audit.Recorder // optional
	Logger     Logger          // optional
	SendBuffer int
}

// Session serves one subscriber: it sends the registry snapshot, relays
// every broadcast message, and answers requests.
type Session struct {
	info      SessionInfo
	transport Transport
	deps      SessionDeps
	logger    Logger
	out       chan string
}

// NewSession creates a session over transport.
func NewSession(info SessionInfo, transport Transport, deps SessionDeps) *Session {
	if deps.SendBuffer <= 0 {
		deps.SendBuffer = defaultSendBuffer
	}
	if deps.Worker == nil {
		deps.Worker = worker.Offline{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Session{
		info:      info,
		transport: transport,
		deps:      deps,
		logger:    logger,
		out:       make(chan string, deps.SendBuffer),
	}
}

// Info returns the session description.
func (s *Session) Info() SessionInfo {
	return s.info
}

// Run serves the session until the subscriber disconnects, a send fails,
// the hub closes, or ctx is cancelled. The transport is closed on return.
//
// Returns:
//   - error: nil for an orderly end, otherwise the read or write failure
func (s *Session) Run(ctx context.Context) error {
	// Subscribe before the snapshot so nothing sent in between is lost.
	sub := s.deps.Hub.Subscribe()
	defer sub.Close()
	defer s.transport.Close() //nolint:errcheck // best effort on teardown

	s.deps.Audit.Record(audit.ActionSessionOpen, audit.EntitySession, s.info.ID, map[string]any{"peer": s.info.Peer})
	defer s.deps.Audit.Record(audit.ActionSessionClose, audit.EntitySession, s.info.ID, nil)

	if err := s.sendSnapshot(ctx); err != nil {
		return orderly(ctx, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.relayLoop(gctx, sub) })
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks readLoop.
		_ = s.transport.Close()
		return nil
	})

	return orderly(ctx, g.Wait())
}

// orderly maps the ways a session normally ends to nil.
func orderly(ctx context.Context, err error) error {
	switch {
	case err == nil,
		errors.Is(err, io.EOF),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, broadcast.ErrClosed),
		ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

func (s *Session) sendSnapshot(ctx context.Context) error {
	devices, err := s.deps.Registry.SnapshotContext(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		msg, err := protocol.Encode(d.ConnectedMessage())
		if err != nil {
			s.logger.Error("encoding snapshot", "device", d.Label, "error", err)
			continue
		}
		if err := s.transport.WriteText(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-s.out:
			if err := s.transport.WriteText(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) relayLoop(ctx context.Context, sub *broadcast.Subscription) error {
	for {
		msg, err := sub.Recv(ctx)
		var lagged *broadcast.LaggedError
		switch {
		case errors.As(err, &lagged):
			s.logger.Warn("subscriber lagged", "session", s.info.ID, "missed", lagged.Missed)
			if s.deps.Lag != nil {
				s.deps.Lag.ObserveLag(lagged.Missed)
			}
			continue
		case errors.Is(err, broadcast.ErrClosed):
			return ErrSessionClosed
		case err != nil:
			return nil
		}
		if err := s.enqueue(ctx, msg); err != nil {
			return nil
		}
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		text, err := s.transport.ReadText()
		if err != nil {
			return err
		}
		s.dispatch(ctx, text)
	}
}

func (s *Session) enqueue(ctx context.Context, msg string) error {
	select {
	case s.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) reply(ctx context.Context, msg protocol.ServerMessage) {
	encoded, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding reply", "type", msg.MessageType(), "error", err)
		return
	}
	_ = s.enqueue(ctx, encoded) //nolint:errcheck // only fails once the session is ending
}

// dispatch answers one inbound message. Malformed and unknown messages are
// ignored.
func (s *Session) dispatch(ctx context.Context, text string) {
	msg, err := protocol.DecodeClientMessage([]byte(text))
	if err != nil {
		s.logger.Debug("ignoring malformed message", "session", s.info.ID, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Ping:
		s.reply(ctx, protocol.Pong{})

	case protocol.GetState:
		devices, err := s.deps.Registry.SnapshotContext(ctx)
		if err != nil {
			return
		}
		for _, d := range devices {
			s.reply(ctx, d.StateMessage())
		}

	case protocol.Tokenize:
		res := s.deps.Worker.Tokenize(ctx, m.Text)
		s.reply(ctx, protocol.Tokens{
			BlockIndex:     m.BlockIndex,
			Text:           m.Text,
			Tokens:         res.Tokens,
			TokenSource:    protocol.TokenSource,
			MecabAvailable: res.Available,
		})

	case protocol.GetFurigana:
		res := s.deps.Worker.Furigana(ctx, m.Text)
		s.reply(ctx, protocol.Furigana{
			LineIndex:      m.LineIndex,
			Text:           m.Text,
			Segments:       res.Segments,
			MecabAvailable: res.Available,
			RequestID:      m.RequestID,
		})

	case protocol.Unknown:
		s.logger.Debug("ignoring unknown message type", "session", s.info.ID, "type", m.Type)
	}
}
