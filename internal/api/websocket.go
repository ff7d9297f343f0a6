package api

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// closeGracePeriod bounds the close handshake write.
const closeGracePeriod = time.Second

// upgrader configures the WebSocket upgrader. The server binds to loopback
// and serves a local overlay, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// wsTransport adapts a gorilla connection to Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWSTransport(conn *websocket.Conn, maxMessageSize int64, writeTimeout time.Duration) *wsTransport {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

// ReadText returns the next text message. Binary frames are dropped.
func (t *wsTransport) ReadText() (string, error) {
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, net.ErrClosed) {
				return "", io.EOF
			}
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

// WriteText sends one text message.
func (t *wsTransport) WriteText(msg string) error {
	if t.writeTimeout > 0 {
		//nolint:errcheck // Best-effort deadline; write error caught below
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Close sends a close frame and closes the connection. Safe to call more
// than once.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		//nolint:errcheck // Best-effort close message
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// handleWebSocket upgrades the connection and runs a session until the
// subscriber leaves or the server shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Counted before the upgrade, while Shutdown still tracks the connection.
	s.active.Add(1)
	defer s.active.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "peer", r.RemoteAddr)
		return
	}

	info := SessionInfo{
		ID:          uuid.NewString(),
		Peer:        r.RemoteAddr,
		ConnectedAt: time.Now().UTC(),
	}
	transport := newWSTransport(conn, s.wsCfg.MaxMessageSize, time.Duration(s.wsCfg.WriteTimeout)*time.Second)
	session := NewSession(info, transport, SessionDeps{
		Hub:        s.hub,
		Registry:   s.registry,
		Worker:     s.worker,
		Lag:        s.lag,
		Audit:      s.audit,
		Logger:     s.logger,
		SendBuffer: s.wsCfg.SendBuffer,
	})

	s.sessions.Store(info.ID, session)
	defer s.sessions.Delete(info.ID)

	s.logger.Info("subscriber connected", "session", info.ID, "peer", info.Peer, "sessions", s.sessions.Size())
	// Hijacked connections outlive Shutdown, so the session follows the
	// server's own context.
	if err := session.Run(s.ctx); err != nil {
		s.logger.Warn("subscriber transport error", "session", info.ID, "peer", info.Peer, "error", err)
	}
	s.logger.Info("subscriber disconnected", "session", info.ID, "peer", info.Peer)
}
