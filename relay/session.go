package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/auth"
	"github.com/kkapil94/whiteBoard/config"
	"github.com/kkapil94/whiteBoard/protocol"
)

const (
	writeRetryDelay = 200 * time.Millisecond
	writeRetryMax   = 2
)

// Session is one live connection plus its verified identity and ephemeral
// presence state. It belongs to exactly one room for its whole lifetime.
type Session struct {
	id       string
	boardID  string
	identity auth.Identity
	color    string

	conn *websocket.Conn
	cfg  *config.RelayConfig

	lastHeartbeat atomic.Int64 // Unix seconds

	cursorMu sync.Mutex
	cursor   *protocol.Cursor

	writeMu sync.Mutex

	closeOnce sync.Once
	onClose   func(*Session)
}

// NewSession wraps an upgraded connection. onClose runs exactly once when
// the session closes, however the close was triggered; the handler uses it
// for the leave + "user left" teardown.
func NewSession(id, boardID string, identity auth.Identity, color string, conn *websocket.Conn, cfg *config.RelayConfig, onClose func(*Session)) *Session {
	s := &Session{
		id:       id,
		boardID:  boardID,
		identity: identity,
		color:    color,
		conn:     conn,
		cfg:      cfg,
		onClose:  onClose,
	}
	s.lastHeartbeat.Store(time.Now().Unix())
	conn.SetPongHandler(func(string) error {
		s.Touch()
		return nil
	})
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) BoardID() string { return s.boardID }

// User returns the presence view of the session.
func (s *Session) User() protocol.User {
	return protocol.User{
		UserID:      s.identity.UserID,
		DisplayName: s.identity.DisplayName,
		Color:       s.color,
		Cursor:      s.Cursor(),
	}
}

// Cursor returns the last-known pointer position, or nil if none was
// reported yet.
func (s *Session) Cursor() *protocol.Cursor {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	return s.cursor
}

// SetCursor records the latest pointer position. A nil cursor clears it.
func (s *Session) SetCursor(c *protocol.Cursor) {
	s.cursorMu.Lock()
	s.cursor = c
	s.cursorMu.Unlock()
}

// Touch refreshes the liveness timestamp. Called for every inbound frame
// and every pong.
func (s *Session) Touch() {
	s.lastHeartbeat.Store(time.Now().Unix())
}

// SilentFor reports whether no inbound traffic or pong has been observed
// for at least d.
func (s *Session) SilentFor(d time.Duration) bool {
	last := time.Unix(s.lastHeartbeat.Load(), 0)
	return time.Since(last) >= d
}

// Send writes one message to the connection with a short retry. Writes are
// serialized per session, which preserves the per-sender frame order the
// relay promises its peers.
func (s *Session) Send(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	operation := func() error {
		s.conn.SetWriteDeadline(time.Now().Add(time.Duration(s.cfg.WriteTimeout) * time.Second))
		return s.conn.WriteMessage(messageType, data)
	}

	return backoff.Retry(operation, backoff.WithMaxRetries(
		backoff.NewConstantBackOff(writeRetryDelay),
		writeRetryMax,
	))
}

// Ping sends a websocket ping control frame.
func (s *Session) Ping() error {
	return s.conn.WriteControl(
		websocket.PingMessage,
		nil,
		time.Now().Add(time.Duration(s.cfg.WriteTimeout)*time.Second),
	)
}

// Close tears the session down: close handshake, socket close, then the
// registered onClose teardown. Safe to call from any goroutine any number
// of times; everything runs exactly once.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Duration(s.cfg.WriteTimeout) * time.Second)
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.writeMu.Unlock()
		s.conn.Close()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
