// Package relay implements the collaboration relay: admission of incoming
// connections, the per-connection read loop that classifies and forwards
// frames, and the liveness supervision that reaps unresponsive sessions.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/broker"
	"github.com/kkapil94/whiteBoard/config"
	"github.com/kkapil94/whiteBoard/metrics"
	"github.com/kkapil94/whiteBoard/presence"
	"github.com/kkapil94/whiteBoard/protocol"
	"github.com/kkapil94/whiteBoard/room"
	"github.com/kkapil94/whiteBoard/session"
)

const (
	publishQueueSize = 256
	publishTimeout   = 10 * time.Second
)

// Handler accepts relay connections and runs their read loops.
type Handler struct {
	registry   *room.Registry
	tracker    *presence.Tracker
	gatekeeper *Gatekeeper
	store      session.Store
	broker     broker.MessageBroker // nil when cross-instance fan-out is off
	cfg        *config.AppConfig
	serverID   string
	log        *slog.Logger
	upgrader   websocket.Upgrader
	publishCh  chan broker.Message
	wg         sync.WaitGroup
}

func NewHandler(registry *room.Registry, tracker *presence.Tracker, gatekeeper *Gatekeeper, store session.Store, msgBroker broker.MessageBroker, cfg *config.AppConfig, serverID string, log *slog.Logger) *Handler {
	h := &Handler{
		registry:   registry,
		tracker:    tracker,
		gatekeeper: gatekeeper,
		store:      store,
		broker:     msgBroker,
		cfg:        cfg,
		serverID:   serverID,
		log:        log.With("component", "relay"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Duration(cfg.Relay.HandshakeTimeout) * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
	if msgBroker != nil {
		h.publishCh = make(chan broker.Message, publishQueueSize)
		go h.publishLoop()
	}
	return h
}

// HandleRelay serves one relay connection at /relay/board:<boardId>. The
// upgrade happens before admission so a rejected client observes a real
// websocket close code rather than an opaque handshake failure.
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	roomPath := mux.Vars(r)["room"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.cfg.Relay.HandshakeTimeout)*time.Second)
	defer cancel()

	boardID, identity, aerr := h.gatekeeper.Admit(ctx, roomPath, r.URL.Query())
	if aerr != nil {
		metrics.AuthFailures.WithLabelValues(aerr.Label).Inc()
		h.log.Warn("admission rejected", "remote", r.RemoteAddr, "reason", aerr.Error())
		deadline := time.Now().Add(time.Duration(h.cfg.Relay.WriteTimeout) * time.Second)
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(aerr.Code, aerr.Reason), deadline)
		conn.Close()
		return
	}
	metrics.AuthSuccess.Inc()

	conn.SetReadLimit(h.cfg.Relay.MessageSizeLimit)

	sess := NewSession(uuid.NewString(), boardID, identity, presence.ColorFor(identity.UserID), conn, &h.cfg.Relay, h.teardown)

	// Single-session policy: a user opening a second connection to the
	// same board replaces the first.
	if !h.cfg.Presence.MultiSession {
		for _, old := range h.registry.SessionsByUser(boardID, identity.UserID) {
			old.Close(websocket.ClosePolicyViolation, "session replaced by a newer connection")
		}
	}

	rec := &session.Record{
		SessionID:   sess.ID(),
		BoardID:     boardID,
		UserID:      identity.UserID,
		ServerID:    h.serverID,
		ConnectedAt: time.Now(),
	}
	if err := h.store.Create(context.Background(), rec); err != nil {
		// The store is diagnostic; a write failure must not block the join.
		h.log.Error("failed to create session record", "session", sess.ID(), "error", err)
	}

	// From here on the session is reachable from the registry and every
	// exit must run the teardown. Close is idempotent, so the deferred
	// call is a no-op when the read loop already closed the session.
	defer sess.Close(websocket.CloseNormalClosure, "connection closed")
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("panic while serving session", "session", sess.ID(), "panic", p)
			sess.Close(websocket.CloseInternalServerErr, "internal error")
		}
	}()

	others := h.registry.Join(boardID, sess)

	if err := h.tracker.HandleJoin(boardID, sess, others); err != nil {
		h.log.Warn("failed to welcome session", "session", sess.ID(), "error", err)
		sess.Close(websocket.CloseInternalServerErr, "failed to deliver roster")
		return
	}

	h.readLoop(sess, conn)
}

// teardown is the single exit path of every session: remove it from its
// room, tell the remaining members, drop the store record. Runs exactly
// once per session via the session's close latch.
func (h *Handler) teardown(s *Session) {
	if h.registry.Leave(s.BoardID(), s) {
		h.tracker.HandleLeave(s.BoardID(), s)
	}
	if err := h.store.Delete(context.Background(), s.ID()); err != nil {
		h.log.Warn("failed to delete session record", "session", s.ID(), "error", err)
	}
}

// readLoop pulls frames off the connection and routes them until the
// connection dies. It runs on the connection's own goroutine; routing is
// sequential per session, which preserves per-sender frame order.
func (h *Handler) readLoop(s *Session, conn *websocket.Conn) {
	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				h.log.Debug("read error", "session", s.ID(), "error", err)
			}
			s.Close(websocket.CloseNormalClosure, "client disconnected")
			return
		}

		// Any inbound frame counts as liveness, even one the router will
		// end up discarding.
		s.Touch()
		if err := h.store.RefreshTTL(context.Background(), s.ID()); err != nil {
			h.log.Warn("failed to refresh session record TTL", "session", s.ID(), "error", err)
		}

		h.route(s, messageType, msg)
	}
}

// route classifies one inbound frame by its websocket opcode: binary
// frames carry the document merge payload and are relayed verbatim, text
// frames are JSON control messages dispatched by type. Malformed input is
// dropped, never fatal.
func (h *Handler) route(s *Session, messageType int, msg []byte) {
	switch messageType {
	case websocket.BinaryMessage:
		metrics.SyncFramesRelayed.Inc()
		h.registry.Broadcast(s.BoardID(), s, websocket.BinaryMessage, msg, true)
		h.publish(s, websocket.BinaryMessage, msg)

	case websocket.TextMessage:
		var frame protocol.ControlFrame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type == "" {
			h.log.Warn("discarding malformed control frame", "session", s.ID(), "error", err)
			metrics.FramesDropped.Inc()
			return
		}

		switch frame.Type {
		case protocol.TypeCursorPosition:
			metrics.ControlFramesHandled.WithLabelValues(frame.Type).Inc()
			s.SetCursor(frame.Cursor)
			h.tracker.BroadcastCursor(s.BoardID(), s, frame.Cursor)

		case protocol.TypeBoardUpdate:
			metrics.ControlFramesHandled.WithLabelValues(frame.Type).Inc()
			h.registry.Broadcast(s.BoardID(), s, websocket.TextMessage, msg, true)
			h.publish(s, websocket.TextMessage, msg)

		case protocol.TypeInvitationResponse:
			metrics.ControlFramesHandled.WithLabelValues(frame.Type).Inc()
			if frame.InviterID == "" {
				metrics.FramesDropped.Inc()
				return
			}
			if !h.registry.SendToUser(s.BoardID(), frame.InviterID, websocket.TextMessage, msg) {
				h.log.Debug("invitation response target not in room", "board", s.BoardID(), "target", frame.InviterID)
			}

		default:
			h.log.Warn("discarding control frame with unrecognized type", "session", s.ID(), "type", frame.Type)
			metrics.FramesDropped.Inc()
		}
	}
}

// publish hands a relayed frame to the broker so peer instances can replay
// it into their local rooms. Frames are queued to a single publisher
// goroutine in the order the read loops relayed them, so the per-sender
// frame order local peers observed is the order the broker receives. A
// full queue blocks the sender's read loop until the publisher catches up.
func (h *Handler) publish(s *Session, messageType int, data []byte) {
	if h.broker == nil {
		return
	}

	h.wg.Add(1)
	h.publishCh <- broker.Message{
		BoardID:     s.BoardID(),
		ServerID:    h.serverID,
		SessionID:   s.ID(),
		MessageType: messageType,
		Data:        data,
	}
}

// publishLoop drains the publish queue one frame at a time. Publishing
// sequentially is what keeps frame order intact on the wire; a publish
// failure is logged and never affects the local broadcast that already
// happened.
func (h *Handler) publishLoop() {
	for msg := range h.publishCh {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := h.broker.Publish(ctx, h.cfg.Broker.Channel, msg); err != nil {
			h.log.Warn("broker publish failed", "board", msg.BoardID, "error", err)
		} else {
			metrics.BrokerMessagesPublished.WithLabelValues(h.broker.Type()).Inc()
		}
		cancel()
		h.wg.Done()
	}
}

// ListenForPeerFrames replays frames relayed by other instances into the
// local rooms for the same boards. Frames published by this instance are
// skipped; local sessions already received them.
func (h *Handler) ListenForPeerFrames(ctx context.Context) error {
	if h.broker == nil {
		return nil
	}

	messages, err := h.broker.Subscribe(ctx, h.cfg.Broker.Channel)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					h.log.Warn("broker subscription closed")
					return
				}
				if msg.ServerID == h.serverID {
					continue
				}
				h.registry.Broadcast(msg.BoardID, nil, msg.MessageType, msg.Data, false)
			}
		}
	}()
	return nil
}

// WaitForCompletion blocks until in-flight broker publishes finish. Used
// during graceful shutdown.
func (h *Handler) WaitForCompletion() {
	h.wg.Wait()
}
