// Package presence manages the human-facing layer of a room: display
// names, colors and the roster events peers see. It never touches room
// membership itself; the registry owns that.
package presence

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/protocol"
	"github.com/kkapil94/whiteBoard/room"
)

// palette is the fixed set of cursor colors. Color collisions between
// concurrent users are tolerated.
var palette = [...]string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#008080",
	"#9a6324", "#800000", "#808000", "#000075",
}

// ColorFor picks a palette color for a user. The choice is a stable hash
// of the user ID, so a user keeps their color across reconnects.
func ColorFor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Tracker emits roster events through the registry's broadcast primitives.
type Tracker struct {
	registry *room.Registry
	log      *slog.Logger
}

func NewTracker(registry *room.Registry, log *slog.Logger) *Tracker {
	return &Tracker{
		registry: registry,
		log:      log.With("component", "presence"),
	}
}

// HandleJoin welcomes a newly registered session: it receives a
// connection-ack and the active-users snapshot built from the registry's
// join snapshot, and every existing member is told about the newcomer.
// A write failure to the joiner aborts the welcome and is returned so the
// caller can tear the session down.
func (t *Tracker) HandleJoin(boardID string, s room.Session, others []room.Session) error {
	self := s.User()

	ack, err := json.Marshal(protocol.ConnectionAck{
		Type:        protocol.TypeConnectionAck,
		UserID:      self.UserID,
		DisplayName: self.DisplayName,
		Color:       self.Color,
	})
	if err != nil {
		return fmt.Errorf("marshal connection-ack: %w", err)
	}
	if err := s.Send(websocket.TextMessage, ack); err != nil {
		return fmt.Errorf("send connection-ack: %w", err)
	}

	users := make([]protocol.User, 0, len(others))
	for _, peer := range others {
		users = append(users, peer.User())
	}
	roster, err := json.Marshal(protocol.ActiveUsers{Type: protocol.TypeActiveUsers, Users: users})
	if err != nil {
		return fmt.Errorf("marshal active-users: %w", err)
	}
	if err := s.Send(websocket.TextMessage, roster); err != nil {
		return fmt.Errorf("send active-users: %w", err)
	}

	joined, err := json.Marshal(protocol.UserJoined{
		Type:        protocol.TypeUserJoined,
		UserID:      self.UserID,
		DisplayName: self.DisplayName,
		Color:       self.Color,
	})
	if err != nil {
		return fmt.Errorf("marshal user-joined: %w", err)
	}
	t.registry.Broadcast(boardID, s, websocket.TextMessage, joined, true)
	return nil
}

// HandleLeave announces a departed session to the remaining members. The
// caller guarantees the session has already left the registry, so the
// event cannot be delivered back to it.
func (t *Tracker) HandleLeave(boardID string, s room.Session) {
	left, err := json.Marshal(protocol.UserLeft{
		Type:   protocol.TypeUserLeft,
		UserID: s.User().UserID,
	})
	if err != nil {
		t.log.Error("marshal user-left", "error", err)
		return
	}
	t.registry.Broadcast(boardID, s, websocket.TextMessage, left, true)
}

// BroadcastCursor fans out a member's new cursor position, or null when
// the pointer left the board.
func (t *Tracker) BroadcastCursor(boardID string, s room.Session, cursor *protocol.Cursor) {
	self := s.User()
	update, err := json.Marshal(protocol.CursorUpdate{
		Type:        protocol.TypeCursorUpdate,
		UserID:      self.UserID,
		DisplayName: self.DisplayName,
		Color:       self.Color,
		Cursor:      cursor,
	})
	if err != nil {
		t.log.Error("marshal cursor-update", "error", err)
		return
	}
	t.registry.Broadcast(boardID, s, websocket.TextMessage, update, true)
}
