// Package room owns the board-to-session mapping. The Registry is the only
// component allowed to add or remove a session from a room; everything else
// sees sessions by reference for the duration of a single relay operation.
package room

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kkapil94/whiteBoard/metrics"
	"github.com/kkapil94/whiteBoard/protocol"
)

// Session is the registry's view of a live connection. Implementations must
// make Send safe for concurrent use and Close idempotent: the registry
// closes recipients whose writes fail, and that may race with the owning
// connection's own teardown.
type Session interface {
	// ID returns the registry-unique session identifier.
	ID() string

	// User returns the presence view of the session, including its
	// last-known cursor.
	User() protocol.User

	// Send writes one websocket message to the session's connection.
	Send(messageType int, data []byte) error

	// Close tears the session down. It must trigger the leave/left path
	// exactly once no matter how many times it is called.
	Close(code int, reason string)
}

// Room groups the sessions collaborating on one board. A room exists only
// while it has members; its mutex serializes join, leave and broadcast for
// that board.
type room struct {
	boardID  string
	mu       sync.Mutex
	sessions map[string]Session
}

// Registry is the authoritative boardID -> room -> sessions map.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		log:   log.With("component", "registry"),
	}
}

// Join inserts the session into the room for boardID, creating the room if
// absent, and returns the other sessions currently in it. The snapshot is
// taken under the room lock, so it can never contain a session whose leave
// the registry has already observed.
func (r *Registry) Join(boardID string, s Session) []Session {
	r.mu.Lock()
	rm, ok := r.rooms[boardID]
	if !ok {
		rm = &room{boardID: boardID, sessions: make(map[string]Session)}
		r.rooms[boardID] = rm
		metrics.ActiveRooms.Inc()
	}

	rm.mu.Lock()
	others := make([]Session, 0, len(rm.sessions))
	for _, peer := range rm.sessions {
		others = append(others, peer)
	}
	rm.sessions[s.ID()] = s
	rm.mu.Unlock()
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	metrics.TotalSessions.Inc()
	r.log.Info("session joined", "board", boardID, "session", s.ID(), "user", s.User().UserID)
	return others
}

// Leave removes the session from its room and reports whether it was a
// member. When the room empties, the room entry itself is deleted so no
// stale board mapping lingers. Leaving a board the session is not in is a
// no-op.
func (r *Registry) Leave(boardID string, s Session) bool {
	r.mu.Lock()
	rm, ok := r.rooms[boardID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	rm.mu.Lock()
	_, present := rm.sessions[s.ID()]
	delete(rm.sessions, s.ID())
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	if empty {
		delete(r.rooms, boardID)
		metrics.ActiveRooms.Dec()
	}
	r.mu.Unlock()

	if present {
		metrics.ActiveSessions.Dec()
		r.log.Info("session left", "board", boardID, "session", s.ID(), "empty", empty)
	}
	return present
}

// Broadcast delivers payload to every session in the room, skipping the
// sender when excludeSender is set. Delivery is fire-and-forget per
// recipient: a failed write closes that recipient and delivery to the rest
// continues.
func (r *Registry) Broadcast(boardID string, sender Session, messageType int, payload []byte, excludeSender bool) {
	rm := r.room(boardID)
	if rm == nil {
		return
	}

	var failed []Session
	rm.mu.Lock()
	for id, peer := range rm.sessions {
		if excludeSender && sender != nil && id == sender.ID() {
			continue
		}
		if err := peer.Send(messageType, payload); err != nil {
			r.log.Warn("write to peer failed, evicting", "board", boardID, "session", id, "error", err)
			failed = append(failed, peer)
		}
	}
	rm.mu.Unlock()

	// Closing takes room locks again via Leave, so it must happen after
	// the iteration releases them.
	for _, peer := range failed {
		peer.Close(websocket.CloseInternalServerErr, "write failed")
	}
}

// SendToUser delivers payload to every session of a single user in the
// room, for control frames targeted at one recipient. Reports whether at
// least one session matched.
func (r *Registry) SendToUser(boardID, userID string, messageType int, payload []byte) bool {
	rm := r.room(boardID)
	if rm == nil {
		return false
	}

	var failed []Session
	delivered := false
	rm.mu.Lock()
	for _, peer := range rm.sessions {
		if peer.User().UserID != userID {
			continue
		}
		delivered = true
		if err := peer.Send(messageType, payload); err != nil {
			failed = append(failed, peer)
		}
	}
	rm.mu.Unlock()

	for _, peer := range failed {
		peer.Close(websocket.CloseInternalServerErr, "write failed")
	}
	return delivered
}

// Members returns a snapshot of the sessions in a board's room. An unknown
// board returns an empty slice.
func (r *Registry) Members(boardID string) []Session {
	rm := r.room(boardID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	members := make([]Session, 0, len(rm.sessions))
	for _, s := range rm.sessions {
		members = append(members, s)
	}
	return members
}

// SessionsByUser returns the sessions a user currently holds in a board's
// room. Used by the single-session presence policy to evict older tabs.
func (r *Registry) SessionsByUser(boardID, userID string) []Session {
	var matches []Session
	for _, s := range r.Members(boardID) {
		if s.User().UserID == userID {
			matches = append(matches, s)
		}
	}
	return matches
}

// Each calls fn for every session across all rooms. The snapshot is taken
// room by room, so fn runs without any registry lock held.
func (r *Registry) Each(fn func(boardID string, s Session)) {
	r.mu.RLock()
	boards := make([]string, 0, len(r.rooms))
	for boardID := range r.rooms {
		boards = append(boards, boardID)
	}
	r.mu.RUnlock()

	for _, boardID := range boards {
		for _, s := range r.Members(boardID) {
			fn(boardID, s)
		}
	}
}

// SessionCount returns the total number of sessions across all rooms.
func (r *Registry) SessionCount() int {
	n := 0
	r.Each(func(string, Session) { n++ })
	return n
}

// RoomCount returns the number of rooms with at least one session.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CloseAll closes every session with a going-away code. Used on server
// shutdown; each close cascades into the normal leave path, so the registry
// drains itself.
func (r *Registry) CloseAll(reason string) {
	r.Each(func(boardID string, s Session) {
		s.Close(websocket.CloseGoingAway, reason)
	})
}

func (r *Registry) room(boardID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[boardID]
}
