package session

import (
	"context"
	"time"
)

// Record holds the durable view of one live relay session. It exists for
// cross-instance visibility and diagnostics; the in-memory room registry,
// not the store, is authoritative for routing.
type Record struct {
	SessionID   string    `json:"session_id"`
	BoardID     string    `json:"board_id"`
	UserID      string    `json:"user_id"`
	ServerID    string    `json:"server_id"` // ID of the relay instance holding the connection
	ConnectedAt time.Time `json:"connected_at"`
}

// Store defines the interface for session record management. Records carry
// a TTL so that a crashed instance's sessions age out on their own.
type Store interface {
	// Create stores a new session record.
	Create(ctx context.Context, rec *Record) error
	// Get retrieves a session record by session ID. A missing record
	// returns (nil, nil).
	Get(ctx context.Context, sessionID string) (*Record, error)
	// Delete removes a session record.
	Delete(ctx context.Context, sessionID string) error
	// RefreshTTL extends the record's lifetime in the store.
	RefreshTTL(ctx context.Context, sessionID string) error
}
