// Package protocol defines the JSON control frames exchanged between the
// relay and its clients. Binary synchronization frames carry the document
// merge payload and are relayed opaquely; none of their contents are
// modelled here.
package protocol

// Control frame types received from clients.
const (
	TypeCursorPosition     = "cursor-position"
	TypeBoardUpdate        = "board-update"
	TypeInvitationResponse = "invitation-response"
)

// Event types emitted by the relay.
const (
	TypeConnectionAck = "connection-ack"
	TypeActiveUsers   = "active-users"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
	TypeCursorUpdate  = "cursor-update"
)

// Transform is the client's view transform at the time a cursor position
// was reported, so peers can project the pointer into their own viewport.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Cursor is a pointer position in both screen and board coordinates.
type Cursor struct {
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	BoardX    float64    `json:"boardX"`
	BoardY    float64    `json:"boardY"`
	Transform *Transform `json:"transform,omitempty"`
}

// User is the presence view of a session as shown to other room members.
// Cursor is null until the session first reports a position.
type User struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Color       string  `json:"color"`
	Cursor      *Cursor `json:"cursor"`
}

// ControlFrame is the envelope of an inbound control message. Only the
// fields relevant to the declared Type are populated; frames that are
// rebroadcast verbatim (board-update) keep their original bytes and this
// struct is used for classification only.
type ControlFrame struct {
	Type      string  `json:"type"`
	Cursor    *Cursor `json:"cursor,omitempty"`
	Content   string  `json:"content,omitempty"`
	InviterID string  `json:"inviterId,omitempty"`
}

// ConnectionAck is sent to a session immediately after admission.
type ConnectionAck struct {
	Type        string `json:"type"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// ActiveUsers is the roster snapshot sent to a session on join, listing
// every other member of the room.
type ActiveUsers struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// UserJoined announces a new room member to existing sessions.
type UserJoined struct {
	Type        string `json:"type"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// UserLeft announces a departed room member. It fires exactly once per
// session regardless of how the connection ended.
type UserLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// CursorUpdate carries a member's latest pointer position, or null when
// the member's pointer left the board.
type CursorUpdate struct {
	Type        string  `json:"type"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Color       string  `json:"color"`
	Cursor      *Cursor `json:"cursor"`
}
