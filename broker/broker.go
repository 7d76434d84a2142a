// Package broker provides optional cross-instance frame fan-out. A relay
// instance publishes the frames it relays; peer instances replay them into
// their local rooms. Single-instance deployments run without a broker.
package broker

import (
	"context"
	"encoding/json"
)

// Message is one relayed frame in transit between relay instances. Data is
// the frame payload verbatim; binary sync frames are never inspected, only
// carried.
type Message struct {
	BoardID     string `json:"board_id"`
	ServerID    string `json:"server_id"`  // instance that relayed the frame
	SessionID   string `json:"session_id"` // sending session on that instance
	MessageType int    `json:"message_type"`
	Data        []byte `json:"data"`
}

// MarshalBinary implements encoding.BinaryMarshaler so the message can be
// published to Redis directly.
func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Message) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

// MessageBroker abstracts the pub/sub transport between relay instances.
type MessageBroker interface {
	// Publish sends a message to the specified channel.
	Publish(ctx context.Context, channel string, message Message) error
	// Subscribe starts listening for messages on the specified channel.
	// The returned channel closes when the context is cancelled or the
	// broker shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
	// Close cleans up broker resources.
	Close() error
	// Type returns the broker implementation name for metrics labels.
	Type() string
}
