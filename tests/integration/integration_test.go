// Integration test against a locally running relay instance started with
// the dev config (auth disabled, broker none):
//
//	go run . &
//	INTEGRATION=1 go test ./tests/integration
package integration

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	relayURL    = "ws://localhost:8080"
	testTimeout = 5 * time.Second
)

type event map[string]interface{}

func dial(t *testing.T, boardID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(relayURL+"/relay/board:"+boardID, nil)
	require.NoError(t, err, "failed to connect to relay; is it running?")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, wantType string) event {
	t.Helper()
	for i := 0; i < 10; i++ {
		conn.SetReadDeadline(time.Now().Add(testTimeout))
		messageType, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, messageType)

		var ev event
		require.NoError(t, json.Unmarshal(msg, &ev))
		if ev["type"] == wantType {
			return ev
		}
	}
	t.Fatalf("no %q event arrived", wantType)
	return nil
}

func TestE2ERelayFlow(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test: set INTEGRATION env var to run")
	}

	boardID := "itest-" + time.Now().Format("150405")

	// First client joins an empty room.
	a := dial(t, boardID)
	ackA := readEvent(t, a, "connection-ack")
	userA := ackA["userId"].(string)
	roster := readEvent(t, a, "active-users")
	assert.Empty(t, roster["users"])

	// Second client sees the first in its roster.
	b := dial(t, boardID)
	ackB := readEvent(t, b, "connection-ack")
	userB := ackB["userId"].(string)
	require.NotEqual(t, userA, userB)
	roster = readEvent(t, b, "active-users")
	users := roster["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, userA, users[0].(map[string]interface{})["userId"])

	joined := readEvent(t, a, "user-joined")
	assert.Equal(t, userB, joined["userId"])

	// Binary frames relay verbatim.
	payload := []byte{0x01, 0x02, 0x03}
	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, payload))

	b.SetReadDeadline(time.Now().Add(testTimeout))
	messageType, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, messageType)
	assert.Equal(t, payload, got)

	// Cursor positions turn into cursor-update events for the peer.
	require.NoError(t, a.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"cursor-position","cursor":{"x":10,"y":20,"boardX":10,"boardY":20}}`)))
	update := readEvent(t, b, "cursor-update")
	assert.Equal(t, userA, update["userId"])

	// A clean disconnect produces a user-left for the peer.
	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	b.Close()

	left := readEvent(t, a, "user-left")
	assert.Equal(t, userB, left["userId"])
}
