package room

import (
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkapil94/whiteBoard/protocol"
)

// fakeSession implements Session and records everything sent to it.
type fakeSession struct {
	id   string
	user protocol.User

	mu         sync.Mutex
	sent       [][]byte
	failWrites bool
	closed     bool
	closeFn    func()
}

func newFakeSession(id, userID string) *fakeSession {
	return &fakeSession{
		id:   id,
		user: protocol.User{UserID: userID, DisplayName: userID, Color: "#e6194b"},
	}
}

func (f *fakeSession) ID() string          { return f.id }
func (f *fakeSession) User() protocol.User { return f.user }

func (f *fakeSession) Send(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("write failed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeSession) Close(code int, reason string) {
	f.mu.Lock()
	alreadyClosed := f.closed
	f.closed = true
	f.mu.Unlock()
	if !alreadyClosed && f.closeFn != nil {
		f.closeFn()
	}
}

func (f *fakeSession) sentPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistry_JoinReturnsOtherSessions(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")

	others := r.Join("b1", s1)
	assert.Empty(t, others, "first joiner should see an empty room")

	others = r.Join("b1", s2)
	require.Len(t, others, 1)
	assert.Equal(t, "s1", others[0].ID())
}

func TestRegistry_LeaveDeletesEmptyRoom(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")
	r.Join("b1", s1)
	r.Join("b1", s2)

	assert.True(t, r.Leave("b1", s1))
	assert.Equal(t, 1, r.RoomCount())

	assert.True(t, r.Leave("b1", s2))
	assert.Equal(t, 0, r.RoomCount())
	assert.Empty(t, r.Members("b1"))

	// A fresh join after teardown creates a room with only the newcomer.
	s3 := newFakeSession("s3", "carol")
	others := r.Join("b1", s3)
	assert.Empty(t, others)
	require.Len(t, r.Members("b1"), 1)
	assert.Equal(t, "s3", r.Members("b1")[0].ID())
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	r.Join("b1", s1)

	assert.True(t, r.Leave("b1", s1))
	assert.False(t, r.Leave("b1", s1), "second leave should report the session as absent")
	assert.False(t, r.Leave("b2", s1), "leaving an unknown board should be a no-op")
}

func TestRegistry_BroadcastExcludesSenderAndOtherBoards(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")
	s3 := newFakeSession("s3", "carol")
	r.Join("b1", s1)
	r.Join("b1", s2)
	r.Join("b2", s3)

	payload := []byte{0x01, 0x02, 0x03}
	r.Broadcast("b1", s1, websocket.BinaryMessage, payload, true)

	require.Len(t, s2.sentPayloads(), 1)
	assert.Equal(t, payload, s2.sentPayloads()[0])
	assert.Empty(t, s1.sentPayloads(), "sender must not receive its own frame")
	assert.Empty(t, s3.sentPayloads(), "sessions on other boards must not observe the frame")
}

func TestRegistry_BroadcastIncludesSenderWhenAsked(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")
	r.Join("b1", s1)
	r.Join("b1", s2)

	r.Broadcast("b1", nil, websocket.TextMessage, []byte(`{"type":"x"}`), false)

	assert.Len(t, s1.sentPayloads(), 1)
	assert.Len(t, s2.sentPayloads(), 1)
}

func TestRegistry_BroadcastWriteFailureIsIsolated(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")
	s3 := newFakeSession("s3", "carol")
	s2.failWrites = true
	s2.closeFn = func() { r.Leave("b1", s2) }
	r.Join("b1", s1)
	r.Join("b1", s2)
	r.Join("b1", s3)

	payload := []byte{0xaa}
	r.Broadcast("b1", s1, websocket.BinaryMessage, payload, true)

	require.Len(t, s3.sentPayloads(), 1, "failure on one peer must not abort delivery to others")
	assert.Equal(t, payload, s3.sentPayloads()[0])
	assert.True(t, s2.isClosed(), "failed recipient must be closed")
	assert.Len(t, r.Members("b1"), 2, "failed recipient's close must cascade into leave")
}

func TestRegistry_SendToUser(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "bob")
	s3 := newFakeSession("s3", "carol")
	r.Join("b1", s1)
	r.Join("b1", s2)
	r.Join("b1", s3)

	payload := []byte(`{"type":"invitation-response","inviterId":"bob"}`)
	assert.True(t, r.SendToUser("b1", "bob", websocket.TextMessage, payload))

	assert.Len(t, s2.sentPayloads(), 1)
	assert.Empty(t, s1.sentPayloads())
	assert.Empty(t, s3.sentPayloads())

	assert.False(t, r.SendToUser("b1", "nobody", websocket.TextMessage, payload))
	assert.False(t, r.SendToUser("b9", "bob", websocket.TextMessage, payload))
}

func TestRegistry_SessionsByUser(t *testing.T) {
	r := newTestRegistry()
	s1 := newFakeSession("s1", "alice")
	s2 := newFakeSession("s2", "alice") // second tab
	s3 := newFakeSession("s3", "bob")
	r.Join("b1", s1)
	r.Join("b1", s2)
	r.Join("b1", s3)

	matches := r.SessionsByUser("b1", "alice")
	assert.Len(t, matches, 2)
	assert.Empty(t, r.SessionsByUser("b1", "nobody"))
}

func TestRegistry_CloseAllDrainsEveryRoom(t *testing.T) {
	r := newTestRegistry()
	sessions := []*fakeSession{
		newFakeSession("s1", "alice"),
		newFakeSession("s2", "bob"),
		newFakeSession("s3", "carol"),
	}
	boards := []string{"b1", "b1", "b2"}
	for i, s := range sessions {
		boardID := boards[i]
		sess := s
		sess.closeFn = func() { r.Leave(boardID, sess) }
		r.Join(boardID, sess)
	}

	r.CloseAll("server shutting down")

	for _, s := range sessions {
		assert.True(t, s.isClosed())
	}
	assert.Equal(t, 0, r.RoomCount())
	assert.Equal(t, 0, r.SessionCount())
}

func TestRegistry_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := newFakeSession(string(rune('a'+n)), "user")
			r.Join("b1", s)
			r.Broadcast("b1", s, websocket.BinaryMessage, []byte{byte(n)}, true)
			r.Leave("b1", s)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.RoomCount())
}
