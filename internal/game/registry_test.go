// internal/game/registry_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID uuid.UUID) *Connection {
	return &Connection{
		UserID:  userID,
		OutChan: make(chan map[string]interface{}, 16),
	}
}

func drain(c *Connection) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case msg := <-c.OutChan:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestBroadcastReachesRoomOnly(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameID := uuid.New()

	inRoom := newTestConn(uuid.New())
	alsoIn := newTestConn(uuid.New())
	outside := newTestConn(uuid.New())

	r.Register(inRoom.UserID, inRoom)
	r.Register(alsoIn.UserID, alsoIn)
	r.Register(outside.UserID, outside)
	r.JoinRoom(gameID, inRoom)
	r.JoinRoom(gameID, alsoIn)

	r.Broadcast(gameID, "game-update", map[string]interface{}{"turn": 3})

	for _, c := range []*Connection{inRoom, alsoIn} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "game-update", msgs[0]["type"])
		assert.Equal(t, 3, msgs[0]["turn"])
	}
	assert.Empty(t, drain(outside))
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameID := uuid.New()

	conn := newTestConn(uuid.New())
	r.Register(conn.UserID, conn)
	r.JoinRoom(gameID, conn)
	require.True(t, r.InRoom(gameID, conn.UserID))

	r.LeaveRoom(gameID, conn.UserID)
	assert.False(t, r.InRoom(gameID, conn.UserID))

	r.Broadcast(gameID, "game-update", nil)
	assert.Empty(t, drain(conn))
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameA := uuid.New()
	gameB := uuid.New()

	conn := newTestConn(uuid.New())
	r.Register(conn.UserID, conn)
	r.JoinRoom(gameA, conn)
	r.JoinRoom(gameB, conn)

	r.Unregister(conn.UserID, conn)
	assert.False(t, r.InRoom(gameA, conn.UserID))
	assert.False(t, r.InRoom(gameB, conn.UserID))
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameID := uuid.New()
	userID := uuid.New()

	// A reconnect replaces the first connection, then the first handler
	// tears down. Its unregister must not evict the replacement.
	first := newTestConn(userID)
	r.Register(userID, first)
	r.JoinRoom(gameID, first)

	second := newTestConn(userID)
	r.Register(userID, second)
	r.JoinRoom(gameID, second)

	r.Unregister(userID, first)

	assert.True(t, r.InRoom(gameID, userID), "replacement stays in its room")
	r.Broadcast(gameID, "game-update", nil)
	assert.Len(t, drain(second), 1, "replacement keeps receiving broadcasts")

	r.Unregister(userID, second)
	assert.False(t, r.InRoom(gameID, userID))
}

func TestRegisterReplacesPriorConnection(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameID := uuid.New()
	userID := uuid.New()

	cancelled := false
	first := newTestConn(userID)
	first.Cancel = func() { cancelled = true }
	r.Register(userID, first)
	r.JoinRoom(gameID, first)

	second := newTestConn(userID)
	r.Register(userID, second)

	assert.True(t, cancelled, "prior connection should be cancelled")
	assert.False(t, r.InRoom(gameID, userID), "replacement starts outside all rooms")

	// Only the new connection receives anything after it re-joins.
	r.JoinRoom(gameID, second)
	r.Broadcast(gameID, "game-update", nil)
	assert.Empty(t, drain(first))
	assert.Len(t, drain(second), 1)
}

func TestWriteDropsWhenFull(t *testing.T) {
	conn := &Connection{
		UserID:  uuid.New(),
		OutChan: make(chan map[string]interface{}, 1),
	}

	conn.Write(map[string]interface{}{"type": "first"})
	conn.Write(map[string]interface{}{"type": "second"}) // dropped, channel full

	msgs := drain(conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0]["type"])
}

func TestShutdownCancelsEverything(t *testing.T) {
	r := NewRegistry(quietLogger())
	gameID := uuid.New()

	cancels := 0
	for i := 0; i < 3; i++ {
		c := newTestConn(uuid.New())
		c.Cancel = func() { cancels++ }
		r.Register(c.UserID, c)
		r.JoinRoom(gameID, c)
	}

	r.Shutdown()
	assert.Equal(t, 3, cancels)

	r.Broadcast(gameID, "game-update", nil)
}
