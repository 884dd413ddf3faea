// internal/game/registry.go
package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Connection is a single user's live presence on the relay. Writes go through
// OutChan so one slow client never blocks a broadcast; the ws handler runs the
// write pump on the other end.
type Connection struct {
	UserID   uuid.UUID
	Username string
	Cancel   func()
	OutChan  chan map[string]interface{}
}

// Write pushes a message onto the connection's OutChan without blocking.
// Messages to a full channel are dropped; delivery is best-effort.
func (c *Connection) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.Warnf("registry: OutChan for user %s closed or full, dropped message type '%s'", c.UserID, msgType)
	}
}

// WriteError is a convenience to send a scoped error event.
func (c *Connection) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// Registry maps users to their single live connection and games to rooms of
// connections. It is created once at process start and injected wherever the
// relay is needed; there is no package-global instance.
type Registry struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]*Connection
	rooms  map[uuid.UUID]map[uuid.UUID]*Connection
	logger *logrus.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*Connection),
		rooms:  make(map[uuid.UUID]map[uuid.UUID]*Connection),
		logger: logger,
	}
}

// Register binds a connection to a user. Last write wins: any prior connection
// for the same user is cancelled and dropped from every room (no multi-device
// fan-out).
func (r *Registry) Register(userID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	if prev != nil {
		for _, room := range r.rooms {
			delete(room, userID)
		}
	}
	r.mu.Unlock()

	if prev != nil && prev.Cancel != nil {
		r.logger.Infof("registry: replacing existing connection for user %s", userID)
		prev.Cancel()
	}
}

// Unregister drops the user's connection and removes it from all rooms.
// Called on disconnect. The conn argument scopes the removal: a handler torn
// down after its connection was replaced must not evict the replacement, so
// nothing happens unless conn is still the registered connection.
func (r *Registry) Unregister(userID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userID] != conn {
		return
	}
	delete(r.conns, userID)
	for gameID, room := range r.rooms {
		delete(room, userID)
		if len(room) == 0 {
			delete(r.rooms, gameID)
		}
	}
}

// JoinRoom adds the user's connection to a game's room. The caller must have
// verified the user is a player of record first.
func (r *Registry) JoinRoom(gameID uuid.UUID, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[gameID]
	if !ok {
		room = make(map[uuid.UUID]*Connection)
		r.rooms[gameID] = room
	}
	room[conn.UserID] = conn
}

// LeaveRoom removes the user from a game's room.
func (r *Registry) LeaveRoom(gameID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[gameID]
	if !ok {
		return
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(r.rooms, gameID)
	}
}

// InRoom reports whether the user currently has a connection in the room.
func (r *Registry) InRoom(gameID, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[gameID]
	if !ok {
		return false
	}
	_, ok = room[userID]
	return ok
}

// Broadcast delivers an event to every connection in the room. No delivery
// guarantee, no acknowledgment; within one room, emission order is preserved
// because each connection's OutChan is drained in order by its write pump.
func (r *Registry) Broadcast(gameID uuid.UUID, event string, payload map[string]interface{}) {
	msg := make(map[string]interface{}, len(payload)+1)
	msg["type"] = event
	for k, v := range payload {
		msg[k] = v
	}

	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.rooms[gameID]))
	for _, c := range r.rooms[gameID] {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Write(msg)
	}
}

// Shutdown cancels every live connection and clears all state.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[uuid.UUID]*Connection)
	r.rooms = make(map[uuid.UUID]map[uuid.UUID]*Connection)
	r.mu.Unlock()

	for _, c := range conns {
		if c.Cancel != nil {
			c.Cancel()
		}
	}
}
