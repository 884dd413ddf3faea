// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/game"
	"github.com/chronocore/chronocore-service/internal/middleware"
	"github.com/chronocore/chronocore-service/internal/models"
)

// relayMessage is the client→server envelope on the socket.
type relayMessage struct {
	Type       string                 `json:"type"`
	GameID     string                 `json:"gameId,omitempty"`
	ActionType string                 `json:"actionType,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

// WSHandler upgrades to WebSocket, authenticates the user, registers the
// connection and runs the read loop. One live connection per user; a second
// connection replaces the first.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"chronocore"},
		OriginPatterns: []string{"*"}, // Adjust for production security.
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "chronocore" {
		c.Close(websocket.StatusPolicyViolation, "client must speak the chronocore subprotocol")
		return
	}

	userID, err := authenticate(r)
	if err != nil {
		s.Logger.Warnf("socket authentication failed: %v", err)
		c.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	user, err := database.GetUserByID(r.Context(), userID)
	if err != nil {
		c.Close(websocket.StatusPolicyViolation, "unknown user")
		return
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	conn := &game.Connection{
		UserID:   userID,
		Username: user.Username,
		Cancel:   cancel,
		OutChan:  make(chan map[string]interface{}, 16),
	}
	s.Registry.Register(userID, conn)

	go s.writePump(ctx, c, conn)
	s.readPump(ctx, c, conn)

	s.Registry.Unregister(userID, conn)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, nil)
	c.Close(websocket.StatusNormalClosure, "bye")
}

// writePump drains the connection's OutChan onto the wire, preserving
// enqueue order.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *game.Connection) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.Logger.Errorf("failed to marshal outbound message for user %s: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.Warnf("failed to write to user %s: %v", conn.UserID, err)
				return
			}
		}
	}
}

// readPump reads client messages until the connection drops and routes them
// by type.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *game.Connection) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.Logger.Warnf("socket read error for user %s: %v", conn.UserID, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.WriteError("invalid JSON format")
			continue
		}

		switch msg.Type {
		case "join-game":
			s.handleJoinGame(ctx, conn, msg)
		case "leave-game":
			s.handleLeaveGame(conn, msg)
		case "game-action":
			s.handleGameAction(ctx, conn, msg)
		case "chat-message":
			s.handleChat(conn, msg)
		case "ping":
			conn.Write(map[string]interface{}{"type": "pong"})
		default:
			conn.WriteError("unknown message type: " + msg.Type)
		}
	}
}

// handleJoinGame subscribes the connection to a game's room. The user must be
// a player of record; failure is reported to the caller only.
func (s *Server) handleJoinGame(ctx context.Context, conn *game.Connection, msg relayMessage) {
	gameID, err := uuid.Parse(msg.GameID)
	if err != nil {
		conn.WriteError("invalid gameId")
		return
	}
	if _, err := database.GetPlayerByUserAndGame(ctx, conn.UserID, gameID); err != nil {
		conn.WriteError("you are not a player in this game")
		return
	}

	s.Registry.JoinRoom(gameID, conn)
	s.Registry.Broadcast(gameID, "player-joined", map[string]interface{}{
		"userId":   conn.UserID.String(),
		"username": conn.Username,
	})
}

// handleLeaveGame unsubscribes the connection and notifies peers.
func (s *Server) handleLeaveGame(conn *game.Connection, msg relayMessage) {
	gameID, err := uuid.Parse(msg.GameID)
	if err != nil {
		conn.WriteError("invalid gameId")
		return
	}
	s.Registry.LeaveRoom(gameID, conn.UserID)
	s.Registry.Broadcast(gameID, "player-left", map[string]interface{}{
		"userId":   conn.UserID.String(),
		"username": conn.Username,
	})
}

// handleGameAction routes a client action through the dispatcher. The
// dispatcher broadcasts game-update on success; errors go back to the caller
// only.
func (s *Server) handleGameAction(ctx context.Context, conn *game.Connection, msg relayMessage) {
	gameID, err := uuid.Parse(msg.GameID)
	if err != nil {
		conn.WriteError("invalid gameId")
		return
	}
	_, err = s.Dispatcher.Dispatch(ctx, conn.UserID, models.GameAction{
		GameID:     gameID,
		ActionType: msg.ActionType,
		Payload:    msg.Payload,
	})
	if err != nil {
		conn.WriteError(err.Error())
	}
}

// handleChat relays a chat line to the room. Only room members may chat.
func (s *Server) handleChat(conn *game.Connection, msg relayMessage) {
	gameID, err := uuid.Parse(msg.GameID)
	if err != nil {
		conn.WriteError("invalid gameId")
		return
	}
	if !s.Registry.InRoom(gameID, conn.UserID) {
		conn.WriteError("join the game before chatting")
		return
	}
	if msg.Message == "" {
		return
	}
	s.Registry.Broadcast(gameID, "chat-message", map[string]interface{}{
		"userId":   conn.UserID.String(),
		"username": conn.Username,
		"message":  msg.Message,
	})
}
