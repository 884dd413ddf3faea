// internal/models/game_action.go
package models

import "github.com/google/uuid"

// GameAction captures one in-game move sent over the relay.
type GameAction struct {
	GameID     uuid.UUID              `json:"game_id"`
	ActionType string                 `json:"action_type"`
	Payload    map[string]interface{} `json:"payload"`
}
