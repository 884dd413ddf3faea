// internal/models/decision.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Evaluation is the AI collaborator's judgment of a decision.
type Evaluation struct {
	KarmaImpact int             `json:"karma_impact"`
	Impacts     map[string]int  `json:"impacts,omitempty"`
	Reasoning   string          `json:"reasoning,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Decision is an immutable record of a player's free-text choice, the context
// it was made in, and the AI evaluation. Decisions are never updated after
// insert.
type Decision struct {
	ID         uuid.UUID       `json:"id"`
	PlayerID   uuid.UUID       `json:"player_id"`
	GameID     uuid.UUID       `json:"game_id"`
	QuestID    *uuid.UUID      `json:"quest_id,omitempty"`
	Turn       int             `json:"turn"`
	Text       string          `json:"text"`
	Context    json.RawMessage `json:"context,omitempty"`
	Evaluation Evaluation      `json:"evaluation"`

	CreatedAt time.Time `json:"created_at"`
}
