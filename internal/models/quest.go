// internal/models/quest.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestStatus is the quest lifecycle state.
type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
	QuestExpired   QuestStatus = "expired"
)

// Quest is an AI-generated objective for one player. Options and Outcome are
// opaque AI payloads; the service stores and relays them without
// interpretation.
type Quest struct {
	ID             uuid.UUID       `json:"id"`
	PlayerID       uuid.UUID       `json:"player_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Status         QuestStatus     `json:"status"`
	Options        json.RawMessage `json:"options,omitempty"`
	SelectedOption *int            `json:"selected_option,omitempty"`
	Outcome        json.RawMessage `json:"outcome,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}
