// internal/models/timeline.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Timeline is one branch of the game world, containing realms. Stability is
// clamped to [0,100] on every adjustment.
type Timeline struct {
	ID        uuid.UUID `json:"id"`
	GameID    uuid.UUID `json:"game_id"`
	Name      string    `json:"name"`
	Stability int       `json:"stability"`

	Realms []*Realm `json:"realms,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

// TimeRift is an AI-generated instability event attached to a timeline.
type TimeRift struct {
	ID          uuid.UUID `json:"id"`
	TimelineID  uuid.UUID `json:"timeline_id"`
	Severity    int       `json:"severity"`
	Description string    `json:"description"`
	Resolved    bool      `json:"resolved"`

	CreatedAt time.Time `json:"created_at"`
}
