// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a narrative archetype. Roles carry flavor only; no handler branches
// on them mechanically.
type Role string

const (
	RoleTechnoMonk     Role = "Techno Monk"
	RoleShadowBroker   Role = "Shadow Broker"
	RoleChronoDiplomat Role = "Chrono Diplomat"
	RoleBioSmith       Role = "Bio-Smith"
)

// ValidRole reports whether s names one of the four archetypes.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleTechnoMonk, RoleShadowBroker, RoleChronoDiplomat, RoleBioSmith:
		return true
	}
	return false
}

// PlayerStats is the per-player counters blob, stored as jsonb.
type PlayerStats struct {
	QuestsCompleted  int `json:"quests_completed"`
	DecisionsMade    int `json:"decisions_made"`
	RealmsControlled int `json:"realms_controlled"`
	RiftsResolved    int `json:"rifts_resolved"`
}

// Player is one seat in a game. Resources clamp at zero; karma is unbounded
// in both directions.
type Player struct {
	ID        uuid.UUID   `json:"id"`
	GameID    uuid.UUID   `json:"game_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      Role        `json:"role"`
	Resources int         `json:"resources"`
	Karma     int         `json:"karma"`
	Ready     bool        `json:"ready"`
	Active    bool        `json:"active"`
	Stats     PlayerStats `json:"stats"`

	Username string `json:"username,omitempty"`

	JoinedAt     time.Time  `json:"joined_at"`
	LastActionAt *time.Time `json:"last_action_at,omitempty"`
	DeletedAt    *time.Time `json:"-"`
}
