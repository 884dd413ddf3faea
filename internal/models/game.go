// internal/models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a game row.
type GameStatus string

const (
	GameCreated   GameStatus = "created"
	GameActive    GameStatus = "active"
	GamePaused    GameStatus = "paused"
	GameCompleted GameStatus = "completed"
)

// Era is one of the four ordered game-wide phases. The AI collaborator's
// turn-end verdict drives advancement when a game has an AI correlation;
// otherwise the era advances on fixed turn thresholds, one era every
// EraLength turns.
type Era string

const (
	EraInitiation  Era = "Initiation"
	EraProgression Era = "Progression"
	EraDistortion  Era = "Distortion"
	EraEquilibrium Era = "Equilibrium"
)

// EraOrdinal returns the 1-based position of e in the era progression, or 0
// for an unknown era.
func EraOrdinal(e Era) int {
	switch e {
	case EraInitiation:
		return 1
	case EraProgression:
		return 2
	case EraDistortion:
		return 3
	case EraEquilibrium:
		return 4
	default:
		return 0
	}
}

// NextEra returns the era following e, or e itself if already at Equilibrium.
func NextEra(e Era) Era {
	switch e {
	case EraInitiation:
		return EraProgression
	case EraProgression:
		return EraDistortion
	case EraDistortion:
		return EraEquilibrium
	default:
		return e
	}
}

// ValidEra reports whether s names one of the four eras.
func ValidEra(s string) bool {
	switch Era(s) {
	case EraInitiation, EraProgression, EraDistortion, EraEquilibrium:
		return true
	}
	return false
}

// Game is the authoritative relational row for one match. Version is the
// optimistic-lock counter: every turn advance is a conditional update against
// the version read, so two racing end-turn calls cannot both win.
type Game struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	JoinCode           string     `json:"join_code"`
	Status             GameStatus `json:"status"`
	MaxPlayers         int        `json:"max_players"`
	CurrentEra         Era        `json:"current_era"`
	EraLength          int        `json:"era_length"`
	CurrentTurn        int        `json:"current_turn"`
	CurrentPlayerIndex int        `json:"current_player_index"`
	GlobalKarma        int        `json:"global_karma"`
	CreatorID          uuid.UUID  `json:"creator_id"`
	AIStateID          string     `json:"ai_state_id,omitempty"`
	Version            int        `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}
