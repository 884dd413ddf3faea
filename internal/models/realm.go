// internal/models/realm.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Realm development levels live in [1,10]; resources and population never go
// below zero. Clamping happens in the database layer so every write path gets
// the same bounds.
const (
	MinDevelopment = 1
	MaxDevelopment = 10
)

// Coordinates places a realm on the board grid.
type Coordinates struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Realm is a player-ownable location within a timeline. OwnerID is nil while
// the realm is unclaimed.
type Realm struct {
	ID          uuid.UUID   `json:"id"`
	TimelineID  uuid.UUID   `json:"timeline_id"`
	Name        string      `json:"name"`
	OwnerID     *uuid.UUID  `json:"owner_id,omitempty"`
	Development int         `json:"development"`
	Resources   int         `json:"resources"`
	Population  int         `json:"population"`
	Coordinates Coordinates `json:"coordinates"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}
