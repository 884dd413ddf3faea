// internal/database/document.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/mirror"
	"github.com/chronocore/chronocore-service/internal/models"
)

// DocumentLoader implements mirror.Loader against the relational store.
type DocumentLoader struct{}

// LoadGameDocument assembles the full denormalized snapshot of a game:
// the game row, all seated players, and every timeline with its realms and
// rifts.
func (DocumentLoader) LoadGameDocument(ctx context.Context, gameID uuid.UUID) (*mirror.GameDocument, error) {
	game, err := GetGameByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	players, err := ListPlayersByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players for game %s: %w", gameID, err)
	}

	timelines, err := ListTimelinesByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timelines for game %s: %w", gameID, err)
	}

	var rifts []*models.TimeRift
	for _, t := range timelines {
		t.Realms, err = ListRealmsByTimeline(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load realms for timeline %s: %w", t.ID, err)
		}
		tr, err := ListTimeRiftsByTimeline(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rifts for timeline %s: %w", t.ID, err)
		}
		rifts = append(rifts, tr...)
	}

	return &mirror.GameDocument{
		Game:      game,
		Players:   players,
		Timelines: timelines,
		Rifts:     rifts,
	}, nil
}
