// internal/database/store.go
package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/game"
	"github.com/chronocore/chronocore-service/internal/models"
)

// Std adapts this package's free functions to the interfaces consumed by
// internal/game. It carries no state; the pool is package-level.
type Std struct{}

func (Std) GetGameByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	return GetGameByID(ctx, id)
}

func (Std) GetPlayerByUserAndGame(ctx context.Context, userID, gameID uuid.UUID) (*models.Player, error) {
	p, err := GetPlayerByUserAndGame(ctx, userID, gameID)
	if errors.Is(err, ErrNotFound) {
		return nil, game.ErrNotAPlayer
	}
	return p, err
}

func (Std) ListActivePlayersByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	return ListActivePlayersByGame(ctx, gameID)
}

func (Std) AdvanceTurn(ctx context.Context, id uuid.UUID, nextIndex, nextTurn int, era models.Era, version int) error {
	err := AdvanceTurn(ctx, id, nextIndex, nextTurn, era, version)
	if errors.Is(err, ErrVersionConflict) {
		return game.ErrTurnConflict
	}
	return err
}

func (Std) SetGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) error {
	return SetGameStatus(ctx, id, status)
}

func (Std) TouchPlayerAction(ctx context.Context, playerID uuid.UUID) error {
	return TouchPlayerAction(ctx, playerID)
}

func (Std) ExpireOverdueQuests(ctx context.Context, playerID uuid.UUID) (int, error) {
	return ExpireOverdueQuests(ctx, playerID)
}

func (Std) SetRealmDevelopment(ctx context.Context, realmID uuid.UUID, delta int) (int, error) {
	return SetRealmDevelopment(ctx, realmID, delta)
}

func (Std) AdjustPlayerResources(ctx context.Context, playerID uuid.UUID, delta int) (int, error) {
	return AdjustPlayerResources(ctx, playerID, delta)
}

func (Std) AdjustPlayerKarma(ctx context.Context, playerID uuid.UUID, delta int) (int, error) {
	return AdjustPlayerKarma(ctx, playerID, delta)
}

func (Std) AdjustGlobalKarma(ctx context.Context, gameID uuid.UUID, delta int) (int, error) {
	return AdjustGlobalKarma(ctx, gameID, delta)
}

func (Std) BumpPlayerStat(ctx context.Context, playerID uuid.UUID, stat string, delta int) error {
	return BumpPlayerStat(ctx, playerID, stat, delta)
}

func (Std) CreateDecision(ctx context.Context, d *models.Decision) error {
	return CreateDecision(ctx, d)
}
