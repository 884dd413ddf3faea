// internal/database/player.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

const playerColumns = `p.id, p.game_id, p.user_id, p.role, p.resources, p.karma,
	p.ready, p.active, p.stats, p.joined_at, p.last_action_at, u.username`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	var statsRaw []byte
	err := row.Scan(
		&p.ID, &p.GameID, &p.UserID, &p.Role, &p.Resources, &p.Karma,
		&p.Ready, &p.Active, &statsRaw, &p.JoinedAt, &p.LastActionAt, &p.Username,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if len(statsRaw) > 0 {
		if err := json.Unmarshal(statsRaw, &p.Stats); err != nil {
			return nil, fmt.Errorf("corrupt stats blob for player %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// JoinGame adds the user as a player of record. Fails with a unique violation
// if the user is already seated in that game.
func JoinGame(ctx context.Context, gameID, userID uuid.UUID, role models.Role) (*models.Player, error) {
	p := &models.Player{
		ID:        uuid.New(),
		GameID:    gameID,
		UserID:    userID,
		Role:      role,
		Resources: 10,
		Active:    true,
	}

	q := `
	INSERT INTO players (id, game_id, user_id, role, resources, active, stats)
	VALUES ($1, $2, $3, $4, $5, TRUE, '{}')
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, p.ID, p.GameID, p.UserID, p.Role, p.Resources)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert player: %w", err)
	}
	return p, nil
}

// LeaveGame marks the player inactive and tombstones the row. The seat is not
// reused; turn rotation skips inactive players.
func LeaveGame(ctx context.Context, gameID, userID uuid.UUID) error {
	q := `
	UPDATE players SET active=FALSE, deleted_at=NOW()
	WHERE game_id=$1 AND user_id=$2 AND deleted_at IS NULL
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, gameID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func GetPlayerByID(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	q := `
	SELECT ` + playerColumns + `
	FROM players p JOIN users u ON p.user_id = u.id
	WHERE p.id=$1 AND p.deleted_at IS NULL
	`
	return scanPlayer(DB.QueryRow(ctx, q, id))
}

// GetPlayerByUserAndGame resolves the player of record for a user in a game,
// the check behind every action scoped to that game.
func GetPlayerByUserAndGame(ctx context.Context, userID, gameID uuid.UUID) (*models.Player, error) {
	q := `
	SELECT ` + playerColumns + `
	FROM players p JOIN users u ON p.user_id = u.id
	WHERE p.user_id=$1 AND p.game_id=$2 AND p.deleted_at IS NULL
	`
	return scanPlayer(DB.QueryRow(ctx, q, userID, gameID))
}

// ListPlayersByGame returns all seated players ordered by join time. The
// rotation order of the turn pointer is exactly this ordering.
func ListPlayersByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	q := `
	SELECT ` + playerColumns + `
	FROM players p JOIN users u ON p.user_id = u.id
	WHERE p.game_id=$1 AND p.deleted_at IS NULL
	ORDER BY p.joined_at
	`
	return queryPlayers(ctx, q, gameID)
}

// ListActivePlayersByGame returns only active players, join order. The
// currentPlayerIndex on the game row indexes into this list.
func ListActivePlayersByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	q := `
	SELECT ` + playerColumns + `
	FROM players p JOIN users u ON p.user_id = u.id
	WHERE p.game_id=$1 AND p.active=TRUE AND p.deleted_at IS NULL
	ORDER BY p.joined_at
	`
	return queryPlayers(ctx, q, gameID)
}

func queryPlayers(ctx context.Context, q string, args ...interface{}) ([]*models.Player, error) {
	rows, err := DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetPlayerReady flips the ready flag.
func SetPlayerReady(ctx context.Context, id uuid.UUID, ready bool) error {
	q := `UPDATE players SET ready=$1 WHERE id=$2 AND deleted_at IS NULL`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, ready, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AdjustPlayerResources applies a signed delta, clamped at zero.
func AdjustPlayerResources(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE players SET resources=GREATEST(0, resources+$1)
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING resources
	`
	var resources int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&resources); err != nil {
		return 0, notFound(err)
	}
	return resources, nil
}

// AdjustPlayerKarma applies a signed delta; karma is unbounded.
func AdjustPlayerKarma(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE players SET karma=karma+$1
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING karma
	`
	var karma int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&karma); err != nil {
		return 0, notFound(err)
	}
	return karma, nil
}

// TouchPlayerAction stamps last_action_at after any dispatched action.
func TouchPlayerAction(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE players SET last_action_at=NOW() WHERE id=$1 AND deleted_at IS NULL`
	_, err := DB.Exec(ctx, q, id)
	return err
}

// BumpPlayerStat increments one counter inside the stats jsonb blob.
func BumpPlayerStat(ctx context.Context, id uuid.UUID, stat string, delta int) error {
	q := `
	UPDATE players
	SET stats = jsonb_set(stats, ARRAY[$1::text],
		(COALESCE((stats->>$1)::int, 0) + $2)::text::jsonb)
	WHERE id=$3 AND deleted_at IS NULL
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, stat, delta, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
