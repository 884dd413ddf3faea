// internal/database/game.go
package database

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

// joinCodeAlphabet omits easily-confused characters (0/O, 1/I/L).
const joinCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const joinCodeLength = 6

// newJoinCode returns a short human-shareable code. Uniqueness is enforced by
// the DB constraint; callers retry on a 23505.
func newJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}

const gameColumns = `id, name, join_code, status, max_players, current_era,
	era_length, current_turn, current_player_index, global_karma, creator_id,
	COALESCE(ai_state_id, ''), version, created_at, updated_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID, &g.Name, &g.JoinCode, &g.Status, &g.MaxPlayers, &g.CurrentEra,
		&g.EraLength, &g.CurrentTurn, &g.CurrentPlayerIndex, &g.GlobalKarma,
		&g.CreatorID, &g.AIStateID, &g.Version, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// CreateGame inserts a new game in 'created' status with a fresh join code.
// Retries join-code collisions a few times before giving up.
func CreateGame(ctx context.Context, g *models.Game) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = models.GameCreated
	}
	if g.CurrentEra == "" {
		g.CurrentEra = models.EraInitiation
	}
	if g.MaxPlayers == 0 {
		g.MaxPlayers = 4
	}
	if g.EraLength == 0 {
		g.EraLength = 10
	}

	q := `
	INSERT INTO games (id, name, join_code, status, max_players, current_era, era_length, creator_id, ai_state_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
	`

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		code, err := newJoinCode()
		if err != nil {
			return fmt.Errorf("failed to generate join code: %w", err)
		}
		g.JoinCode = code

		lastErr = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
			_, e := tx.Exec(ctx, q, g.ID, g.Name, g.JoinCode, g.Status, g.MaxPlayers,
				g.CurrentEra, g.EraLength, g.CreatorID, g.AIStateID)
			return e
		})
		if lastErr == nil {
			return nil
		}
		if !isUniqueViolation(lastErr) {
			break
		}
	}
	return fmt.Errorf("failed to insert game: %w", lastErr)
}

func GetGameByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE id=$1 AND deleted_at IS NULL`
	return scanGame(DB.QueryRow(ctx, q, id))
}

func GetGameByJoinCode(ctx context.Context, code string) (*models.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE join_code=$1 AND deleted_at IS NULL`
	return scanGame(DB.QueryRow(ctx, q, code))
}

// ListGames returns all non-deleted games, newest first.
func ListGames(ctx context.Context) ([]*models.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// UpdateGame changes name and max_players on a created game.
func UpdateGame(ctx context.Context, g *models.Game) error {
	q := `
	UPDATE games SET name=$1, max_players=$2, updated_at=NOW()
	WHERE id=$3 AND deleted_at IS NULL
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, g.Name, g.MaxPlayers, g.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetGameStatus moves the game through its lifecycle. Legal transitions are
// enforced by the caller; this is a plain field write.
func SetGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) error {
	q := `UPDATE games SET status=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, status, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetGameAIState stores the external-state correlation id returned by the AI
// collaborator's game initialization.
func SetGameAIState(ctx context.Context, id uuid.UUID, aiStateID string) error {
	q := `UPDATE games SET ai_state_id=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`
	_, err := DB.Exec(ctx, q, aiStateID, id)
	return err
}

// AdvanceTurn is the compare-and-swap turn write: it only succeeds if the
// version column still matches the version the caller read. Exactly one of
// two racing end-turn calls wins; the loser gets ErrVersionConflict and must
// reload.
func AdvanceTurn(ctx context.Context, id uuid.UUID, nextIndex, nextTurn int, era models.Era, version int) error {
	q := `
	UPDATE games
	SET current_player_index=$1, current_turn=$2, current_era=$3,
	    version=version+1, updated_at=NOW()
	WHERE id=$4 AND version=$5 AND status='active' AND deleted_at IS NULL
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, nextIndex, nextTurn, era, id, version)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// AdjustGlobalKarma adds delta to the game-wide karma accumulator.
func AdjustGlobalKarma(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE games SET global_karma=global_karma+$1, updated_at=NOW()
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING global_karma
	`
	var karma int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&karma); err != nil {
		return 0, notFound(err)
	}
	return karma, nil
}

// SoftDeleteGame tombstones the game row. Nothing is ever restored.
func SoftDeleteGame(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE games SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
