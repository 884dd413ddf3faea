// internal/database/quest.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

const questColumns = `id, player_id, title, description, status, options,
	selected_option, outcome, expires_at, created_at`

func scanQuest(row pgx.Row) (*models.Quest, error) {
	var q models.Quest
	err := row.Scan(
		&q.ID, &q.PlayerID, &q.Title, &q.Description, &q.Status, &q.Options,
		&q.SelectedOption, &q.Outcome, &q.ExpiresAt, &q.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &q, nil
}

func CreateQuest(ctx context.Context, quest *models.Quest) error {
	if quest.ID == uuid.Nil {
		quest.ID = uuid.New()
	}
	if quest.Status == "" {
		quest.Status = models.QuestActive
	}

	q := `
	INSERT INTO quests (id, player_id, title, description, status, options, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, quest.ID, quest.PlayerID, quest.Title, quest.Description,
			quest.Status, quest.Options, quest.ExpiresAt)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert quest: %w", err)
	}
	return nil
}

func GetQuestByID(ctx context.Context, id uuid.UUID) (*models.Quest, error) {
	q := `SELECT ` + questColumns + ` FROM quests WHERE id=$1 AND deleted_at IS NULL`
	return scanQuest(DB.QueryRow(ctx, q, id))
}

func ListQuestsByPlayer(ctx context.Context, playerID uuid.UUID) ([]*models.Quest, error) {
	q := `
	SELECT ` + questColumns + `
	FROM quests
	WHERE player_id=$1 AND deleted_at IS NULL
	ORDER BY created_at DESC
	`
	rows, err := DB.Query(ctx, q, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quests []*models.Quest
	for rows.Next() {
		quest, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		quests = append(quests, quest)
	}
	return quests, rows.Err()
}

// ResolveQuest records the selected option and AI outcome and moves the quest
// to its terminal status.
func ResolveQuest(ctx context.Context, id uuid.UUID, status models.QuestStatus, selected int, outcome []byte) error {
	q := `
	UPDATE quests SET status=$1, selected_option=$2, outcome=$3
	WHERE id=$4 AND status='active' AND deleted_at IS NULL
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, status, selected, outcome, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ExpireOverdueQuests sweeps the player's active quests whose deadline has
// passed. Returns the number of expired quests.
func ExpireOverdueQuests(ctx context.Context, playerID uuid.UUID) (int, error) {
	q := `
	UPDATE quests SET status='expired'
	WHERE player_id=$1 AND status='active' AND expires_at IS NOT NULL
	  AND expires_at < NOW() AND deleted_at IS NULL
	`
	tag, err := DB.Exec(ctx, q, playerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
