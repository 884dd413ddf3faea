// internal/database/decision.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

// CreateDecision inserts the immutable decision record. Decisions have no
// update path.
func CreateDecision(ctx context.Context, d *models.Decision) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	evalRaw, err := json.Marshal(d.Evaluation)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	q := `
	INSERT INTO decisions (id, player_id, game_id, quest_id, turn, text, context, evaluation)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, d.ID, d.PlayerID, d.GameID, d.QuestID, d.Turn,
			d.Text, d.Context, evalRaw)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// ListDecisionsByPlayer returns the player's decision history, newest first.
func ListDecisionsByPlayer(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Decision, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
	SELECT id, player_id, game_id, quest_id, turn, text, context, evaluation, created_at
	FROM decisions
	WHERE player_id=$1
	ORDER BY created_at DESC
	LIMIT $2
	`
	rows, err := DB.Query(ctx, q, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		var d models.Decision
		var evalRaw []byte
		if err := rows.Scan(&d.ID, &d.PlayerID, &d.GameID, &d.QuestID, &d.Turn,
			&d.Text, &d.Context, &evalRaw, &d.CreatedAt); err != nil {
			return nil, err
		}
		if len(evalRaw) > 0 {
			if err := json.Unmarshal(evalRaw, &d.Evaluation); err != nil {
				return nil, fmt.Errorf("corrupt evaluation for decision %s: %w", d.ID, err)
			}
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}
