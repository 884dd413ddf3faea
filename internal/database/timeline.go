// internal/database/timeline.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronocore/chronocore-service/internal/models"
)

func CreateTimeline(ctx context.Context, t *models.Timeline) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	q := `INSERT INTO timelines (id, game_id, name, stability) VALUES ($1, $2, $3, $4)`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, t.ID, t.GameID, t.Name, t.Stability)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert timeline: %w", err)
	}
	return nil
}

// GetTimelineByID loads the timeline and eager-loads its realms.
func GetTimelineByID(ctx context.Context, id uuid.UUID) (*models.Timeline, error) {
	var t models.Timeline
	q := `
	SELECT id, game_id, name, stability, created_at
	FROM timelines
	WHERE id=$1 AND deleted_at IS NULL
	`
	err := DB.QueryRow(ctx, q, id).Scan(&t.ID, &t.GameID, &t.Name, &t.Stability, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	t.Realms, err = ListRealmsByTimeline(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load realms for timeline %s: %w", id, err)
	}
	return &t, nil
}

// ListTimelinesByGame returns the game's timelines, without realms.
func ListTimelinesByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Timeline, error) {
	q := `
	SELECT id, game_id, name, stability, created_at
	FROM timelines
	WHERE game_id=$1 AND deleted_at IS NULL
	ORDER BY created_at
	`
	rows, err := DB.Query(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timelines []*models.Timeline
	for rows.Next() {
		var t models.Timeline
		if err := rows.Scan(&t.ID, &t.GameID, &t.Name, &t.Stability, &t.CreatedAt); err != nil {
			return nil, err
		}
		timelines = append(timelines, &t)
	}
	return timelines, rows.Err()
}

// AdjustTimelineStability applies a signed delta, clamped to [0,100].
func AdjustTimelineStability(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	q := `
	UPDATE timelines SET stability=LEAST(100, GREATEST(0, stability+$1))
	WHERE id=$2 AND deleted_at IS NULL
	RETURNING stability
	`
	var stability int
	if err := DB.QueryRow(ctx, q, delta, id).Scan(&stability); err != nil {
		return 0, notFound(err)
	}
	return stability, nil
}

// CreateTimeRift records an AI-generated rift against the timeline.
func CreateTimeRift(ctx context.Context, r *models.TimeRift) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	q := `
	INSERT INTO time_rifts (id, timeline_id, severity, description, resolved)
	VALUES ($1, $2, $3, $4, $5)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, r.ID, r.TimelineID, r.Severity, r.Description, r.Resolved)
		return e
	})
	if err != nil {
		return fmt.Errorf("failed to insert time rift: %w", err)
	}
	return nil
}

// ListTimeRiftsByTimeline returns rifts, unresolved first, newest first within
// each group.
func ListTimeRiftsByTimeline(ctx context.Context, timelineID uuid.UUID) ([]*models.TimeRift, error) {
	q := `
	SELECT id, timeline_id, severity, description, resolved, created_at
	FROM time_rifts
	WHERE timeline_id=$1 AND deleted_at IS NULL
	ORDER BY resolved, created_at DESC
	`
	rows, err := DB.Query(ctx, q, timelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rifts []*models.TimeRift
	for rows.Next() {
		var r models.TimeRift
		if err := rows.Scan(&r.ID, &r.TimelineID, &r.Severity, &r.Description, &r.Resolved, &r.CreatedAt); err != nil {
			return nil, err
		}
		rifts = append(rifts, &r)
	}
	return rifts, rows.Err()
}

// GetTimeRiftByID loads one rift.
func GetTimeRiftByID(ctx context.Context, id uuid.UUID) (*models.TimeRift, error) {
	var r models.TimeRift
	q := `
	SELECT id, timeline_id, severity, description, resolved, created_at
	FROM time_rifts
	WHERE id=$1 AND deleted_at IS NULL
	`
	err := DB.QueryRow(ctx, q, id).Scan(&r.ID, &r.TimelineID, &r.Severity, &r.Description, &r.Resolved, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// ResolveTimeRift marks an open rift resolved. Returns ErrNotFound when the
// rift does not exist or was already resolved.
func ResolveTimeRift(ctx context.Context, id uuid.UUID) error {
	q := `
	UPDATE time_rifts SET resolved=TRUE
	WHERE id=$1 AND resolved=FALSE AND deleted_at IS NULL
	`
	tag, err := DB.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
