// internal/mirror/mirror_test.go
package mirror

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronocore/chronocore-service/internal/models"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fixedLoader returns a canned document for any game.
type fixedLoader struct {
	doc *GameDocument
	err error
}

func (f fixedLoader) LoadGameDocument(ctx context.Context, gameID uuid.UUID) (*GameDocument, error) {
	return f.doc, f.err
}

func TestEnqueuePushesRecord(t *testing.T) {
	rdb := testRedis(t)
	w := NewWriter(rdb)

	gameID := uuid.New()
	err := w.Enqueue(context.Background(), ChangeRecord{
		GameID: gameID,
		Entity: "game",
		Op:     "end-turn",
	})
	require.NoError(t, err)

	raw, err := rdb.LPop(context.Background(), DefaultQueueName).Bytes()
	require.NoError(t, err)

	var rec ChangeRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, gameID, rec.GameID)
	assert.Equal(t, "end-turn", rec.Op)
	assert.NotZero(t, rec.Timestamp, "Enqueue stamps the record")
}

func TestRebuildWritesDocument(t *testing.T) {
	rdb := testRedis(t)
	gameID := uuid.New()

	loader := fixedLoader{doc: &GameDocument{
		Game: &models.Game{
			ID:          gameID,
			Name:        "Fracture Point",
			Status:      models.GameActive,
			CurrentEra:  models.EraDistortion,
			CurrentTurn: 12,
		},
		Players: []*models.Player{
			{ID: uuid.New(), GameID: gameID, Resources: 7},
		},
	}}

	worker := NewWorker(rdb, loader, quietLogger())
	require.NoError(t, worker.Rebuild(context.Background(), gameID))

	doc, err := NewReader(rdb).GetState(context.Background(), gameID)
	require.NoError(t, err)
	assert.Equal(t, gameID, doc.Game.ID)
	assert.Equal(t, models.EraDistortion, doc.Game.CurrentEra)
	assert.Equal(t, 12, doc.Game.CurrentTurn)
	require.Len(t, doc.Players, 1)
	assert.Equal(t, 7, doc.Players[0].Resources)
	assert.False(t, doc.UpdatedAt.IsZero(), "Rebuild stamps the document")
}

func TestWorkerDrainsQueue(t *testing.T) {
	rdb := testRedis(t)
	gameID := uuid.New()

	loader := fixedLoader{doc: &GameDocument{
		Game: &models.Game{ID: gameID, Status: models.GameActive},
	}}
	worker := NewWorker(rdb, loader, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)
	defer worker.Stop()

	w := NewWriter(rdb)
	require.NoError(t, w.Enqueue(ctx, ChangeRecord{GameID: gameID, Entity: "game", Op: "develop"}))

	reader := NewReader(rdb)
	require.Eventually(t, func() bool {
		_, err := reader.GetState(context.Background(), gameID)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "worker should rebuild the document")

	// The record was consumed.
	n, err := rdb.LLen(context.Background(), DefaultQueueName).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetStateMissingDocument(t *testing.T) {
	rdb := testRedis(t)

	_, err := NewReader(rdb).GetState(context.Background(), uuid.New())
	assert.ErrorIs(t, err, redis.Nil)
}
