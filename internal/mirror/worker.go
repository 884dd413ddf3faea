// internal/mirror/worker.go
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Loader assembles a fresh document from the store of record.
type Loader interface {
	LoadGameDocument(ctx context.Context, gameID uuid.UUID) (*GameDocument, error)
}

// Worker drains the change-log queue and regenerates mirror documents. One
// worker per deployment is enough; duplicate rebuilds are harmless.
type Worker struct {
	rdb    *redis.Client
	loader Loader
	queue  string
	ttl    time.Duration
	logger *logrus.Logger

	cancelFn context.CancelFunc
}

// NewWorker builds a Worker. Document TTL comes from MIRROR_TTL_SEC
// (default 24h); expired documents are rebuilt on the game's next change.
func NewWorker(rdb *redis.Client, loader Loader, logger *logrus.Logger) *Worker {
	ttlSec := getEnvInt("MIRROR_TTL_SEC", 86400)
	return &Worker{
		rdb:    rdb,
		loader: loader,
		queue:  getEnv("MIRROR_QUEUE_NAME", DefaultQueueName),
		ttl:    time.Duration(ttlSec) * time.Second,
		logger: logger,
	}
}

// Run blocks, popping change records and rebuilding documents until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx, w.cancelFn = context.WithCancel(ctx)
	w.logger.Infof("mirror worker started on queue %s", w.queue)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("mirror worker shutting down")
			return
		default:
		}

		// BLPop with a short timeout so cancellation is observed promptly.
		res, err := w.rdb.BLPop(ctx, 3*time.Second, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Errorf("mirror BLPop: %v", err)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var rec ChangeRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			w.logger.Warnf("invalid change record: %v", err)
			continue
		}

		if err := w.Rebuild(ctx, rec.GameID); err != nil {
			w.logger.Errorf("mirror rebuild for game %s: %v", rec.GameID, err)
		}
	}
}

// Stop cancels a running worker.
func (w *Worker) Stop() {
	if w.cancelFn != nil {
		w.cancelFn()
	}
}

// Rebuild regenerates one game's document from the store of record and writes
// it to Redis.
func (w *Worker) Rebuild(ctx context.Context, gameID uuid.UUID) error {
	doc, err := w.loader.LoadGameDocument(ctx, gameID)
	if err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return w.rdb.Set(ctx, stateKeyPrefix+gameID.String(), data, w.ttl).Err()
}
