// internal/mirror/mirror.go
//
// The mirror is a denormalized JSON document per game held in Redis for
// low-latency full-state reads. The relational store is the sole source of
// truth: writers never touch the document directly, they enqueue a change
// record and the worker regenerates the document from relational reads. The
// mirror is therefore eventually consistent by construction.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chronocore/chronocore-service/internal/models"
)

// DefaultQueueName is the Redis list holding pending change records.
const DefaultQueueName = "chronocore:changes"

// stateKeyPrefix prefixes per-game document keys.
const stateKeyPrefix = "chronocore:state:"

// ChangeRecord marks one game as dirty. Entity/EntityID/Op describe what
// changed for observability; the worker rebuilds the whole document either way.
type ChangeRecord struct {
	GameID    uuid.UUID `json:"game_id"`
	Entity    string    `json:"entity"`
	EntityID  uuid.UUID `json:"entity_id,omitempty"`
	Op        string    `json:"op"`
	Timestamp int64     `json:"timestamp"`
}

// GameDocument is the mirrored full-state snapshot.
type GameDocument struct {
	Game      *models.Game       `json:"game"`
	Players   []*models.Player   `json:"players"`
	Timelines []*models.Timeline `json:"timelines"`
	Rifts     []*models.TimeRift `json:"rifts,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Connect initializes a Redis client from REDIS_ADDR / REDIS_DB and pings it.
func Connect() (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Writer enqueues change records. Losing a record only delays mirror refresh
// until the game's next change; it never corrupts state.
type Writer struct {
	rdb   *redis.Client
	queue string
}

// NewWriter builds a Writer on the given client. Queue name comes from
// MIRROR_QUEUE_NAME or the default.
func NewWriter(rdb *redis.Client) *Writer {
	return &Writer{
		rdb:   rdb,
		queue: getEnv("MIRROR_QUEUE_NAME", DefaultQueueName),
	}
}

// Enqueue pushes one change record onto the queue.
func (w *Writer) Enqueue(ctx context.Context, rec ChangeRecord) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal change record: %w", err)
	}
	if err := w.rdb.RPush(ctx, w.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", w.queue, err)
	}
	return nil
}

// Reader serves full-state documents.
type Reader struct {
	rdb *redis.Client
}

func NewReader(rdb *redis.Client) *Reader {
	return &Reader{rdb: rdb}
}

// GetState returns the mirrored document for a game. Returns redis.Nil when
// the mirror has not been built yet.
func (r *Reader) GetState(ctx context.Context, gameID uuid.UUID) (*GameDocument, error) {
	raw, err := r.rdb.Get(ctx, stateKeyPrefix+gameID.String()).Bytes()
	if err != nil {
		return nil, err
	}
	var doc GameDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupt mirror document for game %s: %w", gameID, err)
	}
	return &doc, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
