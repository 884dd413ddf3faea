// internal/ai/client_test.go
package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronocore/chronocore-service/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClientWith(srv.URL, "test-token", srv.Client(), 2, quietLogger())
	return c, srv
}

func TestEvaluateDecisionSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"evaluation": map[string]interface{}{
				"karma_impact": -2,
				"reasoning":    "exploitative",
			},
		})
	})

	eval, err := c.EvaluateDecision(context.Background(), "state-1", uuid.New(), "divert the convoy", nil)
	require.NoError(t, err)
	assert.Equal(t, -2, eval.KarmaImpact)
	assert.Equal(t, "exploitative", eval.Reasoning)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "state-1", gotBody["game_id"])
	assert.Equal(t, "divert the convoy", gotBody["decision"])
}

func TestRejectionIsPermanent(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"detail":"unknown game"}`, http.StatusUnprocessableEntity)
	})

	_, err := c.GenerateQuest(context.Background(), "state-1", &models.Player{ID: uuid.New()})
	require.ErrorIs(t, err, ErrRejected)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestServerErrorsRetryThenUnavailable(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.GenerateStory(context.Background(), "state-1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrRejected)
	// Initial attempt plus maxRetries.
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	var calls int32
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"karma": 4})
	})

	karma, err := c.CalculateKarma(context.Background(), uuid.New(), []string{"shared resources"})
	require.NoError(t, err)
	assert.Equal(t, 4, karma)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestContextCancellationStopsRetries(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ProcessTurnEnd(ctx, "state-1", 5)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestInitializeGameReturnsCorrelationID(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/game/new", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"game_id": "engine-42"})
	})

	game := &models.Game{ID: uuid.New(), Name: "Threadbare Futures", MaxPlayers: 4}
	id, err := c.InitializeGame(context.Background(), game, nil)
	require.NoError(t, err)
	assert.Equal(t, "engine-42", id)
}

func TestProcessTurnEndDecodesVerdict(t *testing.T) {
	winner := uuid.New()
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"era":       "Equilibrium",
			"game_over": true,
			"winner_id": winner.String(),
		})
	})

	verdict, err := c.ProcessTurnEnd(context.Background(), "state-1", 30)
	require.NoError(t, err)
	assert.Equal(t, "Equilibrium", verdict.Era)
	assert.True(t, verdict.GameOver)
	require.NotNil(t, verdict.WinnerID)
	assert.Equal(t, winner, *verdict.WinnerID)
}
