// internal/handlers/respond_test.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/game"
)

func dispatchStatus(t *testing.T, err error) (int, envelope) {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Server{Logger: l}

	rec := httptest.NewRecorder()
	s.respondDispatchError(rec, err)

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func TestDispatchErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not a player", game.ErrNotAPlayer, 403},
		{"not your turn", game.ErrNotYourTurn, 400},
		{"game not active", game.ErrGameNotActive, 400},
		{"ai rejected", ai.ErrRejected, 400},
		{"ai unavailable", ai.ErrUnavailable, 502},
		{"turn conflict after retry", game.ErrTurnConflict, 409},
		{"unclassified", errors.New("dial tcp: connection refused"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := dispatchStatus(t, tc.err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, "error", env.Status)
		})
	}
}

func TestUnclassifiedErrorDetailIsNotExposed(t *testing.T) {
	_, env := dispatchStatus(t, errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal error", env.Message)
}
