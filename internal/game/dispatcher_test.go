// internal/game/dispatcher_test.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/mirror"
	"github.com/chronocore/chronocore-service/internal/models"
)

// fakeStore is an in-memory Store. Turn advancement honors the version column
// the same way the SQL does, so conflict behavior is testable.
type fakeStore struct {
	mu sync.Mutex

	game    *models.Game
	players []*models.Player

	decisions []*models.Decision

	// forceConflicts makes the next N AdvanceTurn calls fail with
	// ErrTurnConflict while still bumping the stored version, simulating a
	// concurrent writer winning the race.
	forceConflicts int

	// playerLookupErr simulates a store outage on the player lookup.
	playerLookupErr error

	realmDevelopment map[uuid.UUID]int
}

func (f *fakeStore) GetGameByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := *f.game
	return &g, nil
}

func (f *fakeStore) GetPlayerByUserAndGame(ctx context.Context, userID, gameID uuid.UUID) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playerLookupErr != nil {
		return nil, f.playerLookupErr
	}
	for _, p := range f.players {
		if p.UserID == userID && p.GameID == gameID {
			cp := *p
			return &cp, nil
		}
	}
	// Missing row maps to the domain sentinel, matching the database adapter.
	return nil, ErrNotAPlayer
}

func (f *fakeStore) ListActivePlayersByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Player
	for _, p := range f.players {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) AdvanceTurn(ctx context.Context, id uuid.UUID, nextIndex, nextTurn int, era models.Era, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceConflicts > 0 {
		f.forceConflicts--
		f.game.Version++
		return ErrTurnConflict
	}
	if version != f.game.Version {
		return ErrTurnConflict
	}
	f.game.CurrentPlayerIndex = nextIndex
	f.game.CurrentTurn = nextTurn
	f.game.CurrentEra = era
	f.game.Version++
	return nil
}

func (f *fakeStore) SetGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.game.Status = status
	return nil
}

func (f *fakeStore) TouchPlayerAction(ctx context.Context, playerID uuid.UUID) error { return nil }

func (f *fakeStore) ExpireOverdueQuests(ctx context.Context, playerID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeStore) SetRealmDevelopment(ctx context.Context, realmID uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dev, ok := f.realmDevelopment[realmID]
	if !ok {
		return 0, errNotFound
	}
	dev += delta
	if dev < models.MinDevelopment {
		dev = models.MinDevelopment
	}
	if dev > models.MaxDevelopment {
		dev = models.MaxDevelopment
	}
	f.realmDevelopment[realmID] = dev
	return dev, nil
}

func (f *fakeStore) AdjustPlayerResources(ctx context.Context, playerID uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.ID == playerID {
			p.Resources += delta
			if p.Resources < 0 {
				p.Resources = 0
			}
			return p.Resources, nil
		}
	}
	return 0, errNotFound
}

func (f *fakeStore) AdjustPlayerKarma(ctx context.Context, playerID uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.ID == playerID {
			p.Karma += delta
			return p.Karma, nil
		}
	}
	return 0, errNotFound
}

func (f *fakeStore) AdjustGlobalKarma(ctx context.Context, gameID uuid.UUID, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.game.GlobalKarma += delta
	return f.game.GlobalKarma, nil
}

func (f *fakeStore) BumpPlayerStat(ctx context.Context, playerID uuid.UUID, stat string, delta int) error {
	return nil
}

func (f *fakeStore) CreateDecision(ctx context.Context, d *models.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	f.decisions = append(f.decisions, d)
	return nil
}

var errNotFound = assert.AnError

// fakeAI scripts the collaborator responses.
type fakeAI struct {
	evaluation  *models.Evaluation
	evalErr     error
	turnEnd     *ai.TurnEndResult
	turnEndErr  error
	turnsEnded  int
	evaluations int
}

func (f *fakeAI) EvaluateDecision(ctx context.Context, aiStateID string, playerID uuid.UUID, text string, decisionCtx json.RawMessage) (*models.Evaluation, error) {
	f.evaluations++
	return f.evaluation, f.evalErr
}

func (f *fakeAI) ProcessTurnEnd(ctx context.Context, aiStateID string, turn int) (*ai.TurnEndResult, error) {
	f.turnsEnded++
	return f.turnEnd, f.turnEndErr
}

// fakeNotifier records enqueued change records.
type fakeNotifier struct {
	mu      sync.Mutex
	records []mirror.ChangeRecord
}

func (f *fakeNotifier) Enqueue(ctx context.Context, rec mirror.ChangeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

// broadcastCollector stands in for the registry.
type broadcastCollector struct {
	mu     sync.Mutex
	events []collectedEvent
}

type collectedEvent struct {
	gameID  uuid.UUID
	event   string
	payload map[string]interface{}
}

func (b *broadcastCollector) fn(gameID uuid.UUID, event string, payload map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, collectedEvent{gameID, event, payload})
}

func (b *broadcastCollector) last() *collectedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return &b.events[len(b.events)-1]
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupDispatcher(t *testing.T, numPlayers int) (*Dispatcher, *fakeStore, *fakeAI, *broadcastCollector) {
	t.Helper()

	gameID := uuid.New()
	store := &fakeStore{
		game: &models.Game{
			ID:         gameID,
			Status:     models.GameActive,
			CurrentEra: models.EraInitiation,
			AIStateID:  "ai-state-1",
		},
		realmDevelopment: make(map[uuid.UUID]int),
	}
	for i := 0; i < numPlayers; i++ {
		store.players = append(store.players, &models.Player{
			ID:        uuid.New(),
			GameID:    gameID,
			UserID:    uuid.New(),
			Resources: 10,
			Active:    true,
		})
	}

	collab := &fakeAI{}
	bc := &broadcastCollector{}
	d := NewDispatcher(store, collab, &fakeNotifier{}, quietLogger())
	d.BroadcastFn = bc.fn
	return d, store, collab, bc
}

func endTurn(d *Dispatcher, store *fakeStore, userID uuid.UUID) (map[string]interface{}, error) {
	return d.Dispatch(context.Background(), userID, models.GameAction{
		GameID:     store.game.ID,
		ActionType: ActionEndTurn,
	})
}

func TestEndTurnCyclesPlayers(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 3)

	// Two full rounds: the pointer walks 1,2,0,1,2,0 and the turn counter
	// increments once per call.
	expectIndex := []int{1, 2, 0, 1, 2, 0}
	for i := 0; i < 6; i++ {
		current := store.players[store.game.CurrentPlayerIndex]
		result, err := endTurn(d, store, current.UserID)
		require.NoError(t, err, "end-turn %d", i)
		assert.Equal(t, i+1, result["turn"])
		assert.Equal(t, expectIndex[i], result["nextPlayerIndex"])
	}
	assert.Equal(t, 6, store.game.CurrentTurn)
}

func TestEndTurnRejectsOutOfTurn(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 3)

	// Index 0 is up; players 1 and 2 must be refused without any state change.
	for _, p := range store.players[1:] {
		_, err := endTurn(d, store, p.UserID)
		require.ErrorIs(t, err, ErrNotYourTurn)
	}
	assert.Equal(t, 0, store.game.CurrentTurn)
	assert.Equal(t, 0, store.game.CurrentPlayerIndex)
}

func TestEndTurnRejectsNonPlayer(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)

	_, err := endTurn(d, store, uuid.New())
	require.ErrorIs(t, err, ErrNotAPlayer)
}

func TestStoreFailureIsNotAnAuthorizationError(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)
	store.playerLookupErr = errors.New("connection refused")

	_, err := endTurn(d, store, store.players[0].UserID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAPlayer)
}

func TestEndTurnRetriesOnVersionConflict(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)
	store.forceConflicts = 1

	current := store.players[0]
	result, err := endTurn(d, store, current.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, result["turn"])

	// Two conflicts in a row exhaust the single retry.
	store.game.CurrentPlayerIndex = 1
	store.forceConflicts = 2
	_, err = endTurn(d, store, store.players[1].UserID)
	require.ErrorIs(t, err, ErrTurnConflict)
}

func TestEndTurnAppliesAIVerdict(t *testing.T) {
	d, store, collab, bc := setupDispatcher(t, 2)
	winner := store.players[0].UserID
	collab.turnEnd = &ai.TurnEndResult{
		Era:      string(models.EraProgression),
		GameOver: true,
		WinnerID: &winner,
	}

	result, err := endTurn(d, store, store.players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, string(models.EraProgression), result["era"])
	assert.Equal(t, true, result["gameOver"])
	assert.Equal(t, winner.String(), result["winnerId"])

	assert.Equal(t, models.GameCompleted, store.game.Status)
	assert.Equal(t, models.EraProgression, store.game.CurrentEra)

	last := bc.last()
	require.NotNil(t, last)
	assert.Equal(t, "game-update", last.event)
	assert.Equal(t, "game-completed", last.payload["action"])
}

func TestEndTurnSurvivesAIOutage(t *testing.T) {
	d, store, collab, _ := setupDispatcher(t, 2)
	collab.turnEndErr = ai.ErrUnavailable

	result, err := endTurn(d, store, store.players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, result["turn"])
	assert.Equal(t, string(models.EraInitiation), result["era"])
}

func TestEndTurnAdvancesEraOnTurnThreshold(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 1)
	// No AI correlation: the era falls back to fixed turn thresholds, one
	// era every EraLength turns.
	store.game.AIStateID = ""
	store.game.EraLength = 2

	expect := []models.Era{
		models.EraInitiation,  // turn 1
		models.EraProgression, // turn 2 crosses 2*1
		models.EraProgression, // turn 3
		models.EraDistortion,  // turn 4 crosses 2*2
	}
	for i, want := range expect {
		result, err := endTurn(d, store, store.players[0].UserID)
		require.NoError(t, err, "end-turn %d", i)
		assert.Equal(t, string(want), result["era"], "turn %d", i+1)
	}
	assert.Equal(t, models.EraDistortion, store.game.CurrentEra)
}

func TestDispatchRejectsInactiveGame(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)
	store.game.Status = models.GameCreated

	_, err := endTurn(d, store, store.players[0].UserID)
	require.ErrorIs(t, err, ErrGameNotActive)
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)

	_, err := d.Dispatch(context.Background(), store.players[0].UserID, models.GameAction{
		GameID:     store.game.ID,
		ActionType: "teleport",
	})
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestDevelopClampsAtBounds(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)
	realmID := uuid.New()
	store.realmDevelopment[realmID] = 9

	dispatch := func(delta int) (map[string]interface{}, error) {
		return d.Dispatch(context.Background(), store.players[0].UserID, models.GameAction{
			GameID:     store.game.ID,
			ActionType: ActionDevelop,
			Payload: map[string]interface{}{
				"realmId": realmID.String(),
				"delta":   float64(delta),
			},
		})
	}

	result, err := dispatch(5)
	require.NoError(t, err)
	assert.Equal(t, models.MaxDevelopment, result["development"])

	result, err = dispatch(-100)
	require.NoError(t, err)
	assert.Equal(t, models.MinDevelopment, result["development"])
}

func TestResearchClampsResourcesAtZero(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 2)

	result, err := d.Dispatch(context.Background(), store.players[0].UserID, models.GameAction{
		GameID:     store.game.ID,
		ActionType: ActionResearch,
		Payload:    map[string]interface{}{"cost": float64(25)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result["resources"])
	assert.Equal(t, 0, store.players[0].Resources)
}

func TestResolveDilemmaAppliesKarma(t *testing.T) {
	d, store, collab, bc := setupDispatcher(t, 2)
	collab.evaluation = &models.Evaluation{
		KarmaImpact: -3,
		Reasoning:   "short-term gain, long-term harm",
	}

	result, err := d.Dispatch(context.Background(), store.players[0].UserID, models.GameAction{
		GameID:     store.game.ID,
		ActionType: ActionResolveDilemma,
		Payload:    map[string]interface{}{"text": "seize the reactor"},
	})
	require.NoError(t, err)
	assert.Equal(t, -3, result["karma"])
	assert.Equal(t, -3, result["globalKarma"])

	require.Len(t, store.decisions, 1)
	assert.Equal(t, "seize the reactor", store.decisions[0].Text)
	assert.Equal(t, -3, store.decisions[0].Evaluation.KarmaImpact)

	last := bc.last()
	require.NotNil(t, last)
	assert.Equal(t, "game-update", last.event)
	assert.Equal(t, ActionResolveDilemma, last.payload["action"])
}

func TestResolveDilemmaRejectedByAI(t *testing.T) {
	d, store, collab, _ := setupDispatcher(t, 2)
	collab.evalErr = ai.ErrRejected

	_, err := d.Dispatch(context.Background(), store.players[0].UserID, models.GameAction{
		GameID:     store.game.ID,
		ActionType: ActionResolveDilemma,
		Payload:    map[string]interface{}{"text": "do the thing"},
	})
	require.ErrorIs(t, err, ai.ErrRejected)
	assert.Empty(t, store.decisions, "rejected decisions are not persisted")
}

func TestEndTurnSkipsDepartedPlayers(t *testing.T) {
	d, store, _, _ := setupDispatcher(t, 3)

	// Player 1 leaves; the active list shrinks to [0, 2] and the modulo
	// normalizes a stale index.
	store.players[1].Active = false
	store.game.CurrentPlayerIndex = 0

	result, err := endTurn(d, store, store.players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, result["nextPlayerIndex"])
	assert.Equal(t, store.players[2].UserID.String(), result["nextPlayerId"])
}
