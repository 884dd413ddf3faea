// internal/game/dispatcher.go
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/mirror"
	"github.com/chronocore/chronocore-service/internal/models"
)

// Action types accepted by the dispatcher.
const (
	ActionMove           = "move"
	ActionDevelop        = "develop"
	ActionResearch       = "research"
	ActionConnect        = "connect"
	ActionResolveDilemma = "resolve-dilemma"
	ActionEndTurn        = "end-turn"
)

var (
	// ErrNotAPlayer means the sender is not a player of record in the game.
	ErrNotAPlayer = errors.New("user is not a player in this game")
	// ErrGameNotActive means the game's status forbids actions.
	ErrGameNotActive = errors.New("game is not active")
	// ErrNotYourTurn means someone other than the current player tried to
	// advance the turn.
	ErrNotYourTurn = errors.New("it is not your turn")
	// ErrUnknownAction means the action type is not one of the fixed set.
	ErrUnknownAction = errors.New("unknown action type")
	// ErrTurnConflict is returned by Store.AdvanceTurn when another writer
	// advanced the turn first (stale version).
	ErrTurnConflict = errors.New("turn version conflict")
)

// Store is the slice of the persistence layer the dispatcher needs. Satisfied
// by database.Std in production and by fakes in tests.
type Store interface {
	GetGameByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
	GetPlayerByUserAndGame(ctx context.Context, userID, gameID uuid.UUID) (*models.Player, error)
	ListActivePlayersByGame(ctx context.Context, gameID uuid.UUID) ([]*models.Player, error)
	AdvanceTurn(ctx context.Context, id uuid.UUID, nextIndex, nextTurn int, era models.Era, version int) error
	SetGameStatus(ctx context.Context, id uuid.UUID, status models.GameStatus) error
	TouchPlayerAction(ctx context.Context, playerID uuid.UUID) error
	ExpireOverdueQuests(ctx context.Context, playerID uuid.UUID) (int, error)
	SetRealmDevelopment(ctx context.Context, realmID uuid.UUID, delta int) (int, error)
	AdjustPlayerResources(ctx context.Context, playerID uuid.UUID, delta int) (int, error)
	AdjustPlayerKarma(ctx context.Context, playerID uuid.UUID, delta int) (int, error)
	AdjustGlobalKarma(ctx context.Context, gameID uuid.UUID, delta int) (int, error)
	BumpPlayerStat(ctx context.Context, playerID uuid.UUID, stat string, delta int) error
	CreateDecision(ctx context.Context, d *models.Decision) error
}

// Collaborator is the slice of the AI engine the dispatcher calls. Satisfied
// by *ai.Client in production and by fakes in tests.
type Collaborator interface {
	EvaluateDecision(ctx context.Context, aiStateID string, playerID uuid.UUID, text string, decisionCtx json.RawMessage) (*models.Evaluation, error)
	ProcessTurnEnd(ctx context.Context, aiStateID string, turn int) (*ai.TurnEndResult, error)
}

// ChangeNotifier marks games dirty for the mirror worker.
type ChangeNotifier interface {
	Enqueue(ctx context.Context, rec mirror.ChangeRecord) error
}

// Dispatcher is the turn/action state machine. It verifies the sender, routes
// the action, persists the outcome, notifies the mirror, and broadcasts the
// result to the game's room.
type Dispatcher struct {
	Store  Store
	AI     Collaborator
	Mirror ChangeNotifier

	// BroadcastFn delivers an event to every connection in the game's room.
	// Wired to Registry.Broadcast in production, to a collector in tests.
	BroadcastFn func(gameID uuid.UUID, event string, payload map[string]interface{})

	Logger *logrus.Logger

	// AITimeout bounds every collaborator call made inside a dispatch.
	AITimeout time.Duration
}

// NewDispatcher wires a dispatcher with the default AI timeout.
func NewDispatcher(store Store, collab Collaborator, notifier ChangeNotifier, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		Store:     store,
		AI:        collab,
		Mirror:    notifier,
		Logger:    logger,
		AITimeout: 10 * time.Second,
	}
}

// Dispatch runs one action end to end. Any verification failure returns an
// error before any mutation. The returned result map is what was broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, action models.GameAction) (map[string]interface{}, error) {
	game, err := d.Store.GetGameByID(ctx, action.GameID)
	if err != nil {
		return nil, err
	}

	// The store maps a missing player row to ErrNotAPlayer; anything else is
	// a real store failure and must not masquerade as an authorization error.
	player, err := d.Store.GetPlayerByUserAndGame(ctx, userID, action.GameID)
	if err != nil {
		return nil, err
	}

	if game.Status != models.GameActive {
		return nil, ErrGameNotActive
	}

	var result map[string]interface{}
	switch action.ActionType {
	case ActionMove:
		result = d.handleMove(player, action.Payload)
	case ActionDevelop:
		result, err = d.handleDevelop(ctx, player, action.Payload)
	case ActionResearch:
		result, err = d.handleResearch(ctx, player, action.Payload)
	case ActionConnect:
		result = d.handleConnect(player, action.Payload)
	case ActionResolveDilemma:
		result, err = d.handleResolveDilemma(ctx, game, player, action.Payload)
	case ActionEndTurn:
		result, err = d.handleEndTurn(ctx, game, player)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action.ActionType)
	}
	if err != nil {
		return nil, err
	}

	if err := d.Store.TouchPlayerAction(ctx, player.ID); err != nil {
		d.Logger.Warnf("failed to stamp last action for player %s: %v", player.ID, err)
	}

	d.notifyMirror(ctx, game.ID, action.ActionType, player.ID)

	if d.BroadcastFn != nil {
		d.BroadcastFn(game.ID, "game-update", map[string]interface{}{
			"action":       action.ActionType,
			"result":       result,
			"actingPlayer": player.UserID.String(),
		})
	}

	d.checkGameEnd(ctx, game, result)

	return result, nil
}

// handleMove relays a board move. Positions live only in the mirrored
// document; there is no relational field to mutate.
func (d *Dispatcher) handleMove(player *models.Player, payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"playerId": player.ID.String(),
		"move":     payload,
	}
}

// handleDevelop raises (or lowers) a realm's development level, clamped to
// [1,10] by the store.
func (d *Dispatcher) handleDevelop(ctx context.Context, player *models.Player, payload map[string]interface{}) (map[string]interface{}, error) {
	realmID, err := payloadUUID(payload, "realmId")
	if err != nil {
		return nil, err
	}
	delta := payloadInt(payload, "delta", 1)

	dev, err := d.Store.SetRealmDevelopment(ctx, realmID, delta)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"realmId":     realmID.String(),
		"development": dev,
	}, nil
}

// handleResearch spends the acting player's resources; the balance clamps at
// zero.
func (d *Dispatcher) handleResearch(ctx context.Context, player *models.Player, payload map[string]interface{}) (map[string]interface{}, error) {
	cost := payloadInt(payload, "cost", 2)
	if cost < 0 {
		cost = 0
	}

	resources, err := d.Store.AdjustPlayerResources(ctx, player.ID, -cost)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"playerId":  player.ID.String(),
		"resources": resources,
	}, nil
}

// handleConnect relays a realm-to-realm connection. Like moves, connections
// live in the mirrored document only.
func (d *Dispatcher) handleConnect(player *models.Player, payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"playerId":   player.ID.String(),
		"connection": payload,
	}
}

// handleResolveDilemma sends the player's free-text choice to the AI engine,
// stores the immutable decision record, and applies the karma impact to both
// the player and the game-wide accumulator.
func (d *Dispatcher) handleResolveDilemma(ctx context.Context, game *models.Game, player *models.Player, payload map[string]interface{}) (map[string]interface{}, error) {
	text, _ := payload["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("dilemma resolution requires non-empty text")
	}

	var decisionCtx json.RawMessage
	if raw, ok := payload["context"]; ok {
		decisionCtx, _ = json.Marshal(raw)
	}

	var questID *uuid.UUID
	if id, err := payloadUUID(payload, "questId"); err == nil {
		questID = &id
	}

	aiCtx, cancel := context.WithTimeout(ctx, d.AITimeout)
	defer cancel()
	eval, err := d.AI.EvaluateDecision(aiCtx, game.AIStateID, player.ID, text, decisionCtx)
	if err != nil {
		return nil, err
	}

	decision := &models.Decision{
		PlayerID:   player.ID,
		GameID:     game.ID,
		QuestID:    questID,
		Turn:       game.CurrentTurn,
		Text:       text,
		Context:    decisionCtx,
		Evaluation: *eval,
	}
	if err := d.Store.CreateDecision(ctx, decision); err != nil {
		return nil, err
	}

	karma, err := d.Store.AdjustPlayerKarma(ctx, player.ID, eval.KarmaImpact)
	if err != nil {
		return nil, err
	}
	globalKarma, err := d.Store.AdjustGlobalKarma(ctx, game.ID, eval.KarmaImpact)
	if err != nil {
		return nil, err
	}
	if err := d.Store.BumpPlayerStat(ctx, player.ID, "decisions_made", 1); err != nil {
		d.Logger.Warnf("failed to bump decisions_made for player %s: %v", player.ID, err)
	}

	return map[string]interface{}{
		"decisionId":  decision.ID.String(),
		"evaluation":  eval,
		"karma":       karma,
		"globalKarma": globalKarma,
	}, nil
}

// handleEndTurn advances the rotating turn pointer over the active players in
// join order and increments the turn counter. The write is a compare-and-swap
// on the game's version column; on conflict the state is reloaded and the
// advance retried once, so exactly one writer moves a given game's turn at a
// time.
func (d *Dispatcher) handleEndTurn(ctx context.Context, game *models.Game, player *models.Player) (map[string]interface{}, error) {
	if n, err := d.Store.ExpireOverdueQuests(ctx, player.ID); err != nil {
		d.Logger.Warnf("quest expiry sweep for player %s: %v", player.ID, err)
	} else if n > 0 {
		d.Logger.Infof("expired %d overdue quests for player %s", n, player.ID)
	}

	for attempt := 0; ; attempt++ {
		active, err := d.Store.ListActivePlayersByGame(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			return nil, fmt.Errorf("game %s has no active players", game.ID)
		}

		// The index can be stale if the active list shrank since the last
		// advance; normalize before comparing.
		idx := game.CurrentPlayerIndex % len(active)
		if active[idx].UserID != player.UserID {
			return nil, ErrNotYourTurn
		}

		nextIndex := (idx + 1) % len(active)
		nextTurn := game.CurrentTurn + 1

		era := game.CurrentEra
		verdict := d.processTurnEnd(ctx, game, nextTurn)
		if verdict != nil && models.ValidEra(verdict.Era) {
			era = models.Era(verdict.Era)
		} else if game.EraLength > 0 && nextTurn >= game.EraLength*models.EraOrdinal(era) {
			// Without an AI verdict the era advances on fixed turn
			// thresholds: one era every EraLength turns.
			era = models.NextEra(era)
		}

		err = d.Store.AdvanceTurn(ctx, game.ID, nextIndex, nextTurn, era, game.Version)
		if err == nil {
			if verdict != nil && verdict.GameOver {
				if err := d.Store.SetGameStatus(ctx, game.ID, models.GameCompleted); err != nil {
					d.Logger.Errorf("failed to complete game %s: %v", game.ID, err)
				}
			}
			result := map[string]interface{}{
				"turn":            nextTurn,
				"era":             string(era),
				"nextPlayerIndex": nextIndex,
				"nextPlayerId":    active[nextIndex].UserID.String(),
			}
			if verdict != nil && verdict.GameOver {
				result["gameOver"] = true
				if verdict.WinnerID != nil {
					result["winnerId"] = verdict.WinnerID.String()
				}
			}
			return result, nil
		}
		if !errors.Is(err, ErrTurnConflict) || attempt >= 1 {
			return nil, err
		}

		// Lost the race; reload the row and try once more.
		game, err = d.Store.GetGameByID(ctx, game.ID)
		if err != nil {
			return nil, err
		}
		if game.Status != models.GameActive {
			return nil, ErrGameNotActive
		}
	}
}

// processTurnEnd reports the finished turn to the AI engine. Failures degrade
// to local continuation: the turn still advances, the era stays put.
func (d *Dispatcher) processTurnEnd(ctx context.Context, game *models.Game, turn int) *ai.TurnEndResult {
	if d.AI == nil || game.AIStateID == "" {
		return nil
	}
	aiCtx, cancel := context.WithTimeout(ctx, d.AITimeout)
	defer cancel()

	verdict, err := d.AI.ProcessTurnEnd(aiCtx, game.AIStateID, turn)
	if err != nil {
		d.Logger.Warnf("turn-end processing unavailable for game %s: %v", game.ID, err)
		return nil
	}
	return verdict
}

// checkGameEnd broadcasts completion if a handler flagged the game over.
// There is no local victory algorithm; completion only comes from the AI
// verdict or an explicit status change.
func (d *Dispatcher) checkGameEnd(ctx context.Context, game *models.Game, result map[string]interface{}) {
	over, _ := result["gameOver"].(bool)
	if !over || d.BroadcastFn == nil {
		return
	}
	payload := map[string]interface{}{
		"action": "game-completed",
	}
	if winner, ok := result["winnerId"]; ok {
		payload["winnerId"] = winner
	}
	d.BroadcastFn(game.ID, "game-update", payload)
}

// notifyMirror enqueues a change record. Best effort: a lost record delays
// the mirror until the game's next change.
func (d *Dispatcher) notifyMirror(ctx context.Context, gameID uuid.UUID, actionType string, playerID uuid.UUID) {
	if d.Mirror == nil {
		return
	}
	rec := mirror.ChangeRecord{
		GameID:   gameID,
		Entity:   "game",
		EntityID: playerID,
		Op:       actionType,
	}
	if err := d.Mirror.Enqueue(ctx, rec); err != nil {
		d.Logger.Warnf("failed to enqueue mirror change for game %s: %v", gameID, err)
	}
}

// payloadUUID extracts a UUID field from an action payload.
func payloadUUID(payload map[string]interface{}, key string) (uuid.UUID, error) {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s in payload", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}

// payloadInt extracts an integer field, tolerating JSON's float64 decoding.
func payloadInt(payload map[string]interface{}, key string, def int) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
