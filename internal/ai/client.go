// internal/ai/client.go
//
// Client for the ChronoCore AI engine. The engine is a separate HTTP service
// that owns all narrative and ethical decision logic (quest generation,
// decision evaluation, karma computation, rift generation); this client
// treats its responses as structured but opaque.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chronocore/chronocore-service/internal/models"
)

// ErrUnavailable means the engine could not be reached or kept failing with
// server errors after retries. Callers may degrade gracefully.
var ErrUnavailable = errors.New("ai engine unavailable")

// ErrRejected means the engine understood the request and refused it (4xx).
// Retrying the same input will not help.
var ErrRejected = errors.New("ai engine rejected input")

// Client is a stateless HTTP client for the AI engine. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint64
	logger     *logrus.Logger
}

// NewClient reads AI_ENGINE_URL and AI_ENGINE_TOKEN from the environment.
func NewClient(logger *logrus.Logger) *Client {
	return &Client{
		baseURL: os.Getenv("AI_ENGINE_URL"),
		token:   os.Getenv("AI_ENGINE_TOKEN"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		maxRetries: 3,
		logger:     logger,
	}
}

// NewClientWith is the injectable constructor used by tests.
func NewClientWith(baseURL, token string, hc *http.Client, maxRetries uint64, logger *logrus.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: hc,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// do issues one request with bounded exponential-backoff retries. Transport
// errors and 5xx responses are retried; 4xx responses are permanent.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBytes []byte
	if body != nil {
		var err error
		reqBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal ai request: %w", err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0.2

	attempt := func() error {
		var reader io.Reader
		if reqBytes != nil {
			reader = bytes.NewReader(reqBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warnf("ai engine %s %s transport error: %v", method, path, err)
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 500:
			c.logger.Warnf("ai engine %s %s returned %d", method, path, resp.StatusCode)
			return fmt.Errorf("ai engine status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			c.logger.Warnf("ai engine %s %s rejected with %d: %s", method, path, resp.StatusCode, respBody)
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode ai response: %w", err))
			}
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// InitializeGame registers a new game with the engine and returns the engine's
// correlation id for subsequent calls.
func (c *Client) InitializeGame(ctx context.Context, game *models.Game, players []*models.Player) (string, error) {
	req := map[string]interface{}{
		"players":  players,
		"settings": map[string]interface{}{"game_id": game.ID, "name": game.Name, "max_players": game.MaxPlayers},
	}
	var resp struct {
		GameID string `json:"game_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/game/new", req, &resp); err != nil {
		return "", err
	}
	return resp.GameID, nil
}

// RegisterPlayer tells the engine about a newly-seated player.
func (c *Client) RegisterPlayer(ctx context.Context, aiStateID string, player *models.Player) error {
	req := map[string]interface{}{
		"game_id": aiStateID,
		"player":  player,
	}
	return c.do(ctx, http.MethodPost, "/player/register", req, nil)
}

// QuestPayload is the engine's quest shape, stored verbatim on the quest row.
type QuestPayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Options     json.RawMessage `json:"options"`
	ExpiresIn   int             `json:"expires_in_turns,omitempty"`
}

// GenerateQuest asks the engine for a quest tailored to one player.
func (c *Client) GenerateQuest(ctx context.Context, aiStateID string, player *models.Player) (*QuestPayload, error) {
	req := map[string]interface{}{
		"game_id": aiStateID,
		"player":  player,
	}
	var resp struct {
		Quest QuestPayload `json:"quest"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-quest", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Quest, nil
}

// EvaluateDecision submits a free-text decision with its context and returns
// the engine's ethical evaluation.
func (c *Client) EvaluateDecision(ctx context.Context, aiStateID string, playerID uuid.UUID, text string, decisionCtx json.RawMessage) (*models.Evaluation, error) {
	req := map[string]interface{}{
		"game_id":   aiStateID,
		"player_id": playerID,
		"decision":  text,
		"context":   decisionCtx,
	}
	var resp struct {
		Evaluation models.Evaluation `json:"evaluation"`
	}
	if err := c.do(ctx, http.MethodPost, "/evaluate-decision", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Evaluation, nil
}

// CalculateKarma asks the engine for a karma score over a set of actions.
func (c *Client) CalculateKarma(ctx context.Context, playerID uuid.UUID, actions []string) (int, error) {
	req := map[string]interface{}{
		"player_id": playerID,
		"actions":   actions,
	}
	var resp struct {
		Karma int `json:"karma"`
	}
	if err := c.do(ctx, http.MethodPost, "/calculate-karma", req, &resp); err != nil {
		return 0, err
	}
	return resp.Karma, nil
}

// RiftPayload is the engine's time-rift shape.
type RiftPayload struct {
	Severity    int    `json:"severity"`
	Description string `json:"description"`
}

// GenerateTimeRift asks the engine for a rift on the given timeline.
func (c *Client) GenerateTimeRift(ctx context.Context, aiStateID string, timelineID uuid.UUID) (*RiftPayload, error) {
	req := map[string]interface{}{
		"game_id":     aiStateID,
		"timeline_id": timelineID,
	}
	var resp struct {
		Rift RiftPayload `json:"rift"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-time-rift", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Rift, nil
}

// GenerateStory returns narrative text for the current game state.
func (c *Client) GenerateStory(ctx context.Context, aiStateID string) (string, error) {
	req := map[string]interface{}{"game_id": aiStateID}
	var resp struct {
		Story string `json:"story"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-story", req, &resp); err != nil {
		return "", err
	}
	return resp.Story, nil
}

// TurnEndResult carries the engine's verdict after a completed turn. Era
// progression and game completion are decided here, never locally.
type TurnEndResult struct {
	Era      string          `json:"era,omitempty"`
	GameOver bool            `json:"game_over"`
	WinnerID *uuid.UUID      `json:"winner_id,omitempty"`
	Events   json.RawMessage `json:"events,omitempty"`
}

// ProcessTurnEnd reports a finished turn to the engine.
func (c *Client) ProcessTurnEnd(ctx context.Context, aiStateID string, turn int) (*TurnEndResult, error) {
	req := map[string]interface{}{
		"game_id": aiStateID,
		"turn":    turn,
	}
	var resp TurnEndResult
	if err := c.do(ctx, http.MethodPost, "/process-turn-end", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetGameState fetches the engine's view of the game, returned verbatim.
func (c *Client) GetGameState(ctx context.Context, aiStateID string) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/game/"+aiStateID, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
