// internal/handlers/ai.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/database"
)

// respondAIError maps the AI client's typed errors: a rejected input is the
// caller's fault, an unavailable engine is a gateway problem.
func (s *Server) respondAIError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrRejected):
		respondError(w, http.StatusBadRequest, "ai engine rejected the request")
	case errors.Is(err, ai.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "ai engine unavailable")
	default:
		s.Logger.Errorf("ai call failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

type aiGameRequest struct {
	GameID string `json:"game_id"`
}

// resolveAIState loads the game and returns its AI correlation id.
func (s *Server) resolveAIState(w http.ResponseWriter, r *http.Request, gameIDRaw string) (string, bool) {
	gameID, err := uuid.Parse(gameIDRaw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid game_id")
		return "", false
	}
	g, err := database.GetGameByID(r.Context(), gameID)
	if err != nil {
		respondStoreError(w, err)
		return "", false
	}
	if g.AIStateID == "" {
		respondError(w, http.StatusBadRequest, "game is not registered with the ai engine")
		return "", false
	}
	return g.AIStateID, true
}

// AIGenerateStoryHandler passes a story-generation request through to the
// engine.
func (s *Server) AIGenerateStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req aiGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	aiStateID, ok := s.resolveAIState(w, r, req.GameID)
	if !ok {
		return
	}
	story, err := s.AI.GenerateStory(r.Context(), aiStateID)
	if err != nil {
		s.respondAIError(w, err)
		return
	}
	respondData(w, http.StatusOK, "story", map[string]string{"story": story})
}

type aiQuestRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// AIGenerateQuestHandler passes a quest-generation request through without
// persisting the result; clients that want a stored quest use the player
// quests endpoint.
func (s *Server) AIGenerateQuestHandler(w http.ResponseWriter, r *http.Request) {
	var req aiQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	aiStateID, ok := s.resolveAIState(w, r, req.GameID)
	if !ok {
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid player_id")
		return
	}
	player, err := database.GetPlayerByID(r.Context(), playerID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	quest, err := s.AI.GenerateQuest(r.Context(), aiStateID, player)
	if err != nil {
		s.respondAIError(w, err)
		return
	}
	respondData(w, http.StatusOK, "quest", quest)
}

type aiEvaluateRequest struct {
	GameID   string          `json:"game_id"`
	PlayerID string          `json:"player_id"`
	Decision string          `json:"decision"`
	Context  json.RawMessage `json:"context"`
}

// AIEvaluateDecisionHandler passes a decision evaluation through without
// recording it.
func (s *Server) AIEvaluateDecisionHandler(w http.ResponseWriter, r *http.Request) {
	var req aiEvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	aiStateID, ok := s.resolveAIState(w, r, req.GameID)
	if !ok {
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	eval, err := s.AI.EvaluateDecision(r.Context(), aiStateID, playerID, req.Decision, req.Context)
	if err != nil {
		s.respondAIError(w, err)
		return
	}
	respondData(w, http.StatusOK, "evaluation", eval)
}

type aiKarmaRequest struct {
	PlayerID string   `json:"player_id"`
	Actions  []string `json:"actions"`
}

// AICalculateKarmaHandler passes a karma computation through.
func (s *Server) AICalculateKarmaHandler(w http.ResponseWriter, r *http.Request) {
	var req aiKarmaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	karma, err := s.AI.CalculateKarma(r.Context(), playerID, req.Actions)
	if err != nil {
		s.respondAIError(w, err)
		return
	}
	respondData(w, http.StatusOK, "karma", map[string]int{"karma": karma})
}

// AIGameStateHandler returns the engine's own view of the game, verbatim.
func (s *Server) AIGameStateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	aiStateID, ok := s.resolveAIState(w, r, id.String())
	if !ok {
		return
	}
	state, err := s.AI.GetGameState(r.Context(), aiStateID)
	if err != nil {
		s.respondAIError(w, err)
		return
	}
	respondData(w, http.StatusOK, "ai game state", state)
}
