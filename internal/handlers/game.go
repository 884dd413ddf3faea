// internal/handlers/game.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/game"
	"github.com/chronocore/chronocore-service/internal/mirror"
	"github.com/chronocore/chronocore-service/internal/models"
)

// ListGamesHandler returns all games, newest first.
func (s *Server) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	games, err := database.ListGames(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "games", games)
}

type createGameRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	EraLength  int    `json:"era_length"`
}

// CreateGameHandler creates a game in 'created' status and registers it with
// the AI engine. Engine registration is best effort; a game without an AI
// correlation id still plays, without narrative generation.
func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.EraLength < 0 {
		respondError(w, http.StatusBadRequest, "era_length must be positive")
		return
	}

	g := models.Game{
		Name:       req.Name,
		MaxPlayers: req.MaxPlayers,
		EraLength:  req.EraLength,
		CreatorID:  requestUserID(r),
	}
	if err := database.CreateGame(r.Context(), &g); err != nil {
		respondStoreError(w, err)
		return
	}

	if aiStateID, err := s.AI.InitializeGame(r.Context(), &g, nil); err != nil {
		s.Logger.Warnf("ai initialization for game %s: %v", g.ID, err)
	} else if aiStateID != "" {
		g.AIStateID = aiStateID
		if err := database.SetGameAIState(r.Context(), g.ID, aiStateID); err != nil {
			s.Logger.Errorf("failed to store ai state id for game %s: %v", g.ID, err)
		}
	}

	s.enqueueChange(r, g.ID, "game", g.ID, "create")
	respondData(w, http.StatusCreated, "game created", g)
}

// GetGameHandler returns one game with its seated players.
func (s *Server) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	players, err := database.ListPlayersByGame(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "game", map[string]interface{}{
		"game":    g,
		"players": players,
	})
}

// GetGameByCodeHandler resolves a join code so clients can join without the id.
func (s *Server) GetGameByCodeHandler(w http.ResponseWriter, r *http.Request) {
	g, err := database.GetGameByJoinCode(r.Context(), r.PathValue("code"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "game", g)
}

type updateGameRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
}

// UpdateGameHandler lets the creator adjust name/seat count before start.
func (s *Server) UpdateGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if g.CreatorID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "only the creator can update the game")
		return
	}
	if g.Status != models.GameCreated {
		respondError(w, http.StatusBadRequest, "game can only be updated before start")
		return
	}

	var req updateGameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		g.Name = req.Name
	}
	if req.MaxPlayers > 0 {
		g.MaxPlayers = req.MaxPlayers
	}
	if err := database.UpdateGame(r.Context(), g); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, g.ID, "game", g.ID, "update")
	respondData(w, http.StatusOK, "game updated", g)
}

// DeleteGameHandler tombstones the game. Creator only.
func (s *Server) DeleteGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if g.CreatorID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "only the creator can delete the game")
		return
	}
	if err := database.SoftDeleteGame(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "game deleted", nil)
}

// GetGameStateHandler serves the denormalized full-state document from the
// mirror, falling back to a relational rebuild when the mirror is cold.
func (s *Server) GetGameStateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.Mirror.GetState(r.Context(), id)
	if err != nil {
		doc, err = database.DocumentLoader{}.LoadGameDocument(r.Context(), id)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		doc.UpdatedAt = time.Now().UTC()
	}
	respondData(w, http.StatusOK, "game state", doc)
}

type joinGameRequest struct {
	Role string `json:"role"`
}

// defaultRoles assigns archetypes in seat order when the client does not pick.
var defaultRoles = []models.Role{
	models.RoleTechnoMonk,
	models.RoleShadowBroker,
	models.RoleChronoDiplomat,
	models.RoleBioSmith,
}

// JoinGameHandler seats the caller as a player of record. Joining is only
// possible before the game starts.
func (s *Server) JoinGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if g.Status != models.GameCreated {
		respondError(w, http.StatusBadRequest, "game has already started")
		return
	}

	players, err := database.ListPlayersByGame(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(players) >= g.MaxPlayers {
		respondError(w, http.StatusBadRequest, "game is full")
		return
	}

	var req joinGameRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	role := models.Role(req.Role)
	if req.Role == "" {
		role = defaultRoles[len(players)%len(defaultRoles)]
	} else if !models.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "invalid role")
		return
	}

	player, err := database.JoinGame(r.Context(), id, requestUserID(r), role)
	if err != nil {
		if database.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "already joined")
			return
		}
		respondStoreError(w, err)
		return
	}

	if g.AIStateID != "" {
		if err := s.AI.RegisterPlayer(r.Context(), g.AIStateID, player); err != nil {
			s.Logger.Warnf("ai player registration for %s: %v", player.ID, err)
		}
	}

	s.enqueueChange(r, id, "player", player.ID, "join")
	s.Registry.Broadcast(id, "player-joined", map[string]interface{}{
		"userId":   player.UserID.String(),
		"playerId": player.ID.String(),
		"role":     string(player.Role),
	})
	respondData(w, http.StatusCreated, "joined game", player)
}

// LeaveGameHandler removes the caller from the game.
func (s *Server) LeaveGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID := requestUserID(r)
	if err := database.LeaveGame(r.Context(), id, userID); err != nil {
		respondStoreError(w, err)
		return
	}

	s.Registry.LeaveRoom(id, userID)
	s.enqueueChange(r, id, "player", userID, "leave")
	s.Registry.Broadcast(id, "player-left", map[string]interface{}{
		"userId": userID.String(),
	})
	respondData(w, http.StatusOK, "left game", nil)
}

// StartGameHandler moves created→active. Creator only, needs at least two
// seated players.
func (s *Server) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if g.CreatorID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "only the creator can start the game")
		return
	}
	if g.Status != models.GameCreated {
		respondError(w, http.StatusBadRequest, "game is not in created state")
		return
	}
	players, err := database.ListPlayersByGame(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(players) < 2 {
		respondError(w, http.StatusBadRequest, "at least two players are required")
		return
	}

	if err := database.SetGameStatus(r.Context(), id, models.GameActive); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, id, "game", id, "start")
	s.Registry.Broadcast(id, "game-update", map[string]interface{}{
		"action": "start",
		"result": map[string]interface{}{"status": string(models.GameActive)},
	})
	respondData(w, http.StatusOK, "game started", nil)
}

// ReadyHandler toggles the caller's ready flag in the game.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	player, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req struct {
		Ready *bool `json:"ready"`
	}
	ready := true
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Ready != nil {
			ready = *req.Ready
		}
	}
	if err := database.SetPlayerReady(r.Context(), player.ID, ready); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, id, "player", player.ID, "ready")
	respondData(w, http.StatusOK, "ready state updated", map[string]bool{"ready": ready})
}

// EndTurnHandler advances the turn via the dispatcher, same path as the
// socket action.
func (s *Server) EndTurnHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.Dispatcher.Dispatch(r.Context(), requestUserID(r), models.GameAction{
		GameID:     id,
		ActionType: game.ActionEndTurn,
	})
	if err != nil {
		s.respondDispatchError(w, err)
		return
	}
	respondData(w, http.StatusOK, "turn ended", result)
}

// DecisionHandler records a free-text decision via the dispatcher's
// resolve-dilemma path.
func (s *Server) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var payload map[string]interface{}
	if !decodeBody(w, r, &payload) {
		return
	}

	result, err := s.Dispatcher.Dispatch(r.Context(), requestUserID(r), models.GameAction{
		GameID:     id,
		ActionType: game.ActionResolveDilemma,
		Payload:    payload,
	})
	if err != nil {
		s.respondDispatchError(w, err)
		return
	}
	respondData(w, http.StatusOK, "decision recorded", result)
}

// respondDispatchError maps dispatcher errors to HTTP statuses.
func (s *Server) respondDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNotAPlayer):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrGameNotActive),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrUnknownAction):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrRejected):
		respondError(w, http.StatusBadRequest, "ai engine rejected the input")
	case errors.Is(err, ai.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "ai engine unavailable")
	case errors.Is(err, game.ErrTurnConflict):
		respondError(w, http.StatusConflict, "turn advanced concurrently, retry")
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		s.Logger.Errorf("dispatch failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// enqueueChange marks the game dirty for the mirror worker. Best effort.
func (s *Server) enqueueChange(r *http.Request, gameID uuid.UUID, entity string, entityID uuid.UUID, op string) {
	if s.Changes == nil {
		return
	}
	rec := mirror.ChangeRecord{GameID: gameID, Entity: entity, EntityID: entityID, Op: op}
	if err := s.Changes.Enqueue(r.Context(), rec); err != nil {
		s.Logger.Warnf("failed to enqueue mirror change for game %s: %v", gameID, err)
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// gameStatusTransitions lists the allowed explicit status moves. Starting a
// game has its own endpoint; completed is terminal.
var gameStatusTransitions = map[models.GameStatus][]models.GameStatus{
	models.GameActive: {models.GamePaused, models.GameCompleted},
	models.GamePaused: {models.GameActive, models.GameCompleted},
}

// PatchGameStatusHandler lets the creator pause, resume or complete a game.
func (s *Server) PatchGameStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	g, err := database.GetGameByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if g.CreatorID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "only the creator can change the game status")
		return
	}

	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target := models.GameStatus(req.Status)

	allowed := false
	for _, next := range gameStatusTransitions[g.Status] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		respondError(w, http.StatusBadRequest, "cannot move game from "+string(g.Status)+" to "+req.Status)
		return
	}

	if err := database.SetGameStatus(r.Context(), id, target); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, id, "game", id, "status")
	s.Registry.Broadcast(id, "game-update", map[string]interface{}{
		"action": "status",
		"result": map[string]interface{}{"status": string(target)},
	})
	respondData(w, http.StatusOK, "status updated", map[string]string{"status": string(target)})
}
