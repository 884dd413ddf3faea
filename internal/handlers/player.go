// internal/handlers/player.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/models"
)

// GetPlayerHandler returns one player row.
func (s *Server) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	player, err := database.GetPlayerByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "player", player)
}

// PatchPlayerReadyHandler sets the ready flag. Only the seat owner may flip it.
func (s *Server) PatchPlayerReadyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	player, err := database.GetPlayerByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if player.UserID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "not your player")
		return
	}

	var req struct {
		Ready bool `json:"ready"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := database.SetPlayerReady(r.Context(), id, req.Ready); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, player.GameID, "player", id, "ready")
	respondData(w, http.StatusOK, "ready state updated", map[string]bool{"ready": req.Ready})
}

// PatchPlayerResourcesHandler applies a signed resource delta, clamped at zero.
func (s *Server) PatchPlayerResourcesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	player, err := database.GetPlayerByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), player.GameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	resources, err := database.AdjustPlayerResources(r.Context(), id, req.Delta)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, player.GameID, "player", id, "resources")
	respondData(w, http.StatusOK, "resources updated", map[string]int{"resources": resources})
}

// ListQuestsHandler returns the player's quests, newest first.
func (s *Server) ListQuestsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	quests, err := database.ListQuestsByPlayer(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "quests", quests)
}

// GenerateQuestHandler asks the AI engine for a new quest for this player and
// persists it.
func (s *Server) GenerateQuestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	player, err := database.GetPlayerByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if player.UserID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "not your player")
		return
	}
	g, err := database.GetGameByID(r.Context(), player.GameID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	payload, err := s.AI.GenerateQuest(r.Context(), g.AIStateID, player)
	if err != nil {
		s.respondAIError(w, err)
		return
	}

	quest := &models.Quest{
		PlayerID:    id,
		Title:       payload.Title,
		Description: payload.Description,
		Status:      models.QuestActive,
		Options:     payload.Options,
	}
	if payload.ExpiresIn > 0 {
		// Turns map onto wall-clock deadlines; idle games expire quests too.
		deadline := time.Now().Add(time.Duration(payload.ExpiresIn) * 10 * time.Minute)
		quest.ExpiresAt = &deadline
	}
	if err := database.CreateQuest(r.Context(), quest); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, player.GameID, "quest", quest.ID, "create")
	respondData(w, http.StatusCreated, "quest generated", quest)
}

// ListDecisionsHandler returns the player's decision history.
func (s *Server) ListDecisionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	decisions, err := database.ListDecisionsByPlayer(r.Context(), id, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "decisions", decisions)
}
