// internal/handlers/quest.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/models"
)

// GetQuestHandler returns one quest.
func (s *Server) GetQuestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	quest, err := database.GetQuestByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "quest", quest)
}

type resolveQuestRequest struct {
	SelectedOption int             `json:"selected_option"`
	Success        *bool           `json:"success"`
	Outcome        json.RawMessage `json:"outcome"`
}

// ResolveQuestHandler closes an active quest with the owner's chosen option.
// Only the quest's player may resolve it, and only before expiry.
func (s *Server) ResolveQuestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	quest, err := database.GetQuestByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	player, err := database.GetPlayerByID(r.Context(), quest.PlayerID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if player.UserID != requestUserID(r) {
		respondError(w, http.StatusForbidden, "not your quest")
		return
	}
	if quest.Status != models.QuestActive {
		respondError(w, http.StatusConflict, "quest is no longer active")
		return
	}
	if quest.ExpiresAt != nil && quest.ExpiresAt.Before(time.Now()) {
		respondError(w, http.StatusConflict, "quest has expired")
		return
	}

	var req resolveQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status := models.QuestCompleted
	if req.Success != nil && !*req.Success {
		status = models.QuestFailed
	}
	if err := database.ResolveQuest(r.Context(), id, status, req.SelectedOption, req.Outcome); err != nil {
		respondStoreError(w, err)
		return
	}
	if status == models.QuestCompleted {
		if err := database.BumpPlayerStat(r.Context(), player.ID, "quests_completed", 1); err != nil {
			s.Logger.Warnf("failed to bump quests_completed for player %s: %v", player.ID, err)
		}
	}

	s.enqueueChange(r, player.GameID, "quest", id, "resolve")
	respondData(w, http.StatusOK, "quest resolved", map[string]interface{}{
		"status":          status,
		"selected_option": req.SelectedOption,
	})
}
