// internal/handlers/timeline.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/models"
)

// ListTimelinesHandler returns the timelines for ?game_id=.
func (s *Server) ListTimelinesHandler(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.URL.Query().Get("game_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "game_id query parameter is required")
		return
	}
	timelines, err := database.ListTimelinesByGame(r.Context(), gameID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "timelines", timelines)
}

type createTimelineRequest struct {
	GameID    string `json:"game_id"`
	Name      string `json:"name"`
	Stability int    `json:"stability"`
}

// CreateTimelineHandler adds a timeline branch to a game.
func (s *Server) CreateTimelineHandler(w http.ResponseWriter, r *http.Request) {
	var req createTimelineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid game_id")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), gameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}

	stability := req.Stability
	if stability <= 0 {
		stability = 100
	}
	t := models.Timeline{
		GameID:    gameID,
		Name:      req.Name,
		Stability: stability,
	}
	if err := database.CreateTimeline(r.Context(), &t); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, gameID, "timeline", t.ID, "create")
	respondData(w, http.StatusCreated, "timeline created", t)
}

// GetTimelineHandler returns a timeline with its realms eager-loaded.
func (s *Server) GetTimelineHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := database.GetTimelineByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "timeline", t)
}

// PatchStabilityHandler applies a stability delta, clamped to [0,100].
func (s *Server) PatchStabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := database.GetTimelineByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), t.GameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	stability, err := database.AdjustTimelineStability(r.Context(), id, req.Delta)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, t.GameID, "timeline", id, "stability")
	respondData(w, http.StatusOK, "stability updated", map[string]int{"stability": stability})
}

// CreateRiftHandler asks the AI engine for a time rift on this timeline,
// records it, and applies its severity against the timeline's stability.
func (s *Server) CreateRiftHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := database.GetTimelineByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), t.GameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}
	g, err := database.GetGameByID(r.Context(), t.GameID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	payload, err := s.AI.GenerateTimeRift(r.Context(), g.AIStateID, id)
	if err != nil {
		s.respondAIError(w, err)
		return
	}

	rift := &models.TimeRift{
		TimelineID:  id,
		Severity:    payload.Severity,
		Description: payload.Description,
	}
	if err := database.CreateTimeRift(r.Context(), rift); err != nil {
		respondStoreError(w, err)
		return
	}
	stability, err := database.AdjustTimelineStability(r.Context(), id, -payload.Severity)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, t.GameID, "rift", rift.ID, "create")
	s.Registry.Broadcast(t.GameID, "game-update", map[string]interface{}{
		"action": "time-rift",
		"result": map[string]interface{}{
			"rift":      rift,
			"stability": stability,
		},
	})
	respondData(w, http.StatusCreated, "rift created", rift)
}

// ListRiftsHandler returns a timeline's rifts, open and resolved.
func (s *Server) ListRiftsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rifts, err := database.ListTimeRiftsByTimeline(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "rifts", rifts)
}

// ListRealmsHandler returns a timeline's realms.
func (s *Server) ListRealmsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	realms, err := database.ListRealmsByTimeline(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "realms", realms)
}

type createRealmRequest struct {
	Name        string             `json:"name"`
	OwnerID     string             `json:"owner_id"`
	Development int                `json:"development"`
	Resources   int                `json:"resources"`
	Population  int                `json:"population"`
	Coordinates models.Coordinates `json:"coordinates"`
}

// CreateRealmHandler adds a realm to a timeline. The realm starts unclaimed
// unless owner_id names a player of the same game.
func (s *Server) CreateRealmHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := database.GetTimelineByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), t.GameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}

	var req createRealmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	realm := models.Realm{
		TimelineID:  id,
		Name:        req.Name,
		Development: req.Development,
		Resources:   req.Resources,
		Population:  req.Population,
		Coordinates: req.Coordinates,
	}
	if req.OwnerID != "" {
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid owner_id")
			return
		}
		owner, err := database.GetPlayerByID(r.Context(), ownerID)
		if err != nil || owner.GameID != t.GameID {
			respondError(w, http.StatusBadRequest, "owner_id is not a player of this game")
			return
		}
		realm.OwnerID = &ownerID
	}
	if err := database.CreateRealm(r.Context(), &realm); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, t.GameID, "realm", realm.ID, "create")
	respondData(w, http.StatusCreated, "realm created", realm)
}

// ResolveRiftHandler closes an open rift. The resolving player recovers half
// the rift's severity as timeline stability and gets credit in their stats.
func (s *Server) ResolveRiftHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rift, err := database.GetTimeRiftByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if rift.Resolved {
		respondError(w, http.StatusConflict, "rift is already resolved")
		return
	}
	t, err := database.GetTimelineByID(r.Context(), rift.TimelineID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	player, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), t.GameID)
	if err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return
	}

	if err := database.ResolveTimeRift(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}
	stability, err := database.AdjustTimelineStability(r.Context(), rift.TimelineID, (rift.Severity+1)/2)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if err := database.BumpPlayerStat(r.Context(), player.ID, "rifts_resolved", 1); err != nil {
		s.Logger.Warnf("failed to bump rifts_resolved for player %s: %v", player.ID, err)
	}

	s.enqueueChange(r, t.GameID, "rift", id, "resolve")
	s.Registry.Broadcast(t.GameID, "game-update", map[string]interface{}{
		"action": "rift-resolved",
		"result": map[string]interface{}{
			"riftId":    id.String(),
			"stability": stability,
			"playerId":  player.ID.String(),
		},
	})
	respondData(w, http.StatusOK, "rift resolved", map[string]interface{}{
		"rift_id":   id,
		"stability": stability,
	})
}
