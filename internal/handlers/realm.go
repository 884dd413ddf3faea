// internal/handlers/realm.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/models"
)

// GetRealmHandler returns one realm.
func (s *Server) GetRealmHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	realm, err := database.GetRealmByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondData(w, http.StatusOK, "realm", realm)
}

// realmGameScope verifies the caller is a player of record in the game that
// owns this realm's timeline, returning the realm on success.
func (s *Server) realmGameScope(w http.ResponseWriter, r *http.Request) (*models.Realm, uuid.UUID, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, uuid.Nil, false
	}
	realm, err := database.GetRealmByID(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return nil, uuid.Nil, false
	}
	timeline, err := database.GetTimelineByID(r.Context(), realm.TimelineID)
	if err != nil {
		respondStoreError(w, err)
		return nil, uuid.Nil, false
	}
	if _, err := database.GetPlayerByUserAndGame(r.Context(), requestUserID(r), timeline.GameID); err != nil {
		respondError(w, http.StatusForbidden, "not a player in this game")
		return nil, uuid.Nil, false
	}
	return realm, timeline.GameID, true
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

// PatchRealmDevelopmentHandler applies a development delta, clamped to [1,10].
func (s *Server) PatchRealmDevelopmentHandler(w http.ResponseWriter, r *http.Request) {
	realm, gameID, ok := s.realmGameScope(w, r)
	if !ok {
		return
	}
	var req deltaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dev, err := database.SetRealmDevelopment(r.Context(), realm.ID, req.Delta)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.enqueueChange(r, gameID, "realm", realm.ID, "development")
	respondData(w, http.StatusOK, "development updated", map[string]int{"development": dev})
}

// PatchRealmResourcesHandler applies a resource delta, clamped at zero.
func (s *Server) PatchRealmResourcesHandler(w http.ResponseWriter, r *http.Request) {
	realm, gameID, ok := s.realmGameScope(w, r)
	if !ok {
		return
	}
	var req deltaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resources, err := database.AdjustRealmResources(r.Context(), realm.ID, req.Delta)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.enqueueChange(r, gameID, "realm", realm.ID, "resources")
	respondData(w, http.StatusOK, "resources updated", map[string]int{"resources": resources})
}

// PatchRealmPopulationHandler applies a population delta, clamped at zero.
func (s *Server) PatchRealmPopulationHandler(w http.ResponseWriter, r *http.Request) {
	realm, gameID, ok := s.realmGameScope(w, r)
	if !ok {
		return
	}
	var req deltaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	population, err := database.AdjustRealmPopulation(r.Context(), realm.ID, req.Delta)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	s.enqueueChange(r, gameID, "realm", realm.ID, "population")
	respondData(w, http.StatusOK, "population updated", map[string]int{"population": population})
}

// PatchRealmOwnerHandler transfers ownership to another player of the same
// game, keeping both players' realms_controlled counters consistent in one
// transaction.
func (s *Server) PatchRealmOwnerHandler(w http.ResponseWriter, r *http.Request) {
	realm, gameID, ok := s.realmGameScope(w, r)
	if !ok {
		return
	}
	var req struct {
		OwnerID string `json:"owner_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	newOwner, err := uuid.Parse(req.OwnerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}

	if err := database.TransferRealmOwner(r.Context(), realm.ID, newOwner); err != nil {
		respondStoreError(w, err)
		return
	}

	s.enqueueChange(r, gameID, "realm", realm.ID, "owner")
	respondData(w, http.StatusOK, "owner updated", map[string]string{"owner_id": newOwner.String()})
}
