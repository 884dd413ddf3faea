// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/chronocore/chronocore-service/internal/ai"
	"github.com/chronocore/chronocore-service/internal/game"
	"github.com/chronocore/chronocore-service/internal/middleware"
	"github.com/chronocore/chronocore-service/internal/mirror"
)

// Server holds the wired dependencies for the REST and WebSocket surface.
type Server struct {
	Logger     *logrus.Logger
	Registry   *game.Registry
	Dispatcher *game.Dispatcher
	AI         *ai.Client
	Mirror     *mirror.Reader
	Changes    *mirror.Writer
}

// Routes builds the full HTTP mux. Auth endpoints are open; everything else
// sits behind RequireAuth.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// auth
	mux.HandleFunc("POST /api/auth/register", s.RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", s.LoginHandler)
	mux.Handle("GET /api/auth/profile", RequireAuth(http.HandlerFunc(s.GetProfileHandler)))
	mux.Handle("PUT /api/auth/profile", RequireAuth(http.HandlerFunc(s.UpdateProfileHandler)))

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, RequireAuth(h))
	}

	// games
	protected("GET /api/games", s.ListGamesHandler)
	protected("POST /api/games", s.CreateGameHandler)
	protected("GET /api/games/code/{code}", s.GetGameByCodeHandler)
	protected("GET /api/games/{id}", s.GetGameHandler)
	protected("PUT /api/games/{id}", s.UpdateGameHandler)
	protected("DELETE /api/games/{id}", s.DeleteGameHandler)
	protected("GET /api/games/{id}/state", s.GetGameStateHandler)
	protected("POST /api/games/{id}/join", s.JoinGameHandler)
	protected("POST /api/games/{id}/leave", s.LeaveGameHandler)
	protected("POST /api/games/{id}/start", s.StartGameHandler)
	protected("PATCH /api/games/{id}/status", s.PatchGameStatusHandler)
	protected("POST /api/games/{id}/ready", s.ReadyHandler)
	protected("POST /api/games/{id}/end-turn", s.EndTurnHandler)
	protected("POST /api/games/{id}/decision", s.DecisionHandler)

	// players
	protected("GET /api/players/{id}", s.GetPlayerHandler)
	protected("PATCH /api/players/{id}/ready", s.PatchPlayerReadyHandler)
	protected("PATCH /api/players/{id}/resources", s.PatchPlayerResourcesHandler)
	protected("GET /api/players/{id}/quests", s.ListQuestsHandler)
	protected("POST /api/players/{id}/quests", s.GenerateQuestHandler)
	protected("GET /api/players/{id}/decisions", s.ListDecisionsHandler)

	// quests
	protected("GET /api/quests/{id}", s.GetQuestHandler)
	protected("POST /api/quests/{id}/resolve", s.ResolveQuestHandler)

	// realms
	protected("GET /api/realms/{id}", s.GetRealmHandler)
	protected("PATCH /api/realms/{id}/development", s.PatchRealmDevelopmentHandler)
	protected("PATCH /api/realms/{id}/resources", s.PatchRealmResourcesHandler)
	protected("PATCH /api/realms/{id}/population", s.PatchRealmPopulationHandler)
	protected("PATCH /api/realms/{id}/owner", s.PatchRealmOwnerHandler)

	// timelines
	protected("GET /api/timelines", s.ListTimelinesHandler)
	protected("POST /api/timelines", s.CreateTimelineHandler)
	protected("GET /api/timelines/{id}", s.GetTimelineHandler)
	protected("PATCH /api/timelines/{id}/stability", s.PatchStabilityHandler)
	protected("GET /api/timelines/{id}/realms", s.ListRealmsHandler)
	protected("POST /api/timelines/{id}/realms", s.CreateRealmHandler)
	protected("GET /api/timelines/{id}/rifts", s.ListRiftsHandler)
	protected("POST /api/timelines/{id}/rifts", s.CreateRiftHandler)
	protected("POST /api/rifts/{id}/resolve", s.ResolveRiftHandler)

	// ai passthrough
	protected("POST /api/ai/generate-story", s.AIGenerateStoryHandler)
	protected("POST /api/ai/generate-quest", s.AIGenerateQuestHandler)
	protected("POST /api/ai/evaluate-decision", s.AIEvaluateDecisionHandler)
	protected("POST /api/ai/calculate-karma", s.AICalculateKarmaHandler)
	protected("GET /api/games/{id}/ai-state", s.AIGameStateHandler)

	// real-time relay
	mux.HandleFunc("GET /ws", s.WSHandler)

	return middleware.LogMiddleware(s.Logger)(mux)
}
