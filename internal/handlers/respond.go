// internal/handlers/respond.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chronocore/chronocore-service/internal/auth"
	"github.com/chronocore/chronocore-service/internal/database"
)

// envelope is the uniform REST response body: {status, message, data?}.
type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}

func respondData(w http.ResponseWriter, code int, message string, data interface{}) {
	writeJSON(w, code, envelope{Status: "success", Message: message, Data: data})
}

func respondError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: "error", Message: message})
}

// respondStoreError maps database sentinels onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case database.IsUniqueViolation(err):
		respondError(w, http.StatusConflict, "already exists")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

type ctxKey int

const userIDKey ctxKey = iota

// extractToken pulls the JWT from the Authorization header or, failing that,
// the auth_token cookie.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the request's user id from its token.
func authenticate(r *http.Request) (uuid.UUID, error) {
	token := extractToken(r)
	if token == "" {
		return uuid.Nil, errors.New("missing token")
	}
	sub, err := auth.AuthenticateJWT(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}

// RequireAuth rejects unauthenticated requests and stores the user id on the
// request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// requestUserID returns the authenticated user id set by RequireAuth.
func requestUserID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}

// pathUUID parses a path segment as a UUID, responding 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes a JSON request body, responding 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}
