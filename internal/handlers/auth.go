// internal/handlers/auth.go
package handlers

import (
	"net/http"

	"github.com/chronocore/chronocore-service/internal/auth"
	"github.com/chronocore/chronocore-service/internal/database"
	"github.com/chronocore/chronocore-service/internal/models"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// RegisterHandler creates a user account.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		respondError(w, http.StatusBadRequest, "email, password and username are required")
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		if database.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		s.Logger.Errorf("failed to create user: %v", err)
		respondError(w, http.StatusInternalServerError, "error creating user")
		return
	}

	user.Password = ""
	respondData(w, http.StatusCreated, "user created", user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler authenticates credentials and returns a JWT, also set as an
// HttpOnly cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		s.Logger.Infof("failed login for %s: %v", req.Email, err)
		respondError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TokenExpireSec,
	})
	respondData(w, http.StatusOK, "authenticated", map[string]string{"token": token})
}

// GetProfileHandler returns the authenticated user's profile.
func (s *Server) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := database.GetUserByID(r.Context(), requestUserID(r))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	user.Password = ""
	respondData(w, http.StatusOK, "profile", user)
}

type profileUpdateRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// UpdateProfileHandler changes the mutable profile fields.
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := database.GetUserByID(r.Context(), requestUserID(r))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if err := database.UpdateUserProfile(r.Context(), user); err != nil {
		respondStoreError(w, err)
		return
	}

	user.Password = ""
	respondData(w, http.StatusOK, "profile updated", user)
}
