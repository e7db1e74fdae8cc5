package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/middleware"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByUsername(ctx context.Context, username string) (database.User, error)
}

// SessionStarter creates and destroys login sessions.
// Satisfied by *auth.SessionManager.
type SessionStarter interface {
	Start(ctx context.Context, w http.ResponseWriter, userID int64, username, role string) (auth.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// AuthHandler handles login, logout and the current-user probe.
type AuthHandler struct {
	store    AuthStore
	sessions SessionStarter
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, sessions SessionStarter) *AuthHandler {
	return &AuthHandler{store: store, sessions: sessions}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
// Login is registered separately by the router so it can carry a rate limit.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type sessionUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

// --- Handlers ---

// Login checks username and password and starts a session.
// Unknown users, wrong passwords and disabled accounts all answer 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeInternal(w, r, "login lookup", err)
		return
	}

	if !user.Active || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, user.ID, user.Username, user.Role); err != nil {
		writeInternal(w, r, "start session", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"user": sessionUserResponse{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
			Active:   user.Active,
		},
	})
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		writeInternal(w, r, "destroy session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the signed-in user or {"user": null}.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": sessionUserResponse{
			ID:       p.UserID,
			Username: p.Username,
			Role:     p.Role,
			Active:   p.Active,
		},
	})
}
