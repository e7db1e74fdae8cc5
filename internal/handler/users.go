package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/database"
)

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
}

// UserHandler handles staff account management.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers user endpoints on the given Chi router.
// Expected to be mounted at /api/admin/users behind the admin role.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
}

// --- Request / Response types ---

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin staff kitchen"`
	Active   *bool  `json:"active"`
}

type updateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin staff kitchen"`
	Active   *bool  `json:"active"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u database.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// --- Handlers ---

// List returns every user, newest first. Password hashes are never exposed.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeInternal(w, r, "list users", err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// Create adds a user. Duplicate usernames answer 400.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternal(w, r, "hash password", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Role:         req.Role,
		Active:       active,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		writeInternal(w, r, "create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": toUserResponse(user)})
}

// Update rewrites username, role and active flag. The password is only
// replaced when a new one is supplied.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var passwordHash pgtype.Text
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeInternal(w, r, "hash password", err)
			return
		}
		passwordHash = pgtype.Text{String: hash, Valid: true}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	user, err := h.store.UpdateUser(r.Context(), database.UpdateUserParams{
		ID:           id,
		Username:     strings.TrimSpace(req.Username),
		Role:         req.Role,
		Active:       active,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		writeInternal(w, r, "update user", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": toUserResponse(user)})
}
