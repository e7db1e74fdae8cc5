package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/database"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated user behind a request, reloaded from the
// database on every request so role and active changes apply immediately.
type Principal struct {
	SessionID string
	UserID    int64
	Username  string
	Role      string
	Active    bool
}

// UserLookup is satisfied by *database.Queries.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (database.User, error)
}

// LoadSession resolves the session cookie and attaches a Principal to the
// request context. Requests without a valid session continue anonymously.
func LoadSession(sm *auth.SessionManager, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := sm.Load(ctx, r)
			if errors.Is(err, auth.ErrSessionNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				logger.Error("load session", slog.Any("error", err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
				return
			}

			user, err := users.GetUserByID(ctx, sess.UserID)
			if errors.Is(err, pgx.ErrNoRows) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				logger.Error("load session user", slog.Any("error", err), slog.Int64("user_id", sess.UserID))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal server error"})
				return
			}

			if err := sm.Refresh(ctx, w, sess); err != nil {
				logger.Warn("refresh session", slog.Any("error", err))
			}

			p := &Principal{
				SessionID: sess.ID,
				UserID:    user.ID,
				Username:  user.Username,
				Role:      user.Role,
				Active:    user.Active,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}

// RequireAuth rejects anonymous requests and disabled accounts.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkActive(w, PrincipalFromContext(r.Context())) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if !checkActive(w, p) {
				return
			}

			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
		})
	}
}

func checkActive(w http.ResponseWriter, p *Principal) bool {
	if p == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
		return false
	}
	if !p.Active {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Account disabled"})
		return false
	}
	return true
}

// HasRole reports whether p is an active user holding one of roles.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil || !p.Active {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
