package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/middleware"
)

const testSecret = "test-secret"

type mockUsers struct {
	users map[int64]database.User
}

func (m *mockUsers) GetUserByID(ctx context.Context, id int64) (database.User, error) {
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loginCookie starts a session for userID and returns the cookie to replay.
func loginCookie(t *testing.T, sm *auth.SessionManager, userID int64, role string) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	if _, err := sm.Start(context.Background(), rr, userID, "someone", role); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return rr.Result().Cookies()[0]
}

func newManager() *auth.SessionManager {
	return auth.NewSessionManager(auth.NewMemoryStore(), testSecret, "snackattack.sid", time.Hour, false)
}

func TestLoadSession_AttachesPrincipal(t *testing.T) {
	sm := newManager()
	users := &mockUsers{users: map[int64]database.User{
		5: {ID: 5, Username: "staff", Role: "staff", Active: true},
	}}
	cookie := loginCookie(t, sm, 5, "staff")

	handler := middleware.LoadSession(sm, users, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.UserID != 5 {
			t.Errorf("user ID: got %v, want %v", p.UserID, 5)
		}
		if p.Role != "staff" {
			t.Errorf("role: got %v, want %v", p.Role, "staff")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestLoadSession_RoleReloadedFromDatabase(t *testing.T) {
	sm := newManager()
	users := &mockUsers{users: map[int64]database.User{
		5: {ID: 5, Username: "demoted", Role: "kitchen", Active: true},
	}}
	cookie := loginCookie(t, sm, 5, "admin")

	handler := middleware.LoadSession(sm, users, discardLogger())(
		middleware.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})),
	)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestLoadSession_NoCookieIsAnonymous(t *testing.T) {
	handler := middleware.LoadSession(newManager(), &mockUsers{}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.PrincipalFromContext(r.Context()) != nil {
			t.Error("expected no principal")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireAuth_Anonymous(t *testing.T) {
	handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuth_DisabledAccount(t *testing.T) {
	handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{UserID: 1, Role: "admin", Active: false}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	handler := middleware.RequireRole("admin", "staff")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{UserID: 1, Role: "staff", Active: true}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	handler := middleware.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), &middleware.Principal{UserID: 1, Role: "kitchen", Active: true}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
