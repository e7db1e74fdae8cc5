package handler_test

import (
	"context"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/handler"
)

// --- Mock store ---

type mockUserStore struct {
	users  map[int64]database.User // keyed by user ID
	nextID int64
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[int64]database.User), nextID: 1}
}

func (m *mockUserStore) ListUsers(_ context.Context) ([]database.User, error) {
	result := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	// Simulates the unique constraint on username.
	for _, existing := range m.users {
		if existing.Username == arg.Username {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u := database.User{
		ID:           m.nextID,
		Username:     arg.Username,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		Active:       arg.Active,
		CreatedAt:    time.Now(),
	}
	m.nextID++
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	for _, existing := range m.users {
		if existing.Username == arg.Username && existing.ID != arg.ID {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u.Username = arg.Username
	u.Role = arg.Role
	u.Active = arg.Active
	if arg.PasswordHash.Valid {
		u.PasswordHash = arg.PasswordHash.String
	}
	m.users[u.ID] = u
	return u, nil
}

func setupUserRouter(store *mockUserStore) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Route("/api/admin/users", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestUserCreate_Success(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)

	rr := doRequest(t, router, "POST", "/api/admin/users", map[string]interface{}{
		"username": "  cashier1 ",
		"password": "secret123",
		"role":     "staff",
	})
	expectStatus(t, rr, http.StatusCreated)

	resp := decodeBody(t, rr)
	user := resp["user"].(map[string]interface{})
	if user["username"] != "cashier1" {
		t.Errorf("username: got %v, want cashier1", user["username"])
	}
	if user["active"] != true {
		t.Errorf("active: got %v, want true", user["active"])
	}
	if _, ok := user["passwordHash"]; ok {
		t.Error("password hash must not be exposed")
	}

	saved := store.users[1]
	if saved.PasswordHash == "secret123" || !auth.CheckPassword(saved.PasswordHash, "secret123") {
		t.Error("password should be stored as a bcrypt hash")
	}
}

func TestUserCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]interface{}
		wantMsg string
	}{
		{"short username", map[string]interface{}{"username": "ab", "password": "secret123", "role": "staff"}, "username must be at least 3 characters"},
		{"short password", map[string]interface{}{"username": "cashier", "password": "123", "role": "staff"}, "password must be at least 6 characters"},
		{"bad role", map[string]interface{}{"username": "cashier", "password": "secret123", "role": "owner"}, "role must be one of: admin, staff, kitchen"},
		{"missing role", map[string]interface{}{"username": "cashier", "password": "secret123"}, "role is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupUserRouter(newMockUserStore())
			rr := doRequest(t, router, "POST", "/api/admin/users", tt.body)
			expectStatus(t, rr, http.StatusBadRequest)
			expectMessage(t, rr, tt.wantMsg)
		})
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)

	body := map[string]interface{}{"username": "cashier", "password": "secret123", "role": "staff"}
	expectStatus(t, doRequest(t, router, "POST", "/api/admin/users", body), http.StatusCreated)

	rr := doRequest(t, router, "POST", "/api/admin/users", body)
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, "Username already exists")
}

func TestUserList(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)
	for _, name := range []string{"first", "second"} {
		expectStatus(t, doRequest(t, router, "POST", "/api/admin/users", map[string]interface{}{
			"username": name, "password": "secret123", "role": "kitchen",
		}), http.StatusCreated)
	}

	rr := doRequest(t, router, "GET", "/api/admin/users", nil)
	expectStatus(t, rr, http.StatusOK)

	users := decodeBody(t, rr)["users"].([]interface{})
	if len(users) != 2 {
		t.Fatalf("users count: got %d, want 2", len(users))
	}
	if first := users[0].(map[string]interface{}); first["username"] != "second" {
		t.Errorf("newest first: got %v, want second", first["username"])
	}
}

func TestUserUpdate_KeepsPasswordWhenOmitted(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)
	expectStatus(t, doRequest(t, router, "POST", "/api/admin/users", map[string]interface{}{
		"username": "cashier", "password": "secret123", "role": "staff",
	}), http.StatusCreated)
	oldHash := store.users[1].PasswordHash

	rr := doRequest(t, router, "PUT", "/api/admin/users/1", map[string]interface{}{
		"username": "cashier",
		"role":     "admin",
		"active":   false,
	})
	expectStatus(t, rr, http.StatusOK)

	u := store.users[1]
	if u.PasswordHash != oldHash {
		t.Error("password hash changed without a new password")
	}
	if u.Role != "admin" || u.Active {
		t.Errorf("user: got role=%s active=%v, want admin/false", u.Role, u.Active)
	}
}

func TestUserUpdate_ChangesPassword(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)
	expectStatus(t, doRequest(t, router, "POST", "/api/admin/users", map[string]interface{}{
		"username": "cashier", "password": "secret123", "role": "staff",
	}), http.StatusCreated)

	rr := doRequest(t, router, "PUT", "/api/admin/users/1", map[string]interface{}{
		"username": "cashier", "password": "newpass99", "role": "staff",
	})
	expectStatus(t, rr, http.StatusOK)

	if !auth.CheckPassword(store.users[1].PasswordHash, "newpass99") {
		t.Error("new password not applied")
	}
}

func TestUserUpdate_Errors(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)
	for _, name := range []string{"alpha", "bravo"} {
		expectStatus(t, doRequest(t, router, "POST", "/api/admin/users", map[string]interface{}{
			"username": name, "password": "secret123", "role": "staff",
		}), http.StatusCreated)
	}

	rr := doRequest(t, router, "PUT", "/api/admin/users/99", map[string]interface{}{
		"username": "ghost", "role": "staff",
	})
	expectStatus(t, rr, http.StatusNotFound)
	expectMessage(t, rr, "User not found")

	rr = doRequest(t, router, "PUT", "/api/admin/users/2", map[string]interface{}{
		"username": "alpha", "role": "staff",
	})
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, "Username already exists")

	rr = doRequest(t, router, "PUT", "/api/admin/users/abc", map[string]interface{}{
		"username": "alpha", "role": "staff",
	})
	expectStatus(t, rr, http.StatusBadRequest)
	expectMessage(t, rr, "invalid user ID")
}
