package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by stores for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore persists sessions with an idle lifetime.
// Implemented by RedisStore and MemoryStore.
type SessionStore interface {
	Save(ctx context.Context, sess Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, error)
	Touch(ctx context.Context, id string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// SessionManager issues and resolves cookie based sessions.
type SessionManager struct {
	store      SessionStore
	secret     string
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(store SessionStore, secret, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:      store,
		secret:     secret,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Start creates a session for the user and sets the cookie.
func (sm *SessionManager) Start(ctx context.Context, w http.ResponseWriter, userID int64, username, role string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := sm.store.Save(ctx, sess, sm.ttl); err != nil {
		return Session{}, err
	}
	if err := sm.setCookie(w, sess.ID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Load resolves the session referenced by the request cookie.
// It returns ErrSessionNotFound when the request carries no valid session.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	id, err := ParseSessionID(sm.secret, cookie.Value)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	return sm.store.Get(ctx, id)
}

// Refresh extends the idle lifetime of the session and re-issues the cookie.
func (sm *SessionManager) Refresh(ctx context.Context, w http.ResponseWriter, sess Session) error {
	if err := sm.store.Touch(ctx, sess.ID, sm.ttl); err != nil {
		return err
	}
	return sm.setCookie(w, sess.ID)
}

// Destroy removes the session (if any) and clears the cookie.
func (sm *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})

	sess, err := sm.Load(ctx, r)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return sm.store.Delete(ctx, sess.ID)
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) setCookie(w http.ResponseWriter, id string) error {
	token, err := SignSessionID(sm.secret, id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
