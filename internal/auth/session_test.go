package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snackattack-pos/api/internal/auth"
)

func newRedisStore(t *testing.T) (*auth.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRedisStore(client), mr
}

func TestRedisStoreSaveGetDelete(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	sess := auth.Session{ID: "abc", UserID: 7, Username: "staff", Role: "staff"}
	require.NoError(t, store.Save(ctx, sess, time.Hour))
	assert.True(t, mr.Exists("session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "staff", got.Role)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestRedisStoreExpiresAndTouch(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, auth.Session{ID: "s1", UserID: 1}, time.Minute))

	mr.FastForward(50 * time.Second)
	require.NoError(t, store.Touch(ctx, "s1", time.Minute))

	mr.FastForward(50 * time.Second)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err, "touch should extend the idle lifetime")

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	assert.ErrorIs(t, store.Touch(ctx, "s1", time.Minute), auth.ErrSessionNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := auth.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, auth.Session{ID: "m1", UserID: 3}, time.Hour))
	got, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.UserID)

	require.NoError(t, store.Touch(ctx, "m1", time.Hour))
	require.NoError(t, store.Delete(ctx, "m1"))
	_, err = store.Get(ctx, "m1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestSessionManagerCookieFlow(t *testing.T) {
	store := auth.NewMemoryStore()
	sm := auth.NewSessionManager(store, "secret", "snackattack.sid", 8*time.Hour, false)
	ctx := context.Background()

	rr := httptest.NewRecorder()
	sess, err := sm.Start(ctx, rr, 42, "admin", "admin")
	require.NoError(t, err)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "snackattack.sid", cookie.Name)
	assert.Equal(t, sm.CookieName(), cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.NotEqual(t, sess.ID, cookie.Value, "cookie carries a signed token, not the raw id")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, int64(42), loaded.UserID)

	logout := httptest.NewRecorder()
	require.NoError(t, sm.Destroy(ctx, logout, req))
	cleared := logout.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	_, err = sm.Load(ctx, req)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestSessionManagerRejectsTamperedCookie(t *testing.T) {
	sm := auth.NewSessionManager(auth.NewMemoryStore(), "secret", "sid", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})

	_, err := sm.Load(context.Background(), req)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}
