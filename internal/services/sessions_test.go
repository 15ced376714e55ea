package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"aiconsole/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginRows(t *testing.T, svc *Container, username string) []models.LoginLog {
	t.Helper()
	var rows []models.LoginLog
	require.NoError(t, svc.Audit.db.Where("username_attempted = ?", username).Order("id ASC").Find(&rows).Error)
	return rows
}

func TestSessionService_LoginRecordsEveryAttempt(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)
	mallory := createTestUser(t, svc, "mallory", false)
	_, err := svc.Credentials.SetActive(ctx, mallory.ID, false)
	require.NoError(t, err)

	_, err = svc.Sessions.Login(ctx, "alice", "wrong-pass1", testClient)
	assert.ErrorIs(t, err, ErrBadPassword)
	_, err = svc.Sessions.Login(ctx, "ghost", testPassword, testClient)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.Sessions.Login(ctx, "mallory", testPassword, testClient)
	assert.ErrorIs(t, err, ErrAccountInactive)

	result, err := svc.Sessions.Login(ctx, "alice", testPassword, testClient)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.User.LastLogin)

	rows := loginRows(t, svc, "alice")
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Success)
	require.NotNil(t, rows[0].FailureReason)
	assert.Equal(t, models.FailureBadPassword, *rows[0].FailureReason)
	require.NotNil(t, rows[0].UserID)
	assert.Equal(t, alice.ID, *rows[0].UserID)
	assert.Equal(t, testClient.IP, rows[0].IPAddress)
	assert.Equal(t, testClient.UserAgent, rows[0].UserAgent)

	assert.True(t, rows[1].Success)
	assert.Nil(t, rows[1].FailureReason)

	ghost := loginRows(t, svc, "ghost")
	require.Len(t, ghost, 1)
	assert.Nil(t, ghost[0].UserID)
	assert.Equal(t, models.FailureUserNotFound, *ghost[0].FailureReason)

	inactive := loginRows(t, svc, "mallory")
	require.Len(t, inactive, 1)
	assert.Equal(t, models.FailureAccountInactive, *inactive[0].FailureReason)

	reloaded, err := svc.Credentials.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLogin)
}

func TestSessionService_ResolveAndLogout(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	result, err := svc.Sessions.Login(ctx, "alice", testPassword, testClient)
	require.NoError(t, err)

	id, err := svc.Sessions.Resolve(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, id.UserID())
	assert.False(t, id.IsAdmin())
	assert.NoError(t, RequireAuthenticated(id))
	assert.ErrorIs(t, RequireAdmin(id), ErrForbidden)

	require.NoError(t, svc.Sessions.Logout(ctx, id.SessionID))
	require.NoError(t, svc.Sessions.Logout(ctx, id.SessionID), "logout is idempotent")

	_, err = svc.Sessions.Resolve(ctx, result.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

var errStoreDown = errors.New("store down")

// unavailableSessionStore refuses to create sessions.
type unavailableSessionStore struct {
	*MemorySessionStore
}

func (unavailableSessionStore) Create(context.Context, SessionRecord) error {
	return errStoreDown
}

func TestSessionService_LoginRecordsInternalFailure(t *testing.T) {
	cfg, db := setupTestDB(t)
	store := unavailableSessionStore{NewMemorySessionStore()}
	svc := NewContainer(cfg, db, store)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	_, err := svc.Sessions.Login(ctx, "alice", testPassword, testClient)
	require.ErrorIs(t, err, errStoreDown)

	rows := loginRows(t, svc, "alice")
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)
	require.NotNil(t, rows[0].FailureReason)
	assert.Equal(t, models.FailureInternalError, *rows[0].FailureReason)
	require.NotNil(t, rows[0].UserID)
	assert.Equal(t, alice.ID, *rows[0].UserID)

	reloaded, err := svc.Credentials.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LastLogin, "a failed login does not stamp last_login")
	assert.Zero(t, store.Len())
}

func TestSessionService_ResolveRejectsInactiveAccount(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	result, err := svc.Sessions.Login(ctx, "alice", testPassword, testClient)
	require.NoError(t, err)

	_, err = svc.Credentials.SetActive(ctx, alice.ID, false)
	require.NoError(t, err)

	_, err = svc.Sessions.Resolve(ctx, result.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// reactivation restores the same session
	_, err = svc.Credentials.SetActive(ctx, alice.ID, true)
	require.NoError(t, err)
	_, err = svc.Sessions.Resolve(ctx, result.Token)
	assert.NoError(t, err)
}

func TestSessionService_ResolveRejectsBadTokens(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	createTestUser(t, svc, "alice", false)

	result, err := svc.Sessions.Login(ctx, "alice", testPassword, testClient)
	require.NoError(t, err)

	_, err = svc.Sessions.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Sessions.Resolve(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Sessions.Resolve(ctx, result.Token+"x")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// correctly signed but naming a session that was never created
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "forged",
			Issuer:    "aiconsole",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString(svc.Sessions.secret)
	require.NoError(t, err)
	_, err = svc.Sessions.Resolve(ctx, signed)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, RequireAuthenticated(nil), ErrUnauthorized)
	assert.ErrorIs(t, RequireAdmin(nil), ErrUnauthorized)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Create(ctx, SessionRecord{ID: "s1", UserID: 1, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	rec, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), rec.UserID)

	store.now = func() time.Time { return now.Add(time.Hour) }
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, store.Len(), "expired sessions are dropped on lookup")

	assert.NoError(t, store.Delete(ctx, "missing"))
}

func TestDBSessionStore(t *testing.T) {
	_, db := setupTestDB(t)
	store := NewDBSessionStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Create(ctx, SessionRecord{ID: "live", UserID: 3, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Create(ctx, SessionRecord{ID: "stale", UserID: 3, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))

	rec, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, uint(3), rec.UserID)

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, store.Delete(ctx, "live"))
	_, err = store.Get(ctx, "live")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, store.Ping(ctx))
}

func TestNewSessionStore(t *testing.T) {
	cfg, db := setupTestDB(t)

	store, err := NewSessionStore(cfg, db)
	require.NoError(t, err)
	assert.IsType(t, &MemorySessionStore{}, store)

	cfg.Session.Store = "database"
	store, err = NewSessionStore(cfg, db)
	require.NoError(t, err)
	assert.IsType(t, &DBSessionStore{}, store)

	cfg.Session.Store = "redis"
	cfg.Redis.Addr = "127.0.0.1:0"
	store, err = NewSessionStore(cfg, db)
	require.NoError(t, err)
	assert.IsType(t, &RedisSessionStore{}, store)

	cfg.Session.Store = "etcd"
	_, err = NewSessionStore(cfg, db)
	assert.Error(t, err)
}

func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("AICONSOLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AICONSOLE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSessionStore(client, "aiconsole:test:"+time.Now().Format("150405.000000")+":")
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, SessionRecord{ID: "s1", UserID: 9, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	rec, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint(9), rec.UserID)

	ttl, err := client.TTL(ctx, store.key("s1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
