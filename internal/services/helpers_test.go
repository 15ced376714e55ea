package services

import (
	"context"
	"path/filepath"
	"testing"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "passw0rd123"

// testConfig returns a config backed by a throwaway SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		},
		Session:  config.SessionConfig{Secret: "test-secret-key-for-testing-only"},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
	}
	cfg.ApplyDefaults()
	return cfg
}

func setupTestDB(t *testing.T) (*config.Config, *gorm.DB) {
	t.Helper()
	cfg := testConfig(t)
	db, err := models.InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = models.Close(db) })
	return cfg, db
}

func setupTestContainer(t *testing.T) (*Container, *gorm.DB) {
	t.Helper()
	cfg, db := setupTestDB(t)
	return NewContainer(cfg, db, NewMemorySessionStore()), db
}

func createTestUser(t *testing.T, svc *Container, username string, admin bool) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := svc.Credentials.Register(ctx, username, username+"@example.com", testPassword)
	require.NoError(t, err)
	if admin {
		user, err = svc.Credentials.SetAdmin(ctx, user.ID, true)
		require.NoError(t, err)
	}
	return user
}

func identityFor(user *models.User) *Identity {
	return &Identity{User: user, SessionID: "test-session"}
}

var testClient = ClientInfo{IP: "203.0.113.7", UserAgent: "go-test"}
