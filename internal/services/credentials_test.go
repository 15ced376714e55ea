package services

import (
	"context"
	"testing"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"abc12345", true},
		{"short1a", false},
		{"allletters", false},
		{"12345678", false},
		{"Pässwört1", true},
		{"пароль1234", false},
		{"ÄÖÜäöü12", false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestValidateEmailAndUsername(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@x.com"))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail("a@b"), ErrInvalidEmail)

	assert.NoError(t, ValidateUsername("bob"))
	assert.ErrorIs(t, ValidateUsername("al"), ErrUsernameTooShort)
}

func TestCredentialService_Register(t *testing.T) {
	svc, db := setupTestContainer(t)
	ctx := context.Background()

	user, err := svc.Credentials.Register(ctx, " alice ", "Alice@X.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@x.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, testPassword, user.PasswordHash)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Credentials.Register(ctx, "alice", "other@x.com", testPassword)
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Credentials.Register(ctx, "alice2", "ALICE@x.com", testPassword)
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := svc.Credentials.Register(ctx, "bob", "bob@x.com", "password")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.Credentials.Register(ctx, "bob", "bob-at-x", testPassword)
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "failed registrations must not create rows")
}

func TestCredentialService_Authenticate(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	user, err := svc.Credentials.Authenticate(ctx, "alice", testPassword)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	user, err = svc.Credentials.Authenticate(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	user, err = svc.Credentials.Authenticate(ctx, "alice", "wrong-pass1")
	assert.ErrorIs(t, err, ErrBadPassword)
	require.NotNil(t, user)
	assert.Equal(t, alice.ID, user.ID)

	user, err = svc.Credentials.Authenticate(ctx, "nobody", testPassword)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, user)

	_, err = svc.Credentials.SetActive(ctx, alice.ID, false)
	require.NoError(t, err)
	_, err = svc.Credentials.Authenticate(ctx, "alice", testPassword)
	assert.ErrorIs(t, err, ErrAccountInactive)

	// a wrong password is reported before the inactive flag
	_, err = svc.Credentials.Authenticate(ctx, "alice", "wrong-pass1")
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestCredentialService_ChangePassword(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	assert.ErrorIs(t, svc.Credentials.ChangePassword(ctx, alice.ID, "nope12345", "newpass123"), ErrWrongCurrentPassword)
	assert.ErrorIs(t, svc.Credentials.ChangePassword(ctx, alice.ID, testPassword, "short"), ErrWeakPassword)
	assert.ErrorIs(t, svc.Credentials.ChangePassword(ctx, alice.ID, testPassword, "nodigitshere"), ErrWeakPassword)

	require.NoError(t, svc.Credentials.ChangePassword(ctx, alice.ID, testPassword, "newpass123"))
	_, err := svc.Credentials.Authenticate(ctx, "alice", "newpass123")
	assert.NoError(t, err)
	_, err = svc.Credentials.Authenticate(ctx, "alice", testPassword)
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestCredentialService_UpdateProfile(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)
	createTestUser(t, svc, "bob", false)

	strp := func(s string) *string { return &s }

	_, _, err := svc.Credentials.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: strp("bob")})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, _, err = svc.Credentials.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: strp("bob@example.com")})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, _, err = svc.Credentials.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: strp("al")})
	assert.ErrorIs(t, err, ErrUsernameTooShort)

	_, _, err = svc.Credentials.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: strp("broken")})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	user, changed, err := svc.Credentials.UpdateProfile(ctx, alice.ID, ProfileUpdate{
		Username: strp("alice"),
		Email:    strp("new@x.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, changed)
	assert.Equal(t, "new@x.com", user.Email)

	reloaded, err := svc.Credentials.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", reloaded.Email)
}

func TestCredentialService_ResetPassword(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice", false)

	target, generated, err := svc.Credentials.ResetPassword(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", target.Username)
	assert.NoError(t, ValidatePassword(generated))

	reloaded, err := svc.Credentials.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotContains(t, reloaded.PasswordHash, generated)

	_, err = svc.Credentials.Authenticate(ctx, "alice", generated)
	assert.NoError(t, err)

	_, _, err = svc.Credentials.ResetPassword(ctx, alice.ID, "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = svc.Credentials.ResetPassword(ctx, 9999, "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCredentialService_Delete(t *testing.T) {
	svc, db := setupTestContainer(t)
	ctx := context.Background()
	admin := createTestUser(t, svc, "admin", true)
	alice := createTestUser(t, svc, "alice", false)

	code, err := svc.SignupCodes.Issue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, svc.SignupCodes.Redeem(ctx, code.Code, alice.ID))

	svc.Audit.RecordSearch(ctx, alice.ID, models.SearchChat, "hi", "hello", 0.2, testClient)
	svc.Audit.RecordAction(ctx, alice.ID, "upload", nil, testClient)
	_, err = svc.Sessions.Login(ctx, "alice", "wrong-pass1", testClient)
	require.Error(t, err)

	_, err = svc.Credentials.Delete(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrSelfDeleteForbidden)

	deleted, err := svc.Credentials.Delete(ctx, admin.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", deleted.Username)

	var n int64
	require.NoError(t, db.Model(&models.SearchLog{}).Where("user_id = ?", alice.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.UserAction{}).Where("user_id = ?", alice.ID).Count(&n).Error)
	assert.Zero(t, n)

	var logins []models.LoginLog
	require.NoError(t, db.Where("username_attempted = ?", "alice").Find(&logins).Error)
	require.Len(t, logins, 1)
	assert.Nil(t, logins[0].UserID)

	codes, err := svc.SignupCodes.List(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, models.CodeUsed, codes[0].Status, "a redeemed code stays used after its user is deleted")

	_, err = svc.Credentials.Delete(ctx, admin.ID, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCredentialService_CreateDefaultUser(t *testing.T) {
	svc, _ := setupTestContainer(t)
	ctx := context.Background()
	def := config.DefaultUserConfig{Username: "admin", Password: "admin12345"}

	user, err := svc.Credentials.CreateDefaultUser(ctx, def)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsAdmin)
	assert.True(t, user.IsActive)

	again, err := svc.Credentials.CreateDefaultUser(ctx, def)
	require.NoError(t, err)
	assert.Nil(t, again, "seeding is skipped once users exist")
}
