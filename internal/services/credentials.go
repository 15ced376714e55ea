package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CredentialService owns user accounts: password hashing, uniqueness of
// usernames and e-mails, and the active/admin flags.
type CredentialService struct {
	db         *gorm.DB
	bcryptCost int
	dummyHash  []byte
	now        func() time.Time
}

func NewCredentialService(db *gorm.DB, cfg *config.Config) *CredentialService {
	cost := cfg.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Compared against when a login names no account, so unknown users cost
	// the same bcrypt work as known ones.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password-0"), cost)
	return &CredentialService{
		db:         db,
		bcryptCost: cost,
		dummyHash:  dummy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword hashes a password using bcrypt
func (s *CredentialService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func (s *CredentialService) VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// newUser validates registration input and returns an unsaved standard
// account with the password already hashed.
func (s *CredentialService) newUser(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		IsActive:     true,
	}, nil
}

// insertUser creates the row. The unique indexes are the real guard against
// concurrent registrations; the lookups only pick the right error.
func (s *CredentialService) insertUser(tx *gorm.DB, user *models.User) error {
	if err := s.checkIdentifiersFree(tx, 0, user.Username, user.Email); err != nil {
		return err
	}
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if conflict := s.checkIdentifiersFree(tx, 0, user.Username, user.Email); conflict != nil {
				return conflict
			}
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// checkIdentifiersFree reports a conflict if another user (not exceptID)
// already holds the username or e-mail.
func (s *CredentialService) checkIdentifiersFree(tx *gorm.DB, exceptID uint, username, email string) error {
	var count int64
	if username != "" {
		if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUsername
		}
	}
	if email != "" {
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
	}
	return nil
}

// Register creates a standard account without a signup code. Registration
// through the public API goes through RegistrationService instead.
func (s *CredentialService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	user, err := s.newUser(username, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.insertUser(s.db.WithContext(ctx), user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate resolves a username or e-mail and checks the password. On
// ErrBadPassword and ErrAccountInactive the matched user is returned along
// with the error so callers can attribute the attempt.
func (s *CredentialService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, normalizeEmail(login)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !s.VerifyPassword(user.PasswordHash, password) {
		return &user, ErrBadPassword
	}
	if !user.IsActive {
		return &user, ErrAccountInactive
	}
	return &user, nil
}

// GetUser returns a user by ID.
func (s *CredentialService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// TouchLastLogin stamps a successful login.
func (s *CredentialService) TouchLastLogin(ctx context.Context, user *models.User) error {
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_login", now).Error; err != nil {
		return err
	}
	user.LastLogin = &now
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *CredentialService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return ErrMissingFields
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.VerifyPassword(user.PasswordHash, currentPassword) {
		return ErrWrongCurrentPassword
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

// ProfileUpdate lists the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UpdateProfile applies username/e-mail changes and returns the updated
// user along with the names of the fields that actually changed.
func (s *CredentialService) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, []string, error) {
	var (
		user    *models.User
		changed []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.User
		if err := tx.First(&current, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		updates := map[string]any{}
		if upd.Username != nil {
			username := strings.TrimSpace(*upd.Username)
			if err := ValidateUsername(username); err != nil {
				return err
			}
			if username != current.Username {
				updates["username"] = username
			}
		}
		if upd.Email != nil {
			email := normalizeEmail(*upd.Email)
			if err := ValidateEmail(email); err != nil {
				return err
			}
			if email != current.Email {
				updates["email"] = email
			}
		}

		if len(updates) > 0 {
			newUsername, _ := updates["username"].(string)
			newEmail, _ := updates["email"].(string)
			if err := s.checkIdentifiersFree(tx, current.ID, newUsername, newEmail); err != nil {
				return err
			}
			if err := tx.Model(&current).Updates(updates).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					if _, ok := updates["email"]; ok {
						return ErrDuplicateEmail
					}
					return ErrDuplicateUsername
				}
				return err
			}
			if newUsername != "" {
				current.Username = newUsername
				changed = append(changed, "username")
			}
			if newEmail != "" {
				current.Email = newEmail
				changed = append(changed, "email")
			}
		}

		user = &current
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, changed, nil
}

// SetActive toggles whether the account may log in.
func (s *CredentialService) SetActive(ctx context.Context, userID uint, active bool) (*models.User, error) {
	return s.setFlag(ctx, userID, "is_active", active)
}

// SetAdmin grants or revokes admin privileges.
func (s *CredentialService) SetAdmin(ctx context.Context, userID uint, admin bool) (*models.User, error) {
	return s.setFlag(ctx, userID, "is_admin", admin)
}

func (s *CredentialService) setFlag(ctx context.Context, userID uint, column string, value bool) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update(column, value).Error; err != nil {
		return nil, err
	}
	switch column {
	case "is_active":
		user.IsActive = value
	case "is_admin":
		user.IsAdmin = value
	}
	return user, nil
}

// ResetPassword sets a new password for the user. When newPassword is empty
// a random one is generated; either way the plaintext is returned exactly
// once and never stored.
func (s *CredentialService) ResetPassword(ctx context.Context, userID uint, newPassword string) (*models.User, string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if newPassword == "" {
		generated, err := GeneratePassword()
		if err != nil {
			return nil, "", err
		}
		newPassword = generated
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, "", err
	}
	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		return nil, "", err
	}
	return user, newPassword, nil
}

func (s *CredentialService) setPassword(ctx context.Context, userID uint, password string) error {
	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hashedPassword).Error
}

// Delete removes a user. Search and action history owned by the user goes
// with it; login attempts and redeemed signup codes are kept with the user
// reference cleared.
func (s *CredentialService) Delete(ctx context.Context, actorID, userID uint) (*models.User, error) {
	if actorID == userID {
		return nil, ErrSelfDeleteForbidden
	}

	var deleted models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&deleted, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.SearchLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.LoginLog{}).Where("user_id = ?", userID).Update("user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SignupCode{}).Where("used_by_user_id = ?", userID).Update("used_by_user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// CreateDefaultUser creates the bootstrap admin when no users exist yet.
func (s *CredentialService) CreateDefaultUser(ctx context.Context, def config.DefaultUserConfig) (*models.User, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 || def.Username == "" || def.Password == "" {
		return nil, nil
	}

	email := def.Email
	if email == "" {
		email = def.Username + "@localhost.localdomain"
	}
	user, err := s.newUser(def.Username, email, def.Password)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = true
	if err := s.insertUser(s.db.WithContext(ctx), user); err != nil {
		return nil, err
	}
	return user, nil
}

// GeneratePassword returns a random password that satisfies the policy.
func GeneratePassword() (string, error) {
	buf := make([]byte, 12)
	for {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		candidate := base64.RawURLEncoding.EncodeToString(buf)
		if ValidatePassword(candidate) == nil {
			return candidate, nil
		}
	}
}
