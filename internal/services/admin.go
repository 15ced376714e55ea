package services

import (
	"context"
	"strings"

	"aiconsole/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminService exposes user and signup code management to admins. Every
// successful mutation is recorded as an action of the acting admin.
type AdminService struct {
	db    *gorm.DB
	creds *CredentialService
	codes *SignupCodeService
	audit *AuditService
}

func NewAdminService(db *gorm.DB, creds *CredentialService, codes *SignupCodeService, audit *AuditService) *AdminService {
	return &AdminService{db: db, creds: creds, codes: codes, audit: audit}
}

// UserEdit lists the fields an admin may change; nil fields are left alone.
type UserEdit struct {
	Username *string
	Email    *string
	IsActive *bool
	IsAdmin  *bool
}

// ListUsers returns all users, newest first. A non-empty search term keeps
// only users whose username or e-mail contains it, ignoring case.
func (s *AdminService) ListUsers(ctx context.Context, actor *Identity, search string) ([]models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		pattern := "%" + term + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	users := make([]models.User, 0)
	if err := query.Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a specific user by ID
func (s *AdminService) GetUser(ctx context.Context, actor *Identity, id uint) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.creds.GetUser(ctx, id)
}

// SetBlocked deactivates (block=true) or reactivates a user. Blocking takes
// effect on the target's next request since sessions re-check the flag.
func (s *AdminService) SetBlocked(ctx context.Context, actor *Identity, id uint, block bool, client ClientInfo) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if block && actor.UserID() == id {
		return nil, ErrSelfBlockForbidden
	}

	user, err := s.creds.SetActive(ctx, id, !block)
	if err != nil {
		return nil, err
	}

	action := ActionAdminUnblock
	if block {
		action = ActionAdminBlock
	}
	s.record(ctx, actor, action, user, client, nil)
	return user, nil
}

// SetAdmin promotes or demotes a user.
func (s *AdminService) SetAdmin(ctx context.Context, actor *Identity, id uint, admin bool, client ClientInfo) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if !admin && actor.UserID() == id {
		return nil, ErrSelfDemoteForbidden
	}

	user, err := s.creds.SetAdmin(ctx, id, admin)
	if err != nil {
		return nil, err
	}

	action := ActionAdminRemoveAdmin
	if admin {
		action = ActionAdminMakeAdmin
	}
	s.record(ctx, actor, action, user, client, nil)
	return user, nil
}

// ResetPassword sets a new password for the target, generating one when
// newPassword is empty, and returns the plaintext once.
func (s *AdminService) ResetPassword(ctx context.Context, actor *Identity, id uint, newPassword string, client ClientInfo) (string, error) {
	if err := RequireAdmin(actor); err != nil {
		return "", err
	}

	target, password, err := s.creds.ResetPassword(ctx, id, newPassword)
	if err != nil {
		return "", err
	}

	s.record(ctx, actor, ActionAdminResetPass, target, client, map[string]any{
		"generated": newPassword == "",
	})
	return password, nil
}

// UpdateUser applies an admin edit. Admins cannot deactivate or demote
// themselves through it.
func (s *AdminService) UpdateUser(ctx context.Context, actor *Identity, id uint, edit UserEdit, client ClientInfo) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.UserID() == id {
		if edit.IsActive != nil && !*edit.IsActive {
			return nil, ErrSelfBlockForbidden
		}
		if edit.IsAdmin != nil && !*edit.IsAdmin {
			return nil, ErrSelfDemoteForbidden
		}
	}

	user, changed, err := s.creds.UpdateProfile(ctx, id, ProfileUpdate{Username: edit.Username, Email: edit.Email})
	if err != nil {
		return nil, err
	}
	if edit.IsActive != nil && *edit.IsActive != user.IsActive {
		if user, err = s.creds.SetActive(ctx, id, *edit.IsActive); err != nil {
			return nil, err
		}
		changed = append(changed, "is_active")
	}
	if edit.IsAdmin != nil && *edit.IsAdmin != user.IsAdmin {
		if user, err = s.creds.SetAdmin(ctx, id, *edit.IsAdmin); err != nil {
			return nil, err
		}
		changed = append(changed, "is_admin")
	}

	if len(changed) > 0 {
		s.record(ctx, actor, ActionAdminUpdateUser, user, client, map[string]any{"updated_fields": changed})
	}
	return user, nil
}

// DeleteUser removes a user other than the acting admin.
func (s *AdminService) DeleteUser(ctx context.Context, actor *Identity, id uint, client ClientInfo) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}

	deleted, err := s.creds.Delete(ctx, actor.UserID(), id)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"admin_id": actor.UserID(), "user_id": id}).Info("user deleted")
	s.record(ctx, actor, ActionAdminDeleteUser, deleted, client, nil)
	return nil
}

// IssueCode creates a signup code valid for expiresInDays.
func (s *AdminService) IssueCode(ctx context.Context, actor *Identity, expiresInDays int, client ClientInfo) (*SignupCodeView, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	code, err := s.codes.Issue(ctx, expiresInDays)
	if err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actor.UserID(), ActionAdminCreateCode, map[string]any{
		"code_id":         code.ID,
		"expires_in_days": expiresInDays,
	}, client)
	return code, nil
}

// ListCodes returns every signup code, newest first.
func (s *AdminService) ListCodes(ctx context.Context, actor *Identity) ([]SignupCodeView, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.codes.List(ctx)
}

func (s *AdminService) record(ctx context.Context, actor *Identity, action string, target *models.User, client ClientInfo, extra map[string]any) {
	details := map[string]any{"target_user_id": target.ID}
	if target.Username != "" {
		details["target_username"] = target.Username
	}
	for k, v := range extra {
		details[k] = v
	}
	s.audit.RecordAction(ctx, actor.UserID(), action, details, client)
}
