package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"aiconsole/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultCodeExpiryDays = 7
	maxCodeExpiryDays     = 365
	codeBytes             = 16
)

// SignupCodeService issues and redeems single-use registration codes.
type SignupCodeService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSignupCodeService(db *gorm.DB) *SignupCodeService {
	return &SignupCodeService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SignupCodeView is a signup code with its derived status.
type SignupCodeView struct {
	models.SignupCode
	IsUsed bool              `json:"is_used"`
	Status models.CodeStatus `json:"status"`
}

func (s *SignupCodeService) view(code models.SignupCode, now time.Time) SignupCodeView {
	status := code.Status(now)
	return SignupCodeView{SignupCode: code, IsUsed: status == models.CodeUsed, Status: status}
}

// Issue creates a code that expires expiresInDays from now.
func (s *SignupCodeService) Issue(ctx context.Context, expiresInDays int) (*SignupCodeView, error) {
	if expiresInDays < 1 || expiresInDays > maxCodeExpiryDays {
		return nil, ErrInvalidExpiry
	}

	raw := make([]byte, codeBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate signup code: %w", err)
	}

	now := s.now()
	code := models.SignupCode{
		Code:      hex.EncodeToString(raw),
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, expiresInDays),
	}
	if err := s.db.WithContext(ctx).Create(&code).Error; err != nil {
		return nil, err
	}

	v := s.view(code, now)
	return &v, nil
}

// List returns every code, newest first, with status computed at call time.
func (s *SignupCodeService) List(ctx context.Context) ([]SignupCodeView, error) {
	var codes []models.SignupCode
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&codes).Error; err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]SignupCodeView, 0, len(codes))
	for _, c := range codes {
		out = append(out, s.view(c, now))
	}
	return out, nil
}

// Redeem marks the code used by userID in its own transaction.
func (s *SignupCodeService) Redeem(ctx context.Context, code string, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.lookupRedeemable(tx, code)
		if err != nil {
			return err
		}
		return s.markUsed(tx, found.ID, userID)
	})
}

// lookupRedeemable loads the code and checks it is neither used nor expired.
func (s *SignupCodeService) lookupRedeemable(tx *gorm.DB, code string) (*models.SignupCode, error) {
	if code == "" {
		return nil, ErrCodeNotFound
	}

	var found models.SignupCode
	if err := tx.Where("code = ?", code).First(&found).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	switch found.Status(s.now()) {
	case models.CodeUsed:
		return nil, ErrCodeAlreadyUsed
	case models.CodeExpired:
		return nil, ErrCodeExpired
	}
	return &found, nil
}

// markUsed is the compare-and-swap: only an unused, unexpired row is
// updated, so of two racing redemptions exactly one affects a row.
func (s *SignupCodeService) markUsed(tx *gorm.DB, codeID, userID uint) error {
	now := s.now()
	res := tx.Model(&models.SignupCode{}).
		Where("id = ? AND used_by_user_id IS NULL AND used_at IS NULL AND expires_at > ?", codeID, now).
		Updates(map[string]any{"used_by_user_id": userID, "used_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCodeAlreadyUsed
	}
	return nil
}
