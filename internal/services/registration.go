package services

import (
	"context"
	"strings"

	"aiconsole/internal/models"

	"gorm.io/gorm"
)

// RegistrationService creates accounts gated by a signup code.
type RegistrationService struct {
	db    *gorm.DB
	creds *CredentialService
	codes *SignupCodeService
}

func NewRegistrationService(db *gorm.DB, creds *CredentialService, codes *SignupCodeService) *RegistrationService {
	return &RegistrationService{db: db, creds: creds, codes: codes}
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	SignupCode string
}

// Register validates the input, then checks the code, creates the user and
// consumes the code in one transaction. If the code is lost to a concurrent
// registration the new user row is rolled back.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	code := strings.TrimSpace(in.SignupCode)
	if code == "" {
		return nil, ErrMissingFields
	}

	user, err := s.creds.newUser(in.Username, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.codes.lookupRedeemable(tx, code)
		if err != nil {
			return err
		}
		if err := s.creds.insertUser(tx, user); err != nil {
			return err
		}
		return s.codes.markUsed(tx, found.ID, user.ID)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
