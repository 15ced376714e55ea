package services

import (
	"aiconsole/internal/config"

	"gorm.io/gorm"
)

// Container holds the wired services for one running server.
type Container struct {
	Credentials  *CredentialService
	SignupCodes  *SignupCodeService
	Registration *RegistrationService
	Sessions     *SessionService
	Audit        *AuditService
	Stats        *StatsService
	Admin        *AdminService
	Health       *HealthService
}

// NewContainer wires every service over db and the given session store.
func NewContainer(cfg *config.Config, db *gorm.DB, store SessionStore) *Container {
	creds := NewCredentialService(db, cfg)
	codes := NewSignupCodeService(db)
	audit := NewAuditService(db, cfg)

	return &Container{
		Credentials:  creds,
		SignupCodes:  codes,
		Registration: NewRegistrationService(db, creds, codes),
		Sessions:     NewSessionService(cfg, creds, audit, store),
		Audit:        audit,
		Stats:        NewStatsService(db, cfg),
		Admin:        NewAdminService(db, creds, codes, audit),
		Health:       NewHealthService(db, store, audit),
	}
}
