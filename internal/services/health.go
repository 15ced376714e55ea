package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

// HealthReport is informational; the endpoint serving it always answers.
type HealthReport struct {
	Status        string    `json:"status"`
	Database      string    `json:"database"`
	SessionStore  string    `json:"session_store"`
	AuditFailures uint64    `json:"audit_failures"`
	Time          time.Time `json:"time"`
}

type HealthService struct {
	db    *gorm.DB
	store SessionStore
	audit *AuditService
}

func NewHealthService(db *gorm.DB, store SessionStore, audit *AuditService) *HealthService {
	return &HealthService{db: db, store: store, audit: audit}
}

// Check pings the database and the session store.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	report := HealthReport{
		Status:       "ok",
		Database:     "ok",
		SessionStore: "ok",
		Time:         time.Now().UTC(),
	}

	if err := h.pingDB(ctx); err != nil {
		report.Status = "degraded"
		report.Database = err.Error()
	}
	if err := h.store.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.SessionStore = err.Error()
	}
	if h.audit != nil {
		report.AuditFailures = h.audit.Failures()
	}
	return report
}

func (h *HealthService) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
