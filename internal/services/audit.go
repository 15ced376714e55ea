package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action types recorded by the application itself.
const (
	ActionLogout           = "logout"
	ActionPasswordChange   = "password_change"
	ActionProfileUpdate    = "profile_update"
	ActionDataExport       = "data_export"
	ActionAdminBlock       = "admin_block_user"
	ActionAdminUnblock     = "admin_unblock_user"
	ActionAdminMakeAdmin   = "admin_make_admin"
	ActionAdminRemoveAdmin = "admin_remove_admin"
	ActionAdminResetPass   = "admin_reset_password"
	ActionAdminUpdateUser  = "admin_update_user"
	ActionAdminDeleteUser  = "admin_delete_user"
	ActionAdminCreateCode  = "admin_create_signup_code"
)

// Export kinds accepted by AuditService.Export.
const (
	ExportAll      = "all"
	ExportSearches = "searches"
	ExportActions  = "actions"
	ExportLogins   = "logins"
)

// AuditService appends to and reads from the activity log. Writes are best
// effort: a failed or slow write is logged and counted, never returned to
// the caller.
type AuditService struct {
	db             *gorm.DB
	timeout        time.Duration
	defaultPerPage int
	maxPerPage     int
	failures       atomic.Uint64
	now            func() time.Time
}

func NewAuditService(db *gorm.DB, cfg *config.Config) *AuditService {
	return &AuditService{
		db:             db,
		timeout:        cfg.AuditTimeout(),
		defaultPerPage: cfg.Audit.DefaultPerPage,
		maxPerPage:     cfg.Audit.MaxPerPage,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Failures is the number of audit writes dropped since startup.
func (s *AuditService) Failures() uint64 {
	return s.failures.Load()
}

// LoginAttempt describes one call to the login operation.
type LoginAttempt struct {
	User     *models.User // nil when no account matched
	Username string
	Client   ClientInfo
	At       time.Time
	Success  bool
	Reason   string
}

// RecordLogin appends a login attempt.
func (s *AuditService) RecordLogin(ctx context.Context, a LoginAttempt) {
	entry := &models.LoginLog{
		UsernameAttempted: a.Username,
		IPAddress:         a.Client.IP,
		UserAgent:         a.Client.UserAgent,
		LoginTime:         a.At,
		Success:           a.Success,
	}
	if a.User != nil {
		id := a.User.ID
		entry.UserID = &id
	}
	if !a.Success && a.Reason != "" {
		reason := a.Reason
		entry.FailureReason = &reason
	}
	if entry.LoginTime.IsZero() {
		entry.LoginTime = s.now()
	}
	s.write(ctx, "login", entry)
}

// RecordSearch appends an AI query. It is called after the query finished,
// whether it succeeded or not.
func (s *AuditService) RecordSearch(ctx context.Context, userID uint, searchType models.SearchType, query, response string, elapsedSeconds float64, client ClientInfo) {
	if !searchType.Valid() {
		s.fail(fmt.Errorf("%w: %q", ErrInvalidSearchType, searchType), "search", log.Fields{"user_id": userID})
		return
	}
	s.write(ctx, "search", &models.SearchLog{
		UserID:       userID,
		SearchType:   searchType,
		Query:        query,
		Response:     response,
		ResponseTime: elapsedSeconds,
		Timestamp:    s.now(),
		IPAddress:    client.IP,
		UserAgent:    client.UserAgent,
	})
}

// RecordAction appends a generic user action with an optional payload.
func (s *AuditService) RecordAction(ctx context.Context, userID uint, actionType string, details map[string]any, client ClientInfo) {
	entry := &models.UserAction{
		UserID:     userID,
		ActionType: actionType,
		Timestamp:  s.now(),
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}
	if len(details) > 0 {
		entry.Details = datatypes.JSONMap(details)
	}
	s.write(ctx, "action", entry)
}

func (s *AuditService) write(ctx context.Context, kind string, entry any) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("panic: %v", r), kind, nil)
		}
	}()

	// The write outlives a cancelled request but never the audit timeout.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.db.WithContext(writeCtx).Create(entry).Error; err != nil {
		s.fail(err, kind, nil)
	}
}

func (s *AuditService) fail(err error, kind string, fields log.Fields) {
	s.failures.Add(1)
	entry := log.WithError(err).WithField("kind", kind)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error("audit: write failed")
}

// LogQuery selects one page of a user's log entries. Type filters by search
// type, action type, or for logins "success"/"failed".
type LogQuery struct {
	UserID  uint
	Type    string
	Page    int
	PerPage int
}

type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

func (s *AuditService) normalize(q LogQuery) LogQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = s.defaultPerPage
	}
	if q.PerPage > s.maxPerPage {
		q.PerPage = s.maxPerPage
	}
	q.Type = strings.TrimSpace(q.Type)
	return q
}

// paginate runs a most-recent-first page over the filtered query.
func paginate[T any](scope *gorm.DB, q LogQuery, timeColumn string) ([]T, Pagination, error) {
	scope = scope.Session(&gorm.Session{})

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		return nil, Pagination{}, err
	}

	rows := make([]T, 0, q.PerPage)
	err := scope.
		Order(timeColumn + " DESC").
		Order("id DESC").
		Offset((q.Page - 1) * q.PerPage).
		Limit(q.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, Pagination{}, err
	}
	if rows == nil {
		rows = []T{}
	}

	pages := int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	return rows, Pagination{
		Page:    q.Page,
		PerPage: q.PerPage,
		Total:   total,
		Pages:   pages,
		HasNext: q.Page < pages,
		HasPrev: q.Page > 1,
	}, nil
}

// Searches lists the user's AI queries.
func (s *AuditService) Searches(ctx context.Context, q LogQuery) ([]models.SearchLog, Pagination, error) {
	q = s.normalize(q)
	scope := s.db.WithContext(ctx).Model(&models.SearchLog{}).Where("user_id = ?", q.UserID)
	if q.Type != "" {
		scope = scope.Where("search_type = ?", q.Type)
	}
	return paginate[models.SearchLog](scope, q, "timestamp")
}

// Actions lists the user's recorded actions.
func (s *AuditService) Actions(ctx context.Context, q LogQuery) ([]models.UserAction, Pagination, error) {
	q = s.normalize(q)
	scope := s.db.WithContext(ctx).Model(&models.UserAction{}).Where("user_id = ?", q.UserID)
	if q.Type != "" {
		scope = scope.Where("action_type = ?", q.Type)
	}
	return paginate[models.UserAction](scope, q, "timestamp")
}

// Logins lists login attempts attributed to the user.
func (s *AuditService) Logins(ctx context.Context, q LogQuery) ([]models.LoginLog, Pagination, error) {
	q = s.normalize(q)
	scope := s.db.WithContext(ctx).Model(&models.LoginLog{}).Where("user_id = ?", q.UserID)
	switch q.Type {
	case "success":
		scope = scope.Where("success = ?", true)
	case "failed":
		scope = scope.Where("success = ?", false)
	}
	return paginate[models.LoginLog](scope, q, "login_time")
}

// Export is everything logged for one user, read in one transaction.
type Export struct {
	Kind      string
	User      *models.User
	Searches  []models.SearchLog
	Actions   []models.UserAction
	Logins    []models.LoginLog
	Timestamp time.Time
}

// Includes reports whether the export covers the given kind.
func (e *Export) Includes(kind string) bool {
	return e.Kind == ExportAll || e.Kind == kind
}

// Export snapshots the user's profile and requested logs, most recent first.
func (s *AuditService) Export(ctx context.Context, userID uint, kind string) (*Export, error) {
	switch kind {
	case "":
		kind = ExportAll
	case ExportAll, ExportSearches, ExportActions, ExportLogins:
	default:
		return nil, ErrInvalidExportType
	}

	out := &Export{
		Kind:      kind,
		Searches:  []models.SearchLog{},
		Actions:   []models.UserAction{},
		Logins:    []models.LoginLog{},
		Timestamp: s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		out.User = &user

		if out.Includes(ExportSearches) {
			if err := tx.Where("user_id = ?", userID).Order("timestamp DESC, id DESC").Find(&out.Searches).Error; err != nil {
				return err
			}
		}
		if out.Includes(ExportActions) {
			if err := tx.Where("user_id = ?", userID).Order("timestamp DESC, id DESC").Find(&out.Actions).Error; err != nil {
				return err
			}
		}
		if out.Includes(ExportLogins) {
			if err := tx.Where("user_id = ?", userID).Order("login_time DESC, id DESC").Find(&out.Logins).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
