package services

import (
	"context"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/models"

	"gorm.io/gorm"
)

const defaultStatsDays = 30

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type CountStats struct {
	Total  int64       `json:"total"`
	ByType []TypeCount `json:"by_type"`
}

type LoginStats struct {
	TotalLogins      int64 `json:"total_logins"`
	SuccessfulLogins int64 `json:"successful_logins"`
	FailedLogins     int64 `json:"failed_logins"`
}

type Stats struct {
	SearchStats CountStats `json:"search_stats"`
	ActionStats CountStats `json:"action_stats"`
	LoginStats  LoginStats `json:"login_stats"`
	PeriodDays  int        `json:"period_days"`
}

// StatsService summarizes a user's activity over a trailing window.
type StatsService struct {
	db      *gorm.DB
	maxDays int
	now     func() time.Time
}

func NewStatsService(db *gorm.DB, cfg *config.Config) *StatsService {
	return &StatsService{
		db:      db,
		maxDays: cfg.Audit.MaxStatsDays,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WindowDays clamps a requested window to [1, max]; zero or negative means
// the default of 30 days.
func (s *StatsService) WindowDays(days int) int {
	if days <= 0 {
		days = defaultStatsDays
	}
	if s.maxDays > 0 && days > s.maxDays {
		days = s.maxDays
	}
	return days
}

// ComputeStats counts the user's searches, actions and login attempts with
// timestamps in [now-days, now]. Breakdowns are ordered by type name.
func (s *StatsService) ComputeStats(ctx context.Context, userID uint, days int) (*Stats, error) {
	days = s.WindowDays(days)
	until := s.now()
	since := until.AddDate(0, 0, -days)

	out := &Stats{PeriodDays: days}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out.SearchStats, err = countByType(tx.Model(&models.SearchLog{}), "search_type", userID, since, until)
		if err != nil {
			return err
		}
		out.ActionStats, err = countByType(tx.Model(&models.UserAction{}), "action_type", userID, since, until)
		if err != nil {
			return err
		}

		var rows []struct {
			Success bool
			Count   int64
		}
		err = tx.Model(&models.LoginLog{}).
			Select("success, COUNT(*) AS count").
			Where("user_id = ? AND login_time >= ? AND login_time <= ?", userID, since, until).
			Group("success").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Success {
				out.LoginStats.SuccessfulLogins += r.Count
			} else {
				out.LoginStats.FailedLogins += r.Count
			}
		}
		out.LoginStats.TotalLogins = out.LoginStats.SuccessfulLogins + out.LoginStats.FailedLogins
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func countByType(scope *gorm.DB, column string, userID uint, since, until time.Time) (CountStats, error) {
	byType := make([]TypeCount, 0)
	err := scope.
		Select(column+" AS type, COUNT(*) AS count").
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, since, until).
		Group(column).
		Order(column + " ASC").
		Scan(&byType).Error
	if err != nil {
		return CountStats{}, err
	}
	if byType == nil {
		byType = []TypeCount{}
	}

	var total int64
	for _, tc := range byType {
		total += tc.Count
	}
	return CountStats{Total: total, ByType: byType}, nil
}
