package models

import (
	"time"

	"gorm.io/datatypes"
)

type SearchType string

const (
	SearchChat         SearchType = "chat"
	SearchCode         SearchType = "code"
	SearchDocument     SearchType = "document"
	SearchImageGen     SearchType = "image_gen"
	SearchImageAnalyze SearchType = "image_analyze"
)

// Valid reports whether t is one of the known search kinds.
func (t SearchType) Valid() bool {
	switch t {
	case SearchChat, SearchCode, SearchDocument, SearchImageGen, SearchImageAnalyze:
		return true
	}
	return false
}

// Login failure reasons stored on LoginLog.FailureReason.
const (
	FailureUserNotFound    = "user_not_found"
	FailureBadPassword     = "bad_password"
	FailureAccountInactive = "account_inactive"
	FailureInternalError   = "internal_error"
)

// LoginLog records one login attempt. UserID is nil when the attempted name
// matched no account.
type LoginLog struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	UserID            *uint     `json:"user_id" gorm:"index"`
	UsernameAttempted string    `json:"username_attempted" gorm:"type:varchar(120);not null"`
	IPAddress         string    `json:"ip_address" gorm:"type:varchar(45);not null"`
	UserAgent         string    `json:"user_agent" gorm:"type:varchar(500)"`
	LoginTime         time.Time `json:"login_time" gorm:"not null;index"`
	Success           bool      `json:"success" gorm:"not null"`
	FailureReason     *string   `json:"failure_reason" gorm:"type:varchar(100)"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
}

type SearchLog struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	UserID       uint       `json:"user_id" gorm:"not null;index"`
	SearchType   SearchType `json:"search_type" gorm:"type:varchar(50);not null;index"`
	Query        string     `json:"query" gorm:"type:text;not null"`
	Response     string     `json:"response" gorm:"type:text"`
	ResponseTime float64    `json:"response_time"`
	Timestamp    time.Time  `json:"timestamp" gorm:"not null;index"`
	IPAddress    string     `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent    string     `json:"user_agent" gorm:"type:varchar(500)"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type UserAction struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	UserID     uint              `json:"user_id" gorm:"not null;index"`
	ActionType string            `json:"action_type" gorm:"type:varchar(50);not null;index"`
	Details    datatypes.JSONMap `json:"details" gorm:"type:json"`
	Timestamp  time.Time         `json:"timestamp" gorm:"not null;index"`
	IPAddress  string            `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string            `json:"user_agent" gorm:"type:varchar(500)"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
