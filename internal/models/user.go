package models

import (
	"time"
)

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"type:varchar(80);uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	IsAdmin      bool       `json:"is_admin" gorm:"not null;default:false"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"-"`
}

// Session is a server-side login session, used when sessions are persisted
// in the database instead of process memory or Redis.
type Session struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeStatus is derived from a signup code's columns and never stored.
type CodeStatus string

const (
	CodeActive  CodeStatus = "active"
	CodeUsed    CodeStatus = "used"
	CodeExpired CodeStatus = "expired"
)

type SignupCode struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Code         string     `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
	UsedByUserID *uint      `json:"used_by_user_id" gorm:"index"`
	UsedAt       *time.Time `json:"used_at"`

	UsedBy *User `json:"-" gorm:"foreignKey:UsedByUserID;constraint:OnDelete:SET NULL"`
}

// Status reports the code state at the given instant. A used code stays used
// even after its expiry passes, and even after the redeeming account is
// deleted (UsedAt survives the user reference being cleared).
func (c *SignupCode) Status(now time.Time) CodeStatus {
	switch {
	case c.UsedByUserID != nil || c.UsedAt != nil:
		return CodeUsed
	case !now.Before(c.ExpiresAt):
		return CodeExpired
	default:
		return CodeActive
	}
}
