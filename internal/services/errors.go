package services

import "errors"

// Validation failures.
var (
	ErrMissingFields     = errors.New("required fields are missing")
	ErrWeakPassword      = errors.New("password does not meet requirements")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrUsernameTooShort  = errors.New("username must be at least 3 characters long")
	ErrInvalidSearchType = errors.New("invalid search type")
	ErrInvalidExpiry     = errors.New("expires_in_days must be between 1 and 365")
	ErrInvalidExportType = errors.New("type must be one of all, searches, actions, logins")
)

// Conflicts on unique identifiers.
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
)

// Credential and session failures.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrBadPassword          = errors.New("invalid username or password")
	ErrAccountInactive      = errors.New("account is disabled")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrUnauthorized         = errors.New("authentication required")
	ErrForbidden            = errors.New("admin access required")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidSessionToken  = errors.New("invalid session token")
)

// Admin actions an admin may not apply to their own account.
var (
	ErrSelfDeleteForbidden = errors.New("cannot delete your own account")
	ErrSelfBlockForbidden  = errors.New("cannot block or deactivate your own account")
	ErrSelfDemoteForbidden = errors.New("cannot remove admin privileges from your own account")
)

// Signup code redemption failures.
var (
	ErrCodeNotFound    = errors.New("signup code not found")
	ErrCodeAlreadyUsed = errors.New("signup code already used")
	ErrCodeExpired     = errors.New("signup code expired")
)
