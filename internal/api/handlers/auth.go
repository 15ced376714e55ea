package handlers

import (
	"errors"
	"net/http"
	"time"

	"aiconsole/internal/config"
	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	registration *services.RegistrationService
	sessions     *services.SessionService
	creds        *services.CredentialService
	audit        *services.AuditService
	cookieName   string
	cookieSecure bool
}

func NewAuthHandler(svc *services.Container, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		registration: svc.Registration,
		sessions:     svc.Sessions,
		creds:        svc.Credentials,
		audit:        svc.Audit,
		cookieName:   cfg.Session.CookieName,
		cookieSecure: cfg.Session.CookieSecure,
	}
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SignupCode string `json:"signup_code"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Register creates an account with a signup code
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.registration.Register(c.Request.Context(), services.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		SignupCode: req.SignupCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "user": user})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	result, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password, clientInfo(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountInactive):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is disabled"})
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrBadPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		default:
			respondError(c, err)
		}
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"user":       result.User,
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	id := identity(c)
	if err := h.sessions.Logout(c.Request.Context(), id.SessionID); err != nil {
		respondError(c, err)
		return
	}

	h.audit.RecordAction(c.Request.Context(), id.UserID(), services.ActionLogout, nil, clientInfo(c))
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Check reports whether the caller holds a valid session
func (h *AuthHandler) Check(c *gin.Context) {
	id := identity(c)
	if id == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": id.User})
}

// GetProfile returns current user information
func (h *AuthHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": identity(c).User})
}

// UpdateProfile changes the caller's username and/or e-mail
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id := identity(c)
	user, changed, err := h.creds.UpdateProfile(c.Request.Context(), id.UserID(), services.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if len(changed) > 0 {
		h.audit.RecordAction(c.Request.Context(), id.UserID(), services.ActionProfileUpdate,
			map[string]any{"updated_fields": changed}, clientInfo(c))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

// ChangePassword replaces the caller's password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current and new password are required"})
		return
	}

	id := identity(c)
	if err := h.creds.ChangePassword(c.Request.Context(), id.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	h.audit.RecordAction(c.Request.Context(), id.UserID(), services.ActionPasswordChange, nil, clientInfo(c))
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, maxAge, "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.cookieSecure, true)
}
