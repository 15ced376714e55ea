package handlers

import (
	"net/http"

	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(svc *services.Container) *AdminHandler {
	return &AdminHandler{admin: svc.Admin}
}

type CreateSignupCodeRequest struct {
	ExpiresInDays *int `json:"expires_in_days"`
}

type UpdateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
}

type BlockUserRequest struct {
	Block *bool `json:"block"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}

// CreateSignupCode issues a new signup code
func (h *AdminHandler) CreateSignupCode(c *gin.Context) {
	var req CreateSignupCodeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	days := services.DefaultCodeExpiryDays
	if req.ExpiresInDays != nil {
		days = *req.ExpiresInDays
	}

	code, err := h.admin.IssueCode(c.Request.Context(), identity(c), days, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Signup code created", "code": code})
}

// GetSignupCodes lists all signup codes, newest first
func (h *AdminHandler) GetSignupCodes(c *gin.Context) {
	codes, err := h.admin.ListCodes(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

// GetUsers returns all users, optionally filtered by ?search=
func (h *AdminHandler) GetUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context(), identity(c), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser returns a specific user
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.admin.GetUser(c.Request.Context(), identity(c), id)
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser edits a user's profile and flags
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.admin.UpdateUser(c.Request.Context(), identity(c), id, services.UserEdit{
		Username: req.Username,
		Email:    req.Email,
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	}, clientInfo(c))
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

// DeleteUser deletes a user and their history
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), identity(c), id, clientInfo(c)); err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// BlockUser blocks ({"block": true}, the default) or unblocks a user
func (h *AdminHandler) BlockUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req BlockUserRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	block := req.Block == nil || *req.Block

	user, err := h.admin.SetBlocked(c.Request.Context(), identity(c), id, block, clientInfo(c))
	if err != nil {
		respondUserError(c, err)
		return
	}

	message := "User unblocked successfully"
	if block {
		message = "User blocked successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "user": user})
}

// ResetPassword sets or generates a new password for a user
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	password, err := h.admin.ResetPassword(c.Request.Context(), identity(c), id, req.NewPassword, clientInfo(c))
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully", "new_password": password})
}

// MakeAdmin grants admin privileges
func (h *AdminHandler) MakeAdmin(c *gin.Context) {
	h.setAdmin(c, true)
}

// RemoveAdmin revokes admin privileges
func (h *AdminHandler) RemoveAdmin(c *gin.Context) {
	h.setAdmin(c, false)
}

func (h *AdminHandler) setAdmin(c *gin.Context, admin bool) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.admin.SetAdmin(c.Request.Context(), identity(c), id, admin, clientInfo(c))
	if err != nil {
		respondUserError(c, err)
		return
	}

	message := "Admin privileges removed"
	if admin {
		message = "User promoted to admin"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "user": user})
}
