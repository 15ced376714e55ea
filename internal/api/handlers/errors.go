package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrBadPassword),
		errors.Is(err, services.ErrAccountInactive):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrDuplicateUsername),
		errors.Is(err, services.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, services.ErrCodeNotFound),
		errors.Is(err, services.ErrCodeAlreadyUsed),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrUsernameTooShort),
		errors.Is(err, services.ErrInvalidSearchType),
		errors.Is(err, services.ErrInvalidExpiry),
		errors.Is(err, services.ErrInvalidExportType),
		errors.Is(err, services.ErrWrongCurrentPassword),
		errors.Is(err, services.ErrSelfDeleteForbidden),
		errors.Is(err, services.ErrSelfBlockForbidden),
		errors.Is(err, services.ErrSelfDemoteForbidden):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": msg}. Internal errors are logged and their
// message is not sent to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondUserError treats a missing user as 404 rather than a failed login.
func respondUserError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	respondError(c, err)
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

func identity(c *gin.Context) *services.Identity {
	return services.IdentityFromContext(c.Request.Context())
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
