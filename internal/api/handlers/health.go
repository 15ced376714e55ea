package handlers

import (
	"net/http"

	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	health *services.HealthService
}

func NewHealthHandler(svc *services.Container) *HealthHandler {
	return &HealthHandler{health: svc.Health}
}

// Health always answers 200; degraded dependencies are reported in the body.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Check(c.Request.Context()))
}
