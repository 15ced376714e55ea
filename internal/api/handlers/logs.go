package handlers

import (
	"net/http"

	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

type LogsHandler struct {
	audit *services.AuditService
	stats *services.StatsService
}

func NewLogsHandler(svc *services.Container) *LogsHandler {
	return &LogsHandler{audit: svc.Audit, stats: svc.Stats}
}

func logQuery(c *gin.Context) services.LogQuery {
	return services.LogQuery{
		UserID:  identity(c).UserID(),
		Type:    c.Query("type"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	}
}

// GetSearches returns the caller's AI queries, most recent first
func (h *LogsHandler) GetSearches(c *gin.Context) {
	rows, page, err := h.audit.Searches(c.Request.Context(), logQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": rows, "pagination": page})
}

// GetActions returns the caller's recorded actions, most recent first
func (h *LogsHandler) GetActions(c *gin.Context) {
	rows, page, err := h.audit.Actions(c.Request.Context(), logQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": rows, "pagination": page})
}

// GetLogins returns the caller's login attempts, most recent first
func (h *LogsHandler) GetLogins(c *gin.Context) {
	rows, page, err := h.audit.Logins(c.Request.Context(), logQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": rows, "pagination": page})
}

// GetStats summarizes the caller's activity over the last ?days days
func (h *LogsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.ComputeStats(c.Request.Context(), identity(c).UserID(), queryInt(c, "days"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export dumps the caller's profile and logs as JSON
func (h *LogsHandler) Export(c *gin.Context) {
	id := identity(c)
	export, err := h.audit.Export(c.Request.Context(), id.UserID(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"user":             export.User,
		"export_timestamp": export.Timestamp,
	}
	if export.Includes(services.ExportSearches) {
		body["searches"] = export.Searches
	}
	if export.Includes(services.ExportActions) {
		body["actions"] = export.Actions
	}
	if export.Includes(services.ExportLogins) {
		body["logins"] = export.Logins
	}

	h.audit.RecordAction(c.Request.Context(), id.UserID(), services.ActionDataExport,
		map[string]any{"type": export.Kind}, clientInfo(c))

	c.Header("Content-Disposition", `attachment; filename="export.json"`)
	c.JSON(http.StatusOK, body)
}
