package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scout/scan"
)

// RegisterHealthRoutes registers the health check endpoint.
func RegisterHealthRoutes(r *gin.Engine, manager *scan.Manager) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"active_tasks": len(manager.ActiveTasks()),
		})
	})
}
