package api

import (
	"github.com/gin-gonic/gin"

	"scout/scan"
)

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(manager *scan.Manager) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	// Register resource routers
	RegisterScanRoutes(r, manager)
	RegisterHealthRoutes(r, manager)
	return r
}
