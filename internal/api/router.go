// Package api wires the gin router for cmd/statusapi, a thin adapter over
// internal/service with no pipeline logic of its own, per §1's "thin HTTP
// adapter" design note.
package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"statsingest/internal/api/handler"
	"statsingest/internal/service"
)

// SetupRouter configures all status-API routes.
func SetupRouter(runs *service.RunService) *gin.Engine {
	router := gin.Default()

	h := handler.NewStatusHandler(runs)

	router.GET("/health", h.Health)
	router.GET("/runs/:run_id", h.GetRun)
	router.GET("/users/:user_id/statistics", h.GetUserStatistics)

	// Available at http://localhost:8080/swagger/index.html
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
