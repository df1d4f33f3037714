// Package handler holds the gin handlers backing cmd/statusapi, translating
// HTTP requests into calls on internal/service and business errors into
// status codes, in the style of the teacher's handler package.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"statsingest/internal/errs"
	"statsingest/internal/service"
)

// StatusHandler handles run and user statistics queries.
type StatusHandler struct {
	runs *service.RunService
}

func NewStatusHandler(runs *service.RunService) *StatusHandler {
	return &StatusHandler{runs: runs}
}

// GetRun retrieves the current state of a run.
// GET /runs/:run_id
func (h *StatusHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id is required"})
		return
	}

	result, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserStatistics retrieves a user's current login/post counters.
// GET /users/:user_id/statistics
func (h *StatusHandler) GetUserStatistics(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	result, err := h.runs.GetUserStatistics(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Health returns the health status of the API.
// GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// writeError maps a classified error onto an HTTP status: business errors
// are client-facing (404 for not-found codes, 400 otherwise), system and
// infrastructure errors are server-side.
func writeError(c *gin.Context, err error) {
	var classified errs.Classified
	if !errors.As(err, &classified) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch classified.Taxon() {
	case errs.TaxonBusiness:
		status = http.StatusBadRequest
		switch classified.Code() {
		case "USER_NOT_FOUND", "RUN_NOT_FOUND":
			status = http.StatusNotFound
		}
	case errs.TaxonInfrastructure:
		status = http.StatusServiceUnavailable
	case errs.TaxonSystem:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": classified.Error(), "code": classified.Code()})
}
