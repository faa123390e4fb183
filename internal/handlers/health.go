package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/allocation-service/internal/optimizer"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Scenarios string `json:"scenarios"`
	Breaker   string `json:"exact_solver_breaker"`
}

// HealthCheck godoc
// @Summary Health check
// @Description Reports readiness of the scenario catalogue and the exact solver circuit breaker
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Scenarios: "loaded",
		Breaker:   optimizer.CircuitClosed.String(),
	}

	if reporter, ok := allocRunner.(optimizer.BreakerReporter); ok {
		response.Breaker = reporter.BreakerState().String()
		// An open breaker still serves greedy allocations.
		if response.Breaker != optimizer.CircuitClosed.String() {
			response.Status = "degraded"
		}
	}

	if allocRunner == nil || (warmupGate != nil && !warmupGate.IsReady()) {
		response.Status = "unavailable"
		response.Scenarios = "loading"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
