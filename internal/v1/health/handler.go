// Package health exposes Kubernetes-style liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/bus"
	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
)

// AssistantChecker reports whether the inference dependency is usable.
// Implemented by the assistant client via its circuit breaker state.
type AssistantChecker interface {
	Healthy() bool
}

// Handler manages health check endpoints
type Handler struct {
	redisService *bus.Service
	assistant    AssistantChecker
}

// NewHandler creates a new health check handler. Both dependencies are
// optional: a nil bus means single-instance mode, a nil assistant means
// the inference endpoint is not configured.
func NewHandler(redisService *bus.Service, assistant AssistantChecker) *Handler {
	return &Handler{
		redisService: redisService,
		assistant:    assistant,
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy, 503 otherwise.
// The assistant is reported but never gates readiness: it degrades to soft
// error replies, so a down inference endpoint must not take the relay out
// of rotation.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	if h.assistant != nil {
		if h.assistant.Healthy() {
			checks["assistant"] = "healthy"
		} else {
			checks["assistant"] = "degraded"
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

// checkRedis verifies Redis connectivity using PING command
func (h *Handler) checkRedis(ctx context.Context) string {
	// Single-instance mode runs without Redis; that is healthy.
	if h.redisService == nil {
		return "healthy"
	}

	if err := h.redisService.Ping(ctx); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}
