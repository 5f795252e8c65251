package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibridge/telehealth/backend/go/internal/v1/bus"
)

type stubAssistant struct {
	healthy bool
}

func (s *stubAssistant) Healthy() bool { return s.healthy }

func performRequest(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health/live", h.Liveness)
	r.GET("/health/ready", h.Readiness)

	req, _ := http.NewRequest("GET", path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestLiveness_AlwaysAlive(t *testing.T) {
	h := NewHandler(nil, nil)

	resp := performRequest(t, h, "/health/live")

	assert.Equal(t, http.StatusOK, resp.Code)

	var body LivenessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "alive", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestReadiness_SingleInstanceModeIsReady(t *testing.T) {
	h := NewHandler(nil, nil)

	resp := performRequest(t, h, "/health/ready")

	assert.Equal(t, http.StatusOK, resp.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "healthy", body.Checks["redis"])
}

func TestReadiness_WithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	svc, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)
	defer svc.Close()

	h := NewHandler(svc, nil)

	resp := performRequest(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReadiness_RedisDownIsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := bus.NewService(mr.Addr(), "")
	require.NoError(t, err)

	mr.Close()

	h := NewHandler(svc, nil)

	resp := performRequest(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["redis"])
}

func TestReadiness_AssistantDegradedDoesNotGate(t *testing.T) {
	h := NewHandler(nil, &stubAssistant{healthy: false})

	resp := performRequest(t, h, "/health/ready")

	assert.Equal(t, http.StatusOK, resp.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "degraded", body.Checks["assistant"])
}

func TestReadiness_AssistantHealthyReported(t *testing.T) {
	h := NewHandler(nil, &stubAssistant{healthy: true})

	resp := performRequest(t, h, "/health/ready")

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Checks["assistant"])
}
