package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantRouter(client *Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(client)
	r := gin.New()
	r.POST("/api/v1/assistant/chat", h.Chat)
	r.POST("/api/v1/assistant/specialties", h.Specialties)
	return r
}

func TestChatHandler_OK(t *testing.T) {
	srv := fakeInference(t, completionReply("Drink plenty of fluids."))
	r := assistantRouter(NewClient(srv.URL, "test-key", "openrouter/free"))

	body := `{"messages":[{"role":"user","content":"I have a cold"}]}`
	req, _ := http.NewRequest("POST", "/api/v1/assistant/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var got ChatResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "Drink plenty of fluids.", got.Reply)
	assert.False(t, got.Degraded)
}

func TestChatHandler_MissingMessages(t *testing.T) {
	srv := fakeInference(t, completionReply("unused"))
	r := assistantRouter(NewClient(srv.URL, "test-key", "openrouter/free"))

	req, _ := http.NewRequest("POST", "/api/v1/assistant/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatHandler_DegradesTo200(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r := assistantRouter(NewClient(srv.URL, "test-key", "openrouter/free"))

	body := `{"messages":[{"role":"user","content":"hello"}]}`
	req, _ := http.NewRequest("POST", "/api/v1/assistant/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	// Inference being down is not a relay error.
	assert.Equal(t, http.StatusOK, resp.Code)

	var got ChatResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.True(t, got.Degraded)
	assert.NotEmpty(t, got.Reply)
}

func TestSpecialtiesHandler_OK(t *testing.T) {
	srv := fakeInference(t, completionReply(`["Neurology"]`))
	r := assistantRouter(NewClient(srv.URL, "test-key", "openrouter/free"))

	body := `{"messages":[{"role":"user","content":"migraines"}]}`
	req, _ := http.NewRequest("POST", "/api/v1/assistant/specialties", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var got SpecialtiesResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, []string{"Neurology"}, got.Specialties)
}

func TestSpecialtiesHandler_FallbackWhenInferenceDown(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r := assistantRouter(NewClient(srv.URL, "test-key", "openrouter/free"))

	body := `{"messages":[{"role":"user","content":"unwell"}]}`
	req, _ := http.NewRequest("POST", "/api/v1/assistant/specialties", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var got SpecialtiesResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, []string{"General Practitioner", "Family Medicine"}, got.Specialties)
}
