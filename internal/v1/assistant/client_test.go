package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInference stands in for the OpenRouter API.
func fakeInference(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func completionReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "gen-1",
			"model": "openrouter/free",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}
}

func TestChat_ReturnsModelReply(t *testing.T) {
	var gotAuth, gotTitle string
	var gotReq chatRequest
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		completionReply("You should rest and stay hydrated.")(w, r)
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	reply, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "I have a headache"}})

	require.NoError(t, err)
	assert.Equal(t, "You should rest and stay hydrated.", reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "MediBot-AI", gotTitle)
	assert.Equal(t, "openrouter/free", gotReq.Model)

	// System prompt prepended automatically.
	require.NotEmpty(t, gotReq.Messages)
	assert.Equal(t, RoleSystem, gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, "MediBot AI")
}

func TestChat_ExistingSystemMessageNotDuplicated(t *testing.T) {
	var gotReq chatRequest
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		completionReply("ok")(w, r)
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	_, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "custom system"},
		{Role: RoleUser, Content: "hi"},
	})

	require.NoError(t, err)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "custom system", gotReq.Messages[0].Content)
}

func TestChat_MissingAPIKey(t *testing.T) {
	c := NewClient("http://unused", "", "openrouter/free")

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestChat_UpstreamErrorSurfaces(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestChat_NoChoicesIsError(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "choices": []any{}})
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestChat_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	for i := 0; i < 5; i++ {
		_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
		assert.Error(t, err)
	}

	assert.False(t, c.Healthy())
}

func TestRecommendSpecialties_ParsesValidatedList(t *testing.T) {
	srv := fakeInference(t, completionReply(`["Cardiology", "Internal Medicine"]`))

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	got := c.RecommendSpecialties(context.Background(), []Message{{Role: RoleUser, Content: "chest pain"}})

	assert.Equal(t, []string{"Cardiology", "Internal Medicine"}, got)
}

func TestRecommendSpecialties_StripsMarkdownFences(t *testing.T) {
	srv := fakeInference(t, completionReply("```json\n[\"Dermatology\"]\n```"))

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	got := c.RecommendSpecialties(context.Background(), []Message{{Role: RoleUser, Content: "rash"}})

	assert.Equal(t, []string{"Dermatology"}, got)
}

func TestRecommendSpecialties_FiltersInventedSpecialties(t *testing.T) {
	srv := fakeInference(t, completionReply(`["Cardiology", "Wizardry"]`))

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	got := c.RecommendSpecialties(context.Background(), []Message{{Role: RoleUser, Content: "chest pain"}})

	assert.Equal(t, []string{"Cardiology"}, got)
}

func TestRecommendSpecialties_FallbackOnGarbage(t *testing.T) {
	srv := fakeInference(t, completionReply("I think you should see a cardiologist."))

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	got := c.RecommendSpecialties(context.Background(), []Message{{Role: RoleUser, Content: "chest pain"}})

	assert.Equal(t, []string{"General Practitioner", "Family Medicine"}, got)
}

func TestRecommendSpecialties_FallbackOnUpstreamError(t *testing.T) {
	srv := fakeInference(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(srv.URL, "test-key", "openrouter/free")
	got := c.RecommendSpecialties(context.Background(), []Message{{Role: RoleUser, Content: "chest pain"}})

	assert.Equal(t, []string{"General Practitioner", "Family Medicine"}, got)
}
