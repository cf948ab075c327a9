package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowchart_gateway/internal/models"
)

func testModelConfig(endpoint string) *models.ModelConfig {
	return &models.ModelConfig{
		ProviderID:  "openai",
		ModelName:   "gpt-4o-mini",
		Endpoint:    endpoint,
		APISecret:   "sk-test",
		MaxTokens:   4096,
		Temperature: 0.2,
	}
}

func TestOpenAIAdapter_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful generation", func(t *testing.T) {
		const xml = `<mxGraphModel><root></root></mxGraphModel>`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gpt-4o-mini", req["model"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": xml}},
				},
				"usage": map[string]int{
					"prompt_tokens":     120,
					"completion_tokens": 340,
					"total_tokens":      460,
				},
			})
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		result, err := adapter.Generate(ctx, "order fulfillment flow", testModelConfig(server.URL))
		require.NoError(t, err)

		assert.Equal(t, xml, result.ArtifactXML)
		assert.Equal(t, 120, result.PromptTokens)
		assert.Equal(t, 340, result.CompletionTokens)
		assert.Equal(t, 460, result.TotalTokens)
		assert.GreaterOrEqual(t, result.LatencyMillis, int64(0))
	})

	t.Run("strips code fences from content", func(t *testing.T) {
		const xml = `<mxGraphModel/>`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": "```xml\n" + xml + "\n```"}},
				},
			})
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		result, err := adapter.Generate(ctx, "simple flow", testModelConfig(server.URL))
		require.NoError(t, err)
		assert.Equal(t, xml, result.ArtifactXML)
	})

	t.Run("missing usage defaults to zero tokens", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": "<mxGraphModel/>"}},
				},
			})
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		result, err := adapter.Generate(ctx, "simple flow", testModelConfig(server.URL))
		require.NoError(t, err)
		assert.Zero(t, result.PromptTokens)
		assert.Zero(t, result.CompletionTokens)
		assert.Zero(t, result.TotalTokens)
	})

	t.Run("non-200 response becomes ProviderError with status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limited"}}`))
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		_, err := adapter.Generate(ctx, "simple flow", testModelConfig(server.URL))
		require.Error(t, err)

		var provErr *ProviderError
		require.True(t, errors.As(err, &provErr))
		assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
		assert.Contains(t, provErr.Message, "rate limited")
	})

	t.Run("empty artifact is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": "```\n```"}},
				},
			})
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		_, err := adapter.Generate(ctx, "simple flow", testModelConfig(server.URL))
		require.Error(t, err)

		var provErr *ProviderError
		require.True(t, errors.As(err, &provErr))
	})

	t.Run("no choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
		}))
		defer server.Close()

		adapter := NewOpenAIAdapter(5 * time.Second)
		_, err := adapter.Generate(ctx, "simple flow", testModelConfig(server.URL))
		require.Error(t, err)
	})

	t.Run("unreachable endpoint is a ProviderError without status", func(t *testing.T) {
		adapter := NewOpenAIAdapter(time.Second)
		_, err := adapter.Generate(ctx, "simple flow", testModelConfig("http://127.0.0.1:1"))
		require.Error(t, err)

		var provErr *ProviderError
		require.True(t, errors.As(err, &provErr))
		assert.Zero(t, provErr.StatusCode)
	})
}
