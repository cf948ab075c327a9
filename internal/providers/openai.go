package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/utils"
)

// OpenAIAdapter calls OpenAI-compatible chat completion endpoints.
type OpenAIAdapter struct {
	client *http.Client
	logger *utils.Logger
}

// NewOpenAIAdapter creates an adapter with a bounded request timeout.
func NewOpenAIAdapter(timeout time.Duration) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: utils.NewLogger("openai"),
	}
}

// ProviderID returns the registry key for this adapter.
func (a *OpenAIAdapter) ProviderID() string {
	return "openai"
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate performs a single chat completion call. Token counts default to
// zero when the upstream response omits usage data.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, cfg *models.ModelConfig) (*GenerationResult, error) {
	start := time.Now()

	body, err := json.Marshal(openAIRequest{
		Model: cfg.ModelName,
		Messages: []openAIMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: BuildUserPrompt(prompt)},
		},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, &ProviderError{Message: "failed to marshal request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Message: "failed to create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APISecret)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Message: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("OpenAI call failed", "status", resp.StatusCode, "model", cfg.ModelName)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: truncateBody(string(respBody))}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "failed to parse response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "response contains no choices"}
	}

	artifact := CleanArtifact(parsed.Choices[0].Message.Content)
	if artifact == "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "model returned an empty artifact"}
	}

	a.logger.Info("OpenAI call succeeded",
		"model", cfg.ModelName,
		"tokens", parsed.Usage.TotalTokens,
		"latency_ms", latency.Milliseconds())

	return &GenerationResult{
		ArtifactXML:      artifact,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		LatencyMillis:    latency.Milliseconds(),
	}, nil
}
