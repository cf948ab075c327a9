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

const anthropicVersion = "2023-06-01"

// AnthropicAdapter calls the Anthropic messages API.
type AnthropicAdapter struct {
	client *http.Client
	logger *utils.Logger
}

// NewAnthropicAdapter creates an adapter with a bounded request timeout.
func NewAnthropicAdapter(timeout time.Duration) *AnthropicAdapter {
	return &AnthropicAdapter{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: utils.NewLogger("anthropic"),
	}
}

// ProviderID returns the registry key for this adapter.
func (a *AnthropicAdapter) ProviderID() string {
	return "claude"
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate performs a single messages call. Token counts default to zero
// when the upstream response omits usage data.
func (a *AnthropicAdapter) Generate(ctx context.Context, prompt string, cfg *models.ModelConfig) (*GenerationResult, error) {
	start := time.Now()

	body, err := json.Marshal(anthropicRequest{
		Model:       cfg.ModelName,
		System:      SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: BuildUserPrompt(prompt)}},
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
	httpReq.Header.Set("x-api-key", cfg.APISecret)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

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
		a.logger.Error("Anthropic call failed", "status", resp.StatusCode, "model", cfg.ModelName)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: truncateBody(string(respBody))}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "failed to parse response: " + err.Error()}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	artifact := CleanArtifact(text)
	if artifact == "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "model returned an empty artifact"}
	}

	totalTokens := parsed.Usage.InputTokens + parsed.Usage.OutputTokens

	a.logger.Info("Anthropic call succeeded",
		"model", cfg.ModelName,
		"tokens", totalTokens,
		"latency_ms", latency.Milliseconds())

	return &GenerationResult{
		ArtifactXML:      artifact,
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		TotalTokens:      totalTokens,
		LatencyMillis:    latency.Milliseconds(),
	}, nil
}
