package providers

import (
	"context"
	"fmt"
	"strings"

	"flowchart_gateway/internal/models"
)

// GenerationResult is a normalized provider response for one generation call.
type GenerationResult struct {
	ArtifactXML      string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMillis    int64
}

// Adapter is implemented by each concrete AI backend. An adapter performs a
// single synchronous upstream call per Generate invocation; it never retries.
type Adapter interface {
	// ProviderID returns the identifier this adapter registers under.
	ProviderID() string

	// Generate turns a natural-language prompt into a diagram artifact using
	// the given model configuration. Failures are *ProviderError values.
	Generate(ctx context.Context, prompt string, cfg *models.ModelConfig) (*GenerationResult, error)
}

// ProviderError carries the upstream status and a truncated body. The
// message never includes upstream credentials.
type ProviderError struct {
	StatusCode int // 0 when the call failed before an HTTP status was received
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider call failed: status=%d: %s", e.StatusCode, e.Message)
	}
	return "provider call failed: " + e.Message
}

const errorBodyLimit = 500

// truncateBody bounds upstream error bodies before they land in errors/logs.
func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > errorBodyLimit {
		return body[:errorBodyLimit]
	}
	return body
}

// CleanArtifact strips markdown code-fence wrapping that models sometimes add
// around the XML despite instructions, and trims surrounding whitespace.
func CleanArtifact(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```xml") {
		content = content[len("```xml"):]
	} else if strings.HasPrefix(content, "```") {
		content = content[len("```"):]
	}
	if strings.HasSuffix(content, "```") {
		content = content[:len(content)-len("```")]
	}
	return strings.TrimSpace(content)
}
