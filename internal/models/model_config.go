package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelConfig is one configuration for calling a specific AI backend.
// Multiple configs may share a ProviderID; the enabled one with the highest
// priority wins at resolution time.
type ModelConfig struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"` // adapter key, e.g. "openai"
	ModelName  string    `db:"model_name" json:"model_name"`   // display model, e.g. "gpt-4o"
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	APISecret  string    `db:"api_secret" json:"-"` // upstream credential, never returned in cleartext
	MaxTokens  int       `db:"max_tokens" json:"max_tokens"`
	// Temperature is the sampling temperature passed to the provider, 0.0-2.0.
	Temperature float64 `db:"temperature" json:"temperature"`
	Priority    int     `db:"priority" json:"priority"`
	Enabled     bool    `db:"enabled" json:"enabled"`

	// Pricing, per 1K tokens.
	CostPer1KPromptTokens     float64 `db:"cost_per_1k_prompt_tokens" json:"cost_per_1k_prompt_tokens"`
	CostPer1KCompletionTokens float64 `db:"cost_per_1k_completion_tokens" json:"cost_per_1k_completion_tokens"`

	Remark    string    `db:"remark" json:"remark,omitempty"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SecretPreview returns a truncated view of the upstream credential, safe for
// admin listings and logs.
func (c *ModelConfig) SecretPreview() string {
	const visible = 6
	if len(c.APISecret) <= visible {
		return "******"
	}
	return c.APISecret[:visible] + "******"
}
