package models

import (
	"time"

	"github.com/google/uuid"
)

// Usage record outcome values.
const (
	UsageOutcomeFailure = 0
	UsageOutcomeSuccess = 1
)

// UsageRecord is one append-only ledger entry for an admitted request.
// Records are created exactly once per admitted attempt and never mutated.
type UsageRecord struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RequestID  string    `db:"request_id" json:"request_id"`
	APIKeyID   uuid.UUID `db:"api_key_id" json:"api_key_id"`
	KeyValue   string    `db:"key_value" json:"key_value"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	ModelName  string    `db:"model_name" json:"model_name"`

	InputText string `db:"input_text" json:"input_text"`
	OutputXML string `db:"output_xml" json:"output_xml,omitempty"`

	PromptTokens     int     `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int     `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int     `db:"total_tokens" json:"total_tokens"`
	Cost             float64 `db:"cost" json:"cost"`
	ResponseTimeMS   int64   `db:"response_time_ms" json:"response_time_ms"`

	Outcome      int    `db:"outcome" json:"outcome"` // UsageOutcomeSuccess or UsageOutcomeFailure
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`

	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
