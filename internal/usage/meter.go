package usage

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/providers"
	"flowchart_gateway/internal/queue"
	"flowchart_gateway/internal/utils"
)

// Truncation bounds for free-form fields before they hit the ledger.
const (
	MaxInputLen     = 100
	MaxArtifactLen  = 65535
	MaxErrorLen     = 1000
	MaxUserAgentLen = 512
)

const unknownValue = "unknown"

// enqueueTimeout bounds how long the request path may spend handing a
// record to the queue. Metering must never stall a response.
const enqueueTimeout = 100 * time.Millisecond

// Truncate cuts s to at most max runes. Truncating an already-truncated
// string is a no-op, so records can safely pass through more than once.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// round6 rounds to 6 decimal places.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// CalculateCost prices a request from its token counts and the model's
// per-1K rates. Each component is rounded to 6 decimals before summing,
// as is the final result.
func CalculateCost(promptTokens, completionTokens int, cfg *models.ModelConfig) float64 {
	if cfg == nil {
		return 0
	}
	promptCost := round6(float64(promptTokens) / 1000.0 * cfg.CostPer1KPromptTokens)
	completionCost := round6(float64(completionTokens) / 1000.0 * cfg.CostPer1KCompletionTokens)
	return round6(promptCost + completionCost)
}

// CallerMeta carries request metadata captured at the transport boundary.
type CallerMeta struct {
	IP        string
	UserAgent string
}

// Meter records generation outcomes to the usage queue. Recording is
// fire-and-forget: enqueue failures are logged and swallowed so that
// metering can never fail a request that already succeeded.
type Meter struct {
	queue  queue.Queue
	logger *utils.Logger
}

// NewMeter creates a usage meter backed by a queue
func NewMeter(q queue.Queue) *Meter {
	return &Meter{
		queue:  q,
		logger: utils.NewLogger("usage-meter"),
	}
}

// RecordSuccess enqueues a ledger entry for a completed generation.
func (m *Meter) RecordSuccess(ctx context.Context, key *models.APIKey, cfg *models.ModelConfig, requestID, input string, result *providers.GenerationResult, meta CallerMeta) {
	rec := m.baseRecord(key, cfg, requestID, input, meta)
	rec.Outcome = models.UsageOutcomeSuccess

	if result != nil {
		rec.OutputXML = Truncate(result.ArtifactXML, MaxArtifactLen)
		rec.PromptTokens = result.PromptTokens
		rec.CompletionTokens = result.CompletionTokens
		rec.TotalTokens = result.TotalTokens
		rec.ResponseTimeMS = result.LatencyMillis
		rec.Cost = CalculateCost(result.PromptTokens, result.CompletionTokens, cfg)
	}

	m.enqueue(ctx, rec)
}

// RecordFailure enqueues a ledger entry for a failed generation. The
// error detail is truncated; token counts and cost stay zero.
func (m *Meter) RecordFailure(ctx context.Context, key *models.APIKey, cfg *models.ModelConfig, requestID, input, errDetail string, latencyMillis int64, meta CallerMeta) {
	rec := m.baseRecord(key, cfg, requestID, input, meta)
	rec.Outcome = models.UsageOutcomeFailure
	rec.ErrorMessage = Truncate(errDetail, MaxErrorLen)
	rec.ResponseTimeMS = latencyMillis

	m.enqueue(ctx, rec)
}

func (m *Meter) baseRecord(key *models.APIKey, cfg *models.ModelConfig, requestID, input string, meta CallerMeta) *models.UsageRecord {
	rec := &models.UsageRecord{
		ID:         uuid.New(),
		RequestID:  requestID,
		KeyValue:   unknownValue,
		ProviderID: unknownValue,
		ModelName:  unknownValue,
		InputText:  Truncate(input, MaxInputLen),
		IPAddress:  meta.IP,
		UserAgent:  Truncate(meta.UserAgent, MaxUserAgentLen),
		CreatedAt:  time.Now(),
	}

	if key != nil {
		rec.APIKeyID = key.ID
		rec.KeyValue = key.KeyValue
	}
	if cfg != nil {
		rec.ProviderID = cfg.ProviderID
		rec.ModelName = cfg.ModelName
	}

	return rec
}

func (m *Meter) enqueue(ctx context.Context, rec *models.UsageRecord) {
	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	if err := m.queue.Enqueue(enqueueCtx, rec); err != nil {
		m.logger.Error("Failed to enqueue usage record",
			"request_id", rec.RequestID, "error", err)
	}
}
