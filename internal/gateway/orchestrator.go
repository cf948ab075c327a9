package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/providers"
	"flowchart_gateway/internal/quota"
	"flowchart_gateway/internal/ratelimit"
	"flowchart_gateway/internal/usage"
	"flowchart_gateway/internal/utils"
)

// MaxInputRunes bounds the prompt length accepted from callers.
const MaxInputRunes = 2000

// quotaPerRequest is the quota cost of one generation.
const quotaPerRequest = 1

var (
	// ErrTooManyRequests means the key exceeded its per-minute rate limit.
	ErrTooManyRequests = errors.New("rate limit exceeded")

	// ErrInputEmpty means the prompt was empty or whitespace-free empty.
	ErrInputEmpty = errors.New("input text is required")

	// ErrInputTooLarge means the prompt exceeded MaxInputRunes.
	ErrInputTooLarge = errors.New("input text too large")

	// ErrNoEnabledModel means no enabled model configuration exists for
	// the requested provider.
	ErrNoEnabledModel = errors.New("no enabled model for provider")

	// ErrInternal masks unexpected failures, including recovered panics.
	ErrInternal = errors.New("internal error")
)

// ModelConfigStore resolves model configurations. Satisfied by
// storage.ModelConfigRepository; resolution must report a missing config
// with storage.ErrModelConfigNotFound.
type ModelConfigStore interface {
	ResolveByProviderID(ctx context.Context, providerID string) (*models.ModelConfig, error)
}

// Request is a single generation request after transport decoding.
type Request struct {
	KeyValue   string
	Input      string
	ProviderID string // empty means the configured default
	Meta       usage.CallerMeta
}

// Response is the successful outcome of a generation request.
type Response struct {
	RequestID      string `json:"requestId"`
	ArtifactXML    string `json:"xml"`
	ProviderID     string `json:"providerId"`
	ModelName      string `json:"modelName"`
	TotalTokens    int    `json:"totalTokens"`
	RemainingQuota int    `json:"remainingQuota"`
}

// Orchestrator runs the full admission and dispatch pipeline for a
// generation request: key validation, rate limiting, input checks, quota
// consumption, model resolution, provider dispatch and usage metering.
type Orchestrator struct {
	accountant        *quota.Accountant
	limiter           ratelimit.Limiter
	registry          *providers.Registry
	configs           ModelConfigStore
	meter             *usage.Meter
	defaultProviderID string
	logger            *utils.Logger
}

// NewOrchestrator wires the generation pipeline together.
func NewOrchestrator(
	accountant *quota.Accountant,
	limiter ratelimit.Limiter,
	registry *providers.Registry,
	configs ModelConfigStore,
	meter *usage.Meter,
	defaultProviderID string,
) *Orchestrator {
	return &Orchestrator{
		accountant:        accountant,
		limiter:           limiter,
		registry:          registry,
		configs:           configs,
		meter:             meter,
		defaultProviderID: defaultProviderID,
		logger:            utils.NewLogger("orchestrator"),
	}
}

// Generate runs one request through the pipeline. Checks run in a fixed
// order: key validation, rate limit, input checks, quota consumption,
// model resolution, adapter resolution, dispatch. Quota is consumed
// exactly once per admitted request and is never refunded, even when the
// provider call fails afterwards.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (resp *Response, err error) {
	requestID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Recovered from panic", "request_id", requestID, "panic", r)
			resp = nil
			err = ErrInternal
		}
	}()

	key, err := o.accountant.Validate(ctx, req.KeyValue)
	if err != nil {
		return nil, err
	}

	allowed, err := o.limiter.Allow(ctx, key.KeyValue, key.RateLimit)
	if err != nil {
		o.logger.Error("Rate limiter failure", "request_id", requestID, "error", err)
		return nil, ErrInternal
	}
	if !allowed {
		return nil, ErrTooManyRequests
	}

	if req.Input == "" {
		return nil, ErrInputEmpty
	}
	if utf8.RuneCountInString(req.Input) > MaxInputRunes {
		return nil, ErrInputTooLarge
	}

	// The conditional decrement is the admission authority under
	// concurrency; the validation snapshot above may already be stale.
	consumed, err := o.accountant.TryConsume(ctx, key.KeyValue, quotaPerRequest)
	if err != nil {
		o.logger.Error("Quota deduction failure", "request_id", requestID, "error", err)
		return nil, ErrInternal
	}
	if !consumed {
		return nil, quota.ErrQuotaExhausted
	}

	providerID := req.ProviderID
	if providerID == "" {
		providerID = o.defaultProviderID
	}

	cfg, err := o.configs.ResolveByProviderID(ctx, providerID)
	if err != nil {
		// Quota was already consumed; deliberately not refunded.
		o.recordFailure(ctx, key, nil, requestID, req.Input, err.Error(), 0, req.Meta)
		return nil, fmt.Errorf("%w: %s", ErrNoEnabledModel, providerID)
	}

	adapter, err := o.registry.Resolve(cfg.ProviderID)
	if err != nil {
		o.recordFailure(ctx, key, cfg, requestID, req.Input, err.Error(), 0, req.Meta)
		return nil, err
	}

	// The dispatch must not be cut short by the caller hanging up;
	// quota is already spent and the outcome must reach the ledger.
	dispatchCtx := context.WithoutCancel(ctx)

	start := time.Now()
	result, err := adapter.Generate(dispatchCtx, req.Input, cfg)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		o.logger.Warn("Provider dispatch failed",
			"request_id", requestID, "provider", cfg.ProviderID, "error", err)
		o.recordFailure(dispatchCtx, key, cfg, requestID, req.Input, err.Error(), latency, req.Meta)
		return nil, err
	}
	if result.LatencyMillis == 0 {
		result.LatencyMillis = latency
	}

	o.meter.RecordSuccess(dispatchCtx, key, cfg, requestID, req.Input, result, req.Meta)

	remaining, err := o.accountant.Remaining(ctx, key.KeyValue)
	if err != nil {
		// Best effort; the generation itself succeeded.
		o.logger.Warn("Failed to read remaining quota", "request_id", requestID, "error", err)
		remaining = key.RemainingQuota - quotaPerRequest
	}

	return &Response{
		RequestID:      requestID,
		ArtifactXML:    result.ArtifactXML,
		ProviderID:     cfg.ProviderID,
		ModelName:      cfg.ModelName,
		TotalTokens:    result.TotalTokens,
		RemainingQuota: remaining,
	}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, key *models.APIKey, cfg *models.ModelConfig, requestID, input, detail string, latency int64, meta usage.CallerMeta) {
	o.meter.RecordFailure(ctx, key, cfg, requestID, input, detail, latency, meta)
}
