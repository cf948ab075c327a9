package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"flowchart_gateway/internal/gateway"
	"flowchart_gateway/internal/providers"
	"flowchart_gateway/internal/quota"
	"flowchart_gateway/internal/usage"
	"flowchart_gateway/internal/utils"
)

// GenerateHandler serves the flowchart generation endpoint
type GenerateHandler struct {
	orchestrator *gateway.Orchestrator
	logger       *utils.Logger
}

// NewGenerateHandler creates a new generation handler
func NewGenerateHandler(orchestrator *gateway.Orchestrator) *GenerateHandler {
	return &GenerateHandler{
		orchestrator: orchestrator,
		logger:       utils.NewLogger("generate"),
	}
}

// GenerateRequest is the request body for POST /api/v1/generate
type GenerateRequest struct {
	Input      string `json:"input"`
	ProviderID string `json:"providerId,omitempty"`
}

// Generate handles POST /api/v1/generate
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	keyValue := r.Header.Get("X-API-Key")
	if keyValue == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing API key")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := h.orchestrator.Generate(r.Context(), gateway.Request{
		KeyValue:   keyValue,
		Input:      req.Input,
		ProviderID: req.ProviderID,
		Meta: usage.CallerMeta{
			IP:        utils.ClientIP(r),
			UserAgent: r.UserAgent(),
		},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// respondError maps pipeline errors to HTTP status codes. Messages stay
// generic; provider response bodies never reach the caller verbatim.
func (h *GenerateHandler) respondError(w http.ResponseWriter, err error) {
	var provErr *providers.ProviderError

	switch {
	case errors.Is(err, quota.ErrInvalidKey):
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
	case errors.Is(err, quota.ErrKeyDisabled):
		utils.RespondWithError(w, http.StatusForbidden, "API key is disabled")
	case errors.Is(err, quota.ErrKeyExpired):
		utils.RespondWithError(w, http.StatusForbidden, "API key has expired")
	case errors.Is(err, quota.ErrQuotaExhausted):
		utils.RespondWithError(w, http.StatusForbidden, "Quota exhausted")
	case errors.Is(err, gateway.ErrTooManyRequests):
		utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.Is(err, gateway.ErrInputEmpty):
		utils.RespondWithError(w, http.StatusBadRequest, "Input text is required")
	case errors.Is(err, gateway.ErrInputTooLarge):
		utils.RespondWithError(w, http.StatusBadRequest, "Input text too large")
	case errors.Is(err, gateway.ErrNoEnabledModel):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "No model available for provider")
	case errors.Is(err, providers.ErrUnsupportedProvider):
		utils.RespondWithError(w, http.StatusBadGateway, "Unsupported provider")
	case errors.As(err, &provErr):
		utils.RespondWithError(w, http.StatusBadGateway, "Generation failed")
	default:
		h.logger.Error("Generation failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
