package httpapi

import (
	"errors"
	"net/http"
	"time"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/utils"
)

// QuotaHandler serves quota balance lookups for API key holders
type QuotaHandler struct {
	keys *storage.APIKeyRepository
}

// NewQuotaHandler creates a new quota handler
func NewQuotaHandler(keys *storage.APIKeyRepository) *QuotaHandler {
	return &QuotaHandler{keys: keys}
}

// QuotaResponse is the response body for GET /api/v1/quota
type QuotaResponse struct {
	RemainingQuota int        `json:"remainingQuota"`
	TotalQuota     int        `json:"totalQuota"`
	Tier           string     `json:"tier"`
	Status         int        `json:"status"`
	RateLimit      int        `json:"rateLimit"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// Quota handles GET /api/v1/quota. Exhausted and disabled keys can still
// read their own balance; only unknown keys are rejected.
func (h *QuotaHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	keyValue := r.Header.Get("X-API-Key")
	if keyValue == "" || !auth.IsValidKeyFormat(keyValue) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}

	key, err := h.keys.FindByValue(r.Context(), keyValue)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, QuotaResponse{
		RemainingQuota: key.RemainingQuota,
		TotalQuota:     key.TotalQuota,
		Tier:           key.Tier.String(),
		Status:         int(key.Status),
		RateLimit:      key.RateLimit,
		ExpiresAt:      key.ExpiresAt,
	})
}
