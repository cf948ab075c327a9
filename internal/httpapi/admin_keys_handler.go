package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/utils"
)

// AdminKeysHandler handles API key management endpoints
type AdminKeysHandler struct {
	keys   *storage.APIKeyRepository
	logger *utils.Logger
}

// NewAdminKeysHandler creates a new admin keys handler
func NewAdminKeysHandler(keys *storage.APIKeyRepository) *AdminKeysHandler {
	return &AdminKeysHandler{
		keys:   keys,
		logger: utils.NewLogger("admin-keys"),
	}
}

// CreateKeyRequest is the request body for POST /admin/keys
type CreateKeyRequest struct {
	Tier       string `json:"tier"`
	TotalQuota int    `json:"totalQuota"`
	RateLimit  int    `json:"rateLimit"`
	ExpireDays int    `json:"expireDays,omitempty"`
	Remark     string `json:"remark,omitempty"`
}

// UpdateKeyRequest is the request body for PUT /admin/keys/{id}
type UpdateKeyRequest struct {
	Status    *int       `json:"status,omitempty"`
	RateLimit *int       `json:"rateLimit,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Remark    *string    `json:"remark,omitempty"`
}

// Handle dispatches /admin/keys requests by method
func (h *AdminKeysHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleByID dispatches /admin/keys/{id} requests by method
func (h *AdminKeysHandler) HandleByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/admin/keys/"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *AdminKeysHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	tier, ok := parseTier(req.Tier)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid tier (use trial, paid or vip)")
		return
	}
	if req.TotalQuota <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Total quota must be positive")
		return
	}
	if req.RateLimit <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Rate limit must be positive")
		return
	}

	keyValue, err := auth.GenerateKey(tier)
	if err != nil {
		h.logger.Error("Failed to generate key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	key := &models.APIKey{
		KeyValue:       keyValue,
		Tier:           tier,
		RemainingQuota: req.TotalQuota,
		TotalQuota:     req.TotalQuota,
		Status:         models.StatusEnabled,
		RateLimit:      req.RateLimit,
		Remark:         req.Remark,
	}
	if req.ExpireDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, req.ExpireDays)
		key.ExpiresAt = &expiresAt
	}

	if err := h.keys.Create(r.Context(), key); err != nil {
		h.logger.Error("Failed to create key", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("API key created", "id", key.ID, "tier", tier.String())
	utils.RespondWithJSON(w, http.StatusCreated, key)
}

func (h *AdminKeysHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	keys, err := h.keys.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list keys", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, keys)
}

func (h *AdminKeysHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	key, err := h.keys.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, key)
}

func (h *AdminKeysHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req UpdateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	key, err := h.keys.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if req.Status != nil {
		status := models.KeyStatus(*req.Status)
		if status != models.StatusDisabled && status != models.StatusEnabled && status != models.StatusExpired {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		key.Status = status
	}
	if req.RateLimit != nil {
		if *req.RateLimit <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Rate limit must be positive")
			return
		}
		key.RateLimit = *req.RateLimit
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}
	if req.Remark != nil {
		key.Remark = *req.Remark
	}

	if err := h.keys.Save(r.Context(), key); err != nil {
		h.logger.Error("Failed to update key", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, key)
}

func (h *AdminKeysHandler) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.keys.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		h.logger.Error("Failed to delete key", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("API key deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func parseTier(s string) (models.KeyTier, bool) {
	switch strings.ToLower(s) {
	case "trial":
		return models.TierTrial, true
	case "paid":
		return models.TierPaid, true
	case "vip":
		return models.TierVIP, true
	default:
		return 0, false
	}
}

// pageParams reads limit/offset query parameters with sane defaults.
func pageParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
