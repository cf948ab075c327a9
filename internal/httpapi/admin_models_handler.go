package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/utils"
)

// AdminModelsHandler handles model configuration management endpoints
type AdminModelsHandler struct {
	configs *storage.ModelConfigRepository
	logger  *utils.Logger
}

// NewAdminModelsHandler creates a new admin models handler
func NewAdminModelsHandler(configs *storage.ModelConfigRepository) *AdminModelsHandler {
	return &AdminModelsHandler{
		configs: configs,
		logger:  utils.NewLogger("admin-models"),
	}
}

// ModelConfigRequest is the request body for creating or updating a model config
type ModelConfigRequest struct {
	ProviderID                string  `json:"providerId"`
	ModelName                 string  `json:"modelName"`
	Endpoint                  string  `json:"endpoint"`
	APISecret                 string  `json:"apiSecret,omitempty"`
	MaxTokens                 int     `json:"maxTokens"`
	Temperature               float64 `json:"temperature"`
	Priority                  int     `json:"priority"`
	Enabled                   *bool   `json:"enabled,omitempty"`
	CostPer1KPromptTokens     float64 `json:"costPer1kPromptTokens"`
	CostPer1KCompletionTokens float64 `json:"costPer1kCompletionTokens"`
	Remark                    string  `json:"remark,omitempty"`
}

// ModelConfigResponse is a model config with the secret masked.
// The full secret never leaves the server after creation.
type ModelConfigResponse struct {
	ID                        uuid.UUID `json:"id"`
	ProviderID                string    `json:"providerId"`
	ModelName                 string    `json:"modelName"`
	Endpoint                  string    `json:"endpoint"`
	SecretPreview             string    `json:"secretPreview"`
	MaxTokens                 int       `json:"maxTokens"`
	Temperature               float64   `json:"temperature"`
	Priority                  int       `json:"priority"`
	Enabled                   bool      `json:"enabled"`
	CostPer1KPromptTokens     float64   `json:"costPer1kPromptTokens"`
	CostPer1KCompletionTokens float64   `json:"costPer1kCompletionTokens"`
	Remark                    string    `json:"remark,omitempty"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

func modelConfigResponse(cfg *models.ModelConfig) ModelConfigResponse {
	return ModelConfigResponse{
		ID:                        cfg.ID,
		ProviderID:                cfg.ProviderID,
		ModelName:                 cfg.ModelName,
		Endpoint:                  cfg.Endpoint,
		SecretPreview:             cfg.SecretPreview(),
		MaxTokens:                 cfg.MaxTokens,
		Temperature:               cfg.Temperature,
		Priority:                  cfg.Priority,
		Enabled:                   cfg.Enabled,
		CostPer1KPromptTokens:     cfg.CostPer1KPromptTokens,
		CostPer1KCompletionTokens: cfg.CostPer1KCompletionTokens,
		Remark:                    cfg.Remark,
		CreatedAt:                 cfg.CreatedAt,
		UpdatedAt:                 cfg.UpdatedAt,
	}
}

// Handle dispatches /admin/models requests by method
func (h *AdminModelsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleByID dispatches /admin/models/{id} requests by method
func (h *AdminModelsHandler) HandleByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/admin/models/"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid model config ID")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *AdminModelsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ModelConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.ProviderID == "" || req.ModelName == "" || req.Endpoint == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "providerId, modelName and endpoint are required")
		return
	}
	if req.APISecret == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "apiSecret is required")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg := &models.ModelConfig{
		ProviderID:                req.ProviderID,
		ModelName:                 req.ModelName,
		Endpoint:                  req.Endpoint,
		APISecret:                 req.APISecret,
		MaxTokens:                 req.MaxTokens,
		Temperature:               req.Temperature,
		Priority:                  req.Priority,
		Enabled:                   enabled,
		CostPer1KPromptTokens:     req.CostPer1KPromptTokens,
		CostPer1KCompletionTokens: req.CostPer1KCompletionTokens,
		Remark:                    req.Remark,
	}

	if err := h.configs.Create(r.Context(), cfg); err != nil {
		h.logger.Error("Failed to create model config", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Model config created", "id", cfg.ID, "provider", cfg.ProviderID, "model", cfg.ModelName)
	utils.RespondWithJSON(w, http.StatusCreated, modelConfigResponse(cfg))
}

func (h *AdminModelsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)

	cfgs, err := h.configs.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list model configs", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := make([]ModelConfigResponse, 0, len(cfgs))
	for _, cfg := range cfgs {
		resp = append(resp, modelConfigResponse(cfg))
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminModelsHandler) update(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ModelConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	cfg, err := h.configs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrModelConfigNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Model config not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if req.ProviderID != "" {
		cfg.ProviderID = req.ProviderID
	}
	if req.ModelName != "" {
		cfg.ModelName = req.ModelName
	}
	if req.Endpoint != "" {
		cfg.Endpoint = req.Endpoint
	}
	if req.APISecret != "" {
		cfg.APISecret = req.APISecret
	}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}
	cfg.Temperature = req.Temperature
	cfg.Priority = req.Priority
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	cfg.CostPer1KPromptTokens = req.CostPer1KPromptTokens
	cfg.CostPer1KCompletionTokens = req.CostPer1KCompletionTokens
	if req.Remark != "" {
		cfg.Remark = req.Remark
	}

	if err := h.configs.Update(r.Context(), cfg); err != nil {
		if errors.Is(err, storage.ErrModelConfigNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Model config not found")
			return
		}
		h.logger.Error("Failed to update model config", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, modelConfigResponse(cfg))
}

func (h *AdminModelsHandler) delete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.configs.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrModelConfigNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Model config not found")
			return
		}
		h.logger.Error("Failed to delete model config", "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Model config deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
