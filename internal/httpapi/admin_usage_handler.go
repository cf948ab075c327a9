package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/utils"
)

// AdminUsageHandler serves the usage ledger to administrators
type AdminUsageHandler struct {
	usage  *storage.UsageRepository
	logger *utils.Logger
}

// NewAdminUsageHandler creates a new admin usage handler
func NewAdminUsageHandler(usage *storage.UsageRepository) *AdminUsageHandler {
	return &AdminUsageHandler{
		usage:  usage,
		logger: utils.NewLogger("admin-usage"),
	}
}

// List handles GET /admin/usage. Pass apiKeyId to filter by key.
func (h *AdminUsageHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := pageParams(r)

	if keyID := r.URL.Query().Get("apiKeyId"); keyID != "" {
		id, err := uuid.Parse(keyID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid apiKeyId")
			return
		}

		recs, err := h.usage.ListByKey(r.Context(), id, limit, offset)
		if err != nil {
			h.logger.Error("Failed to list usage records", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, recs)
		return
	}

	recs, err := h.usage.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list usage records", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, recs)
}
