package httpapi

import (
	"encoding/json"
	"net/http"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/config"
	"flowchart_gateway/internal/utils"
)

// AdminAuthHandler handles admin authentication endpoints
type AdminAuthHandler struct {
	cfg    *config.Config
	logger *utils.Logger
}

// NewAdminAuthHandler creates a new admin authentication handler
func NewAdminAuthHandler(cfg *config.Config) *AdminAuthHandler {
	return &AdminAuthHandler{
		cfg:    cfg,
		logger: utils.NewLogger("admin-auth"),
	}
}

// LoginRequest is the request body for POST /admin/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the admin bearer token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Login handles POST /admin/auth/login
func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if req.Username != h.cfg.AdminUsername ||
		!auth.CheckPassword(h.cfg.AdminPasswordHash, req.Password) {
		h.logger.Warn("Admin login rejected", "username", req.Username, "ip", utils.ClientIP(r))
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWT(req.Username, h.cfg.JWTSecret)
	if err != nil {
		h.logger.Error("Failed to generate admin token", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("Admin login", "username", req.Username, "ip", utils.ClientIP(r))
	utils.RespondWithJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
