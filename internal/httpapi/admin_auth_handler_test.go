package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)

	return &config.Config{
		JWTSecret:         []byte("test-secret"),
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
	}
}

func postLogin(t *testing.T, handler *AdminAuthHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	return rec
}

func TestAdminAuthHandler_Login(t *testing.T) {
	cfg := testConfig(t)
	handler := NewAdminAuthHandler(cfg)

	t.Run("issues a token for valid credentials", func(t *testing.T) {
		rec := postLogin(t, handler, LoginRequest{Username: "admin", Password: "correct-horse"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.NotZero(t, resp.ExpiresAt)

		username, err := auth.ValidateAdminJWT(resp.Token, cfg.JWTSecret)
		require.NoError(t, err)
		assert.Equal(t, "admin", username)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		rec := postLogin(t, handler, LoginRequest{Username: "admin", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unknown username", func(t *testing.T) {
		rec := postLogin(t, handler, LoginRequest{Username: "root", Password: "correct-horse"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects logins when no password hash is configured", func(t *testing.T) {
		bare := testConfig(t)
		bare.AdminPasswordHash = ""
		h := NewAdminAuthHandler(bare)

		rec := postLogin(t, h, LoginRequest{Username: "admin", Password: ""})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects non-POST", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/auth/login", nil)
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/auth/login", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
