package middleware

import (
	"context"
	"net/http"
	"strings"

	"flowchart_gateway/internal/auth"
	"flowchart_gateway/internal/utils"
)

// ContextKey is the type for request context keys set by middleware
type ContextKey string

// AdminUserKey stores the authenticated admin username in the request context
const AdminUserKey ContextKey = "adminUser"

// AdminJWT validates the admin bearer token and embeds the admin
// username into the request context.
func AdminJWT(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			username, err := auth.ValidateAdminJWT(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminUserKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminUser retrieves the authenticated admin username from the context
func GetAdminUser(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(AdminUserKey).(string)
	return username, ok
}
