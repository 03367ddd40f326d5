package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireAdmin restricts catalog write endpoints to admin callers. It assumes
// AuthMiddleware already ran and populated the role.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok || role != "admin" {
				userID, _ := GetUserID(r.Context())
				logger.Warn("Blocked non-admin catalog write",
					zap.String("user_id", userID),
					zap.String("role", role),
					zap.String("path", r.URL.Path),
				)
				RespondWithMessage(w, http.StatusForbidden, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
