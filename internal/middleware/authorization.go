package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireRole ensures the session in context has one of the allowed roles.
// It must run after SessionMiddleware.
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			if !ok {
				logger.Warn("Session not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !sess.HasRole(allowedRoles...) {
				logger.Warn("Operator role not authorized",
					zap.String("username", sess.Username),
					zap.String("role", sess.Role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
