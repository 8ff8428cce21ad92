package middleware

import (
	"context"
	"net/http"
	"time"

	"pos-terminal/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const (
	SessionKey contextKey = "pos_session"
)

// SessionProvider returns the session of the operator currently logged in
type SessionProvider interface {
	Session() (*session.Session, bool)
}

// SessionMiddleware requires a logged in, unexpired operator session and puts
// it in the request context
func SessionMiddleware(provider SessionProvider, logger *zap.Logger) func(http.Handler) http.Handler {
	return sessionMiddleware(provider, logger, time.Now)
}

func sessionMiddleware(provider SessionProvider, logger *zap.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := provider.Session()
			if !ok {
				logger.Debug("Request without an open session", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "not logged in")
				return
			}

			if sess.Expired(now()) {
				logger.Info("Session expired",
					zap.String("username", sess.Username),
					zap.Time("expires_at", sess.ExpiresAt),
				)
				RespondWithError(w, http.StatusUnauthorized, "session expired")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the operator session from request context
func GetSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*session.Session)
	return sess, ok
}
