package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/agent-ledger-go/internal/service"

	"go.uber.org/zap"
)

// SessionCookie carries the admin session token.
const SessionCookie = "vc_session"

// SessionMiddleware requires a valid admin session, read from the
// vc_session cookie or an Authorization Bearer header. It is a pass-through
// only for an open auth service; a nil one rejects everything.
func SessionMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authSvc == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if authSvc.Open() {
				next.ServeHTTP(w, r)
				return
			}

			token := sessionToken(r)
			if token == "" {
				logger.Warn("auth: missing session",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, err := authSvc.ValidateSession(token); err != nil {
				logger.Warn("auth: invalid or expired session",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
