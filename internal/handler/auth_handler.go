package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Auth
// ============================================================

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    resp.Token,
			Path:     "/",
			Expires:  resp.ExpiresAt,
			MaxAge:   int(authSvc.SessionTTL() / time.Second),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeSuccess(w, http.StatusOK, "logged in", resp)
	}
}

func authLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeSuccess(w, http.StatusOK, "logged out", nil)
	}
}
