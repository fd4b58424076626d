package domain

import "time"

// ============================================================
// Auth: single shared admin identity
// ============================================================

// AdminSubject is the only session subject the ledger issues.
const AdminSubject = "admin"

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the body for 200 from POST /api/auth/login. The same
// token is also set as the session cookie.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
