package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	maxFailedAttempts = 5
	lockDuration      = 15 * time.Minute
	bcryptCost        = 12
	sessionIssuer     = "agent-ledger"
)

// SessionClaims are the claims carried by an admin session token.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates admin sessions.
type AuthService struct {
	open         bool
	passwordHash []byte
	jwtSecret    []byte
	sessionTTL   time.Duration
	logger       *zap.Logger
	clock        func() time.Time

	mu          sync.Mutex
	failed      int
	lockedUntil time.Time
}

// NewAuthService hashes password once at startup. jwtSecret is required.
// An empty password leaves the service closed: every login and every
// session is rejected until ADMIN_PASSWORD is configured.
func NewAuthService(password, jwtSecret string, sessionTTL time.Duration, logger *zap.Logger) (*AuthService, error) {
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required when authentication is enabled")
	}
	s := &AuthService{
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		logger:     logger,
		clock:      time.Now,
	}
	if password == "" {
		logger.Warn("ADMIN_PASSWORD not set: all logins will be rejected")
		return s, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	s.passwordHash = hash
	return s, nil
}

// NewOpenAuthService returns a service that skips the password check and
// lets every request through. It backs AUTH_DISABLED=true for local
// development; sessions are signed with a per-process random key.
func NewOpenAuthService(sessionTTL time.Duration, logger *zap.Logger) (*AuthService, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	logger.Warn("AUTH_DISABLED: every request is treated as the admin")
	return &AuthService{
		open:       true,
		jwtSecret:  secret,
		sessionTTL: sessionTTL,
		logger:     logger,
		clock:      time.Now,
	}, nil
}

// Open reports whether sessions are not enforced.
func (s *AuthService) Open() bool {
	return s.open
}

func (s *AuthService) configured() bool {
	return len(s.passwordHash) > 0
}

// ============================================================
// Login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.clock()
	if !s.open {
		if !s.configured() {
			s.logger.Warn("login: rejected, admin password not configured")
			return nil, &domain.ErrUnauthorized{Message: "admin login is not configured"}
		}

		s.mu.Lock()
		locked := now.Before(s.lockedUntil)
		s.mu.Unlock()
		if locked {
			s.logger.Warn("login: locked out")
			return nil, &domain.ErrUnauthorized{Message: "too many failed attempts, try again later"}
		}

		if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
			s.recordFailure(now)
			return nil, &domain.ErrUnauthorized{Message: "invalid password"}
		}
		s.mu.Lock()
		s.failed = 0
		s.mu.Unlock()
	}

	token, expiresAt, err := s.signSession(now)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	s.logger.Info("admin logged in")
	return &domain.LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) recordFailure(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed++
	if s.failed >= maxFailedAttempts {
		s.lockedUntil = now.Add(lockDuration)
		s.failed = 0
		s.logger.Warn("login: too many failures, locking",
			zap.Time("locked_until", s.lockedUntil),
		)
		return
	}
	s.logger.Warn("login: invalid password", zap.Int("failed_attempts", s.failed))
}

// ============================================================
// Sessions
// ============================================================

func (s *AuthService) signSession(now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.sessionTTL)
	claims := SessionClaims{
		Role: domain.AdminSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   domain.AdminSubject,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateSession parses and verifies a session token. Used by middleware.
func (s *AuthService) ValidateSession(tokenString string) (*SessionClaims, error) {
	if !s.open && !s.configured() {
		return nil, &domain.ErrUnauthorized{Message: "admin login is not configured"}
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired session"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject != domain.AdminSubject {
		return nil, &domain.ErrUnauthorized{Message: "invalid session"}
	}
	return claims, nil
}

// SessionTTL is the lifetime of issued sessions, used for the cookie.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}
