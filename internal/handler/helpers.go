package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// envelope is the shape of every /api response.
type envelope struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{
		Success:   false,
		Message:   msg,
		Error:     &errorBody{Code: code, Message: msg},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return false
	}
	return true
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (domain.Date, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return domain.Date{}, &domain.ErrValidation{Field: key, Message: err.Error()}
	}
	return d, nil
}

func queryDateRange(r *http.Request) (from, to domain.Date, err error) {
	if from, err = queryDate(r, "from"); err != nil {
		return
	}
	to, err = queryDate(r, "to")
	return
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ErrValidation{Field: key, Message: fmt.Sprintf("%q is not an integer", v)}
	}
	return n, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var noDebt *domain.ErrNoOutstandingDebt
	var unauthorized *domain.ErrUnauthorized
	var circuitOpen *domain.ErrCircuitOpen
	var lockTimeout *domain.ErrLockTimeout

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &noDebt):
		logger.Info("payment rejected", zap.String("client_id", noDebt.ClientID))
		writeError(w, http.StatusUnprocessableEntity, "NO_OUTSTANDING_DEBT", err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", err.Error())
	case errors.As(err, &lockTimeout):
		logger.Warn("lock timeout", zap.String("key", lockTimeout.Key))
		writeError(w, http.StatusServiceUnavailable, "BUSY", err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
