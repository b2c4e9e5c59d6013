package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/middleware/trace"
	"github.com/carlinf/finance-tracker/internal/services"
	"github.com/carlinf/finance-tracker/internal/store"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// writeServiceError maps service and store errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUnsupportedCurrency):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case isValidationError(err):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldPath, r.URL.Path)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

var validationErrors = []error{
	core.ErrEmptyDescription,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyName,
	core.ErrInvalidType,
}

func isValidationError(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ownerID returns the caller identity or an empty string.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(trace.OwnerHeader))
}

// requireOwner rejects requests without an owner identity header. Identity
// verification happens upstream; only presence is enforced here.
func requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ownerID(r) == "" {
			writeError(w, r, http.StatusUnauthorized, "missing "+trace.OwnerHeader+" header")
			return
		}
		next(w, r)
	}
}
