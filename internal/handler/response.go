package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"invoicecam/internal/logger"
	"invoicecam/internal/service/backend"
	"invoicecam/internal/service/capture"
)

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError maps capture and backend errors to a status and a {"message"} body.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status, body := http.StatusInternalServerError, errorResponse{Message: err.Error()}

	var validationErr *capture.ValidationError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body = errorResponse{Message: validationErr.Message, Field: validationErr.Field}
	case errors.Is(err, capture.ErrNothingDetected),
		errors.Is(err, capture.ErrAlreadyRunning),
		errors.Is(err, capture.ErrStartAborted),
		errors.Is(err, capture.ErrSubmitInFlight):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, capture.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrPlayback):
		status = http.StatusBadGateway
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		body = errorResponse{Message: apiErr.Message}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, logger, status, body)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}
