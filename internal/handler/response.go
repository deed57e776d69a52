package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/incubyte/copilot-stats/internal/domain"
)

type errorResponse struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	respondJSON(w, status, errorResponse{Error: errorPayload{Code: code, Message: err.Error()}})
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var fetchErr *domain.FetchError
	switch {
	case errors.Is(err, domain.ErrInvalidDaysRange):
		return http.StatusBadRequest, "INVALID_DAYS_RANGE"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "UPSTREAM_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
