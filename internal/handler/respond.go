// Package handler exposes the wizard over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"hpcredit/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, errs map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
}

// statusFor maps domain errors to HTTP status codes. Everything the wizard
// rejects as a bad command is a 400; missing records are 404s; collaborator
// failures surface as 502 with a display message.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrSessionNotFound),
		errors.Is(err, errors.ErrApplicationNotFound),
		errors.Is(err, errors.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCaptureInProgress),
		errors.Is(err, errors.ErrShoppingIncomplete),
		errors.Is(err, errors.ErrPlanIncomplete),
		errors.Is(err, errors.ErrConsentIncomplete),
		errors.Is(err, errors.ErrDraftNotCreated),
		errors.Is(err, errors.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, errors.ErrAlreadyAtFirstStep),
		errors.Is(err, errors.ErrAlreadyAtLastStep),
		errors.Is(err, errors.ErrCaptureWrongState),
		errors.Is(err, errors.ErrSignatureInactive),
		errors.Is(err, errors.ErrImageMissing),
		errors.Is(err, errors.ErrMinimumOneItem),
		errors.Is(err, errors.ErrTermOutOfRange),
		errors.Is(err, errors.ErrUnknownProduct),
		errors.Is(err, errors.ErrNoProductSelected):
		return http.StatusBadRequest
	default:
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
