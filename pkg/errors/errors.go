// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("wizard session not found")
	ErrSessionExpired  = errors.New("wizard session expired")

	// Step gating errors
	ErrCaptureInProgress  = errors.New("identity capture still in progress")
	ErrShoppingIncomplete = errors.New("merchant, branch and at least one valid item are required")
	ErrPlanIncomplete     = errors.New("product, term and calculation are required")
	ErrAlreadyAtFirstStep = errors.New("already at the first step")
	ErrAlreadyAtLastStep  = errors.New("already at the last step")
	ErrSessionCompleted   = errors.New("session is already completed")

	// Selection errors
	ErrNoProductSelected = errors.New("no credit product selected")
	ErrTermOutOfRange    = errors.New("term is outside the selected product's allowed range")
	ErrUnknownProduct    = errors.New("selected product is not in the eligible product list")
	ErrMinimumOneItem    = errors.New("at least one shopping item row is required")

	// Capture errors
	ErrCaptureWrongState = errors.New("capture action not allowed in current state")
	ErrImageMissing      = errors.New("image not provided")
	ErrParseFailed       = errors.New("identity document could not be read")

	// Signature errors
	ErrSignatureInactive = errors.New("signature surface is only active on the consent step")

	// Lifecycle errors
	ErrDraftAlreadyExists = errors.New("draft application already created")
	ErrDraftNotCreated    = errors.New("draft application not created yet")
	ErrConsentIncomplete  = errors.New("signature, typed name and agreement are all required")
	ErrUploadFailed       = errors.New("document upload failed")

	// Record errors
	ErrApplicationNotFound = errors.New("application not found")
	ErrProfileNotFound     = errors.New("profile not found")
)

// Is and As re-export the stdlib helpers so callers only import one errors
// package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Detailer is implemented by errors carrying a server-provided human-readable
// detail, optionally with structured field errors.
type Detailer interface {
	Detail() string
	FieldErrors() []string
}

// APIError is a structured error body returned by a collaborator service.
type APIError struct {
	Status  int      `json:"-"`
	Message string   `json:"detail"`
	Fields  []string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) Detail() string { return e.Message }

func (e *APIError) FieldErrors() []string { return e.Fields }

// Display normalizes any error to a single user-displayable message: a
// server-provided detail wins, structured field errors are joined, and
// anything else falls back to a generic message.
func Display(err error) string {
	if err == nil {
		return ""
	}
	var d Detailer
	if errors.As(err, &d) {
		if msgs := d.FieldErrors(); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if detail := d.Detail(); detail != "" {
			return detail
		}
	}
	return "Something went wrong. Please try again."
}
