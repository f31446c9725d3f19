package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/oralscan/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrTooLarge     = errors.New("upload too large")
	ErrUnauthorized = errors.New("unauthorized")
)

// NewKind returns "op: kind".
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind returns "op: kind: cause", keeping both kind and cause for errors.Is.
func WrapKind(op string, kind, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, service.ErrMissingIdentity):
		return http.StatusBadRequest, "missing_identity"
	case errors.Is(err, service.ErrMissingImage):
		return http.StatusBadRequest, "missing_image"
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, service.ErrUploadFailure):
		return http.StatusInternalServerError, "upload_failed"
	case errors.Is(err, service.ErrPersistenceFailure):
		return http.StatusInternalServerError, "persistence_failed"
	case errors.Is(err, service.ErrInference):
		return http.StatusInternalServerError, "inference_failed"
	case errors.Is(err, service.ErrHistory):
		return http.StatusInternalServerError, "history_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
