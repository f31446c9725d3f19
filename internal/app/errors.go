package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to the transport. Match with errors.Is.
var (
	ErrMissingIdentity    = errors.New("missing identity")
	ErrMissingImage       = errors.New("missing image")
	ErrInvalidImage       = errors.New("invalid image")
	ErrUploadFailure      = errors.New("image upload failed")
	ErrPersistenceFailure = errors.New("prediction record could not be saved")
	ErrInference          = errors.New("inference failed")
	ErrBusy               = errors.New("service busy")
	ErrHistory            = errors.New("history lookup failed")
)

// wrap returns "op: kind: cause", matching both kind and cause with errors.Is.
func wrap(op string, kind, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, cause)
}
