package worker

import "errors"

// Sentinel kinds for inference pool errors.
var (
	ErrBusy       = errors.New("inference capacity exhausted")
	ErrStopped    = errors.New("inference pool stopped")
	ErrNoRunners  = errors.New("inference pool needs at least one runner")
	ErrOutputSize = errors.New("model output size does not match label set")
)
