package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("inference queue full")
	ErrClosed = errors.New("inference queue closed")
)
