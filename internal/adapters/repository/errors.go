package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrDuplicate     = errors.New("prediction record already exists")
	ErrInvalidRecord = errors.New("invalid prediction record")
)
