// Package repository stores prediction records.
package repository

import (
	"context"

	"github.com/okian/oralscan/internal/domain/model"
)

// Store provides append-only access to prediction records.
type Store interface {
	// Put writes a new record. Writing an existing ID fails with ErrDuplicate.
	Put(ctx context.Context, rec model.PredictionRecord) error

	// ListByIdentity returns every record of identity, in no particular order.
	ListByIdentity(ctx context.Context, identity string) ([]model.PredictionRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int
}
