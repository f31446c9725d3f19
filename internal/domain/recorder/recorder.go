// Package recorder persists confirmed predictions and serves per-identity history.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/oralscan/internal/domain/model"
)

// Sentinel kinds for recorder errors.
var (
	ErrPersistence  = errors.New("prediction record write failed")
	ErrQuery        = errors.New("prediction history query failed")
	ErrNotConfirmed = errors.New("only confirmed outcomes are recorded")
	ErrNoIdentity   = errors.New("identity is required")
)

// Store is the external record store.
type Store interface {
	// Put writes a new record keyed by its ID.
	Put(ctx context.Context, rec model.PredictionRecord) error
	// ListByIdentity returns every record whose Identity equals identity, in any order.
	ListByIdentity(ctx context.Context, identity string) ([]model.PredictionRecord, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) int
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Recorder) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// Recorder creates immutable PredictionRecords and reads them back.
type Recorder struct {
	store Store
	now   func() time.Time
	newID func() string
}

// New creates a Recorder writing to store.
func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a confirmed outcome. The catalog text is snapshotted into
// the record so later catalog edits do not change history.
func (r *Recorder) Record(ctx context.Context, identity string, out model.Outcome, info model.DiseaseInfo, imageURL string) (model.PredictionRecord, error) {
	if !out.IsConfirmed() {
		return model.PredictionRecord{}, ErrNotConfirmed
	}
	if strings.TrimSpace(identity) == "" {
		return model.PredictionRecord{}, ErrNoIdentity
	}

	rec := model.PredictionRecord{
		ID:          r.newID(),
		Identity:    identity,
		Name:        string(out.Label),
		Confidence:  out.Confidence,
		Description: info.Description,
		Treatment:   info.Treatment,
		ImageURL:    imageURL,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Put(ctx, rec); err != nil {
		return model.PredictionRecord{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return rec, nil
}

// History returns identity's records, newest first with ties broken by ID.
// No records yields an empty, non-nil slice.
func (r *Recorder) History(ctx context.Context, identity string) ([]model.PredictionRecord, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrNoIdentity
	}
	recs, err := r.store.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	out := make([]model.PredictionRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.Identity == identity {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Count returns the number of stored records.
func (r *Recorder) Count(ctx context.Context) int {
	return r.store.Count(ctx)
}
