package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore keeps records in process memory with a per-identity index.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]model.PredictionRecord
	byIdentity map[string][]string

	metricsUpdateInterval time.Duration
	stop                  chan struct{}
	stopOnce              sync.Once
}

// NewMemoryStore creates an empty store and starts its metrics updater,
// which runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]model.PredictionRecord),
		byIdentity:            make(map[string][]string),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stop:                  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.startMetricsUpdater(ctx)
	return s
}

// Put stores rec.
func (s *MemoryStore) Put(ctx context.Context, rec model.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" || rec.Identity == "" {
		return fmt.Errorf("%w: id and identity are required", ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	s.byID[rec.ID] = rec
	s.byIdentity[rec.Identity] = append(s.byIdentity[rec.Identity], rec.ID)
	return nil
}

// ListByIdentity returns copies of identity's records in insertion order.
func (s *MemoryStore) ListByIdentity(ctx context.Context, identity string) ([]model.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byIdentity[identity]
	out := make([]model.PredictionRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			metrics.UpdateRecordsStored(s.Count(ctx))
		}
	}
}
