package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/okian/oralscan/internal/adapters/artifact"
	"github.com/okian/oralscan/internal/adapters/catalog"
	"github.com/okian/oralscan/internal/adapters/mq/queue"
	"github.com/okian/oralscan/internal/adapters/mq/worker"
	"github.com/okian/oralscan/internal/adapters/objectstore"
	"github.com/okian/oralscan/internal/adapters/onnx"
	"github.com/okian/oralscan/internal/adapters/repository"
	service "github.com/okian/oralscan/internal/app"
	"github.com/okian/oralscan/internal/config"
	"github.com/okian/oralscan/internal/domain/decision"
	"github.com/okian/oralscan/internal/domain/imaging"
	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/internal/domain/recorder"
	"github.com/okian/oralscan/pkg/logger"
	"github.com/okian/oralscan/pkg/metrics"
)

// components is everything the HTTP layer needs plus what must be released on exit.
type components struct {
	svc     *service.Service
	pool    *worker.Pool
	closers []func() error
}

// Close releases resources in reverse acquisition order.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// loadRunners makes the model available locally and opens one ONNX session per worker.
func loadRunners(ctx context.Context, cfg *config.Config, labels model.Labels, shape []int64) ([]worker.Runner, func() error, error) {
	if cfg.ModelURL != "" {
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.ModelDownloadTimeout)
		defer cancel()
		if err := artifact.NewFetcher().Fetch(fetchCtx, cfg.ModelURL, cfg.ModelPath); err != nil {
			return nil, nil, err
		}
	}

	if err := onnx.Init(cfg.ONNXLibraryPath); err != nil {
		return nil, nil, err
	}
	sessions, err := onnx.NewRunners(onnx.Spec{
		ModelPath:   cfg.ModelPath,
		InputName:   cfg.ONNXInputName,
		OutputName:  cfg.ONNXOutputName,
		InputShape:  shape,
		OutputWidth: len(labels),
	}, cfg.InferenceWorkers)
	if err != nil {
		_ = onnx.Shutdown()
		return nil, nil, err
	}

	runners := make([]worker.Runner, len(sessions))
	for i, s := range sessions {
		runners[i] = s
	}
	return runners, onnx.Shutdown, nil
}

// build assembles the service around runners according to cfg. The runners
// are owned by the result from here on, also when build fails.
func build(ctx context.Context, cfg *config.Config, labels model.Labels, normalizer *imaging.Normalizer, runners []worker.Runner) (_ *components, err error) {
	log := logger.Get().Named("wiring")
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.InferenceQueueSize))
	pool, err := worker.NewPool(runners, q, worker.WithOutputWidth(len(labels)))
	if err != nil {
		for _, r := range runners {
			_ = r.Close()
		}
		return nil, err
	}
	// The pool outlives the request context so in-flight jobs drain on shutdown.
	pool.Start(context.WithoutCancel(ctx))
	c.pool = pool
	c.closers = append(c.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return pool.Shutdown(shutdownCtx)
	})

	backends := &backends{cfg: cfg, c: c}

	uploader, err := backends.uploader(ctx)
	if err != nil {
		return nil, err
	}
	store, err := backends.recordStore(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := backends.catalog(ctx)
	if err != nil {
		return nil, err
	}

	policy := decision.NewPolicy(labels, decision.WithThreshold(cfg.ConfidenceThreshold))
	svc, err := service.New(service.Dependencies{
		Normalizer: normalizer,
		Classifier: pool,
		Policy:     policy,
		Catalog:    cat,
		Uploader:   uploader,
		Recorder:   recorder.New(store),
	},
		service.WithObjectPrefix(cfg.ObjectPrefix),
		service.WithStats(func(ctx context.Context) map[string]any {
			return map[string]any{
				"workers":       pool.Size(),
				"pending":       pool.Pending(ctx),
				"queueCapacity": q.Cap(),
				"threshold":     policy.Threshold(),
				"labels":        labels,
				"objectStore":   cfg.ObjectStore,
				"recordStore":   cfg.RecordStore,
				"catalogStore":  cfg.CatalogStore,
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	c.svc = svc

	log.Info(ctx, "service assembled",
		logger.Int("workers", pool.Size()),
		logger.String("object_store", cfg.ObjectStore),
		logger.String("record_store", cfg.RecordStore),
		logger.String("catalog_store", cfg.CatalogStore),
	)
	return c, nil
}

// backends opens shared clients on first use so Firestore and Postgres are
// only dialled when some store is configured to use them.
type backends struct {
	cfg *config.Config
	c   *components

	fs *firestore.Client
	db *sql.DB
}

func (b *backends) googleOptions() []option.ClientOption {
	if b.cfg.GoogleCredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(b.cfg.GoogleCredentialsFile)}
}

func (b *backends) firestore(ctx context.Context) (*firestore.Client, error) {
	if b.fs != nil {
		return b.fs, nil
	}
	client, err := repository.NewFirestoreClient(ctx, b.cfg.FirestoreProjectID, b.googleOptions()...)
	if err != nil {
		return nil, err
	}
	b.fs = client
	b.c.closers = append(b.c.closers, client.Close)
	return client, nil
}

func (b *backends) postgres(ctx context.Context) (*sql.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	db, err := repository.OpenPostgres(ctx, b.cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	b.db = db
	b.c.closers = append(b.c.closers, db.Close)
	return db, nil
}

func (b *backends) uploader(ctx context.Context) (service.Uploader, error) {
	switch b.cfg.ObjectStore {
	case config.BackendMemory:
		return objectstore.NewMemory(), nil
	case config.BackendGCS:
		g, err := objectstore.NewGCS(ctx, b.cfg.GCSBucket, b.cfg.GCSPublicBaseURL, b.googleOptions()...)
		if err != nil {
			return nil, err
		}
		b.c.closers = append(b.c.closers, g.Close)
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported object_store %q", b.cfg.ObjectStore)
	}
}

func (b *backends) recordStore(ctx context.Context) (recorder.Store, error) {
	switch b.cfg.RecordStore {
	case config.BackendMemory:
		s := repository.NewMemoryStore(ctx, repository.WithMetricsUpdateInterval(metrics.RefreshInterval()))
		b.c.closers = append(b.c.closers, s.Close)
		return s, nil
	case config.BackendFirestore:
		client, err := b.firestore(ctx)
		if err != nil {
			return nil, err
		}
		return repository.NewFirestoreStore(client, b.cfg.PredictionsCollection), nil
	case config.BackendPostgres:
		db, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		s := repository.NewPostgresStore(db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported record_store %q", b.cfg.RecordStore)
	}
}

func (b *backends) catalog(ctx context.Context) (service.Catalog, error) {
	switch b.cfg.CatalogStore {
	case config.BackendMemory:
		return catalog.NewMemory(catalog.Defaults()), nil
	case config.BackendFile:
		return catalog.LoadFile(b.cfg.CatalogFile)
	case config.BackendFirestore:
		client, err := b.firestore(ctx)
		if err != nil {
			return nil, err
		}
		return catalog.NewFirestore(client, b.cfg.DiseasesCollection), nil
	case config.BackendPostgres:
		db, err := b.postgres(ctx)
		if err != nil {
			return nil, err
		}
		p := catalog.NewPostgres(db)
		if err := p.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported catalog_store %q", b.cfg.CatalogStore)
	}
}

// recordSampler refreshes the records-stored gauge for remote record stores,
// where each sample is a count query. The memory store updates the gauge itself.
func recordSampler(ctx context.Context, cfg *config.Config, svc *service.Service) func() {
	if cfg.RecordStore == config.BackendMemory {
		return nil
	}
	return func() { svc.GetStats(ctx) }
}

// startMetricsTicker runs fn every interval until ctx is done.
func startMetricsTicker(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
