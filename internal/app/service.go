// Package service provides the prediction pipeline behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	workerpool "github.com/okian/oralscan/internal/adapters/mq/worker"
	"github.com/okian/oralscan/internal/adapters/objectstore"
	"github.com/okian/oralscan/internal/domain/imaging"
	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/internal/domain/recorder"
	"github.com/okian/oralscan/internal/domain/types"
	"github.com/okian/oralscan/pkg/logger"
	"github.com/okian/oralscan/pkg/metrics"
)

// Placeholder text used when the catalog has nothing for a label.
const (
	NoDescription = "No description available"
	NoTreatment   = "No treatment available"
)

// Normalizer turns image bytes into a model input.
type Normalizer interface {
	Normalize(raw []byte) (model.Tensor, error)
}

// Classifier runs the model.
type Classifier interface {
	Classify(ctx context.Context, input model.Tensor) (model.Distribution, error)
}

// Decider applies the confidence policy.
type Decider interface {
	Decide(d model.Distribution) (model.Outcome, error)
}

// Catalog provides optional reference text per label.
type Catalog interface {
	Get(ctx context.Context, label model.ClassLabel) (model.DiseaseInfo, bool, error)
}

// Uploader stores the submitted image.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Recorder persists confirmed predictions and reads them back.
type Recorder interface {
	Record(ctx context.Context, identity string, out model.Outcome, info model.DiseaseInfo, imageURL string) (model.PredictionRecord, error)
	History(ctx context.Context, identity string) ([]model.PredictionRecord, error)
	Count(ctx context.Context) int
}

// Dependencies are the collaborators of a Service. All are required.
type Dependencies struct {
	Normalizer Normalizer
	Classifier Classifier
	Policy     Decider
	Catalog    Catalog
	Uploader   Uploader
	Recorder   Recorder
}

func (d Dependencies) validate() error {
	var missing []string
	for name, dep := range map[string]any{
		"normalizer": d.Normalizer,
		"classifier": d.Classifier,
		"policy":     d.Policy,
		"catalog":    d.Catalog,
		"uploader":   d.Uploader,
		"recorder":   d.Recorder,
	} {
		if isNil(dep) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("service: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// isNil also catches typed-nil pointers stored in an interface.
func isNil(dep any) bool {
	if dep == nil {
		return true
	}
	switch v := reflect.ValueOf(dep); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithObjectPrefix sets the key prefix of uploaded images.
func WithObjectPrefix(prefix string) Option {
	return func(s *Service) {
		s.objectPrefix = prefix
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStats adds entries to GetStats, e.g. worker and queue gauges.
func WithStats(fn func(ctx context.Context) map[string]any) Option {
	return func(s *Service) {
		if fn != nil {
			s.extraStats = fn
		}
	}
}

// Service runs predict and history requests. It holds no per-request state.
type Service struct {
	deps         Dependencies
	objectPrefix string
	startedAt    time.Time
	extraStats   func(ctx context.Context) map[string]any
	logger       logger.Logger
}

// New constructs a Service.
func New(deps Dependencies, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:         deps,
		objectPrefix: "predictions",
		startedAt:    time.Now(),
		logger:       logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Predict uploads, classifies and, when confident, records one image.
func (s *Service) Predict(ctx context.Context, identity string, image []byte) (_ *types.PredictResult, err error) {
	const op = "predict"
	start := time.Now()
	result := "error"
	defer func() { metrics.RecordPredictLatency(result, time.Since(start)) }()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, wrap(op, ErrMissingIdentity, nil)
	}
	if len(image) == 0 {
		return nil, wrap(op, ErrMissingImage, nil)
	}

	ext, contentType := describe(image)
	key := objectstore.NewKey(s.objectPrefix, ext)
	log := s.logger.With(logger.String("identity", identity), logger.String("object_key", key))

	uploadStart := time.Now()
	imageURL, err := s.deps.Uploader.Upload(ctx, key, image, contentType)
	metrics.RecordUploadLatency(time.Since(uploadStart))
	if err != nil {
		metrics.RecordStageError("upload")
		log.Error(ctx, "image upload failed", logger.Error(err))
		return nil, wrap(op, ErrUploadFailure, err)
	}
	// From here on a failure leaves the uploaded object without a record.
	defer func() {
		if err != nil {
			log.Warn(ctx, "uploaded image has no prediction record", logger.String("image_url", imageURL), logger.Error(err))
		}
	}()

	normStart := time.Now()
	tensor, err := s.deps.Normalizer.Normalize(image)
	metrics.RecordNormalizeLatency(time.Since(normStart))
	if err != nil {
		metrics.RecordStageError("normalize")
		return nil, wrap(op, ErrInvalidImage, err)
	}

	inferStart := time.Now()
	dist, err := s.deps.Classifier.Classify(ctx, tensor)
	metrics.RecordInferenceLatency(time.Since(inferStart))
	if err != nil {
		metrics.RecordStageError("inference")
		if errors.Is(err, workerpool.ErrBusy) {
			result = "busy"
			return nil, wrap(op, ErrBusy, err)
		}
		return nil, wrap(op, ErrInference, err)
	}

	outcome, err := s.deps.Policy.Decide(dist)
	if err != nil {
		metrics.RecordStageError("decision")
		return nil, wrap(op, ErrInference, err)
	}

	if !outcome.IsConfirmed() {
		result = types.StatusNotDetected
		metrics.RecordPrediction(types.StatusNotDetected, "")
		log.Info(ctx, "prediction below threshold", logger.Float64("confidence", float64(outcome.Confidence)))
		return &types.PredictResult{
			Status:     types.StatusNotDetected,
			Class:      model.NotDetected,
			Confidence: outcome.Confidence,
			ImageURL:   imageURL,
			Message:    types.LowConfidenceMessage,
		}, nil
	}

	info := s.lookup(ctx, outcome.Label)
	rec, err := s.deps.Recorder.Record(ctx, identity, outcome, info, imageURL)
	if err != nil {
		metrics.RecordStageError("persist")
		log.Error(ctx, "prediction record write failed", logger.Error(err))
		return nil, wrap(op, ErrPersistenceFailure, err)
	}

	result = types.StatusConfirmed
	metrics.RecordPrediction(types.StatusConfirmed, rec.Name)
	metrics.RecordPersisted()
	log.Info(ctx, "prediction recorded",
		logger.String("id", rec.ID),
		logger.String("class", rec.Name),
		logger.Float64("confidence", float64(rec.Confidence)),
	)
	return &types.PredictResult{
		Status:      types.StatusConfirmed,
		Class:       rec.Name,
		Confidence:  rec.Confidence,
		Description: rec.Description,
		Treatment:   rec.Treatment,
		ImageURL:    rec.ImageURL,
		ID:          rec.ID,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

// lookup returns catalog text for label with placeholders for anything missing.
// Catalog failures are logged and never fail the request.
func (s *Service) lookup(ctx context.Context, label model.ClassLabel) model.DiseaseInfo {
	info, ok, err := s.deps.Catalog.Get(ctx, label)
	switch {
	case err != nil:
		metrics.RecordCatalogFallback("unavailable")
		s.logger.Warn(ctx, "catalog lookup failed, using placeholder text",
			logger.String("label", string(label)), logger.Error(err))
		info = model.DiseaseInfo{}
	case !ok:
		metrics.RecordCatalogFallback("missing")
		s.logger.Warn(ctx, "label missing from catalog, using placeholder text",
			logger.String("label", string(label)))
	}

	if info.Name == "" {
		info.Name = string(label)
	}
	if info.Description == "" {
		info.Description = NoDescription
	}
	if info.Treatment == "" {
		info.Treatment = NoTreatment
	}
	return info
}

// History returns identity's records, newest first.
func (s *Service) History(ctx context.Context, identity string) ([]model.PredictionRecord, error) {
	const op = "history"
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, wrap(op, ErrMissingIdentity, nil)
	}

	recs, err := s.deps.Recorder.History(ctx, identity)
	if err != nil {
		if errors.Is(err, recorder.ErrNoIdentity) {
			return nil, wrap(op, ErrMissingIdentity, err)
		}
		metrics.RecordStageError("history")
		s.logger.Error(ctx, "history lookup failed", logger.String("identity", identity), logger.Error(err))
		return nil, wrap(op, ErrHistory, err)
	}
	metrics.RecordHistoryRead()
	return recs, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	stored := s.deps.Recorder.Count(ctx)
	metrics.UpdateRecordsStored(stored)

	stats := map[string]any{
		"startedAt":     s.startedAt.UTC().Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
		"recordsStored": stored,
	}
	if s.extraStats != nil {
		for k, v := range s.extraStats(ctx) {
			stats[k] = v
		}
	}
	return stats
}

// describe picks the object extension and content type from the image header.
// Unrecognised bytes are still uploaded; they fail later as invalid images.
func describe(image []byte) (ext, contentType string) {
	switch imaging.Sniff(image) {
	case "jpeg":
		return ".jpg", "image/jpeg"
	case "png":
		return ".png", "image/png"
	case "gif":
		return ".gif", "image/gif"
	case "webp":
		return ".webp", "image/webp"
	case "bmp":
		return ".bmp", "image/bmp"
	default:
		return "", http.DetectContentType(image)
	}
}
