package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/pkg/logger"
)

// firestoreRecord is the persisted document layout.
type firestoreRecord struct {
	ID          string    `firestore:"id"`
	Identity    string    `firestore:"identity"`
	Name        string    `firestore:"name"`
	Confidence  float64   `firestore:"confidence"`
	Description string    `firestore:"description"`
	Treatment   string    `firestore:"treatment"`
	ImageURL    string    `firestore:"imageUrl"`
	CreatedAt   string    `firestore:"createdAt"`
	CreatedTS   time.Time `firestore:"createdAtTs"`
}

// NewFirestoreClient connects to projectID. With FIRESTORE_EMULATOR_HOST set
// the client talks to the emulator.
func NewFirestoreClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// FirestoreStore keeps one document per record in a collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	logger     logger.Logger
}

// NewFirestoreStore creates a store over collection.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: collection,
		logger:     logger.Get().Named("firestore-store"),
	}
}

// Put creates <collection>/<id>; an existing document is never overwritten.
func (s *FirestoreStore) Put(ctx context.Context, rec model.PredictionRecord) error {
	if rec.ID == "" || rec.Identity == "" {
		return fmt.Errorf("%w: id and identity are required", ErrInvalidRecord)
	}
	doc := firestoreRecord{
		ID:          rec.ID,
		Identity:    rec.Identity,
		Name:        rec.Name,
		Confidence:  float64(rec.Confidence),
		Description: rec.Description,
		Treatment:   rec.Treatment,
		ImageURL:    rec.ImageURL,
		CreatedAt:   model.CanonicalTime(rec.CreatedAt),
		CreatedTS:   rec.CreatedAt.UTC(),
	}
	_, err := s.client.Collection(s.collection).Doc(rec.ID).Create(ctx, doc)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", s.collection, rec.ID, err)
	}
	return nil
}

// ListByIdentity queries identity == value.
func (s *FirestoreStore) ListByIdentity(ctx context.Context, identity string) ([]model.PredictionRecord, error) {
	snaps, err := s.client.Collection(s.collection).Where("identity", "==", identity).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s by identity: %w", s.collection, err)
	}

	out := make([]model.PredictionRecord, 0, len(snaps))
	for _, snap := range snaps {
		var doc firestoreRecord
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", s.collection, snap.Ref.ID, err)
		}
		rec, err := doc.toModel(snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count runs a server-side count aggregation. Failures are logged and count as 0.
func (s *FirestoreStore) Count(ctx context.Context) int {
	res, err := s.client.Collection(s.collection).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "count aggregation failed", logger.Error(err))
		return 0
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0
	}
	return int(v.GetIntegerValue())
}

func (d firestoreRecord) toModel(docID string) (model.PredictionRecord, error) {
	id := d.ID
	if id == "" {
		id = docID
	}
	created := d.CreatedTS
	if d.CreatedAt != "" {
		t, err := model.ParseCanonicalTime(d.CreatedAt)
		if err != nil {
			return model.PredictionRecord{}, err
		}
		created = t
	}
	return model.PredictionRecord{
		ID:          id,
		Identity:    d.Identity,
		Name:        d.Name,
		Confidence:  float32(d.Confidence),
		Description: d.Description,
		Treatment:   d.Treatment,
		ImageURL:    d.ImageURL,
		CreatedAt:   created.UTC(),
	}, nil
}
