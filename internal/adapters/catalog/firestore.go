package catalog

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/okian/oralscan/internal/domain/model"
)

type firestoreDisease struct {
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	Treatment   string `firestore:"treatment"`
}

// Firestore reads diseases/<label> documents.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a catalog over collection.
func NewFirestore(client *firestore.Client, collection string) *Firestore {
	return &Firestore{client: client, collection: collection}
}

// Get fetches the document whose ID is the label.
func (f *Firestore) Get(ctx context.Context, label model.ClassLabel) (model.DiseaseInfo, bool, error) {
	snap, err := f.client.Collection(f.collection).Doc(string(label)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.DiseaseInfo{}, false, nil
	}
	if err != nil {
		return model.DiseaseInfo{}, false, fmt.Errorf("%w: %s/%s: %w", ErrUnavailable, f.collection, label, err)
	}

	var d firestoreDisease
	if err := snap.DataTo(&d); err != nil {
		return model.DiseaseInfo{}, false, fmt.Errorf("%w: decode %s/%s: %w", ErrUnavailable, f.collection, label, err)
	}
	if d.Name == "" {
		d.Name = string(label)
	}
	return model.DiseaseInfo{Name: d.Name, Description: d.Description, Treatment: d.Treatment}, true, nil
}
