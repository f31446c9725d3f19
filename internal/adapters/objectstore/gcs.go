package objectstore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const defaultGCSBaseURL = "https://storage.googleapis.com"

// GCS uploads objects to a Google Cloud Storage bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCS creates a GCS uploader. An empty baseURL yields
// https://storage.googleapis.com/<bucket>/<key> URLs; otherwise URLs are
// <baseURL>/<key>.
func NewGCS(ctx context.Context, bucket, baseURL string, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if baseURL == "" {
		baseURL = defaultGCSBaseURL + "/" + bucket
	}
	return &GCS{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes data to bucket/key.
func (g *GCS) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gs://%s/%s: %w", g.bucket, key, err)
	}
	// The object only exists once Close succeeds.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", g.bucket, key, err)
	}
	return g.URL(key), nil
}

// URL returns the public URL of key.
func (g *GCS) URL(key string) string {
	return g.baseURL + "/" + key
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
