// Package objectstore uploads prediction images and returns their URLs.
package objectstore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyKey is returned when an upload has no object key.
var ErrEmptyKey = errors.New("object key is required")

// Uploader stores bytes under key and returns a URL that resolves to them.
// Uploading the same key twice overwrites it.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NewKey returns prefix/<uuid><ext>. ext may be empty.
func NewKey(prefix, ext string) string {
	name := uuid.NewString() + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
