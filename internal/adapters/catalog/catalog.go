// Package catalog looks up reference text for disease labels.
package catalog

import (
	"context"
	"errors"

	"github.com/okian/oralscan/internal/domain/model"
)

// ErrUnavailable wraps backend failures. Callers treat it like a miss.
var ErrUnavailable = errors.New("disease catalog unavailable")

// Catalog maps a label to its DiseaseInfo. A missing entry is (zero, false, nil).
type Catalog interface {
	Get(ctx context.Context, label model.ClassLabel) (model.DiseaseInfo, bool, error)
}

// Memory is a read-only in-process catalog.
type Memory struct {
	entries map[model.ClassLabel]model.DiseaseInfo
}

// NewMemory copies entries into a new catalog. Entries without a Name get the label.
func NewMemory(entries map[model.ClassLabel]model.DiseaseInfo) *Memory {
	m := &Memory{entries: make(map[model.ClassLabel]model.DiseaseInfo, len(entries))}
	for label, info := range entries {
		if info.Name == "" {
			info.Name = string(label)
		}
		m.entries[label] = info
	}
	return m
}

// Get returns the entry for label.
func (m *Memory) Get(ctx context.Context, label model.ClassLabel) (model.DiseaseInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.DiseaseInfo{}, false, err
	}
	info, ok := m.entries[label]
	return info, ok, nil
}

// Len returns the number of entries.
func (m *Memory) Len() int { return len(m.entries) }
