// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotDetected is the label reported when no class clears the confidence threshold.
const NotDetected = "Not detected"

// ClassLabel names one disease category.
type ClassLabel string

// Labels is the ordered label set; index i names the i-th model output.
type Labels []ClassLabel

// DefaultLabels mirrors the output order of the shipped oral-disease model.
func DefaultLabels() Labels {
	return Labels{"calculus", "caries", "gingivitis", "hypodontia", "tooth_discoloration", "ulcer"}
}

// ErrInvalidLabels is returned by NewLabels for empty, blank or duplicate names.
var ErrInvalidLabels = errors.New("invalid label set")

// NewLabels builds an immutable label set from names in model output order.
func NewLabels(names []string) (Labels, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidLabels)
	}
	out := make(Labels, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("%w: blank label at index %d", ErrInvalidLabels, i)
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidLabels, n)
		}
		seen[n] = struct{}{}
		out[i] = ClassLabel(n)
	}
	return out, nil
}

// At returns the label at index i.
func (l Labels) At(i int) (ClassLabel, bool) {
	if i < 0 || i >= len(l) {
		return "", false
	}
	return l[i], true
}

// Distribution is a softmax output, one score per label in Labels order.
type Distribution []float32

// DiseaseInfo is the catalog entry for a label.
type DiseaseInfo struct {
	Name        string
	Description string
	Treatment   string
}

// OutcomeKind distinguishes accepted from rejected classifications.
type OutcomeKind int

const (
	Rejected OutcomeKind = iota
	Confirmed
)

func (k OutcomeKind) String() string {
	if k == Confirmed {
		return "confirmed"
	}
	return "not_detected"
}

// Outcome is the decision over a Distribution. Label and Index are only
// meaningful when Kind is Confirmed.
type Outcome struct {
	Kind       OutcomeKind
	Label      ClassLabel
	Index      int
	Confidence float32
}

// IsConfirmed reports whether the outcome passed the threshold.
func (o Outcome) IsConfirmed() bool { return o.Kind == Confirmed }

// PredictionRecord is the immutable audit entry of a confirmed prediction.
type PredictionRecord struct {
	ID          string
	Identity    string
	Name        string
	Confidence  float32
	Description string
	Treatment   string
	ImageURL    string
	CreatedAt   time.Time
}

// CanonicalTimeLayout is a fixed-width UTC layout; its strings sort chronologically.
const CanonicalTimeLayout = "2006-01-02T15:04:05.000000000Z"

// CanonicalTime renders t in CanonicalTimeLayout after converting to UTC.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format(CanonicalTimeLayout)
}

// ParseCanonicalTime parses a stored createdAt string. RFC 3339 values written
// by other tools are accepted as well.
func ParseCanonicalTime(s string) (time.Time, error) {
	if t, err := time.Parse(CanonicalTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Tensor is a dense float32 model input with its shape, batch dimension first.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Len is the element count implied by Shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}
