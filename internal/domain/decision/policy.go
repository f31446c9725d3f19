// Package decision turns a class distribution into a confirmed or rejected outcome.
package decision

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/oralscan/internal/domain/model"
)

// DefaultThreshold is the minimum top score for a confirmed outcome.
const DefaultThreshold = 0.9

var (
	// ErrEmptyDistribution is returned when there is nothing to decide on.
	ErrEmptyDistribution = errors.New("empty distribution")
	// ErrLabelMismatch is returned when distribution and label set sizes differ.
	ErrLabelMismatch = errors.New("distribution does not match label set")
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithThreshold sets the confirmation threshold; values outside (0,1] are ignored.
func WithThreshold(t float64) Option {
	return func(p *Policy) {
		if t > 0 && t <= 1 {
			p.threshold = float32(t)
		}
	}
}

// Policy is an argmax classifier with a confidence gate. It is immutable
// after construction.
type Policy struct {
	labels    model.Labels
	threshold float32
}

// NewPolicy creates a policy over labels.
func NewPolicy(labels model.Labels, opts ...Option) *Policy {
	p := &Policy{
		labels:    labels,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Threshold returns the confirmation threshold.
func (p *Policy) Threshold() float32 { return p.threshold }

// Decide picks the highest score, lowest index on ties, and confirms it when
// it reaches the threshold. NaN scores never win.
func (p *Policy) Decide(d model.Distribution) (model.Outcome, error) {
	if len(d) == 0 {
		return model.Outcome{}, ErrEmptyDistribution
	}
	if len(d) != len(p.labels) {
		return model.Outcome{}, fmt.Errorf("%w: %d scores for %d labels", ErrLabelMismatch, len(d), len(p.labels))
	}

	idx := Argmax(d)
	if idx < 0 {
		return model.Outcome{Kind: model.Rejected}, nil
	}
	conf := d[idx]
	if conf < p.threshold {
		return model.Outcome{Kind: model.Rejected, Index: idx, Confidence: conf}, nil
	}
	return model.Outcome{
		Kind:       model.Confirmed,
		Label:      p.labels[idx],
		Index:      idx,
		Confidence: conf,
	}, nil
}

// Argmax returns the index of the largest score, the lowest such index on
// ties, or -1 when d is empty or all NaN.
func Argmax(d model.Distribution) int {
	best := -1
	for i, v := range d {
		if math.IsNaN(float64(v)) {
			continue
		}
		if best < 0 || v > d[best] {
			best = i
		}
	}
	return best
}
