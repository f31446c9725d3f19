// Package types contains common types used across the application
package types

import (
	"math"
	"time"

	"github.com/okian/oralscan/internal/domain/model"
)

// Prediction statuses reported to callers.
const (
	StatusConfirmed   = "confirmed"
	StatusNotDetected = "not_detected"
)

// LowConfidenceMessage accompanies every not_detected result.
const LowConfidenceMessage = "Confidence is too low for reliable prediction."

// PredictResult is the orchestrator's answer to one prediction request.
// Confirmed results carry the persisted record fields; not_detected results
// only carry Confidence, Message and ImageURL.
type PredictResult struct {
	Status      string
	Class       string
	Confidence  float32
	Description string
	Treatment   string
	ImageURL    string
	Message     string
	ID          string
	CreatedAt   time.Time
}

// PredictResponse is the JSON body of POST /predict.
type PredictResponse struct {
	Status      string  `json:"status"`
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
	Treatment   string  `json:"treatment,omitempty"`
	ImageURL    string  `json:"imageUrl"`
	Message     string  `json:"message,omitempty"`
	ID          string  `json:"id,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

// HistoryEntry is one element of the GET /history data array.
type HistoryEntry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	Treatment   string  `json:"treatment"`
	ImageURL    string  `json:"imageUrl"`
	CreatedAt   string  `json:"createdAt"`
}

// HistoryResponse is the JSON body of GET /history.
type HistoryResponse struct {
	Status string         `json:"status"`
	Data   []HistoryEntry `json:"data"`
}

// FormatTimestamp renders a stored UTC instant for display in loc.
// A nil loc means UTC.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339Nano)
}

// NewPredictResponse converts a result for the wire.
func NewPredictResponse(r *PredictResult, loc *time.Location) PredictResponse {
	resp := PredictResponse{
		Status:      r.Status,
		Class:       r.Class,
		Confidence:  roundConfidence(r.Confidence),
		Description: r.Description,
		Treatment:   r.Treatment,
		ImageURL:    r.ImageURL,
		Message:     r.Message,
		ID:          r.ID,
	}
	if !r.CreatedAt.IsZero() {
		resp.CreatedAt = FormatTimestamp(r.CreatedAt, loc)
	}
	return resp
}

// NewHistoryResponse converts records for the wire, keeping their order.
func NewHistoryResponse(records []model.PredictionRecord, loc *time.Location) HistoryResponse {
	data := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		data = append(data, HistoryEntry{
			ID:          r.ID,
			Name:        r.Name,
			Confidence:  roundConfidence(r.Confidence),
			Description: r.Description,
			Treatment:   r.Treatment,
			ImageURL:    r.ImageURL,
			CreatedAt:   FormatTimestamp(r.CreatedAt, loc),
		})
	}
	return HistoryResponse{Status: "success", Data: data}
}

// roundConfidence widens a float32 score without exposing float32 noise
// (0.9 instead of 0.8999999761581421).
func roundConfidence(c float32) float64 {
	return math.Round(float64(c)*1e6) / 1e6
}
