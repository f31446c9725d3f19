// Package loadtest drives a running service with image uploads and checks
// that every identity sees exactly its own confirmed predictions.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	ImageDir   string        // Directory of images to upload; synthetic images when empty
	Repeat     int           // Times every image is submitted
	Identities int           // Number of synthetic callers
	Workers    int           // Number of concurrent uploads
	Timeout    time.Duration // HTTP request timeout
	Token      string        // Optional bearer token sent with every request
	Verbose    bool          // Enable per-request logging
}

// Upload is one image submitted under one identity.
type Upload struct {
	Identity string
	Name     string
	Data     []byte
}

// Stats holds run statistics.
type Stats struct {
	Submitted   int
	Confirmed   int
	NotDetected int
	Busy        int
	Failed      int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// predictResponse is the subset of the /predict body the tool reads.
type predictResponse struct {
	Status string `json:"status"`
	Class  string `json:"class"`
	ID     string `json:"id"`
}

type historyEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type historyResponse struct {
	Status string         `json:"status"`
	Data   []historyEntry `json:"data"`
}
