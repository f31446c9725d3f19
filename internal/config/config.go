// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and ORALSCAN_* environment variables.
// - Validation failures wrap ErrInvalidConfig; provider failures wrap ErrLoadConfig.
package config

import (
	"runtime"
	"time"
)

// Backend names accepted by the *_store keys.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendGCS       = "gcs"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// MaxUploadBytes caps the multipart body accepted by POST /predict.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// ConfidenceThreshold is the minimum top score for a confirmed diagnosis.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	// ClassNames is the label set in model output order.
	ClassNames []string `koanf:"class_names"`
	// ImageSize is the square input edge expected by the model.
	ImageSize int `koanf:"image_size"`
	// InputLayout is nhwc or nchw.
	InputLayout string `koanf:"input_layout"`

	// ModelPath is where the ONNX artifact lives (or is downloaded to).
	ModelPath string `koanf:"model_path"`
	// ModelURL, when set, is downloaded to ModelPath at startup.
	ModelURL string `koanf:"model_url"`
	// ModelDownloadTimeout bounds the startup download including retries.
	ModelDownloadTimeout time.Duration `koanf:"model_download_timeout"`
	// ONNXLibraryPath points at the onnxruntime shared library.
	ONNXLibraryPath string `koanf:"onnx_library_path"`
	ONNXInputName   string `koanf:"onnx_input_name"`
	ONNXOutputName  string `koanf:"onnx_output_name"`

	// InferenceWorkers is the number of model sessions serving requests.
	InferenceWorkers int `koanf:"inference_workers"`
	// InferenceQueueSize bounds jobs waiting for a worker.
	InferenceQueueSize int `koanf:"inference_queue_size"`

	// ObjectStore selects image storage: memory or gcs.
	ObjectStore      string `koanf:"object_store"`
	GCSBucket        string `koanf:"gcs_bucket"`
	GCSPublicBaseURL string `koanf:"gcs_public_base_url"`
	ObjectPrefix     string `koanf:"object_prefix"`

	// RecordStore selects prediction persistence: memory, firestore or postgres.
	RecordStore string `koanf:"record_store"`
	// CatalogStore selects the disease catalog: memory, file, firestore or postgres.
	CatalogStore string `koanf:"catalog_store"`
	CatalogFile  string `koanf:"catalog_file"`

	FirestoreProjectID    string `koanf:"firestore_project_id"`
	GoogleCredentialsFile string `koanf:"google_credentials_file"`
	PredictionsCollection string `koanf:"predictions_collection"`
	DiseasesCollection    string `koanf:"diseases_collection"`

	PostgresDSN string `koanf:"postgres_dsn"`

	// JWTSecret enables bearer token identity verification when non-empty.
	JWTSecret string `koanf:"jwt_secret"`
	// DisplayTimezone is the IANA zone used when rendering createdAt.
	DisplayTimezone string `koanf:"display_timezone"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":8080",
		MaxUploadBytes:        10 << 20,
		ConfidenceThreshold:   0.9,
		ClassNames:            []string{"calculus", "caries", "gingivitis", "hypodontia", "tooth_discoloration", "ulcer"},
		ImageSize:             224,
		InputLayout:           "nhwc",
		ModelPath:             "models/oral_disease.onnx",
		ModelDownloadTimeout:  5 * time.Minute,
		ONNXInputName:         "input",
		ONNXOutputName:        "output",
		InferenceWorkers:      max(1, runtime.NumCPU()/2),
		InferenceQueueSize:    64,
		ObjectStore:           BackendMemory,
		ObjectPrefix:          "predictions",
		RecordStore:           BackendMemory,
		CatalogStore:          BackendMemory,
		PredictionsCollection: "predictions",
		DiseasesCollection:    "diseases",
		DisplayTimezone:       "UTC",
	}
}
