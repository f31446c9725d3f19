package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // display_timezone must resolve on hosts without a zoneinfo database

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "ORALSCAN_"
	envFileVar = "ORALSCAN_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ORALSCAN_CONFIG is set
//  3. env (prefix ORALSCAN_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ORALSCAN_QUEUE_SIZE -> queue_size; underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envFileVar {
			return ""
		}
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			// "a,b,c" from env becomes a slice; "30s" becomes a time.Duration.
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			// ZeroFields replaces default slices instead of overwriting them element by element.
			WeaklyTypedInput: true,
			ZeroFields:       true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	for i, name := range cfg.ClassNames {
		cfg.ClassNames[i] = strings.TrimSpace(name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1:
		return invalid("confidence_threshold must be in (0,1], got %v", c.ConfidenceThreshold)
	case len(c.ClassNames) == 0:
		return invalid("class_names must not be empty")
	case c.ImageSize <= 0:
		return invalid("image_size must be positive, got %d", c.ImageSize)
	case c.InferenceWorkers <= 0:
		return invalid("inference_workers must be positive, got %d", c.InferenceWorkers)
	case c.InferenceQueueSize <= 0:
		return invalid("inference_queue_size must be positive, got %d", c.InferenceQueueSize)
	case c.MaxUploadBytes <= 0:
		return invalid("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}

	seen := make(map[string]struct{}, len(c.ClassNames))
	for _, name := range c.ClassNames {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("class_names contains an empty label")
		}
		if _, dup := seen[name]; dup {
			return invalid("class_names contains duplicate label %q", name)
		}
		seen[name] = struct{}{}
	}

	switch strings.ToLower(c.InputLayout) {
	case "nhwc", "nchw":
	default:
		return invalid("input_layout must be nhwc or nchw, got %q", c.InputLayout)
	}

	switch c.ObjectStore {
	case BackendMemory:
	case BackendGCS:
		if c.GCSBucket == "" {
			return invalid("gcs_bucket is required when object_store is gcs")
		}
	default:
		return invalid("unknown object_store %q", c.ObjectStore)
	}

	for key, backend := range map[string]string{"record_store": c.RecordStore, "catalog_store": c.CatalogStore} {
		switch backend {
		case BackendMemory:
		case BackendFirestore:
			if c.FirestoreProjectID == "" {
				return invalid("firestore_project_id is required when %s is firestore", key)
			}
		case BackendPostgres:
			if c.PostgresDSN == "" {
				return invalid("postgres_dsn is required when %s is postgres", key)
			}
		case BackendFile:
			if key != "catalog_store" {
				return invalid("unknown %s %q", key, backend)
			}
			if c.CatalogFile == "" {
				return invalid("catalog_file is required when catalog_store is file")
			}
		default:
			return invalid("unknown %s %q", key, backend)
		}
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return invalid("display_timezone %q: %v", c.DisplayTimezone, err)
	}
	return nil
}

// Location resolves DisplayTimezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
