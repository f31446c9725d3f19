package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/oralscan/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.9)
				convey.So(len(cfg.ClassNames), convey.ShouldEqual, 6)
				convey.So(cfg.ModelDownloadTimeout, convey.ShouldEqual, 5*time.Minute)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ORALSCAN_ADDR", ":9090")
			_ = os.Setenv("ORALSCAN_CONFIDENCE_THRESHOLD", "0.75")
			_ = os.Setenv("ORALSCAN_INFERENCE_WORKERS", "3")
			_ = os.Setenv("ORALSCAN_CLASS_NAMES", "healthy, caries,ulcer")
			_ = os.Setenv("ORALSCAN_MODEL_DOWNLOAD_TIMEOUT", "45s")
			_ = os.Setenv("ORALSCAN_JWT_SECRET", "s3cret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.75)
				convey.So(cfg.InferenceWorkers, convey.ShouldEqual, 3)
				convey.So(cfg.ClassNames, convey.ShouldResemble, []string{"healthy", "caries", "ulcer"})
				convey.So(cfg.ModelDownloadTimeout, convey.ShouldEqual, 45*time.Second)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "s3cret")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
confidence_threshold: 0.8
class_names: [calculus, caries, ulcer]
record_store: firestore
firestore_project_id: oral-scan
predictions_collection: audit
model_download_timeout: 2m
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ORALSCAN_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.8)
				convey.So(cfg.ClassNames, convey.ShouldResemble, []string{"calculus", "caries", "ulcer"})
				convey.So(cfg.RecordStore, convey.ShouldEqual, config.BackendFirestore)
				convey.So(cfg.PredictionsCollection, convey.ShouldEqual, "audit")
				convey.So(cfg.DiseasesCollection, convey.ShouldEqual, "diseases")
				convey.So(cfg.ModelDownloadTimeout, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.ImageSize, convey.ShouldEqual, 224)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
inference_workers: 4
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ORALSCAN_CONFIG", tmpFile)
			_ = os.Setenv("ORALSCAN_ADDR", ":6060")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.InferenceWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ORALSCAN_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ORALSCAN_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("ORALSCAN_INFERENCE_WORKERS", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the worker count is negative", func() {
			_ = os.Setenv("ORALSCAN_INFERENCE_WORKERS", "-2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "inference_workers")
			})
		})

		convey.Convey("When the threshold is out of range", func() {
			_ = os.Setenv("ORALSCAN_CONFIDENCE_THRESHOLD", "1.2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "confidence_threshold")
			})
		})
	})
}

// createTempConfigFile creates a temporary YAML config file with the given content.
func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "oralscan-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}

// clearConfigEnvVars removes every ORALSCAN_ variable the tests touch.
func clearConfigEnvVars() {
	for _, v := range []string{
		"ORALSCAN_CONFIG",
		"ORALSCAN_ADDR",
		"ORALSCAN_CONFIDENCE_THRESHOLD",
		"ORALSCAN_INFERENCE_WORKERS",
		"ORALSCAN_CLASS_NAMES",
		"ORALSCAN_MODEL_DOWNLOAD_TIMEOUT",
		"ORALSCAN_JWT_SECRET",
	} {
		_ = os.Unsetenv(v)
	}
}
