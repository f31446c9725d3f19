package config_test

import (
	"errors"
	"testing"

	"github.com/okian/oralscan/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.9)
			convey.So(cfg.ClassNames, convey.ShouldResemble, []string{
				"calculus", "caries", "gingivitis", "hypodontia", "tooth_discoloration", "ulcer",
			})
			convey.So(cfg.ImageSize, convey.ShouldEqual, 224)
			convey.So(cfg.InputLayout, convey.ShouldEqual, "nhwc")
			convey.So(cfg.InferenceWorkers, convey.ShouldBeGreaterThanOrEqualTo, 1)
			convey.So(cfg.RecordStore, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.PredictionsCollection, convey.ShouldEqual, "predictions")
			convey.So(cfg.DiseasesCollection, convey.ShouldEqual, "diseases")
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.Location().String(), convey.ShouldEqual, "UTC")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs that break one rule each", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"zero threshold", func(c *config.Config) { c.ConfidenceThreshold = 0 }},
			{"threshold above one", func(c *config.Config) { c.ConfidenceThreshold = 1.5 }},
			{"no labels", func(c *config.Config) { c.ClassNames = nil }},
			{"duplicate labels", func(c *config.Config) { c.ClassNames = []string{"caries", "caries"} }},
			{"blank label", func(c *config.Config) { c.ClassNames = []string{"caries", " "} }},
			{"bad layout", func(c *config.Config) { c.InputLayout = "hwcn" }},
			{"zero image size", func(c *config.Config) { c.ImageSize = 0 }},
			{"zero upload limit", func(c *config.Config) { c.MaxUploadBytes = 0 }},
			{"gcs without bucket", func(c *config.Config) { c.ObjectStore = config.BackendGCS }},
			{"unknown object store", func(c *config.Config) { c.ObjectStore = "s3" }},
			{"firestore without id", func(c *config.Config) { c.RecordStore = config.BackendFirestore }},
			{"postgres without dsn", func(c *config.Config) { c.CatalogStore = config.BackendPostgres }},
			{"file record store", func(c *config.Config) { c.RecordStore = config.BackendFile }},
			{"file catalog without it", func(c *config.Config) { c.CatalogStore = config.BackendFile }},
			{"unknown timezone", func(c *config.Config) { c.DisplayTimezone = "Mars/Olympus" }},
			{"zero inference workers", func(c *config.Config) { c.InferenceWorkers = 0 }},
			{"negative inference queue", func(c *config.Config) { c.InferenceQueueSize = -1 }},
		}

		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)

			convey.Convey("When validating "+tc.name, func() {
				err := cfg.Validate()

				convey.Convey("Then it fails with ErrInvalidConfig", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})

	convey.Convey("Given fully specified remote backends", t, func() {
		cfg := config.New()
		cfg.ObjectStore = config.BackendGCS
		cfg.GCSBucket = "oral-images"
		cfg.RecordStore = config.BackendFirestore
		cfg.FirestoreProjectID = "oral-scan"
		cfg.CatalogStore = config.BackendPostgres
		cfg.PostgresDSN = "postgres://localhost/oral"
		cfg.DisplayTimezone = "Asia/Jakarta"

		convey.So(cfg.Validate(), convey.ShouldBeNil)
		convey.So(cfg.Location().String(), convey.ShouldEqual, "Asia/Jakarta")
	})
}
