package onnx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/oralscan/internal/adapters/onnx"
	"github.com/okian/oralscan/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given no environment", t, func() {
		Convey("When shutting down", func() {
			Convey("Then it is a no-op", func() {
				So(onnx.Shutdown(), ShouldBeNil)
			})
		})

		Convey("When the shared library does not exist", func() {
			err := onnx.Init(filepath.Join(t.TempDir(), "libonnxruntime.so"))

			Convey("Then initialization fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

// TestRunner needs a real runtime and model:
//
//	ORALSCAN_TEST_ONNX_LIB=/usr/lib/libonnxruntime.so ORALSCAN_TEST_MODEL=models/oral_disease.onnx go test ./internal/adapters/onnx/
func TestRunner(t *testing.T) {
	lib, path := os.Getenv("ORALSCAN_TEST_ONNX_LIB"), os.Getenv("ORALSCAN_TEST_MODEL")
	if lib == "" || path == "" {
		t.Skip("ORALSCAN_TEST_ONNX_LIB and ORALSCAN_TEST_MODEL not set")
	}

	Convey("Given the oral disease model", t, func() {
		So(onnx.Init(lib), ShouldBeNil)
		defer func() { So(onnx.Shutdown(), ShouldBeNil) }()

		spec := onnx.Spec{
			ModelPath:   path,
			InputName:   "input",
			OutputName:  "output",
			InputShape:  []int64{1, 224, 224, 3},
			OutputWidth: len(model.DefaultLabels()),
		}
		runners, err := onnx.NewRunners(spec, 2)
		So(err, ShouldBeNil)
		defer func() {
			for _, r := range runners {
				So(r.Close(), ShouldBeNil)
			}
		}()

		Convey("When running a uniform gray image", func() {
			data := make([]float32, 224*224*3)
			for i := range data {
				data[i] = 0.5
			}
			dist, err := runners[1].Run(model.Tensor{Shape: spec.InputShape, Data: data})

			Convey("Then the output is a probability distribution over the labels", func() {
				So(err, ShouldBeNil)
				So(len(dist), ShouldEqual, spec.OutputWidth)
				var sum float32
				for _, v := range dist {
					So(v, ShouldBeBetweenOrEqual, 0, 1)
					sum += v
				}
				So(sum, ShouldAlmostEqual, 1, 0.01)
			})
		})

		Convey("When the input has the wrong size", func() {
			_, err := runners[0].Run(model.Tensor{Data: make([]float32, 10)})

			Convey("Then it is rejected before inference", func() {
				So(errors.Is(err, onnx.ErrShapeMismatch), ShouldBeTrue)
			})
		})
	})
}
