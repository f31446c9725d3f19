package imaging_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/okian/oralscan/internal/domain/imaging"
	. "github.com/smartystreets/goconvey/convey"
)

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNormalize(t *testing.T) {
	Convey("Given a default normalizer", t, func() {
		n := imaging.NewNormalizer()

		Convey("When normalizing images of several formats and sizes", func() {
			var jpg, bm bytes.Buffer
			So(jpeg.Encode(&jpg, gradient(640, 480), &jpeg.Options{Quality: 90}), ShouldBeNil)
			So(bmp.Encode(&bm, gradient(31, 77)), ShouldBeNil)

			gray := image.NewGray(image.Rect(0, 0, 50, 50))
			for i := range gray.Pix {
				gray.Pix[i] = uint8(i % 256)
			}

			inputs := map[string][]byte{
				"png":  encodePNG(gradient(300, 200)),
				"jpeg": jpg.Bytes(),
				"bmp":  bm.Bytes(),
				"gray": encodePNG(gray),
				"tiny": encodePNG(gradient(1, 1)),
			}

			Convey("Then every tensor is 224x224x3 with values in [0,1]", func() {
				for name, raw := range inputs {
					tensor, err := n.Normalize(raw)
					So(err, ShouldBeNil)
					So(tensor.Shape, ShouldResemble, []int64{1, 224, 224, 3})
					So(len(tensor.Data), ShouldEqual, 224*224*3)
					So(tensor.Len(), ShouldEqual, len(tensor.Data))
					for _, v := range tensor.Data {
						if v < 0 || v > 1 {
							So(name, ShouldEqual, "value out of range")
						}
					}
				}
			})
		})

		Convey("When normalizing the same bytes twice", func() {
			raw := encodePNG(gradient(123, 321))
			a, errA := n.Normalize(raw)
			b, errB := n.Normalize(raw)

			Convey("Then the tensors are identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.Data, ShouldResemble, b.Data)
			})
		})

		Convey("When normalizing a solid red image", func() {
			tensor, err := n.Normalize(encodePNG(solid(10, 10, color.RGBA{R: 255, A: 255})))

			Convey("Then channels are scaled by 255 in RGB order", func() {
				So(err, ShouldBeNil)
				So(tensor.Data[0], ShouldAlmostEqual, 1.0, 0.01)
				So(tensor.Data[1], ShouldAlmostEqual, 0.0, 0.01)
				So(tensor.Data[2], ShouldAlmostEqual, 0.0, 0.01)
			})
		})

		Convey("When the input cannot be decoded", func() {
			for _, raw := range [][]byte{nil, {}, []byte("definitely not an image"), encodePNG(gradient(4, 4))[:20]} {
				_, err := n.Normalize(raw)
				So(errors.Is(err, imaging.ErrInvalidImage), ShouldBeTrue)
			}
		})
	})

	Convey("Given an NCHW normalizer", t, func() {
		nchw := imaging.NewNormalizer(imaging.WithLayout(imaging.LayoutNCHW), imaging.WithSize(8))
		nhwc := imaging.NewNormalizer(imaging.WithSize(8))
		raw := encodePNG(gradient(16, 16))

		Convey("When normalizing the same image in both layouts", func() {
			a, errA := nchw.Normalize(raw)
			b, errB := nhwc.Normalize(raw)

			Convey("Then shapes differ and values are a permutation", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.Shape, ShouldResemble, []int64{1, 3, 8, 8})
				So(b.Shape, ShouldResemble, []int64{1, 8, 8, 3})
				plane := 8 * 8
				for i := 0; i < plane; i++ {
					for c := 0; c < 3; c++ {
						So(a.Data[c*plane+i], ShouldEqual, b.Data[i*3+c])
					}
				}
			})
		})
	})

	Convey("Given a pixel limit", t, func() {
		n := imaging.NewNormalizer(imaging.WithMaxPixels(100))

		Convey("When the image header exceeds it", func() {
			_, err := n.Normalize(encodePNG(gradient(20, 20)))

			Convey("Then the image is rejected as invalid", func() {
				So(errors.Is(err, imaging.ErrInvalidImage), ShouldBeTrue)
			})
		})
	})
}

func TestParseLayout(t *testing.T) {
	Convey("Given layout names", t, func() {
		l, err := imaging.ParseLayout(" NCHW ")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, imaging.LayoutNCHW)

		_, err = imaging.ParseLayout("hwcn")
		So(err, ShouldNotBeNil)
	})
}

func TestSniff(t *testing.T) {
	Convey("Given encoded bytes", t, func() {
		var bm bytes.Buffer
		So(bmp.Encode(&bm, gradient(2, 2)), ShouldBeNil)

		So(imaging.Sniff(encodePNG(gradient(2, 2))), ShouldEqual, "png")
		So(imaging.Sniff(bm.Bytes()), ShouldEqual, "bmp")
		So(imaging.Sniff([]byte("text")), ShouldEqual, "")
	})
}
