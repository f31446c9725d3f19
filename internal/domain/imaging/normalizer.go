// Package imaging turns encoded image bytes into model-ready tensors.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/okian/oralscan/internal/domain/model"
)

const (
	defaultSize      = 224
	defaultMaxPixels = 64 << 20
	channels         = 3
)

// ErrInvalidImage is returned for bytes that cannot be decoded into an RGB image.
var ErrInvalidImage = errors.New("invalid image")

// Layout is the tensor memory order expected by the model.
type Layout string

const (
	// LayoutNHWC is [1,H,W,3], the Keras export order.
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is [1,3,H,W], the PyTorch export order.
	LayoutNCHW Layout = "nchw"
)

// ParseLayout accepts nhwc or nchw in any case.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutNHWC, LayoutNCHW:
		return l, nil
	default:
		return "", fmt.Errorf("unknown tensor layout %q", s)
	}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithSize sets the square edge of the output tensor.
func WithSize(size int) Option {
	return func(n *Normalizer) {
		if size > 0 {
			n.size = size
		}
	}
}

// WithLayout sets the output tensor layout.
func WithLayout(l Layout) Option {
	return func(n *Normalizer) {
		if l == LayoutNHWC || l == LayoutNCHW {
			n.layout = l
		}
	}
}

// WithMaxPixels bounds the decoded width*height; larger images are rejected
// from their header before any pixel data is decoded.
func WithMaxPixels(p int) Option {
	return func(n *Normalizer) {
		if p > 0 {
			n.maxPixels = p
		}
	}
}

// Normalizer decodes, resizes and scales images. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	size      int
	layout    Layout
	maxPixels int
}

// NewNormalizer creates a Normalizer producing 224x224 NHWC tensors by default.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		size:      defaultSize,
		layout:    LayoutNHWC,
		maxPixels: defaultMaxPixels,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Size returns the output edge length.
func (n *Normalizer) Size() int { return n.size }

// Shape returns the tensor shape produced by Normalize.
func (n *Normalizer) Shape() []int64 {
	s := int64(n.size)
	if n.layout == LayoutNCHW {
		return []int64{1, channels, s, s}
	}
	return []int64{1, s, s, channels}
}

// Normalize decodes raw, resizes it bilinearly to Size x Size and scales each
// RGB channel to [0,1]. Alpha is dropped; grayscale and paletted inputs are
// expanded to three channels.
func (n *Normalizer) Normalize(raw []byte) (model.Tensor, error) {
	if len(raw) == 0 {
		return model.Tensor{}, fmt.Errorf("%w: empty input", ErrInvalidImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return model.Tensor{}, fmt.Errorf("%w: zero-area image %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > n.maxPixels {
		return model.Tensor{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, n.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return model.Tensor{}, fmt.Errorf("%w: zero-area image", ErrInvalidImage)
	}

	edge := uint(n.size) //nolint:gosec // size is validated positive
	resized := resize.Resize(edge, edge, img, resize.Bilinear)

	return model.Tensor{Shape: n.Shape(), Data: n.pixels(resized)}, nil
}

func (n *Normalizer) pixels(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, channels*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// RGBA returns 16-bit premultiplied values; the high byte is the 8-bit sample.
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rgb := [channels]float32{
				float32(r>>8) / 255,
				float32(g>>8) / 255,
				float32(bl>>8) / 255,
			}
			i := y*w + x
			for c, v := range rgb {
				if n.layout == LayoutNCHW {
					data[c*plane+i] = v
				} else {
					data[i*channels+c] = v
				}
			}
		}
	}
	return data
}

// Sniff reports the registered image format of raw from its header, or ""
// when no decoder recognises it.
func Sniff(raw []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return format
}
