package loadtest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true}

// syntheticImages is how many generated images stand in for an empty ImageDir.
const syntheticImages = 4

// loadImages reads every image file directly inside dir.
func loadImages(dir string) (map[string][]byte, error) {
	if dir == "" {
		return synthesize(syntheticImages)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image dir: %w", err)
	}
	out := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out[e.Name()] = data
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	return out, nil
}

// synthesize returns n small solid-colour PNGs.
func synthesize(n int) (map[string][]byte, error) {
	out := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 64))
		c := color.RGBA{R: uint8(180 + i*15), G: uint8(60 + i*30), B: uint8(70 + i*20), A: 255}
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				img.Set(x, y, c)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		out[fmt.Sprintf("synthetic-%d.png", i)] = buf.Bytes()
	}
	return out, nil
}

// plan spreads Repeat copies of every image round-robin across fresh identities.
func plan(cfg *Config, images map[string][]byte) ([]Upload, []string) {
	identities := make([]string, max(1, cfg.Identities))
	for i := range identities {
		identities[i] = "load-" + uuid.NewString()
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}

	var uploads []Upload
	for r := 0; r < max(1, cfg.Repeat); r++ {
		for _, name := range names {
			uploads = append(uploads, Upload{
				Identity: identities[len(uploads)%len(identities)],
				Name:     name,
				Data:     images[name],
			})
		}
	}
	return uploads, identities
}
