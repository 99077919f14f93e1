package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

// gradientImage compresses well, a good stand-in for photographic input.
func gradientImage(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x + y) * 255 / (w + h)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// noiseImage resists compression, forcing the quality loop to work.
func noiseImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.Set(x, y, color.RGBA{
				R: uint8(seed >> 24),
				G: uint8(seed >> 16),
				B: uint8(seed >> 8),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNormalizeUniformOutput(t *testing.T) {
	// Already under budget, still re-encoded as a JPEG at initial quality.
	img, err := Normalize(gradientImage(50, 40), Options{})
	if err != nil {
		t.Fatal(err)
	}

	if expected, actual := 50, img.Width; expected != actual {
		t.Errorf("expected width %d, got %d", expected, actual)
	}
	if expected, actual := 40, img.Height; expected != actual {
		t.Errorf("expected height %d, got %d", expected, actual)
	}
	if expected, actual := 80, img.Quality; expected != actual {
		t.Errorf("expected quality %d, got %d", expected, actual)
	}
	if !strings.HasPrefix(img.DataURI(), "data:image/jpeg;base64,") {
		t.Errorf("unexpected data URI prefix: %.40q", img.DataURI())
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	img, err := Normalize(gradientImage(200, 100), Options{MaxDim: 1024})
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 200 || img.Height != 100 {
		t.Errorf("expected 200x100, got %dx%d", img.Width, img.Height)
	}
}

func TestNormalizeClampsDimensions(t *testing.T) {
	img, err := Normalize(gradientImage(200, 100), Options{MaxDim: 64})
	if err != nil {
		t.Fatal(err)
	}
	// Aspect ratio preserved, longest edge clamped.
	if img.Width != 64 || img.Height != 32 {
		t.Errorf("expected 64x32, got %dx%d", img.Width, img.Height)
	}
}

func TestNormalizeMeetsBudget(t *testing.T) {
	img, err := Normalize(gradientImage(1600, 1200), Options{BudgetKB: 80})
	if err != nil {
		t.Fatal(err)
	}
	if img.SizeKB() > 80 {
		t.Errorf("expected <= 80KB, got %.1fKB", img.SizeKB())
	}
	if img.Width > 1024 || img.Height > 1024 {
		t.Errorf("expected dimensions within 1024, got %dx%d", img.Width, img.Height)
	}
}

func TestNormalizeQualityLoopMonotonic(t *testing.T) {
	scaled := scaleToFit(noiseImage(800, 600), 1024)

	prev := -1
	for quality := 80; quality >= 30; quality -= 10 {
		buf, err := encodeJPEG(scaled, quality)
		if err != nil {
			t.Fatal(err)
		}
		if prev >= 0 && len(buf) > prev {
			t.Errorf("size increased at quality %d: %d > %d", quality, len(buf), prev)
		}
		prev = len(buf)
	}
}

func TestNormalizeFallbackPass(t *testing.T) {
	// Noise cannot reach a 1KB budget, so the fallback pass must run and its
	// result is accepted even though it exceeds the budget.
	img, err := Normalize(encodePNG(t, noiseImage(1600, 1200)), Options{BudgetKB: 1})
	if err != nil {
		t.Fatal(err)
	}
	if img.Width > 512 || img.Height > 512 {
		t.Errorf("expected fallback dimensions within 512, got %dx%d", img.Width, img.Height)
	}
	if expected, actual := 70, img.Quality; expected != actual {
		t.Errorf("expected fallback quality %d, got %d", expected, actual)
	}
}

func TestNormalizeFallbackRespectsMaxDim(t *testing.T) {
	// A cap tighter than the fallback dimension still binds on the fallback
	// pass.
	img, err := Normalize(encodePNG(t, noiseImage(1600, 1200)), Options{MaxDim: 256, BudgetKB: 1})
	if err != nil {
		t.Fatal(err)
	}
	if img.Width > 256 || img.Height > 256 {
		t.Errorf("expected dimensions within 256, got %dx%d", img.Width, img.Height)
	}
	if expected, actual := 70, img.Quality; expected != actual {
		t.Errorf("expected fallback quality %d, got %d", expected, actual)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.data, Options{})
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestPassthrough(t *testing.T) {
	uri := Passthrough(gradientImage(4, 4))
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("unexpected data URI prefix: %.40q", uri)
	}
}
