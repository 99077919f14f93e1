// Package imaging normalizes uploaded images into bounded-size JPEG payloads
// suitable for inlining into provider requests.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MimeType is the output format of every normalized image.
const MimeType = "image/jpeg"

// ErrDecode indicates the input bytes are empty or not a decodable image.
var ErrDecode = errors.New("cannot decode image")

// Options tune the normalization pass. Zero values take the defaults.
type Options struct {
	MaxDim   int // longest permitted edge, default 1024
	BudgetKB int // target encoded size in KB, default 100

	InitialQuality int // default 80
	QualityFloor   int // default 30
	QualityStep    int // default 10

	// One extra pass at these settings runs if the quality floor still
	// exceeds the budget. Its result is accepted unconditionally.
	FallbackDim     int // default 512
	FallbackQuality int // default 70
}

func (o *Options) applyDefaults() {
	if o.MaxDim <= 0 {
		o.MaxDim = 1024
	}
	if o.BudgetKB <= 0 {
		o.BudgetKB = 100
	}
	if o.InitialQuality <= 0 {
		o.InitialQuality = 80
	}
	if o.QualityFloor <= 0 {
		o.QualityFloor = 30
	}
	if o.QualityStep <= 0 {
		o.QualityStep = 10
	}
	if o.FallbackDim <= 0 {
		o.FallbackDim = 512
	}
	if o.FallbackQuality <= 0 {
		o.FallbackQuality = 70
	}
}

// Image is a normalized JPEG payload.
type Image struct {
	Bytes   []byte
	Width   int
	Height  int
	Quality int // quality of the final encode
}

// SizeKB returns the encoded size in kilobytes.
func (im *Image) SizeKB() float64 {
	return float64(len(im.Bytes)) / 1024
}

// DataURI wraps the payload as a self-describing base64 data URI.
func (im *Image) DataURI() string {
	return "data:" + MimeType + ";base64," + base64.StdEncoding.EncodeToString(im.Bytes)
}

// Normalize decodes raw image bytes and re-encodes them as a JPEG no larger
// than MaxDim on either edge, iteratively lowering quality until the size
// budget is met or the quality floor is reached. The input is re-encoded
// even when it is already under budget so that output format is uniform.
// The budget can be exceeded only when the fallback pass still cannot meet
// it; callers get the best-effort result rather than an error.
func Normalize(raw []byte, opts Options) (*Image, error) {
	opts.applyDefaults()

	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	budget := opts.BudgetKB * 1024
	scaled := scaleToFit(src, opts.MaxDim)

	quality := opts.InitialQuality
	buf, err := encodeJPEG(scaled, quality)
	if err != nil {
		return nil, err
	}

	for len(buf) > budget && quality > opts.QualityFloor {
		quality -= opts.QualityStep
		if buf, err = encodeJPEG(scaled, quality); err != nil {
			return nil, err
		}
	}

	if len(buf) > budget {
		// The fallback never exceeds the configured cap, even when that cap
		// is tighter than the fallback dimension.
		scaled = scaleToFit(src, min(opts.FallbackDim, opts.MaxDim))
		quality = opts.FallbackQuality
		if buf, err = encodeJPEG(scaled, quality); err != nil {
			return nil, err
		}
	}

	b := scaled.Bounds()
	return &Image{Bytes: buf, Width: b.Dx(), Height: b.Dy(), Quality: quality}, nil
}

// Passthrough wraps raw bytes as a data URI without re-encoding. This is a
// degraded mode: the size budget is not enforced and the MIME type is
// sniffed from the content.
func Passthrough(raw []byte) string {
	return "data:" + http.DetectContentType(raw) + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// scaleToFit shrinks src so both edges are at most maxDim, preserving aspect
// ratio. Images already inside the bound are returned unchanged, never
// upscaled.
func scaleToFit(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
