// Package vision prepares page and image bytes for transcription by a
// vision model.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSide bounds the longer edge sent to the model.
const DefaultMaxSide = 2048

var ErrEmptyImage = errors.New("empty image")

// Prepare decodes data, scales it down so that its longer side is at most
// maxSide and returns PNG bytes. Images already within bounds are passed
// through unchanged with their original media type.
func Prepare(data []byte, mediaType string, maxSide int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, "", err
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSide && h <= maxSide && mediaType != "image/webp" {
		return data, mediaType, nil
	}

	dw, dh := fit(w, h, maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode png failed: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

func fit(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Try JPEG and PNG explicitly (image.Decode may not recognize some)
		img, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			img, err = png.Decode(bytes.NewReader(data))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode image failed: %w", err)
	}
	return img, nil
}
