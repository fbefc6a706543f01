// Package preprocess normalizes receipt photos before OCR.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// Preparer turns a raw source image stream into OCR-ready bytes. The result
// is fully buffered so every OCR retry attempt reads a fresh, independently
// positioned stream.
type Preparer interface {
	Prepare(ctx context.Context, r io.Reader) ([]byte, error)
}

// Grayscaler is the default Preparer: decode, cap the width, convert to
// grayscale, re-encode as PNG.
type Grayscaler struct {
	logger   *slog.Logger
	maxWidth int
}

func NewGrayscaler(maxWidth int, logger *slog.Logger) *Grayscaler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxWidth <= 0 {
		maxWidth = 2000
	}
	return &Grayscaler{logger: logger, maxWidth: maxWidth}
}

func (g *Grayscaler) Prepare(ctx context.Context, r io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > g.maxWidth {
		h = h * g.maxWidth / w
		w = g.maxWidth
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(gray, gray.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	g.logger.Debug("preprocess.prepared",
		"format", format,
		"src_width", bounds.Dx(), "src_height", bounds.Dy(),
		"out_width", w, "out_height", h,
		"out_bytes", buf.Len(),
	)
	return buf.Bytes(), nil
}
