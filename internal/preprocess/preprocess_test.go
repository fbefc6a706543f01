package preprocess

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7 % 256), G: 128, B: uint8(y * 11 % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareGrayscales(t *testing.T) {
	g := NewGrayscaler(0, discard)

	out, err := g.Prepare(context.Background(), bytes.NewReader(encodePNG(t, 40, 20)))
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("output format = %s, want png", format)
	}
	if _, ok := decoded.(*image.Gray); !ok {
		t.Errorf("output is %T, want *image.Gray", decoded)
	}
	if b := decoded.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("output bounds = %v, want 40x20 preserved under the cap", b)
	}
}

func TestPrepareCapsWidth(t *testing.T) {
	g := NewGrayscaler(16, discard)

	out, err := g.Prepare(context.Background(), bytes.NewReader(encodePNG(t, 64, 32)))
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("output bounds = %v, want 16x8 (aspect preserved)", b)
	}
}

func TestPrepareRejectsGarbage(t *testing.T) {
	g := NewGrayscaler(0, discard)
	if _, err := g.Prepare(context.Background(), strings.NewReader("not an image")); err == nil {
		t.Fatal("expected an error for undecodable input")
	}
}

func TestPrepareHonorsCancellation(t *testing.T) {
	g := NewGrayscaler(0, discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Prepare(ctx, bytes.NewReader(encodePNG(t, 8, 8))); err == nil {
		t.Fatal("expected an error after cancellation")
	}
}
