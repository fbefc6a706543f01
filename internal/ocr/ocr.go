// Package ocr holds the OCR-engine contract and a tesseract adapter.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Reader is Stage 1: image bytes -> text. The engine itself is an external
// collaborator; the worker only depends on this surface.
type Reader interface {
	Read(ctx context.Context, image []byte) (string, error)
}

// Config for the tesseract adapter.
type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Language  string // default "eng"
	PSM       int    // 6 is good for a uniform block of text
}

// Tesseract shells out to the tesseract binary, feeding the image on stdin
// and reading text from stdout.
type Tesseract struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Tesseract{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (t *Tesseract) Read(ctx context.Context, image []byte) (string, error) {
	args := []string{
		"stdin", "stdout",
		"-l", t.cfg.Language,
		"--psm", strconv.Itoa(t.cfg.PSM),
	}
	stdout, stderr, err := t.runner.Run(ctx, image, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(stderr), 512))
	}
	text := strings.TrimSpace(string(stdout))
	t.logger.Debug("ocr.read", "image_bytes", len(image), "text_bytes", len(text))
	return text, nil
}
