// parserd consumes receipt parse messages (NDJSON on stdin, one delivery
// per line) and applies the results to the receipt-record API.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/mpalumbo7/receipt-parser/internal/common"
	"github.com/mpalumbo7/receipt-parser/internal/heuristics"
	"github.com/mpalumbo7/receipt-parser/internal/normalizer"
	"github.com/mpalumbo7/receipt-parser/internal/normalizer/openai"
	"github.com/mpalumbo7/receipt-parser/internal/ocr"
	"github.com/mpalumbo7/receipt-parser/internal/orchestrator"
	"github.com/mpalumbo7/receipt-parser/internal/preprocess"
	"github.com/mpalumbo7/receipt-parser/internal/recordapi"
	"github.com/mpalumbo7/receipt-parser/internal/retry"
	"github.com/mpalumbo7/receipt-parser/internal/storage"
	"github.com/mpalumbo7/receipt-parser/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		logger.Error("failed to load aws configuration", "error", err)
		os.Exit(1)
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})

	store := storage.NewS3Store(s3Client, logger)
	lock := storage.NewLock(store, cfg.Storage.LockPrefix, logger)

	orch := orchestrator.New(orchestrator.Deps{
		Blobs:    store,
		Lock:     lock,
		Preparer: preprocess.NewGrayscaler(0, logger),
		OCR: ocr.NewTesseract(ocr.Config{
			Tesseract: cfg.OCR.Tesseract,
			Language:  cfg.OCR.Language,
			PSM:       cfg.OCR.PSM,
		}, logger),
		Extractor: heuristics.NewExtractor(heuristics.Config{}, logger),
		Normalizer: openai.NewClient(openai.Config{
			APIKey:      cfg.Normalizer.APIKey,
			BaseURL:     cfg.Normalizer.BaseURL,
			Model:       cfg.Normalizer.Model,
			Temperature: cfg.Normalizer.Temperature,
			Timeout:     cfg.Normalizer.Timeout,
		}, logger),
		Validator: normalizer.NewValidator(cfg.Validator.DiscountTolerance, logger),
		Records:   recordapi.NewClient(cfg.RecordAPI, logger),
		Retry: retry.Config{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
			BackoffStep:    cfg.Retry.BackoffStep,
		},
		MaxBlobBytes: cfg.Storage.MaxBlobBytes,
		Logger:       logger,
	})

	queue := worker.NewQueue(orch, logger,
		worker.WithWorkers(cfg.Worker.Workers),
		worker.WithQueueSize(cfg.Worker.QueueSize),
		worker.WithJobTimeout(cfg.Worker.JobTimeout),
	)

	logger.Info("parserd started", "workers", cfg.Worker.Workers)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			body := make([]byte, len(line))
			copy(body, line)
			_ = queue.Enqueue(ctx, worker.Job{Body: body})
		}
		if err := scanner.Err(); err != nil {
			logger.Error("stdin read failed", "error", err)
		}
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}
