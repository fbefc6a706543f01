package recordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mpalumbo7/receipt-parser/constants"
	"github.com/mpalumbo7/receipt-parser/internal/common"
)

// StatusError is a non-2xx response from the record API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("record api returned status %d: %s", e.Code, e.Body)
}

// Client talks to the receipt-record service over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	logger      *slog.Logger
	replaceItem bool
}

func NewClient(cfg common.RecordAPIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		replaceItem: cfg.SupportsReplaceAll,
	}
}

func (c *Client) PatchRawText(ctx context.Context, receiptID, text string) error {
	body := map[string]string{"rawText": text}
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/receipts/%s/raw-text", receiptID), body)
}

func (c *Client) PatchTotals(ctx context.Context, receiptID string, totals Totals) error {
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/receipts/%s/totals", receiptID), totals)
}

func (c *Client) PatchStatus(ctx context.Context, receiptID string, status constants.ReceiptStatus) error {
	body := map[string]constants.ReceiptStatus{"status": status}
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/receipts/%s/status", receiptID), body)
}

func (c *Client) PatchParseMeta(ctx context.Context, receiptID string, meta ParseMeta) error {
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("/receipts/%s/parse-meta", receiptID), meta)
}

func (c *Client) PostItem(ctx context.Context, receiptID string, item Item) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/receipts/%s/items", receiptID), item)
}

func (c *Client) ReplaceItems(ctx context.Context, receiptID string, items []Item) error {
	body := map[string][]Item{"items": items}
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/receipts/%s/items", receiptID), body)
}

func (c *Client) SupportsReplaceItems() bool {
	return c.replaceItem
}

func (c *Client) PostParseError(ctx context.Context, receiptID, note string) error {
	body := map[string]string{"note": note, "occurredAt": time.Now().UTC().Format(time.RFC3339)}
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/receipts/%s/parse-errors", receiptID), body)
}

func (c *Client) send(ctx context.Context, method, path string, payload any) error {
	reqID := uuid.New().String()
	url := c.baseURL + path

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("recordapi.request.start", "req_id", reqID, "method", method, "path", path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("recordapi.request.failed", "req_id", reqID, "error", err)
		return fmt.Errorf("record api request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("recordapi.request.done",
		"req_id", reqID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(slurp)}
	}
	return nil
}
