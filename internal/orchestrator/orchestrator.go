// Package orchestrator owns one parse job end to end: lock, fetch,
// preprocess, OCR, extract, decide, persist, release.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mpalumbo7/receipt-parser/constants"
	"github.com/mpalumbo7/receipt-parser/internal/common"
	"github.com/mpalumbo7/receipt-parser/internal/decision"
	"github.com/mpalumbo7/receipt-parser/internal/heuristics"
	"github.com/mpalumbo7/receipt-parser/internal/money"
	"github.com/mpalumbo7/receipt-parser/internal/normalizer"
	"github.com/mpalumbo7/receipt-parser/internal/ocr"
	"github.com/mpalumbo7/receipt-parser/internal/preprocess"
	"github.com/mpalumbo7/receipt-parser/internal/recordapi"
	"github.com/mpalumbo7/receipt-parser/internal/retry"
	"github.com/mpalumbo7/receipt-parser/internal/storage"
)

// Locker guards one receipt id at a time across concurrent deliveries.
type Locker interface {
	Acquire(ctx context.Context, container, receiptID string) (bool, error)
	Release(ctx context.Context, container, receiptID string)
}

// BlobSource is the slice of the object store the orchestrator reads from.
type BlobSource interface {
	Size(ctx context.Context, ref storage.Ref) (int64, error)
	Open(ctx context.Context, ref storage.Ref) (io.ReadCloser, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Blobs        BlobSource
	Lock         Locker
	Preparer     preprocess.Preparer
	OCR          ocr.Reader
	Extractor    *heuristics.Extractor
	Normalizer   normalizer.Normalizer
	Validator    *normalizer.Validator
	Records      recordapi.API
	Retry        retry.Config
	MaxBlobBytes int64
	Logger       *slog.Logger
}

// Orchestrator runs the parse state machine for queued receipt messages.
type Orchestrator struct {
	blobs      BlobSource
	lock       Locker
	prep       preprocess.Preparer
	ocr        ocr.Reader
	extractor  *heuristics.Extractor
	normalizer normalizer.Normalizer
	validator  *normalizer.Validator
	records    recordapi.API
	retryCfg   retry.Config
	maxBytes   int64
	logger     *slog.Logger
}

func New(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := d.MaxBlobBytes
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Orchestrator{
		blobs:      d.Blobs,
		lock:       d.Lock,
		prep:       d.Preparer,
		ocr:        d.OCR,
		extractor:  d.Extractor,
		normalizer: d.Normalizer,
		validator:  d.Validator,
		records:    d.Records,
		retryCfg:   d.Retry,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// transientOnly is the classifier for collaborators without structured
// status codes; they retry up to the cap.
func transientOnly(error) retry.Class { return retry.Transient }

// Handle runs one delivery. A lock conflict is a duplicate delivery and
// returns nil without side effects. The lock is released in all other
// outcomes, including cancellation.
func (o *Orchestrator) Handle(ctx context.Context, msg Message) error {
	log := o.logger.With("receipt_id", msg.ReceiptID)

	ok, err := o.lock.Acquire(ctx, msg.Container, msg.ReceiptID)
	if err != nil {
		return common.WrapError(err, "lock acquire failed")
	}
	if !ok {
		log.Info("orchestrate.duplicate_delivery", "container", msg.Container)
		return nil
	}
	defer o.lock.Release(context.WithoutCancel(ctx), msg.Container, msg.ReceiptID)

	if err := o.process(ctx, log, msg); err != nil {
		log.Error("orchestrate.failed", "error", err)
		o.reportFailure(ctx, msg.ReceiptID, err)
		return err
	}
	log.Info("orchestrate.done")
	return nil
}

func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, msg Message) error {
	ref := storage.Ref{Container: msg.Container, Key: msg.Blob}

	size, err := o.blobs.Size(ctx, ref)
	if err != nil {
		return common.WrapError(err, "failed to size source object")
	}
	if size > o.maxBytes {
		return common.NewAppError("SOURCE_TOO_LARGE",
			fmt.Sprintf("source object is %d bytes, cap is %d", size, o.maxBytes),
			common.ErrTooLarge)
	}

	src, err := o.blobs.Open(ctx, ref)
	if err != nil {
		return common.WrapError(err, "failed to open source object")
	}
	// Prepare buffers the full result so every OCR attempt below reads a
	// fresh byte slice, never a partially consumed stream.
	img, err := o.prep.Prepare(ctx, src)
	src.Close()
	if err != nil {
		return common.WrapError(err, "preprocess failed")
	}

	rawText, err := retry.DoValue(ctx, o.retryCfg, transientOnly, log, "ocr.read",
		func(c context.Context) (string, error) {
			return o.ocr.Read(c, img)
		})
	if err != nil {
		return common.WrapError(err, "ocr failed")
	}

	if err := retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.patch_raw_text",
		func(c context.Context) error {
			return o.records.PatchRawText(c, msg.ReceiptID, rawText)
		}); err != nil {
		return common.WrapError(err, "failed to persist raw text")
	}

	cand := o.extractor.Extract(rawText)
	items, totals, status, meta := o.decide(ctx, log, rawText, cand)

	if err := o.postItems(ctx, log, msg.ReceiptID, items); err != nil {
		return common.WrapError(err, "failed to replace items")
	}

	if err := retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.patch_totals",
		func(c context.Context) error {
			return o.records.PatchTotals(c, msg.ReceiptID, totals)
		}); err != nil {
		return common.WrapError(err, "failed to patch totals")
	}
	if err := retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.patch_parse_meta",
		func(c context.Context) error {
			return o.records.PatchParseMeta(c, msg.ReceiptID, meta)
		}); err != nil {
		return common.WrapError(err, "failed to patch parse metadata")
	}
	if err := retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.patch_status",
		func(c context.Context) error {
			return o.records.PatchStatus(c, msg.ReceiptID, status)
		}); err != nil {
		return common.WrapError(err, "failed to patch status")
	}
	// The second totals write carries the same values; it exists to trigger
	// the record system's downstream reconciliation after the status flip.
	if err := retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.patch_totals_final",
		func(c context.Context) error {
			return o.records.PatchTotals(c, msg.ReceiptID, totals)
		}); err != nil {
		return common.WrapError(err, "failed to patch final totals")
	}
	return nil
}

// decide picks the winning item set and totals. Extraction weakness is a
// normal branch, never an error; normalizer failures are absorbed into the
// parse metadata.
func (o *Orchestrator) decide(ctx context.Context, log *slog.Logger, rawText string, cand *heuristics.Receipt) ([]recordapi.Item, recordapi.Totals, constants.ReceiptStatus, recordapi.ParseMeta) {
	strong, reason := decision.IsHeuristicsStrong(cand)
	if strong {
		log.Info("orchestrate.heuristics_strong", "items", len(cand.Items))
		return heuristicItems(cand), heuristicTotals(cand), constants.StatusParsed, toMeta(decision.Heuristic())
	}

	log.Info("orchestrate.heuristics_weak", "reason", reason)
	dec := o.normalize(ctx, log, rawText, cand)
	if dec.ExternalAccepted != nil && *dec.ExternalAccepted {
		nr := dec.receipt
		return normalizedItems(nr), normalizedTotals(nr), constants.StatusParsedNeedsReview, toMeta(dec.ParseDecision)
	}
	return heuristicItems(cand), heuristicTotals(cand), constants.StatusParsedNeedsReview, toMeta(dec.ParseDecision)
}

// normalizeOutcome pairs the decision with the accepted document, when any.
type normalizeOutcome struct {
	decision.ParseDecision
	receipt *normalizer.Receipt
}

func (o *Orchestrator) normalize(ctx context.Context, log *slog.Logger, rawText string, cand *heuristics.Receipt) normalizeOutcome {
	raw, err := retry.DoValue(ctx, o.retryCfg, transientOnly, log, "normalizer.call",
		func(c context.Context) ([]byte, error) {
			return o.normalizer.Normalize(c, rawText, buildHints(cand))
		})
	if err != nil {
		log.Warn("orchestrate.normalizer_call_failed", "error", err)
		return normalizeOutcome{ParseDecision: decision.ExternalRejected("external normalizer call failed: " + err.Error())}
	}

	nr, err := normalizer.Decode(raw, log)
	if err != nil {
		log.Warn("orchestrate.normalizer_output_invalid", "error", err)
		return normalizeOutcome{ParseDecision: decision.ExternalRejected("undecodable normalizer output: " + err.Error())}
	}

	valid, vreason, _ := o.validator.Validate(nr)
	if !valid {
		log.Warn("orchestrate.normalizer_output_rejected", "reason", vreason)
		return normalizeOutcome{ParseDecision: decision.ExternalRejected(vreason)}
	}
	return normalizeOutcome{ParseDecision: decision.ExternalAccepted(), receipt: nr}
}

// postItems persists the item set. Single-item creation is not idempotent
// and is attempted at most once per item; failures are logged and skipped.
// The batch replace call is idempotent and retried.
func (o *Orchestrator) postItems(ctx context.Context, log *slog.Logger, receiptID string, items []recordapi.Item) error {
	if len(items) == 0 {
		return nil
	}
	if o.records.SupportsReplaceItems() {
		return retry.Do(ctx, o.retryCfg, recordapi.Classify, log, "record.replace_items",
			func(c context.Context) error {
				return o.records.ReplaceItems(c, receiptID, items)
			})
	}
	for _, it := range items {
		if err := o.records.PostItem(ctx, receiptID, it); err != nil {
			log.Error("orchestrate.post_item_failed", "description", it.Description, "error", err)
		}
	}
	return nil
}

// reportFailure is best effort; the record system converges through the
// queue's poison path if this write is lost too.
func (o *Orchestrator) reportFailure(ctx context.Context, receiptID string, cause error) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.records.PostParseError(c, receiptID, cause.Error()); err != nil {
		o.logger.Error("orchestrate.report_failure_failed", "receipt_id", receiptID, "error", err)
	}
}

func buildHints(cand *heuristics.Receipt) normalizer.Hints {
	h := normalizer.Hints{ItemCount: len(cand.Items)}
	if cand.Subtotal != nil {
		h.Subtotal = money.Format(*cand.Subtotal)
	}
	if cand.Tax != nil {
		h.Tax = money.Format(*cand.Tax)
	}
	if cand.Tip != nil {
		h.Tip = money.Format(*cand.Tip)
	}
	if cand.Total != nil {
		h.Total = money.Format(*cand.Total)
	}
	return h
}

func heuristicItems(cand *heuristics.Receipt) []recordapi.Item {
	items := make([]recordapi.Item, 0, len(cand.Items))
	for _, it := range cand.Items {
		items = append(items, recordapi.Item{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return items
}

func heuristicTotals(cand *heuristics.Receipt) recordapi.Totals {
	return recordapi.Totals{
		Subtotal: cand.Subtotal,
		Tax:      cand.Tax,
		Tip:      cand.Tip,
		Total:    cand.Total,
	}
}

func normalizedItems(nr *normalizer.Receipt) []recordapi.Item {
	items := make([]recordapi.Item, 0, len(nr.Items))
	for _, it := range nr.Items {
		items = append(items, recordapi.Item{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return items
}

func normalizedTotals(nr *normalizer.Receipt) recordapi.Totals {
	return recordapi.Totals{
		Subtotal: nr.Subtotal,
		Tax:      nr.Tax,
		Tip:      nr.Tip,
		Total:    nr.Total,
	}
}

func toMeta(d decision.ParseDecision) recordapi.ParseMeta {
	return recordapi.ParseMeta{
		Engine:            d.Engine,
		ExternalAttempted: d.ExternalAttempted,
		ExternalAccepted:  d.ExternalAccepted,
		RejectReason:      d.RejectReason,
	}
}
