package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"
)

// Lock is the idempotency lock keeping one receipt id in flight at a time.
// A create-if-absent marker in the object store is the mutual exclusion; a
// conflict means a duplicate delivery of an in-flight or completed job.
type Lock struct {
	store  ObjectStore
	logger *slog.Logger
	prefix string
}

func NewLock(store ObjectStore, prefix string, logger *slog.Logger) *Lock {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "locks"
	}
	return &Lock{store: store, logger: logger, prefix: prefix}
}

// Key derives the lock key for a receipt id.
func (l *Lock) Key(receiptID string) string {
	return path.Join(l.prefix, "receipt-"+receiptID+".lock")
}

// Acquire attempts the create-if-absent write. It returns false (and no
// error) on a conflict; the caller exits with no further side effects.
func (l *Lock) Acquire(ctx context.Context, container, receiptID string) (bool, error) {
	ref := Ref{Container: container, Key: l.Key(receiptID)}
	body := []byte(time.Now().UTC().Format(time.RFC3339))
	err := l.store.CreateIfAbsent(ctx, ref, body)
	if errors.Is(err, ErrConflict) {
		l.logger.Info("lock.conflict", "receipt_id", receiptID, "key", ref.Key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	l.logger.Debug("lock.acquired", "receipt_id", receiptID, "key", ref.Key)
	return true, nil
}

// Release deletes the lock marker. Failures are logged, never escalated;
// a leaked lock converges on the next delivery.
func (l *Lock) Release(ctx context.Context, container, receiptID string) {
	ref := Ref{Container: container, Key: l.Key(receiptID)}
	if err := l.store.Delete(ctx, ref); err != nil {
		l.logger.Warn("lock.release_failed", "receipt_id", receiptID, "key", ref.Key, "error", err)
		return
	}
	l.logger.Debug("lock.released", "receipt_id", receiptID, "key", ref.Key)
}
