package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mpalumbo7/receipt-parser/internal/orchestrator"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingHandler struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
	want int
}

func (h *countingHandler) Handle(_ context.Context, msg orchestrator.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ReceiptID)
	if len(h.seen) == h.want {
		close(h.done)
	}
	return nil
}

func validBody(id string) []byte {
	return []byte(`{"receiptId":"` + id + `","container":"receipts","blob":"a.png"}`)
}

func TestQueueProcessesJobs(t *testing.T) {
	ids := []string{
		"0b51a9e4-6f9f-4f23-9f0d-2a83c8f1a001",
		"0b51a9e4-6f9f-4f23-9f0d-2a83c8f1a002",
		"0b51a9e4-6f9f-4f23-9f0d-2a83c8f1a003",
	}
	h := &countingHandler{done: make(chan struct{}), want: len(ids)}
	q := NewQueue(h, discard, WithWorkers(2), WithQueueSize(8))

	for _, id := range ids {
		if err := q.Enqueue(context.Background(), Job{Body: validBody(id)}); err != nil {
			t.Fatalf("Enqueue returned error: %v", err)
		}
	}

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs not processed in time")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueueDropsMalformedMessage(t *testing.T) {
	h := &countingHandler{done: make(chan struct{}), want: 1}
	q := NewQueue(h, discard, WithWorkers(1))

	q.Enqueue(context.Background(), Job{Body: []byte(`{"receiptId":"not-a-uuid"}`)})
	q.Enqueue(context.Background(), Job{Body: validBody("0b51a9e4-6f9f-4f23-9f0d-2a83c8f1a001")})

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("valid job not processed in time")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seen) != 1 {
		t.Errorf("handler saw %d jobs, want 1 (malformed body dropped)", len(h.seen))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueueShutdownIsIdempotent(t *testing.T) {
	h := &countingHandler{done: make(chan struct{}), want: 1}
	q := NewQueue(h, discard, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Shutdown(ctx)
	q.Shutdown(ctx)

	if err := q.Enqueue(context.Background(), Job{Body: validBody("0b51a9e4-6f9f-4f23-9f0d-2a83c8f1a001")}); err != nil {
		t.Errorf("Enqueue after shutdown returned error: %v", err)
	}
}
