package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
)

// memStore is an in-memory ObjectStore for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[Ref][]byte
	failPut error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[Ref][]byte)}
}

func (m *memStore) CreateIfAbsent(_ context.Context, ref Ref, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	if _, ok := m.objects[ref]; ok {
		return ErrConflict
	}
	m.objects[ref] = body
	return nil
}

func (m *memStore) Delete(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *memStore) Size(_ context.Context, ref Ref) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[ref]
	if !ok {
		return 0, errors.New("not found")
	}
	return int64(len(b)), nil
}

func (m *memStore) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestLockAcquireOnceThenConflict(t *testing.T) {
	store := newMemStore()
	lock := NewLock(store, "locks", nil)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "receipts", "abc-123")
	if err != nil || !ok {
		t.Fatalf("first acquire = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = lock.Acquire(ctx, "receipts", "abc-123")
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Error("second acquire succeeded, want conflict")
	}
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	store := newMemStore()
	lock := NewLock(store, "locks", nil)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "receipts", "abc-123"); !ok {
		t.Fatal("acquire failed")
	}
	lock.Release(ctx, "receipts", "abc-123")
	if ok, _ := lock.Acquire(ctx, "receipts", "abc-123"); !ok {
		t.Error("reacquire after release failed")
	}
}

func TestLockDistinctReceiptsIndependent(t *testing.T) {
	store := newMemStore()
	lock := NewLock(store, "locks", nil)
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx, "receipts", "a"); !ok {
		t.Fatal("acquire a failed")
	}
	if ok, _ := lock.Acquire(ctx, "receipts", "b"); !ok {
		t.Error("acquire b blocked by a's lock")
	}
}

func TestLockAcquireStoreError(t *testing.T) {
	store := newMemStore()
	store.failPut = errors.New("network down")
	lock := NewLock(store, "locks", nil)

	ok, err := lock.Acquire(context.Background(), "receipts", "abc")
	if ok || err == nil {
		t.Errorf("got (%v, %v), want (false, error)", ok, err)
	}
}

func TestLockKey(t *testing.T) {
	lock := NewLock(newMemStore(), "locks", nil)
	if got := lock.Key("abc-123"); got != "locks/receipt-abc-123.lock" {
		t.Errorf("Key = %q", got)
	}
}
