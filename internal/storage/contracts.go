// Package storage holds the narrow object-store contract the worker depends
// on, an S3 adapter, and the object-store-backed idempotency lock.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrConflict is returned by CreateIfAbsent when the key already exists.
var ErrConflict = errors.New("object already exists")

// Ref addresses one object.
type Ref struct {
	Container string
	Key       string
}

// ObjectStore is the minimal surface the parse worker needs. The lock-key
// namespace it provides is the only state shared between concurrent jobs.
type ObjectStore interface {
	// CreateIfAbsent writes the object only when the key does not exist,
	// returning ErrConflict otherwise.
	CreateIfAbsent(ctx context.Context, ref Ref, body []byte) error
	Delete(ctx context.Context, ref Ref) error
	Size(ctx context.Context, ref Ref) (int64, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
}
