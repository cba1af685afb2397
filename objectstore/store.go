// Package objectstore abstracts the binary asset store that holds page raster
// images. Implementations exist for MinIO and Amazon S3, plus an in-memory
// store for testing. Overwrite semantics are assumed: re-putting a key with
// the same payload is safe, which lets the upload pipeline retry freely.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrNotFound is returned when an object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is the object-store collaborator.
type Store interface {
	// Put writes an object, overwriting any existing object under key.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads an object. Missing keys fail with ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// List returns all keys with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping reports store connectivity.
	Ping(ctx context.Context) error
}

// TransientError marks a failure worth retrying: network timeouts,
// unavailable stores, 5xx-equivalent responses. Anything not wrapped in it is
// treated as permanent by the upload pipeline.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient object store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried. Besides explicit
// TransientError wrapping, deadline expiry and network timeouts count as
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
