// Package source implements the buffered random-access source: the
// abstraction the packer's combiner and the lazy reader use to get bytes
// off disk without either one knowing whether those bytes are already
// cached, memory-mapped, or need a fresh physical read.
package source

import (
	"context"
	"errors"
)

// ErrClosed names the error for an operation on a closed Source. Neither
// FileSource nor MMapSource returns it: after Close, a FileSource may still
// serve a cached range, and any other read fails with the underlying file
// error.
var ErrClosed = errors.New("source: closed")

// Source presents a file (or in-memory blob) as seekable reads. A read
// that is fully served from memory and a read that triggers a physical
// fetch are indistinguishable to the caller; only a Stats wrapper exposes
// that distinction.
type Source interface {
	// ReadAt returns exactly length bytes starting at offset. The
	// returned slice must not be mutated by the caller; it may alias an
	// internal cache entry.
	ReadAt(ctx context.Context, offset, length int64) ([]byte, error)

	// Size returns the total addressable length of the underlying blob.
	Size() int64

	// Close releases the underlying file handle and any cache memory.
	Close() error
}
