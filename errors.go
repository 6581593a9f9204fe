package msglc

import "errors"

// Error kinds, per the format's error taxonomy. Each sentinel is a kind,
// not a concrete type: wrap it with fmt.Errorf("...: %w", ErrX) to attach
// detail, and test for the kind with errors.Is.
var (
	// ErrFormat covers a missing/bad magic, a malformed header, a TOC
	// that violates the tree invariants, or a truncated payload.
	ErrFormat = errors.New("msglc: malformed blob")

	// ErrDecode covers a MessagePack decode failure inside the codec.
	ErrDecode = errors.New("msglc: decode failed")

	// ErrEncode covers a packer input that could not be encoded.
	ErrEncode = errors.New("msglc: encode failed")

	// ErrEncodeCountMismatch is returned when a StreamMap's Pairs
	// function yields a different number of entries than its declared
	// Len.
	ErrEncodeCountMismatch = errors.New("msglc: streamed map yielded a different number of pairs than declared")

	// ErrKey is returned when a path segment names a map key that does
	// not exist.
	ErrKey = errors.New("msglc: key not found")

	// ErrIndex is returned when a sequence index is out of range, or when
	// LazySeq.Index is given a negative index. A path segment that is not
	// a non-negative integer is reported as ErrType instead.
	ErrIndex = errors.New("msglc: index out of range")

	// ErrType is returned when a path descends into a primitive, or
	// addresses a sequence with a non-integer segment, or a map with a
	// non-string segment.
	ErrType = errors.New("msglc: path traverses a value of the wrong kind")

	// ErrIO covers an underlying storage failure.
	ErrIO = errors.New("msglc: I/O error")

	// ErrCombineNameMix is returned by Combine when some FileRefs carry
	// a Name and others don't.
	ErrCombineNameMix = errors.New("msglc: combine inputs mix named and unnamed entries")

	// ErrSessionClosed is returned by any operation on a ReaderSession
	// or cursor after the session has been closed.
	ErrSessionClosed = errors.New("msglc: session is closed")
)
