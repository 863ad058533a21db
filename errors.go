package plagio

import (
	"errors"
	"fmt"
)

// ErrKind classifies a CoreError, matching the error taxonomy shared by
// codec, builder, engine, and aggregator.
type ErrKind int

const (
	// KindBadRequest covers invalid caller arguments: empty query,
	// non-positive top_k, too many shards.
	KindBadRequest ErrKind = iota
	// KindIO covers file open/read/write/rename/mmap failures.
	KindIO
	// KindFormat covers magic mismatch, version mismatch, truncation,
	// section-size overflow, and big-endian hosts.
	KindFormat
	// KindInvariant covers CSR invariant violations discovered on load.
	KindInvariant
	// KindResource covers per-request caps exceeded in a way that
	// disables further progress.
	KindResource
	// KindLoadFailed wraps any other kind for a single aggregator shard.
	KindLoadFailed
	// KindException covers unexpected failures with no more specific
	// kind, surfaced to aggregator callers as a bounded message snippet.
	KindException
)

func (k ErrKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindInvariant:
		return "invariant"
	case KindResource:
		return "resource"
	case KindLoadFailed:
		return "load_failed"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// CoreError is the common error shape returned across package boundaries:
// a kind, the operation that failed, and the underlying cause.
type CoreError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is reports whether target is a CoreError of the same kind, so callers
// can write errors.Is(err, &CoreError{Kind: KindBadRequest}) without
// caring about Op or Err.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewCoreError builds a CoreError for op wrapping cause.
func NewCoreError(kind ErrKind, op string, cause error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: cause}
}

// KindOf unwraps err looking for a *CoreError and returns its kind,
// reporting false if none is found.
func KindOf(err error) (ErrKind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

var (
	// ErrNotFound is returned when a requested shard, document, or file
	// does not exist.
	ErrNotFound = errors.New("plagio: not found")
	// ErrClosed is returned by operations attempted on a closed engine or
	// aggregator handle.
	ErrClosed = errors.New("plagio: closed")
)

// ErrTooManyShards is returned when a search_many call names more shard
// directories than the aggregator is configured to accept.
type ErrTooManyShards struct {
	Requested int
	Max       int
}

func (e *ErrTooManyShards) Error() string {
	return fmt.Sprintf("plagio: %d shards requested, max %d", e.Requested, e.Max)
}

// ErrShardLoadFailed wraps a single shard's load failure for aggregator
// callers that isolate per-shard errors from an otherwise successful
// fan-out.
type ErrShardLoadFailed struct {
	Dir   string
	cause error
}

func (e *ErrShardLoadFailed) Error() string {
	return fmt.Sprintf("plagio: shard %q failed to load: %v", e.Dir, e.cause)
}

func (e *ErrShardLoadFailed) Unwrap() error { return e.cause }

// NewShardLoadFailed wraps cause as an ErrShardLoadFailed for dir,
// classifying it as KindLoadFailed regardless of the underlying kind.
func NewShardLoadFailed(dir string, cause error) *CoreError {
	return NewCoreError(KindLoadFailed, "aggregator.load", &ErrShardLoadFailed{Dir: dir, cause: cause})
}
