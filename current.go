package plagio

import "sync/atomic"

// Handle is a reference-counted, atomically-swappable pointer to a
// snapshot value T (an *engine.Engine, in the common case). It implements
// the process-wide "current index" pattern: a build publishes a new
// snapshot with Store; readers Acquire a reference, use it, and Release
// it; a snapshot's Closer only runs once its last reference is released,
// even if a newer snapshot has already replaced it in the Handle.
type Handle[T any] struct {
	p atomic.Pointer[handleEntry[T]]
}

type handleEntry[T any] struct {
	value  T
	refs   atomic.Int32
	closer func(T) error
}

// NewHandle returns an empty Handle with no current snapshot.
func NewHandle[T any]() *Handle[T] {
	return &Handle[T]{}
}

// Store publishes value as the new current snapshot, taking an initial
// reference on behalf of the handle itself. closer, if non-nil, runs
// exactly once, after the last Release drops the entry's reference count
// to zero. The previous snapshot (if any) has its handle-owned reference
// released, so it is closed as soon as its last active reader releases.
func (h *Handle[T]) Store(value T, closer func(T) error) {
	next := &handleEntry[T]{value: value, closer: closer}
	next.refs.Store(1)
	prev := h.p.Swap(next)
	if prev != nil {
		releaseEntry(prev)
	}
}

// Acquire returns the current snapshot and a release function, or ok=false
// if no snapshot has ever been stored. The caller must call release
// exactly once when done with the snapshot.
func (h *Handle[T]) Acquire() (value T, release func(), ok bool) {
	e := h.p.Load()
	if e == nil {
		var zero T
		return zero, func() {}, false
	}
	e.refs.Add(1)
	return e.value, func() { releaseEntry(e) }, true
}

func releaseEntry[T any](e *handleEntry[T]) {
	if e.refs.Add(-1) == 0 && e.closer != nil {
		_ = e.closer(e.value)
	}
}
