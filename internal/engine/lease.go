package engine

import "sync/atomic"

// WriteLease is spec.md §5's single exclusive token: all mutation of the
// code cache, source-key database, fixup map, debug-info structure, and
// per-name caches' schema must happen while holding it. Read-only access
// (internal/cache.Cache.Lookup, SourceRecord.Top) stays wait-free and
// never touches this type at all.
type WriteLease struct {
	held int32
}

// NewWriteLease constructs an unheld lease.
func NewWriteLease() *WriteLease {
	return &WriteLease{}
}

// TryAcquire attempts a non-blocking acquire. A request thread that fails
// falls back to interpretation for the current tracelet (spec.md §5) —
// it never blocks waiting for the lease.
func (l *WriteLease) TryAcquire() bool {
	return atomic.CompareAndSwapInt32(&l.held, 0, 1)
}

// Release gives up the lease. Must only be called by the goroutine that
// last succeeded at TryAcquire.
func (l *WriteLease) Release() {
	atomic.StoreInt32(&l.held, 0)
}

// Held reports whether the lease is currently taken — for tests and
// diagnostics only; never gate correctness decisions on this, since it
// can change the instant after it's read.
func (l *WriteLease) Held() bool {
	return atomic.LoadInt32(&l.held) == 1
}
