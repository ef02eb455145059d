// Package sourcekey implements spec.md §3's SourceKey: the primary key of
// the translation cache, identifying a program point as an
// (owning-function-identity, bytecode-offset) pair.
package sourcekey

import "fmt"

// FuncID identifies the owning function. The bytecode compiler that
// produces these is out of scope (spec.md §1); this module only needs a
// stable, comparable identity to key translations by.
type FuncID uint32

// Offset is a bytecode offset within FuncID's instruction stream.
type Offset uint32

// SourceKey is the (owning-function-identity, bytecode-offset) pair from
// spec.md §3. Two source keys compare equal only when both components
// match; the zero value is never a valid key (FuncID 0 is reserved).
type SourceKey struct {
	Func   FuncID
	Offset Offset
}

// New builds a SourceKey. Prefer this over a struct literal at call sites
// that resolve a function/offset pair dynamically, to keep the field order
// an implementation detail.
func New(fn FuncID, off Offset) SourceKey {
	return SourceKey{Func: fn, Offset: off}
}

// IsValid reports whether the key could plausibly identify real bytecode.
func (k SourceKey) IsValid() bool {
	return k.Func != 0
}

// WithOffset returns a copy of k with a different offset, the same
// function. Used by the analyzer to build the fall-through exit key of a
// tracelet (spec.md §3 "Tracelet ... the source key of the fall-through
// exit") without re-resolving the owning function.
func (k SourceKey) WithOffset(off Offset) SourceKey {
	k.Offset = off
	return k
}

func (k SourceKey) String() string {
	return fmt.Sprintf("SK(func=%d,off=%d)", k.Func, k.Offset)
}
