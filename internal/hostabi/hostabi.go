// Package hostabi pins down the opaque data layouts spec.md §1 and §6
// describe as belonging to "external collaborators": the 16-byte cell
// layout, activation-record field offsets, and Go-level stand-ins for
// the object model's copy-on-write array/refcount/global/property
// helpers. internal/codegen treats Helpers as the fixed calling
// convention it's allowed to emit calls against; internal/regalloc's
// clobber sets are built from Helpers' documented register contract.
package hostabi

import "unsafe"

// CellWords is the size, in machine words, of one value cell: a data word
// plus a discriminator word (spec.md §1's "16-byte cell layout" on a
// 64-bit target).
const CellWords = 2

// CellBytes is CellWords in bytes on a 64-bit target.
const CellBytes = CellWords * 8

// Cell is the 16-byte tagged-value representation emitted code reads and
// writes directly: Data holds the payload (an inline scalar, or a
// pointer to a ref-counted heap object rewritten through unsafe.Pointer
// by codegen), Kind is the low-level discriminator spec.md's
// RuntimeType classifications get lowered to at runtime.
type Cell struct {
	Data uintptr
	Kind uint64
}

// Kind tags, the runtime counterpart of rtype.Kind — what a Cell's Data
// word actually holds, after analysis has finished reasoning in terms of
// rtype.RuntimeType and codegen needs a concrete runtime representation.
const (
	KindNull uint64 = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindArray
	KindObject
	KindRef
)

// FrameLayout describes the field offsets, in bytes from the frame
// pointer, of one activation record — the layout internal/prologue
// installs and internal/codegen's CGetL/SetL/RetC lowering reads and
// writes against. Grounded on wazero's callEngine context struct
// (_teacher_ref/compiler/engine.go), whose moduleContext fields are all
// "elementZeroAddress uintptr" offsets baked into emitted code the same
// way; this is the JIT-equivalent fixed struct for one PHP activation
// instead of one wasm module instance.
type FrameLayout struct {
	// LocalsOffset is the byte offset of local slot 0 from the frame
	// pointer; local N lives at LocalsOffset + N*CellBytes.
	LocalsOffset int32
	// NumLocals bounds valid local ids for this frame.
	NumLocals uint32
	// IterOffset is the byte offset of iterator slot 0.
	IterOffset int32
	// NumIters bounds valid iterator ids for this frame.
	NumIters uint32
	// ReturnAddrOffset is the byte offset of the saved return address,
	// read by the service-request-driven RetC lowering (spec.md §4.4).
	ReturnAddrOffset int32
	// PrevFPOffset is the byte offset of the saved caller frame pointer.
	PrevFPOffset int32
}

// LocalOffset returns the byte offset of local slot id within a frame
// laid out per l.
func (l FrameLayout) LocalOffset(id uint32) int32 {
	return l.LocalsOffset + int32(id)*CellBytes
}

// IterSlotOffset returns the byte offset of iterator slot id.
func (l FrameLayout) IterSlotOffset(id uint32) int32 {
	return l.IterOffset + int32(id)*CellBytes
}

// NoticeKind classifies a host notice emitted for an implicit or lossy
// conversion. See DESIGN.md Open Question decision 1: this module emits
// a structured kind plus operands rather than a pre-rendered message,
// since exact wording belongs to a real embedding's interpreter.
type NoticeKind byte

const (
	NoticeNone NoticeKind = iota
	NoticeImplicitStringToNumber
	NoticeImplicitNumberToString
	NoticeUndefinedLocal
	NoticeUndefinedGlobal
	NoticeUndefinedProperty
	NoticeArrayKeyCast
)

// Notice is a structured diagnostic raised by a Helpers call, ready for a
// real embedding to render into user-facing text.
type Notice struct {
	Kind NoticeKind
	// Operand0/Operand1 carry whatever the NoticeKind needs (e.g. the
	// source and target Kind for a cast notice); left untyped since
	// each NoticeKind interprets them differently.
	Operand0, Operand1 uintptr
}

// Helpers is the fixed set of external collaborators emitted code calls
// out to: copy-on-write array/object mutation, refcount release, and
// global/property table access. A real embedding supplies a concrete
// Helpers wired to its actual object model; internal/codegen only ever
// depends on this interface, never on a specific implementation, so the
// register allocator's clobber accounting (every Helpers call clobbers
// the full caller-saved set, per spec.md §4.2) is implementation-agnostic.
type Helpers interface {
	// ArrayGet/ArraySet implement copy-on-write array element access;
	// ArraySet returns the (possibly new, if the array was shared) array
	// pointer the caller must retain.
	ArrayGet(arr uintptr, key Cell) Cell
	ArraySet(arr uintptr, key, val Cell) (newArr uintptr)

	// PropGet/PropSet implement object property access through a
	// specialized or generic property offset table.
	PropGet(obj uintptr, propSlot uint32) Cell
	PropSet(obj uintptr, propSlot uint32, val Cell)

	// GlobalGet/GlobalSet implement the global variable table (spec.md
	// §4.4's CGetG/SetG lowering).
	GlobalGet(name string) Cell
	GlobalSet(name string, val Cell)

	// Incref/Decref implement reference counting for heap-allocated
	// cells (string/array/object/ref). Decref may run arbitrary
	// finalization and so clobbers every caller-saved register, exactly
	// like a call (spec.md §4.4's reference-counting operations).
	Incref(c Cell)
	Decref(c Cell)

	// Notify delivers a structured Notice for an implicit or lossy
	// conversion (see NoticeKind above).
	Notify(n Notice)
}

// CellFromPointer packs an arbitrary heap pointer into a Cell's Data
// word. Used by internal/codegen when lowering a value known to be
// ref-counted; isolates the one unsafe.Pointer<->uintptr conversion
// codegen needs so it's auditable in one place, matching wazero's own
// convention of confining unsafe.Pointer<->uintptr roundtrips to named
// helper functions (functionFromUintptr in engine.go) rather than
// scattering them inline.
func CellFromPointer(p unsafe.Pointer, kind uint64) Cell {
	return Cell{Data: uintptr(p), Kind: kind}
}
