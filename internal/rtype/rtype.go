// Package rtype implements spec.md §3's RuntimeType: the value
// classification the tracelet analyzer reasons about. Grounded on HHVM's
// Type lattice (original_source/hphp/runtime/vm/jit/type.h) for the variant
// set, trimmed to what spec.md names explicitly.
package rtype

import "fmt"

// Kind is the known-data-type tag. Vague (unknown, must be checked or
// interpreted) is represented separately by RuntimeType.Vague rather than as
// a Kind value, since it's not a data type at all — it's the absence of one.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindArray
	KindObject
	KindClassRef
	KindIterator
	KindRef // reference-cell; always carries an Inner type (spec.md §3 invariant).
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindClassRef:
		return "class-ref"
	case KindIterator:
		return "iterator"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// IterKind distinguishes the two iteration sub-variants spec.md §3 calls
// out ("iterator sub-variants (array-iter vs object-iter) used for
// iteration opcodes").
type IterKind byte

const (
	IterNone IterKind = iota
	IterArray
	IterObject
)

// StringKind refines KindString per spec.md §3 ("static-vs-nonstatic
// string"): a statically-allocated string literal never needs a refcount
// check on incref/decref (see internal/codegen's static-refcount-sentinel
// test).
type StringKind byte

const (
	StringUnknown StringKind = iota
	StringStatic
	StringNonStatic
)

// RuntimeType is spec.md §3's value-classification record. The zero value
// is Vague (unknown, must be checked or interpreted) — deliberately the
// most conservative classification so a forgotten field initialization
// never silently behaves as "known and safe to speculate on."
type RuntimeType struct {
	Vague bool

	Kind  Kind
	Class ClassID // valid only when Kind == KindObject and Specialized is true.

	Specialized bool       // true if Class refines a KindObject type.
	Str         StringKind // valid only when Kind == KindString.
	Iter        IterKind   // valid only when Kind == KindIterator.

	// Inner is the boxed type for Kind == KindRef. spec.md §3 invariant:
	// "a reference-cell type always carries an inner type (possibly
	// vague)." *RuntimeType rather than RuntimeType to keep the zero value
	// of RuntimeType itself cheap and because Inner is genuinely optional
	// for every other Kind.
	Inner *RuntimeType
}

// ClassID identifies a guest-language class. The object model that assigns
// these is out of scope (spec.md §1); the JIT only needs a comparable
// identity to specialize property/method lookups against.
type ClassID uint32

// Vague is the RuntimeType the analyzer assigns to any input it cannot
// prove statically: must be checked (a guard) or interpreted.
func Vague() RuntimeType { return RuntimeType{Vague: true} }

// Known constructs a precise, unrefined RuntimeType of the given Kind.
// Panics if called with KindRef (use Boxed) since every ref type must carry
// an Inner type per the spec invariant.
func Known(k Kind) RuntimeType {
	if k == KindRef {
		panic("rtype: use Boxed to construct a reference-cell type")
	}
	return RuntimeType{Kind: k}
}

// Boxed constructs a reference-cell type wrapping inner (possibly Vague).
func Boxed(inner RuntimeType) RuntimeType {
	in := inner
	return RuntimeType{Kind: KindRef, Inner: &in}
}

// SpecializedObject constructs a KindObject type refined to a known class.
func SpecializedObject(c ClassID) RuntimeType {
	return RuntimeType{Kind: KindObject, Specialized: true, Class: c}
}

// SpecializedString constructs a KindString type refined to static or
// non-static.
func SpecializedString(s StringKind) RuntimeType {
	return RuntimeType{Kind: KindString, Str: s}
}

// IteratorOf constructs a KindIterator type refined to array or object
// iteration.
func IteratorOf(ik IterKind) RuntimeType {
	return RuntimeType{Kind: KindIterator, Iter: ik}
}

// Valid checks the two invariants spec.md §3 states for RuntimeType:
//   - a reference-cell type always carries an inner type (possibly vague);
//   - a class-specialized object type implies the known data type is object.
func (t RuntimeType) Valid() bool {
	if t.Vague {
		return true
	}
	if t.Kind == KindRef && t.Inner == nil {
		return false
	}
	if t.Specialized && t.Kind != KindObject {
		return false
	}
	return true
}

// MaybeRefCounted reports whether a value of this type might need a
// decref/incref pair at runtime. Used by internal/codegen's generic decref
// path to decide whether to emit the refcount test inline at all (spec.md
// §4.4 "Reference-counting operations").
func (t RuntimeType) MaybeRefCounted() bool {
	if t.Vague {
		return true
	}
	switch t.Kind {
	case KindString, KindArray, KindObject, KindRef:
		return true
	default:
		return false
	}
}

// Equal reports whether two RuntimeTypes describe the exact same
// classification, recursing through Inner for reference cells.
func (t RuntimeType) Equal(o RuntimeType) bool {
	if t.Vague != o.Vague {
		return false
	}
	if t.Vague {
		return true
	}
	if t.Kind != o.Kind || t.Specialized != o.Specialized || t.Class != o.Class ||
		t.Str != o.Str || t.Iter != o.Iter {
		return false
	}
	if t.Kind != KindRef {
		return true
	}
	switch {
	case t.Inner == nil && o.Inner == nil:
		return true
	case t.Inner == nil || o.Inner == nil:
		return false
	default:
		return t.Inner.Equal(*o.Inner)
	}
}

func (t RuntimeType) String() string {
	if t.Vague {
		return "vague"
	}
	switch t.Kind {
	case KindRef:
		inner := "?"
		if t.Inner != nil {
			inner = t.Inner.String()
		}
		return fmt.Sprintf("ref<%s>", inner)
	case KindObject:
		if t.Specialized {
			return fmt.Sprintf("object<%d>", t.Class)
		}
		return "object"
	case KindString:
		switch t.Str {
		case StringStatic:
			return "string<static>"
		case StringNonStatic:
			return "string<non-static>"
		default:
			return "string"
		}
	case KindIterator:
		switch t.Iter {
		case IterArray:
			return "iter<array>"
		case IterObject:
			return "iter<object>"
		default:
			return "iter"
		}
	default:
		return t.Kind.String()
	}
}
