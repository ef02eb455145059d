// Package loc implements spec.md §3's Location and DynLocation: the
// symbolic addresses the tracelet analyzer reasons about, and the
// (Location, RuntimeType) pairs that are its unit of reasoning.
package loc

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

// Kind discriminates the Location variants of spec.md §3.
type Kind byte

const (
	KindInvalid Kind = iota
	KindStack
	KindLocal
	KindIterator
	KindLiteral
	KindScratch
)

func (k Kind) String() string {
	switch k {
	case KindStack:
		return "stack"
	case KindLocal:
		return "local"
	case KindIterator:
		return "iter"
	case KindLiteral:
		return "literal"
	case KindScratch:
		return "scratch"
	default:
		return "invalid"
	}
}

// LiteralValue is a compile-time-known immediate, boxed as an interface{}
// since its Go representation (int64, float64, string, bool, nil) depends
// on the RuntimeType it's paired with in a DynLocation; the analyzer and
// codegen never inspect it without first consulting that type.
type LiteralValue interface{}

// Location is spec.md §3's symbolic address. Stack offsets are relative to
// the tracelet entry top-of-stack, matching the teacher's
// valueLocationStack convention of indexing from a per-compilation-unit
// base rather than an absolute machine stack pointer.
type Location struct {
	kind    Kind
	id      uint32       // Local/Iterator id, or Scratch tag.
	offset  int32         // Stack offset (signed: negative means below entry SP).
	literal LiteralValue  // valid only when kind == KindLiteral.
}

// Invalid is the zero Location, matching spec.md's `Invalid` variant.
var Invalid = Location{kind: KindInvalid}

// Stack constructs a Location addressing the tracelet-entry-relative stack
// offset off.
func Stack(off int32) Location { return Location{kind: KindStack, offset: off} }

// Local constructs a Location addressing local variable slot id.
func Local(id uint32) Location { return Location{kind: KindLocal, id: id} }

// Iterator constructs a Location addressing iterator slot id.
func Iterator(id uint32) Location { return Location{kind: KindIterator, id: id} }

// Literal constructs a Location carrying a compile-time-known value.
func Literal(v LiteralValue) Location { return Location{kind: KindLiteral, literal: v} }

// Scratch constructs a Location for an analyzer-internal temporary,
// identified by tag (never persisted past one tracelet).
func Scratch(tag uint32) Location { return Location{kind: KindScratch, id: tag} }

func (l Location) Kind() Kind { return l.kind }

// StackOffset returns the stack offset; valid only when Kind()==KindStack.
func (l Location) StackOffset() int32 { return l.offset }

// ID returns the local/iterator id or scratch tag; valid only for those kinds.
func (l Location) ID() uint32 { return l.id }

// LiteralValue returns the literal payload; valid only when Kind()==KindLiteral.
func (l Location) LiteralValue() LiteralValue { return l.literal }

func (l Location) String() string {
	switch l.kind {
	case KindStack:
		return fmt.Sprintf("Stack(%d)", l.offset)
	case KindLocal:
		return fmt.Sprintf("Local(%d)", l.id)
	case KindIterator:
		return fmt.Sprintf("Iterator(%d)", l.id)
	case KindLiteral:
		return fmt.Sprintf("Literal(%v)", l.literal)
	case KindScratch:
		return fmt.Sprintf("Scratch(%d)", l.id)
	default:
		return "Invalid"
	}
}

// DynLocation is spec.md §3's (Location, RuntimeType) pair: the analyzer's
// unit of reasoning. "At this program point, this location holds this
// type."
type DynLocation struct {
	Loc  Location
	Type rtype.RuntimeType
}

func (d DynLocation) String() string {
	return fmt.Sprintf("%s:%s", d.Loc, d.Type)
}

// Dyn is a convenience constructor.
func Dyn(l Location, t rtype.RuntimeType) DynLocation {
	return DynLocation{Loc: l, Type: t}
}
