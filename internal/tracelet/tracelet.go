// Package tracelet implements spec.md §4.3's tracelet analyzer: given a
// starting source key and a live runtime snapshot of local/stack types,
// symbolically execute bytecodes while tracking types, producing a
// Tracelet of NormalizedInstructions ready for internal/codegen.
package tracelet

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tlerr"
)

// Plan is the per-instruction translation-plan flag spec.md §4.3/§4.4
// selects via a static table lookup refined by input RuntimeTypes.
type Plan byte

const (
	// PlanSpecialized: a fast path exists for the instruction's exact
	// input types; codegen emits it directly.
	PlanSpecialized Plan = iota
	// PlanGenericHelper: no specialized path; codegen emits a call to a
	// generic hostabi.Helpers entry point.
	PlanGenericHelper
	// PlanInterp: continuing would require speculation past an unknown
	// type; the shared emission sequence's step 2 (spec.md §4.4) takes
	// over instead of a translate routine.
	PlanInterp
)

// Guard is one type requirement a tracelet imposes on its runtime
// inputs: "this Location must hold this RuntimeType (or a refinement of
// it) for the following instructions to be valid."
type Guard struct {
	Loc      loc.Location
	Required rtype.RuntimeType
	// InnerGuard marks a guard on a reference cell's inner type rather
	// than its outer (KindRef) type — spec.md §4.3: "distinct from outer
	// type guards and must both be recorded when the translator will
	// read through a box."
	InnerGuard bool
}

// NormalizedInstruction is one symbolically-executed bytecode
// instruction: the raw Instruction, its resolved input/output
// DynLocations, the Plan selected for it, and any guards it newly
// introduced.
type NormalizedInstruction struct {
	Offset  uint32
	Instr   bytecode.Instruction
	Inputs  []loc.DynLocation
	Outputs []loc.DynLocation
	Plan    Plan
	// Predicted is true when this instruction's output type is a
	// prediction rather than a proof (spec.md §4.3's global
	// fetch/dynamic call/cache lookup case): codegen must follow it with
	// a type check and a side-exit-on-failure branch.
	Predicted bool
	// EndsBlock and SelfTerminate realize spec.md §4.4 step 4: when
	// EndsBlock is set and SelfTerminate is not, codegen must sync
	// outputs and emit a bind-jump to the fall-through source key; a
	// self-terminating instruction (RetC, unconditional Jmp) needs no
	// such bind-jump since it never falls through.
	EndsBlock     bool
	SelfTerminate bool
}

// Env is the analyzer's type environment: known classifications for
// locals/stack slots plus policy flags that affect guard emission.
type Env struct {
	Types map[loc.Location]rtype.RuntimeType
	// Pseudomain forces every local read to go through a guard, never
	// proven statically — see DESIGN.md Open Question decision 3 (spec
	// §9's note that this "will silently affect correctness" if gotten
	// wrong).
	Pseudomain bool
}

// NewEnv constructs an Env from a runtime snapshot of DynLocations (the
// "live runtime snapshot of local/stack types" spec.md §4.3 opens with).
func NewEnv(snapshot []loc.DynLocation, pseudomain bool) *Env {
	e := &Env{Types: make(map[loc.Location]rtype.RuntimeType, len(snapshot)), Pseudomain: pseudomain}
	for _, d := range snapshot {
		e.Types[d.Loc] = d.Type
	}
	return e
}

func (e *Env) lookup(l loc.Location) (rtype.RuntimeType, bool) {
	if e.Pseudomain && l.Kind() == loc.KindLocal {
		return rtype.RuntimeType{}, false
	}
	t, ok := e.Types[l]
	return t, ok
}

// Tracelet is spec.md §3/§4.3's unit of translation: a straight-line
// sequence of NormalizedInstructions starting at a SourceKey, plus the
// guards its inputs require.
type Tracelet struct {
	Start        sourcekey.SourceKey
	Instructions []NormalizedInstruction
	Guards       []Guard
	// Failed marks a tracelet whose analysis was aborted mid-stream
	// (spec.md §4.3 step 4); codegen must not translate it — instead a
	// pure-interpret request covers the next few bytecodes.
	Failed bool
}

// Fetcher decodes the instruction at a bytecode offset within the unit
// being analyzed. Supplied by the bytecode compiler (out of scope here,
// spec.md §1); the analyzer only ever consumes already-decoded
// Instructions through this seam.
type Fetcher func(offset uint32) (bytecode.Instruction, error)

// Limits bounds the analyzer per spec.md §4.3 step 3 ("a hard limit on
// tracelet length is reached").
type Limits struct {
	MaxInstructions int
}

// DefaultLimits matches the teacher's conservative defaults: small
// enough that a runaway tracelet cannot exhaust the code cache before
// the translation-limit-per-source-key check (internal/cache) ever
// kicks in.
var DefaultLimits = Limits{MaxInstructions: 512}

// arity describes a bytecode.Opcode's static stack effect: how many
// cells it pops and pushes. This is the "per-opcode analyze routine"
// spec.md §4.3 describes, reduced to its stack-shape component; the
// type-refinement component lives in resolveOutputType below.
type arity struct {
	pops, pushes int
	// endsBlock marks opcodes after which the shared emission sequence's
	// step 4 applies (spec.md §4.4): sync outputs, bind-jump to the
	// fall-through source key, unless the opcode is self-terminating
	// (RetC, unconditional Jmp).
	endsBlock     bool
	selfTerminate bool
}

var arityTable = map[bytecode.Opcode]arity{
	bytecode.OpInt:          {pops: 0, pushes: 1},
	bytecode.OpDouble:       {pops: 0, pushes: 1},
	bytecode.OpString:       {pops: 0, pushes: 1},
	bytecode.OpNull:         {pops: 0, pushes: 1},
	bytecode.OpTrue:         {pops: 0, pushes: 1},
	bytecode.OpFalse:        {pops: 0, pushes: 1},
	bytecode.OpPopC:         {pops: 1, pushes: 0},
	bytecode.OpDup:          {pops: 0, pushes: 1},
	bytecode.OpCGetL:        {pops: 0, pushes: 1},
	bytecode.OpSetL:         {pops: 1, pushes: 1},
	bytecode.OpIncDecL:      {pops: 0, pushes: 1},
	bytecode.OpCGetG:        {pops: 1, pushes: 1},
	bytecode.OpSetG:         {pops: 2, pushes: 1},
	bytecode.OpAdd:          {pops: 2, pushes: 1},
	bytecode.OpSub:          {pops: 2, pushes: 1},
	bytecode.OpMul:          {pops: 2, pushes: 1},
	bytecode.OpLt:           {pops: 2, pushes: 1},
	bytecode.OpGt:           {pops: 2, pushes: 1},
	bytecode.OpEq:           {pops: 2, pushes: 1},
	bytecode.OpNeq:          {pops: 2, pushes: 1},
	bytecode.OpJmp:          {pops: 0, pushes: 0, endsBlock: true, selfTerminate: true},
	bytecode.OpJmpZ:         {pops: 1, pushes: 0, endsBlock: true},
	bytecode.OpJmpNZ:        {pops: 1, pushes: 0, endsBlock: true},
	bytecode.OpRetC:         {pops: 1, pushes: 0, endsBlock: true, selfTerminate: true},
	bytecode.OpNewArray:     {pops: 0, pushes: 1},
	bytecode.OpCGetM:        {pops: 1, pushes: 1},
	bytecode.OpSetM:         {pops: 2, pushes: 1},
	bytecode.OpFPushFuncD:   {pops: 0, pushes: 0},
	bytecode.OpFPassC:       {pops: 1, pushes: 0},
	bytecode.OpFCall:        {pops: 0, pushes: 1, endsBlock: true},
	bytecode.OpIterInit:     {pops: 1, pushes: 0, endsBlock: true},
	bytecode.OpIterNext:     {pops: 0, pushes: 0, endsBlock: true},
}

// stack models the tracelet-local virtual stack during analysis: a
// slice of Locations addressed relative to the tracelet's entry SP, per
// internal/loc's Stack offset convention.
type stack struct {
	entries []loc.Location
}

func (s *stack) push(l loc.Location) { s.entries = append(s.entries, l) }

func (s *stack) pop() loc.Location {
	n := len(s.entries)
	l := s.entries[n-1]
	s.entries = s.entries[:n-1]
	return l
}

func (s *stack) top() loc.Location { return s.entries[len(s.entries)-1] }

// Analyze runs spec.md §4.3's algorithm starting at start, using env as
// the initial type environment (already seeded from a runtime
// snapshot), fetching instructions through fetch, bounded by limits.
func Analyze(start sourcekey.SourceKey, env *Env, fetch Fetcher, limits Limits) *Tracelet {
	t := &Tracelet{Start: start}
	st := &stack{}
	offset := start.Offset

	for len(t.Instructions) < limits.MaxInstructions {
		instr, err := fetch(uint32(offset))
		if err != nil {
			t.Failed = true
			return t
		}

		ar, known := arityTable[instr.Op]
		if !known {
			// No static table entry: conservatively require
			// interpretation rather than guess at stack shape.
			t.Instructions = append(t.Instructions, NormalizedInstruction{
				Offset: uint32(offset), Instr: instr, Plan: PlanInterp,
			})
			t.Failed = true
			return t
		}

		ni := NormalizedInstruction{Offset: uint32(offset), Instr: instr}

		// Resolve inputs, introducing guards for anything not yet
		// tracked (spec.md §4.3 step 2).
		inputLocs := make([]loc.Location, ar.pops)
		for i := ar.pops - 1; i >= 0; i-- {
			inputLocs[i] = st.pop()
		}
		// Local-touching opcodes additionally read/write a Location
		// keyed by the instruction's immediate slot rather than the
		// value stack.
		var touchedLocal loc.Location
		touchesLocal := instr.Op == bytecode.OpCGetL || instr.Op == bytecode.OpSetL || instr.Op == bytecode.OpIncDecL
		if touchesLocal {
			touchedLocal = loc.Local(instr.Imm.Slot)
			inputLocs = append(inputLocs, touchedLocal)
		}

		for _, l := range inputLocs {
			typ, ok := env.lookup(l)
			if !ok {
				typ = rtype.Vague()
				env.Types[l] = typ
				t.Guards = append(t.Guards, Guard{Loc: l, Required: typ})
			}
			ni.Inputs = append(ni.Inputs, loc.Dyn(l, typ))
			if typ.Kind == rtype.KindRef && !typ.Vague {
				// Reading through a box needs both an outer-ref guard and
				// an inner-type guard, spec.md §4.3's "distinct from outer
				// type guards." A known Ref was tracked already, so the
				// loop above recorded no guard for it.
				t.Guards = append(t.Guards, Guard{Loc: l, Required: typ})
				t.Guards = append(t.Guards, Guard{Loc: l, Required: *typ.Inner, InnerGuard: true})
			}
		}

		ni.Plan = selectPlan(instr.Op, ni.Inputs)

		// Resolve outputs. SetL/IncDecL additionally write back through
		// touchedLocal (spec.md §4.4: "leaves value on stack" — the
		// local's own binding and the pushed copy are tracked as
		// distinct Locations so stack-depth bookkeeping stays uniform).
		outType, predicted := resolveOutputType(instr.Op, ni.Inputs)
		if touchesLocal && instr.Op != bytecode.OpCGetL {
			env.Types[touchedLocal] = outType
		}
		for i := 0; i < ar.pushes; i++ {
			outLoc := loc.Stack(int32(len(st.entries)))
			env.Types[outLoc] = outType
			ni.Outputs = append(ni.Outputs, loc.Dyn(outLoc, outType))
			ni.Predicted = ni.Predicted || predicted
			st.push(outLoc)
		}

		ni.EndsBlock = ar.endsBlock
		ni.SelfTerminate = ar.selfTerminate
		t.Instructions = append(t.Instructions, ni)

		if ar.endsBlock {
			// spec.md §4.3 step 3: stop at any instruction marked as
			// breaking the basic block, unless it's a statically-known
			// direct fall-through — none of our endsBlock opcodes are.
			return t
		}
		offset++
	}
	return t
}

// selectPlan is the "static table lookup refined by input RuntimeTypes"
// spec.md §4.3 describes: specialized fast paths require every input to
// be statically known (non-Vague); anything Vague falls back to a
// generic helper, and a hard interpret is reserved for instructions this
// analyzer has no opcode-specific routine for at all (handled by the
// caller before selectPlan is reached).
func selectPlan(op bytecode.Opcode, inputs []loc.DynLocation) Plan {
	for _, in := range inputs {
		if in.Type.Vague {
			return PlanGenericHelper
		}
	}
	return PlanSpecialized
}

// resolveOutputType computes an opcode's output classification from its
// resolved inputs, and whether that output is a prediction rather than a
// proof (spec.md §4.3's "prediction" mechanism for global fetch/dynamic
// call/cache lookup opcodes).
func resolveOutputType(op bytecode.Opcode, inputs []loc.DynLocation) (rtype.RuntimeType, bool) {
	switch op {
	case bytecode.OpInt:
		return rtype.Known(rtype.KindInt), false
	case bytecode.OpDouble:
		return rtype.Known(rtype.KindDouble), false
	case bytecode.OpString:
		return rtype.SpecializedString(rtype.StringStatic), false
	case bytecode.OpNull:
		return rtype.Known(rtype.KindNull), false
	case bytecode.OpTrue, bytecode.OpFalse:
		return rtype.Known(rtype.KindBool), false
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul:
		if len(inputs) == 2 && inputs[0].Type.Kind == rtype.KindInt && inputs[1].Type.Kind == rtype.KindInt {
			return rtype.Known(rtype.KindInt), false
		}
		return rtype.Known(rtype.KindDouble), false
	case bytecode.OpLt, bytecode.OpGt, bytecode.OpEq, bytecode.OpNeq:
		return rtype.Known(rtype.KindBool), false
	case bytecode.OpNewArray:
		return rtype.Known(rtype.KindArray), false
	case bytecode.OpCGetL:
		// The pushed copy has the local's type, read through a box.
		in := inputs[len(inputs)-1].Type
		if in.Kind == rtype.KindRef && in.Inner != nil {
			return *in.Inner, false
		}
		return in, false
	case bytecode.OpCGetG, bytecode.OpCGetM, bytecode.OpFCall:
		// Cache-backed or dynamically-resolved outputs: a prediction,
		// not a proof, per spec.md §4.3.
		return rtype.Vague(), true
	case bytecode.OpSetG, bytecode.OpSetM, bytecode.OpIncDecL:
		if len(inputs) > 0 {
			return inputs[len(inputs)-1].Type, false
		}
		return rtype.Vague(), false
	default:
		return rtype.Vague(), false
	}
}

func (n NormalizedInstruction) String() string {
	return fmt.Sprintf("%d: %s in=%v out=%v plan=%d", n.Offset, n.Instr.Op, n.Inputs, n.Outputs, n.Plan)
}

// ErrForFailedTracelet names the error a failed Tracelet's caller should
// raise when asked to translate it; spec.md §4.3 step 4 says such a
// tracelet must instead become a pure-interpret request.
var ErrForFailedTracelet = tlerr.ErrAnalysisFailed
