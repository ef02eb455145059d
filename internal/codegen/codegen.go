// Package codegen implements spec.md §4.4's per-opcode translators: the
// shared four-step emission sequence every NormalizedInstruction goes
// through, and the noteworthy per-opcode lowering decisions (type
// checks, reference counting, property/array/global access, method
// dispatch, calls, returns).
//
// Like internal/prologue, this package stops short of driving
// internal/asm's byte-level encoder directly: it resolves every
// allocator decision (through internal/regalloc) and every
// helper/service-request dispatch decision, and returns an ordered
// Step trace that a real instruction encoder consumes. This mirrors
// internal/tracelet's own "what, not how" boundary one layer down.
package codegen

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/regalloc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/servicereq"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tlerr"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tracelet"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/unwind"
)

// StepKind classifies one entry of a translation's emission trace.
type StepKind byte

const (
	StepGuard StepKind = iota
	StepSyncToMemory
	StepInterpCall
	StepFastPath
	StepHelperCall
	StepPredictionGuard
	StepBindJump
	StepInvalidate
)

func (k StepKind) String() string {
	switch k {
	case StepGuard:
		return "guard"
	case StepSyncToMemory:
		return "sync-to-memory"
	case StepInterpCall:
		return "interp-call"
	case StepFastPath:
		return "fast-path"
	case StepHelperCall:
		return "helper-call"
	case StepPredictionGuard:
		return "prediction-guard"
	case StepBindJump:
		return "bind-jump"
	case StepInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// HelperCall names an external collaborator call a Step delegates to:
// either one of hostabi.Helpers' methods, or a host collaborator this
// JIT never models beyond a name (e.g. a generic arithmetic operator,
// a per-type refcount release stub) since spec.md §1 puts the object
// model and interpreter's own operator semantics out of scope.
type HelperCall struct {
	Name string
	// ClobbersCallerSaved is true for any real call (spec.md §4.2:
	// "calling conventions ... clobber sets"); regalloc.CallerSaved
	// must be cleaned/smashed around it.
	ClobbersCallerSaved bool
}

// Step is one entry of a translation's emission trace.
type Step struct {
	Offset uint32
	Kind   StepKind
	Detail string
	Helper *HelperCall
}

// Result is one tracelet's full lowering: the ordered Steps, plus every
// service request the translation accumulates (bind-jumps at block
// ends, bind-calls for FCall) and every unwind fixup site a
// potentially-throwing helper call introduces.
type Result struct {
	Steps        []Step
	Requests     []servicereq.Request
	FixupSites   []FixupSite
}

// FixupSite is recorded at the return address of every Step whose
// HelperCall could throw or re-enter the runtime (spec.md §4.7).
// internal/unwind.FixupMap.Record is populated from these once the
// encoder has assigned real addresses.
type FixupSite struct {
	BytecodeOffset uint32
	StackDepth     uint32
	RegMap         []unwind.RegBinding
}

// Translator lowers one Tracelet at a time. A fresh Translator is used
// per translation; Regs is expected to already be wired with a
// writeBack callback that appends to the caller's own Step-consuming
// encoder (this package only records *that* a sync happened, not the
// store instruction's bytes).
type Translator struct {
	Regs    *regalloc.RegisterMap
	Layout  hostabi.FrameLayout
	FuncID  sourcekey.FuncID

	result Result
}

// New constructs a Translator over an already-constructed RegisterMap.
func New(regs *regalloc.RegisterMap, layout hostabi.FrameLayout, fn sourcekey.FuncID) *Translator {
	return &Translator{Regs: regs, Layout: layout, FuncID: fn}
}

func (t *Translator) emit(offset uint32, kind StepKind, detail string) {
	t.result.Steps = append(t.result.Steps, Step{Offset: offset, Kind: kind, Detail: detail})
}

func (t *Translator) emitHelper(offset uint32, kind StepKind, detail string, h HelperCall) {
	hc := h
	t.result.Steps = append(t.result.Steps, Step{Offset: offset, Kind: kind, Detail: detail, Helper: &hc})
	if hc.ClobbersCallerSaved {
		t.Regs.SmashRegs(regalloc.CallerSaved)
		t.result.FixupSites = append(t.result.FixupSites, FixupSite{BytecodeOffset: offset})
	}
}

// TranslateTracelet lowers every instruction of t in order, implementing
// spec.md §4.4's shared four-step emission sequence around each one. A
// Failed tracelet (spec.md §4.3 step 4) must never reach here — callers
// route it to a pure-interpret request instead, same as
// tracelet.ErrForFailedTracelet signals upstream.
func (t *Translator) TranslateTracelet(tl *tracelet.Tracelet) (*Result, error) {
	if tl.Failed {
		return nil, tlerr.ErrAnalysisFailed
	}

	// Step 1: emit guards for every Location the tracelet's analysis
	// introduced (spec.md §4.4 step 1; spec.md §4.3's Guards list is the
	// tracelet-wide union of every "newly introduced input type
	// requirement").
	for _, g := range tl.Guards {
		detail := fmt.Sprintf("require %s @ %s", g.Required, g.Loc)
		if g.InnerGuard {
			detail = "inner " + detail
		}
		t.emit(tl.Start.Offset, StepGuard, detail)
	}

	for _, ni := range tl.Instructions {
		if err := t.translateOne(ni); err != nil {
			return nil, err
		}
	}

	return &t.result, nil
}

func (t *Translator) translateOne(ni tracelet.NormalizedInstruction) error {
	// Step 2: PlanInterp bails out of the fast path entirely.
	if ni.Plan == tracelet.PlanInterp {
		t.emit(ni.Offset, StepSyncToMemory, "flush all live bindings before interpreting")
		t.Regs.SmashRegs(regalloc.CallerSaved)
		t.emit(ni.Offset, StepInterpCall, fmt.Sprintf("interpret %s via dispatch table", ni.Instr.Op))
		if ni.EndsBlock {
			t.bindJump(ni.Offset+1, servicereq.KindResume)
		}
		return nil
	}

	// Step 3: allocate inputs, dispatch to the opcode's translate
	// routine, invalidate dead Locations, emit a prediction guard.
	for _, in := range ni.Inputs {
		t.Regs.AllocInputReg(in.Loc, in.Type, asm.NilRegister)
	}

	if err := t.translateOpcode(ni); err != nil {
		return err
	}

	for _, in := range ni.Inputs {
		if !stillLiveAfter(ni, in.Loc) {
			t.emit(ni.Offset, StepInvalidate, fmt.Sprintf("dead after this instruction: %s", in.Loc))
			t.Regs.Invalidate(in.Loc)
		}
	}

	if ni.Predicted {
		t.emit(ni.Offset, StepPredictionGuard, fmt.Sprintf("side-exit if %s output deviates from prediction", ni.Instr.Op))
	}

	// Step 4: a block-ending, non-self-terminating instruction must sync
	// outputs and bind-jump to the fall-through source key.
	if ni.EndsBlock && !ni.SelfTerminate {
		for _, out := range ni.Outputs {
			t.emit(ni.Offset, StepSyncToMemory, fmt.Sprintf("flush output %s before leaving the tracelet", out.Loc))
		}
		t.bindJump(ni.Offset+1, servicereq.KindBindJmp)
	}

	return nil
}

// stillLiveAfter is a placeholder liveness query: with no basic-block-wide
// liveness analysis built into NormalizedInstruction, this package
// conservatively treats every local as live (its value may be read by a
// later tracelet) and every stack temporary as dead once consumed,
// matching "values the interpreter can still observe" vs. "values that
// existed only to compute this instruction's output."
func stillLiveAfter(ni tracelet.NormalizedInstruction, l loc.Location) bool {
	return l.Kind() != loc.KindStack
}

func (t *Translator) bindJump(target uint32, kind servicereq.Kind) {
	t.result.Requests = append(t.result.Requests, servicereq.Request{
		Kind:   kind,
		Target: sourcekey.New(t.FuncID, sourcekey.Offset(target)),
	})
}

func (t *Translator) translateOpcode(ni tracelet.NormalizedInstruction) error {
	switch ni.Instr.Op {
	case bytecode.OpInt, bytecode.OpDouble, bytecode.OpString, bytecode.OpNull, bytecode.OpTrue, bytecode.OpFalse:
		return t.translateImmediate(ni)
	case bytecode.OpPopC:
		return t.translatePopC(ni)
	case bytecode.OpDup:
		return t.translateDup(ni)
	case bytecode.OpCGetL, bytecode.OpSetL, bytecode.OpIncDecL:
		return t.translateLocal(ni)
	case bytecode.OpCGetG, bytecode.OpSetG:
		return t.translateGlobal(ni)
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul:
		return t.translateArith(ni)
	case bytecode.OpLt, bytecode.OpGt, bytecode.OpEq, bytecode.OpNeq:
		return t.translateCompare(ni)
	case bytecode.OpJmp, bytecode.OpJmpZ, bytecode.OpJmpNZ:
		return t.translateBranch(ni)
	case bytecode.OpRetC:
		return t.translateReturn(ni)
	case bytecode.OpNewArray:
		return t.translateNewArray(ni)
	case bytecode.OpCGetM, bytecode.OpSetM:
		return t.translateMember(ni)
	case bytecode.OpFPushFuncD, bytecode.OpFPassC:
		return t.translateCallSetup(ni)
	case bytecode.OpFCall:
		return t.translateCall(ni)
	case bytecode.OpIterInit, bytecode.OpIterNext:
		return t.translateIter(ni)
	case bytecode.OpIncRef:
		return t.translateIncRef(ni)
	case bytecode.OpDecRef:
		return t.translateDecRef(ni)
	default:
		return fmt.Errorf("codegen: no translate routine for %s", ni.Instr.Op)
	}
}

func (t *Translator) translateImmediate(ni tracelet.NormalizedInstruction) error {
	out := ni.Outputs[0]
	t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
	t.emit(ni.Offset, StepFastPath, fmt.Sprintf("materialize %s immediate into %s", ni.Instr.Op, out.Loc))
	return nil
}

func (t *Translator) translatePopC(ni tracelet.NormalizedInstruction) error {
	in := ni.Inputs[0]
	if refcounted(in.Type) {
		t.emitDecref(ni.Offset, in)
	}
	t.emit(ni.Offset, StepFastPath, fmt.Sprintf("discard %s", in.Loc))
	return nil
}

func (t *Translator) translateDup(ni tracelet.NormalizedInstruction) error {
	in, out := ni.Inputs[0], ni.Outputs[0]
	if refcounted(in.Type) {
		t.emitIncref(ni.Offset, in)
	}
	t.emit(ni.Offset, StepFastPath, fmt.Sprintf("duplicate %s into %s", in.Loc, out.Loc))
	return nil
}

// translateLocal lowers CGetL/SetL/IncDecL via a direct load/store
// against the frame pointer + Layout.LocalOffset (spec.md §4.4's
// implicit "locals are a fixed-offset array off the frame pointer,"
// reused verbatim from internal/prologue's frame installation).
func (t *Translator) translateLocal(ni tracelet.NormalizedInstruction) error {
	localID := ni.Instr.Imm.Slot
	offset := t.Layout.LocalOffset(localID)
	switch ni.Instr.Op {
	case bytecode.OpCGetL:
		out := ni.Outputs[0]
		t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("load local %d (fp%+d) into %s", localID, offset, out.Loc))
		if refcounted(out.Type) {
			t.emitIncref(ni.Offset, out)
		}
	case bytecode.OpSetL:
		in, out := ni.Inputs[len(ni.Inputs)-1], ni.Outputs[0]
		t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("store %s into local %d (fp%+d), leave copy in %s", in.Loc, localID, offset, out.Loc))
	case bytecode.OpIncDecL:
		out := ni.Outputs[0]
		t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("inc/dec local %d (fp%+d) in place, push into %s", localID, offset, out.Loc))
	}
	return nil
}

// translateGlobal lowers CGetG/SetG through a per-name cache handle
// (spec.md §4.4 "Global fetch"): a load from a thread-local cache base,
// falling back on a cold miss helper. Modeled with
// regalloc.BeginUnlikelyIf/EndUnlikelyIf exactly as spec.md's cold-path
// wording describes.
func (t *Translator) translateGlobal(ni tracelet.NormalizedInstruction) error {
	out := ni.Outputs[0]
	t.emit(ni.Offset, StepFastPath, "load thread-local global cache handle")

	block := regalloc.BeginUnlikelyIf(t.Regs)
	var helperName string
	if ni.Instr.Op == bytecode.OpCGetG {
		helperName = "Helpers.GlobalGet"
	} else {
		helperName = "Helpers.GlobalSet"
	}
	t.emitHelper(ni.Offset, StepHelperCall, "cache miss: call global miss helper (may create the global)", HelperCall{Name: helperName, ClobbersCallerSaved: true})
	reconciliations := block.EndUnlikelyIf(t.Regs)
	for range reconciliations {
		t.emit(ni.Offset, StepSyncToMemory, "reconcile register state after global-miss cold path")
	}

	t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
	return nil
}

// translateArith lowers Add/Sub/Mul. PlanSpecialized means both inputs
// are statically known int or double (internal/tracelet's
// resolveOutputType already proved this); PlanGenericHelper routes to
// the interpreter's own generic operator semantics, which spec.md §1
// puts out of scope for this JIT and so is tracked only by name here,
// the same way internal/prologue's MagicShuffleCall names an unmodeled
// collaborator.
func (t *Translator) translateArith(ni tracelet.NormalizedInstruction) error {
	out := ni.Outputs[0]
	t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
	if ni.Plan == tracelet.PlanSpecialized {
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("%s %s, %s -> %s (specialized %s)", ni.Instr.Op, ni.Inputs[0].Loc, ni.Inputs[1].Loc, out.Loc, out.Type.Kind))
		return nil
	}
	t.emitHelper(ni.Offset, StepHelperCall, fmt.Sprintf("generic %s via interpreter operator helper", ni.Instr.Op), HelperCall{Name: "generic-arith-operator", ClobbersCallerSaved: true})
	return nil
}

func (t *Translator) translateCompare(ni tracelet.NormalizedInstruction) error {
	out := ni.Outputs[0]
	t.Regs.AllocOutputReg(out.Loc, out.Type, asm.NilRegister)
	if ni.Plan == tracelet.PlanSpecialized {
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("cmp %s, %s; set%s -> %s", ni.Inputs[0].Loc, ni.Inputs[1].Loc, ni.Instr.Op, out.Loc))
		return nil
	}
	t.emitHelper(ni.Offset, StepHelperCall, fmt.Sprintf("generic %s via interpreter comparison helper", ni.Instr.Op), HelperCall{Name: "generic-compare-operator", ClobbersCallerSaved: true})
	return nil
}

func (t *Translator) translateBranch(ni tracelet.NormalizedInstruction) error {
	target := sourcekey.New(t.FuncID, sourcekey.Offset(ni.Instr.Imm.Target))
	switch ni.Instr.Op {
	case bytecode.OpJmp:
		t.emit(ni.Offset, StepFastPath, "unconditional jump (self-terminating, no fall-through bind-jump needed)")
		t.result.Requests = append(t.result.Requests, servicereq.Request{Kind: servicereq.KindBindJmp, Target: target})
	case bytecode.OpJmpZ, bytecode.OpJmpNZ:
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("test %s; %s", ni.Inputs[0].Loc, ni.Instr.Op))
		kind := servicereq.KindBindJmpccFirst
		if ni.Instr.Op == bytecode.OpJmpNZ {
			kind = servicereq.KindBindJmpccSecond
		}
		t.result.Requests = append(t.result.Requests, servicereq.Request{Kind: kind, Target: target})
	}
	return nil
}

// translateReturn lowers RetC per spec.md §4.4: either an inlined
// per-local decref sequence (small local count, no variable environment)
// or a frame-release helper call, then a jump through the saved return
// IP. Output-location scrubbing happens first.
func (t *Translator) translateReturn(ni tracelet.NormalizedInstruction) error {
	in := ni.Inputs[0]
	t.emit(ni.Offset, StepSyncToMemory, fmt.Sprintf("scrub output location, preserve %s as the return value", in.Loc))

	const inlineDecrefThreshold = 8
	if t.Layout.NumLocals <= inlineDecrefThreshold {
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("inline decref of %d locals", t.Layout.NumLocals))
	} else {
		t.emitHelper(ni.Offset, StepHelperCall, "release frame via frame-release helper", HelperCall{Name: "frame-release", ClobbersCallerSaved: true})
	}

	t.emit(ni.Offset, StepFastPath, "restore caller frame pointer, jump through saved return IP")
	return nil
}

func (t *Translator) translateNewArray(ni tracelet.NormalizedInstruction) error {
	out := ni.Outputs[0]
	t.emitHelper(ni.Offset, StepHelperCall, "allocate empty array", HelperCall{Name: "array-alloc-empty", ClobbersCallerSaved: true})
	t.Regs.Bind(asm.NilRegister, out.Loc, out.Type, true)
	return nil
}

// selectMemberHelper picks the specialized helper spec.md §4.4 describes
// for CGetM/SetM: "one of a small set of specialized helpers chosen on
// the triple (key-type, value-type, key-is-stack-or-local)." The
// opcode table (internal/bytecode) models CGetM/SetM as one generic
// "member" op over a single already-resolved base Location rather than
// separate array/property opcodes; this translator reads that base's
// RuntimeType to decide which family of helper applies — documented
// here, and in DESIGN.md, as a deliberate simplification of spec.md's
// richer member-access surface to this opcode table's granularity.
func selectMemberHelper(baseType rtype.RuntimeType, keyLoc loc.Location, write bool) string {
	keyClass := "stack"
	if keyLoc.Kind() == loc.KindLocal {
		keyClass = "local"
	}
	verb := "get"
	if write {
		verb = "set"
	}
	if baseType.Kind == rtype.KindObject {
		return fmt.Sprintf("prop-%s(%s,%s)", verb, classSpecialization(baseType), keyClass)
	}
	return fmt.Sprintf("array-%s(%s)", verb, keyClass)
}

func classSpecialization(t rtype.RuntimeType) string {
	if t.Specialized {
		return "known-class"
	}
	return "generic-class"
}

func (t *Translator) translateMember(ni tracelet.NormalizedInstruction) error {
	base := ni.Inputs[0]
	write := ni.Instr.Op == bytecode.OpSetM
	out := ni.Outputs[0]

	if base.Type.Kind == rtype.KindObject && base.Type.Specialized {
		// Known class and offset: a single constant-offset load plus an
		// uninitialized-discriminator check (spec.md §4.4).
		t.emit(ni.Offset, StepFastPath, fmt.Sprintf("load prop at constant offset off %s", base.Loc))
		block := regalloc.BeginUnlikelyIf(t.Regs)
		t.emitHelper(ni.Offset, StepHelperCall, "uninitialized prop: warn-undefined, fall through with null", HelperCall{Name: "Helpers.Notify", ClobbersCallerSaved: true})
		block.EndUnlikelyIf(t.Regs)
	} else {
		helper := selectMemberHelper(base.Type, base.Loc, write)
		name := "Helpers.ArrayGet"
		if write {
			name = "Helpers.ArraySet"
		}
		if base.Type.Kind == rtype.KindObject {
			name = "Helpers.PropGet"
			if write {
				name = "Helpers.PropSet"
			}
		}
		t.emitHelper(ni.Offset, StepHelperCall, fmt.Sprintf("member access via %s", helper), HelperCall{Name: name, ClobbersCallerSaved: true})
		if write && (name == "Helpers.ArraySet") {
			t.emit(ni.Offset, StepFastPath, "rebind possibly-new array pointer in the allocator")
		}
	}

	t.Regs.Bind(asm.NilRegister, out.Loc, out.Type, true)
	return nil
}

func (t *Translator) translateCallSetup(ni tracelet.NormalizedInstruction) error {
	t.emit(ni.Offset, StepFastPath, fmt.Sprintf("%s: build in-progress call's activation record", ni.Instr.Op))
	return nil
}

// translateCall lowers FCall per spec.md §4.4: no direct call
// instruction. It reserves a smashable return-IP immediate, records the
// post-call bytecode offset into the activation record, and emits a
// bind-call service request; the first execution resolves the callee's
// prologue and patches the return path.
func (t *Translator) translateCall(ni tracelet.NormalizedInstruction) error {
	t.emit(ni.Offset, StepFastPath, "reserve smashable return-IP immediate, aligned per asm.PrepareForSmash")
	postCall := sourcekey.New(t.FuncID, sourcekey.Offset(ni.Offset+1))
	t.emit(ni.Offset, StepFastPath, fmt.Sprintf("store post-call offset %s into the activation record", postCall))
	t.result.Requests = append(t.result.Requests, servicereq.Request{Kind: servicereq.KindBindCall, Target: postCall})

	out := ni.Outputs[0]
	t.Regs.Bind(asm.NilRegister, out.Loc, out.Type, true)
	return nil
}

func (t *Translator) translateIter(ni tracelet.NormalizedInstruction) error {
	switch ni.Instr.Op {
	case bytecode.OpIterInit:
		in := ni.Inputs[0]
		t.emitHelper(ni.Offset, StepHelperCall, fmt.Sprintf("initialize iterator over %s", in.Loc), HelperCall{Name: "iterator-init", ClobbersCallerSaved: true})
	case bytecode.OpIterNext:
		t.emitHelper(ni.Offset, StepHelperCall, "advance iterator", HelperCall{Name: "iterator-next", ClobbersCallerSaved: true})
		target := sourcekey.New(t.FuncID, sourcekey.Offset(ni.Instr.Imm.Target))
		t.result.Requests = append(t.result.Requests, servicereq.Request{Kind: servicereq.KindBindSideExit, Target: target})
	}
	return nil
}

// refcounted reports whether a RuntimeType's Kind carries a refcount
// field at all (spec.md §4.4: "incref is ... gated by a
// static-refcount-sentinel test when the type might be a
// static-allocated value"). Null/bool/int/double never do.
func refcounted(t rtype.RuntimeType) bool {
	switch t.Kind {
	case rtype.KindString, rtype.KindArray, rtype.KindObject, rtype.KindRef:
		return true
	default:
		return false
	}
}

// emitIncref lowers spec.md §4.4's incref: an add-imm to the count
// field, gated by a static-refcount-sentinel test when the value might
// be a static (non-refcounted) string.
func (t *Translator) emitIncref(offset uint32, v loc.DynLocation) {
	if v.Type.Kind == rtype.KindString && v.Type.Str != rtype.StringNonStatic {
		t.emit(offset, StepFastPath, fmt.Sprintf("incref %s, gated by static-string sentinel test", v.Loc))
		return
	}
	t.emit(offset, StepFastPath, fmt.Sprintf("incref %s (add-imm to count field)", v.Loc))
}

// emitDecref lowers spec.md §4.4's decref: decrement, and on reaching
// zero call a per-type release stub (in cold code, caller-saved
// registers preserved across it). A Vague type can't prove refcountedness
// statically, so it gets the generic form: an inline test plus a jump
// to the generic stub only if the type turns out to be refcounted.
func (t *Translator) emitDecref(offset uint32, v loc.DynLocation) {
	if v.Type.Vague {
		t.emit(offset, StepFastPath, fmt.Sprintf("generic decref of %s: inline refcounted-type test", v.Loc))
		block := regalloc.BeginUnlikelyIf(t.Regs)
		t.emitHelper(offset, StepHelperCall, "refcounted: jump to generic release stub", HelperCall{Name: "Helpers.Decref", ClobbersCallerSaved: true})
		block.EndUnlikelyIf(t.Regs)
		return
	}
	if v.Type.Kind == rtype.KindString && v.Type.Str != rtype.StringNonStatic {
		t.emit(offset, StepFastPath, fmt.Sprintf("decref %s, gated by static-string sentinel test", v.Loc))
		return
	}
	t.emit(offset, StepFastPath, fmt.Sprintf("decref %s; on zero, call per-type release stub (cold, caller-saved preserved)", v.Loc))
	t.emitHelper(offset, StepHelperCall, "per-type release stub", HelperCall{Name: "Helpers.Decref", ClobbersCallerSaved: true})
}

func (t *Translator) translateIncRef(ni tracelet.NormalizedInstruction) error {
	t.emitIncref(ni.Offset, ni.Inputs[0])
	return nil
}

func (t *Translator) translateDecRef(ni tracelet.NormalizedInstruction) error {
	t.emitDecref(ni.Offset, ni.Inputs[0])
	return nil
}
