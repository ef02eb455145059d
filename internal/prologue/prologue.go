// Package prologue implements spec.md §4.5's function prologues: the
// shared adapter between a caller's call site and a callee's body,
// generated once per (function, argument-count-bucket) pair and
// reached exclusively through a bind-call service request
// (internal/servicereq).
package prologue

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

// Param describes one declared parameter for the purpose of argument-count
// adaptation (spec.md §4.5 step 3).
type Param struct {
	// HasDefault is true when a missing argument is initialized from a
	// default-value-initializer funclet rather than uninitialized-null.
	HasDefault bool
	// DefaultFuncletOffset is the bytecode offset of that funclet's
	// entry, valid only when HasDefault.
	DefaultFuncletOffset sourcekey.Offset
}

// FuncDescriptor is the subset of a function's static shape a prologue
// needs: its identity, declared parameters, frame size, and whether it
// may read extra positional arguments beyond its declared parameters
// (PHP's func_get_args()-style use, spec.md §4.5 step 3's "may use
// them").
type FuncDescriptor struct {
	ID sourcekey.FuncID

	Params []Param

	// NumLocals/NumIters size the frame this prologue installs
	// (spec.md §4.5 step 4).
	NumLocals uint32
	NumIters  uint32

	// MayUseExtraArgs selects the trim-extra-args strategy: stash in the
	// activation record if true, refcount-drop otherwise.
	MayUseExtraArgs bool

	// Magic marks a __call/__callStatic shuffle-and-adapt entry (spec.md
	// §4.5 "Magic-call prologues").
	Magic bool

	// Body is the source key of the function's first bytecode
	// instruction — the bind-jump target once the prologue finishes.
	Body sourcekey.SourceKey
}

// Bucket is min(nPassed, numParams+1), spec.md §4.5's prologue keying
// rule: every argument count beyond numParams+1 shares the same
// "too many arguments" adaptation path.
func Bucket(nPassed int, numParams int) int {
	max := numParams + 1
	if nPassed > max {
		return max
	}
	return nPassed
}

// GuardState is the func-guard's current patched value: either the
// expected callee identity (guard passes, direct calls reach the body) or
// zero (guard always misses — spec.md §4.5 "Intercepted prologues": "the
// guard immediate is zeroed").
type GuardState uint64

// Zeroed reports whether this GuardState forces every incoming direct
// call to miss and fall through to the redispatch thunk.
func (g GuardState) Zeroed() bool { return g == 0 }

// Prologue is one emitted (function, bucket) adapter. Code/RedispatchThunk
// are native addresses once internal/codegen emits them; this package
// only plans and tracks their bookkeeping, matching how internal/cache
// and internal/servicereq model native code as opaque addresses/bytes
// rather than duplicating internal/asm's encoding layer.
type Prologue struct {
	Func   sourcekey.FuncID
	Bucket int

	// Guard is the func-guard's current patched value; Begin() returns
	// a Prologue with Guard set to the real FuncID. An interception
	// rewrite (Intercept) zeroes it in place.
	Guard GuardState

	// GuardSiteAddr is the address of the 8-byte-aligned smashable
	// guard immediate (spec.md §4.5 step 1: "aligned on an 8-byte
	// boundary so it can be patched atomically").
	GuardSiteAddr uintptr

	// EntryFuncletOffset is the bytecode offset execution actually
	// jumps to once the prologue finishes: either desc.Body, or a
	// default-value funclet's offset when step 3 selected one (spec.md
	// §4.5 step 6 "or to the default-value funclet chosen above").
	EntryFuncletOffset sourcekey.Offset

	// Magic marks this as the magic-call variant.
	Magic bool

	// Code is the native bytes the prologue lowers to. Left nil until
	// internal/codegen fills it in; this package only decides what the
	// prologue must do, not how to encode it.
	Code []byte
}

// Table holds every emitted prologue for one function, keyed by argument
// bucket, plus the redispatch thunk every func-guard mismatch jumps to
// (spec.md §4.5 step 1, invariant 5: "on entering a prologue ... control
// reaches the redispatch thunk and from there the correct prologue").
type Table struct {
	Func sourcekey.FuncID

	buckets map[int]*Prologue

	// MagicEntry is the separate code address the magic-call variant is
	// reached through (spec.md §4.5 "a separate code address carried in
	// the prologue table").
	MagicEntry *Prologue
}

// NewTable constructs an empty prologue table for fn.
func NewTable(fn sourcekey.FuncID) *Table {
	return &Table{Func: fn, buckets: make(map[int]*Prologue)}
}

// Lookup returns the prologue for a given argument bucket, if one has
// been built (spec.md invariant 5's redispatch-thunk lookup).
func (t *Table) Lookup(bucket int) (*Prologue, bool) {
	p, ok := t.buckets[bucket]
	return p, ok
}

// Plan describes the ordered steps (spec.md §4.5 "Prologue
// responsibilities, in order") internal/codegen must lower into native
// code for one (FuncDescriptor, nPassed) pair. It is the prologue
// package's actual deliverable: a fully resolved, argument-count-aware
// recipe, leaving only instruction encoding to codegen.
type Plan struct {
	Bucket int

	// FuncGuardImmediate is the expected caller-visible identity the
	// func guard compares against.
	FuncGuardImmediate sourcekey.FuncID

	// TrimExtra is set when nPassed > numParams: the trim-extra-args
	// helper call to emit, and whether it stashes (for MayUseExtraArgs)
	// or refcount-drops the surplus arguments.
	TrimExtra *TrimExtraArgsStep

	// FillMissing is set when nPassed < numParams: one step per missing
	// parameter, in parameter order.
	FillMissing []FillMissingStep

	// EntryFuncletOffset is where step 6's bind-jump targets: desc.Body
	// unless FillMissing selected an earlier default-value funclet.
	EntryFuncletOffset sourcekey.Offset

	NumLocals uint32
	NumIters  uint32

	Magic bool
}

// TrimExtraArgsStep is spec.md §4.5 step 3's "nPassed > numParams" case.
type TrimExtraArgsStep struct {
	NumExtra int
	Stash    bool // true: stash in activation record; false: refcount-drop.
}

// FillMissingStep is spec.md §4.5 step 3's "nPassed < numParams" case,
// one entry per parameter slot left unfilled by the caller.
type FillMissingStep struct {
	ParamIndex int
	// FuncletOffset is valid when the parameter has a default-value
	// initializer; otherwise the slot is written uninitialized-null.
	HasDefault    bool
	FuncletOffset sourcekey.Offset
}

// BuildPlan resolves spec.md §4.5 step 3's argument-count adaptation and
// step 6's entry-point selection for one concrete call (desc, nPassed).
// It does not emit any code; internal/codegen consumes the returned Plan
// to drive actual instruction selection, the same separation
// internal/tracelet keeps between "what to do" (NormalizedInstruction)
// and "how to encode it" (internal/codegen, not yet reached at analysis
// time).
func BuildPlan(desc FuncDescriptor, nPassed int) Plan {
	numParams := len(desc.Params)
	bucket := Bucket(nPassed, numParams)

	plan := Plan{
		Bucket:             bucket,
		FuncGuardImmediate: desc.ID,
		EntryFuncletOffset: desc.Body.Offset,
		NumLocals:          desc.NumLocals,
		NumIters:           desc.NumIters,
		Magic:              desc.Magic,
	}

	if nPassed > numParams {
		plan.TrimExtra = &TrimExtraArgsStep{
			NumExtra: nPassed - numParams,
			Stash:    desc.MayUseExtraArgs,
		}
		return plan
	}

	if nPassed < numParams {
		entrySet := false
		for i := nPassed; i < numParams; i++ {
			p := desc.Params[i]
			step := FillMissingStep{ParamIndex: i, HasDefault: p.HasDefault, FuncletOffset: p.DefaultFuncletOffset}
			plan.FillMissing = append(plan.FillMissing, step)
			// spec.md §4.5 step 3: "record its bytecode offset as the
			// entry" — the *first* missing parameter with a default
			// decides where control resumes; later missing parameters
			// each still get their own null-init/default step, but the
			// overall entry point doesn't move again.
			if p.HasDefault && !entrySet {
				plan.EntryFuncletOffset = p.DefaultFuncletOffset
				entrySet = true
			}
		}
	}

	return plan
}

// Begin constructs the Prologue record for a built plan, with the
// func-guard set to the real function identity (the normal, uninterrupted
// state — see Intercept for the rewritten state).
func Begin(desc FuncDescriptor, plan Plan, guardSiteAddr uintptr) *Prologue {
	return &Prologue{
		Func:               desc.ID,
		Bucket:             plan.Bucket,
		Guard:              GuardState(desc.ID),
		GuardSiteAddr:      guardSiteAddr,
		EntryFuncletOffset: plan.EntryFuncletOffset,
		Magic:              plan.Magic,
	}
}

// Install records p in t under its bucket (magic-call prologues go to the
// table's separate MagicEntry slot instead, per spec.md's "a separate
// code address carried in the prologue table").
func (t *Table) Install(p *Prologue) {
	if p.Magic {
		t.MagicEntry = p
		return
	}
	t.buckets[p.Bucket] = p
}

// Intercept rewrites p in place per spec.md §4.5's "Intercepted
// prologues": the guard immediate is zeroed so every direct call misses,
// while the prologue itself is left addressable — cached call sites are
// never touched, only the guard they compare against.
func Intercept(p *Prologue) {
	p.Guard = 0
}

// UnrollThreshold drives ZeroInitStrategy, the native zero-init strategy
// for NumLocals locals, per spec.md §4.5 step 4: small frames get one write per slot
// (cheaper than loop overhead), larger frames get a byte loop.
// UnrollThreshold is picked the way the teacher's compiler picks
// per-opcode-vs-generic-helper thresholds generally: small, fixed,
// chosen for code-size/branch-cost tradeoff rather than measured per
// host.
const UnrollThreshold = 8

// ZeroInitStrategy reports whether n locals should be unrolled per-slot
// or zero-initialized with a loop.
func ZeroInitStrategy(n uint32) string {
	if n <= UnrollThreshold {
		return "unroll"
	}
	return "loop"
}

// StackOverflowCheck is spec.md §4.5 step 2's parameters: the frame size
// this prologue must reserve, checked against the sentinel region before
// any local is touched.
type StackOverflowCheck struct {
	FrameBytes int32
}

// NeededFrameBytes computes the frame size a StackOverflowCheck must
// clear before FrameLayout.LocalsOffset/IterOffset can be trusted.
func NeededFrameBytes(layout hostabi.FrameLayout, numLocals, numIters uint32) int32 {
	localsEnd := layout.LocalOffset(numLocals)
	itersEnd := layout.IterSlotOffset(numIters)
	if itersEnd > localsEnd {
		return itersEnd
	}
	return localsEnd
}

// MagicShuffleCall is spec.md's magic-call prologue precursor: "first
// calls a shuffle helper (which repacks arguments into the
// invocation-name + array-of-args calling form expected by
// __call/__callStatic), then falls into the regular two-argument
// prologue." It carries only the invocation name; the shuffle helper
// itself is not named or resolved here.
type MagicShuffleCall struct {
	InvocationName string
}

func (m MagicShuffleCall) String() string {
	return fmt.Sprintf("magic-shuffle(%q)", m.InvocationName)
}
