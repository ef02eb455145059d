// Package regalloc implements spec.md §4.2's register allocator: the API
// per-opcode translators in internal/codegen use to move Locations into
// and out of registers while minimizing loads/stores, honoring
// call-clobber sets, and staying correct across conditional code.
package regalloc

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm/amd64"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

// Dedicated registers spec.md §4.2 reserves "by role" and excludes from
// allocation: a stack-pointer mirror, a frame-pointer mirror, a
// thread-local-base pointer, a stashed-activation-record register used
// across prologue entry, and one scratch register for the assembler's
// internal use.
var (
	RegStackPointer  = amd64.REG_SP
	RegFramePointer  = amd64.REG_BP
	RegThreadBase    = amd64.REG_R14
	RegStashedAR     = amd64.REG_R15
	RegAssemblerTemp = amd64.REG_R13
)

// reserved is the set of registers never considered for allocation.
var reserved = map[asm.Register]bool{
	RegStackPointer:  true,
	RegFramePointer:  true,
	RegThreadBase:    true,
	RegStashedAR:     true,
	RegAssemblerTemp: true,
}

// allocatable is the pool of general-purpose registers available to bind
// Locations to, in preference order.
var allocatable = []asm.Register{
	amd64.REG_AX, amd64.REG_CX, amd64.REG_DX, amd64.REG_BX,
	amd64.REG_SI, amd64.REG_DI,
	amd64.REG_R8, amd64.REG_R9, amd64.REG_R10, amd64.REG_R11, amd64.REG_R12,
}

// CallerSaved is the set of registers a helper call (spec.md §4.2's
// "calling conventions") does not preserve; cleanRegs must flush them
// before the call and smashRegs marks them clobbered afterward. Matches
// the System V AMD64 caller-saved set, restricted to our allocatable
// pool.
var CallerSaved = []asm.Register{
	amd64.REG_AX, amd64.REG_CX, amd64.REG_DX, amd64.REG_SI, amd64.REG_DI,
	amd64.REG_R8, amd64.REG_R9, amd64.REG_R10, amd64.REG_R11,
}

// state is a Location's binding within the allocator: the register (if
// any) it's currently materialized in, whether that register's value is
// ahead of memory (dirty) and needs writing back, and whether it's
// pinned (never auto-spilled). Freezing is not per-binding state: it is
// the RegisterMap-wide flag set by Freeze.
type state struct {
	Loc    loc.Location
	Type   rtype.RuntimeType
	Reg    asm.Register // asm.NilRegister if this Location lives only in memory.
	Dirty  bool
	Pinned bool
}

// Binding describes one dirty register binding being flushed to its
// memory home: which Location, which register it's currently in, and
// its RuntimeType (so the writeback knows how many bytes/what store
// opcode to emit).
type Binding struct {
	Loc  loc.Location
	Type rtype.RuntimeType
	Reg  asm.Register
}

// RegisterMap is spec.md §4.2's register allocator: the live binding of
// every tracked Location to, at most, one register, plus which registers
// are currently in use. One RegisterMap exists per in-flight tracelet
// translation.
type RegisterMap struct {
	byLoc     map[loc.Location]*state
	byReg     map[asm.Register]*state
	frozen    bool
	writeBack func(b Binding) // emits the store instruction for a dirty binding; set by internal/codegen.
}

// New constructs an empty RegisterMap. writeBack is called whenever a
// dirty register binding must be flushed to its memory home (cleanRegs,
// smashRegs, or an implicit spill during allocation); internal/codegen
// supplies it so this package stays assembler-agnostic.
func New(writeBack func(b Binding)) *RegisterMap {
	return &RegisterMap{
		byLoc:     map[loc.Location]*state{},
		byReg:     map[asm.Register]*state{},
		writeBack: writeBack,
	}
}

func (s *state) binding() Binding {
	return Binding{Loc: s.Loc, Type: s.Type, Reg: s.Reg}
}

func (m *RegisterMap) checkNotFrozen() {
	if m.frozen {
		panic("regalloc: state mutation attempted while frozen")
	}
}

// allocFreeReg picks an unused allocatable register, spilling the first
// non-pinned binding in allocatable order if none is free. preferred, if
// non-nil and free, is used first.
func (m *RegisterMap) allocFreeReg(preferred asm.Register) asm.Register {
	if preferred != asm.NilRegister && !reserved[preferred] {
		if _, busy := m.byReg[preferred]; !busy {
			return preferred
		}
	}
	for _, r := range allocatable {
		if _, busy := m.byReg[r]; !busy {
			return r
		}
	}
	// Every allocatable register is busy: evict the first non-pinned one
	// we find, flushing it if dirty.
	for _, r := range allocatable {
		s := m.byReg[r]
		if s.Pinned {
			continue
		}
		m.spill(s)
		return r
	}
	panic("regalloc: no evictable register available (all pinned)")
}

func (m *RegisterMap) spill(s *state) {
	if s.Dirty && m.writeBack != nil {
		m.writeBack(s.binding())
	}
	delete(m.byReg, s.Reg)
	s.Reg = asm.NilRegister
	s.Dirty = false
}

// AllocInputReg brings l into a register (preferred if possible) and
// returns it, read-only: the binding is not marked dirty.
func (m *RegisterMap) AllocInputReg(l loc.Location, t rtype.RuntimeType, preferred asm.Register) asm.Register {
	m.checkNotFrozen()
	s, ok := m.byLoc[l]
	if !ok {
		s = &state{Loc: l, Type: t}
		m.byLoc[l] = s
	}
	if s.Reg == asm.NilRegister {
		s.Reg = m.allocFreeReg(preferred)
		m.byReg[s.Reg] = s
	}
	return s.Reg
}

// AllocOutputReg reserves a register for an instruction output at l and
// marks it dirty: its value is now only authoritative in the register
// until a flush.
func (m *RegisterMap) AllocOutputReg(l loc.Location, t rtype.RuntimeType, preferred asm.Register) asm.Register {
	reg := m.AllocInputReg(l, t, preferred)
	m.byLoc[l].Dirty = true
	return reg
}

// ScratchReg acquires a register with no Location binding; the caller
// must release it via ReleaseScratch when done.
func (m *RegisterMap) ScratchReg() asm.Register {
	m.checkNotFrozen()
	reg := m.allocFreeReg(asm.NilRegister)
	m.byReg[reg] = &state{Reg: reg, Loc: loc.Invalid, Pinned: true}
	return reg
}

// ReleaseScratch frees a register acquired by ScratchReg.
func (m *RegisterMap) ReleaseScratch(reg asm.Register) {
	m.checkNotFrozen()
	delete(m.byReg, reg)
}

// CleanRegs flushes every dirty register in set to its memory home,
// leaving the values bound but no longer dirty.
func (m *RegisterMap) CleanRegs(set []asm.Register) {
	for _, r := range set {
		if s, ok := m.byReg[r]; ok && s.Dirty {
			if m.writeBack != nil {
				m.writeBack(s.binding())
			}
			s.Dirty = false
		}
	}
}

// SmashRegs declares every register in set clobbered: dirty values are
// written back first (spec.md §4.2: "writes back dirty ones first"),
// then every binding through those registers is dropped.
func (m *RegisterMap) SmashRegs(set []asm.Register) {
	m.checkNotFrozen()
	for _, r := range set {
		s, ok := m.byReg[r]
		if !ok {
			continue
		}
		if s.Dirty && m.writeBack != nil {
			m.writeBack(s.binding())
		}
		delete(m.byReg, r)
		if s.Loc != loc.Invalid {
			delete(m.byLoc, s.Loc)
		}
	}
}

// Invalidate drops any cached knowledge of l: the value in memory is now
// authoritative and any register binding is discarded without a
// writeback (the caller asserts the register copy is stale or aliased).
func (m *RegisterMap) Invalidate(l loc.Location) {
	m.checkNotFrozen()
	s, ok := m.byLoc[l]
	if !ok {
		return
	}
	if s.Reg != asm.NilRegister {
		delete(m.byReg, s.Reg)
	}
	delete(m.byLoc, l)
}

// Bind manually installs reg as the binding for l (used after a call
// whose return value lands in a known register, spec.md §4.2).
func (m *RegisterMap) Bind(reg asm.Register, l loc.Location, t rtype.RuntimeType, dirty bool) {
	m.checkNotFrozen()
	if old, ok := m.byReg[reg]; ok {
		delete(m.byLoc, old.Loc)
	}
	s := &state{Loc: l, Type: t, Reg: reg, Dirty: dirty}
	m.byLoc[l] = s
	m.byReg[reg] = s
}

// Freeze forbids further state changes until Defrost. UnlikelyIfBlock
// does not freeze: its cold-path body may allocate, and its DiamondGuard
// reconciles the parent scope's view afterwards.
func (m *RegisterMap) Freeze() { m.frozen = true }

// Defrost re-permits state changes after Freeze.
func (m *RegisterMap) Defrost() { m.frozen = false }

// snapshot is an immutable copy of every binding, used by DiamondGuard to
// reconcile two control-flow paths. Grounded on wazero's
// valueLocationStack.clone() (_teacher_ref/compiler/compiler_value_location.go),
// which exists for exactly this reason: capture allocator state at a
// branch point to compare against later.
type snapshot struct {
	byLoc map[loc.Location]state
}

func (m *RegisterMap) snapshot() snapshot {
	cp := make(map[loc.Location]state, len(m.byLoc))
	for l, s := range m.byLoc {
		cp[l] = *s
	}
	return snapshot{byLoc: cp}
}

// Reconciliation describes one Location whose binding differs between
// two snapshots and so needs a spill/fill on the path that diverged, to
// make the merge-point view consistent.
type Reconciliation struct {
	Loc      loc.Location
	FromReg  asm.Register
	ToReg    asm.Register
	NeedSpill bool
	NeedFill  bool
}

// DiamondGuard snapshots allocator state at a branch point (spec.md
// §4.2). Code emitted on the alternative ("cold") path may freely
// allocate; Reconcile then computes what spill/fill the cold path must
// emit so that, at the merge point, the main path's view of every
// Location is valid again.
type DiamondGuard struct {
	m    *RegisterMap
	base snapshot
}

// NewDiamondGuard snapshots m's current state.
func NewDiamondGuard(m *RegisterMap) *DiamondGuard {
	return &DiamondGuard{m: m, base: m.snapshot()}
}

// Reconcile compares the guard's base snapshot against m's current
// (post-cold-path) state and returns the set of corrective actions the
// cold path must still emit before falling through to the merge point.
func (g *DiamondGuard) Reconcile() []Reconciliation {
	var out []Reconciliation
	for l, want := range g.base.byLoc {
		got, ok := g.m.byLoc[l]
		switch {
		case !ok:
			out = append(out, Reconciliation{Loc: l, FromReg: asm.NilRegister, ToReg: want.Reg, NeedFill: want.Reg != asm.NilRegister})
		case got.Reg != want.Reg:
			out = append(out, Reconciliation{
				Loc:       l,
				FromReg:   got.Reg,
				ToReg:     want.Reg,
				NeedSpill: got.Dirty,
				NeedFill:  want.Reg != asm.NilRegister,
			})
		}
	}
	return out
}

// UnlikelyIfBlock composes a forward-conditional jump into the cold code
// arena with a DiamondGuard, so the rare path's reconciliation lives in
// cold code and never bloats the hot path (spec.md §4.2).
type UnlikelyIfBlock struct {
	guard *DiamondGuard
}

// BeginUnlikelyIf snapshots m. The caller is expected to have already
// emitted the forward-conditional jump into cold code before calling
// this; the cold-path body, emitted between this call and
// EndUnlikelyIf, may allocate freely (spec.md §4.2) since DiamondGuard
// reconciles on exit rather than forbidding mutation up front — that's
// what Freeze/Defrost are for, a distinct, stricter tool.
func BeginUnlikelyIf(m *RegisterMap) *UnlikelyIfBlock {
	return &UnlikelyIfBlock{guard: NewDiamondGuard(m)}
}

// EndUnlikelyIf returns the reconciliations the cold path must emit
// before jumping back to the merge point, so the main path's view of
// every Location is valid again there.
func (b *UnlikelyIfBlock) EndUnlikelyIf(m *RegisterMap) []Reconciliation {
	return b.guard.Reconcile()
}

func (s state) String() string {
	if s.Reg == asm.NilRegister {
		return fmt.Sprintf("%s@mem", s.Loc)
	}
	dirty := ""
	if s.Dirty {
		dirty = "*"
	}
	return fmt.Sprintf("%s@reg(%d)%s", s.Loc, s.Reg, dirty)
}
