// Package unwind implements spec.md §4.7's Fixup map and UnwindRegMap:
// the bookkeeping that lets exception unwinding walk through emitted
// code and still recover a consistent virtual-machine view.
//
// This module does not install a real SIGSEGV handler (see DESIGN.md's
// Open Question/REDESIGN note): fault routing is modeled as a Go-level
// fault map keyed by instruction pointer rather than a signal handler,
// since Go's runtime does not let library code intercept SIGSEGV the
// way the teacher's native-signal-handler approach could.
package unwind

import (
	"sync"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

// Fixup is recorded at the return address of every helper call that
// could throw or re-enter the runtime (spec.md §4.7): the bytecode
// offset of the instruction that issued the call, and how many stack
// cells were live at that point.
type Fixup struct {
	BytecodeOffset uint32
	StackDepth     uint32
}

// RegBinding is one entry of an UnwindRegMap: which register holds which
// Location, and with what RuntimeType, at a call site where that
// register's memory home hasn't yet received the value (spec.md §4.7:
// "if the call site holds any callee-saved register values that are
// 'dirty'...").
type RegBinding struct {
	Reg  asm.Register
	Loc  loc.Location
	Type rtype.RuntimeType
}

// FixupMap maps a return address (a native code address, as uintptr) to
// its Fixup record.
type FixupMap struct {
	mu      sync.RWMutex
	fixups  map[uintptr]Fixup
	regMaps map[uintptr][]RegBinding
}

// NewFixupMap constructs an empty FixupMap.
func NewFixupMap() *FixupMap {
	return &FixupMap{
		fixups:  map[uintptr]Fixup{},
		regMaps: map[uintptr][]RegBinding{},
	}
}

// Record installs f as the Fixup for the call whose return address is
// retAddr, and regMap (possibly empty) as its UnwindRegMap entry. Must
// be called under the write lease, per spec.md §5: fixup map mutation
// is a code-cache-adjacent structure covered by the same lease as code
// emission.
func (m *FixupMap) Record(retAddr uintptr, f Fixup, regMap []RegBinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixups[retAddr] = f
	if len(regMap) > 0 {
		m.regMaps[retAddr] = regMap
	}
}

// Lookup returns the Fixup and UnwindRegMap recorded for retAddr. ok is
// false if retAddr is not a call site this FixupMap knows about — e.g.
// a return address outside the code cache entirely.
func (m *FixupMap) Lookup(retAddr uintptr) (f Fixup, regMap []RegBinding, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok = m.fixups[retAddr]
	if !ok {
		return Fixup{}, nil, false
	}
	return f, m.regMaps[retAddr], true
}

// Forget drops every Fixup/UnwindRegMap entry whose return address falls
// in [start, end) — called when a translation is reclaimed by the
// treadmill (spec.md §5 "Invalidation"), so stale entries can never be
// consulted again.
func (m *FixupMap) Forget(start, end uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr := range m.fixups {
		if addr >= start && addr < end {
			delete(m.fixups, addr)
			delete(m.regMaps, addr)
		}
	}
}

// Writer is what an UnwindRegMap entry needs to actually spill a dirty
// register's value back to its memory home during unwinding —
// implemented by internal/codegen's emitted-store routine in a real
// embedding, or by a test double.
type Writer interface {
	SpillToMemory(b RegBinding)
}

// UnwindContext is spec.md §4.7's recovered virtual-machine view after
// walking one frame: the bytecode offset to resume interpreting/
// retranslating at, and the stack depth recovered from the Fixup.
type UnwindContext struct {
	BytecodeOffset uint32
	StackDepth     uint32
}

// Unwind performs spec.md §4.7's per-frame recovery: look up retAddr's
// Fixup to restore the VM stack/frame/pc view, then spill every
// remaining dirty register named in its UnwindRegMap back to memory
// through w, before handing control to the language's own exception
// machinery (out of scope here; the caller does that part).
func (m *FixupMap) Unwind(retAddr uintptr, w Writer) (UnwindContext, bool) {
	f, regMap, ok := m.Lookup(retAddr)
	if !ok {
		return UnwindContext{}, false
	}
	for _, b := range regMap {
		w.SpillToMemory(b)
	}
	return UnwindContext{BytecodeOffset: f.BytecodeOffset, StackDepth: f.StackDepth}, true
}

// FaultMap maps a faulting instruction pointer known to be a "surprise"
// probe (spec.md §5's signal-handler description) to the service-request
// target it should resolve to instead of crashing. Populated by
// internal/prologue/internal/codegen wherever a surprise-flag check
// site is emitted.
type FaultMap struct {
	mu   sync.RWMutex
	byIP map[uintptr]FaultTarget
}

// FaultTarget is where control should transfer when a probe at a given
// instruction pointer is reached: a bytecode offset identifying the
// service request to dispatch, matching the paired service-request
// target spec.md §5 describes ("maps a faulting instruction pointer...
// to its paired service-request target").
type FaultTarget struct {
	BytecodeOffset uint32
}

// NewFaultMap constructs an empty FaultMap.
func NewFaultMap() *FaultMap {
	return &FaultMap{byIP: map[uintptr]FaultTarget{}}
}

// Register installs target for ip.
func (m *FaultMap) Register(ip uintptr, target FaultTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byIP[ip] = target
}

// Resolve reports the FaultTarget for ip, if any. Unknown faults must
// chain to whatever fault handling the embedding otherwise uses (spec.md
// §5: "unknown faults chain to the previously installed handler") —
// that chaining is the caller's responsibility, not this map's.
func (m *FaultMap) Resolve(ip uintptr) (FaultTarget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.byIP[ip]
	return t, ok
}
