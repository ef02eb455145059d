package regalloc

import (
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

func TestAllocInputRegIsIdempotentForSameLocation(t *testing.T) {
	m := New(nil)
	l := loc.Local(0)
	r1 := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)
	r2 := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)
	if r1 != r2 {
		t.Fatalf("expected the same register on repeated alloc, got %d and %d", r1, r2)
	}
}

func TestAllocOutputRegMarksDirty(t *testing.T) {
	var flushed []Binding
	m := New(func(b Binding) { flushed = append(flushed, b) })
	l := loc.Local(1)
	reg := m.AllocOutputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)
	m.CleanRegs([]asm.Register{reg})
	if len(flushed) != 1 || flushed[0].Loc != l {
		t.Fatalf("expected CleanRegs to flush the dirty output binding, got %v", flushed)
	}
}

func TestSmashRegsFlushesThenDropsBindings(t *testing.T) {
	var flushed int
	m := New(func(b Binding) { flushed++ })
	l := loc.Local(2)
	reg := m.AllocOutputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)

	m.SmashRegs([]asm.Register{reg})
	if flushed != 1 {
		t.Fatalf("expected exactly one flush from SmashRegs, got %d", flushed)
	}

	// Re-allocating the same Location after a smash must not reuse the
	// old (now-clobbered) register binding implicitly.
	reg2 := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)
	if reg2 == asm.NilRegister {
		t.Fatal("expected a fresh register binding after SmashRegs")
	}
}

func TestInvalidateDropsBindingWithoutFlush(t *testing.T) {
	var flushed int
	m := New(func(b Binding) { flushed++ })
	l := loc.Local(3)
	m.AllocOutputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)

	m.Invalidate(l)
	if flushed != 0 {
		t.Fatal("Invalidate must not flush the dropped binding")
	}
	// A subsequent alloc must start clean (not dirty from the prior binding).
	reg := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)
	m.SmashRegs([]asm.Register{reg})
	if flushed != 0 {
		t.Fatal("a freshly re-allocated input binding must not be dirty")
	}
}

func TestBindInstallsManualMapping(t *testing.T) {
	m := New(nil)
	l := loc.Local(4)
	m.Bind(5, l, rtype.Known(rtype.KindInt), true)
	if got := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister); got != 5 {
		t.Fatalf("expected Bind's manual register 5, got %d", got)
	}
}

func TestScratchRegIsNeverLocationBound(t *testing.T) {
	m := New(nil)
	reg := m.ScratchReg()
	if reg == asm.NilRegister {
		t.Fatal("expected a real register from ScratchReg")
	}
	m.ReleaseScratch(reg)
	// After release, the register must be available for a Location bind.
	reg2 := m.AllocInputReg(loc.Local(9), rtype.Known(rtype.KindInt), reg)
	if reg2 != reg {
		t.Fatal("expected the released scratch register to be reusable as a preferred register")
	}
}

func TestFreezeForbidsMutation(t *testing.T) {
	m := New(nil)
	m.Freeze()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic from mutating a frozen RegisterMap")
		}
	}()
	m.AllocInputReg(loc.Local(0), rtype.Known(rtype.KindInt), asm.NilRegister)
}

func TestDiamondGuardReconcilesDivergedBinding(t *testing.T) {
	m := New(nil)
	l := loc.Local(0)
	originalReg := m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)

	guard := NewDiamondGuard(m)

	// Simulate the cold path moving the same Location to a different
	// register (freely, per spec.md §4.2).
	m.Invalidate(l)
	m.Bind(originalReg+1, l, rtype.Known(rtype.KindInt), true)

	recs := guard.Reconcile()
	if len(recs) != 1 {
		t.Fatalf("expected one reconciliation, got %d", len(recs))
	}
	if recs[0].ToReg != originalReg {
		t.Fatalf("expected reconciliation back to the main path's register %d, got %d", originalReg, recs[0].ToReg)
	}
	if !recs[0].NeedSpill {
		t.Fatal("expected NeedSpill since the cold path's binding was dirty")
	}
}

func TestUnlikelyIfBlockRoundTrip(t *testing.T) {
	m := New(nil)
	l := loc.Local(0)
	m.AllocInputReg(l, rtype.Known(rtype.KindInt), asm.NilRegister)

	block := BeginUnlikelyIf(m)
	// Cold path allocates a new, unrelated Location freely.
	m.AllocInputReg(loc.Local(1), rtype.Known(rtype.KindInt), asm.NilRegister)
	recs := block.EndUnlikelyIf(m)
	if len(recs) != 0 {
		t.Fatalf("expected no reconciliation when the guarded Location was untouched, got %v", recs)
	}
}

func TestCallerSavedExcludesReservedRegisters(t *testing.T) {
	for _, r := range CallerSaved {
		if reserved[r] {
			t.Fatalf("CallerSaved must not include a reserved register, found %d", r)
		}
	}
}
