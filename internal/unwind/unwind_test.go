package unwind

import (
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

type recordingWriter struct {
	spilled []RegBinding
}

func (w *recordingWriter) SpillToMemory(b RegBinding) { w.spilled = append(w.spilled, b) }

func TestUnwindSpillsEveryRegBinding(t *testing.T) {
	m := NewFixupMap()
	regMap := []RegBinding{
		{Reg: asm.Register(1), Loc: loc.Local(0), Type: rtype.Known(rtype.KindInt)},
		{Reg: asm.Register(2), Loc: loc.Local(1), Type: rtype.Known(rtype.KindString)},
	}
	m.Record(0x1000, Fixup{BytecodeOffset: 42, StackDepth: 3}, regMap)

	w := &recordingWriter{}
	ctx, ok := m.Unwind(0x1000, w)
	if !ok {
		t.Fatal("expected a known return address to unwind successfully")
	}
	if ctx.BytecodeOffset != 42 || ctx.StackDepth != 3 {
		t.Fatalf("unexpected UnwindContext: %+v", ctx)
	}
	if len(w.spilled) != 2 {
		t.Fatalf("expected both dirty register bindings spilled, got %d", len(w.spilled))
	}
}

func TestUnwindUnknownAddressFails(t *testing.T) {
	m := NewFixupMap()
	if _, ok := m.Unwind(0xdead, &recordingWriter{}); ok {
		t.Fatal("expected an unrecorded return address to fail unwinding")
	}
}

func TestForgetRemovesRangeOnly(t *testing.T) {
	m := NewFixupMap()
	m.Record(0x1000, Fixup{BytecodeOffset: 1}, nil)
	m.Record(0x2000, Fixup{BytecodeOffset: 2}, nil)

	m.Forget(0x1000, 0x1500)

	if _, _, ok := m.Lookup(0x1000); ok {
		t.Fatal("expected the forgotten range's entry to be gone")
	}
	if _, _, ok := m.Lookup(0x2000); !ok {
		t.Fatal("expected the untouched entry to survive Forget")
	}
}

func TestFaultMapResolvesRegisteredProbe(t *testing.T) {
	m := NewFaultMap()
	m.Register(0x3000, FaultTarget{BytecodeOffset: 7})
	target, ok := m.Resolve(0x3000)
	if !ok || target.BytecodeOffset != 7 {
		t.Fatalf("expected a registered probe to resolve, got %+v, %v", target, ok)
	}
	if _, ok := m.Resolve(0x4000); ok {
		t.Fatal("expected an unregistered address to not resolve")
	}
}
