package interp

import (
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
)

// integerAddHotLoop encodes spec.md §8 worked scenario 1, with a PopC
// after each initializing SetL (SetL leaves its value on the stack) and
// an Int 0 pushed so RetC has a value to return:
// Int 1; SetL $i; PopC; Int 0; SetL $s; PopC;
// L: CGetL $s; CGetL $i; Add; SetL $s; PopC;
//    CGetL $i; Int 1; Add; SetL $i; PopC;
//    CGetL $i; Int 1000000; Lt; JmpNZ L;
// Int 0; RetC
func integerAddHotLoop() Program {
	const i, s = 0, 1
	return Program{
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 0}},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpPopC},
		// L: offset 6
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1000000}},
		{Op: bytecode.OpLt},
		{Op: bytecode.OpJmpNZ, Imm: bytecode.Immediate{Target: 6}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 0}},
		{Op: bytecode.OpRetC},
	}
}

func TestIntegerAddHotLoopMatchesWorkedExample(t *testing.T) {
	frame := NewFrame(2, nil)
	if _, err := Run(integerAddHotLoop(), frame, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	const s = 1
	if frame.Locals[s].I != 499999500000 {
		t.Fatalf("expected final local $s = 499999500000, got %d", frame.Locals[s].I)
	}
}

func TestFCallDispatchesThroughCallTable(t *testing.T) {
	prog := Program{
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 41}},
		{Op: bytecode.OpFPushFuncD, Imm: bytecode.Immediate{Str: "increment"}},
		{Op: bytecode.OpFPassC},
		{Op: bytecode.OpFCall},
		{Op: bytecode.OpRetC},
	}
	frame := NewFrame(0, nil)
	calls := map[string]func([]Value) Value{
		"increment": func(args []Value) Value { return Int(args[0].I + 1) },
	}
	v, err := Run(prog, frame, calls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.I != 42 {
		t.Fatalf("expected 42, got %d", v.I)
	}
}

func TestGlobalGetSetRoundTrips(t *testing.T) {
	prog := Program{
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 7}},
		{Op: bytecode.OpString, Imm: bytecode.Immediate{Str: "counter"}},
		{Op: bytecode.OpSetG},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpString, Imm: bytecode.Immediate{Str: "counter"}},
		{Op: bytecode.OpCGetG},
		{Op: bytecode.OpRetC},
	}
	frame := NewFrame(0, nil)
	v, err := Run(prog, frame, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.I != 7 {
		t.Fatalf("expected 7, got %d", v.I)
	}
}

func TestUnsupportedOpcodeReturnsError(t *testing.T) {
	prog := Program{{Op: bytecode.OpNewArray}, {Op: bytecode.OpIterInit}}
	frame := NewFrame(0, nil)
	if _, err := Run(prog, frame, nil); err == nil {
		t.Fatal("expected an error for an uninterpretable opcode")
	}
}
