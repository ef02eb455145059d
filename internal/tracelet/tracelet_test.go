package tracelet

import (
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

// program implements Fetcher over a fixed instruction slice, indexed by
// bytecode offset — a stand-in for the out-of-scope bytecode compiler.
func program(instrs []bytecode.Instruction) Fetcher {
	return func(offset uint32) (bytecode.Instruction, error) {
		return instrs[offset], nil
	}
}

func TestSimpleAddStopsAtReturn(t *testing.T) {
	// Int 1; CGetL $0; Add; RetC
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpRetC},
	}
	env := NewEnv([]loc.DynLocation{loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt))}, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)

	if tl.Failed {
		t.Fatal("expected analysis to succeed")
	}
	if len(tl.Instructions) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(tl.Instructions))
	}
	last := tl.Instructions[len(tl.Instructions)-1]
	if last.Instr.Op != bytecode.OpRetC {
		t.Fatal("expected the tracelet to stop at RetC")
	}
}

func TestAddOfTwoKnownIntsIsSpecializedAndTypedInt(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpRetC},
	}
	env := NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt)),
		loc.Dyn(loc.Local(1), rtype.Known(rtype.KindInt)),
	}, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)

	add := tl.Instructions[2]
	if add.Plan != PlanSpecialized {
		t.Fatalf("expected PlanSpecialized for two known ints, got %d", add.Plan)
	}
	if add.Outputs[0].Type.Kind != rtype.KindInt {
		t.Fatalf("expected int+int to produce int, got %s", add.Outputs[0].Type)
	}
}

func TestUnknownInputIntroducesGuardAndGenericPlan(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpRetC},
	}
	// Neither local is seeded in the runtime snapshot: both reads must
	// introduce a guard and fall back to a generic plan.
	env := NewEnv(nil, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)

	if len(tl.Guards) != 2 {
		t.Fatalf("expected 2 guards for 2 unknown locals, got %d", len(tl.Guards))
	}
	add := tl.Instructions[2]
	if add.Plan != PlanGenericHelper {
		t.Fatal("expected PlanGenericHelper when an input is Vague")
	}
}

func TestPseudomainForcesLocalGuardsEvenWhenSeeded(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpRetC},
	}
	// Seeded with a known int, but Pseudomain must still force a guard.
	env := NewEnv([]loc.DynLocation{loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt))}, true)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)

	if len(tl.Guards) != 1 {
		t.Fatalf("expected pseudomain to force exactly one guard, got %d", len(tl.Guards))
	}
	if !tl.Guards[0].Required.Vague {
		t.Fatal("expected the forced guard to require proof from Vague, never trust the snapshot")
	}
}

func TestBoxedInputRecordsBothOuterAndInnerGuards(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpRetC},
	}
	env := NewEnv(nil, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)
	// The local isn't seeded, so it's Vague, not boxed; this test instead
	// exercises a pre-seeded boxed local to check the inner-guard path.
	env2 := NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Boxed(rtype.Known(rtype.KindInt))),
	}, false)
	tl2 := Analyze(sourcekey.New(1, 0), env2, program(instrs), DefaultLimits)

	if len(tl.Guards) != 1 {
		t.Fatalf("sanity: expected 1 guard for the unseeded case, got %d", len(tl.Guards))
	}
	var innerGuards, outerGuards int
	for _, g := range tl2.Guards {
		if g.InnerGuard {
			innerGuards++
		} else if g.Required.Kind == rtype.KindRef {
			outerGuards++
		}
	}
	if outerGuards != 1 {
		t.Fatalf("expected exactly one outer ref guard for a boxed local, got %d", outerGuards)
	}
	if innerGuards != 1 {
		t.Fatalf("expected exactly one inner-type guard for a boxed local, got %d", innerGuards)
	}
}

func TestHotLoopBackEdgeStopsAtConditionalJump(t *testing.T) {
	// CGetL $s; CGetL $i; Add; SetL $s; PopC; CGetL $i; Int 1; Add; SetL
	// $i; PopC; CGetL $i; Int 1000000; Lt; JmpNZ L — spec.md §8 scenario 1.
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 1}}, // $s
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}}, // $i
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: 1}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1000000}},
		{Op: bytecode.OpLt},
		{Op: bytecode.OpJmpNZ, Imm: bytecode.Immediate{Target: 0}},
	}
	env := NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt)),
		loc.Dyn(loc.Local(1), rtype.Known(rtype.KindInt)),
	}, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)

	if tl.Failed {
		t.Fatal("expected the loop body to analyze as one tracelet")
	}
	if len(tl.Instructions) != len(instrs) {
		t.Fatalf("expected the whole loop body covered in one tracelet, got %d of %d instructions",
			len(tl.Instructions), len(instrs))
	}
	last := tl.Instructions[len(tl.Instructions)-1]
	if last.Instr.Op != bytecode.OpJmpNZ {
		t.Fatal("expected the tracelet to end at the back-edge JmpNZ")
	}
	if !last.EndsBlock || last.SelfTerminate {
		t.Fatal("JmpNZ ends the block but needs a bind-jump, not self-termination")
	}
	if len(tl.Guards) != 0 {
		t.Fatalf("expected no guards: both locals were seeded as known ints, got %d", len(tl.Guards))
	}
}

func TestUnknownOpcodeFailsAnalysis(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.Opcode(250)},
	}
	env := NewEnv(nil, false)
	tl := Analyze(sourcekey.New(1, 0), env, program(instrs), DefaultLimits)
	if !tl.Failed {
		t.Fatal("expected an unrecognized opcode to fail analysis")
	}
}
