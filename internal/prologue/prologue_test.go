package prologue

import (
	"strings"
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

func TestBucketCapsAtNumParamsPlusOne(t *testing.T) {
	if got := Bucket(2, 3); got != 2 {
		t.Fatalf("Bucket(2,3) = %d, want 2", got)
	}
	if got := Bucket(3, 3); got != 3 {
		t.Fatalf("Bucket(3,3) = %d, want 3", got)
	}
	if got := Bucket(9, 3); got != 4 {
		t.Fatalf("Bucket(9,3) = %d, want 4 (numParams+1)", got)
	}
}

func TestBuildPlanTooManyArgsTrimsExtra(t *testing.T) {
	desc := FuncDescriptor{
		ID:              42,
		Params:          []Param{{}, {}},
		MayUseExtraArgs: true,
		Body:            sourcekey.New(42, 0),
	}
	plan := BuildPlan(desc, 5)

	if plan.TrimExtra == nil {
		t.Fatal("expected TrimExtra to be set for nPassed > numParams")
	}
	if plan.TrimExtra.NumExtra != 3 {
		t.Fatalf("NumExtra = %d, want 3", plan.TrimExtra.NumExtra)
	}
	if !plan.TrimExtra.Stash {
		t.Fatal("expected Stash since MayUseExtraArgs is true")
	}
	if plan.FillMissing != nil {
		t.Fatal("did not expect FillMissing alongside TrimExtra")
	}
	if plan.EntryFuncletOffset != desc.Body.Offset {
		t.Fatalf("entry offset = %d, want the function body offset", plan.EntryFuncletOffset)
	}
}

func TestBuildPlanTooManyArgsRefcountDropsWithoutStash(t *testing.T) {
	desc := FuncDescriptor{
		ID:              7,
		Params:          []Param{{}},
		MayUseExtraArgs: false,
		Body:            sourcekey.New(7, 0),
	}
	plan := BuildPlan(desc, 3)
	if plan.TrimExtra == nil || plan.TrimExtra.Stash {
		t.Fatal("expected TrimExtra with Stash=false when MayUseExtraArgs is false")
	}
}

func TestBuildPlanMissingArgsWithDefaultMovesEntryToFunclet(t *testing.T) {
	defaultOff := sourcekey.Offset(100)
	desc := FuncDescriptor{
		ID: 9,
		Params: []Param{
			{}, // required
			{HasDefault: true, DefaultFuncletOffset: defaultOff},
		},
		Body: sourcekey.New(9, 0),
	}
	plan := BuildPlan(desc, 1)

	if len(plan.FillMissing) != 1 {
		t.Fatalf("expected 1 FillMissing step, got %d", len(plan.FillMissing))
	}
	if !plan.FillMissing[0].HasDefault {
		t.Fatal("expected the missing param to carry its default-value funclet")
	}
	if plan.EntryFuncletOffset != defaultOff {
		t.Fatalf("entry offset = %d, want the default funclet offset %d", plan.EntryFuncletOffset, defaultOff)
	}
}

func TestBuildPlanMissingArgsWithoutDefaultKeepsBodyEntry(t *testing.T) {
	desc := FuncDescriptor{
		ID:     11,
		Params: []Param{{}, {}},
		Body:   sourcekey.New(11, 5),
	}
	plan := BuildPlan(desc, 0)

	if len(plan.FillMissing) != 2 {
		t.Fatalf("expected 2 FillMissing steps, got %d", len(plan.FillMissing))
	}
	for _, step := range plan.FillMissing {
		if step.HasDefault {
			t.Fatal("no param declared a default; none should carry one")
		}
	}
	if plan.EntryFuncletOffset != desc.Body.Offset {
		t.Fatalf("entry offset = %d, want body offset %d (no default selected)", plan.EntryFuncletOffset, desc.Body.Offset)
	}
}

func TestInterceptZeroesGuardWithoutTouchingCode(t *testing.T) {
	desc := FuncDescriptor{ID: 3, Body: sourcekey.New(3, 0)}
	plan := BuildPlan(desc, 0)
	p := Begin(desc, plan, 0x1000)
	p.Code = []byte{0xAA, 0xBB}

	if p.Guard.Zeroed() {
		t.Fatal("fresh prologue should not start zeroed")
	}

	Intercept(p)

	if !p.Guard.Zeroed() {
		t.Fatal("expected Intercept to zero the guard")
	}
	if len(p.Code) != 2 {
		t.Fatal("Intercept must not touch already-emitted code, only the guard")
	}
}

func TestTableInstallSeparatesMagicEntry(t *testing.T) {
	desc := FuncDescriptor{ID: 5, Body: sourcekey.New(5, 0)}
	plan := BuildPlan(desc, 0)
	normal := Begin(desc, plan, 0x2000)

	magicDesc := desc
	magicDesc.Magic = true
	magicPlan := BuildPlan(magicDesc, 0)
	magic := Begin(magicDesc, magicPlan, 0x2008)

	table := NewTable(desc.ID)
	table.Install(normal)
	table.Install(magic)

	if _, ok := table.Lookup(normal.Bucket); !ok {
		t.Fatal("expected the normal prologue to be looked up by bucket")
	}
	if table.MagicEntry != magic {
		t.Fatal("expected the magic-call prologue to land in MagicEntry, not the bucket map")
	}
}

func TestZeroInitStrategyPicksUnrollForSmallFrames(t *testing.T) {
	if got := ZeroInitStrategy(UnrollThreshold); got != "unroll" {
		t.Fatalf("ZeroInitStrategy(%d) = %q, want unroll", UnrollThreshold, got)
	}
	if got := ZeroInitStrategy(UnrollThreshold + 1); got != "loop" {
		t.Fatalf("ZeroInitStrategy(%d) = %q, want loop", UnrollThreshold+1, got)
	}
}

func TestNeededFrameBytesCoversLocalsAndIters(t *testing.T) {
	layout := hostabi.FrameLayout{
		LocalsOffset: 16,
		IterOffset:   16 + 10*hostabi.CellBytes,
	}
	got := NeededFrameBytes(layout, 10, 2)
	want := layout.IterSlotOffset(2)
	if got != want {
		t.Fatalf("NeededFrameBytes = %d, want %d (iterators extend past locals here)", got, want)
	}
}

func TestMagicShuffleCallStringIncludesInvocationName(t *testing.T) {
	m := MagicShuffleCall{InvocationName: "__call"}
	if got := m.String(); !strings.Contains(got, "__call") {
		t.Fatalf("expected the description to include the invocation name, got %q", got)
	}
}
