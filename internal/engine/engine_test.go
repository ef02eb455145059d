package engine

import (
	"testing"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/config"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/servicereq"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tracelet"
)

func TestWriteLeaseIsExclusiveAndNonBlocking(t *testing.T) {
	l := NewWriteLease()
	if !l.TryAcquire() {
		t.Fatal("first TryAcquire must succeed")
	}
	if l.TryAcquire() {
		t.Fatal("second TryAcquire must fail while held")
	}
	if !l.Held() {
		t.Fatal("expected Held to report true")
	}
	l.Release()
	if l.Held() {
		t.Fatal("expected Held to report false after Release")
	}
	if !l.TryAcquire() {
		t.Fatal("TryAcquire after Release must succeed")
	}
}

func TestTreadmillDefersUntilAllThreadsQuiesce(t *testing.T) {
	tm := NewTreadmill()
	tm.RegisterThread(1)
	tm.RegisterThread(2)

	ran := false
	tm.Enqueue(func() { ran = true })
	if ran {
		t.Fatal("reclaim must not run before any thread has quiesced past its enqueue epoch")
	}

	tm.Quiesce(1)
	if ran {
		t.Fatal("reclaim must not run until every registered thread has quiesced")
	}

	tm.Quiesce(2)
	if !ran {
		t.Fatal("reclaim must run once every registered thread has quiesced past the enqueue epoch")
	}
	if tm.Pending() != 0 {
		t.Fatalf("expected no pending items, got %d", tm.Pending())
	}
}

func TestTreadmillUnregisterUnblocksReclaim(t *testing.T) {
	tm := NewTreadmill()
	tm.RegisterThread(1)
	tm.RegisterThread(2)

	ran := false
	tm.Enqueue(func() { ran = true })
	tm.Quiesce(1)
	if ran {
		t.Fatal("thread 2 hasn't quiesced yet")
	}

	tm.UnregisterThread(2)
	if !ran {
		t.Fatal("expected reclaim to run once the only remaining blocker unregistered")
	}
}

func program(instrs []bytecode.Instruction) tracelet.Fetcher {
	return func(offset uint32) (bytecode.Instruction, error) {
		return instrs[offset], nil
	}
}

func newTestEngine(instrs []bytecode.Instruction, env *tracelet.Env) *Engine {
	cfg := config.Config{EnableJIT: true}
	layout := hostabi.FrameLayout{LocalsOffset: 16, NumLocals: 4}
	return New(cfg, program(instrs), layout, func(sourcekey.SourceKey) *tracelet.Env { return env })
}

func TestEnsureTranslatedPublishesOnceAndCaches(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpRetC},
	}
	env := tracelet.NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt)),
		loc.Dyn(loc.Local(1), rtype.Known(rtype.KindInt)),
	}, false)
	e := newTestEngine(instrs, env)
	key := sourcekey.New(1, 0)

	trec, err := e.EnsureTranslated(key)
	if err != nil {
		t.Fatalf("EnsureTranslated: %v", err)
	}
	if trec == nil {
		t.Fatal("expected a published TranslationRec")
	}
	if e.Code.Len() == 0 {
		t.Fatal("expected the translation's code to have been carved out of the engine's mapped arena")
	}

	again, err := e.EnsureTranslated(key)
	if err != nil {
		t.Fatalf("EnsureTranslated (cached): %v", err)
	}
	if again.ID != trec.ID {
		t.Fatalf("expected the cached top translation to be reused, got a different ID (%d vs %d)", again.ID, trec.ID)
	}
}

func TestEnsureTranslatedDisabledJITFallsBackToInterpretation(t *testing.T) {
	e := newTestEngine(nil, tracelet.NewEnv(nil, false))
	e.Config.EnableJIT = false

	if _, err := e.EnsureTranslated(sourcekey.New(1, 0)); err == nil {
		t.Fatal("expected an error when JIT is disabled")
	}
}

func TestEnsureTranslatedWriteLeaseBusyFallsBackToInterpretation(t *testing.T) {
	e := newTestEngine(nil, tracelet.NewEnv(nil, false))
	e.Lease.TryAcquire() // simulate another thread already holding it

	if _, err := e.EnsureTranslated(sourcekey.New(2, 0)); err == nil {
		t.Fatal("expected EnsureTranslated to refuse to block on a busy lease")
	}
}

func TestHandleBindJmpEnsuresTranslationThenAdvances(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpRetC},
	}
	env := tracelet.NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt)),
	}, false)
	e := newTestEngine(instrs, env)
	target := sourcekey.New(1, 0)

	next, ok := e.Handle(servicereq.Request{Kind: servicereq.KindBindJmp, Target: target})
	if !ok {
		t.Fatal("expected Handle to keep dispatching on BIND_JMP")
	}
	if next != target {
		t.Fatalf("expected next key %v, got %v", target, next)
	}
	if _, found := e.Cache.Lookup(target); !found {
		t.Fatal("expected BIND_JMP handling to have published a translation")
	}
}

func TestHandleExitStopsDispatch(t *testing.T) {
	e := newTestEngine(nil, tracelet.NewEnv(nil, false))
	_, ok := e.Handle(servicereq.Request{Kind: servicereq.KindExit})
	if ok {
		t.Fatal("expected KindExit to stop the dispatch loop")
	}
}

func TestHandleInterpretReturnsRecordedPC(t *testing.T) {
	e := newTestEngine(nil, tracelet.NewEnv(nil, false))
	pc := sourcekey.New(7, 3)
	next, ok := e.Handle(servicereq.Request{Kind: servicereq.KindInterpret, VMPC: pc})
	if !ok || next != pc {
		t.Fatalf("expected (%v, true), got (%v, %v)", pc, next, ok)
	}
}

func TestRunStopsOnExitRequest(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: 0}},
		{Op: bytecode.OpRetC},
	}
	env := tracelet.NewEnv([]loc.DynLocation{
		loc.Dyn(loc.Local(0), rtype.Known(rtype.KindInt)),
	}, false)
	e := newTestEngine(instrs, env)

	calls := 0
	start := sourcekey.New(1, 0)
	e.Run(start, func(key sourcekey.SourceKey) servicereq.Request {
		calls++
		if calls > 2 {
			t.Fatal("dispatch loop did not stop on KindExit")
		}
		return servicereq.Request{Kind: servicereq.KindExit}
	})
	if calls != 1 {
		t.Fatalf("expected exactly one enter() call before exit, got %d", calls)
	}
}

func TestInvalidateFileEnqueuesOneReclaimPerKey(t *testing.T) {
	e := newTestEngine(nil, tracelet.NewEnv(nil, false))
	e.Treadmill.RegisterThread(1)

	keys := []sourcekey.SourceKey{sourcekey.New(1, 0), sourcekey.New(2, 0)}
	e.InvalidateFile("foo.php", keys)

	if e.Treadmill.Pending() != 2 {
		t.Fatalf("expected 2 pending reclaims, got %d", e.Treadmill.Pending())
	}
	e.Treadmill.Quiesce(1)
	if e.Treadmill.Pending() != 0 {
		t.Fatalf("expected reclaims to run once the lone registered thread quiesced, got %d pending", e.Treadmill.Pending())
	}
}
