// Package servicereq implements spec.md §4.6's service requests: the
// fixed set of request kinds emitted code returns to the translator's
// dispatch loop with, and the record shape each one carries.
package servicereq

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
)

// Kind enumerates spec.md §4.6's service request kinds.
type Kind byte

const (
	KindInvalid Kind = iota
	KindExit
	KindBindCall
	KindBindJmp
	KindBindAddr
	KindBindSideExit
	KindBindJmpccFirst
	KindBindJmpccSecond
	KindBindRequire
	KindRetranslate
	KindInterpret
	KindPostInterpRet
	KindStackOverflow
	KindResume
)

func (k Kind) String() string {
	switch k {
	case KindExit:
		return "EXIT"
	case KindBindCall:
		return "BIND_CALL"
	case KindBindJmp:
		return "BIND_JMP"
	case KindBindAddr:
		return "BIND_ADDR"
	case KindBindSideExit:
		return "BIND_SIDE_EXIT"
	case KindBindJmpccFirst:
		return "BIND_JMPCC_FIRST"
	case KindBindJmpccSecond:
		return "BIND_JMPCC_SECOND"
	case KindBindRequire:
		return "BIND_REQUIRE"
	case KindRetranslate:
		return "RETRANSLATE"
	case KindInterpret:
		return "INTERPRET"
	case KindPostInterpRet:
		return "POST_INTERP_RET"
	case KindStackOverflow:
		return "STACK_OVERFLOW"
	case KindResume:
		return "RESUME"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Request is a service-id-plus-arguments record, spec.md §4.6: "stored
// at a known location in the cold arena. When reached, emitted code
// snapshots the virtual-machine stack/frame pointers into the execution
// context, then returns to the translator's dispatch loop with the
// service-id in a well-known register."
type Request struct {
	Kind Kind

	// Target is the SourceKey most Kinds resolve against: the jump
	// target for BIND_JMP/BIND_ADDR/BIND_SIDE_EXIT/RETRANSLATE/RESUME,
	// the post-call resume point for BIND_CALL, the current PC for
	// INTERPRET.
	Target sourcekey.SourceKey

	// SiteAddr is the smashable call/jump site's address to patch once
	// Target is resolved (BIND_*).
	SiteAddr uintptr

	// InterpCount is the bytecode count to interpret for KindInterpret.
	InterpCount uint32

	// AltTarget is BIND_JMPCC_{FIRST,SECOND}'s second branch target —
	// the side not yet (or just) resolved.
	AltTarget sourcekey.SourceKey

	// RequireFile identifies the file dependency for BIND_REQUIRE, so
	// file invalidation can unreach the translation (spec.md §5
	// "Invalidation").
	RequireFile string

	// VMStack/VMFrame/VMPC are the execution context emitted code
	// snapshotted before returning to the dispatcher (spec.md §4.6):
	// the virtual-machine stack pointer, frame pointer, and program
	// counter at the moment of the request.
	VMStack, VMFrame uintptr
	VMPC             sourcekey.SourceKey
}

// Dispatcher drives spec.md §4.6's "C-level loop": it receives Requests
// returned from emitted code (via the native-entry helper, out of scope
// here) and decides whether to exit, retry with an updated source key,
// or patch code under the write lease. internal/engine wires a concrete
// Dispatcher to internal/cache + internal/regalloc + internal/tracelet.
type Dispatcher interface {
	// Handle processes one Request and returns the next SourceKey to
	// dispatch, or ok=false if the request was KindExit.
	Handle(req Request) (next sourcekey.SourceKey, ok bool)
}

// Loop drives d to completion starting from start, calling lookup to
// translate/fetch the code for each SourceKey the dispatcher produces,
// and enter to run it and obtain the next Request. This is spec.md
// §4.6's dispatch loop in its purest form; internal/engine's real loop
// adds the write-lease and treadmill machinery spec.md §5 describes.
func Loop(start sourcekey.SourceKey, d Dispatcher, enter func(sourcekey.SourceKey) Request) {
	key := start
	for {
		req := enter(key)
		next, ok := d.Handle(req)
		if !ok {
			return
		}
		key = next
	}
}
