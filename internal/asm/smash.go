package asm

// CacheLineSize is the smashable-site alignment unit (spec.md §4.1,
// §8 invariant 3: "for every recorded incoming-branch or bind-call site
// of length N, the range [addr, addr+N) does not cross a 64-byte
// boundary"). 64 bytes is the line size on every x86-64 host this JIT
// targets; it is not probed at runtime since getting it wrong only
// costs a few bytes of padding, never correctness on the hosts we run on.
const CacheLineSize = 64

// nopByte is the single-byte x86-64 NOP (0x90). prepare-for-smash pads with
// single-byte NOPs rather than multi-byte NOP forms: the padding is cold
// code that never executes meaningfully fast, so encoding simplicity wins.
const nopByte = 0x90

// PrepareForSmash advances buf so that the next nbytes written to it land
// entirely within one CacheLineSize-aligned line, padding with single-byte
// NOPs if they would otherwise straddle a line boundary. Every smashable
// emission (late-bound jumps, call targets, inline-cache immediates,
// conditional branches later replaced by unconditional ones) must be
// wrapped in a call to this before the smashable bytes are written, or the
// single-aligned-store patching rule (spec.md §4.1, §5 "Patch atomicity")
// cannot be guaranteed.
func PrepareForSmash(buf Buffer, nbytes int) {
	if nbytes <= 0 || nbytes > CacheLineSize {
		panic("asm: smashable site size must be in (0, CacheLineSize]")
	}
	for {
		off := buf.seg.size
		lineOff := off % CacheLineSize
		if lineOff+nbytes <= CacheLineSize {
			return
		}
		buf.WriteByte(nopByte)
	}
}

// SmashableSiteSpans reports whether [addr, addr+n) stays within a single
// CacheLineSize-aligned line. Exposed for tests asserting invariant 3 of
// spec.md §8 against code actually emitted by the code generator.
func SmashableSiteSpans(addr uintptr, n int) bool {
	if n <= 0 {
		return true
	}
	start := addr % CacheLineSize
	return start+uintptr(n) <= CacheLineSize
}
