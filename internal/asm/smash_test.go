package asm

import "testing"

func TestPrepareForSmashAvoidsLineSplit(t *testing.T) {
	seg := NewCodeSegment(make([]byte, 0, 256))
	buf := seg.Next()

	// Write enough bytes to land a few bytes before a line boundary, then
	// request an 8-byte smashable site: it must not straddle the boundary.
	for i := 0; i < CacheLineSize-3; i++ {
		buf.WriteByte(0x00)
	}
	PrepareForSmash(buf, 8)
	off := buf.Len()
	if !SmashableSiteSpans(uintptr(off), 8) {
		t.Fatalf("site at offset %d still straddles a cache line", off)
	}
}

func TestSmashableSiteSpans(t *testing.T) {
	if !SmashableSiteSpans(0, 8) {
		t.Fatal("site at line start should fit")
	}
	if SmashableSiteSpans(CacheLineSize-4, 8) {
		t.Fatal("site crossing the boundary should not fit")
	}
}
