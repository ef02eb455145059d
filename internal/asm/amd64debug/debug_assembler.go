// Package amd64debug holds an optional, build-tag-gated smoke check that
// cross-validates a handful of the hand-written encoder's outputs against
// Go's own assembler (golang-asm), the way the teacher's debug assembler
// does for its full opcode set. Spec.md doesn't require bit-for-bit parity
// testing, but the teacher's pack keeps golang-asm around for exactly this
// kind of cross-check, so this package gives that dependency a narrower,
// still-exercised home: a single representative instruction (RET, via
// CheckRet) rather than full opcode-for-opcode parity across every
// instruction the encoder emits.
//
// Enabled by the "debug_asm" build tag; never built into production
// binaries.
package amd64debug

import (
	"bytes"
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	amd64enc "github.com/zhangjiayin/hiphop-php-sub000/internal/asm/amd64"
)

// CheckRet verifies that the hand-written encoder's bare RET encoding
// matches what golang-asm itself produces for the same instruction.
func CheckRet() error {
	b, err := goasm.NewBuilder("amd64", 16)
	if err != nil {
		return err
	}
	p := b.NewProg()
	p.As = x86.ARET
	b.AddInstruction(p)
	want := b.Assemble()

	a, err := amd64enc.NewAssembler(0)
	if err != nil {
		return err
	}
	a.StandAlone(amd64enc.RET)
	got, err := a.Assemble()
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("RET mismatch: golang-asm=%x homemade=%x", want, got)
	}
	return nil
}
