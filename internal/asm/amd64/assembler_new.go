//go:build !debug_asm

package amd64

import "github.com/zhangjiayin/hiphop-php-sub000/internal/asm"

// NewAssembler implements asm.NewAssembler, producing the hand-written
// encoder. This is the constructor used everywhere outside of the
// debug_asm-gated cross-check build.
func NewAssembler(_ asm.Register) (asm.Assembler, error) {
	return newAssemblerImpl(), nil
}
