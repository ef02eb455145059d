package amd64

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/asm"
)

// AssemblerImpl is the hand-written amd64 encoder: a flat byte buffer with
// no multi-pass jump-distance resolution or relocation bookkeeping. The
// only control transfers this JIT ever encodes directly are indirect
// jumps/calls through a register — bind sites are smashed in as raw bytes
// by internal/codecache's trampolines and internal/asm.PrepareForSmash,
// not assembled through this interface.
type AssemblerImpl struct {
	buf bytes.Buffer
}

func newAssemblerImpl() *AssemblerImpl {
	return &AssemblerImpl{}
}

// Assemble implements asm.Assembler.
func (a *AssemblerImpl) Assemble() ([]byte, error) {
	return a.buf.Bytes(), nil
}

// x86Num maps a Register to its hardware 4-bit register number
// (AX=0 .. DI=7, R8=8 .. R15=15); REG_AX..REG_R15 are numbered
// consecutively starting just after asm.NilRegister, so this is a
// plain offset rather than a lookup table.
func x86Num(r asm.Register) byte {
	return byte(r) - 1
}

// rex builds a REX prefix byte: 0100WRXB.
func rex(w, r, x, b byte) byte {
	return 0x40 | w<<3 | r<<2 | x<<1 | b
}

// RegToReg implements asm.Assembler. from supplies ModRM.reg and to
// supplies ModRM.rm, the "r/m op= r" shape every register-to-register
// form in this opcode set shares (MOV, ADD, SUB, CMP of r/m64, r64).
func (a *AssemblerImpl) RegToReg(instruction asm.Instruction, from, to asm.Register) {
	var opcode byte
	switch instruction {
	case MOVQ:
		opcode = 0x89
	case ADDQ:
		opcode = 0x01
	case SUBQ:
		opcode = 0x29
	case CMPQ:
		opcode = 0x39
	default:
		panic(fmt.Sprintf("amd64: %s has no register-to-register form", InstructionName(instruction)))
	}
	fromNum, toNum := x86Num(from), x86Num(to)
	a.buf.WriteByte(rex(1, fromNum>>3&1, 0, toNum>>3&1))
	a.buf.WriteByte(opcode)
	a.buf.WriteByte(0xC0 | fromNum&7<<3 | toNum&7)
}

// ImmToReg implements asm.Assembler as a movabs (REX.W + 0xB8+reg +
// imm64), the same encoding internal/codecache's trampolines hand-write
// for their far-call thunks.
func (a *AssemblerImpl) ImmToReg(instruction asm.Instruction, value int64, to asm.Register) {
	if instruction != MOVQ {
		panic(fmt.Sprintf("amd64: %s has no immediate-to-register form", InstructionName(instruction)))
	}
	toNum := x86Num(to)
	a.buf.WriteByte(rex(1, 0, 0, toNum>>3&1))
	a.buf.WriteByte(0xB8 + toNum&7)
	var imm [8]byte
	binary.LittleEndian.PutUint64(imm[:], uint64(value))
	a.buf.Write(imm[:])
}

// writeModRMMem writes a mod=10 (disp32) ModRM/SIB/displacement for a
// [baseReg+offset] operand with regNum in the reg field. RSP and R12
// both encode to rm field 100, which the ISA always routes through a
// SIB byte regardless of addressing mode, so that case gets one.
func (a *AssemblerImpl) writeModRMMem(regNum, baseNum byte, offset int32) {
	a.buf.WriteByte(0x80 | regNum&7<<3 | baseNum&7)
	if baseNum&7 == 4 {
		a.buf.WriteByte(0x24) // SIB: no index, base = rm field
	}
	var disp [4]byte
	binary.LittleEndian.PutUint32(disp[:], uint32(offset))
	a.buf.Write(disp[:])
}

// MemToReg implements asm.Assembler: MOV r64, r/m64 (0x8B).
func (a *AssemblerImpl) MemToReg(instruction asm.Instruction, baseReg asm.Register, offset int32, to asm.Register) {
	if instruction != MOVQ {
		panic(fmt.Sprintf("amd64: %s has no memory-to-register form", InstructionName(instruction)))
	}
	baseNum, toNum := x86Num(baseReg), x86Num(to)
	a.buf.WriteByte(rex(1, toNum>>3&1, 0, baseNum>>3&1))
	a.buf.WriteByte(0x8B)
	a.writeModRMMem(toNum, baseNum, offset)
}

// RegToMem implements asm.Assembler: MOV r/m64, r64 (0x89).
func (a *AssemblerImpl) RegToMem(instruction asm.Instruction, from asm.Register, baseReg asm.Register, offset int32) {
	if instruction != MOVQ {
		panic(fmt.Sprintf("amd64: %s has no register-to-memory form", InstructionName(instruction)))
	}
	baseNum, fromNum := x86Num(baseReg), x86Num(from)
	a.buf.WriteByte(rex(1, fromNum>>3&1, 0, baseNum>>3&1))
	a.buf.WriteByte(0x89)
	a.writeModRMMem(fromNum, baseNum, offset)
}

// StandAlone implements asm.Assembler.
func (a *AssemblerImpl) StandAlone(instruction asm.Instruction) {
	switch instruction {
	case RET:
		a.buf.WriteByte(0xC3)
	case UD2:
		a.buf.WriteByte(0x0F)
		a.buf.WriteByte(0x0B)
	case NOP:
		a.buf.WriteByte(0x90)
	default:
		panic(fmt.Sprintf("amd64: %s is not a stand-alone instruction", InstructionName(instruction)))
	}
}

// JumpToReg implements asm.Assembler: FF /4 (JMP) or FF /2 (CALL), the
// indirect control transfer a bind-jump/bind-call dispatch stub makes
// once its smashable site has been patched to a real target (spec.md
// §4.1). Near indirect JMP/CALL defaults to 64-bit in long mode, so no
// REX.W is needed — only REX.B, and only when reg is one of R8-R15.
func (a *AssemblerImpl) JumpToReg(instruction asm.Instruction, reg asm.Register) {
	var regField byte
	switch instruction {
	case JMP:
		regField = 4
	case CALL:
		regField = 2
	default:
		panic(fmt.Sprintf("amd64: %s has no jump-to-register form", InstructionName(instruction)))
	}
	regNum := x86Num(reg)
	if regNum>>3&1 != 0 {
		a.buf.WriteByte(rex(0, 0, 0, 1))
	}
	a.buf.WriteByte(0xFF)
	a.buf.WriteByte(0xC0 | regField<<3 | regNum&7)
}
