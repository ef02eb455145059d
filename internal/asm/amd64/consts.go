package amd64

import "github.com/zhangjiayin/hiphop-php-sub000/internal/asm"

// AMD64 general-purpose registers. internal/regalloc.RegisterMap allocates
// out of exactly these (minus the reserved ones it pins for the stack
// pointer, frame pointer, thread base, stashed activation record, and
// scratch): this is an integer-only
// tracelet JIT (internal/bytecode has no vector opcodes), so unlike the
// teacher's WebAssembly backend there are no XMM registers to name.
//
// https://www.lri.fr/~filliatr/ens/compil/x86-64.pdf
const (
	REG_AX asm.Register = asm.NilRegister + 1 + iota
	REG_CX
	REG_DX
	REG_BX
	REG_SP
	REG_BP
	REG_SI
	REG_DI
	REG_R8
	REG_R9
	REG_R10
	REG_R11
	REG_R12
	REG_R13
	REG_R14
	REG_R15
)

// RegisterName is used by logging (internal/vmlog) and test failure
// messages; it never appears in emitted code.
func RegisterName(reg asm.Register) string {
	switch reg {
	case REG_AX:
		return "AX"
	case REG_CX:
		return "CX"
	case REG_DX:
		return "DX"
	case REG_BX:
		return "BX"
	case REG_SP:
		return "SP"
	case REG_BP:
		return "BP"
	case REG_SI:
		return "SI"
	case REG_DI:
		return "DI"
	case REG_R8:
		return "R8"
	case REG_R9:
		return "R9"
	case REG_R10:
		return "R10"
	case REG_R11:
		return "R11"
	case REG_R12:
		return "R12"
	case REG_R13:
		return "R13"
	case REG_R14:
		return "R14"
	case REG_R15:
		return "R15"
	default:
		return "nil"
	}
}

// AMD64 instructions this encoder can emit. Named the way Go's own
// assembler names them (https://go.dev/doc/asm), restricted to the forms
// spec.md §4.4's lowering sequence and internal/codecache's trampolines
// actually need: moving a cell between register and activation record,
// integer add/sub, comparison for guard checks, and the handful of
// control-transfer/no-operand forms a translation's prologue/epilogue and
// bind sites use.
const (
	NONE asm.Instruction = iota
	MOVQ
	ADDQ
	SUBQ
	CMPQ
	JMP
	CALL
	RET
	UD2
	NOP
)

// InstructionName is used by logging and test failure messages.
func InstructionName(instruction asm.Instruction) string {
	switch instruction {
	case MOVQ:
		return "MOVQ"
	case ADDQ:
		return "ADDQ"
	case SUBQ:
		return "SUBQ"
	case CMPQ:
		return "CMPQ"
	case JMP:
		return "JMP"
	case CALL:
		return "CALL"
	case RET:
		return "RET"
	case UD2:
		return "UD2"
	case NOP:
		return "NOP"
	}
	return "NONE"
}
