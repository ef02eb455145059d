package asm

// Register represents an architecture-specific register.
type Register byte

// NilRegister is the only architecture-independent register, and
// can be used to indicate that no register is specified.
const NilRegister Register = 0

// Instruction identifies one architecture-specific opcode. Unlike a
// general-purpose compiler backend, this encoder only ever needs the
// closed set of forms spec.md §4.4's lowering actually reaches for:
// moving a cell between a register and the activation record, integer
// arithmetic and comparison, and returning from or jumping into a
// translation. Floating point, SIMD, and relocatable jump-table
// lowering never appear in this JIT's bytecode surface (internal/bytecode),
// so they were never ported from the teacher's general-purpose backend.
type Instruction byte

// Assembler lowers a tracelet translation's Step trace (internal/codegen)
// into native bytes. A fresh Assembler is used per translation, the same
// one-shot-then-Assemble lifecycle the teacher's own per-function
// compiler uses, just over a far smaller instruction surface.
type Assembler interface {
	// Assemble returns the accumulated native bytes.
	Assemble() ([]byte, error)

	// RegToReg emits instruction with from as the source and to as the
	// destination, e.g. RegToReg(ADDQ, from, to) computes to += from.
	RegToReg(instruction Instruction, from, to Register)
	// ImmToReg emits instruction loading the constant value into to
	// (spec.md §4.4: "load a known constant into a bound register").
	ImmToReg(instruction Instruction, value int64, to Register)
	// MemToReg emits instruction loading the 8-byte cell at
	// baseReg+offset into to — reading a local/iterator slot out of the
	// activation record (internal/hostabi.FrameLayout).
	MemToReg(instruction Instruction, baseReg Register, offset int32, to Register)
	// RegToMem emits instruction storing from into the 8-byte cell at
	// baseReg+offset — the sync-to-memory step spec.md §4.4 requires
	// before any helper call that could observe stale state.
	RegToMem(instruction Instruction, from Register, baseReg Register, offset int32)
	// StandAlone emits an instruction that takes no operand (RET, UD2, NOP).
	StandAlone(instruction Instruction)
	// JumpToReg emits an indirect control-transfer instruction (JMP or
	// CALL) through reg — how a smashed bind-jump or bind-call site
	// dispatches once patched (spec.md §4.1).
	JumpToReg(instruction Instruction, reg Register)
}

// NewAssembler constructs an Assembler. temporaryRegister is reserved by
// the caller as scratch space the encoder may clobber internally; amd64's
// implementation does not currently need one but keeps the parameter so
// callers don't need an architecture-specific constructor signature.
type NewAssembler func(temporaryRegister Register) (Assembler, error)
