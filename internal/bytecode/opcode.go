// Package bytecode defines the closed opcode table spec.md §4.3 assumes
// ("dynamic dispatch over bytecode opcodes: represented as a closed
// table") but never enumerates. This is the wire shape only — decoding a
// raw instruction stream into Instruction values is owned by the
// bytecode compiler (spec.md §1's Non-goals) and is out of scope here.
package bytecode

import "fmt"

// Opcode is a single stack-machine instruction tag. The set covers every
// opcode spec.md names explicitly plus the minimum needed to drive the
// worked scenarios of §8 (arithmetic, locals, globals, comparisons,
// branches, array/property access, calls/returns) and the
// reference-counting pseudo-ops internal/codegen inserts internally.
type Opcode byte

const (
	OpInvalid Opcode = iota

	// Immediates and stack shuffling.
	OpInt    // push an integer immediate.
	OpDouble // push a double immediate.
	OpString // push a static string immediate.
	OpNull   // push null.
	OpTrue   // push bool true.
	OpFalse  // push bool false.
	OpPopC   // discard the top stack cell.
	OpDup    // duplicate the top stack cell.

	// Locals.
	OpCGetL  // push a copy of local N.
	OpSetL   // store the top of stack into local N (leaves value on stack).
	OpIncDecL // increment/decrement local N in place, push the result.

	// Globals.
	OpCGetG // push a copy of global named by the top-of-stack string.
	OpSetG  // store the top of stack into the named global.

	// Arithmetic and comparisons.
	OpAdd
	OpSub
	OpMul
	OpLt
	OpGt
	OpEq
	OpNeq

	// Control flow.
	OpJmp    // unconditional jump.
	OpJmpZ   // pop, jump if falsy.
	OpJmpNZ  // pop, jump if truthy.
	OpRetC   // return the top-of-stack cell to the caller.

	// Arrays and properties.
	OpNewArray  // push a new empty array.
	OpCGetM     // push a copy of a member (array elem / object prop) lookup.
	OpSetM      // store into a member lookup, leaves the stored value on stack.

	// Calls.
	OpFPushFuncD // begin a call to a statically-named function.
	OpFPassC     // push an already-evaluated argument onto the in-progress call.
	OpFCall      // execute the in-progress call, push its return value.

	// Iteration.
	OpIterInit // initialize an iterator over the top-of-stack collection.
	OpIterNext // advance an iterator, jump to target when exhausted.

	// Internal reference-counting pseudo-ops codegen inserts; never
	// produced by a real bytecode compiler, only by internal/codegen's
	// own lowering passes (spec.md §4.4 "reference-counting operations").
	OpIncRef
	OpDecRef
)

func (op Opcode) String() string {
	switch op {
	case OpInt:
		return "Int"
	case OpDouble:
		return "Double"
	case OpString:
		return "String"
	case OpNull:
		return "Null"
	case OpTrue:
		return "True"
	case OpFalse:
		return "False"
	case OpPopC:
		return "PopC"
	case OpDup:
		return "Dup"
	case OpCGetL:
		return "CGetL"
	case OpSetL:
		return "SetL"
	case OpIncDecL:
		return "IncDecL"
	case OpCGetG:
		return "CGetG"
	case OpSetG:
		return "SetG"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpLt:
		return "Lt"
	case OpGt:
		return "Gt"
	case OpEq:
		return "Eq"
	case OpNeq:
		return "Neq"
	case OpJmp:
		return "Jmp"
	case OpJmpZ:
		return "JmpZ"
	case OpJmpNZ:
		return "JmpNZ"
	case OpRetC:
		return "RetC"
	case OpNewArray:
		return "NewArray"
	case OpCGetM:
		return "CGetM"
	case OpSetM:
		return "SetM"
	case OpFPushFuncD:
		return "FPushFuncD"
	case OpFPassC:
		return "FPassC"
	case OpFCall:
		return "FCall"
	case OpIterInit:
		return "IterInit"
	case OpIterNext:
		return "IterNext"
	case OpIncRef:
		return "IncRef"
	case OpDecRef:
		return "DecRef"
	default:
		return fmt.Sprintf("Opcode(%d)", byte(op))
	}
}

// IsBranch reports whether op can transfer control to a target other than
// the next instruction; internal/tracelet ends a tracelet at any such
// opcode per spec.md §4.3.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpJmp, OpJmpZ, OpJmpNZ, OpIterNext, OpRetC:
		return true
	default:
		return false
	}
}

// IsCall reports whether op participates in the FPush.../FCall call
// sequence; internal/tracelet and internal/codegen both need to
// recognize the whole sequence as one unit (spec.md §4.3's "ends a
// tracelet at a call").
func (op Opcode) IsCall() bool {
	switch op {
	case OpFPushFuncD, OpFPassC, OpFCall:
		return true
	default:
		return false
	}
}

// Immediate carries an opcode's literal operand, when it has one (Int,
// Double, String, jump targets, local/iterator slot ids). Exactly one
// field is meaningful per Opcode; which one is documented at each
// Opcode's declaration above.
type Immediate struct {
	Int    int64
	Double float64
	Str    string
	Slot   uint32 // local id, iterator id, or argument count, depending on Opcode.
	Target uint32 // branch target, as a bytecode offset.
}

// Instruction is one decoded bytecode instruction: an Opcode plus its
// Immediate operand. The bytecode compiler (out of scope here) is
// responsible for producing a stream of these from raw wire bytes;
// internal/tracelet only ever consumes already-decoded Instructions.
type Instruction struct {
	Op  Opcode
	Imm Immediate
}
