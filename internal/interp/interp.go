// Package interp is the reference bytecode interpreter cmd/tlrun uses to
// produce a program's actual final state. spec.md §1 places "the
// interpreter proper" out of scope as an external collaborator — this
// package is not that interpreter; it is a minimal stand-in good enough
// to drive the worked scenarios of spec.md §8 end to end in a
// standalone CLI, since this repository has no native code-execution
// backend to run a real translation's bytes (see internal/codegen and
// internal/engine's doc comments on that point).
package interp

import (
	"fmt"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/rtype"
)

// Value is one interpreted cell: a Kind tag plus whichever of the three
// payload fields that Kind uses. Arrays, objects, and iterators are
// outside this minimal interpreter's scope — the worked examples that
// touch them (spec.md §8's COW array set, polymorphic call site) are
// exercised at the tracelet/codegen layer's tests instead, which don't
// need a real interpreter behind them.
type Value struct {
	Kind rtype.Kind
	I    int64
	S    string
	B    bool
}

func Null() Value           { return Value{Kind: rtype.KindNull} }
func Int(i int64) Value     { return Value{Kind: rtype.KindInt, I: i} }
func Bool(b bool) Value     { return Value{Kind: rtype.KindBool, B: b} }
func String(s string) Value { return Value{Kind: rtype.KindString, S: s} }

// Truthy implements the loose truthiness JmpZ/JmpNZ branch on.
func (v Value) Truthy() bool {
	switch v.Kind {
	case rtype.KindNull:
		return false
	case rtype.KindBool:
		return v.B
	case rtype.KindInt:
		return v.I != 0
	case rtype.KindString:
		return v.S != "" && v.S != "0"
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case rtype.KindNull:
		return "null"
	case rtype.KindBool:
		return fmt.Sprintf("%t", v.B)
	case rtype.KindInt:
		return fmt.Sprintf("%d", v.I)
	case rtype.KindString:
		return fmt.Sprintf("%q", v.S)
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// Frame is one function activation: its locals and a named-global
// table (global scoping is otherwise the embedding's job; a single flat
// map is enough for the worked examples).
type Frame struct {
	Locals  []Value
	Globals map[string]Value
	stack   []Value
}

// NewFrame allocates a Frame with numLocals locals, all initialized to
// Null (spec.md §4.5's zero-init semantics for missing arguments).
func NewFrame(numLocals int, globals map[string]Value) *Frame {
	if globals == nil {
		globals = map[string]Value{}
	}
	return &Frame{Locals: make([]Value, numLocals), Globals: globals}
}

func (f *Frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *Frame) pop() Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *Frame) top() Value { return f.stack[len(f.stack)-1] }

// Program is a flat, single-function instruction stream — the unit
// cmd/tlrun executes, matching internal/tracelet.Fetcher's "decode the
// instruction at a bytecode offset" contract closely enough that the
// same program slice can seed both a tracelet.Analyze call and a real
// Run.
type Program []bytecode.Instruction

// Run interprets prog start-to-RetC against frame, returning the
// returned cell. pendingCall, when non-empty, names the function an
// FCall invocation resolves to — looked up in calls, a minimal call
// table substituting for the real function-dispatch machinery
// (spec.md §1's Non-goals).
func Run(prog Program, frame *Frame, calls map[string]func(args []Value) Value) (Value, error) {
	var pc uint32
	var pendingCall string
	var pendingArgs []Value

	for {
		if int(pc) >= len(prog) {
			return Null(), fmt.Errorf("interp: fell off the end of the program at pc=%d", pc)
		}
		instr := prog[pc]
		switch instr.Op {
		case bytecode.OpInt:
			frame.push(Int(instr.Imm.Int))
		case bytecode.OpString:
			frame.push(String(instr.Imm.Str))
		case bytecode.OpNull:
			frame.push(Null())
		case bytecode.OpTrue:
			frame.push(Bool(true))
		case bytecode.OpFalse:
			frame.push(Bool(false))
		case bytecode.OpPopC:
			frame.pop()
		case bytecode.OpDup:
			frame.push(frame.top())

		case bytecode.OpCGetL:
			frame.push(frame.Locals[instr.Imm.Slot])
		case bytecode.OpSetL:
			frame.Locals[instr.Imm.Slot] = frame.top()
		case bytecode.OpIncDecL:
			v := frame.Locals[instr.Imm.Slot]
			v.I++
			frame.Locals[instr.Imm.Slot] = v
			frame.push(v)

		case bytecode.OpCGetG:
			name := frame.pop()
			frame.push(frame.Globals[name.S])
		case bytecode.OpSetG:
			name := frame.pop()
			frame.Globals[name.S] = frame.top()

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul:
			rhs, lhs := frame.pop(), frame.pop()
			frame.push(arith(instr.Op, lhs, rhs))
		case bytecode.OpLt, bytecode.OpGt, bytecode.OpEq, bytecode.OpNeq:
			rhs, lhs := frame.pop(), frame.pop()
			frame.push(compare(instr.Op, lhs, rhs))

		case bytecode.OpJmp:
			pc = instr.Imm.Target
			continue
		case bytecode.OpJmpZ:
			if !frame.pop().Truthy() {
				pc = instr.Imm.Target
				continue
			}
		case bytecode.OpJmpNZ:
			if frame.pop().Truthy() {
				pc = instr.Imm.Target
				continue
			}
		case bytecode.OpRetC:
			return frame.pop(), nil

		case bytecode.OpNewArray:
			// Arrays aren't modeled by this minimal Value; pushing Null
			// keeps the stack depth correct for programs that merely
			// discard the result (the worked examples that actually
			// exercise array COW are tested at internal/codegen's
			// layer, not executed here).
			frame.push(Null())

		case bytecode.OpFPushFuncD:
			pendingCall = instr.Imm.Str
			pendingArgs = nil
		case bytecode.OpFPassC:
			pendingArgs = append(pendingArgs, frame.pop())
		case bytecode.OpFCall:
			fn, ok := calls[pendingCall]
			if !ok {
				return Null(), fmt.Errorf("interp: no call target registered for %q", pendingCall)
			}
			frame.push(fn(pendingArgs))
			pendingCall, pendingArgs = "", nil

		default:
			return Null(), fmt.Errorf("interp: opcode %s is not interpretable by this harness", instr.Op)
		}
		pc++
	}
}

func arith(op bytecode.Opcode, lhs, rhs Value) Value {
	switch op {
	case bytecode.OpAdd:
		return Int(lhs.I + rhs.I)
	case bytecode.OpSub:
		return Int(lhs.I - rhs.I)
	case bytecode.OpMul:
		return Int(lhs.I * rhs.I)
	default:
		panic("interp: arith called with a non-arithmetic opcode")
	}
}

func compare(op bytecode.Opcode, lhs, rhs Value) Value {
	switch op {
	case bytecode.OpLt:
		return Bool(lhs.I < rhs.I)
	case bytecode.OpGt:
		return Bool(lhs.I > rhs.I)
	case bytecode.OpEq:
		return Bool(lhs.I == rhs.I)
	case bytecode.OpNeq:
		return Bool(lhs.I != rhs.I)
	default:
		panic("interp: compare called with a non-comparison opcode")
	}
}
