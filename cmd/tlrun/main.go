// Command tlrun is a standalone harness for the worked scenarios of
// spec.md §8: it seeds an internal/engine.Engine, drives one of a
// handful of built-in bytecode programs through EnsureTranslated to
// show the translation machinery firing, then runs the same program to
// completion through internal/interp (the one component in this
// repository that can actually produce a final value, since no native
// execution backend exists) and prints the resulting locals.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhangjiayin/hiphop-php-sub000/internal/bytecode"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/config"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/engine"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/hostabi"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/interp"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/sourcekey"
	"github.com/zhangjiayin/hiphop-php-sub000/internal/tracelet"
)

// scenario bundles everything needed to both translate and interpret
// one of spec.md §8's worked examples: the bytecode itself, the seed
// type environment the tracelet analyzer starts from, and how many
// locals the interpreter's frame needs.
type scenario struct {
	name      string
	program   interp.Program
	env       *tracelet.Env
	numLocals int
}

func integerAddHotLoop() interp.Program {
	const i, s = 0, 1
	return interp.Program{
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 0}},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: s}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1}},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpSetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpPopC},
		{Op: bytecode.OpCGetL, Imm: bytecode.Immediate{Slot: i}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 1000000}},
		{Op: bytecode.OpLt},
		{Op: bytecode.OpJmpNZ, Imm: bytecode.Immediate{Target: 6}},
		{Op: bytecode.OpInt, Imm: bytecode.Immediate{Int: 0}},
		{Op: bytecode.OpRetC},
	}
}

var scenarios = map[string]scenario{
	"hot-loop": {
		name:      "hot-loop",
		program:   integerAddHotLoop(),
		env:       tracelet.NewEnv(nil, false),
		numLocals: 2,
	},
}

func newRootCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "tlrun",
		Short: "Run a bytecode unit through the tracelet JIT and print final locals",
		Long: `tlrun seeds the translation engine with one of the worked scenarios from
the tracelet JIT specification, translates its entry tracelet, runs it
to completion via the reference interpreter, and prints the final
locals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, ok := scenarios[name]
			if !ok {
				return fmt.Errorf("unknown scenario %q", name)
			}
			return runScenario(cmd, sc)
		},
	}
	cmd.Flags().StringVar(&name, "scenario", "hot-loop", "built-in scenario to run (hot-loop)")
	return cmd
}

func runScenario(cmd *cobra.Command, sc scenario) error {
	fetch := func(offset uint32) (bytecode.Instruction, error) {
		if int(offset) >= len(sc.program) {
			return bytecode.Instruction{}, fmt.Errorf("tlrun: offset %d out of range", offset)
		}
		return sc.program[offset], nil
	}
	layout := hostabi.FrameLayout{LocalsOffset: 16, NumLocals: uint32(sc.numLocals)}
	eng := engine.New(config.Config{EnableJIT: true}, fetch, layout, func(sourcekey.SourceKey) *tracelet.Env { return sc.env })

	start := sourcekey.New(1, 0)
	trec, err := eng.EnsureTranslated(start)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "translation: fell back to interpretation (%v)\n", err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "translation: published id=%d stack-ceil=%d\n", trec.ID, trec.StackPointerCeil)
	}

	frame := interp.NewFrame(sc.numLocals, nil)
	result, err := interp.Run(sc.program, frame, nil)
	if err != nil {
		return fmt.Errorf("interpreting %s: %w", sc.name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "return value: %s\n", result)
	for i, v := range frame.Locals {
		fmt.Fprintf(cmd.OutOrStdout(), "local[%d] = %s\n", i, v)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
