// Package regalloc assigns every virtual register of selected x64 code a
// physical register or a frame slot.
//
// Design: each CFG Id owns a home slot in the frame. Linear scan hands out
// callee-saved registers block by block, in a topological block order, and
// moves values through home slots only at block boundaries, so no two blocks
// have to agree on where an Id lives.
package regalloc

import (
	"fmt"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

// Strategy names
const (
	StrategyLinearScan = "linearscan"
	StrategyStack      = "stack"
)

// prologueLabel names the block holding the prologue when the entry block is
// itself a jump target, suffixed when a block already has the name
const prologueLabel ir.Label = "prologue"

// Allocator rewrites one function so no virtual register is left
type Allocator interface {
	Name() string
	Allocate(fn *x64.Function) *Result
}

// Result is one allocated function and what it cost
type Result struct {
	Function   *x64.Function
	Homes      TempMap
	Registers  int
	Spills     int
	FrameBytes int
}

// Config holds the register pool
type Config struct {
	Available []x64.Reg
}

// DefaultConfig uses every callee-saved register
func DefaultConfig() *Config {
	return &Config{Available: append([]x64.Reg(nil), x64.CalleeSaved...)}
}

// New returns the allocator for a strategy name
func New(strategy string) (Allocator, error) {
	switch strategy {
	case StrategyLinearScan, "":
		return NewLinearScan(DefaultConfig())
	case StrategyStack:
		return StackAllocator{}, nil
	default:
		return nil, fmt.Errorf("unknown allocation strategy %q (want %s or %s)", strategy, StrategyLinearScan, StrategyStack)
	}
}

// Program allocates every function of prog
func Program(prog *x64.Program, a Allocator) (*x64.Program, []*Result) {
	out := &x64.Program{Entry: prog.Entry, Vtables: prog.Vtables}
	results := make([]*Result, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		r := a.Allocate(fn)
		logger.LogAllocation(fn.Name, r.Registers, r.Spills, r.FrameBytes)
		out.Functions = append(out.Functions, r.Function)
		results = append(results, r)
	}
	return out, results
}

// TempMap maps Ids to frame slots
type TempMap map[ir.Id]x64.Mem

// Frame hands out %rbp-relative slots, one word each, growing downward
type Frame struct {
	next  int
	homes TempMap
}

// NewFrame gives every formal, then every local, a home slot
func NewFrame(fn *x64.Function) *Frame {
	f := &Frame{homes: make(TempMap)}
	for _, d := range fn.Formals {
		f.Home(d.Id)
	}
	for _, d := range fn.Locals {
		f.Home(d.Id)
	}
	return f
}

// Slot allocates a fresh word
func (f *Frame) Slot() x64.Mem {
	f.next -= x64.WordSize
	return x64.Mem{Base: x64.RBP, Offset: f.next}
}

// Home returns id's home slot, allocating one for Ids that were never
// declared
func (f *Frame) Home(id ir.Id) x64.Mem {
	if m, ok := f.homes[id]; ok {
		return m
	}
	m := f.Slot()
	f.homes[id] = m
	return m
}

// Homes returns every home slot allocated so far
func (f *Frame) Homes() TempMap {
	return f.homes
}

// Size returns the bytes to reserve below the pushed registers so that %rsp
// stays 16-byte aligned. On entry %rsp+8 is aligned; %rbp and pushed more
// registers go on top of the return address.
func (f *Frame) Size(pushed int) int {
	bytes := -f.next
	if (x64.WordSize*pushed+bytes)%16 != 0 {
		bytes += x64.WordSize
	}
	return bytes
}

// move copies src to dst, going through the scratch register when both are
// in memory
func move(src, dst x64.Operand) []x64.Instr {
	_, srcMem := src.(x64.Mem)
	_, dstMem := dst.(x64.Mem)
	if srcMem && dstMem {
		return []x64.Instr{
			{Format: "movq {u0}, {d0}", Uses: []x64.Operand{src}, Defs: []x64.Operand{x64.Scratch}},
			{Format: "movq {u0}, {d0}", Uses: []x64.Operand{x64.Scratch}, Defs: []x64.Operand{dst}},
		}
	}
	return []x64.Instr{{Format: "movq {u0}, {d0}", Uses: []x64.Operand{src}, Defs: []x64.Operand{dst}}}
}

func prologue(saved []x64.Reg, frameBytes int) []x64.Instr {
	out := []x64.Instr{{Format: "pushq %rbp"}}
	for _, r := range saved {
		out = append(out, x64.Instr{Format: "pushq " + string(r)})
	}
	out = append(out, x64.Instr{Format: "movq %rsp, %rbp"})
	if frameBytes > 0 {
		out = append(out, x64.Instr{Format: fmt.Sprintf("subq $%d, %%rsp", frameBytes)})
	}
	return out
}

func epilogue(saved []x64.Reg) []x64.Instr {
	out := []x64.Instr{{Format: "movq %rbp, %rsp"}}
	for i := len(saved) - 1; i >= 0; i-- {
		out = append(out, x64.Instr{Format: "popq " + string(saved[i])})
	}
	return append(out, x64.Instr{Format: "popq %rbp"})
}

// finish resolves incoming stack arguments and wraps the allocated blocks
// in the prologue and epilogues. blocks[0] must be the entry.
func finish(fn *x64.Function, blocks []*x64.Block, saved []x64.Reg, frame *Frame) *x64.Function {
	frameBytes := frame.Size(len(saved))
	resolve := func(op x64.Operand) x64.Operand {
		if in, ok := op.(x64.Incoming); ok {
			return x64.Mem{Base: x64.RBP, Offset: x64.IncomingOffset(in.Index, len(saved))}
		}
		if v, ok := op.(x64.Vid); ok {
			ir.Bug("regalloc", "virtual register %s survived allocation of %s", v.Id, fn.Name)
		}
		return op
	}

	out := &x64.Function{
		Name:       fn.Name,
		Formals:    fn.Formals,
		Locals:     fn.Locals,
		FrameBytes: frameBytes,
		Saved:      saved,
	}
	for _, b := range blocks {
		instrs := make([]x64.Instr, 0, len(b.Instrs)+len(saved)+3)
		for _, in := range b.Instrs {
			instrs = append(instrs, in.Map(resolve))
		}
		if _, ok := b.Transfer.(x64.Ret); ok {
			instrs = append(instrs, epilogue(saved)...)
		}
		out.Blocks = append(out.Blocks, &x64.Block{Label: b.Label, Instrs: instrs, Transfer: b.Transfer})
	}
	if len(out.Blocks) == 0 {
		return out
	}

	entry := out.Blocks[0]
	pro := prologue(saved, frameBytes)
	if out.HasPredecessors(entry.Label) {
		head := &x64.Block{Label: out.FreshLabel(prologueLabel), Instrs: pro, Transfer: x64.Jmp{Target: entry.Label}}
		out.Blocks = append([]*x64.Block{head}, out.Blocks...)
	} else {
		entry.Instrs = append(pro, entry.Instrs...)
	}
	return out
}
