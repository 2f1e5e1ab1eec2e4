package regalloc

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
)

// StackAllocator keeps every Id in its home slot and uses no registers
type StackAllocator struct{}

func (StackAllocator) Name() string { return StrategyStack }

func (StackAllocator) Allocate(fn *x64.Function) *Result {
	frame := NewFrame(fn)
	home := func(op x64.Operand) x64.Operand {
		if v, ok := op.(x64.Vid); ok {
			return frame.Home(v.Id)
		}
		return op
	}

	blocks := make([]*x64.Block, 0, len(fn.Blocks))
	for _, b := range fn.Blocks {
		instrs := make([]x64.Instr, len(b.Instrs))
		for i, in := range b.Instrs {
			instrs[i] = in.Map(home)
		}
		blocks = append(blocks, &x64.Block{Label: b.Label, Instrs: instrs, Transfer: b.Transfer})
	}

	out := finish(fn, blocks, nil, frame)
	spills := 0
	for id := range frame.Homes() {
		if used(fn, id) {
			spills++
		}
	}
	return &Result{
		Function:   out,
		Homes:      frame.Homes(),
		Spills:     spills,
		FrameBytes: out.FrameBytes,
	}
}

// used reports whether any instruction of fn mentions id
func used(fn *x64.Function, id ir.Id) bool {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for _, op := range in.Operands() {
				if v, ok := op.(x64.Vid); ok && v.Id == id {
					return true
				}
			}
		}
	}
	return false
}
