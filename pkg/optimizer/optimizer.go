// Package optimizer - CFG-level optimizations
// Design: each pass is a pure function from a Function to a new Function that
// reruns the analysis it needs from scratch; the pipeline applies them in a
// fixed order, once each.
package optimizer

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/dataflow"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// Pipeline stage names reported to Options.Observe
const (
	StageUnreachable = "unreachable"
	StageDeadCode    = "deadcode"
	StageConstProp   = "constprop"
	StageCSE         = "cse"
)

// Options selects the passes Run applies
type Options struct {
	// Level 0 runs nothing, 1 dead code and constant propagation, 2 adds CSE
	Level int
	// CSE chains common subexpression elimination at any level above 0
	CSE bool
	// Observe, when set, sees the program after every stage
	Observe func(stage string, prog *ir.Program)
}

// Optimize applies the passes of the given level
func Optimize(prog *ir.Program, level int) *ir.Program {
	return Run(prog, Options{Level: level})
}

// Run applies the pipeline selected by opts to every function
func Run(prog *ir.Program, opts Options) *ir.Program {
	logger.Debug("Running optimization passes", "level", opts.Level, "cse", opts.CSE)

	if opts.Level == 0 {
		return prog
	}

	stage := func(name string, pass func(*ir.Function) *ir.Function) {
		fns := make([]*ir.Function, len(prog.Functions))
		for i, fn := range prog.Functions {
			fns[i] = pass(fn)
		}
		prog = prog.WithFunctions(fns)
		if opts.Observe != nil {
			opts.Observe(name, prog)
		}
	}

	stage(StageUnreachable, RemoveUnreachable)
	stage(StageDeadCode, func(fn *ir.Function) *ir.Function {
		out, live := DeadCode(fn)
		WarnUninitialized(fn, live)
		return out
	})
	stage(StageConstProp, ConstProp)

	if opts.Level >= 2 || opts.CSE {
		stage(StageCSE, CSE)
	}

	logger.Info("Optimization complete", "level", opts.Level, "functions", len(prog.Functions))
	return prog
}

// RemoveUnreachable drops blocks no path from the entry reaches
func RemoveUnreachable(fn *ir.Function) *ir.Function {
	reachable := dataflow.Reachable(fn)
	newBlocks := make([]*ir.Block, 0, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if reachable.Contains(block.Label) {
			newBlocks = append(newBlocks, block)
		}
	}
	if removed := len(fn.Blocks) - len(newBlocks); removed > 0 {
		logger.Debug("Removed unreachable blocks", "function", fn.QualifiedName(), "count", removed)
	}
	return fn.WithBlocks(newBlocks)
}

// WarnUninitialized logs every Id that is live into the entry block: some
// path reads it before any assignment.
func WarnUninitialized(fn *ir.Function, live *dataflow.Result[ir.Id]) {
	entry := fn.Entry()
	if entry == nil {
		return
	}
	for _, id := range set.Sorted(live.In(entry.Label)) {
		logger.LogUninitialized(fn.QualifiedName(), string(id))
	}
}
