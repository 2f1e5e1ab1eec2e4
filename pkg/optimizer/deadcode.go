package optimizer

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/dataflow"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// DeadCode removes every statement whose destination is dead and whose
// expression has no side effect. Removal can kill the operands of a removed
// statement in other blocks, so liveness is recomputed until nothing more
// goes; the returned Liveness is the one that justified the final function.
func DeadCode(fn *ir.Function) (*ir.Function, *dataflow.Result[ir.Id]) {
	total := 0
	for {
		live := dataflow.Liveness(fn)
		next, removed := deadCodeOnce(fn, live)
		total += removed
		if removed == 0 {
			if total > 0 {
				logger.LogOptimization("deadcode", total)
			}
			return next, live
		}
		fn = next
	}
}

func deadCodeOnce(fn *ir.Function, live *dataflow.Result[ir.Id]) (*ir.Function, int) {
	removed := 0
	blocks := make([]*ir.Block, len(fn.Blocks))
	for bi, b := range fn.Blocks {
		keep := make([]bool, len(b.Stms))
		dataflow.WalkLive(b, live.Out(b.Label), func(i int, s ir.Stm, l *set.Set[ir.Id]) bool {
			keep[i] = ir.HasSideEffect(s) || l.Contains(s.Dest())
			return keep[i]
		})
		stms := make([]ir.Stm, 0, len(b.Stms))
		for i, s := range b.Stms {
			if keep[i] {
				stms = append(stms, s)
				continue
			}
			logger.Debug("Removing dead statement", "function", fn.QualifiedName(), "block", b.Label, "stm", ir.StmString(s))
			removed++
		}
		blocks[bi] = &ir.Block{Label: b.Label, Stms: stms, Transfer: b.Transfer}
	}
	return fn.WithBlocks(blocks), removed
}
