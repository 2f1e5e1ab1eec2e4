package optimizer

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/dataflow"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// CSE replaces recomputations of an available operator expression with a
// copy of the Id already holding its value. Only Bop expressions are
// considered; calls, allocations and array accesses never are.
//
// Within a block the holder is the destination of the latest computation,
// dropped as soon as an operand or the holder itself is redefined. Across
// blocks an expression available on entry is served by x only when x is the
// destination of every computation of the expression that was not itself
// redundant, and x has no other definition. That keeps the rewrite correct on
// every path and makes a second run change nothing.
func CSE(fn *ir.Function) *ir.Function {
	ae := dataflow.AvailableExpressions(fn)
	global := globalHolders(fn, ae)

	count := 0
	blocks := make([]*ir.Block, len(fn.Blocks))
	for bi, b := range fn.Blocks {
		local := make(map[ir.ExpKey]ir.Id)
		ae.In(b.Label).Each(func(k ir.ExpKey) bool {
			if x, ok := global[k]; ok {
				local[k] = x
			}
			return true
		})

		stms := make([]ir.Stm, 0, len(b.Stms))
		for _, s := range b.Stms {
			a, isAssign := s.(ir.Assign)
			bop, isBop := a.Exp.(ir.Bop)
			if !isAssign || !isBop {
				for _, d := range ir.StmDefs(s) {
					invalidate(local, d)
				}
				stms = append(stms, s)
				continue
			}

			k := ir.KeyOf(bop)
			x, held := local[k]
			if held && x != a.X {
				logger.Debug("Reusing common subexpression", "function", fn.QualifiedName(), "block", b.Label, "exp", k.String(), "holder", x)
				stms = append(stms, ir.Assign{X: a.X, Exp: ir.Eid{Id: x, Type: bop.Type}})
				count++
				invalidate(local, a.X)
				continue
			}
			stms = append(stms, s)
			invalidate(local, a.X)
			if !k.Mentions(a.X) {
				local[k] = a.X
			}
		}
		blocks[bi] = &ir.Block{Label: b.Label, Stms: stms, Transfer: b.Transfer}
	}

	if count > 0 {
		logger.LogOptimization("cse", count)
	}
	return fn.WithBlocks(blocks)
}

// invalidate drops every entry over id or held in id
func invalidate(local map[ir.ExpKey]ir.Id, id ir.Id) {
	for k, x := range local {
		if x == id || k.Mentions(id) {
			delete(local, k)
		}
	}
}

// globalHolders maps each expression to the single Id that receives every
// non-redundant computation of it, when there is one.
func globalHolders(fn *ir.Function, ae *dataflow.AvailExps) map[ir.ExpKey]ir.Id {
	defCount := make(map[ir.Id]int)
	for _, id := range fn.FormalIds() {
		defCount[id]++
	}
	holders := make(map[ir.ExpKey]*set.Set[ir.Id])
	for _, b := range fn.Blocks {
		avail := ae.In(b.Label).Clone()
		for _, s := range b.Stms {
			for _, d := range ir.StmDefs(s) {
				defCount[d]++
			}
			if a, ok := s.(ir.Assign); ok {
				if bop, ok := a.Exp.(ir.Bop); ok {
					k := ir.KeyOf(bop)
					if !avail.Contains(k) {
						if holders[k] == nil {
							holders[k] = set.New[ir.Id]()
						}
						holders[k].Add(a.X)
					}
				}
			}
			dataflow.AvailTransfer(avail, s)
		}
	}

	global := make(map[ir.ExpKey]ir.Id)
	for k, hs := range holders {
		if hs.Len() != 1 {
			continue
		}
		x := hs.Slice()[0]
		if defCount[x] == 1 && !k.Mentions(x) {
			global[k] = x
		}
	}
	return global
}
