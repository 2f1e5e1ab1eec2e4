package optimizer

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/dataflow"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// ConstProp forwards copies of constants. A constant root is an Id whose only
// definition in the function is an integer literal. A copy y = x makes y an
// alias of x's root; a later read of y is replaced by the root when the copy
// is the only definition of y reaching that read. No arithmetic is folded.
// Dead code elimination runs before and after each propagation round, and
// rounds repeat until one substitutes nothing.
func ConstProp(fn *ir.Function) *ir.Function {
	fn, _ = DeadCode(fn)
	total := 0
	for {
		next, n := propagate(fn)
		if n == 0 {
			break
		}
		total += n
		fn, _ = DeadCode(next)
	}
	if total > 0 {
		logger.LogOptimization("constprop", total)
	}
	return fn
}

// propagate performs one round of substitution and returns the count
func propagate(fn *ir.Function) (*ir.Function, int) {
	rd := dataflow.ReachingDefinitions(fn)
	formals := set.New(fn.FormalIds()...)

	roots := make(map[ir.Id]bool)
	for id, refs := range rd.DefsOf {
		if len(refs) != 1 || formals.Contains(id) {
			continue
		}
		if a, ok := rd.Stms[refs[0]].(ir.Assign); ok {
			if _, ok := a.Exp.(ir.Int); ok {
				roots[id] = true
			}
		}
	}

	// rootOf resolves the root x denotes given the definitions reaching a read
	aliasAt := make(map[dataflow.StmRef]ir.Id)
	rootOf := func(x ir.Id, reach *set.Set[dataflow.StmRef]) (ir.Id, bool) {
		if roots[x] {
			return x, true
		}
		defs := rd.Reaching(reach, x)
		if len(defs) != 1 {
			return "", false
		}
		r, ok := aliasAt[defs[0]]
		return r, ok
	}

	// alias chains may run through loops, so settle them first
	for changed := true; changed; {
		changed = false
		for _, b := range fn.Blocks {
			rd.Replay(b, func(i int, s ir.Stm, reach *set.Set[dataflow.StmRef]) {
				a, ok := s.(ir.Assign)
				if !ok {
					return
				}
				eid, ok := a.Exp.(ir.Eid)
				if !ok {
					return
				}
				ref := dataflow.StmRef{Label: b.Label, Index: i}
				if _, done := aliasAt[ref]; done {
					return
				}
				if r, ok := rootOf(eid.Id, reach); ok && r != a.X {
					aliasAt[ref] = r
					changed = true
				}
			})
		}
	}

	count := 0
	blocks := make([]*ir.Block, len(fn.Blocks))
	for bi, b := range fn.Blocks {
		nb := &ir.Block{Label: b.Label, Stms: make([]ir.Stm, 0, len(b.Stms)), Transfer: b.Transfer}
		rd.Replay(b, func(i int, s ir.Stm, reach *set.Set[dataflow.StmRef]) {
			sub := func(x ir.Id) ir.Id {
				if roots[x] {
					return x
				}
				if r, ok := rootOf(x, reach); ok {
					count++
					return r
				}
				return x
			}
			if s == nil {
				nb.Transfer = substTransfer(b.Transfer, sub)
				return
			}
			nb.Stms = append(nb.Stms, substStm(s, sub))
		})
		blocks[bi] = nb
	}
	return fn.WithBlocks(blocks), count
}

func substIds(ids []ir.Id, sub func(ir.Id) ir.Id) []ir.Id {
	out := make([]ir.Id, len(ids))
	for i, id := range ids {
		out[i] = sub(id)
	}
	return out
}

// substExp rewrites every Id an expression reads
func substExp(e ir.Exp, sub func(ir.Id) ir.Id) ir.Exp {
	switch e := e.(type) {
	case ir.Bop:
		return ir.Bop{Op: e.Op, Operands: substIds(e.Operands, sub), Type: e.Type}
	case ir.Call:
		return ir.Call{Func: sub(e.Func), Args: substIds(e.Args, sub), RetType: e.RetType}
	case ir.Eid:
		return ir.Eid{Id: sub(e.Id), Type: e.Type}
	case ir.GetMethod:
		return ir.GetMethod{Obj: sub(e.Obj), Class: e.Class, Method: e.Method}
	case ir.Int, ir.New:
		return e
	case ir.Print:
		return ir.Print{X: sub(e.X)}
	case ir.Length:
		return ir.Length{X: sub(e.X)}
	case ir.ArraySelect:
		return ir.ArraySelect{Array: sub(e.Array), Index: sub(e.Index)}
	case ir.NewIntArray:
		return ir.NewIntArray{Size: sub(e.Size)}
	default:
		ir.Bug("optimizer.ConstProp", "unknown expression %T", e)
		return nil
	}
}

func substStm(s ir.Stm, sub func(ir.Id) ir.Id) ir.Stm {
	switch s := s.(type) {
	case ir.Assign:
		return ir.Assign{X: s.X, Exp: substExp(s.Exp, sub)}
	case ir.AssignArray:
		return ir.AssignArray{X: sub(s.X), Index: substExp(s.Index, sub), Value: substExp(s.Value, sub)}
	default:
		ir.Bug("optimizer.ConstProp", "unknown statement %T", s)
		return nil
	}
}

func substTransfer(t ir.Transfer, sub func(ir.Id) ir.Id) ir.Transfer {
	switch t := t.(type) {
	case ir.If:
		return ir.If{Cond: sub(t.Cond), Then: t.Then, Else: t.Else}
	case ir.Jmp:
		return t
	case ir.Ret:
		return ir.Ret{Value: sub(t.Value)}
	default:
		ir.Bug("optimizer.ConstProp", "unknown transfer %T", t)
		return nil
	}
}
