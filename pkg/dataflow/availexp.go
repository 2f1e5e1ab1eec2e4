package dataflow

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// AvailExps is the Available Expressions fixpoint over the operator
// expressions of one function.
type AvailExps struct {
	*Result[ir.ExpKey]
	// Universe is every operator expression computed in the function
	Universe *set.Set[ir.ExpKey]
	// Reachable is the set of blocks reachable from the entry
	Reachable *set.Set[ir.Label]
}

// AvailableExpressions computes, per block, the operator expressions that
// have been computed on every path to that point with no later redefinition
// of their operands. It is a must-analysis: the meet is intersection, blocks
// other than the entry start at the universe and facts only shrink.
// Unreachable blocks have nothing available.
func AvailableExpressions(fn *ir.Function) *AvailExps {
	return availableExpressions(fn, nil)
}

// AvailTransfer applies one statement to the available set in place: the
// definition kills every expression over its destination, then a pure
// operator expression not mentioning its own destination is generated.
func AvailTransfer(avail *set.Set[ir.ExpKey], s ir.Stm) {
	defs := ir.StmDefs(s)
	for _, d := range defs {
		var dead []ir.ExpKey
		avail.Each(func(k ir.ExpKey) bool {
			if k.Mentions(d) {
				dead = append(dead, k)
			}
			return true
		})
		for _, k := range dead {
			avail.Remove(k)
		}
	}
	a, ok := s.(ir.Assign)
	if !ok {
		return
	}
	bop, ok := a.Exp.(ir.Bop)
	if !ok {
		return
	}
	k := ir.KeyOf(bop)
	if !k.Mentions(a.X) {
		avail.Add(k)
	}
}

func availableExpressions(fn *ir.Function, obs observer[ir.ExpKey]) *AvailExps {
	ae := &AvailExps{Universe: set.New[ir.ExpKey](), Reachable: Reachable(fn)}
	for _, b := range fn.Blocks {
		for _, s := range b.Stms {
			if a, ok := s.(ir.Assign); ok {
				if bop, ok := a.Exp.(ir.Bop); ok {
					ae.Universe.Add(ir.KeyOf(bop))
				}
			}
		}
	}

	var entry ir.Label
	if e := fn.Entry(); e != nil {
		entry = e.Label
	}
	facts := make(map[ir.Label]*Facts[ir.ExpKey], len(fn.Blocks))
	for _, b := range fn.Blocks {
		if b.Label == entry || !ae.Reachable.Contains(b.Label) {
			facts[b.Label] = &Facts[ir.ExpKey]{In: set.New[ir.ExpKey](), Out: set.New[ir.ExpKey]()}
			continue
		}
		facts[b.Label] = &Facts[ir.ExpKey]{In: ae.Universe.Clone(), Out: ae.Universe.Clone()}
	}

	preds := fn.Predecessors()
	v := func(b *ir.Block, facts map[ir.Label]*Facts[ir.ExpKey]) bool {
		if !ae.Reachable.Contains(b.Label) {
			return false
		}
		f := facts[b.Label]
		var in *set.Set[ir.ExpKey]
		if b.Label == entry {
			in = set.New[ir.ExpKey]()
		} else {
			for _, p := range preds[b.Label] {
				if !ae.Reachable.Contains(p) {
					continue
				}
				if in == nil {
					in = facts[p].Out.Clone()
				} else {
					in.Intersection(facts[p].Out)
				}
			}
			if in == nil {
				in = set.New[ir.ExpKey]()
			}
		}
		out := in.Clone()
		for _, s := range b.Stms {
			AvailTransfer(out, s)
		}
		changedIn := update(&f.In, in)
		changedOut := update(&f.Out, out)
		return changedIn || changedOut
	}

	iterations := solve(fn.Blocks, facts, v, obs)
	ae.Result = &Result[ir.ExpKey]{Blocks: facts, Iterations: iterations}
	logger.LogAnalysis("available expressions", fn.QualifiedName(), iterations)
	return ae
}

// Reachable returns the labels reachable from fn's entry block
func Reachable(fn *ir.Function) *set.Set[ir.Label] {
	seen := set.New[ir.Label]()
	entry := fn.Entry()
	if entry == nil {
		return seen
	}
	blocks := fn.BlockMap()
	worklist := []ir.Label{entry.Label}
	for len(worklist) > 0 {
		l := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if seen.Contains(l) {
			continue
		}
		seen.Add(l)
		b, ok := blocks[l]
		if !ok || b.Transfer == nil {
			continue
		}
		worklist = append(worklist, ir.Successors(b.Transfer)...)
	}
	return seen
}

