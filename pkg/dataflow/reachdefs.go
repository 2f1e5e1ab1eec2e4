package dataflow

import (
	"cmp"
	"fmt"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// StmRef names a statement by position; it stays valid only for the function
// value the analysis ran on.
type StmRef struct {
	Label ir.Label
	Index int
}

func (r StmRef) String() string {
	return fmt.Sprintf("%s#%d", r.Label, r.Index)
}

// CompareRefs orders refs by label, then index
func CompareRefs(a, b StmRef) int {
	if c := cmp.Compare(a.Label, b.Label); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// ReachDefs is the Reaching Definitions fixpoint plus the definition table
// it was computed over.
type ReachDefs struct {
	*Result[StmRef]
	// Stms maps every defining statement to its position
	Stms map[StmRef]ir.Stm
	// DefsOf lists every definition of an Id
	DefsOf map[ir.Id][]StmRef
}

// Def returns the Id defined at ref
func (r *ReachDefs) Def(ref StmRef) ir.Id {
	return r.Stms[ref].Dest()
}

// ReachingDefinitions computes, per block, the assignments that may reach
// its entry and exit without an intervening redefinition of the same Id.
func ReachingDefinitions(fn *ir.Function) *ReachDefs {
	return reachingDefinitions(fn, nil)
}

type genKill struct {
	gen  *set.Set[StmRef]
	kill *set.Set[StmRef]
}

func reachingDefinitions(fn *ir.Function, obs observer[StmRef]) *ReachDefs {
	rd := &ReachDefs{
		Stms:   make(map[StmRef]ir.Stm),
		DefsOf: make(map[ir.Id][]StmRef),
	}
	for _, b := range fn.Blocks {
		for i, s := range b.Stms {
			ref := StmRef{Label: b.Label, Index: i}
			for _, d := range ir.StmDefs(s) {
				rd.Stms[ref] = s
				rd.DefsOf[d] = append(rd.DefsOf[d], ref)
			}
		}
	}

	facts := make(map[ir.Label]*Facts[StmRef], len(fn.Blocks))
	gks := make(map[ir.Label]genKill, len(fn.Blocks))
	for _, b := range fn.Blocks {
		facts[b.Label] = &Facts[StmRef]{In: set.New[StmRef](), Out: set.New[StmRef]()}
		gk := genKill{gen: set.New[StmRef](), kill: set.New[StmRef]()}
		for i, s := range b.Stms {
			ref := StmRef{Label: b.Label, Index: i}
			rd.transfer(gk.gen, ref, s)
			for _, d := range ir.StmDefs(s) {
				for _, other := range rd.DefsOf[d] {
					if other != ref {
						gk.kill.Add(other)
					}
				}
			}
		}
		// a definition generated later in the block survives its own kill set
		gk.kill.Sub(gk.gen)
		gks[b.Label] = gk
	}

	preds := fn.Predecessors()
	v := func(b *ir.Block, facts map[ir.Label]*Facts[StmRef]) bool {
		f := facts[b.Label]
		in := set.New[StmRef]()
		for _, p := range preds[b.Label] {
			in.Union(facts[p].Out)
		}
		gk := gks[b.Label]
		out := in.Clone().Sub(gk.kill).Union(gk.gen)
		changedIn := update(&f.In, in)
		changedOut := update(&f.Out, out)
		return changedIn || changedOut
	}

	iterations := solve(fn.Blocks, facts, v, obs)
	rd.Result = &Result[StmRef]{Blocks: facts, Iterations: iterations}
	logger.LogAnalysis("reaching definitions", fn.QualifiedName(), iterations)
	return rd
}

// transfer applies one statement to the reaching set in place
func (r *ReachDefs) transfer(reach *set.Set[StmRef], ref StmRef, s ir.Stm) {
	for _, d := range ir.StmDefs(s) {
		for _, other := range r.DefsOf[d] {
			reach.Remove(other)
		}
		reach.Add(ref)
	}
}

// Replay walks b forward from its reaching-in set and calls fn with the
// definitions reaching each statement before it executes. A final call with
// i == len(b.Stms) and s == nil covers the transfer.
func (r *ReachDefs) Replay(b *ir.Block, fn func(i int, s ir.Stm, reach *set.Set[StmRef])) {
	reach := r.In(b.Label).Clone()
	for i, s := range b.Stms {
		fn(i, s, reach)
		r.transfer(reach, StmRef{Label: b.Label, Index: i}, s)
	}
	fn(len(b.Stms), nil, reach)
}

// Reaching returns the definitions of id within reach
func (r *ReachDefs) Reaching(reach *set.Set[StmRef], id ir.Id) []StmRef {
	var out []StmRef
	for _, ref := range r.DefsOf[id] {
		if reach.Contains(ref) {
			out = append(out, ref)
		}
	}
	return out
}
