package dataflow

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// Liveness computes, per block, the Ids that may be read before being
// written on some path from that point. Formals are never live into the
// entry block: they are defined by the call.
func Liveness(fn *ir.Function) *Result[ir.Id] {
	return liveness(fn, nil)
}

type useDef struct {
	use *set.Set[ir.Id]
	def *set.Set[ir.Id]
}

// blockUseDef collects the upward-exposed uses and the definitions of b
func blockUseDef(b *ir.Block) useDef {
	ud := useDef{use: set.New[ir.Id](), def: set.New[ir.Id]()}
	for _, s := range b.Stms {
		for _, u := range ir.StmUses(s) {
			if !ud.def.Contains(u) {
				ud.use.Add(u)
			}
		}
		for _, d := range ir.StmDefs(s) {
			ud.def.Add(d)
		}
	}
	for _, u := range ir.TransferUses(b.Transfer) {
		if !ud.def.Contains(u) {
			ud.use.Add(u)
		}
	}
	return ud
}

func liveness(fn *ir.Function, obs observer[ir.Id]) *Result[ir.Id] {
	facts := make(map[ir.Label]*Facts[ir.Id], len(fn.Blocks))
	uds := make(map[ir.Label]useDef, len(fn.Blocks))
	for _, b := range fn.Blocks {
		facts[b.Label] = &Facts[ir.Id]{In: set.New[ir.Id](), Out: set.New[ir.Id]()}
		uds[b.Label] = blockUseDef(b)
	}

	var entry ir.Label
	if e := fn.Entry(); e != nil {
		entry = e.Label
	}
	formals := set.New(fn.FormalIds()...)
	// a back edge into the entry block still sees the formals it reads
	entryIn := set.New[ir.Id]()

	v := func(b *ir.Block, facts map[ir.Label]*Facts[ir.Id]) bool {
		f := facts[b.Label]
		out := set.New[ir.Id]()
		for _, s := range ir.Successors(b.Transfer) {
			if s == entry {
				out.Union(entryIn)
				continue
			}
			out.Union(facts[s].In)
		}
		ud := uds[b.Label]
		in := out.Clone().Sub(ud.def).Union(ud.use)
		changedFull := false
		if b.Label == entry {
			changedFull = update(&entryIn, in.Clone())
			in.Sub(formals)
		}
		changedOut := update(&f.Out, out)
		changedIn := update(&f.In, in)
		return changedOut || changedIn || changedFull
	}

	iterations := solve(reversed(fn.Blocks), facts, v, obs)
	logger.LogAnalysis("liveness", fn.QualifiedName(), iterations)
	return &Result[ir.Id]{Blocks: facts, Iterations: iterations}
}

// WalkLive walks b backward from live-out and calls keep with the set live
// immediately after each statement, last statement first. Only statements
// kept contribute their defs and uses to the sets seen by earlier statements.
func WalkLive(b *ir.Block, liveOut *set.Set[ir.Id], keep func(i int, s ir.Stm, live *set.Set[ir.Id]) bool) {
	live := liveOut.Clone()
	for _, u := range ir.TransferUses(b.Transfer) {
		live.Add(u)
	}
	for i := len(b.Stms) - 1; i >= 0; i-- {
		s := b.Stms[i]
		if !keep(i, s, live) {
			continue
		}
		for _, d := range ir.StmDefs(s) {
			live.Remove(d)
		}
		for _, u := range ir.StmUses(s) {
			live.Add(u)
		}
	}
}
