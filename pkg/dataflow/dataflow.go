// Package dataflow - iterative fixed-point analyses over the CFG
// Design: every analysis is a set of per-block transfer functions run by one
// solver until a full sweep changes nothing. Facts are keyed by Label, never
// by block identity, and all state lives in the Result of one call.
package dataflow

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// Facts is the in/out pair of one block
type Facts[T comparable] struct {
	In  *set.Set[T]
	Out *set.Set[T]
}

func (f *Facts[T]) clone() *Facts[T] {
	return &Facts[T]{In: f.In.Clone(), Out: f.Out.Clone()}
}

// Result holds the fixpoint of one analysis over one function
type Result[T comparable] struct {
	Blocks map[ir.Label]*Facts[T]
	// Iterations counts full sweeps, including the final one that changed nothing
	Iterations int
}

// In returns the facts holding on entry to a block
func (r *Result[T]) In(l ir.Label) *set.Set[T] {
	return r.Blocks[l].In
}

// Out returns the facts holding on exit from a block
func (r *Result[T]) Out(l ir.Label) *set.Set[T] {
	return r.Blocks[l].Out
}

// snapshot is handed to observers after every sweep
type snapshot[T comparable] map[ir.Label]*Facts[T]

type observer[T comparable] func(iteration int, facts snapshot[T])

// visit recomputes the facts of one block and reports whether they changed
type visit[T comparable] func(b *ir.Block, facts map[ir.Label]*Facts[T]) bool

// solve sweeps order until no visit reports a change.
func solve[T comparable](order []*ir.Block, facts map[ir.Label]*Facts[T], v visit[T], obs observer[T]) int {
	iterations := 0
	for {
		iterations++
		changed := false
		for _, b := range order {
			changed = v(b, facts) || changed
		}
		if obs != nil {
			snap := make(snapshot[T], len(facts))
			for l, f := range facts {
				snap[l] = f.clone()
			}
			obs(iterations, snap)
		}
		if !changed {
			return iterations
		}
	}
}

// update replaces *dst with next and reports whether the contents differ
func update[T comparable](dst **set.Set[T], next *set.Set[T]) bool {
	if (*dst).IsSame(next) {
		return false
	}
	*dst = next
	return true
}

func reversed(blocks []*ir.Block) []*ir.Block {
	out := make([]*ir.Block, len(blocks))
	for i, b := range blocks {
		out[len(blocks)-1-i] = b
	}
	return out
}
