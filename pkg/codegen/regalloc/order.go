package regalloc

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// Order returns the blocks of fn in reverse postorder from the entry, the
// topological order of the CFG with back edges ignored. Blocks unreachable
// from the entry follow in their original order.
func Order(fn *x64.Function) []*x64.Block {
	if len(fn.Blocks) == 0 {
		return nil
	}
	blocks := fn.BlockMap()
	perm := set.New[ir.Label]()
	temp := set.New[ir.Label]()
	var post []*x64.Block

	var visit func(l ir.Label)
	visit = func(l ir.Label) {
		if perm.Contains(l) || temp.Contains(l) {
			return
		}
		b, ok := blocks[l]
		if !ok {
			ir.Bug("regalloc", "%s jumps to unknown label %s", fn.Name, l)
		}
		temp.Add(l)
		for _, s := range x64.Successors(b.Transfer) {
			visit(s)
		}
		temp.Remove(l)
		perm.Add(l)
		post = append(post, b)
	}
	visit(fn.Blocks[0].Label)

	order := make([]*x64.Block, 0, len(fn.Blocks))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, b := range fn.Blocks {
		if !perm.Contains(b.Label) {
			order = append(order, b)
		}
	}
	return order
}
