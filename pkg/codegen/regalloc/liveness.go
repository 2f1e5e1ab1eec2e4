package regalloc

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// Liveness holds the virtual registers live on entry to and exit from each
// block
type Liveness struct {
	In         map[ir.Label]*set.Set[ir.Id]
	Out        map[ir.Label]*set.Set[ir.Id]
	Iterations int
}

// ComputeLiveness solves backward liveness over virtual registers, visiting
// blocks in reverse of order.
func ComputeLiveness(fn *x64.Function, order []*x64.Block) *Liveness {
	live := &Liveness{
		In:  make(map[ir.Label]*set.Set[ir.Id], len(order)),
		Out: make(map[ir.Label]*set.Set[ir.Id], len(order)),
	}
	use := make(map[ir.Label]*set.Set[ir.Id], len(order))
	def := make(map[ir.Label]*set.Set[ir.Id], len(order))
	for _, b := range order {
		use[b.Label], def[b.Label] = useDef(b)
		live.In[b.Label] = set.New[ir.Id]()
		live.Out[b.Label] = set.New[ir.Id]()
	}

	for changed := true; changed; {
		changed = false
		live.Iterations++
		for i := len(order) - 1; i >= 0; i-- {
			b := order[i]
			out := set.New[ir.Id]()
			for _, s := range x64.Successors(b.Transfer) {
				out.Union(live.In[s])
			}
			in := out.Clone().Sub(def[b.Label]).Union(use[b.Label])
			if !out.IsSame(live.Out[b.Label]) || !in.IsSame(live.In[b.Label]) {
				changed = true
			}
			live.Out[b.Label] = out
			live.In[b.Label] = in
		}
	}
	logger.LogAnalysis("machine-liveness", fn.Name, live.Iterations)
	return live
}

// useDef returns the registers read before any write in b and the registers
// b writes
func useDef(b *x64.Block) (*set.Set[ir.Id], *set.Set[ir.Id]) {
	use := set.New[ir.Id]()
	def := set.New[ir.Id]()
	for _, in := range b.Instrs {
		for _, v := range in.UseVids() {
			if !def.Contains(v) {
				use.Add(v)
			}
		}
		for _, v := range in.DefVids() {
			def.Add(v)
		}
	}
	return use, def
}

// Interval is where a block's values cross its boundaries. Start holds the
// values whose range in the block starts by coming in from a predecessor:
// live on entry and read before any write. End holds the values whose range
// leaves the block: written there and live on exit. Local holds the values
// that live only inside the block.
type Interval struct {
	Start *set.Set[ir.Id]
	End   *set.Set[ir.Id]
	Local *set.Set[ir.Id]
}

// Intervals derives per-block interval boundaries from liveness
func Intervals(order []*x64.Block, live *Liveness) map[ir.Label]Interval {
	out := make(map[ir.Label]Interval, len(order))
	for _, b := range order {
		in, lo := live.In[b.Label], live.Out[b.Label]
		use, def := useDef(b)
		local := use.Clone().Union(def).Sub(in).Sub(lo)
		out[b.Label] = Interval{
			Start: use.Intersection(in),
			End:   def.Intersection(lo),
			Local: local,
		}
	}
	return out
}
