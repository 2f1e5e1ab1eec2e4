package regalloc

import (
	"fmt"
	"slices"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

// LinearScan allocates registers block by block. Within a block a register
// is taken at an Id's first occurrence and given back after its last; when
// none is free the Id stays in its home slot. Values cross block boundaries
// through home slots, as the block's Interval says: an Id in Start is loaded
// before its first occurrence, and an Id in End is stored after its last
// write.
type LinearScan struct {
	available []x64.Reg
}

// NewLinearScan checks that the pool only holds callee-saved registers and
// leaves the scratch register alone
func NewLinearScan(cfg *Config) (*LinearScan, error) {
	for _, r := range cfg.Available {
		if r == x64.Scratch || r == x64.RBP || r == x64.RSP || !x64.IsCalleeSaved(r) {
			return nil, fmt.Errorf("register %s cannot be allocated", r)
		}
	}
	return &LinearScan{available: append([]x64.Reg(nil), cfg.Available...)}, nil
}

func (ls *LinearScan) Name() string { return StrategyLinearScan }

func (ls *LinearScan) Allocate(fn *x64.Function) *Result {
	order := Order(fn)
	intervals := Intervals(order, ComputeLiveness(fn, order))
	a := &scan{
		ls:      ls,
		frame:   NewFrame(fn),
		used:    set.New[x64.Reg](),
		spilled: set.New[ir.Id](),
	}

	blocks := make([]*x64.Block, 0, len(order))
	for _, b := range order {
		iv := intervals[b.Label]
		logger.Debug("Block intervals", "function", fn.Name, "block", b.Label,
			"start", iv.Start.Len(), "end", iv.End.Len(), "local", iv.Local.Len())
		blocks = append(blocks, a.block(b, iv))
	}

	var saved []x64.Reg
	for _, r := range ls.available {
		if a.used.Contains(r) {
			saved = append(saved, r)
		}
	}
	out := finish(fn, blocks, saved, a.frame)
	logger.Debug("Linear scan complete", "function", fn.Name, "registers", a.used.Len(), "spilled", a.spilled.Len())
	return &Result{
		Function:   out,
		Homes:      a.frame.Homes(),
		Registers:  a.used.Len(),
		Spills:     a.spilled.Len(),
		FrameBytes: out.FrameBytes,
	}
}

// scan is the state of one function's allocation
type scan struct {
	ls      *LinearScan
	frame   *Frame
	used    *set.Set[x64.Reg]
	spilled *set.Set[ir.Id]

	free []x64.Reg
	loc  map[ir.Id]x64.Operand
}

// occurrences records, per Id, its first and last instruction and its last
// write
type occurrences struct {
	first, last, lastWrite map[ir.Id]int
}

func occurrencesOf(b *x64.Block) *occurrences {
	occ := &occurrences{
		first:     make(map[ir.Id]int),
		last:      make(map[ir.Id]int),
		lastWrite: make(map[ir.Id]int),
	}
	for i, in := range b.Instrs {
		for _, v := range in.UseVids() {
			if _, seen := occ.first[v]; !seen {
				occ.first[v] = i
			}
			occ.last[v] = i
		}
		for _, v := range in.DefVids() {
			if _, seen := occ.first[v]; !seen {
				occ.first[v] = i
			}
			occ.last[v] = i
			occ.lastWrite[v] = i
		}
	}
	return occ
}

func (a *scan) block(b *x64.Block, iv Interval) *x64.Block {
	a.free = a.free[:0]
	for i := len(a.ls.available) - 1; i >= 0; i-- {
		a.free = append(a.free, a.ls.available[i])
	}
	a.loc = make(map[ir.Id]x64.Operand)
	occ := occurrencesOf(b)

	out := make([]x64.Instr, 0, len(b.Instrs))
	for i, in := range b.Instrs {
		ids := unique(append(in.UseVids(), in.DefVids()...))
		for _, v := range ids {
			if occ.first[v] != i {
				continue
			}
			a.loc[v] = a.alloc(v)
			if iv.Start.Contains(v) && a.loc[v] != a.frame.Home(v) {
				out = append(out, move(a.frame.Home(v), a.loc[v])...)
			}
		}

		out = append(out, in.Map(func(op x64.Operand) x64.Operand {
			if vid, ok := op.(x64.Vid); ok {
				return a.loc[vid.Id]
			}
			return op
		}))

		for _, v := range ids {
			if w, ok := occ.lastWrite[v]; ok && w == i && iv.End.Contains(v) && a.loc[v] != a.frame.Home(v) {
				out = append(out, move(a.loc[v], a.frame.Home(v))...)
			}
			if occ.last[v] == i {
				a.release(v)
			}
		}
	}
	return &x64.Block{Label: b.Label, Instrs: out, Transfer: b.Transfer}
}

// alloc pops a free register, or falls back to the Id's home slot
func (a *scan) alloc(v ir.Id) x64.Operand {
	if n := len(a.free); n > 0 {
		r := a.free[n-1]
		a.free = a.free[:n-1]
		a.used.Add(r)
		return r
	}
	slot := a.frame.Home(v)
	a.spilled.Add(v)
	logger.Debug("Spilled", "id", v, "slot", slot.String())
	return slot
}

// release returns v's register to the pool
func (a *scan) release(v ir.Id) {
	if r, ok := a.loc[v].(x64.Reg); ok {
		a.free = append(a.free, r)
	}
	delete(a.loc, v)
}

func unique(ids []ir.Id) []ir.Id {
	out := ids[:0:0]
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
