package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir/irtest"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

func ids(s *set.Set[ir.Id]) []ir.Id {
	return set.Sorted(s)
}

func TestLivenessBranch(t *testing.T) {
	fn := irtest.Branch()
	live := Liveness(fn)

	assert.Equal(t, []ir.Id{"n"}, ids(live.Out("entry_0")))
	assert.Empty(t, ids(live.In("entry_0")), "formals are defined on entry")
	assert.Empty(t, ids(live.In("then_1")))
	assert.Equal(t, []ir.Id{"n"}, ids(live.In("else_2")))
	assert.Empty(t, ids(live.Out("then_1")))
	assert.GreaterOrEqual(t, live.Iterations, 2)
}

func TestLivenessLoop(t *testing.T) {
	fn := irtest.Loop()
	live := Liveness(fn)

	tests := []struct {
		label   ir.Label
		wantIn  []ir.Id
		wantOut []ir.Id
	}{
		{"entry_0", nil, []ir.Id{"i", "n", "one", "s"}},
		{"head_1", []ir.Id{"i", "n", "one", "s"}, []ir.Id{"i", "n", "one", "s"}},
		{"body_2", []ir.Id{"i", "n", "one", "s"}, []ir.Id{"i", "n", "one", "s"}},
		{"exit_3", []ir.Id{"s"}, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			assert.ElementsMatch(t, tt.wantIn, ids(live.In(tt.label)))
			assert.ElementsMatch(t, tt.wantOut, ids(live.Out(tt.label)))
		})
	}
}

func TestLivenessBackEdgeIntoEntry(t *testing.T) {
	b := ir.NewBuilder("A", "m")
	fn := b.BeginFunction("A", "m", irtest.Int, irtest.This("A"), ir.Dec{Type: irtest.Int, Id: "n"})
	b.Local("c", irtest.Int)
	entry := b.Current()
	again := b.NewBlock("again")
	done := b.NewBlock("done")
	b.Assign("c", irtest.Bop("<", "n", "n"))
	b.If("c", again, done)
	b.SetBlock(again)
	b.Assign("n", ir.Int{N: 0})
	b.Jmp(entry)
	b.SetBlock(done)
	b.Ret("c")

	live := Liveness(fn)
	assert.Empty(t, ids(live.In("entry_0")))
	assert.Equal(t, []ir.Id{"n"}, ids(live.Out("again_1")), "the loop still reads n after redefining it")
}

func TestWalkLive(t *testing.T) {
	fn := irtest.Straight(
		[]ir.Dec{{Type: irtest.Int, Id: "a"}},
		[]ir.Id{"x", "y", "z"},
		"y",
		ir.Assign{X: "x", Exp: irtest.Bop("+", "a", "a")},
		ir.Assign{X: "z", Exp: irtest.Bop("*", "x", "a")},
		ir.Assign{X: "y", Exp: irtest.Eid("x")},
	)
	var seen [][]ir.Id
	WalkLive(fn.Blocks[0], set.New[ir.Id](), func(i int, s ir.Stm, live *set.Set[ir.Id]) bool {
		seen = append(seen, ids(live))
		return s.Dest() != "z"
	})
	assert.Equal(t, [][]ir.Id{{"y"}, {"x"}, {"x"}}, seen, "a dropped statement adds no uses")
}

func TestReachingDefinitionsLoop(t *testing.T) {
	fn := irtest.Loop()
	rd := ReachingDefinitions(fn)

	ref := func(l ir.Label, i int) StmRef { return StmRef{Label: l, Index: i} }
	assert.ElementsMatch(t,
		[]StmRef{ref("entry_0", 0), ref("entry_0", 1), ref("entry_0", 2), ref("head_1", 0), ref("body_2", 0), ref("body_2", 1)},
		rd.In("head_1").Slice())
	assert.Equal(t, []StmRef{ref("entry_0", 0), ref("body_2", 1)}, rd.DefsOf["i"])
	assert.Equal(t, ir.Id("s"), rd.Def(ref("body_2", 0)))

	var reachI []StmRef
	body := fn.BlockMap()["body_2"]
	rd.Replay(body, func(i int, s ir.Stm, reach *set.Set[StmRef]) {
		if i == 1 {
			reachI = rd.Reaching(reach, "i")
		}
	})
	assert.Equal(t, []StmRef{ref("entry_0", 0), ref("body_2", 1)}, reachI)

	exitIn := rd.In("exit_3")
	assert.False(t, exitIn.Contains(ref("exit_3", 0)))
	assert.Equal(t, []StmRef{ref("entry_0", 1), ref("body_2", 0)}, rd.Reaching(exitIn, "s"))
}

func TestReachingDefinitionsKillWithinBlock(t *testing.T) {
	fn := irtest.Straight(nil, []ir.Id{"x"}, "x",
		ir.Assign{X: "x", Exp: ir.Int{N: 1}},
		ir.Assign{X: "x", Exp: ir.Int{N: 2}},
	)
	rd := ReachingDefinitions(fn)
	assert.Equal(t, []StmRef{{Label: "entry_0", Index: 1}}, rd.Out("entry_0").Slice())
}

// diamond computes a+b, kills it on one arm only, and recomputes it at the join
func diamond() *ir.Function {
	b := ir.NewBuilder("D", "m")
	fn := b.BeginFunction("D", "m", irtest.Int, irtest.This("D"),
		ir.Dec{Type: irtest.Int, Id: "a"}, ir.Dec{Type: irtest.Int, Id: "b"}, ir.Dec{Type: irtest.Int, Id: "c"})
	for _, id := range []ir.Id{"t", "u", "w"} {
		b.Local(id, irtest.Int)
	}
	left := b.NewBlock("left")
	right := b.NewBlock("right")
	join := b.NewBlock("join")
	b.Assign("t", irtest.Bop("+", "a", "b"))
	b.If("c", left, right)
	b.SetBlock(left)
	b.Assign("u", irtest.Bop("+", "a", "b"))
	b.Jmp(join)
	b.SetBlock(right)
	b.Assign("a", ir.Int{N: 1})
	b.Jmp(join)
	b.SetBlock(join)
	b.Assign("w", irtest.Bop("+", "a", "b"))
	b.Ret("w")
	return fn
}

func TestAvailableExpressionsDiamond(t *testing.T) {
	fn := diamond()
	ae := AvailableExpressions(fn)
	ab := ir.KeyOf(irtest.Bop("+", "a", "b"))

	assert.True(t, ae.Universe.Contains(ab))
	assert.True(t, ae.In("entry_0").IsEmpty())
	assert.True(t, ae.Out("entry_0").Contains(ab))
	assert.True(t, ae.In("left_1").Contains(ab))
	assert.False(t, ae.Out("right_2").Contains(ab), "redefining a kills a+b")
	assert.False(t, ae.In("join_3").Contains(ab), "must hold on every path")
	assert.True(t, ae.Out("join_3").Contains(ab))
}

func TestAvailableExpressionsLoop(t *testing.T) {
	b := ir.NewBuilder("L", "m")
	fn := b.BeginFunction("L", "m", irtest.Int, irtest.This("L"),
		ir.Dec{Type: irtest.Int, Id: "x"}, ir.Dec{Type: irtest.Int, Id: "y"}, ir.Dec{Type: irtest.Int, Id: "c"})
	b.Local("k", irtest.Int)
	b.Local("z", irtest.Int)
	head := b.NewBlock("head")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")
	dead := b.NewBlock("dead")
	b.Assign("k", irtest.Bop("*", "x", "y"))
	b.Jmp(head)
	b.SetBlock(head)
	b.If("c", body, exit)
	b.SetBlock(body)
	b.Assign("z", irtest.Bop("*", "x", "y"))
	b.Jmp(head)
	b.SetBlock(exit)
	b.Ret("k")
	b.SetBlock(dead)
	b.Assign("c", ir.Int{N: 0})
	b.Jmp(head)

	ae := AvailableExpressions(fn)
	xy := ir.KeyOf(irtest.Bop("*", "x", "y"))

	assert.True(t, ae.In("head_1").Contains(xy), "the back edge preserves x*y")
	assert.True(t, ae.In("exit_3").Contains(xy))
	assert.False(t, ae.Reachable.Contains("dead_4"))
	assert.True(t, ae.In("dead_4").IsEmpty())
}

func TestAvailTransferSelfReference(t *testing.T) {
	avail := set.New[ir.ExpKey]()
	AvailTransfer(avail, ir.Assign{X: "i", Exp: irtest.Bop("+", "i", "one")})
	assert.True(t, avail.IsEmpty(), "i = i + one does not make i+one available")

	AvailTransfer(avail, ir.Assign{X: "j", Exp: irtest.Bop("+", "i", "one")})
	AvailTransfer(avail, ir.AssignArray{X: "arr", Index: irtest.Eid("i"), Value: irtest.Eid("j")})
	assert.Equal(t, 1, avail.Len(), "an array store defines no Id")

	AvailTransfer(avail, ir.Assign{X: "one", Exp: ir.Int{N: 1}})
	assert.True(t, avail.IsEmpty())
}

func TestMonotonicConvergence(t *testing.T) {
	fns := []*ir.Function{irtest.Branch(), irtest.Loop(), diamond()}

	for _, fn := range fns {
		t.Run(fn.QualifiedName(), func(t *testing.T) {
			var liveSnaps []snapshot[ir.Id]
			live := liveness(fn, func(_ int, s snapshot[ir.Id]) { liveSnaps = append(liveSnaps, s) })
			require.Len(t, liveSnaps, live.Iterations)
			assertGrows(t, liveSnaps)

			var rdSnaps []snapshot[StmRef]
			rd := reachingDefinitions(fn, func(_ int, s snapshot[StmRef]) { rdSnaps = append(rdSnaps, s) })
			require.Len(t, rdSnaps, rd.Iterations)
			assertGrows(t, rdSnaps)

			// must-analysis: facts start at the universe and shrink
			var aeSnaps []snapshot[ir.ExpKey]
			ae := availableExpressions(fn, func(_ int, s snapshot[ir.ExpKey]) { aeSnaps = append(aeSnaps, s) })
			require.Len(t, aeSnaps, ae.Iterations)
			for i := 1; i < len(aeSnaps); i++ {
				for l, f := range aeSnaps[i] {
					assert.True(t, f.Out.IsSubset(aeSnaps[i-1][l].Out), "iteration %d block %s", i, l)
				}
			}

			bound := 0
			for _, b := range fn.Blocks {
				bound += len(b.Stms) + 1
			}
			assert.LessOrEqual(t, live.Iterations, bound+1)
			assert.LessOrEqual(t, rd.Iterations, bound+1)
		})
	}
}

func assertGrows[T comparable](t *testing.T, snaps []snapshot[T]) {
	t.Helper()
	for i := 1; i < len(snaps); i++ {
		for l, f := range snaps[i] {
			prev := snaps[i-1][l]
			assert.True(t, prev.In.IsSubset(f.In), "iteration %d block %s in shrank", i, l)
			assert.True(t, prev.Out.IsSubset(f.Out), "iteration %d block %s out shrank", i, l)
		}
	}
}
