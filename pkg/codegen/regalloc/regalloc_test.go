package regalloc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir/irtest"
	"github.com/GriffinCanCode/tiger-backend/pkg/set"
)

func selectFn(fn *ir.Function) *x64.Function {
	return x64.SelectFunction(fn, x64.NewLayout(irtest.Program()))
}

func labels(blocks []*x64.Block) []ir.Label {
	var out []ir.Label
	for _, b := range blocks {
		out = append(out, b.Label)
	}
	return out
}

// pressure defines n constants and then sums them, so all n are live at once
func pressure(n int) *ir.Function {
	var locals []ir.Id
	var stms []ir.Stm
	for i := 1; i <= n; i++ {
		x := ir.Id(fmt.Sprintf("x%d", i))
		locals = append(locals, x)
		stms = append(stms, ir.Assign{X: x, Exp: ir.Int{N: i}})
	}
	locals = append(locals, "s")
	stms = append(stms, ir.Assign{X: "s", Exp: irtest.Eid("x1")})
	for i := 2; i <= n; i++ {
		stms = append(stms, ir.Assign{X: "s", Exp: irtest.Bop("+", "s", ir.Id(fmt.Sprintf("x%d", i)))})
	}
	return irtest.Straight(nil, locals, "s", stms...)
}

func allocated(t *testing.T, r *Result) {
	t.Helper()
	prog := &x64.Program{Functions: []*x64.Function{r.Function}}
	require.NoError(t, x64.ValidateProgram(prog))
	assert.Zero(t, (x64.WordSize*len(r.Function.Saved)+r.FrameBytes)%16, "frame keeps %%rsp aligned")
}

func TestOrder(t *testing.T) {
	fn := selectFn(irtest.Loop())
	assert.Equal(t, []ir.Label{"entry_0", "head_1", "exit_3", "body_2"}, labels(Order(fn)))

	fn.Blocks = append(fn.Blocks, &x64.Block{Label: "dead", Transfer: x64.Ret{}})
	order := Order(fn)
	assert.Equal(t, ir.Label("dead"), order[len(order)-1].Label)
}

func TestComputeLiveness(t *testing.T) {
	fn := selectFn(irtest.Loop())
	live := ComputeLiveness(fn, Order(fn))

	ids := func(s *set.Set[ir.Id]) []ir.Id { return set.Sorted(s) }
	assert.Empty(t, ids(live.In["entry_0"]))
	assert.Equal(t, []ir.Id{"i", "n", "one", "s"}, ids(live.Out["entry_0"]))
	assert.Equal(t, []ir.Id{"i", "n", "one", "s"}, ids(live.In["head_1"]))
	assert.Equal(t, []ir.Id{"i", "n", "one", "s"}, ids(live.In["body_2"]))
	assert.Equal(t, []ir.Id{"s"}, ids(live.In["exit_3"]))
	assert.Empty(t, ids(live.Out["exit_3"]))
	assert.Greater(t, live.Iterations, 1)
}

func TestIntervals(t *testing.T) {
	tests := []struct {
		fn                *ir.Function
		block             ir.Label
		start, end, local []ir.Id
	}{
		{irtest.Branch(), "entry_0", nil, []ir.Id{"n"}, []ir.Id{"cond", "one", "this"}},
		{irtest.Branch(), "else_2", []ir.Id{"n"}, nil, []ir.Id{"r"}},
		{irtest.Loop(), "entry_0", nil, []ir.Id{"i", "n", "one", "s"}, []ir.Id{"this"}},
		{irtest.Loop(), "head_1", []ir.Id{"i", "n"}, nil, []ir.Id{"c"}},
		{irtest.Loop(), "body_2", []ir.Id{"i", "one", "s"}, []ir.Id{"i", "s"}, nil},
		{irtest.Loop(), "exit_3", []ir.Id{"s"}, nil, []ir.Id{"p"}},
	}
	for _, tt := range tests {
		t.Run(tt.fn.QualifiedName()+"/"+string(tt.block), func(t *testing.T) {
			fn := selectFn(tt.fn)
			order := Order(fn)
			iv := Intervals(order, ComputeLiveness(fn, order))[tt.block]
			assert.ElementsMatch(t, tt.start, iv.Start.Slice(), "start")
			assert.ElementsMatch(t, tt.end, iv.End.Slice(), "end")
			assert.ElementsMatch(t, tt.local, iv.Local.Slice(), "local")
		})
	}
}

func TestLinearScanPressure(t *testing.T) {
	tests := []struct {
		name      string
		available []x64.Reg
		n         int
		spills    int
	}{
		{"fits in five registers", nil, 5, 0},
		{"sixth value spills", nil, 6, 1},
		{"one register", []x64.Reg{x64.RBX}, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.available != nil {
				cfg.Available = tt.available
			}
			ls, err := NewLinearScan(cfg)
			require.NoError(t, err)

			r := ls.Allocate(selectFn(pressure(tt.n)))
			assert.Equal(t, tt.spills, r.Spills)
			allocated(t, r)
		})
	}
}

func TestLinearScanBoundaryMoves(t *testing.T) {
	ls, err := NewLinearScan(DefaultConfig())
	require.NoError(t, err)
	r := ls.Allocate(selectFn(irtest.Loop()))
	allocated(t, r)

	blocks := r.Function.BlockMap()
	// i is live into the loop head, so it is reloaded from its home slot
	home := r.Homes["i"]
	head := blocks["head_1"].Instrs
	assert.Equal(t, fmt.Sprintf("movq %s, %%rbx", home), head[0].String())
	assert.Equal(t, "movq %rbx, %rax", head[1].String())

	// n is stored after the argument move in the entry block
	entry := blocks["entry_0"].Instrs
	var stored bool
	for _, in := range entry {
		if in.String() == fmt.Sprintf("movq %%rbx, %s", r.Homes["n"]) {
			stored = true
		}
	}
	assert.True(t, stored, "n stored to its home slot")

	assert.Equal(t, "pushq %rbp", entry[0].String())
	last := blocks["exit_3"].Instrs
	assert.Equal(t, "popq %rbp", last[len(last)-1].String())
}

func TestLinearScanRejectsRegisters(t *testing.T) {
	for _, r := range []x64.Reg{x64.RAX, x64.R11, x64.RBP} {
		_, err := NewLinearScan(&Config{Available: []x64.Reg{r}})
		assert.Error(t, err, r)
	}
}

func TestStackAllocator(t *testing.T) {
	r := StackAllocator{}.Allocate(selectFn(irtest.Branch()))
	allocated(t, r)

	assert.Zero(t, r.Registers)
	assert.Empty(t, r.Function.Saved)
	assert.Equal(t, 48, r.FrameBytes)
	assert.Equal(t, x64.Mem{Base: x64.RBP, Offset: -8}, r.Homes["this"])
	assert.Equal(t, x64.Mem{Base: x64.RBP, Offset: -16}, r.Homes["n"])

	entry := r.Function.Blocks[0].Instrs
	assert.Equal(t, []string{"pushq %rbp", "movq %rsp, %rbp", "subq $48, %rsp", "movq %rdi, -8(%rbp)"},
		[]string{entry[0].String(), entry[1].String(), entry[2].String(), entry[3].String()})
}

func TestIncomingArguments(t *testing.T) {
	var formals []ir.Dec
	for i := 1; i <= 7; i++ {
		formals = append(formals, ir.Dec{Type: irtest.Int, Id: ir.Id(fmt.Sprintf("a%d", i))})
	}
	fn := selectFn(irtest.Straight(formals, nil, "a7"))

	r := StackAllocator{}.Allocate(fn)
	allocated(t, r)
	var text []string
	for _, in := range r.Function.Blocks[0].Instrs {
		text = append(text, in.String())
	}
	assert.Contains(t, text, "movq 16(%rbp), %rax")
	assert.Contains(t, text, "movq 24(%rbp), %rax")
}

func TestPrologueBlockForLoopingEntry(t *testing.T) {
	spin := func(extra ...*x64.Block) *x64.Function {
		return &x64.Function{
			Name:   "L_spin",
			Locals: []ir.Dec{{Type: irtest.Int, Id: "c"}},
			Blocks: append([]*x64.Block{{
				Label:    "top",
				Instrs:   []x64.Instr{{Format: "movq $0, {d0}", Defs: []x64.Operand{x64.Vid{Id: "c"}}}},
				Transfer: x64.If{Jcc: "jne", Then: "top", Else: "prologue"},
			}}, extra...),
		}
	}
	exit := &x64.Block{
		Label:    "prologue",
		Instrs:   []x64.Instr{{Format: "movq {u0}, %rax", Uses: []x64.Operand{x64.Vid{Id: "c"}}}},
		Transfer: x64.Ret{},
	}

	ls, err := NewLinearScan(DefaultConfig())
	require.NoError(t, err)
	out := ls.Allocate(spin(exit)).Function

	require.Len(t, out.Blocks, 3)
	assert.Equal(t, ir.Label("prologue_1"), out.Blocks[0].Label)
	assert.Equal(t, x64.Jmp{Target: "top"}, out.Blocks[0].Transfer)
	assert.Equal(t, "pushq %rbp", out.Blocks[0].Instrs[0].String())
	assert.Equal(t, "movq $0, %rbx", out.Blocks[1].Instrs[0].String())
	assert.Len(t, out.BlockMap(), 3, "labels stay unique")
}

func TestProgram(t *testing.T) {
	prog := x64.Select(irtest.Program(irtest.Branch(), irtest.Loop()), x64.NewLayout(irtest.Program()))
	for _, strategy := range []string{StrategyLinearScan, StrategyStack} {
		t.Run(strategy, func(t *testing.T) {
			a, err := New(strategy)
			require.NoError(t, err)
			assert.Equal(t, strategy, a.Name())

			out, results := Program(prog, a)
			require.Len(t, results, 2)
			assert.Equal(t, prog.Entry, out.Entry)
			require.NoError(t, x64.ValidateProgram(out))
		})
	}

	_, err := New("coloring")
	assert.EqualError(t, err, `unknown allocation strategy "coloring" (want linearscan or stack)`)
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		slots, pushed, want int
	}{
		{0, 0, 0},
		{1, 0, 16},
		{2, 0, 16},
		{1, 1, 8},
		{2, 1, 24},
		{0, 1, 8},
	}
	for _, tt := range tests {
		f := &Frame{homes: make(TempMap)}
		for i := 0; i < tt.slots; i++ {
			f.Slot()
		}
		assert.Equal(t, tt.want, f.Size(tt.pushed), "slots=%d pushed=%d", tt.slots, tt.pushed)
	}
}

func TestWriteReport(t *testing.T) {
	prog := x64.Select(irtest.Program(irtest.Branch()), x64.NewLayout(irtest.Program()))
	a, err := New(StrategyLinearScan)
	require.NoError(t, err)
	_, results := Program(prog, a)

	var buf strings.Builder
	WriteReport(&buf, results)
	assert.Contains(t, buf.String(), "F_f")
	assert.Contains(t, buf.String(), "%rbx")
	assert.Contains(t, buf.String(), "1 functions")
}
