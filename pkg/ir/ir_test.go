package ir_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir/irtest"
)

func TestBuilderShape(t *testing.T) {
	fn := irtest.Branch()

	require.Len(t, fn.Blocks, 3)
	assert.Equal(t, ir.Label("entry_0"), fn.Entry().Label)
	assert.Equal(t, []ir.Id{"this", "n"}, fn.FormalIds())
	assert.Equal(t, []ir.Label{"then_1", "else_2"}, ir.Successors(fn.Blocks[0].Transfer))

	preds := fn.Predecessors()
	assert.Equal(t, []ir.Label{"entry_0"}, preds["then_1"])
	assert.Equal(t, []ir.Label{"entry_0"}, preds["else_2"])
	assert.Empty(t, preds["entry_0"])
}

func TestBuilderDoubleTransferIsBug(t *testing.T) {
	b := ir.NewBuilder("A", "m")
	b.BeginFunction("A", "m", ir.IntType{}, irtest.This("A"))
	b.Ret("this")

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ierr, ok := r.(*ir.InternalError)
		require.True(t, ok, "panic value %T", r)
		assert.Contains(t, ierr.Error(), "already has a transfer")
	}()
	b.Ret("this")
}

func TestFinishValidates(t *testing.T) {
	b := ir.NewBuilder("A", "m")
	b.BeginFunction("A", "m", ir.IntType{}, irtest.This("A"))
	b.Assign("x", irtest.Bop("+", "this", "ghost"))
	b.Ret("x")

	prog, err := b.Finish()
	assert.Nil(t, prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost is never declared or defined")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(fn *ir.Function)
		wantErr string
	}{
		{
			name:   "well formed",
			mutate: func(fn *ir.Function) {},
		},
		{
			name:    "missing transfer",
			mutate:  func(fn *ir.Function) { fn.Blocks[1].Transfer = nil },
			wantErr: "block then_1 has no transfer",
		},
		{
			name:    "unknown target",
			mutate:  func(fn *ir.Function) { fn.Blocks[0].Transfer = ir.Jmp{Target: "nowhere"} },
			wantErr: "unknown label nowhere",
		},
		{
			name:    "duplicate label",
			mutate:  func(fn *ir.Function) { fn.Blocks[2].Label = "then_1" },
			wantErr: "duplicate label then_1",
		},
		{
			name: "array store with literal index",
			mutate: func(fn *ir.Function) {
				fn.Blocks[1].Stms = append(fn.Blocks[1].Stms,
					ir.AssignArray{X: "r", Index: ir.Int{N: 0}, Value: irtest.Eid("n")})
			},
			wantErr: "array index is ir.Int",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := irtest.Branch()
			tt.mutate(fn)
			err := ir.Validate(irtest.Program(fn))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMissingMain(t *testing.T) {
	p := irtest.Program(irtest.Branch())
	p.MainFunc = "main"
	err := ir.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main function F.main not found")
}

func TestUsesAndDefs(t *testing.T) {
	tests := []struct {
		name     string
		stm      ir.Stm
		wantUses []ir.Id
		wantDefs []ir.Id
		effect   bool
	}{
		{"bop", ir.Assign{X: "x", Exp: irtest.Bop("*", "a", "b")}, []ir.Id{"a", "b"}, []ir.Id{"x"}, false},
		{"call reads its code pointer", ir.Assign{X: "x", Exp: ir.Call{Func: "fp", Args: []ir.Id{"o", "a"}}}, []ir.Id{"fp", "o", "a"}, []ir.Id{"x"}, true},
		{"get method reads the object", ir.Assign{X: "fp", Exp: ir.GetMethod{Obj: "o", Class: "A", Method: "m"}}, []ir.Id{"o"}, []ir.Id{"fp"}, false},
		{"literal", ir.Assign{X: "x", Exp: ir.Int{N: 3}}, nil, []ir.Id{"x"}, false},
		{"print", ir.Assign{X: "x", Exp: ir.Print{X: "a"}}, []ir.Id{"a"}, []ir.Id{"x"}, true},
		{"array select", ir.Assign{X: "x", Exp: ir.ArraySelect{Array: "arr", Index: "i"}}, []ir.Id{"arr", "i"}, []ir.Id{"x"}, false},
		{"array store", ir.AssignArray{X: "arr", Index: irtest.Eid("i"), Value: irtest.Eid("v")}, []ir.Id{"arr", "i", "v"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantUses, ir.StmUses(tt.stm))
			assert.Equal(t, tt.wantDefs, ir.StmDefs(tt.stm))
			assert.Equal(t, tt.effect, ir.HasSideEffect(tt.stm))
		})
	}
}

func TestExpKey(t *testing.T) {
	a := irtest.Bop("+", "x", "y")
	b := irtest.Bop("+", "x", "y")
	c := irtest.Bop("+", "y", "x")
	not := ir.Bop{Op: "!", Operands: []ir.Id{"x"}, Type: ir.IntType{}}

	assert.Equal(t, ir.KeyOf(a), ir.KeyOf(b))
	assert.NotEqual(t, ir.KeyOf(a), ir.KeyOf(c), "keys are structural, not algebraic")
	assert.True(t, ir.KeyOf(a).Mentions("y"))
	assert.False(t, ir.KeyOf(not).Mentions(""), "unused operand slot is not a mention")
	assert.Equal(t, []ir.Id{"x"}, ir.KeyOf(not).Operands())
	assert.Equal(t, a, ir.KeyOf(a).Bop())
	assert.Equal(t, "+(x, y)", ir.KeyOf(a).String())
}

func TestCloneIsIndependent(t *testing.T) {
	fn := irtest.Branch()
	cl := fn.Clone()
	cl.Blocks[0].Stms = cl.Blocks[0].Stms[:1]
	cl.Blocks[1].Label = "renamed"

	assert.Len(t, fn.Blocks[0].Stms, 2)
	assert.Equal(t, ir.Label("then_1"), fn.Blocks[1].Label)
}

func TestFprint(t *testing.T) {
	p := irtest.Program(irtest.Branch())
	p.Vtables = []ir.Vtable{{Name: "F", Entries: []ir.VtableEntry{{RetType: ir.IntType{}, ClassId: "F", FuncId: "f", Args: []ir.Dec{{Type: ir.IntType{}, Id: "n"}}}}}}
	p.Structs = []ir.Struct{{ClassId: "F", Fields: []ir.Dec{{Type: ir.IntArrayType{}, Id: "xs"}}}}

	var buf bytes.Buffer
	ir.Fprint(&buf, p)
	out := buf.String()

	for _, want := range []string{
		"struct V_F {",
		"    int f(int n);",
		"    .f = F_f,",
		"    int[] xs;",
		"int f(F this, int n){ @classId: F",
		"    entry_0:",
		"        cond = <(n, one);",
		"        if(cond, then_1, else_2);",
		"        r = n;",
		"        ret r;",
	} {
		assert.Contains(t, out, want)
	}
}

func TestDot(t *testing.T) {
	out := ir.Dot(irtest.Loop())

	assert.True(t, strings.HasPrefix(out, `digraph "S-sum" {`))
	assert.Contains(t, out, `"head_1" -> "body_2" [label="T"];`)
	assert.Contains(t, out, `"head_1" -> "exit_3" [label="F"];`)
	assert.Contains(t, out, `"body_2" -> "head_1";`)
	assert.Contains(t, out, `c = \<(i, n);`)
}

func TestComputeSize(t *testing.T) {
	sz := ir.ComputeSize(irtest.Program(irtest.Branch(), irtest.Loop()))

	assert.Equal(t, []ir.FunctionSize{
		{Name: "F.f", Blocks: 3, Stms: 4},
		{Name: "S.sum", Blocks: 4, Stms: 7},
	}, sz.Functions)
	assert.Equal(t, 7, sz.Blocks)
	assert.Equal(t, 11, sz.Stms)

	var buf bytes.Buffer
	ir.WriteSizeTable(&buf, sz)
	assert.Contains(t, buf.String(), "S.sum")
	assert.Contains(t, buf.String(), "2 functions")
}
