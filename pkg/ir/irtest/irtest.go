// Package irtest builds small CFG programs shared by the analysis, optimizer
// and allocator tests.
package irtest

import (
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
)

var (
	Int   = ir.IntType{}
	Array = ir.IntArrayType{}
)

// This is the receiver declaration of class c
func This(c ir.Id) ir.Dec {
	return ir.Dec{Type: ir.ClassType{Id: c}, Id: "this"}
}

// Bop is a binary operator on two Ids with int result
func Bop(op string, x, y ir.Id) ir.Bop {
	return ir.Bop{Op: op, Operands: []ir.Id{x, y}, Type: Int}
}

// Eid references x as an int
func Eid(x ir.Id) ir.Eid {
	return ir.Eid{Id: x, Type: Int}
}

// Program wraps functions into a program whose main is the first function
func Program(fns ...*ir.Function) *ir.Program {
	p := &ir.Program{Functions: fns}
	if len(fns) > 0 {
		p.MainClass = fns[0].ClassId
		p.MainFunc = fns[0].Name
	}
	return p
}

// Branch is
//
//	int f(n) { if (n < 1) r = 1; else r = n; return r; }
//
// lowered to entry, then and else blocks, each branch returning r.
func Branch() *ir.Function {
	b := ir.NewBuilder("F", "f")
	fn := b.BeginFunction("F", "f", Int, This("F"), ir.Dec{Type: Int, Id: "n"})
	b.Local("one", Int)
	b.Local("cond", Int)
	b.Local("r", Int)
	then := b.NewBlock("then")
	els := b.NewBlock("else")

	b.Assign("one", ir.Int{N: 1})
	b.Assign("cond", Bop("<", "n", "one"))
	b.If("cond", then, els)

	b.SetBlock(then)
	b.Assign("r", ir.Int{N: 1})
	b.Ret("r")

	b.SetBlock(els)
	b.Assign("r", Eid("n"))
	b.Ret("r")

	return fn
}

// Loop is
//
//	int sum(n) { i = 0; s = 0; while (i < n) { s = s + i; i = i + 1; } print(s); return s; }
func Loop() *ir.Function {
	b := ir.NewBuilder("S", "sum")
	fn := b.BeginFunction("S", "sum", Int, This("S"), ir.Dec{Type: Int, Id: "n"})
	for _, id := range []ir.Id{"i", "s", "one", "c", "p"} {
		b.Local(id, Int)
	}
	head := b.NewBlock("head")
	body := b.NewBlock("body")
	exit := b.NewBlock("exit")

	b.Assign("i", ir.Int{N: 0})
	b.Assign("s", ir.Int{N: 0})
	b.Assign("one", ir.Int{N: 1})
	b.Jmp(head)

	b.SetBlock(head)
	b.Assign("c", Bop("<", "i", "n"))
	b.If("c", body, exit)

	b.SetBlock(body)
	b.Assign("s", Bop("+", "s", "i"))
	b.Assign("i", Bop("+", "i", "one"))
	b.Jmp(head)

	b.SetBlock(exit)
	b.Assign("p", ir.Print{X: "s"})
	b.Ret("s")
	return fn
}

// Straight builds a single-block function from statements, returning ret.
func Straight(formals []ir.Dec, locals []ir.Id, ret ir.Id, stms ...ir.Stm) *ir.Function {
	b := ir.NewBuilder("T", "g")
	fn := b.BeginFunction("T", "g", Int, append([]ir.Dec{This("T")}, formals...)...)
	for _, id := range locals {
		b.Local(id, Int)
	}
	for _, s := range stms {
		b.Emit(s)
	}
	b.Ret(ret)
	return fn
}
