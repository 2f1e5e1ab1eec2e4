package x64

import (
	"fmt"
	"math"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

// Runtime entry points
const (
	RuntimeNew       = "Tiger_new"
	RuntimeGetMethod = "Tiger_getVirtualMethod"
	RuntimePrint     = "Tiger_print"
	RuntimeNewArray  = "Tiger_newArray"
	EntrySymbol      = "Tiger_main"
)

// argsLabel names the block that moves incoming arguments into their
// virtual registers when the CFG entry is itself a jump target. A suffix is
// added when the CFG already uses the name.
const argsLabel ir.Label = "args"

var arith = map[string]string{
	"+":  "addq",
	"-":  "subq",
	"*":  "imulq",
	"&&": "andq",
	"||": "orq",
}

var compare = map[string]string{
	"<":  "setl",
	"<=": "setle",
	">":  "setg",
	">=": "setge",
	"==": "sete",
	"!=": "setne",
}

// Select lowers every function of prog to x64 instructions over virtual
// registers, one per CFG Id.
func Select(prog *ir.Program, layout *Layout) *Program {
	out := &Program{
		Entry:   FuncSymbol(prog.MainClass, prog.MainFunc),
		Vtables: layout.Vtables(),
	}
	for _, fn := range prog.Functions {
		out.Functions = append(out.Functions, SelectFunction(fn, layout))
	}
	return out
}

// SelectFunction lowers one function
func SelectFunction(fn *ir.Function, layout *Layout) *Function {
	out := &Function{
		Name:    FuncSymbol(fn.ClassId, fn.Name),
		Formals: fn.Formals,
		Locals:  fn.Locals,
	}
	for _, b := range fn.Blocks {
		s := &selector{layout: layout, fn: fn}
		for _, stm := range b.Stms {
			s.stm(stm)
		}
		out.Blocks = append(out.Blocks, &Block{Label: b.Label, Instrs: s.out, Transfer: s.transfer(b.Transfer)})
	}

	if entry := fn.Entry(); entry != nil {
		s := &selector{layout: layout, fn: fn}
		s.formals()
		if len(fn.Predecessors()[entry.Label]) > 0 {
			args := &Block{Label: out.FreshLabel(argsLabel), Instrs: s.out, Transfer: Jmp{Target: entry.Label}}
			out.Blocks = append([]*Block{args}, out.Blocks...)
		} else {
			out.Blocks[0].Instrs = append(s.out, out.Blocks[0].Instrs...)
		}
	}

	logger.Debug("Selected instructions", "function", out.Name, "blocks", len(out.Blocks))
	return out
}

type selector struct {
	layout *Layout
	fn     *ir.Function
	out    []Instr
}

func (s *selector) ins(format string, args ...any) {
	s.out = append(s.out, Instr{Format: fmt.Sprintf(format, args...)})
}

func (s *selector) use(format string, id ir.Id) {
	s.out = append(s.out, Instr{Format: format, Uses: []Operand{Vid{Id: id}}})
}

func (s *selector) def(format string, id ir.Id) {
	s.out = append(s.out, Instr{Format: format, Defs: []Operand{Vid{Id: id}}})
}

// formals moves each argument from its register or stack slot into the
// formal's virtual register
func (s *selector) formals() {
	for i, f := range s.fn.Formals {
		if i < len(ArgRegs) {
			s.def(fmt.Sprintf("movq %s, {d0}", ArgRegs[i]), f.Id)
			continue
		}
		s.out = append(s.out, Instr{Format: "movq {u0}, %rax", Uses: []Operand{Incoming{Index: i}}})
		s.def("movq %rax, {d0}", f.Id)
	}
}

func (s *selector) stm(stm ir.Stm) {
	switch stm := stm.(type) {
	case ir.Assign:
		s.assign(stm.X, stm.Exp)
	case ir.AssignArray:
		s.use("movq {u0}, %rax", stm.X)
		s.use("movq {u0}, %rcx", ir.GetId(stm.Index))
		s.use("movq {u0}, %rdx", ir.GetId(stm.Value))
		s.ins("movq %%rdx, 8(%%rax,%%rcx,8)")
	default:
		ir.Bug("x64.Select", "unknown statement %T", stm)
	}
}

func (s *selector) assign(x ir.Id, e ir.Exp) {
	switch e := e.(type) {
	case ir.Bop:
		s.bop(x, e)
	case ir.Call:
		s.call(x, e)
	case ir.Eid:
		s.use("movq {u0}, %rax", e.Id)
		s.def("movq %rax, {d0}", x)
	case ir.GetMethod:
		s.use("movq {u0}, %rdi", e.Obj)
		s.ins("movq $%d, %%rsi", 0)
		s.ins("movq $%d, %%rdx", s.layout.MethodOffset(e.Class, e.Method))
		s.ins("call %s", RuntimeGetMethod)
		s.def("movq %rax, {d0}", x)
	case ir.Int:
		if e.N >= math.MinInt32 && e.N <= math.MaxInt32 {
			s.def(fmt.Sprintf("movq $%d, {d0}", e.N), x)
			return
		}
		s.ins("movabsq $%d, %%rax", e.N)
		s.def("movq %rax, {d0}", x)
	case ir.New:
		s.ins("movq $%d, %%rdi", s.layout.ClassSize(e.Class))
		s.ins("leaq %s(%%rip), %%rsi", VtableSymbol(e.Class))
		s.ins("call %s", RuntimeNew)
		s.def("movq %rax, {d0}", x)
	case ir.Print:
		s.use("movq {u0}, %rdi", e.X)
		s.ins("call %s", RuntimePrint)
		s.def("movq %rax, {d0}", x)
	case ir.Length:
		s.use("movq {u0}, %rax", e.X)
		s.ins("movq (%%rax), %%rax")
		s.def("movq %rax, {d0}", x)
	case ir.ArraySelect:
		s.use("movq {u0}, %rax", e.Array)
		s.use("movq {u0}, %rcx", e.Index)
		s.ins("movq 8(%%rax,%%rcx,8), %%rax")
		s.def("movq %rax, {d0}", x)
	case ir.NewIntArray:
		s.use("movq {u0}, %rdi", e.Size)
		s.ins("movq $%d, %%rsi", 0)
		s.ins("call %s", RuntimeNewArray)
		s.def("movq %rax, {d0}", x)
	default:
		ir.Bug("x64.Select", "unknown expression %T", e)
	}
}

func (s *selector) bop(x ir.Id, e ir.Bop) {
	if len(e.Operands) == 1 {
		if e.Op != "!" {
			ir.Bug("x64.Select", "unknown unary operator %q", e.Op)
		}
		s.use("movq {u0}, %rax", e.Operands[0])
		s.ins("xorq $1, %%rax")
		s.def("movq %rax, {d0}", x)
		return
	}

	a, b := e.Operands[0], e.Operands[1]
	s.use("movq {u0}, %rax", a)
	switch {
	case arith[e.Op] != "":
		s.use(arith[e.Op]+" {u0}, %rax", b)
	case compare[e.Op] != "":
		s.use("cmpq {u0}, %rax", b)
		s.ins("%s %%al", compare[e.Op])
		s.ins("movzbq %%al, %%rax")
	case e.Op == "/":
		s.ins("cqto")
		s.use("idivq {u0}", b)
	default:
		ir.Bug("x64.Select", "unknown binary operator %q", e.Op)
	}
	s.def("movq %rax, {d0}", x)
}

// call follows the System V convention: six register arguments, the rest
// pushed right to left with %rsp kept 16-byte aligned at the call.
func (s *selector) call(x ir.Id, c ir.Call) {
	stacked := 0
	if len(c.Args) > len(ArgRegs) {
		stacked = len(c.Args) - len(ArgRegs)
	}
	pad := stacked % 2
	if pad == 1 {
		s.ins("subq $%d, %%rsp", WordSize)
	}
	for i := len(c.Args) - 1; i >= len(ArgRegs); i-- {
		s.use("pushq {u0}", c.Args[i])
	}
	for i, arg := range c.Args {
		if i >= len(ArgRegs) {
			break
		}
		s.use(fmt.Sprintf("movq {u0}, %s", ArgRegs[i]), arg)
	}
	s.use("call *{u0}", c.Func)
	if stacked > 0 {
		s.ins("addq $%d, %%rsp", WordSize*(stacked+pad))
	}
	s.def("movq %rax, {d0}", x)
}

func (s *selector) transfer(t ir.Transfer) Transfer {
	switch t := t.(type) {
	case ir.If:
		s.use("cmpq $0, {u0}", t.Cond)
		return If{Jcc: "jne", Then: t.Then, Else: t.Else}
	case ir.Jmp:
		return Jmp{Target: t.Target}
	case ir.Ret:
		s.use("movq {u0}, %rax", t.Value)
		return Ret{}
	default:
		ir.Bug("x64.Select", "unknown transfer %T", t)
		return nil
	}
}
