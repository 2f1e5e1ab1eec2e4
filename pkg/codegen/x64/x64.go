// Package x64 implements the machine-level CFG the register allocator works on.
//
// Design: an instruction is an AT&T-syntax template whose placeholders {u0},
// {u1}, ... and {d0}, ... stand for its use and def operands. Selection fills
// them with virtual registers (Vid); allocation rewrites every Vid to a
// physical register or a frame slot without having to understand the
// instruction itself.
package x64

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
)

// Operand is one placeholder value of an instruction
type Operand interface {
	operand()
	String() string
}

// Vid is a virtual register, named after the CFG Id it carries
type Vid struct {
	Id ir.Id
}

func (Vid) operand()         {}
func (v Vid) String() string { return "%" + string(v.Id) }

// Reg is a physical register, written with its % prefix
type Reg string

func (Reg) operand()         {}
func (r Reg) String() string { return string(r) }

// Mem is Offset(Base)
type Mem struct {
	Base   Reg
	Offset int
}

func (Mem) operand() {}
func (m Mem) String() string {
	return fmt.Sprintf("%d(%s)", m.Offset, m.Base)
}

// Incoming is the stack slot of the Index-th argument (Index >= len(ArgRegs)),
// addressable only once the allocator knows how many registers the prologue
// pushes.
type Incoming struct {
	Index int
}

func (Incoming) operand()         {}
func (i Incoming) String() string { return fmt.Sprintf("<arg%d>", i.Index) }

// Instr is one machine instruction
type Instr struct {
	Format string
	Uses   []Operand
	Defs   []Operand
}

// String renders the instruction with its operands substituted
func (in Instr) String() string {
	if len(in.Uses) == 0 && len(in.Defs) == 0 {
		return in.Format
	}
	pairs := make([]string, 0, 2*(len(in.Uses)+len(in.Defs)))
	for i, u := range in.Uses {
		pairs = append(pairs, "{u"+strconv.Itoa(i)+"}", u.String())
	}
	for i, d := range in.Defs {
		pairs = append(pairs, "{d"+strconv.Itoa(i)+"}", d.String())
	}
	return strings.NewReplacer(pairs...).Replace(in.Format)
}

// Operands returns uses followed by defs
func (in Instr) Operands() []Operand {
	out := make([]Operand, 0, len(in.Uses)+len(in.Defs))
	out = append(out, in.Uses...)
	return append(out, in.Defs...)
}

// UseVids returns the virtual registers the instruction reads
func (in Instr) UseVids() []ir.Id {
	return vids(in.Uses)
}

// DefVids returns the virtual registers the instruction writes
func (in Instr) DefVids() []ir.Id {
	return vids(in.Defs)
}

func vids(ops []Operand) []ir.Id {
	var out []ir.Id
	for _, op := range ops {
		if v, ok := op.(Vid); ok {
			out = append(out, v.Id)
		}
	}
	return out
}

// Map returns a copy of the instruction with every operand passed through f
func (in Instr) Map(f func(Operand) Operand) Instr {
	out := Instr{Format: in.Format}
	if in.Uses != nil {
		out.Uses = make([]Operand, len(in.Uses))
		for i, u := range in.Uses {
			out.Uses[i] = f(u)
		}
	}
	if in.Defs != nil {
		out.Defs = make([]Operand, len(in.Defs))
		for i, d := range in.Defs {
			out.Defs[i] = f(d)
		}
	}
	return out
}

// Transfers. Conditions are set by the last instruction of the block.
type Transfer interface {
	transfer()
}

// If jumps to Then when the Jcc condition holds, else to Else
type If struct {
	Jcc  string
	Then ir.Label
	Else ir.Label
}

func (If) transfer() {}

type Jmp struct {
	Target ir.Label
}

func (Jmp) transfer() {}

// Ret returns %rax
type Ret struct{}

func (Ret) transfer() {}

// Successors returns the labels a transfer may continue at
func Successors(t Transfer) []ir.Label {
	switch t := t.(type) {
	case If:
		return []ir.Label{t.Then, t.Else}
	case Jmp:
		return []ir.Label{t.Target}
	case Ret:
		return nil
	default:
		ir.Bug("x64", "unknown transfer %T", t)
		return nil
	}
}

type Block struct {
	Label    ir.Label
	Instrs   []Instr
	Transfer Transfer
}

// Function is one method's machine code. Formals and Locals are the CFG
// declarations that get home slots in the frame.
type Function struct {
	Name    string
	Formals []ir.Dec
	Locals  []ir.Dec
	Blocks  []*Block

	// Filled in by the allocator
	FrameBytes int
	Saved      []Reg
}

// Entry returns the first block
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// BlockMap indexes blocks by label
func (f *Function) BlockMap() map[ir.Label]*Block {
	m := make(map[ir.Label]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		m[b.Label] = b
	}
	return m
}

// FreshLabel returns base, or base with a numeric suffix, naming no block of f
func (f *Function) FreshLabel(base ir.Label) ir.Label {
	taken := f.BlockMap()
	l := base
	for i := 1; taken[l] != nil; i++ {
		l = ir.Label(fmt.Sprintf("%s_%d", base, i))
	}
	return l
}

// HasPredecessors reports whether any block transfers to l
func (f *Function) HasPredecessors(l ir.Label) bool {
	for _, b := range f.Blocks {
		for _, s := range Successors(b.Transfer) {
			if s == l {
				return true
			}
		}
	}
	return false
}

// DataVtable is an emitted method table
type DataVtable struct {
	Symbol  string
	Methods []string
}

// Program is a whole selected (and later allocated) compilation unit
type Program struct {
	Entry     string
	Vtables   []DataVtable
	Functions []*Function
}
