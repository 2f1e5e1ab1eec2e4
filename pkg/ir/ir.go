// Package ir implements the control-flow-graph intermediate representation.
//
// Design: Three-address code, explicit control flow, strongly typed.
// Program → Functions → Blocks → {statements, one transfer}. Transfers name
// their targets by Label, so blocks never hold pointers to each other and
// every analysis can key its facts by Label.
package ir

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Id is a globally distinct symbol: a source variable or a CFG temporary.
type Id string

// Label names exactly one block.
type Label string

var (
	idCounter    atomic.Int64
	labelCounter atomic.Int64
)

// FreshId returns a new Id that no other call returns.
func FreshId(hint string) Id {
	if hint == "" {
		hint = "x"
	}
	return Id(fmt.Sprintf("%s_%d", hint, idCounter.Add(1)))
}

// FreshLabel returns a new block label.
func FreshLabel() Label {
	return Label(fmt.Sprintf("L_%d", labelCounter.Add(1)))
}

// Program is the root of one compilation unit
type Program struct {
	MainClass Id
	MainFunc  Id
	Vtables   []Vtable
	Structs   []Struct
	Functions []*Function
}

// Function is a method lowered to blocks. The first formal is the receiver.
type Function struct {
	RetType Type
	ClassId Id
	Name    Id
	Formals []Dec
	Locals  []Dec
	Blocks  []*Block
}

// Block is a basic block - straight-line code ending in one transfer
type Block struct {
	Label    Label
	Stms     []Stm
	Transfer Transfer
}

// Dec declares a typed variable
type Dec struct {
	Type Type
	Id   Id
}

// VtableEntry describes one virtual method slot
type VtableEntry struct {
	RetType Type
	ClassId Id
	FuncId  Id
	Args    []Dec
}

// Vtable lists the methods of a class in slot order
type Vtable struct {
	Name    Id
	Entries []VtableEntry
}

// Struct describes the fields of a class instance after the vtable pointer
type Struct struct {
	ClassId Id
	Fields  []Dec
}

// Types
type Type interface {
	typ()
}

type ClassType struct {
	Id Id
}

func (ClassType) typ() {}

type CodePtrType struct{}

func (CodePtrType) typ() {}

type IntType struct{}

func (IntType) typ() {}

type IntArrayType struct{}

func (IntArrayType) typ() {}

// Expressions
type Exp interface {
	exp()
}

// Bop is a unary or binary operator applied to one or two Ids.
type Bop struct {
	Op       string
	Operands []Id
	Type     Type
}

func (Bop) exp() {}

// Call invokes the code pointer Func; Args[0] is the receiver.
type Call struct {
	Func    Id
	Args    []Id
	RetType Type
}

func (Call) exp() {}

type Eid struct {
	Id   Id
	Type Type
}

func (Eid) exp() {}

// GetMethod loads the code pointer of Class.Method from Obj's vtable.
type GetMethod struct {
	Obj    Id
	Class  Id
	Method Id
}

func (GetMethod) exp() {}

type Int struct {
	N int
}

func (Int) exp() {}

type New struct {
	Class Id
}

func (New) exp() {}

type Print struct {
	X Id
}

func (Print) exp() {}

type Length struct {
	X Id
}

func (Length) exp() {}

type ArraySelect struct {
	Array Id
	Index Id
}

func (ArraySelect) exp() {}

type NewIntArray struct {
	Size Id
}

func (NewIntArray) exp() {}

// Statements
type Stm interface {
	stm()
	// Dest is the left-hand Id. It is always present, even when unused.
	Dest() Id
}

type Assign struct {
	X   Id
	Exp Exp
}

func (Assign) stm()       {}
func (s Assign) Dest() Id { return s.X }

// AssignArray stores Value into X[Index].
type AssignArray struct {
	X     Id
	Index Exp
	Value Exp
}

func (AssignArray) stm()       {}
func (s AssignArray) Dest() Id { return s.X }

// Transfers
type Transfer interface {
	transfer()
}

type If struct {
	Cond Id
	Then Label
	Else Label
}

func (If) transfer() {}

type Jmp struct {
	Target Label
}

func (Jmp) transfer() {}

type Ret struct {
	Value Id
}

func (Ret) transfer() {}

// Successors returns the labels a transfer may continue at.
func Successors(t Transfer) []Label {
	switch t := t.(type) {
	case If:
		return []Label{t.Then, t.Else}
	case Jmp:
		return []Label{t.Target}
	case Ret:
		return nil
	default:
		Bug("ir", "unknown transfer %T", t)
		return nil
	}
}

// GetId returns the Id of an Eid expression.
func GetId(e Exp) Id {
	if eid, ok := e.(Eid); ok {
		return eid.Id
	}
	Bug("ir", "expected an Eid expression, got %T", e)
	return ""
}

// QualifiedName returns Class.method for diagnostics
func (f *Function) QualifiedName() string {
	return string(f.ClassId) + "." + string(f.Name)
}

// Entry returns the first block, or nil for an empty function
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// BlockMap indexes the blocks by label
func (f *Function) BlockMap() map[Label]*Block {
	m := make(map[Label]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		m[b.Label] = b
	}
	return m
}

// Predecessors maps each label to the labels that transfer to it.
func (f *Function) Predecessors() map[Label][]Label {
	preds := make(map[Label][]Label, len(f.Blocks))
	for _, b := range f.Blocks {
		for _, s := range Successors(b.Transfer) {
			preds[s] = append(preds[s], b.Label)
		}
	}
	return preds
}

// FormalIds returns the Ids of the formals in order
func (f *Function) FormalIds() []Id {
	ids := make([]Id, len(f.Formals))
	for i, d := range f.Formals {
		ids[i] = d.Id
	}
	return ids
}

// WithBlocks returns a copy of f that owns the given blocks.
func (f *Function) WithBlocks(blocks []*Block) *Function {
	nf := *f
	nf.Blocks = blocks
	return &nf
}

// Clone copies the function and its blocks; expressions are shared since
// passes never mutate them in place.
func (f *Function) Clone() *Function {
	blocks := make([]*Block, len(f.Blocks))
	for i, b := range f.Blocks {
		blocks[i] = b.Clone()
	}
	return f.WithBlocks(blocks)
}

// Clone copies a block and its statement list
func (b *Block) Clone() *Block {
	stms := make([]Stm, len(b.Stms))
	copy(stms, b.Stms)
	return &Block{Label: b.Label, Stms: stms, Transfer: b.Transfer}
}

// WithFunctions returns a copy of p holding fns.
func (p *Program) WithFunctions(fns []*Function) *Program {
	np := *p
	np.Functions = fns
	return &np
}

// Function returns the function with the given class and name
func (p *Program) Function(class, name Id) *Function {
	for _, f := range p.Functions {
		if f.ClassId == class && f.Name == name {
			return f
		}
	}
	return nil
}

// ExpKey identifies a pure operator expression by structure. Two Bops with
// the same operator, operands and type share a key.
type ExpKey struct {
	Op    string
	X     Id
	Y     Id
	Arity int
	Type  Type
}

// KeyOf builds the structural key of b.
func KeyOf(b Bop) ExpKey {
	k := ExpKey{Op: b.Op, Arity: len(b.Operands), Type: b.Type}
	if len(b.Operands) > 0 {
		k.X = b.Operands[0]
	}
	if len(b.Operands) > 1 {
		k.Y = b.Operands[1]
	}
	return k
}

// Operands returns the operand Ids of the keyed expression
func (k ExpKey) Operands() []Id {
	switch k.Arity {
	case 0:
		return nil
	case 1:
		return []Id{k.X}
	default:
		return []Id{k.X, k.Y}
	}
}

// Mentions reports whether id is an operand.
func (k ExpKey) Mentions(id Id) bool {
	return (k.Arity > 0 && k.X == id) || (k.Arity > 1 && k.Y == id)
}

// Bop rebuilds the expression the key was made from
func (k ExpKey) Bop() Bop {
	return Bop{Op: k.Op, Operands: k.Operands(), Type: k.Type}
}

func (k ExpKey) String() string {
	ops := k.Operands()
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = string(o)
	}
	return k.Op + "(" + strings.Join(parts, ", ") + ")"
}
