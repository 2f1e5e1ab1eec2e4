// Package ir - programmatic CFG construction
// Design: the lowering collaborator and the tests build CFGs through the same
// small API; blocks are appended in creation order, the first one is the entry.
package ir

import (
	"fmt"

	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

type Builder struct {
	prog      *Program
	currentFn *Function
	currentBl *Block
	tempID    int
	labelID   int
}

func NewBuilder(mainClass, mainFunc Id) *Builder {
	return &Builder{
		prog: &Program{MainClass: mainClass, MainFunc: mainFunc},
	}
}

// AddVtable registers a class's virtual method table
func (b *Builder) AddVtable(v Vtable) {
	b.prog.Vtables = append(b.prog.Vtables, v)
}

// AddStruct registers a class's instance layout
func (b *Builder) AddStruct(s Struct) {
	b.prog.Structs = append(b.prog.Structs, s)
}

// BeginFunction starts a new function with an empty entry block. The
// receiver formal must be passed first for virtual methods.
func (b *Builder) BeginFunction(class, name Id, ret Type, formals ...Dec) *Function {
	fn := &Function{
		RetType: ret,
		ClassId: class,
		Name:    name,
		Formals: append([]Dec(nil), formals...),
	}
	b.currentFn = fn
	b.prog.Functions = append(b.prog.Functions, fn)
	b.currentBl = b.NewBlock("entry")
	return fn
}

// Local declares a local variable of the current function
func (b *Builder) Local(id Id, typ Type) Id {
	b.currentFn.Locals = append(b.currentFn.Locals, Dec{Type: typ, Id: id})
	return id
}

// NewTemp declares a fresh local temporary
func (b *Builder) NewTemp(typ Type) Id {
	id := Id(fmt.Sprintf("t_%d", b.tempID))
	b.tempID++
	return b.Local(id, typ)
}

// NewBlock appends an empty block to the current function without making it
// current.
func (b *Builder) NewBlock(name string) *Block {
	label := Label(fmt.Sprintf("%s_%d", name, b.labelID))
	b.labelID++
	bl := &Block{Label: label}
	b.currentFn.Blocks = append(b.currentFn.Blocks, bl)
	return bl
}

// SetBlock makes bl the target of Emit and the transfer helpers
func (b *Builder) SetBlock(bl *Block) {
	b.currentBl = bl
}

// Current returns the block under construction
func (b *Builder) Current() *Block {
	return b.currentBl
}

// Emit appends a statement to the current block
func (b *Builder) Emit(s Stm) {
	b.currentBl.Stms = append(b.currentBl.Stms, s)
}

// Assign emits x = e
func (b *Builder) Assign(x Id, e Exp) {
	b.Emit(Assign{X: x, Exp: e})
}

// If ends the current block with a conditional branch
func (b *Builder) If(cond Id, then, els *Block) {
	b.setTransfer(If{Cond: cond, Then: then.Label, Else: els.Label})
}

// Jmp ends the current block with an unconditional branch
func (b *Builder) Jmp(target *Block) {
	b.setTransfer(Jmp{Target: target.Label})
}

// Ret ends the current block with a return
func (b *Builder) Ret(x Id) {
	b.setTransfer(Ret{Value: x})
}

func (b *Builder) setTransfer(t Transfer) {
	if b.currentBl.Transfer != nil {
		Bug("ir.Builder", "block %s already has a transfer", b.currentBl.Label)
	}
	b.currentBl.Transfer = t
}

// Finish returns the program after checking that it is well formed
func (b *Builder) Finish() (*Program, error) {
	if err := Validate(b.prog); err != nil {
		logger.Error("Built CFG is malformed", "error", err)
		return nil, err
	}
	logger.Debug("CFG build complete", "functions", len(b.prog.Functions))
	return b.prog, nil
}
