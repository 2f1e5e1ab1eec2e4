package x64

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
)

// BlockSymbol is the assembler label of block l in function fn
func BlockSymbol(fn string, l ir.Label) string {
	return ".L" + fn + "_" + string(l)
}

// Fprint writes prog as GNU assembler source
func Fprint(w io.Writer, prog *Program) error {
	bw := bufio.NewWriter(w)
	if len(prog.Vtables) > 0 {
		fmt.Fprintln(bw, "\t.data")
		for _, v := range prog.Vtables {
			fmt.Fprintf(bw, "%s:\n", v.Symbol)
			for _, m := range v.Methods {
				fmt.Fprintf(bw, "\t.quad %s\n", m)
			}
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "\t.text")
	fmt.Fprintf(bw, "\t.globl %s\n", EntrySymbol)
	for _, fn := range prog.Functions {
		fmt.Fprintln(bw)
		if fn.Name == prog.Entry {
			fmt.Fprintf(bw, "%s:\n", EntrySymbol)
		}
		writeFunction(bw, fn)
	}
	return bw.Flush()
}

// String renders prog as assembly text
func (p *Program) String() string {
	var sb strings.Builder
	_ = Fprint(&sb, p)
	return sb.String()
}

// FprintFunction writes one function
func FprintFunction(w io.Writer, fn *Function) error {
	bw := bufio.NewWriter(w)
	writeFunction(bw, fn)
	return bw.Flush()
}

func writeFunction(w io.Writer, fn *Function) {
	fmt.Fprintf(w, "%s:\n", fn.Name)
	for i, b := range fn.Blocks {
		fmt.Fprintf(w, "%s:\n", BlockSymbol(fn.Name, b.Label))
		for _, in := range b.Instrs {
			fmt.Fprintf(w, "\t%s\n", in)
		}

		var next ir.Label
		if i+1 < len(fn.Blocks) {
			next = fn.Blocks[i+1].Label
		}
		switch t := b.Transfer.(type) {
		case If:
			fmt.Fprintf(w, "\t%s %s\n", t.Jcc, BlockSymbol(fn.Name, t.Then))
			if t.Else != next {
				fmt.Fprintf(w, "\tjmp %s\n", BlockSymbol(fn.Name, t.Else))
			}
		case Jmp:
			if t.Target != next {
				fmt.Fprintf(w, "\tjmp %s\n", BlockSymbol(fn.Name, t.Target))
			}
		case Ret:
			fmt.Fprintln(w, "\tret")
		default:
			ir.Bug("x64.Fprint", "unknown transfer %T", t)
		}
	}
}
