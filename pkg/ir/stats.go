package ir

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// FunctionSize counts the blocks and statements of one function
type FunctionSize struct {
	Name   string
	Blocks int
	Stms   int
}

// Size is the <#functions, #blocks, #statements> summary of a program
type Size struct {
	Functions []FunctionSize
	Blocks    int
	Stms      int
}

// ComputeSize counts functions, blocks and statements
func ComputeSize(p *Program) Size {
	var sz Size
	for _, fn := range p.Functions {
		fs := FunctionSize{Name: fn.QualifiedName(), Blocks: len(fn.Blocks)}
		for _, b := range fn.Blocks {
			fs.Stms += len(b.Stms)
		}
		sz.Blocks += fs.Blocks
		sz.Stms += fs.Stms
		sz.Functions = append(sz.Functions, fs)
	}
	return sz
}

// WriteSizeTable renders the summary as a table with a subtotal footer
func WriteSizeTable(w io.Writer, sz Size) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Function", "Blocks", "Statements"})
	table.SetAutoFormatHeaders(false)
	for _, f := range sz.Functions {
		table.Append([]string{f.Name, fmt.Sprint(f.Blocks), fmt.Sprint(f.Stms)})
	}
	table.SetFooter([]string{fmt.Sprintf("%d functions", len(sz.Functions)), fmt.Sprint(sz.Blocks), fmt.Sprint(sz.Stms)})
	table.Render()
}
