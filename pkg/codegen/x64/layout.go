package x64

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
)

// Layout records object sizes and vtable slots. An object is its vtable
// pointer followed by one word per field; a method's offset is its slot
// index in the class's vtable.
type Layout struct {
	// VtablePtrOffset is the word index of the vtable pointer in an object
	VtablePtrOffset int

	classes []ir.Id
	sizes   map[ir.Id]int
	methods map[ir.Id][]ir.VtableEntry
	offsets map[ir.Id]map[ir.Id]int
}

// NewLayout lays out every struct and vtable of prog
func NewLayout(prog *ir.Program) *Layout {
	l := &Layout{
		sizes:   make(map[ir.Id]int),
		methods: make(map[ir.Id][]ir.VtableEntry),
		offsets: make(map[ir.Id]map[ir.Id]int),
	}
	for _, s := range prog.Structs {
		l.sizes[s.ClassId] = WordSize * (1 + len(s.Fields))
		l.addClass(s.ClassId)
	}
	for _, v := range prog.Vtables {
		offsets := make(map[ir.Id]int, len(v.Entries))
		for i, e := range v.Entries {
			offsets[e.FuncId] = i
		}
		l.offsets[v.Name] = offsets
		l.methods[v.Name] = v.Entries
		l.addClass(v.Name)
	}
	return l
}

func (l *Layout) addClass(c ir.Id) {
	for _, k := range l.classes {
		if k == c {
			return
		}
	}
	l.classes = append(l.classes, c)
}

// ClassSize returns the byte size of an instance of c
func (l *Layout) ClassSize(c ir.Id) int {
	size, ok := l.sizes[c]
	if !ok {
		ir.Bug("x64.Layout", "no struct for class %s", c)
	}
	return size
}

// MethodOffset returns the vtable slot of method m as seen through class c
func (l *Layout) MethodOffset(c, m ir.Id) int {
	off, ok := l.offsets[c][m]
	if !ok {
		ir.Bug("x64.Layout", "class %s has no method %s", c, m)
	}
	return off
}

// VtableSymbol is the data label of c's vtable
func VtableSymbol(c ir.Id) string {
	return "V_" + string(c)
}

// FuncSymbol is the code label of method m defined in class c
func FuncSymbol(c, m ir.Id) string {
	return string(c) + "_" + string(m)
}

// Vtables returns the method tables to emit, in class order
func (l *Layout) Vtables() []DataVtable {
	var out []DataVtable
	for _, c := range l.classes {
		entries, ok := l.methods[c]
		if !ok {
			continue
		}
		v := DataVtable{Symbol: VtableSymbol(c)}
		for _, e := range entries {
			v.Methods = append(v.Methods, FuncSymbol(e.ClassId, e.FuncId))
		}
		out = append(out, v)
	}
	return out
}

// WriteTable prints every class's size and method offsets
func (l *Layout) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Size", "Method", "Defined In", "Offset"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoMergeCells(true)
	for _, c := range l.classes {
		size := "-"
		if s, ok := l.sizes[c]; ok {
			size = fmt.Sprint(s)
		}
		entries := l.methods[c]
		if len(entries) == 0 {
			table.Append([]string{string(c), size, "", "", ""})
			continue
		}
		for i, e := range entries {
			table.Append([]string{string(c), size, string(e.FuncId), string(e.ClassId), fmt.Sprint(i)})
		}
	}
	table.Render()
}
