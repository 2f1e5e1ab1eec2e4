package ir

import (
	"fmt"
	"io"
	"strings"
)

// DotName is the graph (and file) name used for fn
func DotName(fn *Function) string {
	return string(fn.ClassId) + "-" + string(fn.Name)
}

// Dot renders fn's block graph as a Graphviz digraph
func Dot(fn *Function) string {
	var sb strings.Builder
	_ = WriteDot(&sb, fn)
	return sb.String()
}

// WriteDot writes fn's block graph in Graphviz format. Each node lists the
// block's statements so the graph doubles as a readable dump.
func WriteDot(w io.Writer, fn *Function) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", DotName(fn))
	sb.WriteString("  node [shape=box, fontname=\"monospace\"];\n")
	for _, b := range fn.Blocks {
		var body strings.Builder
		body.WriteString(string(b.Label) + ":\\l")
		for _, s := range b.Stms {
			body.WriteString(dotEscape(StmString(s)) + "\\l")
		}
		if b.Transfer != nil {
			body.WriteString(dotEscape(TransferString(b.Transfer)) + "\\l")
		}
		fmt.Fprintf(&sb, "  %q [label=\"%s\"];\n", b.Label, body.String())
	}
	for _, b := range fn.Blocks {
		if b.Transfer == nil {
			continue
		}
		switch t := b.Transfer.(type) {
		case If:
			fmt.Fprintf(&sb, "  %q -> %q [label=\"T\"];\n", b.Label, t.Then)
			fmt.Fprintf(&sb, "  %q -> %q [label=\"F\"];\n", b.Label, t.Else)
		default:
			for _, s := range Successors(t) {
				fmt.Fprintf(&sb, "  %q -> %q;\n", b.Label, s)
			}
		}
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func dotEscape(s string) string {
	r := strings.NewReplacer(`"`, `\"`, "<", `\<`, ">", `\>`, "{", `\{`, "}", `\}`, "|", `\|`)
	return r.Replace(s)
}
