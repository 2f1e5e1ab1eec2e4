// Package ir - pretty printer
// Design: C-like dump of vtables, structs and functions, for debugging only.
package ir

import (
	"fmt"
	"io"
	"strings"
)

// TypeString renders a type
func TypeString(t Type) string {
	switch t := t.(type) {
	case ClassType:
		return string(t.Id)
	case CodePtrType:
		return "CodePtr"
	case IntType:
		return "int"
	case IntArrayType:
		return "int[]"
	case nil:
		return "void"
	default:
		Bug("ir.TypeString", "unknown type %T", t)
		return ""
	}
}

func joinIds(ids []Id) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// ExpString renders an expression
func ExpString(e Exp) string {
	switch e := e.(type) {
	case Bop:
		return fmt.Sprintf("%s(%s)", e.Op, joinIds(e.Operands))
	case Call:
		return fmt.Sprintf("%s(%s)", e.Func, joinIds(e.Args))
	case Eid:
		return string(e.Id)
	case GetMethod:
		return fmt.Sprintf("getMethod(%s, %s, %s)", e.Obj, e.Class, e.Method)
	case Int:
		return fmt.Sprintf("%d", e.N)
	case New:
		return fmt.Sprintf("new %s()", e.Class)
	case Print:
		return fmt.Sprintf("print(%s)", e.X)
	case Length:
		return fmt.Sprintf("length(%s)", e.X)
	case ArraySelect:
		return fmt.Sprintf("%s[%s]", e.Array, e.Index)
	case NewIntArray:
		return fmt.Sprintf("new int[%s]", e.Size)
	default:
		Bug("ir.ExpString", "unknown expression %T", e)
		return ""
	}
}

// StmString renders a statement without indentation
func StmString(s Stm) string {
	switch s := s.(type) {
	case Assign:
		return fmt.Sprintf("%s = %s;", s.X, ExpString(s.Exp))
	case AssignArray:
		return fmt.Sprintf("%s[%s] = %s;", s.X, ExpString(s.Index), ExpString(s.Value))
	default:
		Bug("ir.StmString", "unknown statement %T", s)
		return ""
	}
}

// TransferString renders a transfer
func TransferString(t Transfer) string {
	switch t := t.(type) {
	case If:
		return fmt.Sprintf("if(%s, %s, %s);", t.Cond, t.Then, t.Else)
	case Jmp:
		return fmt.Sprintf("jmp %s;", t.Target)
	case Ret:
		return fmt.Sprintf("ret %s;", t.Value)
	default:
		Bug("ir.TransferString", "unknown transfer %T", t)
		return ""
	}
}

func decString(d Dec) string {
	return TypeString(d.Type) + " " + string(d.Id)
}

// Fprint writes the whole program
func Fprint(w io.Writer, p *Program) {
	fmt.Fprintf(w, "// the entry function: %s: %s\n", p.MainClass, p.MainFunc)
	for _, v := range p.Vtables {
		fmt.Fprintf(w, "struct V_%s {\n", v.Name)
		for _, e := range v.Entries {
			args := make([]string, len(e.Args))
			for i, a := range e.Args {
				args[i] = decString(a)
			}
			fmt.Fprintf(w, "    %s %s(%s);\n", TypeString(e.RetType), e.FuncId, strings.Join(args, ", "))
		}
		fmt.Fprintf(w, "} V_%s_ = {\n", v.Name)
		for _, e := range v.Entries {
			fmt.Fprintf(w, "    .%s = %s_%s,\n", e.FuncId, e.ClassId, e.FuncId)
		}
		fmt.Fprint(w, "};\n\n")
	}
	for _, s := range p.Structs {
		fmt.Fprintf(w, "struct S_%s {\n", s.ClassId)
		fmt.Fprintf(w, "    struct V_%s *vptr;\n", s.ClassId)
		for _, f := range s.Fields {
			fmt.Fprintf(w, "    %s;\n", decString(f))
		}
		fmt.Fprint(w, "};\n\n")
	}
	for _, fn := range p.Functions {
		FprintFunction(w, fn)
	}
}

// FprintFunction writes one function
func FprintFunction(w io.Writer, fn *Function) {
	formals := make([]string, len(fn.Formals))
	for i, f := range fn.Formals {
		formals[i] = decString(f)
	}
	fmt.Fprintf(w, "%s %s(%s){ @classId: %s\n", TypeString(fn.RetType), fn.Name, strings.Join(formals, ", "), fn.ClassId)
	for _, l := range fn.Locals {
		fmt.Fprintf(w, "    %s;\n", decString(l))
	}
	for _, b := range fn.Blocks {
		fmt.Fprintf(w, "    %s:\n", b.Label)
		for _, s := range b.Stms {
			fmt.Fprintf(w, "        %s\n", StmString(s))
		}
		if b.Transfer != nil {
			fmt.Fprintf(w, "        %s\n", TransferString(b.Transfer))
		}
	}
	fmt.Fprint(w, "}\n\n")
}
