// Package ir - JSON interchange format
// Design: the lowering front end hands programs over as JSON. Variants are
// tagged with "kind"; blocks refer to each other only by label.
package ir

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
)

// FormatVersion is written by Encode
const FormatVersion = "1.0"

// supportedFormats is the range of interchange versions Decode accepts
const supportedFormats = ">= 1.0, < 2.0"

type jsonProgram struct {
	Format       string         `json:"format"`
	MainClass    Id             `json:"mainClass"`
	MainFunction Id             `json:"mainFunction"`
	Vtables      []jsonVtable   `json:"vtables,omitempty"`
	Structs      []jsonStruct   `json:"structs,omitempty"`
	Functions    []jsonFunction `json:"functions"`
}

type jsonDec struct {
	Type *jsonType `json:"type"`
	Id   Id        `json:"id"`
}

type jsonVtableEntry struct {
	RetType *jsonType `json:"retType,omitempty"`
	ClassId Id        `json:"classId"`
	FuncId  Id        `json:"funcId"`
	Args    []jsonDec `json:"args,omitempty"`
}

type jsonVtable struct {
	Name    Id                `json:"name"`
	Entries []jsonVtableEntry `json:"entries"`
}

type jsonStruct struct {
	ClassId Id        `json:"classId"`
	Fields  []jsonDec `json:"fields,omitempty"`
}

type jsonFunction struct {
	RetType *jsonType   `json:"retType,omitempty"`
	ClassId Id          `json:"classId"`
	Name    Id          `json:"name"`
	Formals []jsonDec   `json:"formals,omitempty"`
	Locals  []jsonDec   `json:"locals,omitempty"`
	Blocks  []jsonBlock `json:"blocks"`
}

type jsonBlock struct {
	Label    Label         `json:"label"`
	Stms     []jsonStm     `json:"stms,omitempty"`
	Transfer *jsonTransfer `json:"transfer"`
}

type jsonType struct {
	Kind string `json:"kind"`
	Id   Id     `json:"id,omitempty"`
}

type jsonExp struct {
	Kind     string    `json:"kind"`
	Op       string    `json:"op,omitempty"`
	Operands []Id      `json:"operands,omitempty"`
	Type     *jsonType `json:"type,omitempty"`
	Func     Id        `json:"func,omitempty"`
	Args     []Id      `json:"args,omitempty"`
	Id       Id        `json:"id,omitempty"`
	Obj      Id        `json:"obj,omitempty"`
	Class    Id        `json:"class,omitempty"`
	Method   Id        `json:"method,omitempty"`
	N        int       `json:"n,omitempty"`
	X        Id        `json:"x,omitempty"`
	Index    Id        `json:"index,omitempty"`
}

type jsonStm struct {
	Kind  string   `json:"kind"`
	X     Id       `json:"x"`
	Exp   *jsonExp `json:"exp,omitempty"`
	Index *jsonExp `json:"index,omitempty"`
	Value *jsonExp `json:"value,omitempty"`
}

type jsonTransfer struct {
	Kind   string `json:"kind"`
	Cond   Id     `json:"cond,omitempty"`
	Then   Label  `json:"then,omitempty"`
	Else   Label  `json:"else,omitempty"`
	Target Label  `json:"target,omitempty"`
	Value  Id     `json:"value,omitempty"`
}

// Encode writes p in the interchange format
func Encode(w io.Writer, p *Program) error {
	jp := jsonProgram{
		Format:       FormatVersion,
		MainClass:    p.MainClass,
		MainFunction: p.MainFunc,
	}
	for _, v := range p.Vtables {
		jv := jsonVtable{Name: v.Name}
		for _, e := range v.Entries {
			jv.Entries = append(jv.Entries, jsonVtableEntry{
				RetType: encodeType(e.RetType),
				ClassId: e.ClassId,
				FuncId:  e.FuncId,
				Args:    encodeDecs(e.Args),
			})
		}
		jp.Vtables = append(jp.Vtables, jv)
	}
	for _, s := range p.Structs {
		jp.Structs = append(jp.Structs, jsonStruct{ClassId: s.ClassId, Fields: encodeDecs(s.Fields)})
	}
	for _, fn := range p.Functions {
		jf := jsonFunction{
			RetType: encodeType(fn.RetType),
			ClassId: fn.ClassId,
			Name:    fn.Name,
			Formals: encodeDecs(fn.Formals),
			Locals:  encodeDecs(fn.Locals),
		}
		for _, b := range fn.Blocks {
			jb := jsonBlock{Label: b.Label}
			for _, s := range b.Stms {
				jb.Stms = append(jb.Stms, encodeStm(s))
			}
			if b.Transfer != nil {
				jb.Transfer = encodeTransfer(b.Transfer)
			}
			jf.Blocks = append(jf.Blocks, jb)
		}
		jp.Functions = append(jp.Functions, jf)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jp)
}

func encodeDecs(decs []Dec) []jsonDec {
	var out []jsonDec
	for _, d := range decs {
		out = append(out, jsonDec{Type: encodeType(d.Type), Id: d.Id})
	}
	return out
}

func encodeType(t Type) *jsonType {
	switch t := t.(type) {
	case nil:
		return nil
	case ClassType:
		return &jsonType{Kind: "class", Id: t.Id}
	case CodePtrType:
		return &jsonType{Kind: "codeptr"}
	case IntType:
		return &jsonType{Kind: "int"}
	case IntArrayType:
		return &jsonType{Kind: "intArray"}
	default:
		Bug("ir.Encode", "unknown type %T", t)
		return nil
	}
}

func encodeExp(e Exp) *jsonExp {
	switch e := e.(type) {
	case Bop:
		return &jsonExp{Kind: "bop", Op: e.Op, Operands: e.Operands, Type: encodeType(e.Type)}
	case Call:
		return &jsonExp{Kind: "call", Func: e.Func, Args: e.Args, Type: encodeType(e.RetType)}
	case Eid:
		return &jsonExp{Kind: "id", Id: e.Id, Type: encodeType(e.Type)}
	case GetMethod:
		return &jsonExp{Kind: "getMethod", Obj: e.Obj, Class: e.Class, Method: e.Method}
	case Int:
		return &jsonExp{Kind: "int", N: e.N}
	case New:
		return &jsonExp{Kind: "new", Class: e.Class}
	case Print:
		return &jsonExp{Kind: "print", X: e.X}
	case Length:
		return &jsonExp{Kind: "length", X: e.X}
	case ArraySelect:
		return &jsonExp{Kind: "arraySelect", X: e.Array, Index: e.Index}
	case NewIntArray:
		return &jsonExp{Kind: "newIntArray", X: e.Size}
	default:
		Bug("ir.Encode", "unknown expression %T", e)
		return nil
	}
}

func encodeStm(s Stm) jsonStm {
	switch s := s.(type) {
	case Assign:
		return jsonStm{Kind: "assign", X: s.X, Exp: encodeExp(s.Exp)}
	case AssignArray:
		return jsonStm{Kind: "assignArray", X: s.X, Index: encodeExp(s.Index), Value: encodeExp(s.Value)}
	default:
		Bug("ir.Encode", "unknown statement %T", s)
		return jsonStm{}
	}
}

func encodeTransfer(t Transfer) *jsonTransfer {
	switch t := t.(type) {
	case If:
		return &jsonTransfer{Kind: "if", Cond: t.Cond, Then: t.Then, Else: t.Else}
	case Jmp:
		return &jsonTransfer{Kind: "jmp", Target: t.Target}
	case Ret:
		return &jsonTransfer{Kind: "ret", Value: t.Value}
	default:
		Bug("ir.Encode", "unknown transfer %T", t)
		return nil
	}
}

// Decode reads a program in the interchange format. It checks the format
// version and the variant tags, but not well-formedness; run Validate for that.
func Decode(r io.Reader) (*Program, error) {
	var jp jsonProgram
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jp); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	if err := checkFormat(jp.Format); err != nil {
		return nil, err
	}

	p := &Program{MainClass: jp.MainClass, MainFunc: jp.MainFunction}
	for _, jv := range jp.Vtables {
		v := Vtable{Name: jv.Name}
		for _, je := range jv.Entries {
			ret, err := decodeType(je.RetType)
			if err != nil {
				return nil, fmt.Errorf("vtable %s: %w", jv.Name, err)
			}
			args, err := decodeDecs(je.Args)
			if err != nil {
				return nil, fmt.Errorf("vtable %s: %w", jv.Name, err)
			}
			v.Entries = append(v.Entries, VtableEntry{RetType: ret, ClassId: je.ClassId, FuncId: je.FuncId, Args: args})
		}
		p.Vtables = append(p.Vtables, v)
	}
	for _, js := range jp.Structs {
		fields, err := decodeDecs(js.Fields)
		if err != nil {
			return nil, fmt.Errorf("struct %s: %w", js.ClassId, err)
		}
		p.Structs = append(p.Structs, Struct{ClassId: js.ClassId, Fields: fields})
	}
	for _, jf := range jp.Functions {
		fn, err := decodeFunction(jf)
		if err != nil {
			return nil, fmt.Errorf("function %s.%s: %w", jf.ClassId, jf.Name, err)
		}
		p.Functions = append(p.Functions, fn)
	}
	return p, nil
}

func checkFormat(format string) error {
	if format == "" {
		return fmt.Errorf("missing format version")
	}
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("invalid format version %q: %w", format, err)
	}
	c, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("unsupported format version %s (want %s)", format, supportedFormats)
	}
	return nil
}

func decodeFunction(jf jsonFunction) (*Function, error) {
	ret, err := decodeType(jf.RetType)
	if err != nil {
		return nil, err
	}
	formals, err := decodeDecs(jf.Formals)
	if err != nil {
		return nil, err
	}
	locals, err := decodeDecs(jf.Locals)
	if err != nil {
		return nil, err
	}
	fn := &Function{RetType: ret, ClassId: jf.ClassId, Name: jf.Name, Formals: formals, Locals: locals}
	for _, jb := range jf.Blocks {
		b := &Block{Label: jb.Label}
		for i, js := range jb.Stms {
			s, err := decodeStm(js)
			if err != nil {
				return nil, fmt.Errorf("block %s statement %d: %w", jb.Label, i, err)
			}
			b.Stms = append(b.Stms, s)
		}
		if jb.Transfer != nil {
			t, err := decodeTransfer(*jb.Transfer)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", jb.Label, err)
			}
			b.Transfer = t
		}
		fn.Blocks = append(fn.Blocks, b)
	}
	return fn, nil
}

func decodeDecs(jds []jsonDec) ([]Dec, error) {
	var out []Dec
	for _, jd := range jds {
		t, err := decodeType(jd.Type)
		if err != nil {
			return nil, fmt.Errorf("declaration %s: %w", jd.Id, err)
		}
		out = append(out, Dec{Type: t, Id: jd.Id})
	}
	return out, nil
}

func decodeType(jt *jsonType) (Type, error) {
	if jt == nil {
		return nil, nil
	}
	switch jt.Kind {
	case "class":
		return ClassType{Id: jt.Id}, nil
	case "codeptr":
		return CodePtrType{}, nil
	case "int":
		return IntType{}, nil
	case "intArray":
		return IntArrayType{}, nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", jt.Kind)
	}
}

func decodeExp(je *jsonExp) (Exp, error) {
	if je == nil {
		return nil, fmt.Errorf("missing expression")
	}
	switch je.Kind {
	case "bop":
		if n := len(je.Operands); n < 1 || n > 2 {
			return nil, fmt.Errorf("operator %q has %d operands", je.Op, n)
		}
		t, err := decodeType(je.Type)
		if err != nil {
			return nil, err
		}
		return Bop{Op: je.Op, Operands: je.Operands, Type: t}, nil
	case "call":
		t, err := decodeType(je.Type)
		if err != nil {
			return nil, err
		}
		return Call{Func: je.Func, Args: je.Args, RetType: t}, nil
	case "id":
		t, err := decodeType(je.Type)
		if err != nil {
			return nil, err
		}
		return Eid{Id: je.Id, Type: t}, nil
	case "getMethod":
		return GetMethod{Obj: je.Obj, Class: je.Class, Method: je.Method}, nil
	case "int":
		return Int{N: je.N}, nil
	case "new":
		return New{Class: je.Class}, nil
	case "print":
		return Print{X: je.X}, nil
	case "length":
		return Length{X: je.X}, nil
	case "arraySelect":
		return ArraySelect{Array: je.X, Index: je.Index}, nil
	case "newIntArray":
		return NewIntArray{Size: je.X}, nil
	default:
		return nil, fmt.Errorf("unknown expression kind %q", je.Kind)
	}
}

func decodeStm(js jsonStm) (Stm, error) {
	switch js.Kind {
	case "assign":
		e, err := decodeExp(js.Exp)
		if err != nil {
			return nil, err
		}
		return Assign{X: js.X, Exp: e}, nil
	case "assignArray":
		idx, err := decodeExp(js.Index)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		val, err := decodeExp(js.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		return AssignArray{X: js.X, Index: idx, Value: val}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", js.Kind)
	}
}

func decodeTransfer(jt jsonTransfer) (Transfer, error) {
	switch jt.Kind {
	case "if":
		return If{Cond: jt.Cond, Then: jt.Then, Else: jt.Else}, nil
	case "jmp":
		return Jmp{Target: jt.Target}, nil
	case "ret":
		return Ret{Value: jt.Value}, nil
	default:
		return nil, fmt.Errorf("unknown transfer kind %q", jt.Kind)
	}
}
