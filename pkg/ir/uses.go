package ir

// ExpUses returns every Id an expression reads, in operand order. The code
// pointer of a Call, the object of a GetMethod and both array operands count.
func ExpUses(e Exp) []Id {
	switch e := e.(type) {
	case Bop:
		return append([]Id(nil), e.Operands...)
	case Call:
		return append([]Id{e.Func}, e.Args...)
	case Eid:
		return []Id{e.Id}
	case GetMethod:
		return []Id{e.Obj}
	case Int:
		return nil
	case New:
		return nil
	case Print:
		return []Id{e.X}
	case Length:
		return []Id{e.X}
	case ArraySelect:
		return []Id{e.Array, e.Index}
	case NewIntArray:
		return []Id{e.Size}
	default:
		Bug("ir.ExpUses", "unknown expression %T", e)
		return nil
	}
}

// StmUses returns the Ids a statement reads. An array store reads the array
// pointer as well as its index and value.
func StmUses(s Stm) []Id {
	switch s := s.(type) {
	case Assign:
		return ExpUses(s.Exp)
	case AssignArray:
		uses := []Id{s.X}
		uses = append(uses, ExpUses(s.Index)...)
		return append(uses, ExpUses(s.Value)...)
	default:
		Bug("ir.StmUses", "unknown statement %T", s)
		return nil
	}
}

// StmDefs returns the Ids a statement writes. An array store writes memory,
// not its array variable, so it defines nothing.
func StmDefs(s Stm) []Id {
	switch s := s.(type) {
	case Assign:
		return []Id{s.X}
	case AssignArray:
		return nil
	default:
		Bug("ir.StmDefs", "unknown statement %T", s)
		return nil
	}
}

// TransferUses returns the operand of If and Ret.
func TransferUses(t Transfer) []Id {
	switch t := t.(type) {
	case If:
		return []Id{t.Cond}
	case Jmp:
		return nil
	case Ret:
		return []Id{t.Value}
	default:
		Bug("ir.TransferUses", "unknown transfer %T", t)
		return nil
	}
}

// HasSideEffect reports whether a statement must survive even when the Id it
// defines is dead: prints, calls (the callee may print) and array stores.
func HasSideEffect(s Stm) bool {
	switch s := s.(type) {
	case Assign:
		switch s.Exp.(type) {
		case Print, Call:
			return true
		default:
			return false
		}
	case AssignArray:
		return true
	default:
		Bug("ir.HasSideEffect", "unknown statement %T", s)
		return false
	}
}
