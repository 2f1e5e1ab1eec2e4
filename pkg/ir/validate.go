package ir

import (
	"errors"
	"fmt"
)

// Validate checks the shape every pass relies on: unique labels, exactly one
// transfer per block, existing branch targets, declared or defined Ids, and
// Eid operands in array stores.
func Validate(p *Program) error {
	var errs []error
	for _, fn := range p.Functions {
		errs = append(errs, validateFunction(fn)...)
	}
	if p.MainFunc != "" && p.Function(p.MainClass, p.MainFunc) == nil {
		errs = append(errs, fmt.Errorf("main function %s.%s not found", p.MainClass, p.MainFunc))
	}
	return errors.Join(errs...)
}

func validateFunction(fn *Function) []error {
	var errs []error
	name := fn.QualifiedName()
	if len(fn.Blocks) == 0 {
		return []error{fmt.Errorf("%s: function has no blocks", name)}
	}

	known := make(map[Id]bool)
	for _, d := range fn.Formals {
		known[d.Id] = true
	}
	for _, d := range fn.Locals {
		known[d.Id] = true
	}
	labels := make(map[Label]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if labels[b.Label] {
			errs = append(errs, fmt.Errorf("%s: duplicate label %s", name, b.Label))
		}
		labels[b.Label] = true
		for _, s := range b.Stms {
			known[s.Dest()] = true
		}
	}

	for _, b := range fn.Blocks {
		if b.Transfer == nil {
			errs = append(errs, fmt.Errorf("%s: block %s has no transfer", name, b.Label))
			continue
		}
		for _, s := range b.Stms {
			if aa, ok := s.(AssignArray); ok {
				if _, ok := aa.Index.(Eid); !ok {
					errs = append(errs, fmt.Errorf("%s: block %s: array index is %T, want Eid", name, b.Label, aa.Index))
					continue
				}
				if _, ok := aa.Value.(Eid); !ok {
					errs = append(errs, fmt.Errorf("%s: block %s: array value is %T, want Eid", name, b.Label, aa.Value))
					continue
				}
			}
			for _, u := range StmUses(s) {
				if !known[u] {
					errs = append(errs, fmt.Errorf("%s: block %s: %s is never declared or defined", name, b.Label, u))
				}
			}
		}
		for _, u := range TransferUses(b.Transfer) {
			if !known[u] {
				errs = append(errs, fmt.Errorf("%s: block %s: %s is never declared or defined", name, b.Label, u))
			}
		}
		for _, s := range Successors(b.Transfer) {
			if !labels[s] {
				errs = append(errs, fmt.Errorf("%s: block %s jumps to unknown label %s", name, b.Label, s))
			}
		}
	}
	return errs
}
