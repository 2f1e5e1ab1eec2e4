// Package x64 - allocated code validation
package x64

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

// ValidationError is one problem found in allocated code
type ValidationError struct {
	Line    int
	Message string
	Code    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s\n  %s", e.Line, e.Message, e.Code)
}

// Validator checks allocated code before it is written out
type Validator struct {
	errors []ValidationError
	warns  []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

var (
	regPattern    = regexp.MustCompile(`%[a-z0-9_]+`)
	scaledPattern = regexp.MustCompile(`\(%[a-z0-9]+,%[a-z0-9]+,(\d+)\)`)
	immPattern    = regexp.MustCompile(`^\$(-?\d+)$`)
	otherRegs     = map[string]bool{"%al": true, "%bl": true, "%cl": true, "%dl": true, "%rip": true}
)

// ValidateProgram checks every function of an allocated program: no virtual
// operand is left, no instruction has two memory operands, every register is
// real, and each return restores the stack and the callee-saved registers the
// prologue pushed.
func ValidateProgram(prog *Program) error {
	v := NewValidator()
	line := 0
	for _, fn := range prog.Functions {
		line = v.checkOperands(fn, line)
	}
	if len(v.errors) == 0 {
		v.Validate(prog.String())
	}
	if len(v.errors) > 0 {
		return v.formatErrors()
	}
	v.logWarnings()
	return nil
}

// checkOperands looks at operands before they are rendered
func (v *Validator) checkOperands(fn *Function, line int) int {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			line++
			mems := 0
			for _, op := range in.Operands() {
				switch op := op.(type) {
				case Vid:
					v.addError(line, fmt.Sprintf("unallocated virtual register %s in %s", op.Id, fn.Name), in.String())
				case Incoming:
					v.addError(line, fmt.Sprintf("unresolved incoming argument %d in %s", op.Index, fn.Name), in.String())
				case Mem:
					mems++
				}
			}
			if mems > 1 {
				v.addError(line, "instruction has more than one memory operand", in.String())
			}
		}
	}
	return line
}

// Validate checks assembly text, returning the accumulated errors
func (v *Validator) Validate(assembly string) error {
	lines := strings.Split(assembly, "\n")

	v.validateRegisters(lines)
	v.validateFrames(lines)
	v.validateInstructionValidity(lines)
	v.validateMemoryAddressing(lines)

	if len(v.errors) > 0 {
		return v.formatErrors()
	}
	return nil
}

func (v *Validator) validateRegisters(lines []string) {
	for i, line := range lines {
		for _, reg := range regPattern.FindAllString(line, -1) {
			if !IsValidReg(Reg(reg)) && !otherRegs[reg] {
				v.addError(i+1, fmt.Sprintf("invalid register: %s", reg), line)
			}
		}
	}
}

// validateFrames walks each function tracking the stack depth in bytes.
// Every block starts at the depth the prologue left; every ret must find
// depth zero with all pushed callee-saved registers popped.
func (v *Validator) validateFrames(lines []string) {
	var (
		inFunction bool
		name       string
		depth      int
		baseDepth  int
		frameDepth int
		framed     bool
		sizing     bool
		pushed     []string
		popped     []string
	)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasSuffix(line, ":") && strings.HasPrefix(line, ".L"):
			if framed {
				depth = frameDepth
			}
			popped = nil
			continue
		case line == "" || strings.HasPrefix(line, "."):
			continue
		case strings.HasSuffix(line, ":"):
			inFunction = true
			name = strings.TrimSuffix(line, ":")
			depth, baseDepth, frameDepth = 0, 0, 0
			framed, sizing = false, false
			pushed, popped = nil, nil
			continue
		}
		if !inFunction {
			continue
		}

		fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
		op := fields[0]
		frameSize := sizing
		sizing = false
		switch {
		case op == "pushq":
			depth += WordSize
			if !framed && len(fields) == 2 && IsCalleeSaved(Reg(fields[1])) {
				pushed = append(pushed, fields[1])
			}
		case op == "popq":
			depth -= WordSize
			if len(fields) == 2 {
				popped = append(popped, fields[1])
			}
		case line == "movq %rsp, %rbp":
			baseDepth = depth
			frameDepth = depth
			framed = true
			sizing = true
		case line == "movq %rbp, %rsp":
			depth = baseDepth
		case (op == "subq" || op == "addq") && len(fields) == 3 && fields[2] == "%rsp":
			m := immPattern.FindStringSubmatch(fields[1])
			if m == nil {
				v.addError(i+1, "stack pointer adjusted by a non-constant", line)
				continue
			}
			n, _ := strconv.Atoi(m[1])
			if op == "addq" {
				n = -n
			}
			if frameSize && n > 0 {
				frameDepth += n
			}
			depth += n
		case op == "ret":
			if depth != 0 {
				v.addError(i+1, fmt.Sprintf("stack imbalance in %s: %d bytes left at ret", name, depth), line)
			}
			if !reversed(pushed, popped) {
				v.addError(i+1, fmt.Sprintf("callee-saved registers not restored in %s: pushed %v, popped %v", name, pushed, popped), line)
			}
		}
		if depth < 0 {
			v.addError(i+1, "stack underflow detected", line)
			depth = 0
		}
	}
}

// reversed reports whether popped is pushed in reverse order
func reversed(pushed, popped []string) bool {
	if len(pushed) != len(popped) {
		return false
	}
	for i := range pushed {
		if pushed[i] != popped[len(popped)-1-i] {
			return false
		}
	}
	return true
}

func (v *Validator) validateInstructionValidity(lines []string) {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasSuffix(line, ":") || strings.HasPrefix(line, ".") {
			continue
		}
		if !isValidInstruction(line) {
			v.addError(i+1, "malformed instruction", line)
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) >= 2 {
			dest := strings.TrimSpace(parts[len(parts)-1])
			if strings.HasPrefix(dest, "$") {
				v.addError(i+1, "immediate value cannot be destination", line)
			}
		}

		if strings.HasPrefix(line, "mov") && len(parts) == 2 {
			src := strings.TrimSpace(parts[0][strings.Index(parts[0], " ")+1:])
			dest := strings.TrimSpace(parts[1])
			if isMemoryOperand(src) && isMemoryOperand(dest) {
				v.addError(i+1, "x86-64 doesn't support memory-to-memory moves", line)
			}
		}

		if strings.HasPrefix(line, "idivq") {
			if i == 0 || !strings.Contains(lines[i-1], "cqto") {
				v.addWarn(i+1, "division without cqto may cause incorrect results", line)
			}
		}
	}
}

func (v *Validator) validateMemoryAddressing(lines []string) {
	for i, line := range lines {
		for _, match := range scaledPattern.FindAllStringSubmatch(line, -1) {
			switch match[1] {
			case "1", "2", "4", "8":
			default:
				v.addError(i+1, fmt.Sprintf("invalid scale factor: %s (must be 1, 2, 4, or 8)", match[1]), line)
			}
		}
	}
}

func (v *Validator) addError(line int, msg, code string) {
	v.errors = append(v.errors, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) addWarn(line int, msg, code string) {
	v.warns = append(v.warns, ValidationError{Line: line, Message: msg, Code: code})
}

func (v *Validator) formatErrors() error {
	var sb strings.Builder
	sb.WriteString("Assembly validation failed:\n")
	for _, err := range v.errors {
		sb.WriteString("  " + err.Error() + "\n")
	}
	return fmt.Errorf("%s", sb.String())
}

func (v *Validator) logWarnings() {
	for _, warn := range v.warns {
		logger.Warn("Assembly validation warning", "line", warn.Line, "msg", warn.Message)
	}
}

func isValidInstruction(line string) bool {
	validInsts := []string{
		"mov", "push", "pop", "add", "sub", "imul", "idiv", "cqto",
		"cmp", "set", "jmp", "jne", "je", "call", "ret", "lea",
		"and", "or", "xor",
	}
	for _, inst := range validInsts {
		if strings.HasPrefix(line, inst) {
			return true
		}
	}
	return false
}

func isMemoryOperand(operand string) bool {
	return strings.Contains(operand, "(") && strings.Contains(operand, ")")
}
