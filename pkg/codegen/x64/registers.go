// Package x64 - register file and calling convention
package x64

// Register names
const (
	RAX Reg = "%rax"
	RBX Reg = "%rbx"
	RCX Reg = "%rcx"
	RDX Reg = "%rdx"
	RSI Reg = "%rsi"
	RDI Reg = "%rdi"
	RBP Reg = "%rbp"
	RSP Reg = "%rsp"
	R8  Reg = "%r8"
	R9  Reg = "%r9"
	R10 Reg = "%r10"
	R11 Reg = "%r11"
	R12 Reg = "%r12"
	R13 Reg = "%r13"
	R14 Reg = "%r14"
	R15 Reg = "%r15"
)

// WordSize is the byte width of every value
const WordSize = 8

var (
	// System V argument registers
	ArgRegs = []Reg{RDI, RSI, RDX, RCX, R8, R9}
	// Return register
	RetReg = RAX
	// Caller-saved
	CallerSaved = []Reg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}
	// Callee-saved, and the allocator's pool
	CalleeSaved = []Reg{RBX, R12, R13, R14, R15}
	// Scratch is reserved for the allocator's memory-to-memory moves;
	// instruction templates never mention it.
	Scratch = R11
)

var validRegs = map[Reg]bool{
	RAX: true, RBX: true, RCX: true, RDX: true,
	RSI: true, RDI: true, RBP: true, RSP: true,
	R8: true, R9: true, R10: true, R11: true,
	R12: true, R13: true, R14: true, R15: true,
}

// IsValidReg reports whether r names a 64-bit general purpose register
func IsValidReg(r Reg) bool {
	return validRegs[r]
}

// IsCalleeSaved reports whether the callee must preserve r
func IsCalleeSaved(r Reg) bool {
	for _, c := range CalleeSaved {
		if c == r {
			return true
		}
	}
	return r == RBP || r == RSP
}

// IncomingOffset is the %rbp offset of the Index-th argument once the
// prologue has pushed %rbp and pushed more registers.
func IncomingOffset(index, pushed int) int {
	return WordSize*(2+pushed) + WordSize*(index-len(ArgRegs))
}
