package op

import (
	"fmt"
	"strings"
)

// Opcode is one of the sixteen fixed instructions, encoded as a single
// byte in file form.
type Opcode uint8

const (
	Nop Opcode = iota
	Jmp
	Mov
	Add
	Sub
	Neg
	SnapSave
	SnapSwap
	SnapClear
	RegsClear
	Jz
	Jnz
	Jg
	Jl
	Halt
	Sys

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	Nop:       "nop",
	Jmp:       "jmp",
	Mov:       "mov",
	Add:       "add",
	Sub:       "sub",
	Neg:       "neg",
	SnapSave:  "snap_save",
	SnapSwap:  "snap_swap",
	SnapClear: "snap_clear",
	RegsClear: "regs_clear",
	Jz:        "jz",
	Jnz:       "jnz",
	Jg:        "jg",
	Jl:        "jl",
	Halt:      "halt",
	Sys:       "sys",
}

// variadicArity marks arity for opcodes whose argument count is not fixed.
const variadicArity = -1

var opcodeArity = [numOpcodes]int{
	Nop:       0,
	Jmp:       1,
	Mov:       2,
	Add:       3,
	Sub:       3,
	Neg:       2,
	SnapSave:  0,
	SnapSwap:  0,
	SnapClear: 0,
	RegsClear: 0,
	Jz:        2,
	Jnz:       2,
	Jg:        2,
	Jl:        2,
	Halt:      0,
	Sys:       variadicArity,
}

// String returns the canonical lowercase mnemonic.
func (op Opcode) String() string {
	if op >= numOpcodes {
		return fmt.Sprintf("opcode(%d)", uint8(op))
	}
	return opcodeNames[op]
}

// Valid reports whether op is one of the sixteen defined opcodes.
func (op Opcode) Valid() bool {
	return op < numOpcodes
}

// Arity returns the fixed argument count for op, or ok=false if op takes
// a variable number of arguments (only sys, which additionally requires
// at least one argument: the syscall id).
func (op Opcode) Arity() (n int, ok bool) {
	if !op.Valid() {
		return 0, false
	}
	a := opcodeArity[op]
	if a == variadicArity {
		return 0, false
	}
	return a, true
}

// ParseOpcode looks up a mnemonic case-insensitively.
func ParseOpcode(name string) (Opcode, bool) {
	lower := strings.ToLower(name)
	for i, n := range opcodeNames {
		if n == lower {
			return Opcode(i), true
		}
	}
	return 0, false
}
