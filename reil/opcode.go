package reil

import "fmt"

// Opcode is a REIL opcode.
type Opcode uint8

// REIL opcodes.
const (
	// ADD x, y -> z computes z = x + y.
	ADD Opcode = iota
	// AND x, y -> z computes z = x & y.
	AND
	// BISZ x -> z sets z to 1 if x is zero, and 0 otherwise.
	BISZ
	// BSH x, y -> z shifts x left by y bits if y is positive, and right by -y
	// bits if y is negative.
	BSH
	// JCC x -> z transfers control to z if x is nonzero.
	JCC
	// LDM x -> z loads z from memory at address x.
	LDM
	// MUL x, y -> z computes z = x * y.
	MUL
	// NOP does nothing.
	NOP
	// OR x, y -> z computes z = x | y.
	OR
	// STM x -> z stores x to memory at address z.
	STM
	// STR x -> z copies x into z.
	STR
	// SUB x, y -> z computes z = x - y.
	SUB
	// UNDEF -> z marks z as undefined.
	UNDEF
	// XOR x, y -> z computes z = x ^ y.
	XOR
)

// opcodeName maps from REIL opcode to mnemonic.
var opcodeName = [...]string{
	ADD:   "add",
	AND:   "and",
	BISZ:  "bisz",
	BSH:   "bsh",
	JCC:   "jcc",
	LDM:   "ldm",
	MUL:   "mul",
	NOP:   "nop",
	OR:    "or",
	STM:   "stm",
	STR:   "str",
	SUB:   "sub",
	UNDEF: "undef",
	XOR:   "xor",
}

// String returns the mnemonic of the REIL opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodeName) {
		return opcodeName[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}
