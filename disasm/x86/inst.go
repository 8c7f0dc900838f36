package x86

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mewmew/reil/bin"
	"golang.org/x/arch/x86/x86asm"
)

// Prefix is a set of x86 instruction prefixes relevant to instruction
// semantics.
type Prefix uint8

// Instruction prefixes.
const (
	// LOCK prefix (0xF0).
	PrefixLock Prefix = 1 << iota
	// REP or REPE prefix (0xF3).
	PrefixRep
	// REPNE prefix (0xF2).
	PrefixRepne
)

// String returns the string representation of the prefix set.
func (p Prefix) String() string {
	var ss []string
	if p&PrefixLock != 0 {
		ss = append(ss, "lock")
	}
	if p&PrefixRep != 0 {
		ss = append(ss, "rep")
	}
	if p&PrefixRepne != 0 {
		ss = append(ss, "repne")
	}
	return strings.Join(ss, " ")
}

// Instruction is a decoded x86 instruction.
type Instruction struct {
	// Address of instruction.
	Addr bin.Addr
	// Instruction mnemonic.
	Op x86asm.Op
	// Instruction prefixes.
	Prefix Prefix
	// Length of instruction in bytes.
	Len int
	// Operand trees, in Intel operand order (destination first).
	Operands []*Node
}

// NextAddr returns the address of the instruction following inst.
func (inst *Instruction) NextAddr() bin.Addr {
	return inst.Addr + bin.Addr(inst.Len)
}

// String returns the string representation of the instruction in Intel
// syntax.
func (inst *Instruction) String() string {
	buf := &bytes.Buffer{}
	if inst.Prefix != 0 {
		fmt.Fprintf(buf, "%v ", inst.Prefix)
	}
	buf.WriteString(strings.ToLower(inst.Op.String()))
	for i, operand := range inst.Operands {
		if i == 0 {
			buf.WriteString(" ")
		} else {
			buf.WriteString(", ")
		}
		fmt.Fprintf(buf, "%v", operand)
	}
	return buf.String()
}
