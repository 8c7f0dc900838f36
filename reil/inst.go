// Package reil provides a representation of the REIL intermediate language.
//
// REIL instructions operate on three sized operands; two inputs and one
// output. The REIL translation of a native instruction occupies a private
// address range, the composite address of a REIL instruction being
// nativeAddress*256 + localIndex.
package reil

import (
	"fmt"
)

// Addr is the composite address of a REIL instruction.
type Addr struct {
	// Address of the native instruction.
	Native uint64
	// Index of the REIL instruction within the translation of the native
	// instruction.
	Local uint8
}

// Uint64 returns the composite address nativeAddress*256 + localIndex.
//
// Native addresses at or above 1<<56 overflow the composite address.
func (addr Addr) Uint64() uint64 {
	return addr.Native<<8 | uint64(addr.Local)
}

// String returns the hexadecimal representation of the composite address.
func (addr Addr) String() string {
	return fmt.Sprintf("%08X%02X", addr.Native, addr.Local)
}

// Less reports whether addr is ordered before other.
func (addr Addr) Less(other Addr) bool {
	if addr.Native != other.Native {
		return addr.Native < other.Native
	}
	return addr.Local < other.Local
}

// Instruction is a REIL instruction.
type Instruction struct {
	// Composite address of the instruction.
	Addr Addr
	// REIL opcode.
	Op Opcode
	// First input operand.
	Src1 Operand
	// Second input operand.
	Src2 Operand
	// Output operand.
	Dst Operand
}

// String returns the string representation of the instruction.
func (inst *Instruction) String() string {
	return fmt.Sprintf("%v: %v [%v, %v, %v]", inst.Addr, inst.Op, inst.Src1, inst.Src2, inst.Dst)
}

// IsJump reports whether the instruction is a conditional jump.
func (inst *Instruction) IsJump() bool {
	return inst.Op == JCC
}

// IsUnconditional reports whether the instruction is a jump with a nonzero
// literal condition.
func (inst *Instruction) IsUnconditional() bool {
	if inst.Op != JCC {
		return false
	}
	lit, ok := inst.Src1.Value.(Lit)
	return ok && lit.x.Sign() != 0
}
