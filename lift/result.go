package lift

import (
	"fmt"

	"github.com/mewmew/reil/reil"
)

// ResultKind specifies the kind of an operand evaluation result.
type ResultKind uint8

// Result kinds.
const (
	// Value held in a register or temporary register.
	ResultRegister ResultKind = iota + 1
	// Value located in memory.
	ResultMemoryAccess
	// Integer literal value.
	ResultLiteral
)

// String returns the string representation of the result kind.
func (kind ResultKind) String() string {
	switch kind {
	case ResultRegister:
		return "register"
	case ResultMemoryAccess:
		return "memory access"
	case ResultLiteral:
		return "literal"
	}
	return fmt.Sprintf("ResultKind(%d)", uint8(kind))
}

// Result is the result of evaluating an operand tree.
type Result struct {
	// Operand holding the value. For memory accesses evaluated without
	// loading, the operand holds the address.
	Value reil.Operand
	// Size of the operand as specified by the operand tree.
	Size reil.Size
	// Result kind.
	Kind ResultKind
	// Address of memory accesses; empty for other result kinds.
	Address reil.Operand
	// Unaddressed REIL instructions emitted while evaluating the operand tree,
	// in emission order.
	Insts []*reil.Instruction
}

// String returns the string representation of the result.
func (res *Result) String() string {
	if res.Kind == ResultMemoryAccess {
		return fmt.Sprintf("%v %v (address %v)", res.Kind, res.Value, res.Address)
	}
	return fmt.Sprintf("%v %v", res.Kind, res.Value)
}
