package reil

import (
	"fmt"
	"math/big"
)

// Value is the value of a REIL operand; one of Reg, Temp, Lit, SubAddr or
// Label.
type Value interface {
	fmt.Stringer
	// isValue ensures that only REIL values can be assigned to the Value
	// interface.
	isValue()
}

// Reg is a native register (e.g. "eax"), a condition flag (e.g. "ZF") or a
// pseudo-register (e.g. "fsbase").
type Reg string

// Temp is a temporary register, unique within a translation environment.
type Temp uint32

// Lit is an integer literal. The zero value is not valid; use NewLit or
// NewBigLit.
type Lit struct {
	// Literal value; never mutated after creation.
	x *big.Int
}

// SubAddr is the address of a REIL instruction within the REIL translation of
// a native instruction.
type SubAddr Addr

// Label is a placeholder jump target within the REIL translation of a native
// instruction, resolved to a SubAddr by the Builder.
type Label uint32

// String returns the string representation of the register.
func (v Reg) String() string { return string(v) }

// String returns the string representation of the temporary register.
func (v Temp) String() string { return fmt.Sprintf("t%d", uint32(v)) }

// String returns the decimal string representation of the literal.
func (v Lit) String() string { return v.x.String() }

// Int returns a copy of the literal value.
func (v Lit) Int() *big.Int { return new(big.Int).Set(v.x) }

// String returns the string representation of the sub-address in
// "native.local" form.
func (v SubAddr) String() string {
	return fmt.Sprintf("%X.%d", v.Native, v.Local)
}

// String returns the string representation of the label.
func (v Label) String() string { return fmt.Sprintf("label%d", uint32(v)) }

func (Reg) isValue()     {}
func (Temp) isValue()    {}
func (Lit) isValue()     {}
func (SubAddr) isValue() {}
func (Label) isValue()   {}

// Operand is a sized REIL operand. The zero value is the empty operand.
type Operand struct {
	// Operand value; nil if empty.
	Value Value
	// Operand size.
	Size Size
}

// EmptyOperand is the empty operand.
var EmptyOperand = Operand{Size: Empty}

// NewReg returns a register operand.
func NewReg(name string, size Size) Operand {
	return Operand{Value: Reg(name), Size: size}
}

// NewTemp returns a temporary register operand.
func NewTemp(index uint32, size Size) Operand {
	return Operand{Value: Temp(index), Size: size}
}

// NewLit returns an integer literal operand.
func NewLit(x int64, size Size) Operand {
	return Operand{Value: Lit{x: big.NewInt(x)}, Size: size}
}

// NewBigLit returns an integer literal operand of the given value. The value
// is copied.
func NewBigLit(x *big.Int, size Size) Operand {
	return Operand{Value: Lit{x: new(big.Int).Set(x)}, Size: size}
}

// NewSubAddr returns a sub-instruction jump target operand.
func NewSubAddr(native uint64, local uint8) Operand {
	return Operand{Value: SubAddr{Native: native, Local: local}, Size: Address}
}

// Target returns a jump target operand of the label.
func (v Label) Target() Operand {
	return Operand{Value: v, Size: Address}
}

// IsEmpty reports whether the operand is empty.
func (op Operand) IsEmpty() bool {
	return op.Value == nil
}

// String returns the string representation of the operand.
func (op Operand) String() string {
	if op.IsEmpty() {
		return "empty"
	}
	return fmt.Sprintf("%v %v", op.Size, op.Value)
}
