package reil

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

// Size is the bit-width of a REIL operand.
//
// Sizes are ordered; Next returns the next larger size, which is used to
// perform arithmetic that may overflow before truncating the result back to
// the original size.
type Size uint8

// Operand sizes.
const (
	Byte Size = iota
	Word
	Dword
	Qword
	Oword
	// Address is the size of sub-instruction jump targets.
	Address
	// Empty is the size of unused operands.
	Empty
)

// sizeName maps from operand size to its name.
var sizeName = [...]string{
	Byte:    "byte",
	Word:    "word",
	Dword:   "dword",
	Qword:   "qword",
	Oword:   "oword",
	Address: "address",
	Empty:   "empty",
}

// String returns the string representation of the operand size.
func (size Size) String() string {
	if int(size) < len(sizeName) {
		return sizeName[size]
	}
	return fmt.Sprintf("Size(%d)", uint8(size))
}

// ParseSize returns the operand size with the given name (e.g. "dword").
func ParseSize(s string) (Size, error) {
	for size, name := range sizeName {
		if name == s {
			return Size(size), nil
		}
	}
	return 0, errors.Errorf("invalid operand size %q", s)
}

// SizeOfBits returns the operand size of the given bit-width.
func SizeOfBits(bits int) (Size, error) {
	switch bits {
	case 8:
		return Byte, nil
	case 16:
		return Word, nil
	case 32:
		return Dword, nil
	case 64:
		return Qword, nil
	case 128:
		return Oword, nil
	}
	return 0, errors.Errorf("invalid operand bit-width %d", bits)
}

// Bits returns the bit-width of the operand size. The address size is 64 bits
// wide and the empty size has no bits.
func (size Size) Bits() int {
	switch size {
	case Byte:
		return 8
	case Word:
		return 16
	case Dword:
		return 32
	case Qword, Address:
		return 64
	case Oword:
		return 128
	}
	return 0
}

// Bytes returns the width of the operand size in bytes.
func (size Size) Bytes() int {
	return size.Bits() / 8
}

// Next returns the next larger operand size.
//
// Pre-condition: size is in the range Byte through Qword.
func (size Size) Next() Size {
	if size > Qword {
		panic(fmt.Errorf("no operand size larger than %v", size))
	}
	return size + 1
}

// MSBMask returns a mask isolating the most significant bit of the size.
func (size Size) MSBMask() *big.Int {
	return new(big.Int).Lsh(one, uint(size.Bits()-1))
}

// AllBitsMask returns a mask with every bit of the size set.
func (size Size) AllBitsMask() *big.Int {
	return new(big.Int).Sub(size.CarryMask(), one)
}

// CarryMask returns a mask isolating the bit just above the size; i.e. the
// carry bit of an operation performed at the next larger size.
func (size Size) CarryMask() *big.Int {
	return new(big.Int).Lsh(one, uint(size.Bits()))
}

// ShiftMSBToLSB returns the BSH shift amount moving the most significant bit
// of the size into the least significant bit.
func (size Size) ShiftMSBToLSB() int64 {
	return -int64(size.Bits() - 1)
}

// CarryShift returns the BSH shift amount moving the carry bit of the size
// into the least significant bit.
func (size Size) CarryShift() int64 {
	return -int64(size.Bits())
}

// Truncate returns x truncated to the size, interpreting negative values in
// two's complement.
func (size Size) Truncate(x *big.Int) *big.Int {
	return new(big.Int).And(x, size.AllBitsMask())
}

// Signed returns x interpreted as a signed two's complement integer of the
// size.
func (size Size) Signed(x *big.Int) *big.Int {
	v := size.Truncate(x)
	if v.Bit(size.Bits()-1) == 1 {
		v.Sub(v, size.CarryMask())
	}
	return v
}

var one = big.NewInt(1)
