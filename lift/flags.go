package lift

import (
	"github.com/mewmew/reil/reil"
)

// Status flags of the EFLAGS register, as single-byte pseudo-registers.
var (
	cf = reil.NewReg("CF", reil.Byte)
	pf = reil.NewReg("PF", reil.Byte)
	af = reil.NewReg("AF", reil.Byte)
	zf = reil.NewReg("ZF", reil.Byte)
	sf = reil.NewReg("SF", reil.Byte)
	of = reil.NewReg("OF", reil.Byte)
	df = reil.NewReg("DF", reil.Byte)
)

// flagBit is a flag and its bit position within the EFLAGS register.
type flagBit struct {
	flag reil.Operand
	bit  int64
}

// Flags stored by LAHF and PUSHF, ordered by bit position.
var (
	lowFlags = []flagBit{{cf, 0}, {pf, 2}, {af, 4}, {zf, 6}, {sf, 7}}
	allFlags = []flagBit{{cf, 0}, {pf, 2}, {af, 4}, {zf, 6}, {sf, 7}, {df, 10}, {of, 11}}
)

// arithMode specifies optional behaviour of arithmetic flag computations.
type arithMode uint8

// Arithmetic flag modes.
const (
	// Add (or subtract) the carry flag as carry-in (or borrow).
	withCarry arithMode = 1 << iota
	// Leave the carry flag unmodified.
	keepCarry
)

// arith emits ADD or SUB of x and y of the given size, updating CF, OF, SF, ZF,
// AF and PF, and returns the result truncated to size.
func (t *translator) arith(op reil.Opcode, x, y reil.Operand, size reil.Size, mode arithMode) reil.Operand {
	msb := bigLit(size.MSBMask(), size)
	next := size.Next()
	// The carry-in is read before CF is overwritten by the carry-out.
	var carryIn reil.Operand
	if mode&withCarry != 0 {
		carryIn = t.calc(reil.STR, cf, reil.EmptyOperand, reil.Byte)
	}
	xMSB := t.calc(reil.AND, x, msb, size)
	yMSB := t.calc(reil.AND, y, msb, size)
	r := t.calc(op, x, y, next)
	if mode&withCarry != 0 {
		r = t.calc(op, r, carryIn, next)
	}
	rMSB := t.calc(reil.AND, r, msb, size)
	t.emit(reil.BSH, rMSB, lit(size.ShiftMSBToLSB(), reil.Byte), sf)

	// Overflow if the operands have equal (ADD) or different (SUB) signs and
	// the sign of the result differs from the sign of x.
	opsSign := t.calc(reil.XOR, xMSB, yMSB, size)
	if op == reil.ADD {
		opsSign = t.calc(reil.XOR, opsSign, msb, size)
	}
	resSign := t.calc(reil.XOR, xMSB, rMSB, size)
	overflow := t.calc(reil.AND, opsSign, resSign, size)
	t.emit(reil.BSH, overflow, lit(size.ShiftMSBToLSB(), reil.Byte), of)

	if mode&keepCarry == 0 {
		carry := t.calc(reil.AND, r, bigLit(size.CarryMask(), next), next)
		t.emit(reil.BSH, carry, lit(size.CarryShift(), reil.Byte), cf)
	}

	// Auxiliary carry out of bit 3.
	xLow := t.calc(reil.AND, x, lit(0xF, reil.Byte), reil.Byte)
	yLow := t.calc(reil.AND, y, lit(0xF, reil.Byte), reil.Byte)
	low := t.calc(op, xLow, yLow, reil.Byte)
	if mode&withCarry != 0 {
		low = t.calc(op, low, carryIn, reil.Byte)
	}
	aux := t.calc(reil.AND, low, lit(0x10, reil.Byte), reil.Byte)
	t.emit(reil.BSH, aux, lit(-4, reil.Byte), af)

	res := t.mask(r, size)
	t.emit(reil.BISZ, res, reil.EmptyOperand, zf)
	t.parity(res)
	return res
}

// logicFlags updates the flags after a logical operation with the given result
// of the given size; CF and OF are cleared, AF is undefined.
func (t *translator) logicFlags(res reil.Operand, size reil.Size) {
	t.emit(reil.STR, lit(0, reil.Byte), reil.EmptyOperand, cf)
	t.emit(reil.STR, lit(0, reil.Byte), reil.EmptyOperand, of)
	t.signFlag(res, size)
	t.emit(reil.BISZ, res, reil.EmptyOperand, zf)
	t.parity(res)
	t.undef(af)
}

// signFlag sets SF to the most significant bit of x of the given size.
func (t *translator) signFlag(x reil.Operand, size reil.Size) {
	m := t.calc(reil.AND, x, bigLit(size.MSBMask(), size), size)
	t.emit(reil.BSH, m, lit(size.ShiftMSBToLSB(), reil.Byte), sf)
}

// parity sets PF if the least significant byte of x has an even number of set
// bits.
func (t *translator) parity(x reil.Operand) {
	lsb := t.calc(reil.AND, x, lit(0xFF, reil.Byte), reil.Byte)
	hi := t.calc(reil.BSH, lsb, lit(-4, reil.Byte), reil.Byte)
	folded := t.calc(reil.XOR, lsb, hi, reil.Byte)
	nibble := t.calc(reil.AND, folded, lit(0xF, reil.Byte), reil.Byte)
	// Bit n of 0x9669 is set if n has an even number of set bits. The table is
	// its own bit reversal, so shifting it left by n moves bit n to bit 15.
	shifted := t.calc(reil.BSH, lit(0x9669, reil.Word), nibble, reil.Word)
	bit := t.calc(reil.AND, shifted, lit(0x8000, reil.Word), reil.Word)
	t.emit(reil.BSH, bit, lit(-15, reil.Byte), pf)
}

// undef marks the given register as undefined.
func (t *translator) undef(reg reil.Operand) {
	t.emit(reil.UNDEF, reil.EmptyOperand, reil.EmptyOperand, reg)
}

// extendSign sign-extends x from size from to the larger size to.
func (t *translator) extendSign(x reil.Operand, from, to reil.Size) reil.Operand {
	msb := bigLit(from.MSBMask(), from)
	flipped := t.calc(reil.XOR, x, msb, from)
	return t.calc(reil.SUB, flipped, msb, to)
}

// signMask returns all set bits of the given size if x is negative, and zero
// otherwise.
func (t *translator) signMask(x reil.Operand, size reil.Size) reil.Operand {
	m := t.calc(reil.AND, x, bigLit(size.MSBMask(), size), size)
	sign := t.calc(reil.BSH, m, lit(size.ShiftMSBToLSB(), reil.Byte), size)
	return t.calc(reil.SUB, lit(0, size), sign, size)
}

// not returns the logical negation of the single-bit x.
func (t *translator) not(x reil.Operand) reil.Operand {
	return t.calc(reil.XOR, x, lit(1, reil.Byte), reil.Byte)
}

// packFlags returns the given flags packed into a value of the given size,
// with the reserved bit 1 set.
func (t *translator) packFlags(flags []flagBit, size reil.Size) reil.Operand {
	acc := lit(2, size)
	for _, f := range flags {
		shifted := t.calc(reil.BSH, f.flag, lit(f.bit, reil.Byte), size)
		acc = t.calc(reil.OR, acc, shifted, size)
	}
	return acc
}

// unpackFlags sets the given flags from their bits of x of the given size.
func (t *translator) unpackFlags(flags []flagBit, x reil.Operand, size reil.Size) {
	for _, f := range flags {
		shifted := t.calc(reil.BSH, x, lit(-f.bit, reil.Byte), size)
		t.emit(reil.AND, shifted, lit(1, reil.Byte), f.flag)
	}
}
