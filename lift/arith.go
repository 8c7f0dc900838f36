package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// --- [ ADD, ADC, SUB, SBB, CMP ] ---------------------------------------------

// translateInstArith translates the x86 ADD, ADC, SUB, SBB and CMP
// instructions.
func (t *translator) translateInstArith(op x86asm.Op) error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	src, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	var (
		opcode = reil.ADD
		mode   arithMode
	)
	switch op {
	case x86asm.ADC:
		mode = withCarry
	case x86asm.SUB, x86asm.CMP:
		opcode = reil.SUB
	case x86asm.SBB:
		opcode, mode = reil.SUB, withCarry
	}
	res := t.arith(opcode, dst.Value, src.Value, dst.Size, mode)
	if op == x86asm.CMP {
		return nil
	}
	return t.writeBack(ops[0], res, dst)
}

// --- [ XADD ] ----------------------------------------------------------------

// translateInstXADD translates the x86 XADD instruction.
func (t *translator) translateInstXADD() error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	src, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	sum := t.arith(reil.ADD, dst.Value, src.Value, dst.Size, 0)
	if err := t.writeBack(ops[1], dst.Value, src); err != nil {
		return err
	}
	return t.writeBack(ops[0], sum, dst)
}

// --- [ CMPXCHG ] -------------------------------------------------------------

// translateInstCMPXCHG translates the x86 CMPXCHG instruction. The destination
// is written unconditionally; when the comparison fails it receives its own
// value and the accumulator receives the destination.
func (t *translator) translateInstCMPXCHG() error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	src, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	size := dst.Size
	acc := x86.FamilyReg(familyA, size)
	a, err := t.loadRegister(acc, true)
	if err != nil {
		return err
	}
	t.arith(reil.SUB, a.Value, dst.Value, size, 0)
	v := t.choose(zf, src.Value, dst.Value, size)
	if err := t.writeBack(ops[0], v, dst); err != nil {
		return err
	}
	end := t.b.NewLabel()
	t.jump(zf, end.Target())
	if err := t.moveToRegister(acc, dst.Value); err != nil {
		return err
	}
	t.b.Bind(end)
	return nil
}

// --- [ INC, DEC ] ------------------------------------------------------------

// translateInstINC translates the x86 INC and DEC instructions.
func (t *translator) translateInstINC(op x86asm.Op) error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	opcode := reil.ADD
	if op == x86asm.DEC {
		opcode = reil.SUB
	}
	res := t.arith(opcode, dst.Value, lit(1, dst.Size), dst.Size, keepCarry)
	return t.writeBack(ops[0], res, dst)
}

// --- [ NEG ] -----------------------------------------------------------------

// translateInstNEG translates the x86 NEG instruction.
func (t *translator) translateInstNEG() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	res := t.arith(reil.SUB, lit(0, dst.Size), dst.Value, dst.Size, 0)
	return t.writeBack(ops[0], res, dst)
}

// --- [ MUL ] -----------------------------------------------------------------

// translateInstMUL translates the one-operand unsigned x86 MUL instruction.
func (t *translator) translateInstMUL() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	src, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	size := src.Size
	acc, err := t.loadRegister(x86.FamilyReg(familyA, size), true)
	if err != nil {
		return err
	}
	product := t.calc(reil.MUL, acc.Value, src.Value, size.Next())
	hi, err := t.storeProduct(product, size)
	if err != nil {
		return err
	}
	// CF and OF are set if the upper half of the product is non-zero.
	zero := t.calc(reil.BISZ, hi, reil.EmptyOperand, reil.Byte)
	t.emit(reil.XOR, zero, lit(1, reil.Byte), cf)
	t.emit(reil.STR, cf, reil.EmptyOperand, of)
	t.undefMulFlags()
	return nil
}

// --- [ IMUL ] ----------------------------------------------------------------

// translateInstIMUL translates the one, two and three-operand signed x86 IMUL
// instructions.
func (t *translator) translateInstIMUL() error {
	ops := t.inst.Operands
	switch len(ops) {
	case 1, 2, 3:
	default:
		return errorf(KindMalformedInstruction, "invalid number of operands of %v instruction; expected 1, 2 or 3, got %d", t.inst.Op, len(ops))
	}
	if _, err := t.operands(len(ops)); err != nil {
		return err
	}
	var x, y, dst *Result
	var err error
	switch len(ops) {
	case 1:
		if y, err = t.load(ops[0], t.arch, true); err != nil {
			return err
		}
		if x, err = t.loadRegister(x86.FamilyReg(familyA, y.Size), true); err != nil {
			return err
		}
	case 2:
		if x, err = t.load(ops[0], t.arch, true); err != nil {
			return err
		}
		if y, err = t.load(ops[1], t.arch, true); err != nil {
			return err
		}
		dst = x
	case 3:
		if x, err = t.load(ops[1], t.arch, true); err != nil {
			return err
		}
		if y, err = t.load(ops[2], t.arch, true); err != nil {
			return err
		}
		if dst, err = t.load(ops[0], t.arch, false); err != nil {
			return err
		}
	}
	size := x.Size
	next := size.Next()
	sx := t.extendSign(x.Value, size, next)
	sy := t.extendSign(y.Value, size, next)
	product := t.calc(reil.MUL, sx, sy, next)
	lo := t.mask(product, size)
	if len(ops) == 1 {
		if _, err := t.storeProduct(product, size); err != nil {
			return err
		}
	} else if err := t.writeBack(ops[0], lo, dst); err != nil {
		return err
	}
	// CF and OF are set if the product does not fit in the lower half as a
	// signed integer.
	ext := t.extendSign(lo, size, next)
	diff := t.calc(reil.XOR, ext, product, next)
	fits := t.calc(reil.BISZ, diff, reil.EmptyOperand, reil.Byte)
	t.emit(reil.XOR, fits, lit(1, reil.Byte), cf)
	t.emit(reil.STR, cf, reil.EmptyOperand, of)
	t.undefMulFlags()
	return nil
}

// storeProduct stores the double-width product of a one-operand
// multiplication of the given size into the accumulator registers (ax,
// dx:ax, edx:eax or rdx:rax), and returns the upper half of the product.
func (t *translator) storeProduct(product reil.Operand, size reil.Size) (reil.Operand, error) {
	hi := t.calc(reil.BSH, product, lit(size.CarryShift(), reil.Byte), size)
	if size == reil.Byte {
		return hi, t.moveToRegister(x86.AX, product)
	}
	lo := t.mask(product, size)
	if err := t.moveToRegister(x86.FamilyReg(familyA, size), lo); err != nil {
		return reil.Operand{}, err
	}
	if err := t.moveToRegister(x86.FamilyReg(familyD, size), hi); err != nil {
		return reil.Operand{}, err
	}
	return hi, nil
}

// undefMulFlags marks the flags left undefined by multiplications.
func (t *translator) undefMulFlags() {
	t.undef(sf)
	t.undef(zf)
	t.undef(af)
	t.undef(pf)
}
