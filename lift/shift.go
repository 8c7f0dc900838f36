package lift

import (
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// shiftSize returns the size at which shifts of operands of the given size are
// computed; wide enough to hold the operand shifted by the maximum count.
func shiftSize(size reil.Size) reil.Size {
	if size == reil.Qword {
		return reil.Oword
	}
	return reil.Qword
}

// shiftCount emits the masking of the shift count src for operands of the
// given size, and returns the masked count.
func (t *translator) shiftCount(src reil.Operand, size reil.Size) reil.Operand {
	mask := int64(0x1F)
	if size == reil.Qword {
		mask = 0x3F
	}
	return t.calc(reil.AND, src, lit(mask, reil.Byte), reil.Byte)
}

// msb returns the most significant bit of x of the given size as a single
// byte.
func (t *translator) msb(x reil.Operand, size reil.Size) reil.Operand {
	m := t.calc(reil.AND, x, bigLit(size.MSBMask(), size), size)
	return t.calc(reil.BSH, m, lit(size.ShiftMSBToLSB(), reil.Byte), reil.Byte)
}

// bit returns bit 0 of x as a single byte.
func (t *translator) bit(x reil.Operand) reil.Operand {
	return t.calc(reil.AND, x, lit(1, reil.Byte), reil.Byte)
}

// --- [ SHL, SHR, SAR ] -------------------------------------------------------

// translateInstShift translates the x86 SHL, SHR and SAR instructions.
func (t *translator) translateInstShift(op x86asm.Op) error {
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
	wide := shiftSize(size)
	x := dst.Value
	count := t.shiftCount(src.Value, size)
	var res, carry, overflow reil.Operand
	switch op {
	case x86asm.SHL:
		shifted := t.calc(reil.BSH, x, count, wide)
		res = t.mask(shifted, size)
		// CF receives the last bit shifted out of the destination.
		out := t.calc(reil.BSH, shifted, lit(size.CarryShift(), reil.Byte), wide)
		carry = t.bit(out)
		overflow = t.calc(reil.XOR, t.msb(res, size), carry, reil.Byte)
	case x86asm.SHR:
		right := t.calc(reil.SUB, lit(0, reil.Byte), count, reil.Byte)
		res = t.calc(reil.BSH, x, right, size)
		last := t.calc(reil.SUB, lit(1, reil.Byte), count, reil.Byte)
		carry = t.bit(t.calc(reil.BSH, x, last, size))
		overflow = t.msb(x, size)
	case x86asm.SAR:
		ext := t.extendSign(x, size, wide)
		right := t.calc(reil.SUB, lit(0, reil.Byte), count, reil.Byte)
		res = t.mask(t.calc(reil.BSH, ext, right, wide), size)
		last := t.calc(reil.SUB, lit(1, reil.Byte), count, reil.Byte)
		carry = t.bit(t.calc(reil.BSH, ext, last, wide))
		overflow = lit(0, reil.Byte)
	}
	if err := t.writeBack(ops[0], res, dst); err != nil {
		return err
	}
	// A zero count leaves the flags unmodified.
	end := t.b.NewLabel()
	zero := t.calc(reil.BISZ, count, reil.EmptyOperand, reil.Byte)
	t.emit(reil.JCC, zero, reil.EmptyOperand, end.Target())
	t.emit(reil.STR, carry, reil.EmptyOperand, cf)
	t.signFlag(res, size)
	t.emit(reil.BISZ, res, reil.EmptyOperand, zf)
	t.parity(res)
	t.undef(af)
	t.overflowFlag(count, overflow, end)
	t.b.Bind(end)
	return nil
}

// overflowFlag emits the update of OF after a shift or rotate by count; OF is
// only defined for single-bit shifts, and undefined otherwise.
func (t *translator) overflowFlag(count, overflow reil.Operand, end reil.Label) {
	t.emit(reil.STR, overflow, reil.EmptyOperand, of)
	diff := t.calc(reil.SUB, count, lit(1, reil.Byte), reil.Byte)
	single := t.calc(reil.BISZ, diff, reil.EmptyOperand, reil.Byte)
	t.emit(reil.JCC, single, reil.EmptyOperand, end.Target())
	t.undef(of)
}

// --- [ ROL, ROR ] ------------------------------------------------------------

// translateInstRotate translates the x86 ROL and ROR instructions.
func (t *translator) translateInstRotate(op x86asm.Op) error {
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
	bits := int64(size.Bits())
	wide := shiftSize(size)
	x := dst.Value
	count := t.shiftCount(src.Value, size)
	n := t.calc(reil.AND, count, lit(bits-1, reil.Byte), reil.Byte)
	var left, right reil.Operand
	switch op {
	case x86asm.ROL:
		left = t.calc(reil.BSH, x, n, wide)
		back := t.calc(reil.SUB, n, lit(bits, reil.Byte), reil.Byte)
		right = t.calc(reil.BSH, x, back, size)
	case x86asm.ROR:
		neg := t.calc(reil.SUB, lit(0, reil.Byte), n, reil.Byte)
		right = t.calc(reil.BSH, x, neg, size)
		back := t.calc(reil.SUB, lit(bits, reil.Byte), n, reil.Byte)
		left = t.calc(reil.BSH, x, back, wide)
	}
	res := t.mask(t.calc(reil.OR, left, right, wide), size)
	if err := t.writeBack(ops[0], res, dst); err != nil {
		return err
	}
	var carry, overflow reil.Operand
	switch op {
	case x86asm.ROL:
		carry = t.bit(res)
		overflow = t.calc(reil.XOR, t.msb(res, size), carry, reil.Byte)
	case x86asm.ROR:
		carry = t.msb(res, size)
		below := t.calc(reil.BSH, res, lit(-(bits - 2), reil.Byte), size)
		overflow = t.calc(reil.XOR, carry, t.bit(below), reil.Byte)
	}
	// A zero count leaves the flags unmodified.
	end := t.b.NewLabel()
	zero := t.calc(reil.BISZ, count, reil.EmptyOperand, reil.Byte)
	t.emit(reil.JCC, zero, reil.EmptyOperand, end.Target())
	t.emit(reil.STR, carry, reil.EmptyOperand, cf)
	t.overflowFlag(count, overflow, end)
	t.b.Bind(end)
	return nil
}

// --- [ RCL, RCR ] ------------------------------------------------------------

// translateInstRotateCarry translates the x86 RCL and RCR instructions, which
// rotate the concatenation of CF and the destination.
func (t *translator) translateInstRotateCarry(op x86asm.Op) error {
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
	bits := int64(size.Bits())
	width := bits + 1
	x := dst.Value
	count := t.shiftCount(src.Value, size)
	// Reduce the masked count modulo the rotation width; only byte and word
	// operands may have masked counts at or above it.
	maxCount := int64(0x1F)
	if size == reil.Qword {
		maxCount = 0x3F
	}
	n := count
	for limit := maxCount; limit >= width; limit -= width {
		diff := t.calc(reil.SUB, n, lit(width, reil.Byte), reil.Byte)
		above := t.not(t.msb(diff, reil.Byte))
		wrap := t.calc(reil.MUL, above, lit(width, reil.Byte), reil.Byte)
		n = t.calc(reil.SUB, n, wrap, reil.Byte)
	}
	hi := t.calc(reil.BSH, cf, lit(bits, reil.Byte), reil.Oword)
	v := t.calc(reil.OR, hi, x, reil.Oword)
	var left, right reil.Operand
	switch op {
	case x86asm.RCL:
		left = t.calc(reil.BSH, v, n, reil.Oword)
		back := t.calc(reil.SUB, n, lit(width, reil.Byte), reil.Byte)
		right = t.calc(reil.BSH, v, back, reil.Oword)
	case x86asm.RCR:
		neg := t.calc(reil.SUB, lit(0, reil.Byte), n, reil.Byte)
		right = t.calc(reil.BSH, v, neg, reil.Oword)
		back := t.calc(reil.SUB, lit(width, reil.Byte), n, reil.Byte)
		left = t.calc(reil.BSH, v, back, reil.Oword)
	}
	rot := t.calc(reil.OR, left, right, reil.Oword)
	res := t.mask(rot, size)
	carry := t.bit(t.calc(reil.BSH, rot, lit(-bits, reil.Byte), reil.Oword))
	if err := t.writeBack(ops[0], res, dst); err != nil {
		return err
	}
	var overflow reil.Operand
	switch op {
	case x86asm.RCL:
		overflow = t.calc(reil.XOR, t.msb(res, size), carry, reil.Byte)
	case x86asm.RCR:
		below := t.calc(reil.BSH, res, lit(-(bits - 2), reil.Byte), size)
		overflow = t.calc(reil.XOR, t.msb(res, size), t.bit(below), reil.Byte)
	}
	// A zero count leaves the flags unmodified.
	end := t.b.NewLabel()
	zero := t.calc(reil.BISZ, count, reil.EmptyOperand, reil.Byte)
	t.emit(reil.JCC, zero, reil.EmptyOperand, end.Target())
	t.emit(reil.STR, carry, reil.EmptyOperand, cf)
	t.overflowFlag(count, overflow, end)
	t.b.Bind(end)
	return nil
}

// --- [ SHLD, SHRD ] ----------------------------------------------------------

// translateInstDoubleShift translates the x86 SHLD and SHRD instructions. The
// bits shifted into the destination are taken from the source operand.
func (t *translator) translateInstDoubleShift(op x86asm.Op) error {
	ops, err := t.operands(3)
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
	cnt, err := t.load(ops[2], t.arch, true)
	if err != nil {
		return err
	}
	size := dst.Size
	bits := int64(size.Bits())
	wide := shiftSize(size)
	x, y := dst.Value, src.Value
	count := t.shiftCount(cnt.Value, size)
	var left, right, carry reil.Operand
	switch op {
	case x86asm.SHLD:
		left = t.calc(reil.BSH, x, count, wide)
		back := t.calc(reil.SUB, count, lit(bits, reil.Byte), reil.Byte)
		right = t.calc(reil.BSH, y, back, size)
		carry = t.bit(t.calc(reil.BSH, x, back, size))
	case x86asm.SHRD:
		neg := t.calc(reil.SUB, lit(0, reil.Byte), count, reil.Byte)
		right = t.calc(reil.BSH, x, neg, size)
		back := t.calc(reil.SUB, lit(bits, reil.Byte), count, reil.Byte)
		left = t.calc(reil.BSH, y, back, wide)
		last := t.calc(reil.SUB, lit(1, reil.Byte), count, reil.Byte)
		carry = t.bit(t.calc(reil.BSH, x, last, size))
	}
	res := t.mask(t.calc(reil.OR, left, right, wide), size)
	overflow := t.calc(reil.XOR, t.msb(x, size), t.msb(res, size), reil.Byte)
	if err := t.writeBack(ops[0], res, dst); err != nil {
		return err
	}
	// A zero count leaves the flags unmodified.
	end := t.b.NewLabel()
	zero := t.calc(reil.BISZ, count, reil.EmptyOperand, reil.Byte)
	t.emit(reil.JCC, zero, reil.EmptyOperand, end.Target())
	t.undef(af)
	// Counts above the operand size leave the result and flags undefined.
	excess := t.b.NewLabel()
	diff := t.calc(reil.SUB, lit(bits, reil.Word), count, reil.Word)
	above := t.calc(reil.AND, diff, lit(0x8000, reil.Word), reil.Word)
	t.emit(reil.JCC, above, reil.EmptyOperand, excess.Target())
	t.emit(reil.STR, carry, reil.EmptyOperand, cf)
	t.signFlag(res, size)
	t.emit(reil.BISZ, res, reil.EmptyOperand, zf)
	t.parity(res)
	t.overflowFlag(count, overflow, end)
	t.jump(lit(1, reil.Byte), end.Target())
	t.b.Bind(excess)
	for _, flag := range []reil.Operand{cf, of, sf, zf, pf} {
		t.undef(flag)
	}
	t.b.Bind(end)
	return nil
}
