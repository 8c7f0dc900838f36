package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// --- [ BT, BTC, BTR, BTS ] ---------------------------------------------------

// translateInstBT translates the x86 BT, BTC, BTR and BTS instructions.
func (t *translator) translateInstBT(op x86asm.Op) error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, false)
	if err != nil {
		return err
	}
	off, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	size := dst.Size
	bits := int64(size.Bits())
	x := dst.Value
	addr := dst.Address
	if dst.Kind == ResultMemoryAccess {
		// Register bit offsets index a bit string starting at the memory
		// operand.
		if ops[1].Leaf().Kind() == x86.KindRegister {
			addr = t.bitStringAddr(addr, off.Value, size)
		}
		x = t.tmp(size)
		t.emit(reil.LDM, addr, reil.EmptyOperand, x)
	}
	bit := t.calc(reil.AND, off.Value, lit(bits-1, reil.Byte), reil.Byte)
	neg := t.calc(reil.SUB, lit(0, reil.Byte), bit, reil.Byte)
	selected := t.calc(reil.BSH, x, neg, size)
	t.emit(reil.AND, selected, lit(1, reil.Byte), cf)
	if op != x86asm.BT {
		m := t.calc(reil.BSH, lit(1, size), bit, size)
		var res reil.Operand
		switch op {
		case x86asm.BTS:
			res = t.calc(reil.OR, x, m, size)
		case x86asm.BTR:
			inv := t.calc(reil.XOR, m, bigLit(size.AllBitsMask(), size), size)
			res = t.calc(reil.AND, x, inv, size)
		case x86asm.BTC:
			res = t.calc(reil.XOR, x, m, size)
		}
		if dst.Kind == ResultMemoryAccess {
			t.emit(reil.STM, res, reil.EmptyOperand, addr)
		} else if err := t.writeBack(ops[0], res, dst); err != nil {
			return err
		}
	}
	for _, flag := range []reil.Operand{of, sf, af, pf} {
		t.undef(flag)
	}
	return nil
}

// bitStringAddr returns the address of the operand-sized element of the bit
// string at addr which holds the bit at the signed offset off.
func (t *translator) bitStringAddr(addr, off reil.Operand, size reil.Size) reil.Operand {
	var shift int64
	switch size {
	case reil.Word:
		shift = 4
	case reil.Dword:
		shift = 5
	case reil.Qword:
		shift = 6
	}
	wide := t.arch.Next()
	ext := t.extendSign(off, size, wide)
	index := t.mask(t.calc(reil.BSH, ext, lit(-shift, reil.Byte), wide), t.arch)
	disp := t.calc(reil.MUL, index, lit(int64(size.Bytes()), t.arch), t.arch)
	sum := t.calc(reil.ADD, addr, disp, wide)
	return t.mask(sum, t.arch)
}

// --- [ BSF, BSR ] ------------------------------------------------------------

// translateInstBitScan translates the x86 BSF and BSR instructions. The
// destination is left unmodified when the source is zero.
func (t *translator) translateInstBitScan(op x86asm.Op) error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	src, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, false)
	if err != nil {
		return err
	}
	size := src.Size
	t.emit(reil.BISZ, src.Value, reil.EmptyOperand, zf)
	for _, flag := range []reil.Operand{cf, of, sf, af, pf} {
		t.undef(flag)
	}
	end := t.b.NewLabel()
	t.jump(zf, end.Target())
	// Scan from the least (BSF) or most (BSR) significant bit until a set bit
	// is found.
	step, first := reil.ADD, int64(0)
	if op == x86asm.BSR {
		step, first = reil.SUB, int64(size.Bits()-1)
	}
	index := t.tmp(size)
	t.emit(reil.STR, lit(first, size), reil.EmptyOperand, index)
	loop, found := t.b.NewLabel(), t.b.NewLabel()
	t.b.Bind(loop)
	neg := t.calc(reil.SUB, lit(0, reil.Byte), index, reil.Byte)
	set := t.bit(t.calc(reil.BSH, src.Value, neg, size))
	t.jump(set, found.Target())
	t.emit(step, index, lit(1, size), index)
	t.jump(lit(1, reil.Byte), loop.Target())
	t.b.Bind(found)
	if err := t.writeBack(ops[0], index, dst); err != nil {
		return err
	}
	t.b.Bind(end)
	return nil
}
