package lift

import (
	"math/big"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// --- [ MOV ] -----------------------------------------------------------------

// translateInstMOV translates the x86 MOV instruction.
func (t *translator) translateInstMOV() error {
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
	return t.writeBack(ops[0], src.Value, dst)
}

// --- [ MOVZX ] ---------------------------------------------------------------

// translateInstMOVZX translates the x86 MOVZX instruction.
func (t *translator) translateInstMOVZX() error {
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
	v := t.calc(reil.STR, src.Value, reil.EmptyOperand, dst.Size)
	return t.writeBack(ops[0], v, dst)
}

// --- [ MOVSX ] ---------------------------------------------------------------

// translateInstMOVSX translates the x86 MOVSX and MOVSXD instructions.
func (t *translator) translateInstMOVSX() error {
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
	v := t.extendSign(src.Value, src.Size, dst.Size)
	return t.writeBack(ops[0], v, dst)
}

// --- [ LEA ] -----------------------------------------------------------------

// translateInstLEA translates the x86 LEA instruction.
func (t *translator) translateInstLEA() error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	if ops[1].Leaf().Kind() != x86.KindMemDeref {
		return errorf(KindMalformedInstruction, "invalid LEA source operand %v; expected memory operand", ops[1])
	}
	// The effective address is the offset within the segment.
	src, err := t.load(stripSegment(ops[1]), t.arch, false)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, false)
	if err != nil {
		return err
	}
	v := t.mask(src.Address, dst.Size)
	return t.writeBack(ops[0], v, dst)
}

// stripSegment returns the memory operand n without its segment override
// prefix.
func stripSegment(n *x86.Node) *x86.Node {
	switch n.Kind() {
	case x86.KindSizePrefix:
		if n.NumChildren() == 1 {
			return x86.Sized(n.Size(), stripSegment(n.Child(0)))
		}
	case x86.KindSegmentPrefix:
		if n.NumChildren() == 1 {
			return n.Child(0)
		}
	}
	return n
}

// --- [ XCHG ] ----------------------------------------------------------------

// translateInstXCHG translates the x86 XCHG instruction.
func (t *translator) translateInstXCHG() error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	x, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	y, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	if err := t.writeBack(ops[0], y.Value, x); err != nil {
		return err
	}
	return t.writeBack(ops[1], x.Value, y)
}

// --- [ BSWAP ] ---------------------------------------------------------------

// translateInstBSWAP translates the x86 BSWAP instruction.
func (t *translator) translateInstBSWAP() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	x, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	size := x.Size
	if size != reil.Dword && size != reil.Qword {
		return errorf(KindMalformedInstruction, "invalid BSWAP operand size %v; expected dword or qword", size)
	}
	n := size.Bytes()
	var parts []reil.Operand
	for i := 0; i < n; i++ {
		// Move byte i to byte n-1-i.
		byteMask := new(big.Int).Lsh(big.NewInt(0xFF), uint(8*i))
		m := t.calc(reil.AND, x.Value, bigLit(byteMask, size), size)
		shift := int64(8 * (n - 1 - 2*i))
		parts = append(parts, t.calc(reil.BSH, m, lit(shift, reil.Byte), size))
	}
	for len(parts) > 1 {
		var next []reil.Operand
		for i := 0; i < len(parts); i += 2 {
			next = append(next, t.calc(reil.OR, parts[i], parts[i+1], size))
		}
		parts = next
	}
	return t.writeBack(ops[0], parts[0], x)
}

// --- [ CBW ] -----------------------------------------------------------------

// translateInstCBW translates the x86 CBW, CWDE and CDQE instructions.
func (t *translator) translateInstCBW(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	var from reil.Size
	switch op {
	case x86asm.CBW:
		from = reil.Byte
	case x86asm.CWDE:
		from = reil.Word
	default:
		from = reil.Dword
	}
	to := from.Next()
	src, err := t.loadRegister(x86.FamilyReg(familyA, from), true)
	if err != nil {
		return err
	}
	v := t.extendSign(src.Value, from, to)
	return t.moveToRegister(x86.FamilyReg(familyA, to), v)
}

// --- [ CWD ] -----------------------------------------------------------------

// translateInstCWD translates the x86 CWD, CDQ and CQO instructions.
func (t *translator) translateInstCWD(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	var size reil.Size
	switch op {
	case x86asm.CWD:
		size = reil.Word
	case x86asm.CDQ:
		size = reil.Dword
	default:
		size = reil.Qword
	}
	src, err := t.loadRegister(x86.FamilyReg(familyA, size), true)
	if err != nil {
		return err
	}
	return t.moveToRegister(x86.FamilyReg(familyD, size), t.signMask(src.Value, size))
}

// --- [ XLATB ] ---------------------------------------------------------------

// translateInstXLATB translates the x86 XLATB instruction; AL is replaced by the
// byte of the table at the base register indexed by AL.
func (t *translator) translateInstXLATB() error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	al, err := t.loadRegister(x86.AL, true)
	if err != nil {
		return err
	}
	sum := t.calc(reil.ADD, t.reg(familyB), al.Value, t.arch.Next())
	addr := t.mask(sum, t.arch)
	v := t.tmp(reil.Byte)
	t.emit(reil.LDM, addr, reil.EmptyOperand, v)
	return t.moveToRegister(x86.AL, v)
}

// --- [ CMOVcc ] --------------------------------------------------------------

// translateInstCMOVcc translates the x86 CMOVcc instructions. The destination
// is written unconditionally; when the condition does not hold it receives its
// own value.
func (t *translator) translateInstCMOVcc(op x86asm.Op) error {
	ops, err := t.operands(2)
	if err != nil {
		return err
	}
	c, err := t.condition(op)
	if err != nil {
		return err
	}
	src, err := t.load(ops[1], t.arch, true)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	v := t.choose(c, src.Value, dst.Value, dst.Size)
	return t.writeBack(ops[0], v, dst)
}

// choose returns x of the given size if the single-bit c is set, and y
// otherwise.
func (t *translator) choose(c, x, y reil.Operand, size reil.Size) reil.Operand {
	mask := t.calc(reil.SUB, lit(0, size), c, size)
	inv := t.calc(reil.XOR, mask, bigLit(size.AllBitsMask(), size), size)
	taken := t.calc(reil.AND, x, mask, size)
	kept := t.calc(reil.AND, y, inv, size)
	return t.calc(reil.OR, taken, kept, size)
}

// --- [ SETcc ] ---------------------------------------------------------------

// translateInstSETcc translates the x86 SETcc instructions.
func (t *translator) translateInstSETcc(op x86asm.Op) error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	c, err := t.condition(op)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, false)
	if err != nil {
		return err
	}
	return t.writeBack(ops[0], c, dst)
}
