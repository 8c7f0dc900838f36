package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// push emits the push of x of the given size onto the stack.
func (t *translator) push(x reil.Operand, size reil.Size) {
	sp := t.reg(familySP)
	dec := t.calc(reil.SUB, sp, lit(int64(size.Bytes()), t.arch), t.arch.Next())
	t.emit(reil.AND, dec, bigLit(t.arch.AllBitsMask(), t.arch), sp)
	t.emit(reil.STM, x, reil.EmptyOperand, sp)
}

// pop emits the pop of a value of the given size from the stack, and returns
// the temporary register holding the value.
func (t *translator) pop(size reil.Size) reil.Operand {
	sp := t.reg(familySP)
	v := t.tmp(size)
	t.emit(reil.LDM, sp, reil.EmptyOperand, v)
	t.adjustSP(lit(int64(size.Bytes()), t.arch))
	return v
}

// adjustSP adds n to the stack pointer.
func (t *translator) adjustSP(n reil.Operand) {
	sp := t.reg(familySP)
	inc := t.calc(reil.ADD, sp, n, t.arch.Next())
	t.emit(reil.AND, inc, bigLit(t.arch.AllBitsMask(), t.arch), sp)
}

// --- [ PUSH ] ----------------------------------------------------------------

// translateInstPUSH translates the x86 PUSH instruction.
func (t *translator) translateInstPUSH() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	src, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	t.push(src.Value, src.Size)
	return nil
}

// --- [ POP ] -----------------------------------------------------------------

// translateInstPOP translates the x86 POP instruction.
func (t *translator) translateInstPOP() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	size := ops[0].OperandSize()
	if size == reil.Empty {
		size = t.arch
	}
	v := t.pop(size)
	// The destination address is computed after incrementing the stack
	// pointer.
	dst, err := t.load(ops[0], t.arch, false)
	if err != nil {
		return err
	}
	return t.writeBack(ops[0], v, dst)
}

// --- [ PUSHF ] ---------------------------------------------------------------

// translateInstPUSHF translates the x86 PUSHF, PUSHFD and PUSHFQ instructions.
func (t *translator) translateInstPUSHF(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	size := flagsSize(op)
	t.push(t.packFlags(allFlags, size), size)
	return nil
}

// --- [ POPF ] ----------------------------------------------------------------

// translateInstPOPF translates the x86 POPF, POPFD and POPFQ instructions.
func (t *translator) translateInstPOPF(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	size := flagsSize(op)
	t.unpackFlags(allFlags, t.pop(size), size)
	return nil
}

// flagsSize returns the size of the flags register pushed or popped by op.
func flagsSize(op x86asm.Op) reil.Size {
	switch op {
	case x86asm.PUSHF, x86asm.POPF:
		return reil.Word
	case x86asm.PUSHFD, x86asm.POPFD:
		return reil.Dword
	}
	return reil.Qword
}

// --- [ LEAVE ] ---------------------------------------------------------------

// translateInstLEAVE translates the x86 LEAVE instruction.
func (t *translator) translateInstLEAVE() error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	t.emit(reil.STR, t.reg(familyBP), reil.EmptyOperand, t.reg(familySP))
	bp := t.pop(t.arch)
	return t.moveToRegister(x86.FamilyReg(familyBP, t.arch), bp)
}

// --- [ PUSHA, POPA ] ---------------------------------------------------------

// translateInstPUSHA translates the x86 PUSHA and PUSHAD instructions. The
// stack pointer is pushed with its value before the first push.
func (t *translator) translateInstPUSHA(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	if t.arch != reil.Dword {
		return errorf(KindMalformedInstruction, "invalid %v instruction for %v architecture", op, t.arch)
	}
	size := reil.Dword
	if op == x86asm.PUSHA {
		size = reil.Word
	}
	sp, err := t.loadRegister(x86.FamilyReg(familySP, size), true)
	if err != nil {
		return err
	}
	for family := familyA; family <= familyDI; family++ {
		v := sp.Value
		if family != familySP {
			r, err := t.loadRegister(x86.FamilyReg(family, size), true)
			if err != nil {
				return err
			}
			v = r.Value
		}
		t.push(v, size)
	}
	return nil
}

// translateInstPOPA translates the x86 POPA and POPAD instructions. The stack
// slot of the stack pointer is skipped.
func (t *translator) translateInstPOPA(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	if t.arch != reil.Dword {
		return errorf(KindMalformedInstruction, "invalid %v instruction for %v architecture", op, t.arch)
	}
	size := reil.Dword
	if op == x86asm.POPA {
		size = reil.Word
	}
	for family := familyDI; family >= familyA; family-- {
		if family == familySP {
			t.adjustSP(lit(int64(size.Bytes()), t.arch))
			continue
		}
		if err := t.moveToRegister(x86.FamilyReg(family, size), t.pop(size)); err != nil {
			return err
		}
	}
	return nil
}
