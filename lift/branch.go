package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// target evaluates the branch target operand tree; literal targets are
// native addresses and are not loaded.
func (t *translator) target(tree *x86.Node) (reil.Operand, error) {
	load := tree.Leaf().Kind() != x86.KindLiteral
	res, err := t.load(tree, t.arch, load)
	if err != nil {
		return reil.Operand{}, err
	}
	return res.Value, nil
}

// jump emits a jump to target if cond holds.
func (t *translator) jump(cond, target reil.Operand) {
	t.emit(reil.JCC, cond, reil.EmptyOperand, target)
}

// --- [ JMP ] -----------------------------------------------------------------

// translateInstJMP translates the x86 JMP instruction.
func (t *translator) translateInstJMP() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	target, err := t.target(ops[0])
	if err != nil {
		return err
	}
	t.jump(lit(1, reil.Byte), target)
	return nil
}

// --- [ Jcc ] -----------------------------------------------------------------

// translateInstJcc translates the x86 Jcc instructions.
func (t *translator) translateInstJcc(op x86asm.Op) error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	c, err := t.condition(op)
	if err != nil {
		return err
	}
	target, err := t.target(ops[0])
	if err != nil {
		return err
	}
	t.jump(c, target)
	return nil
}

// --- [ JCXZ, JECXZ, JRCXZ ] --------------------------------------------------

// translateInstJCXZ translates the x86 JCXZ, JECXZ and JRCXZ instructions.
func (t *translator) translateInstJCXZ(op x86asm.Op) error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	size := reil.Qword
	switch op {
	case x86asm.JCXZ:
		size = reil.Word
	case x86asm.JECXZ:
		size = reil.Dword
	}
	counter, err := t.loadRegister(x86.FamilyReg(familyC, size), true)
	if err != nil {
		return err
	}
	target, err := t.target(ops[0])
	if err != nil {
		return err
	}
	zero := t.calc(reil.BISZ, counter.Value, reil.EmptyOperand, reil.Byte)
	t.jump(zero, target)
	return nil
}

// --- [ LOOP, LOOPE, LOOPNE ] -------------------------------------------------

// translateInstLOOP translates the x86 LOOP, LOOPE and LOOPNE instructions.
func (t *translator) translateInstLOOP(op x86asm.Op) error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	target, err := t.target(ops[0])
	if err != nil {
		return err
	}
	counter := t.reg(familyC)
	dec := t.calc(reil.SUB, counter, lit(1, t.arch), t.arch.Next())
	t.emit(reil.AND, dec, bigLit(t.arch.AllBitsMask(), t.arch), counter)
	c := t.not(t.calc(reil.BISZ, counter, reil.EmptyOperand, reil.Byte))
	switch op {
	case x86asm.LOOPE:
		c = t.calc(reil.AND, c, zf, reil.Byte)
	case x86asm.LOOPNE:
		c = t.calc(reil.AND, c, t.not(zf), reil.Byte)
	}
	t.jump(c, target)
	return nil
}

// --- [ CALL ] ----------------------------------------------------------------

// translateInstCALL translates the x86 CALL instruction.
func (t *translator) translateInstCALL() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	target, err := t.target(ops[0])
	if err != nil {
		return err
	}
	t.push(lit(int64(t.inst.NextAddr()), t.arch), t.arch)
	t.jump(lit(1, reil.Byte), target)
	return nil
}

// --- [ RET ] -----------------------------------------------------------------

// translateInstRET translates the x86 near RET instruction, with an optional
// immediate number of bytes to release from the stack.
func (t *translator) translateInstRET() error {
	ops := t.inst.Operands
	if len(ops) > 1 {
		return errorf(KindMalformedInstruction, "invalid number of operands of %v instruction; expected 0 or 1, got %d", t.inst.Op, len(ops))
	}
	if _, err := t.operands(len(ops)); err != nil {
		return err
	}
	ret := t.pop(t.arch)
	if len(ops) == 1 {
		n, err := t.load(ops[0], reil.Word, false)
		if err != nil {
			return err
		}
		if n.Kind != ResultLiteral {
			return errorf(KindMalformedInstruction, "invalid RET operand %v; expected immediate", ops[0])
		}
		t.adjustSP(n.Value)
	}
	t.jump(lit(1, reil.Byte), ret)
	return nil
}
