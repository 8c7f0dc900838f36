package lift

import (
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// --- [ AND, OR, XOR, TEST ] --------------------------------------------------

// translateInstLogic translates the x86 AND, OR, XOR and TEST instructions.
func (t *translator) translateInstLogic(op x86asm.Op) error {
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
	var opcode reil.Opcode
	switch op {
	case x86asm.AND, x86asm.TEST:
		opcode = reil.AND
	case x86asm.OR:
		opcode = reil.OR
	case x86asm.XOR:
		opcode = reil.XOR
	}
	res := t.calc(opcode, dst.Value, src.Value, dst.Size)
	t.logicFlags(res, dst.Size)
	if op == x86asm.TEST {
		return nil
	}
	return t.writeBack(ops[0], res, dst)
}

// --- [ NOT ] -----------------------------------------------------------------

// translateInstNOT translates the x86 NOT instruction; no flags are affected.
func (t *translator) translateInstNOT() error {
	ops, err := t.operands(1)
	if err != nil {
		return err
	}
	dst, err := t.load(ops[0], t.arch, true)
	if err != nil {
		return err
	}
	res := t.calc(reil.XOR, dst.Value, bigLit(dst.Size.AllBitsMask(), dst.Size), dst.Size)
	return t.writeBack(ops[0], res, dst)
}
