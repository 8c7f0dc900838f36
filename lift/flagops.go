package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// translateInstFlag translates the x86 CLC, STC, CMC, CLD and STD
// instructions.
func (t *translator) translateInstFlag(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	switch op {
	case x86asm.CLC:
		t.emit(reil.STR, lit(0, reil.Byte), reil.EmptyOperand, cf)
	case x86asm.STC:
		t.emit(reil.STR, lit(1, reil.Byte), reil.EmptyOperand, cf)
	case x86asm.CMC:
		t.emit(reil.XOR, cf, lit(1, reil.Byte), cf)
	case x86asm.CLD:
		t.emit(reil.STR, lit(0, reil.Byte), reil.EmptyOperand, df)
	case x86asm.STD:
		t.emit(reil.STR, lit(1, reil.Byte), reil.EmptyOperand, df)
	}
	return nil
}

// translateInstLAHF translates the x86 LAHF instruction.
func (t *translator) translateInstLAHF() error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	return t.moveToRegister(x86.AH, t.packFlags(lowFlags, reil.Byte))
}

// translateInstSAHF translates the x86 SAHF instruction.
func (t *translator) translateInstSAHF() error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	ah, err := t.loadRegister(x86.AH, true)
	if err != nil {
		return err
	}
	t.unpackFlags(lowFlags, ah.Value, reil.Byte)
	return nil
}
