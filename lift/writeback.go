package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
)

// writeBack stores value into the destination operand tree dst, as evaluated
// by res without loading.
func (t *translator) writeBack(dst *x86.Node, value reil.Operand, res *Result) error {
	switch res.Kind {
	case ResultRegister:
		if !res.Address.IsEmpty() {
			return errorf(KindInvalidTargetType, "invalid register target %v with address %v", dst, res.Address)
		}
		leaf := dst.Leaf()
		if leaf.Kind() != x86.KindRegister {
			return errorf(KindInvalidTargetType, "unable to write back to non-register target %v", dst)
		}
		return t.moveToRegister(leaf.Reg(), value)
	case ResultMemoryAccess:
		t.emit(reil.STM, value, reil.EmptyOperand, res.Address)
		return nil
	}
	return errorf(KindInvalidTargetType, "unable to write back to %v target %v", res.Kind, dst)
}

// moveToRegister stores value into the register r, preserving the bits of its
// parent register outside of r.
func (t *translator) moveToRegister(r x86.Reg, value reil.Operand) error {
	parent, a, err := lookupAlias(r, t.arch)
	if err != nil {
		return err
	}
	if a.isFullWidth(r, t.arch) {
		t.emit(reil.STR, value, reil.EmptyOperand, reil.NewReg(r.String(), a.size))
		return nil
	}
	p := reil.NewReg(parent.String(), t.arch)
	// 32-bit writes zero-extend into the 64-bit parent.
	if t.arch == reil.Qword && a.size == reil.Dword {
		t.emit(reil.AND, value, reil.NewBigLit(reil.Dword.AllBitsMask(), reil.Dword), p)
		return nil
	}
	if a.high {
		value = t.calc(reil.BSH, value, reil.NewLit(8, reil.Byte), t.arch)
	}
	rest := t.calc(reil.AND, p, reil.NewBigLit(a.negMask(t.arch), t.arch), t.arch)
	t.emit(reil.OR, value, rest, p)
	return nil
}
