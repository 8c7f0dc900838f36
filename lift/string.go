package lift

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// stringKind specifies the operation of a string instruction.
type stringKind uint8

// String instruction operations.
const (
	stringSTOS stringKind = iota + 1
	stringLODS
	stringMOVS
	stringSCAS
	stringCMPS
)

// stringOps maps from string instruction opcode to operation and element size.
var stringOps = map[x86asm.Op]struct {
	kind stringKind
	size reil.Size
}{
	x86asm.STOSB: {stringSTOS, reil.Byte}, x86asm.STOSW: {stringSTOS, reil.Word},
	x86asm.STOSD: {stringSTOS, reil.Dword}, x86asm.STOSQ: {stringSTOS, reil.Qword},
	x86asm.LODSB: {stringLODS, reil.Byte}, x86asm.LODSW: {stringLODS, reil.Word},
	x86asm.LODSD: {stringLODS, reil.Dword}, x86asm.LODSQ: {stringLODS, reil.Qword},
	x86asm.MOVSB: {stringMOVS, reil.Byte}, x86asm.MOVSW: {stringMOVS, reil.Word},
	x86asm.MOVSD: {stringMOVS, reil.Dword}, x86asm.MOVSQ: {stringMOVS, reil.Qword},
	x86asm.SCASB: {stringSCAS, reil.Byte}, x86asm.SCASW: {stringSCAS, reil.Word},
	x86asm.SCASD: {stringSCAS, reil.Dword}, x86asm.SCASQ: {stringSCAS, reil.Qword},
	x86asm.CMPSB: {stringCMPS, reil.Byte}, x86asm.CMPSW: {stringCMPS, reil.Word},
	x86asm.CMPSD: {stringCMPS, reil.Dword}, x86asm.CMPSQ: {stringCMPS, reil.Qword},
}

// translateInstString translates the x86 string instructions, with optional
// REP, REPE or REPNE prefix.
//
// Repeated string instructions are translated into a loop within the
// translation of the native instruction:
//
//	start:
//	   if counter == 0 goto end
//	   body
//	   counter--
//	   if repeat condition goto start
//	end:
func (t *translator) translateInstString(op x86asm.Op) error {
	if _, err := t.operands(0); err != nil {
		return err
	}
	s := stringOps[op]
	if s.size == reil.Qword && t.arch != reil.Qword {
		return errorf(KindInvalidRegisterName, "%v instruction not available on %v architecture", op, t.arch)
	}
	rep := t.inst.Prefix&(x86.PrefixRep|x86.PrefixRepne) != 0
	counter := t.reg(familyC)
	var start, end reil.Label
	if rep {
		start, end = t.b.NewLabel(), t.b.NewLabel()
		t.b.Bind(start)
		zero := t.calc(reil.BISZ, counter, reil.EmptyOperand, reil.Byte)
		t.jump(zero, end.Target())
	}

	si, di := t.reg(familySI), t.reg(familyDI)
	acc := x86.FamilyReg(familyA, s.size)
	var ptrs []reil.Operand
	switch s.kind {
	case stringSTOS:
		v, err := t.loadRegister(acc, true)
		if err != nil {
			return err
		}
		t.emit(reil.STM, v.Value, reil.EmptyOperand, di)
		ptrs = []reil.Operand{di}
	case stringLODS:
		v := t.tmp(s.size)
		t.emit(reil.LDM, si, reil.EmptyOperand, v)
		if err := t.moveToRegister(acc, v); err != nil {
			return err
		}
		ptrs = []reil.Operand{si}
	case stringMOVS:
		v := t.tmp(s.size)
		t.emit(reil.LDM, si, reil.EmptyOperand, v)
		t.emit(reil.STM, v, reil.EmptyOperand, di)
		ptrs = []reil.Operand{si, di}
	case stringSCAS:
		v, err := t.loadRegister(acc, true)
		if err != nil {
			return err
		}
		m := t.tmp(s.size)
		t.emit(reil.LDM, di, reil.EmptyOperand, m)
		t.arith(reil.SUB, v.Value, m, s.size, 0)
		ptrs = []reil.Operand{di}
	case stringCMPS:
		x, y := t.tmp(s.size), t.tmp(s.size)
		t.emit(reil.LDM, si, reil.EmptyOperand, x)
		t.emit(reil.LDM, di, reil.EmptyOperand, y)
		t.arith(reil.SUB, x, y, s.size, 0)
		ptrs = []reil.Operand{si, di}
	}
	// Pointers advance by the element size, or retreat if DF is set.
	back := t.calc(reil.MUL, df, lit(int64(2*s.size.Bytes()), t.arch), t.arch)
	step := t.calc(reil.SUB, lit(int64(s.size.Bytes()), t.arch), back, t.arch)
	for _, ptr := range ptrs {
		sum := t.calc(reil.ADD, ptr, step, t.arch.Next())
		t.emit(reil.AND, sum, bigLit(t.arch.AllBitsMask(), t.arch), ptr)
	}

	if !rep {
		return nil
	}
	dec := t.calc(reil.SUB, counter, lit(1, t.arch), t.arch.Next())
	t.emit(reil.AND, dec, bigLit(t.arch.AllBitsMask(), t.arch), counter)
	again := lit(1, reil.Byte)
	if s.kind == stringSCAS || s.kind == stringCMPS {
		if t.inst.Prefix&x86.PrefixRepne != 0 {
			again = t.not(zf)
		} else {
			again = zf
		}
	}
	t.jump(again, start.Target())
	t.b.Bind(end)
	return nil
}
