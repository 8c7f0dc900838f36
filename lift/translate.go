package lift

import (
	"math/big"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// translator tracks the state of a single instruction translation.
type translator struct {
	// Translation environment.
	env Environment
	// Natural operand size of the native architecture.
	arch reil.Size
	// Native instruction being translated; nil when evaluating stand-alone
	// operand trees.
	inst *x86.Instruction
	// Emitted REIL instructions.
	b *reil.Builder
}

// newTranslator returns a new translator of the given native instruction.
func newTranslator(env Environment, inst *x86.Instruction) *translator {
	return &translator{
		env:  env,
		arch: env.ArchitectureSize(),
		inst: inst,
		b:    reil.NewBuilder(),
	}
}

// Translate translates the given native x86 instruction into an equivalent
// sequence of REIL instructions, addressed from the native instruction address
// and local index 0.
func Translate(env Environment, inst *x86.Instruction) ([]*reil.Instruction, error) {
	if env == nil {
		panic("lift.Translate: invalid nil environment")
	}
	if inst == nil {
		panic("lift.Translate: invalid nil instruction")
	}
	t := newTranslator(env, inst)
	if err := t.translateInst(); err != nil {
		return nil, errors.WithMessagef(err, "unable to translate instruction %v at %v", inst, inst.Addr)
	}
	insts, err := t.b.Build(uint64(inst.Addr))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return insts, nil
}

// Stub returns the placeholder translation of a native instruction which could
// not be translated; a single NOP at local index 0.
func Stub(inst *x86.Instruction) []*reil.Instruction {
	return []*reil.Instruction{{
		Addr: reil.Addr{Native: uint64(inst.Addr)},
		Op:   reil.NOP,
		Src1: reil.EmptyOperand,
		Src2: reil.EmptyOperand,
		Dst:  reil.EmptyOperand,
	}}
}

// translateInst translates the native instruction of t.
func (t *translator) translateInst() error {
	switch op := t.inst.Op; op {
	// Data transfer instructions.
	case x86asm.MOV:
		return t.translateInstMOV()
	case x86asm.MOVZX:
		return t.translateInstMOVZX()
	case x86asm.MOVSX, x86asm.MOVSXD:
		return t.translateInstMOVSX()
	case x86asm.LEA:
		return t.translateInstLEA()
	case x86asm.XCHG:
		return t.translateInstXCHG()
	case x86asm.BSWAP:
		return t.translateInstBSWAP()
	case x86asm.CBW, x86asm.CWDE, x86asm.CDQE:
		return t.translateInstCBW(op)
	case x86asm.CWD, x86asm.CDQ, x86asm.CQO:
		return t.translateInstCWD(op)
	case x86asm.CMOVA, x86asm.CMOVAE, x86asm.CMOVB, x86asm.CMOVBE, x86asm.CMOVE, x86asm.CMOVG, x86asm.CMOVGE, x86asm.CMOVL, x86asm.CMOVLE, x86asm.CMOVNE, x86asm.CMOVNO, x86asm.CMOVNP, x86asm.CMOVNS, x86asm.CMOVO, x86asm.CMOVP, x86asm.CMOVS:
		return t.translateInstCMOVcc(op)
	case x86asm.SETA, x86asm.SETAE, x86asm.SETB, x86asm.SETBE, x86asm.SETE, x86asm.SETG, x86asm.SETGE, x86asm.SETL, x86asm.SETLE, x86asm.SETNE, x86asm.SETNO, x86asm.SETNP, x86asm.SETNS, x86asm.SETO, x86asm.SETP, x86asm.SETS:
		return t.translateInstSETcc(op)
	case x86asm.XLATB:
		return t.translateInstXLATB()

	// Arithmetic instructions.
	case x86asm.ADD, x86asm.ADC, x86asm.SUB, x86asm.SBB, x86asm.CMP:
		return t.translateInstArith(op)
	case x86asm.XADD:
		return t.translateInstXADD()
	case x86asm.CMPXCHG:
		return t.translateInstCMPXCHG()
	case x86asm.INC, x86asm.DEC:
		return t.translateInstINC(op)
	case x86asm.NEG:
		return t.translateInstNEG()
	case x86asm.MUL:
		return t.translateInstMUL()
	case x86asm.IMUL:
		return t.translateInstIMUL()

	// Logical instructions.
	case x86asm.AND, x86asm.OR, x86asm.XOR, x86asm.TEST:
		return t.translateInstLogic(op)
	case x86asm.NOT:
		return t.translateInstNOT()

	// Shift and rotate instructions.
	case x86asm.SHL, x86asm.SHR, x86asm.SAR:
		return t.translateInstShift(op)
	case x86asm.ROL, x86asm.ROR:
		return t.translateInstRotate(op)
	case x86asm.RCL, x86asm.RCR:
		return t.translateInstRotateCarry(op)
	case x86asm.SHLD, x86asm.SHRD:
		return t.translateInstDoubleShift(op)

	// Bit instructions.
	case x86asm.BT, x86asm.BTC, x86asm.BTR, x86asm.BTS:
		return t.translateInstBT(op)
	case x86asm.BSF, x86asm.BSR:
		return t.translateInstBitScan(op)

	// Control transfer instructions.
	case x86asm.JMP:
		return t.translateInstJMP()
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JE, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JS:
		return t.translateInstJcc(op)
	case x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ:
		return t.translateInstJCXZ(op)
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return t.translateInstLOOP(op)
	case x86asm.CALL:
		return t.translateInstCALL()
	case x86asm.RET:
		return t.translateInstRET()

	// Stack instructions.
	case x86asm.PUSH:
		return t.translateInstPUSH()
	case x86asm.POP:
		return t.translateInstPOP()
	case x86asm.PUSHF, x86asm.PUSHFD, x86asm.PUSHFQ:
		return t.translateInstPUSHF(op)
	case x86asm.POPF, x86asm.POPFD, x86asm.POPFQ:
		return t.translateInstPOPF(op)
	case x86asm.LEAVE:
		return t.translateInstLEAVE()
	case x86asm.PUSHA, x86asm.PUSHAD:
		return t.translateInstPUSHA(op)
	case x86asm.POPA, x86asm.POPAD:
		return t.translateInstPOPA(op)

	// Flag instructions.
	case x86asm.CLC, x86asm.STC, x86asm.CMC, x86asm.CLD, x86asm.STD:
		return t.translateInstFlag(op)
	case x86asm.LAHF:
		return t.translateInstLAHF()
	case x86asm.SAHF:
		return t.translateInstSAHF()

	// String instructions.
	case x86asm.STOSB, x86asm.STOSW, x86asm.STOSD, x86asm.STOSQ,
		x86asm.LODSB, x86asm.LODSW, x86asm.LODSD, x86asm.LODSQ,
		x86asm.MOVSB, x86asm.MOVSW, x86asm.MOVSD, x86asm.MOVSQ,
		x86asm.SCASB, x86asm.SCASW, x86asm.SCASD, x86asm.SCASQ,
		x86asm.CMPSB, x86asm.CMPSW, x86asm.CMPSD, x86asm.CMPSQ:
		return t.translateInstString(op)

	case x86asm.NOP:
		t.emit(reil.NOP, reil.EmptyOperand, reil.EmptyOperand, reil.EmptyOperand)
		return nil
	}
	return errorf(KindUnsupported, "support for instruction opcode %v not yet implemented", t.inst.Op)
}

// ### [ Helper functions ] ####################################################

// operands returns the operand trees of the native instruction, checking the
// operand count.
func (t *translator) operands(n int) ([]*x86.Node, error) {
	ops := t.inst.Operands
	if len(ops) != n {
		return nil, errorf(KindMalformedInstruction, "invalid number of operands of %v instruction; expected %d, got %d", t.inst.Op, n, len(ops))
	}
	for i, op := range ops {
		if op == nil {
			return nil, errorf(KindMalformedInstruction, "invalid nil operand %d of %v instruction", i, t.inst.Op)
		}
	}
	return ops, nil
}

// emit appends a REIL instruction to the translation.
func (t *translator) emit(op reil.Opcode, src1, src2, dst reil.Operand) {
	t.b.Emit(op, src1, src2, dst)
}

// tmp returns a fresh temporary register of the given size.
func (t *translator) tmp(size reil.Size) reil.Operand {
	return reil.NewTemp(t.env.NextTemporary(), size)
}

// calc emits op of x and y into a fresh temporary register of the given size,
// and returns the temporary register.
func (t *translator) calc(op reil.Opcode, x, y reil.Operand, size reil.Size) reil.Operand {
	dst := t.tmp(size)
	t.emit(op, x, y, dst)
	return dst
}

// mask truncates x to the given size.
func (t *translator) mask(x reil.Operand, size reil.Size) reil.Operand {
	return t.calc(reil.AND, x, reil.NewBigLit(size.AllBitsMask(), size), size)
}

// reg returns the operand of the given general purpose register family at the
// architecture size.
func (t *translator) reg(family int) reil.Operand {
	return reil.NewReg(x86.FamilyReg(family, t.arch).String(), t.arch)
}

// lit returns an integer literal operand of the given size.
func lit(x int64, size reil.Size) reil.Operand {
	return reil.NewLit(x, size)
}

// bigLit returns an integer literal operand of the given size.
func bigLit(x *big.Int, size reil.Size) reil.Operand {
	return reil.NewBigLit(x, size)
}

// General purpose register families.
const (
	familyA  = 0
	familyC  = 1
	familyD  = 2
	familyB  = 3
	familySP = 4
	familyBP = 5
	familySI = 6
	familyDI = 7
)
