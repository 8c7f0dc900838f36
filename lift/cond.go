package lift

import (
	"github.com/mewmew/reil/reil"
	"golang.org/x/arch/x86/x86asm"
)

// cond is an x86 condition code.
type cond uint8

// Condition codes.
const (
	condO  cond = iota // OF
	condNO             // !OF
	condB              // CF
	condAE             // !CF
	condE              // ZF
	condNE             // !ZF
	condBE             // CF | ZF
	condA              // !(CF | ZF)
	condS              // SF
	condNS             // !SF
	condP              // PF
	condNP             // !PF
	condL              // SF ^ OF
	condGE             // !(SF ^ OF)
	condLE             // ZF | (SF ^ OF)
	condG              // !(ZF | (SF ^ OF))
)

// condOf maps from conditional instruction opcode to condition code.
var condOf = map[x86asm.Op]cond{
	// Jcc
	x86asm.JO: condO, x86asm.JNO: condNO, x86asm.JB: condB, x86asm.JAE: condAE,
	x86asm.JE: condE, x86asm.JNE: condNE, x86asm.JBE: condBE, x86asm.JA: condA,
	x86asm.JS: condS, x86asm.JNS: condNS, x86asm.JP: condP, x86asm.JNP: condNP,
	x86asm.JL: condL, x86asm.JGE: condGE, x86asm.JLE: condLE, x86asm.JG: condG,
	// SETcc
	x86asm.SETO: condO, x86asm.SETNO: condNO, x86asm.SETB: condB, x86asm.SETAE: condAE,
	x86asm.SETE: condE, x86asm.SETNE: condNE, x86asm.SETBE: condBE, x86asm.SETA: condA,
	x86asm.SETS: condS, x86asm.SETNS: condNS, x86asm.SETP: condP, x86asm.SETNP: condNP,
	x86asm.SETL: condL, x86asm.SETGE: condGE, x86asm.SETLE: condLE, x86asm.SETG: condG,
	// CMOVcc
	x86asm.CMOVO: condO, x86asm.CMOVNO: condNO, x86asm.CMOVB: condB, x86asm.CMOVAE: condAE,
	x86asm.CMOVE: condE, x86asm.CMOVNE: condNE, x86asm.CMOVBE: condBE, x86asm.CMOVA: condA,
	x86asm.CMOVS: condS, x86asm.CMOVNS: condNS, x86asm.CMOVP: condP, x86asm.CMOVNP: condNP,
	x86asm.CMOVL: condL, x86asm.CMOVGE: condGE, x86asm.CMOVLE: condLE, x86asm.CMOVG: condG,
}

// condition emits the evaluation of the condition code of the given
// conditional instruction, and returns the single-byte operand holding 1 if
// the condition holds and 0 otherwise.
func (t *translator) condition(op x86asm.Op) (reil.Operand, error) {
	c, ok := condOf[op]
	if !ok {
		return reil.Operand{}, errorf(KindMalformedInstruction, "invalid conditional instruction %v", op)
	}
	return t.evalCond(c), nil
}

// evalCond emits the evaluation of the given condition code.
func (t *translator) evalCond(c cond) reil.Operand {
	switch c {
	case condO:
		return of
	case condB:
		return cf
	case condE:
		return zf
	case condBE:
		return t.calc(reil.OR, cf, zf, reil.Byte)
	case condS:
		return sf
	case condP:
		return pf
	case condL:
		return t.calc(reil.XOR, sf, of, reil.Byte)
	case condLE:
		less := t.calc(reil.XOR, sf, of, reil.Byte)
		return t.calc(reil.OR, zf, less, reil.Byte)
	}
	// Odd condition codes negate the preceding even condition code.
	return t.not(t.evalCond(c - 1))
}
