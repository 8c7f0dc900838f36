package lift_test

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/arch/x86/x86asm"
)

// arithRef returns the result and flags of the addition (or subtraction) of x,
// y and the carry-in c, of the given size.
func arithRef(x, y, c uint64, sub bool, size reil.Size) (uint64, flagSet) {
	bx, by, bc := new(big.Int).SetUint64(x), new(big.Int).SetUint64(y), new(big.Int).SetUint64(c)
	full := new(big.Int)
	var low int64
	if sub {
		full.Sub(bx, by).Sub(full, bc)
		low = int64(x&0xF) - int64(y&0xF) - int64(c)
	} else {
		full.Add(bx, by).Add(full, bc)
		low = int64(x&0xF) + int64(y&0xF) + int64(c)
	}
	res := size.Truncate(full).Uint64()
	msb := size.MSBMask().Uint64()
	var f flagSet
	if full.Sign() < 0 || full.Cmp(size.AllBitsMask()) > 0 {
		f.CF = 1
	}
	if low < 0 || low > 0xF {
		f.AF = 1
	}
	if sub {
		if (x^y)&(x^res)&msb != 0 {
			f.OF = 1
		}
	} else if (x^res)&(y^res)&msb != 0 {
		f.OF = 1
	}
	if res&msb != 0 {
		f.SF = 1
	}
	if res == 0 {
		f.ZF = 1
	}
	f.PF = parity8(res)
	return res, f
}

// boundaries returns the boundary values of the given size; 0, 1, max/2,
// max/2+1 and max.
func boundaries(size reil.Size) []uint64 {
	all := size.AllBitsMask().Uint64()
	return []uint64{0, 1, all / 2, all/2 + 1, all}
}

// arithOps are the arithmetic instructions checked against arithRef.
var arithOps = []struct {
	op    x86asm.Op
	sub   bool
	carry bool
}{
	{op: x86asm.ADD},
	{op: x86asm.ADC, carry: true},
	{op: x86asm.SUB, sub: true},
	{op: x86asm.SBB, sub: true, carry: true},
}

// parity8 returns 1 if x has an even number of set bits in its least
// significant byte.
func parity8(x uint64) uint64 {
	if bits.OnesCount8(uint8(x))%2 == 0 {
		return 1
	}
	return 0
}

var _ = Describe("arithmetic instructions", func() {
	Context("with 8-bit operands", func() {
		values := []uint64{0x00, 0x01, 0x0F, 0x10, 0x7F, 0x80, 0xFF}
		for _, o := range arithOps {
			carries := []uint64{0}
			if o.carry {
				carries = []uint64{0, 1}
			}
			for _, x := range values {
				for _, y := range values {
					for _, c := range carries {
						o, x, y, c := o, x, y, c
						It(fmt.Sprintf("should compute %v of 0x%02X and 0x%02X with CF=%d", o.op, x, y, c), func() {
							m := newMachine(reil.Dword).set("eax", 0x12345600|x).set("CF", c)
							m.run(inst(o.op, reg(x86.AL), imm(y, reil.Byte)))
							want, flags := arithRef(x, y, c, o.sub, reil.Byte)
							Expect(m.get("eax")).To(Equal(0x12345600 | want))
							Expect(m.flags()).To(Equal(flags))
						})
					}
				}
			}
		}
	})

	Context("with boundary values of every operand size", func() {
		golden := []struct {
			arch   reil.Size
			reg    x86.Reg
			parent string
			// Bits of the parent register outside of reg.
			rest uint64
			// Bit offset of reg within its parent.
			shift uint
			// Parent register is zero-extended on writes to reg.
			zext bool
		}{
			{arch: reil.Dword, reg: x86.AH, parent: "eax", rest: 0x12340056, shift: 8},
			{arch: reil.Dword, reg: x86.AX, parent: "eax", rest: 0xABCD0000},
			{arch: reil.Dword, reg: x86.EAX, parent: "eax"},
			{arch: reil.Qword, reg: x86.AX, parent: "rax", rest: 0x0123456789AB0000},
			{arch: reil.Qword, reg: x86.EAX, parent: "rax", rest: 0xDEADBEEF00000000, zext: true},
			{arch: reil.Qword, reg: x86.RAX, parent: "rax"},
		}
		for _, g := range golden {
			size := g.reg.Size()
			for _, o := range arithOps {
				for _, x := range boundaries(size) {
					for _, y := range boundaries(size) {
						for _, c := range []uint64{0, 1} {
							g, o, x, y, c := g, o, x, y, c
							It(fmt.Sprintf("should compute %v %v of 0x%X and 0x%X with CF=%d", o.op, g.reg, x, y, c), func() {
								m := newMachine(g.arch).set(g.parent, g.rest|x<<g.shift).set("CF", c)
								m.run(inst(o.op, reg(g.reg), imm(y, size)))
								carry := c
								if !o.carry {
									carry = 0
								}
								want, flags := arithRef(x, y, carry, o.sub, size)
								rest := g.rest
								if g.zext {
									rest = 0
								}
								Expect(m.get(g.parent)).To(Equal(rest | want<<g.shift))
								Expect(m.flags()).To(Equal(flags))
							})
						}
					}
				}
			}
		}
	})

	It("should add with carry at the architecture size", func() {
		m := newMachine(reil.Dword).set("eax", 0xFFFFFFFF)
		m.run(inst(x86asm.ADC, reg(x86.EAX), imm(1, reil.Dword)))
		Expect(m.get("eax")).To(Equal(uint64(0)))
		Expect(m.flags()).To(Equal(flagSet{CF: 1, OF: 0, SF: 0, ZF: 1, AF: 1, PF: 1}))
	})

	It("should subtract 64-bit operands", func() {
		m := newMachine(reil.Qword).set("rax", 0x8000000000000000).set("rbx", 1)
		m.run(inst(x86asm.SUB, reg(x86.RAX), reg(x86.RBX)))
		Expect(m.get("rax")).To(Equal(uint64(0x7FFFFFFFFFFFFFFF)))
		Expect(m.get("OF")).To(Equal(uint64(1)))
		Expect(m.get("CF")).To(Equal(uint64(0)))
	})

	It("should add memory operands", func() {
		m := newMachine(reil.Dword).set("ebx", 0x2000).set("ecx", 0x10)
		m.SetMemory(0x2004, 0xFFFF, reil.Word)
		m.run(inst(x86asm.ADD, mem(reil.Word, x86.Op("+", x86.Register(x86.EBX), x86.Literal(4))), reg(x86.CX)))
		Expect(m.load(0x2004, reil.Word)).To(Equal(uint64(0x000F)))
		Expect(m.get("CF")).To(Equal(uint64(1)))
	})

	It("should compare without writing back", func() {
		m := newMachine(reil.Dword).set("eax", 5)
		m.run(inst(x86asm.CMP, reg(x86.EAX), imm(5, reil.Dword)))
		Expect(m.get("eax")).To(Equal(uint64(5)))
		Expect(m.get("ZF")).To(Equal(uint64(1)))
		Expect(m.get("CF")).To(Equal(uint64(0)))
	})

	It("should exchange and add", func() {
		m := newMachine(reil.Dword).set("eax", 1).set("ebx", 2)
		m.run(inst(x86asm.XADD, reg(x86.EAX), reg(x86.EBX)))
		Expect(m.get("eax")).To(Equal(uint64(3)))
		Expect(m.get("ebx")).To(Equal(uint64(1)))
	})

	It("should zero-extend 32-bit exchange and add on x64", func() {
		m := newMachine(reil.Qword).set("rax", 0xFFFFFFFFFFFFFFFF).set("rbx", 1)
		m.run(inst(x86asm.XADD, reg(x86.EAX), reg(x86.EBX)))
		Expect(m.get("rax")).To(Equal(uint64(0)))
		Expect(m.get("rbx")).To(Equal(uint64(0xFFFFFFFF)))
		Expect(m.get("CF")).To(Equal(uint64(1)))
	})

	Context("with INC and DEC", func() {
		It("should preserve the carry flag when incrementing", func() {
			m := newMachine(reil.Dword).set("eax", 0xFFFFFFFF).set("CF", 1)
			m.run(inst(x86asm.INC, reg(x86.EAX)))
			Expect(m.get("eax")).To(Equal(uint64(0)))
			Expect(m.get("ZF")).To(Equal(uint64(1)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
		})

		It("should preserve the carry flag when decrementing", func() {
			m := newMachine(reil.Dword)
			m.run(inst(x86asm.DEC, reg(x86.EAX)))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFFFFFF)))
			Expect(m.get("SF")).To(Equal(uint64(1)))
			Expect(m.get("CF")).To(Equal(uint64(0)))
		})

		It("should set the overflow flag", func() {
			m := newMachine(reil.Dword).set("eax", 0x7F)
			m.run(inst(x86asm.INC, reg(x86.AL)))
			Expect(m.get("eax")).To(Equal(uint64(0x80)))
			Expect(m.get("OF")).To(Equal(uint64(1)))
		})
	})

	Context("with NEG", func() {
		It("should negate non-zero operands", func() {
			m := newMachine(reil.Dword).set("eax", 1)
			m.run(inst(x86asm.NEG, reg(x86.EAX)))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFFFFFF)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
		})

		It("should clear the carry flag for zero", func() {
			m := newMachine(reil.Dword).set("CF", 1)
			m.run(inst(x86asm.NEG, reg(x86.EAX)))
			Expect(m.get("eax")).To(Equal(uint64(0)))
			Expect(m.get("CF")).To(Equal(uint64(0)))
			Expect(m.get("ZF")).To(Equal(uint64(1)))
		})
	})

	Context("with MUL", func() {
		It("should store the double-width product in edx:eax", func() {
			m := newMachine(reil.Dword).set("eax", 0x80000000).set("ecx", 4)
			m.run(inst(x86asm.MUL, reg(x86.ECX)))
			Expect(m.get("eax")).To(Equal(uint64(0)))
			Expect(m.get("edx")).To(Equal(uint64(2)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
			Expect(m.get("OF")).To(Equal(uint64(1)))
			for _, flag := range []string{"SF", "ZF", "AF", "PF"} {
				Expect(m.IsDefined(flag)).To(BeFalse(), flag)
			}
		})

		It("should store 8-bit products in ax", func() {
			m := newMachine(reil.Dword).set("eax", 0xFFFF0010).set("ebx", 0x10)
			m.run(inst(x86asm.MUL, reg(x86.BL)))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFF0100)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
		})

		It("should clear the carry flag for products fitting the lower half", func() {
			m := newMachine(reil.Qword).set("rax", 3).set("rcx", 5).set("rdx", 0x1234)
			m.run(inst(x86asm.MUL, reg(x86.RCX)))
			Expect(m.get("rax")).To(Equal(uint64(15)))
			Expect(m.get("rdx")).To(Equal(uint64(0)))
			Expect(m.get("CF")).To(Equal(uint64(0)))
		})
	})

	Context("with IMUL", func() {
		It("should multiply signed one-operand forms", func() {
			m := newMachine(reil.Dword).set("eax", 0xFFFFFFFE).set("ecx", 3)
			m.run(inst(x86asm.IMUL, reg(x86.ECX)))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFFFFFA)))
			Expect(m.get("edx")).To(Equal(uint64(0xFFFFFFFF)))
			Expect(m.get("CF")).To(Equal(uint64(0)))
		})

		It("should multiply two-operand forms", func() {
			m := newMachine(reil.Dword).set("eax", 7).set("ecx", 6)
			m.run(inst(x86asm.IMUL, reg(x86.EAX), reg(x86.ECX)))
			Expect(m.get("eax")).To(Equal(uint64(42)))
			Expect(m.get("OF")).To(Equal(uint64(0)))
		})

		It("should detect overflow of three-operand forms", func() {
			m := newMachine(reil.Dword).set("ecx", 0x10000000)
			m.run(inst(x86asm.IMUL, reg(x86.EAX), reg(x86.ECX), imm(0x10, reil.Dword)))
			Expect(m.get("eax")).To(Equal(uint64(0)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
			Expect(m.get("OF")).To(Equal(uint64(1)))
		})
	})

	Context("with CMPXCHG", func() {
		It("should store the source when the accumulator matches", func() {
			m := newMachine(reil.Dword).set("eax", 5).set("ebx", 0x4000).set("ecx", 9)
			m.SetMemory(0x4000, 5, reil.Dword)
			m.run(inst(x86asm.CMPXCHG, mem(reil.Dword, x86.Register(x86.EBX)), reg(x86.ECX)))
			Expect(m.load(0x4000, reil.Dword)).To(Equal(uint64(9)))
			Expect(m.get("eax")).To(Equal(uint64(5)))
			Expect(m.get("ZF")).To(Equal(uint64(1)))
		})

		It("should load the accumulator when the comparison fails", func() {
			m := newMachine(reil.Dword).set("eax", 5).set("ebx", 0x4000).set("ecx", 9)
			m.SetMemory(0x4000, 7, reil.Dword)
			m.run(inst(x86asm.CMPXCHG, mem(reil.Dword, x86.Register(x86.EBX)), reg(x86.ECX)))
			Expect(m.load(0x4000, reil.Dword)).To(Equal(uint64(7)))
			Expect(m.get("eax")).To(Equal(uint64(7)))
			Expect(m.get("ZF")).To(Equal(uint64(0)))
			Expect(m.get("CF")).To(Equal(uint64(1)))
		})

		It("should compare against al for 8-bit operands", func() {
			m := newMachine(reil.Dword).set("eax", 0x11111133).set("ebx", 0x44).set("ecx", 0x55)
			m.run(inst(x86asm.CMPXCHG, reg(x86.BL), reg(x86.CL)))
			Expect(m.get("eax")).To(Equal(uint64(0x11111144)))
			Expect(m.get("ebx")).To(Equal(uint64(0x44)))
		})

		It("should leave the accumulator untouched on matches on x64", func() {
			m := newMachine(reil.Qword).set("rax", 0xFFFFFFFF00000005).set("rbx", 5).set("rcx", 9)
			m.run(inst(x86asm.CMPXCHG, reg(x86.EBX), reg(x86.ECX)))
			Expect(m.get("rax")).To(Equal(uint64(0xFFFFFFFF00000005)))
			Expect(m.get("rbx")).To(Equal(uint64(9)))
		})
	})
})
