package lift_test

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/lift"
	"github.com/mewmew/reil/reil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/arch/x86/x86asm"
)

var _ = Describe("data transfer instructions", func() {
	Context("with MOV", func() {
		It("should write sub-registers without clobbering their parent", func() {
			m := newMachine(reil.Dword)
			m.run(
				inst(x86asm.MOV, reg(x86.EAX), imm(0x12345678, reil.Dword)),
				inst(x86asm.MOV, reg(x86.AL), imm(0xAB, reil.Byte)),
				inst(x86asm.MOV, reg(x86.AH), imm(0xCD, reil.Byte)),
			)
			Expect(m.get("eax")).To(Equal(uint64(0x1234CDAB)))
		})

		It("should round-trip values through sub-registers", func() {
			for _, x := range []uint64{0x00, 0x01, 0x7F, 0x80, 0xA5, 0xFF} {
				m := newMachine(reil.Dword).set("ebx", 0xDEADBEEF)
				m.run(
					inst(x86asm.MOV, reg(x86.AH), imm(x, reil.Byte)),
					inst(x86asm.MOV, reg(x86.BL), reg(x86.AH)),
					inst(x86asm.MOV, reg(x86.CX), reg(x86.BX)),
				)
				Expect(m.get("eax")).To(Equal(x << 8))
				Expect(m.get("ebx")).To(Equal(0xDEADBE00 | x))
				Expect(m.get("ecx")).To(Equal(0xBE00 | x))
			}
		})

		It("should zero-extend 32-bit writes on x64", func() {
			m := newMachine(reil.Qword).set("rax", 0xFFFFFFFFFFFFFFFF).set("rbx", 0x1122334455667788)
			m.run(inst(x86asm.MOV, reg(x86.EAX), reg(x86.EBX)))
			Expect(m.get("rax")).To(Equal(uint64(0x55667788)))
		})

		It("should preserve upper bits of 16 and 8-bit writes on x64", func() {
			m := newMachine(reil.Qword).set("r8", 0xFFFFFFFFFFFFFFFF)
			m.run(
				inst(x86asm.MOV, reg(x86.R8W), imm(0x1234, reil.Word)),
				inst(x86asm.MOV, reg(x86.SIL), imm(0x56, reil.Byte)),
			)
			Expect(m.get("r8")).To(Equal(uint64(0xFFFFFFFFFFFF1234)))
			Expect(m.get("rsi")).To(Equal(uint64(0x56)))
		})

		It("should store to and load from memory", func() {
			m := newMachine(reil.Dword).set("ebx", 0x2000).set("ecx", 0xCAFEBABE)
			m.run(
				inst(x86asm.MOV, mem(reil.Dword, x86.Op("+", x86.Register(x86.EBX), x86.Literal(8))), reg(x86.ECX)),
				inst(x86asm.MOV, reg(x86.DX), mem(reil.Word, x86.Op("+", x86.Register(x86.EBX), x86.Literal(10)))),
			)
			Expect(m.load(0x2008, reil.Dword)).To(Equal(uint64(0xCAFEBABE)))
			Expect(m.get("edx")).To(Equal(uint64(0xCAFE)))
		})

		It("should reject literal targets", func() {
			m := newMachine(reil.Dword)
			_, err := m.lift(inst(x86asm.MOV, imm(1, reil.Dword), reg(x86.EAX)))
			Expect(errKind(err)).To(Equal(lift.KindInvalidTargetType))
		})
	})

	Context("with MOVZX and MOVSX", func() {
		It("should zero-extend", func() {
			m := newMachine(reil.Dword).set("ebx", 0x80)
			m.run(inst(x86asm.MOVZX, reg(x86.EAX), reg(x86.BL)))
			Expect(m.get("eax")).To(Equal(uint64(0x80)))
		})

		It("should sign-extend", func() {
			m := newMachine(reil.Dword).set("ebx", 0x80)
			m.run(inst(x86asm.MOVSX, reg(x86.EAX), reg(x86.BL)))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFFFF80)))
		})

		It("should sign-extend memory operands", func() {
			m := newMachine(reil.Qword).set("rbx", 0x3000)
			m.SetMemory(0x3000, 0x80000000, reil.Dword)
			m.run(inst(x86asm.MOVSXD, reg(x86.RAX), mem(reil.Dword, x86.Register(x86.RBX))))
			Expect(m.get("rax")).To(Equal(uint64(0xFFFFFFFF80000000)))
		})
	})

	Context("with LEA", func() {
		It("should compute effective addresses", func() {
			m := newMachine(reil.Dword).set("ebx", 0x100).set("ecx", 2)
			addr := x86.Op("+", x86.Register(x86.EBX), x86.Op("*", x86.Register(x86.ECX), x86.Literal(4)), x86.Literal(8))
			m.run(inst(x86asm.LEA, reg(x86.EAX), mem(reil.Dword, addr)))
			Expect(m.get("eax")).To(Equal(uint64(0x110)))
			Expect(m.MemorySize()).To(Equal(0))
		})

		It("should wrap effective addresses", func() {
			m := newMachine(reil.Dword).set("ebx", 0xFFFFFFFF)
			m.run(inst(x86asm.LEA, reg(x86.EAX), mem(reil.Dword, x86.Op("+", x86.Register(x86.EBX), x86.Literal(2)))))
			Expect(m.get("eax")).To(Equal(uint64(1)))
		})

		It("should ignore segment overrides", func() {
			m := newMachine(reil.Dword).set("ebx", 0x100)
			m.SetRegister("fsbase", 0x7000, reil.Dword)
			src := x86.Sized(reil.Dword, x86.Segment(x86.FS, x86.Deref(x86.Op("+", x86.Register(x86.EBX), x86.Literal(4)))))
			m.run(inst(x86asm.LEA, reg(x86.EAX), src))
			Expect(m.get("eax")).To(Equal(uint64(0x104)))
		})

		It("should not read segment bases of effective addresses", func() {
			m := newMachine(reil.Dword)
			src := x86.Sized(reil.Dword, x86.Segment(x86.GS, x86.Deref(x86.Register(x86.EBX))))
			insts, err := m.lift(inst(x86asm.LEA, reg(x86.EAX), src))
			Expect(err).NotTo(HaveOccurred())
			Expect(text(insts)).NotTo(ContainElement(ContainSubstring("gsbase")))
		})

		It("should reject register sources", func() {
			m := newMachine(reil.Dword)
			_, err := m.lift(inst(x86asm.LEA, reg(x86.EAX), reg(x86.EBX)))
			Expect(errKind(err)).To(Equal(lift.KindMalformedInstruction))
		})
	})

	Context("with XCHG", func() {
		It("should swap registers", func() {
			m := newMachine(reil.Dword).set("eax", 1).set("ebx", 2)
			m.run(inst(x86asm.XCHG, reg(x86.EAX), reg(x86.EBX)))
			Expect(m.get("eax")).To(Equal(uint64(2)))
			Expect(m.get("ebx")).To(Equal(uint64(1)))
		})

		It("should swap sub-registers of the same parent", func() {
			m := newMachine(reil.Dword).set("eax", 0x1122)
			m.run(inst(x86asm.XCHG, reg(x86.AL), reg(x86.AH)))
			Expect(m.get("eax")).To(Equal(uint64(0x2211)))
		})
	})

	Context("with BSWAP", func() {
		It("should reverse the bytes of 32-bit registers", func() {
			m := newMachine(reil.Dword).set("eax", 0x12345678)
			m.run(inst(x86asm.BSWAP, reg(x86.EAX)))
			Expect(m.get("eax")).To(Equal(uint64(0x78563412)))
		})

		It("should reverse the bytes of 64-bit registers", func() {
			m := newMachine(reil.Qword).set("rax", 0x0102030405060708)
			m.run(inst(x86asm.BSWAP, reg(x86.RAX)))
			Expect(m.get("rax")).To(Equal(uint64(0x0807060504030201)))
		})

		It("should be its own inverse", func() {
			for _, arch := range []reil.Size{reil.Dword, reil.Qword} {
				m := newMachine(arch)
				r := x86.FamilyReg(2, arch)
				m.set(r.String(), 0x8899AABBCCDDEEFF&arch.AllBitsMask().Uint64())
				m.run(inst(x86asm.BSWAP, reg(r)), inst(x86asm.BSWAP, reg(r)))
				Expect(m.get(r.String())).To(Equal(0x8899AABBCCDDEEFF & arch.AllBitsMask().Uint64()))
			}
		})

		It("should reject 16-bit operands", func() {
			m := newMachine(reil.Dword)
			_, err := m.lift(inst(x86asm.BSWAP, reg(x86.AX)))
			Expect(errKind(err)).To(Equal(lift.KindMalformedInstruction))
		})
	})

	Context("with sign extension of the accumulator", func() {
		It("should sign-extend al into ax", func() {
			m := newMachine(reil.Dword).set("eax", 0x12340080)
			m.run(inst(x86asm.CBW))
			Expect(m.get("eax")).To(Equal(uint64(0x1234FF80)))
		})

		It("should sign-extend ax into eax", func() {
			m := newMachine(reil.Dword).set("eax", 0x8000)
			m.run(inst(x86asm.CWDE))
			Expect(m.get("eax")).To(Equal(uint64(0xFFFF8000)))
		})

		It("should sign-extend eax into rax", func() {
			m := newMachine(reil.Qword).set("rax", 0x80000000)
			m.run(inst(x86asm.CDQE))
			Expect(m.get("rax")).To(Equal(uint64(0xFFFFFFFF80000000)))
		})

		It("should fill edx with the sign of eax", func() {
			m := newMachine(reil.Dword).set("eax", 0x80000000).set("edx", 0x1234)
			m.run(inst(x86asm.CDQ))
			Expect(m.get("edx")).To(Equal(uint64(0xFFFFFFFF)))
			m.set("eax", 1)
			m.run(inst(x86asm.CDQ))
			Expect(m.get("edx")).To(Equal(uint64(0)))
		})

		It("should fill rdx with the sign of rax", func() {
			m := newMachine(reil.Qword).set("rax", 0x8000000000000000)
			m.run(inst(x86asm.CQO))
			Expect(m.get("rdx")).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
		})

		It("should fill dx with the sign of ax", func() {
			m := newMachine(reil.Dword).set("eax", 0xFFFF7FFF).set("edx", 0xAAAAAAAA)
			m.run(inst(x86asm.CWD))
			Expect(m.get("edx")).To(Equal(uint64(0xAAAA0000)))
		})
	})

	Context("with CMOVcc", func() {
		It("should move if the condition holds", func() {
			m := newMachine(reil.Dword).set("eax", 1).set("ebx", 2).set("ZF", 1)
			m.run(inst(x86asm.CMOVE, reg(x86.EAX), reg(x86.EBX)))
			Expect(m.get("eax")).To(Equal(uint64(2)))
		})

		It("should keep the destination if the condition does not hold", func() {
			m := newMachine(reil.Dword).set("eax", 1).set("ebx", 2)
			m.run(inst(x86asm.CMOVE, reg(x86.EAX), reg(x86.EBX)))
			Expect(m.get("eax")).To(Equal(uint64(1)))
		})

		It("should write 32-bit destinations on x64 regardless of the condition", func() {
			m := newMachine(reil.Qword).set("rax", 0xFFFFFFFF00000001).set("rbx", 2).set("ZF", 1)
			m.run(inst(x86asm.CMOVNE, reg(x86.EAX), reg(x86.EBX)))
			Expect(m.get("rax")).To(Equal(uint64(1)))
		})
	})

	Context("with XLATB", func() {
		It("should look up al in the table at ebx", func() {
			m := newMachine(reil.Dword).set("eax", 0x12345603).set("ebx", 0x4000)
			m.SetMemory(0x4003, 0xAB, reil.Byte)
			m.run(inst(x86asm.XLATB))
			Expect(m.get("eax")).To(Equal(uint64(0x123456AB)))
		})

		It("should look up al in the table at rbx on x64", func() {
			m := newMachine(reil.Qword).set("rax", 0xFF).set("rbx", 0x100004000)
			m.SetMemory(0x1000040FF, 0x7E, reil.Byte)
			m.run(inst(x86asm.XLATB))
			Expect(m.get("rax")).To(Equal(uint64(0x7E)))
		})
	})
})
