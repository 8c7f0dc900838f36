package lift_test

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/lift"
	"github.com/mewmew/reil/reil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/arch/x86/x86asm"
)

// rep returns the string instruction with the given prefix.
func rep(prefix x86.Prefix, op x86asm.Op) *x86.Instruction {
	i := inst(op)
	i.Prefix = prefix
	return i
}

// setString stores the bytes of s in memory at addr.
func setString(m *machine, addr uint64, s string) {
	for i := 0; i < len(s); i++ {
		m.SetMemory(addr+uint64(i), uint64(s[i]), reil.Byte)
	}
}

var _ = Describe("string instructions", func() {
	It("should fill memory forwards", func() {
		m := newMachine(reil.Dword).set("edi", 0x100).set("ecx", 4).set("eax", 0xAABBCCDD)
		m.run(rep(x86.PrefixRep, x86asm.STOSD))
		for addr := uint64(0x100); addr < 0x110; addr += 4 {
			Expect(m.load(addr, reil.Dword)).To(Equal(uint64(0xAABBCCDD)))
		}
		Expect(m.MemorySize()).To(Equal(16))
		Expect(m.get("edi")).To(Equal(uint64(0x110)))
		Expect(m.get("ecx")).To(Equal(uint64(0)))
	})

	It("should fill memory backwards if DF is set", func() {
		m := newMachine(reil.Dword).set("edi", 0x10C).set("ecx", 4).set("eax", 0x11111111).set("DF", 1)
		m.run(rep(x86.PrefixRep, x86asm.STOSD))
		for addr := uint64(0x100); addr < 0x110; addr += 4 {
			Expect(m.load(addr, reil.Dword)).To(Equal(uint64(0x11111111)))
		}
		Expect(m.get("edi")).To(Equal(uint64(0xFC)))
	})

	It("should not execute the body for a zero counter", func() {
		m := newMachine(reil.Dword).set("edi", 0x100).set("esi", 0x200)
		m.run(rep(x86.PrefixRep, x86asm.MOVSB))
		Expect(m.MemorySize()).To(Equal(0))
		Expect(m.get("edi")).To(Equal(uint64(0x100)))
		Expect(m.get("esi")).To(Equal(uint64(0x200)))
	})

	It("should copy memory", func() {
		m := newMachine(reil.Dword).set("esi", 0x200).set("edi", 0x300).set("ecx", 3)
		setString(m, 0x200, "abc")
		m.run(rep(x86.PrefixRep, x86asm.MOVSB))
		Expect(m.load(0x300, reil.Byte)).To(Equal(uint64('a')))
		Expect(m.load(0x301, reil.Byte)).To(Equal(uint64('b')))
		Expect(m.load(0x302, reil.Byte)).To(Equal(uint64('c')))
		Expect(m.get("esi")).To(Equal(uint64(0x203)))
		Expect(m.get("edi")).To(Equal(uint64(0x303)))
	})

	It("should copy memory with a single step if not repeated", func() {
		m := newMachine(reil.Dword).set("esi", 0x200).set("edi", 0x300).set("ecx", 3)
		m.SetMemory(0x200, 0x12345678, reil.Dword)
		m.run(inst(x86asm.MOVSD))
		Expect(m.load(0x300, reil.Dword)).To(Equal(uint64(0x12345678)))
		Expect(m.get("ecx")).To(Equal(uint64(3)))
		Expect(m.get("esi")).To(Equal(uint64(0x204)))
	})

	It("should compare strings while equal", func() {
		m := newMachine(reil.Dword).set("esi", 0x200).set("edi", 0x300).set("ecx", 10)
		setString(m, 0x200, "abcX")
		setString(m, 0x300, "abdX")
		m.run(rep(x86.PrefixRep, x86asm.CMPSB))
		Expect(m.get("ecx")).To(Equal(uint64(7)))
		Expect(m.get("ZF")).To(Equal(uint64(0)))
		Expect(m.get("esi")).To(Equal(uint64(0x203)))
	})

	It("should scan strings while not equal", func() {
		m := newMachine(reil.Dword).set("edi", 0x300).set("ecx", 10)
		setString(m, 0x300, "ab\x00")
		m.run(rep(x86.PrefixRepne, x86asm.SCASB))
		Expect(m.get("ecx")).To(Equal(uint64(7)))
		Expect(m.get("edi")).To(Equal(uint64(0x303)))
		Expect(m.get("ZF")).To(Equal(uint64(1)))
	})

	It("should load into the accumulator", func() {
		m := newMachine(reil.Qword).set("rsi", 0x200).set("rax", 0xFFFFFFFFFFFFFFFF)
		m.SetMemory(0x200, 0x1234, reil.Word)
		m.run(inst(x86asm.LODSW))
		Expect(m.get("rax")).To(Equal(uint64(0xFFFFFFFFFFFF1234)))
		Expect(m.get("rsi")).To(Equal(uint64(0x202)))
	})

	It("should store 64-bit elements on x64", func() {
		m := newMachine(reil.Qword).set("rdi", 0x100).set("rcx", 2).set("rax", 0x0102030405060708)
		m.run(rep(x86.PrefixRep, x86asm.STOSQ))
		Expect(m.load(0x108, reil.Qword)).To(Equal(uint64(0x0102030405060708)))
		Expect(m.get("rdi")).To(Equal(uint64(0x110)))
		Expect(m.get("rcx")).To(Equal(uint64(0)))
	})

	It("should reject 64-bit elements on x86", func() {
		m := newMachine(reil.Dword)
		_, err := m.lift(inst(x86asm.STOSQ))
		Expect(errKind(err)).To(Equal(lift.KindInvalidRegisterName))
	})

	It("should reject explicit operands", func() {
		m := newMachine(reil.Dword)
		_, err := m.lift(inst(x86asm.STOSB, reg(x86.AL)))
		Expect(errKind(err)).To(Equal(lift.KindMalformedInstruction))
	})
})
