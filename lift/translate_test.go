package lift_test

import (
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/lift"
	"github.com/mewmew/reil/reil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/arch/x86/x86asm"
)

var _ = Describe("Translate", func() {
	It("should address translations from the native instruction address", func() {
		env := lift.NewEnv(reil.Dword)
		i := at(0x401000, 2, rep(x86.PrefixRep, x86asm.STOSB))
		insts, err := lift.Translate(env, i)
		Expect(err).NotTo(HaveOccurred())
		for local, inst := range insts {
			Expect(inst.Addr).To(Equal(reil.Addr{Native: 0x401000, Local: uint8(local)}))
		}
		last := insts[len(insts)-1]
		Expect(last.Op).To(Equal(reil.NOP))
		var targets []reil.Value
		for _, inst := range insts {
			if inst.Op == reil.JCC {
				targets = append(targets, inst.Dst.Value)
			}
		}
		Expect(targets).To(Equal([]reil.Value{
			reil.SubAddr{Native: 0x401000, Local: last.Addr.Local},
			reil.SubAddr{Native: 0x401000, Local: 0},
		}))
	})

	It("should translate literal jump targets to native addresses", func() {
		env := lift.NewEnv(reil.Dword)
		insts, err := lift.Translate(env, at(0x1000, 2, inst(x86asm.JMP, imm(0x2000, reil.Dword))))
		Expect(err).NotTo(HaveOccurred())
		Expect(insts).To(HaveLen(1))
		Expect(insts[0].String()).To(Equal("0000100000: jcc [byte 1, empty, dword 8192]"))
		Expect(insts[0].IsUnconditional()).To(BeTrue())
	})

	It("should share temporaries across translations of one environment", func() {
		env := lift.NewEnv(reil.Dword)
		first, err := lift.Translate(env, at(0x1000, 2, inst(x86asm.ADD, reg(x86.EAX), reg(x86.EBX))))
		Expect(err).NotTo(HaveOccurred())
		second, err := lift.Translate(env, at(0x1002, 2, inst(x86asm.ADD, reg(x86.EAX), reg(x86.EBX))))
		Expect(err).NotTo(HaveOccurred())
		seen := make(map[reil.Temp]bool)
		for _, inst := range first {
			if t, ok := inst.Dst.Value.(reil.Temp); ok {
				seen[t] = true
			}
		}
		for _, inst := range second {
			if t, ok := inst.Dst.Value.(reil.Temp); ok {
				Expect(seen).NotTo(HaveKey(t))
			}
		}
	})

	DescribeTable("should report translation errors",
		func(arch reil.Size, i *x86.Instruction, kind lift.Kind) {
			_, err := lift.Translate(lift.NewEnv(arch), i)
			Expect(err).To(HaveOccurred())
			Expect(errKind(err)).To(Equal(kind))
		},
		Entry("unsupported instruction", reil.Dword, inst(x86asm.HLT), lift.KindUnsupported),
		Entry("missing operand", reil.Dword, inst(x86asm.MOV, reg(x86.EAX)), lift.KindMalformedInstruction),
		Entry("nil operand", reil.Dword, inst(x86asm.PUSH, nil), lift.KindMalformedInstruction),
		Entry("64-bit register on x86", reil.Dword, inst(x86asm.INC, reg(x86.RAX)), lift.KindInvalidRegisterName),
		Entry("literal destination", reil.Dword, inst(x86asm.ADD, imm(1, reil.Dword), imm(2, reil.Dword)), lift.KindInvalidTargetType),
		Entry("segment:offset target", reil.Dword, inst(x86asm.JMP, x86.Op(":", x86.Literal(0x10), x86.Literal(0x2000))), lift.KindUnsupportedAddressingForm),
		Entry("too many RET operands", reil.Dword, inst(x86asm.RET, imm(1, reil.Word), imm(2, reil.Word)), lift.KindMalformedInstruction),
	)

	It("should panic on invalid arguments", func() {
		Expect(func() { lift.Translate(nil, inst(x86asm.NOP)) }).To(Panic())
		Expect(func() { lift.Translate(lift.NewEnv(reil.Dword), nil) }).To(Panic())
		Expect(func() { lift.NewEnv(reil.Word) }).To(Panic())
		Expect(func() { lift.NewEnvMode(16) }).To(Panic())
	})

	It("should stub untranslatable instructions", func() {
		insts := lift.Stub(at(0x1234, 1, inst(x86asm.HLT)))
		Expect(insts).To(HaveLen(1))
		Expect(insts[0].String()).To(Equal("0000123400: nop [empty, empty, empty]"))
	})

	It("should describe translation errors", func() {
		_, err := lift.Translate(lift.NewEnv(reil.Dword), at(0x1000, 1, inst(x86asm.HLT)))
		Expect(err).To(MatchError(ContainSubstring("unsupported instruction")))
		Expect(err).To(MatchError(ContainSubstring("hlt")))
	})
})
