package interp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mewmew/reil/reil"
	"github.com/mewmew/reil/reil/interp"
)

// build assembles the given emitter into the REIL translation of the native
// instruction at native.
func build(native uint64, emit func(b *reil.Builder)) []*reil.Instruction {
	b := reil.NewBuilder()
	emit(b)
	insts, err := b.Build(native)
	Expect(err).NotTo(HaveOccurred())
	return insts
}

var _ = Describe("Interpreter", func() {
	var (
		in *interp.Interpreter
	)

	BeforeEach(func() {
		in = interp.New()
	})

	It("should truncate results to the output size", func() {
		in.SetRegister("eax", 0xFFFFFFFF, reil.Dword)
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.ADD, reil.NewReg("eax", reil.Dword), reil.NewLit(1, reil.Dword), reil.NewTemp(0, reil.Qword))
			b.Emit(reil.ADD, reil.NewReg("eax", reil.Dword), reil.NewLit(1, reil.Dword), reil.NewReg("eax", reil.Dword))
			b.Emit(reil.SUB, reil.NewLit(0, reil.Byte), reil.NewLit(1, reil.Byte), reil.NewTemp(1, reil.Byte))
		})

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.Value("t0").Uint64()).To(Equal(uint64(0x100000000)))
		Expect(in.Value("eax").Uint64()).To(Equal(uint64(0)))
		Expect(in.Value("t1").Uint64()).To(Equal(uint64(0xFF)))
	})

	It("should shift left for positive and right for negative amounts", func() {
		in.SetRegister("eax", 0x80, reil.Dword)
		in.SetRegister("cl", 0xFC, reil.Byte)
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.BSH, reil.NewReg("eax", reil.Dword), reil.NewLit(4, reil.Byte), reil.NewTemp(0, reil.Dword))
			b.Emit(reil.BSH, reil.NewReg("eax", reil.Dword), reil.NewLit(-7, reil.Byte), reil.NewTemp(1, reil.Dword))
			b.Emit(reil.BSH, reil.NewReg("eax", reil.Dword), reil.NewReg("cl", reil.Byte), reil.NewTemp(2, reil.Dword))
		})

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.Value("t0").Uint64()).To(Equal(uint64(0x800)))
		Expect(in.Value("t1").Uint64()).To(Equal(uint64(1)))
		Expect(in.Value("t2").Uint64()).To(Equal(uint64(0x8)))
	})

	It("should compare to zero", func() {
		in.SetRegister("eax", 0, reil.Dword)
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.BISZ, reil.NewReg("eax", reil.Dword), reil.EmptyOperand, reil.NewReg("ZF", reil.Byte))
			b.Emit(reil.BISZ, reil.NewLit(3, reil.Dword), reil.EmptyOperand, reil.NewReg("CF", reil.Byte))
		})

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.Value("ZF").Uint64()).To(Equal(uint64(1)))
		Expect(in.Value("CF").Uint64()).To(Equal(uint64(0)))
	})

	It("should load and store little-endian memory", func() {
		in.SetRegister("esp", 0x2000, reil.Dword)
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.STM, reil.NewLit(0x11223344, reil.Dword), reil.EmptyOperand, reil.NewReg("esp", reil.Dword))
			b.Emit(reil.LDM, reil.NewReg("esp", reil.Dword), reil.EmptyOperand, reil.NewTemp(0, reil.Byte))
			b.Emit(reil.LDM, reil.NewReg("esp", reil.Dword), reil.EmptyOperand, reil.NewTemp(1, reil.Dword))
		})

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.MemorySize()).To(Equal(4))
		Expect(in.ReadMemory(0x2000, reil.Byte).Uint64()).To(Equal(uint64(0x44)))
		Expect(in.Value("t0").Uint64()).To(Equal(uint64(0x44)))
		Expect(in.Value("t1").Uint64()).To(Equal(uint64(0x11223344)))
	})

	It("should loop through sub-address jumps", func() {
		in.SetRegister("ecx", 5, reil.Dword)
		in.SetRegister("eax", 0, reil.Dword)
		insts := build(0x100, func(b *reil.Builder) {
			end := b.NewLabel()
			start := b.NewLabel()
			b.Bind(start)
			b.Emit(reil.BISZ, reil.NewReg("ecx", reil.Dword), reil.EmptyOperand, reil.NewTemp(0, reil.Byte))
			b.Emit(reil.JCC, reil.NewTemp(0, reil.Byte), reil.EmptyOperand, end.Target())
			b.Emit(reil.ADD, reil.NewReg("eax", reil.Dword), reil.NewLit(2, reil.Dword), reil.NewReg("eax", reil.Dword))
			b.Emit(reil.SUB, reil.NewReg("ecx", reil.Dword), reil.NewLit(1, reil.Dword), reil.NewReg("ecx", reil.Dword))
			b.Emit(reil.JCC, reil.NewLit(1, reil.Byte), reil.EmptyOperand, start.Target())
			b.Bind(end)
		})
		insts = append(insts, build(0x101, func(b *reil.Builder) {
			b.Emit(reil.STR, reil.NewLit(7, reil.Dword), reil.EmptyOperand, reil.NewReg("ebx", reil.Dword))
		})...)

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.Value("eax").Uint64()).To(Equal(uint64(10)))
		Expect(in.Value("ecx").Uint64()).To(Equal(uint64(0)))
		Expect(in.Value("ebx").Uint64()).To(Equal(uint64(7)))
	})

	It("should jump to native addresses", func() {
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.JCC, reil.NewLit(1, reil.Byte), reil.EmptyOperand, reil.NewLit(0x102, reil.Dword))
		})
		insts = append(insts, build(0x101, func(b *reil.Builder) {
			b.Emit(reil.STR, reil.NewLit(1, reil.Dword), reil.EmptyOperand, reil.NewReg("eax", reil.Dword))
		})...)
		insts = append(insts, build(0x102, func(b *reil.Builder) {
			b.Emit(reil.STR, reil.NewLit(2, reil.Dword), reil.EmptyOperand, reil.NewReg("ebx", reil.Dword))
		})...)

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.IsDefined("eax")).To(BeFalse())
		Expect(in.Value("ebx").Uint64()).To(Equal(uint64(2)))
	})

	It("should undefine registers", func() {
		in.SetRegister("AF", 1, reil.Byte)
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.UNDEF, reil.EmptyOperand, reil.EmptyOperand, reil.NewReg("AF", reil.Byte))
		})

		Expect(in.Interpret(insts, 0x100)).To(Succeed())

		Expect(in.IsDefined("AF")).To(BeFalse())
		Expect(in.DefinedRegisters()).To(BeEmpty())
	})

	It("should fail on reads of undefined registers", func() {
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.STR, reil.NewReg("eax", reil.Dword), reil.EmptyOperand, reil.NewTemp(0, reil.Dword))
		})

		Expect(in.Interpret(insts, 0x100)).NotTo(Succeed())
	})

	It("should stop at the instruction limit", func() {
		in.Limit = 100
		insts := build(0x100, func(b *reil.Builder) {
			b.Emit(reil.JCC, reil.NewLit(1, reil.Byte), reil.EmptyOperand, reil.NewSubAddr(0x100, 0))
		})

		Expect(in.Interpret(insts, 0x100)).NotTo(Succeed())
	})
})
