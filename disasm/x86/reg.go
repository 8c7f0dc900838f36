package x86

import (
	"fmt"
	"strings"

	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// Reg is an x86 register.
type Reg uint8

// x86 registers.
const (
	// NoReg is the invalid register.
	NoReg Reg = iota

	// 8-bit registers.
	AL
	CL
	DL
	BL
	AH
	CH
	DH
	BH
	SPL
	BPL
	SIL
	DIL
	R8B
	R9B
	R10B
	R11B
	R12B
	R13B
	R14B
	R15B

	// 16-bit registers.
	AX
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	R8W
	R9W
	R10W
	R11W
	R12W
	R13W
	R14W
	R15W

	// 32-bit registers.
	EAX
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
	R8D
	R9D
	R10D
	R11D
	R12D
	R13D
	R14D
	R15D

	// 64-bit registers.
	RAX
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// Instruction pointers.
	IP
	EIP
	RIP

	// Segment registers.
	ES
	CS
	SS
	DS
	FS
	GS
)

// Register family boundaries.
const (
	firstReg8  = AL
	firstReg16 = AX
	firstReg32 = EAX
	firstReg64 = RAX
	firstSeg   = ES
)

// regName maps from register to name.
var regName = [...]string{
	AL: "al",
	CL: "cl",
	DL: "dl",
	BL: "bl",
	AH: "ah",
	CH: "ch",
	DH: "dh",
	BH: "bh",
	SPL: "spl",
	BPL: "bpl",
	SIL: "sil",
	DIL: "dil",
	R8B: "r8b",
	R9B: "r9b",
	R10B: "r10b",
	R11B: "r11b",
	R12B: "r12b",
	R13B: "r13b",
	R14B: "r14b",
	R15B: "r15b",
	AX: "ax",
	CX: "cx",
	DX: "dx",
	BX: "bx",
	SP: "sp",
	BP: "bp",
	SI: "si",
	DI: "di",
	R8W: "r8w",
	R9W: "r9w",
	R10W: "r10w",
	R11W: "r11w",
	R12W: "r12w",
	R13W: "r13w",
	R14W: "r14w",
	R15W: "r15w",
	EAX: "eax",
	ECX: "ecx",
	EDX: "edx",
	EBX: "ebx",
	ESP: "esp",
	EBP: "ebp",
	ESI: "esi",
	EDI: "edi",
	R8D: "r8d",
	R9D: "r9d",
	R10D: "r10d",
	R11D: "r11d",
	R12D: "r12d",
	R13D: "r13d",
	R14D: "r14d",
	R15D: "r15d",
	RAX: "rax",
	RCX: "rcx",
	RDX: "rdx",
	RBX: "rbx",
	RSP: "rsp",
	RBP: "rbp",
	RSI: "rsi",
	RDI: "rdi",
	R8: "r8",
	R9: "r9",
	R10: "r10",
	R11: "r11",
	R12: "r12",
	R13: "r13",
	R14: "r14",
	R15: "r15",
	IP: "ip",
	EIP: "eip",
	RIP: "rip",
	ES: "es",
	CS: "cs",
	SS: "ss",
	DS: "ds",
	FS: "fs",
	GS: "gs",
}

// String returns the lowercase name of the register.
func (r Reg) String() string {
	if r != NoReg && int(r) < len(regName) {
		return regName[r]
	}
	return fmt.Sprintf("Reg(%d)", uint8(r))
}

// RegByName returns the register of the given case-insensitive name.
func RegByName(name string) (Reg, error) {
	s := strings.ToLower(name)
	for r, n := range regName {
		if n != "" && n == s {
			return Reg(r), nil
		}
	}
	return NoReg, errors.Errorf("invalid x86 register name %q", name)
}

// Size returns the size of the register.
func (r Reg) Size() reil.Size {
	switch {
	case r >= firstReg8 && r < firstReg16:
		return reil.Byte
	case r >= firstReg16 && r < firstReg32, r == IP:
		return reil.Word
	case r >= firstReg32 && r < firstReg64, r == EIP:
		return reil.Dword
	case r >= firstReg64 && r < IP, r == RIP:
		return reil.Qword
	case r.IsSegment():
		return reil.Word
	}
	return reil.Empty
}

// IsSegment reports whether r is a segment register.
func (r Reg) IsSegment() bool {
	return r >= firstSeg && r <= GS
}

// IsHigh reports whether r is a high byte register (ah, ch, dh or bh).
func (r Reg) IsHigh() bool {
	return r >= AH && r <= BH
}

// Family returns the index (0 through 15, in encoding order rax, rcx, rdx,
// rbx, rsp, rbp, rsi, rdi, r8-r15) of the general purpose register family of
// r. The boolean return value is false for registers outside the general
// purpose families.
func (r Reg) Family() (int, bool) {
	switch {
	case r >= AL && r <= BL:
		return int(r - AL), true
	case r.IsHigh():
		return int(r - AH), true
	case r >= SPL && r <= DIL:
		return int(r-SPL) + 4, true
	case r >= R8B && r <= R15B:
		return int(r-R8B) + 8, true
	case r >= firstReg16 && r < firstReg32:
		return int(r - firstReg16), true
	case r >= firstReg32 && r < firstReg64:
		return int(r - firstReg32), true
	case r >= firstReg64 && r < IP:
		return int(r - firstReg64), true
	}
	return 0, false
}

// FamilyReg returns the register of the given general purpose family index and
// size.
//
// Pre-condition: family is in the range 0 through 15.
func FamilyReg(family int, size reil.Size) Reg {
	switch size {
	case reil.Byte:
		if family < 4 {
			return AL + Reg(family)
		}
		if family < 8 {
			return SPL + Reg(family-4)
		}
		return R8B + Reg(family-8)
	case reil.Word:
		return firstReg16 + Reg(family)
	case reil.Dword:
		return firstReg32 + Reg(family)
	case reil.Qword:
		return firstReg64 + Reg(family)
	}
	panic(fmt.Errorf("invalid general purpose register size %v", size))
}

// regFromAsm maps from x86asm register to x86 register.
var regFromAsm = map[x86asm.Reg]Reg{
	x86asm.AL: AL,
	x86asm.CL: CL,
	x86asm.DL: DL,
	x86asm.BL: BL,
	x86asm.AH: AH,
	x86asm.CH: CH,
	x86asm.DH: DH,
	x86asm.BH: BH,
	x86asm.SPB: SPL,
	x86asm.BPB: BPL,
	x86asm.SIB: SIL,
	x86asm.DIB: DIL,
	x86asm.R8B: R8B,
	x86asm.R9B: R9B,
	x86asm.R10B: R10B,
	x86asm.R11B: R11B,
	x86asm.R12B: R12B,
	x86asm.R13B: R13B,
	x86asm.R14B: R14B,
	x86asm.R15B: R15B,
	x86asm.AX: AX,
	x86asm.CX: CX,
	x86asm.DX: DX,
	x86asm.BX: BX,
	x86asm.SP: SP,
	x86asm.BP: BP,
	x86asm.SI: SI,
	x86asm.DI: DI,
	x86asm.R8W: R8W,
	x86asm.R9W: R9W,
	x86asm.R10W: R10W,
	x86asm.R11W: R11W,
	x86asm.R12W: R12W,
	x86asm.R13W: R13W,
	x86asm.R14W: R14W,
	x86asm.R15W: R15W,
	x86asm.EAX: EAX,
	x86asm.ECX: ECX,
	x86asm.EDX: EDX,
	x86asm.EBX: EBX,
	x86asm.ESP: ESP,
	x86asm.EBP: EBP,
	x86asm.ESI: ESI,
	x86asm.EDI: EDI,
	x86asm.R8L: R8D,
	x86asm.R9L: R9D,
	x86asm.R10L: R10D,
	x86asm.R11L: R11D,
	x86asm.R12L: R12D,
	x86asm.R13L: R13D,
	x86asm.R14L: R14D,
	x86asm.R15L: R15D,
	x86asm.RAX: RAX,
	x86asm.RCX: RCX,
	x86asm.RDX: RDX,
	x86asm.RBX: RBX,
	x86asm.RSP: RSP,
	x86asm.RBP: RBP,
	x86asm.RSI: RSI,
	x86asm.RDI: RDI,
	x86asm.R8: R8,
	x86asm.R9: R9,
	x86asm.R10: R10,
	x86asm.R11: R11,
	x86asm.R12: R12,
	x86asm.R13: R13,
	x86asm.R14: R14,
	x86asm.R15: R15,
	x86asm.IP: IP,
	x86asm.EIP: EIP,
	x86asm.RIP: RIP,
	x86asm.ES: ES,
	x86asm.CS: CS,
	x86asm.SS: SS,
	x86asm.DS: DS,
	x86asm.FS: FS,
	x86asm.GS: GS,
}

// regFromArg returns the x86 register of the given x86asm register. The boolean
// return value is false for registers without an x86 register equivalent (e.g.
// x87, MMX and SSE registers).
func regFromArg(r x86asm.Reg) (Reg, bool) {
	reg, ok := regFromAsm[r]
	return reg, ok
}
