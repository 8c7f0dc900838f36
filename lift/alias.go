package lift

import (
	"math/big"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
)

// alias describes how a register maps onto its full-width parent register.
type alias struct {
	// Size of the register.
	size reil.Size
	// Register occupies bits 8 through 15 of its parent.
	high bool
	// Parent register on x86; x86.NoReg if the register is unavailable in
	// 32-bit mode.
	parent32 x86.Reg
	// Parent register on x64.
	parent64 x86.Reg
}

// aliases maps from x86 register to its alias description. The table is
// populated once at start-up and never mutated.
var aliases = newAliasTable()

// newAliasTable returns the alias table of the general purpose and segment
// registers.
func newAliasTable() map[x86.Reg]alias {
	table := make(map[x86.Reg]alias)
	for r := x86.AL; r <= x86.GS; r++ {
		size := r.Size()
		if size == reil.Empty {
			continue
		}
		if r.IsSegment() {
			table[r] = alias{size: size, parent32: r, parent64: r}
			continue
		}
		family, ok := r.Family()
		if !ok {
			// Instruction pointers are never operands of lifted instructions.
			continue
		}
		a := alias{
			size:     size,
			high:     r.IsHigh(),
			parent64: x86.FamilyReg(family, reil.Qword),
		}
		// spl, bpl, sil, dil, r8-r15 and 64-bit registers require a REX
		// prefix.
		rex := family >= 8 || size == reil.Qword || (r >= x86.SPL && r <= x86.DIL)
		if !rex {
			a.parent32 = x86.FamilyReg(family, reil.Dword)
		}
		table[r] = a
	}
	return table
}

// lookupAlias returns the parent register and alias description of r on the
// architecture of the given size.
func lookupAlias(r x86.Reg, arch reil.Size) (x86.Reg, alias, error) {
	a, ok := aliases[r]
	if !ok {
		return x86.NoReg, alias{}, errorf(KindInvalidRegisterName, "invalid register %v", r)
	}
	parent := a.parent64
	if arch == reil.Dword {
		parent = a.parent32
	}
	if parent == x86.NoReg {
		return x86.NoReg, alias{}, errorf(KindInvalidRegisterName, "register %v not available on %v architecture", r, arch)
	}
	return parent, a, nil
}

// isFullWidth reports whether writes to the register replace the register in
// its entirety.
func (a alias) isFullWidth(r x86.Reg, arch reil.Size) bool {
	return a.size == arch || r.IsSegment()
}

// spanMask returns the mask of the bits occupied by the register within its
// parent.
func (a alias) spanMask() *big.Int {
	if a.high {
		return big.NewInt(0xFF00)
	}
	return a.size.AllBitsMask()
}

// negMask returns the mask of the bits of the parent register (of the given
// size) outside of the register.
func (a alias) negMask(arch reil.Size) *big.Int {
	return new(big.Int).AndNot(arch.AllBitsMask(), a.spanMask())
}
