// Package interp implements an interpreter of REIL instructions.
//
// The interpreter keeps a set of defined registers (native, flag and
// temporary registers share one namespace) and a byte-addressed little-endian
// memory. Every result is truncated to the size of its output operand.
package interp

import (
	"math/big"
	"sort"

	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
)

// DefaultLimit is the default maximum number of REIL instructions executed by
// a single call to Interpret.
const DefaultLimit = 1 << 20

// Interpreter is a REIL interpreter.
type Interpreter struct {
	// Maximum number of instructions executed by Interpret; DefaultLimit if
	// zero.
	Limit int

	// Maps from register name to defined register.
	regs map[string]register
	// Maps from address to defined memory byte.
	mem map[uint64]byte
}

// register is a defined register.
type register struct {
	// Register value, truncated to size.
	x *big.Int
	// Register size.
	size reil.Size
}

// New returns a new REIL interpreter with no defined registers and empty
// memory.
func New() *Interpreter {
	return &Interpreter{
		regs: make(map[string]register),
		mem:  make(map[uint64]byte),
	}
}

// SetRegister defines the given register.
func (in *Interpreter) SetRegister(name string, x uint64, size reil.Size) {
	in.SetRegisterBig(name, new(big.Int).SetUint64(x), size)
}

// SetRegisterBig defines the given register.
func (in *Interpreter) SetRegisterBig(name string, x *big.Int, size reil.Size) {
	in.regs[name] = register{x: size.Truncate(x), size: size}
}

// Value returns the value of the given register, or nil if undefined.
func (in *Interpreter) Value(name string) *big.Int {
	reg, ok := in.regs[name]
	if !ok {
		return nil
	}
	return new(big.Int).Set(reg.x)
}

// IsDefined reports whether the given register is defined.
func (in *Interpreter) IsDefined(name string) bool {
	_, ok := in.regs[name]
	return ok
}

// DefinedRegisters returns the names of the defined registers in sorted order.
func (in *Interpreter) DefinedRegisters() []string {
	var names []string
	for name := range in.regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMemory stores the little-endian representation of x of the given size at
// addr.
func (in *Interpreter) SetMemory(addr uint64, x uint64, size reil.Size) {
	in.store(addr, new(big.Int).SetUint64(x), size)
}

// ReadMemory loads a little-endian value of the given size from addr.
// Undefined memory reads as zero.
func (in *Interpreter) ReadMemory(addr uint64, size reil.Size) *big.Int {
	x := new(big.Int)
	for i := size.Bytes() - 1; i >= 0; i-- {
		x.Lsh(x, 8)
		x.Or(x, big.NewInt(int64(in.mem[addr+uint64(i)])))
	}
	return x
}

// MemorySize returns the number of defined memory bytes.
func (in *Interpreter) MemorySize() int {
	return len(in.mem)
}

// Interpret executes the given REIL instructions, starting at the translation
// of the native instruction at entry. Execution ends when control leaves the
// given instructions.
func (in *Interpreter) Interpret(insts []*reil.Instruction, entry uint64) error {
	prog := make(map[uint64][]*reil.Instruction)
	for _, inst := range insts {
		prog[inst.Addr.Native] = append(prog[inst.Addr.Native], inst)
	}
	var natives []uint64
	for native, list := range prog {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Addr.Local < list[j].Addr.Local
		})
		natives = append(natives, native)
	}
	sort.Slice(natives, func(i, j int) bool { return natives[i] < natives[j] })
	limit := in.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	native, local := entry, 0
	for steps := 0; ; steps++ {
		if steps >= limit {
			return errors.Errorf("instruction limit of %d reached at %v", limit, reil.Addr{Native: native, Local: uint8(local)})
		}
		list, ok := prog[native]
		if !ok {
			return nil
		}
		if local >= len(list) {
			j := sort.Search(len(natives), func(i int) bool { return natives[i] > native })
			if j == len(natives) {
				return nil
			}
			native, local = natives[j], 0
			continue
		}
		inst := list[local]
		target, jump, err := in.exec(inst)
		if err != nil {
			return errors.Wrapf(err, "unable to interpret instruction %v", inst)
		}
		if !jump {
			local++
			continue
		}
		native, local = target.Native, int(target.Local)
		if _, ok := prog[native]; ok && target.Local != 0 {
			// Locate sub-address within translation.
			local = len(prog[native])
			for i, inst := range prog[native] {
				if inst.Addr.Local == target.Local {
					local = i
					break
				}
			}
		}
	}
}

// exec executes the given instruction. The boolean return value reports
// whether control is transferred to the returned target address.
func (in *Interpreter) exec(inst *reil.Instruction) (reil.Addr, bool, error) {
	switch inst.Op {
	case reil.ADD, reil.AND, reil.MUL, reil.OR, reil.SUB, reil.XOR, reil.BSH:
		x, err := in.read(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		y, err := in.read(inst.Src2)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		z := new(big.Int)
		switch inst.Op {
		case reil.ADD:
			z.Add(x, y)
		case reil.AND:
			z.And(x, y)
		case reil.MUL:
			z.Mul(x, y)
		case reil.OR:
			z.Or(x, y)
		case reil.SUB:
			z.Sub(x, y)
		case reil.XOR:
			z.Xor(x, y)
		case reil.BSH:
			shift := inst.Src2.Size.Signed(y)
			if shift.Sign() >= 0 {
				z.Lsh(x, uint(shift.Uint64()))
			} else {
				z.Rsh(x, uint(new(big.Int).Neg(shift).Uint64()))
			}
		}
		return reil.Addr{}, false, in.write(inst.Dst, z)
	case reil.BISZ:
		x, err := in.read(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		z := big.NewInt(0)
		if x.Sign() == 0 {
			z.SetInt64(1)
		}
		return reil.Addr{}, false, in.write(inst.Dst, z)
	case reil.STR:
		x, err := in.read(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		return reil.Addr{}, false, in.write(inst.Dst, x)
	case reil.LDM:
		addr, err := in.readAddr(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		return reil.Addr{}, false, in.write(inst.Dst, in.ReadMemory(addr, inst.Dst.Size))
	case reil.STM:
		x, err := in.read(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		addr, err := in.readAddr(inst.Dst)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		in.store(addr, x, inst.Src1.Size)
		return reil.Addr{}, false, nil
	case reil.JCC:
		cond, err := in.read(inst.Src1)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		if cond.Sign() == 0 {
			return reil.Addr{}, false, nil
		}
		if sub, ok := inst.Dst.Value.(reil.SubAddr); ok {
			return reil.Addr(sub), true, nil
		}
		native, err := in.readAddr(inst.Dst)
		if err != nil {
			return reil.Addr{}, false, errors.WithStack(err)
		}
		return reil.Addr{Native: native}, true, nil
	case reil.UNDEF:
		switch v := inst.Dst.Value.(type) {
		case reil.Reg, reil.Temp:
			delete(in.regs, v.String())
			return reil.Addr{}, false, nil
		}
		return reil.Addr{}, false, errors.Errorf("invalid UNDEF output operand %v", inst.Dst)
	case reil.NOP:
		return reil.Addr{}, false, nil
	}
	return reil.Addr{}, false, errors.Errorf("support for REIL opcode %v not yet implemented", inst.Op)
}

// byteMask isolates the least significant byte of a value.
var byteMask = big.NewInt(0xFF)

// ### [ Helper functions ] ####################################################

// read returns the value of the given input operand, truncated to the operand
// size.
func (in *Interpreter) read(op reil.Operand) (*big.Int, error) {
	switch v := op.Value.(type) {
	case reil.Lit:
		return op.Size.Truncate(v.Int()), nil
	case reil.Reg, reil.Temp:
		reg, ok := in.regs[v.String()]
		if !ok {
			return nil, errors.Errorf("read of undefined register %q", v.String())
		}
		return op.Size.Truncate(reg.x), nil
	case reil.Label:
		return nil, errors.Errorf("unresolved label %v", v)
	case nil:
		return nil, errors.New("read of empty operand")
	}
	return nil, errors.Errorf("invalid input operand %v", op)
}

// readAddr returns the value of the given input operand as a 64-bit address.
func (in *Interpreter) readAddr(op reil.Operand) (uint64, error) {
	x, err := in.read(op)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if !x.IsUint64() {
		return 0, errors.Errorf("address %v out of range", x)
	}
	return x.Uint64(), nil
}

// write stores x, truncated to the operand size, into the given output
// operand.
func (in *Interpreter) write(op reil.Operand, x *big.Int) error {
	switch v := op.Value.(type) {
	case reil.Reg, reil.Temp:
		in.regs[v.String()] = register{x: op.Size.Truncate(x), size: op.Size}
		return nil
	}
	return errors.Errorf("invalid output operand %v", op)
}

// store stores the little-endian representation of x of the given size at
// addr.
func (in *Interpreter) store(addr uint64, x *big.Int, size reil.Size) {
	v := size.Truncate(x)
	lsb := new(big.Int)
	for i := 0; i < size.Bytes(); i++ {
		in.mem[addr+uint64(i)] = byte(lsb.And(v, byteMask).Uint64())
		v.Rsh(v, 8)
	}
}
