package reil

import (
	"github.com/pkg/errors"
)

// MaxInsts is the maximum number of REIL instructions in the translation of a
// single native instruction.
const MaxInsts = 256

// Builder accumulates the REIL translation of a single native instruction.
// Instructions are appended unaddressed and receive their composite addresses
// when the translation is built.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	// Unaddressed instructions, in emission order.
	insts []*Instruction
	// Maps from label to the local index it is bound to; -1 if unbound.
	labels []int
}

// NewBuilder returns a new REIL instruction builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Emit appends a REIL instruction.
func (b *Builder) Emit(op Opcode, src1, src2, dst Operand) {
	b.insts = append(b.insts, &Instruction{
		Op:   op,
		Src1: src1,
		Src2: src2,
		Dst:  dst,
	})
}

// Len returns the number of instructions emitted so far; i.e. the local index
// of the next instruction.
func (b *Builder) Len() int {
	return len(b.insts)
}

// Since returns the instructions emitted since the builder had length n.
func (b *Builder) Since(n int) []*Instruction {
	insts := make([]*Instruction, len(b.insts)-n)
	copy(insts, b.insts[n:])
	return insts
}

// NewLabel returns a new unbound label.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

// Bind binds the label to the local index of the next emitted instruction.
func (b *Builder) Bind(l Label) {
	b.labels[l] = len(b.insts)
}

// Build assigns composite addresses within the address range of the given
// native address and resolves labels to sub-addresses. A NOP is appended when a
// label is bound past the last instruction.
func (b *Builder) Build(native uint64) ([]*Instruction, error) {
	n := len(b.insts)
	for _, local := range b.labels {
		if local == n {
			b.Emit(NOP, EmptyOperand, EmptyOperand, EmptyOperand)
			break
		}
	}
	if len(b.insts) > MaxInsts {
		return nil, errors.Errorf("REIL translation of native instruction at 0x%X too large; %d instructions exceeds limit of %d", native, len(b.insts), MaxInsts)
	}
	insts := make([]*Instruction, len(b.insts))
	for i, inst := range b.insts {
		src1, err := b.resolve(native, inst.Src1)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		src2, err := b.resolve(native, inst.Src2)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dst, err := b.resolve(native, inst.Dst)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		insts[i] = &Instruction{
			Addr: Addr{Native: native, Local: uint8(i)},
			Op:   inst.Op,
			Src1: src1,
			Src2: src2,
			Dst:  dst,
		}
	}
	return insts, nil
}

// resolve resolves label operands to sub-addresses within the translation of
// the given native instruction.
func (b *Builder) resolve(native uint64, op Operand) (Operand, error) {
	l, ok := op.Value.(Label)
	if !ok {
		return op, nil
	}
	if int(l) >= len(b.labels) || b.labels[l] == -1 {
		return Operand{}, errors.Errorf("unbound label %v in REIL translation of native instruction at 0x%X", l, native)
	}
	return NewSubAddr(native, uint8(b.labels[l])), nil
}
