package main

import (
	"fmt"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
)

// funcLifter is a lifter for a given x86 function.
type funcLifter struct {
	// Binary executable lifter.
	l *lifter

	// x86 function being lifted; nil for linear sweeps.
	f *x86.Function
	// REIL instructions of the function, in address order.
	insts []*reil.Instruction
}

// newFuncLifter returns a new lifter of the given x86 function.
func newFuncLifter(l *lifter, f *x86.Function) *funcLifter {
	return &funcLifter{l: l, f: f}
}

// liftFunc lifts the x86 function to REIL.
func (fl *funcLifter) liftFunc() error {
	if _, err := fmt.Fprintf(fl.l.w, "func_%08X:\n", uint64(fl.f.Entry)); err != nil {
		return errors.WithStack(err)
	}
	for _, block := range fl.f.SortedBlocks() {
		if err := fl.liftBlock(block); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// liftBlock lifts the given x86 basic block to REIL.
func (fl *funcLifter) liftBlock(block *x86.BasicBlock) error {
	if _, err := fmt.Fprintf(fl.l.w, "block_%08X:\n", uint64(block.Entry())); err != nil {
		return errors.WithStack(err)
	}
	return fl.liftInsts(block.Insts)
}

// liftInsts lifts the given x86 instructions to REIL, and prints the REIL
// listing of each instruction prefixed by its disassembly.
func (fl *funcLifter) liftInsts(insts []*x86.Instruction) error {
	for _, inst := range insts {
		reilInsts, err := fl.l.translate(inst)
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := fmt.Fprintf(fl.l.w, "; %v: %v\n", inst.Addr, inst); err != nil {
			return errors.WithStack(err)
		}
		for _, reilInst := range reilInsts {
			if _, err := fmt.Fprintf(fl.l.w, "\t%v\n", reilInst); err != nil {
				return errors.WithStack(err)
			}
		}
		fl.insts = append(fl.insts, reilInsts...)
	}
	return nil
}
