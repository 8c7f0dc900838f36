// Package x86 implements the x86 disassembly model consumed by the REIL
// lifter; registers, operand trees and instructions, and a decoder of x86
// machine code into that model.
package x86

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/reil/bin"
	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

var (
	// dbg is a logger which logs debug messages with "x86:" prefix to standard
	// error.
	dbg = log.New(os.Stderr, term.MagentaBold("x86:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// Quiet suppresses debug messages of the disassembler.
func Quiet() {
	dbg.SetOutput(io.Discard)
}

// Function is a function consisting of one or more basic blocks.
type Function struct {
	// Address of entry basic block.
	Entry bin.Addr
	// Map from basic block address to basic block, containing one or more basic
	// blocks.
	Blocks map[bin.Addr]*BasicBlock
}

// newFunc returns a new function.
func newFunc(entry bin.Addr) *Function {
	return &Function{
		Entry:  entry,
		Blocks: make(map[bin.Addr]*BasicBlock),
	}
}

// SortedBlocks returns the basic blocks of the function, sorted by address.
func (f *Function) SortedBlocks() []*BasicBlock {
	var keys bin.Addrs
	for key := range f.Blocks {
		keys = append(keys, key)
	}
	sort.Sort(keys)
	var blocks []*BasicBlock
	for _, key := range keys {
		blocks = append(blocks, f.Blocks[key])
	}
	return blocks
}

// String returns the string representation of the function.
func (f *Function) String() string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "func_%08X() {\n", uint64(f.Entry))
	for i, block := range f.SortedBlocks() {
		if i != 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(buf, "%v\n", block)
	}
	buf.WriteString("}")
	return buf.String()
}

// BasicBlock is a basic block; a sequence of non-branching instructions
// terminated by an explicit or implicit (fake) control flow instruction.
type BasicBlock struct {
	// One or more instructions.
	Insts []*Instruction
}

// String returns the string representation of the basic block.
func (block *BasicBlock) String() string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "block_%08X:\n", uint64(block.Entry()))
	for i, inst := range block.Insts {
		if i != 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(buf, "\t%v", inst)
	}
	return buf.String()
}

// Entry returns the entry address of the basic block.
func (block *BasicBlock) Entry() bin.Addr {
	return block.Insts[0].Addr
}

// DecodeFuncs groups the given basic blocks into functions, based on the
// sorted function addresses; each function contains the continuous basic
// blocks up to the next function address.
func DecodeFuncs(blocks []*BasicBlock, funcAddrs bin.Addrs) ([]*Function, error) {
	dbg.Println("decodeFuncs(blocks)")
	j := 0
	var funcs []*Function
	for i, funcAddr := range funcAddrs {
		start := funcAddr
		end := bin.Addr(math.MaxUint64)
		if i+1 < len(funcAddrs) {
			end = funcAddrs[i+1]
		}
		f := newFunc(funcAddr)
		for _, block := range blocks[j:] {
			blockAddr := block.Entry()
			if blockAddr >= end {
				break
			}
			if blockAddr < start {
				return nil, errors.Errorf("unable to locate function containing basic block; expected address >= %v, got %v", start, blockAddr)
			}
			f.Blocks[blockAddr] = block
			j++
		}
		funcs = append(funcs, f)
	}
	return funcs, nil
}

// DecodeBlocks decodes the x86 basic blocks at the sorted basic block
// addresses of the given code section, located at start.
func DecodeBlocks(start bin.Addr, data []byte, blockAddrs bin.Addrs, mode int) ([]*BasicBlock, error) {
	var blocks []*BasicBlock
	for j, blockAddr := range blockAddrs {
		dbg.Printf("   block_%08X:", uint64(blockAddr))
		block := &BasicBlock{}
		instAddr := blockAddr
		for {
			if instAddr < start || instAddr >= start+bin.Addr(len(data)) {
				return nil, errors.Errorf("basic block address %v outside of code section at %v", instAddr, start)
			}
			offset := int(instAddr - start)
			inst, err := Decode(instAddr, data[offset:], mode)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			instAddr += bin.Addr(inst.Len)
			block.Insts = append(block.Insts, inst)
			if IsTerm(inst) || (j+1 < len(blockAddrs) && instAddr >= blockAddrs[j+1]) || int(instAddr-start) >= len(data) {
				break
			}
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// DecodeLinear decodes the x86 instructions of the given code section, located
// at start, by linear sweep.
func DecodeLinear(start bin.Addr, data []byte, mode int) ([]*Instruction, error) {
	var insts []*Instruction
	for offset := 0; offset < len(data); {
		inst, err := Decode(start+bin.Addr(offset), data[offset:], mode)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		insts = append(insts, inst)
		offset += inst.Len
	}
	return insts, nil
}

// Decode decodes the leading bytes in src as a single x86 instruction of the
// given processor mode (16, 32 or 64-bit), and annotates the instruction with
// the given address.
func Decode(instAddr bin.Addr, src []byte, mode int) (*Instruction, error) {
	asm, err := x86asm.Decode(src, mode)
	if err != nil {
		end := 16
		if end > len(src) {
			end = len(src)
		}
		dbg.Println(hex.Dump(src[:end]))
		return nil, errors.Errorf("unable to parse instruction at address %v; %v", instAddr, err)
	}
	// Truncated input decodes to the zero opcode without error.
	if asm.Op == 0 {
		return nil, errors.Errorf("unable to parse instruction at address %v; truncated instruction", instAddr)
	}
	inst := &Instruction{
		Addr: instAddr,
		Op:   asm.Op,
		Len:  asm.Len,
	}
	for _, p := range asm.Prefix {
		if p == 0 {
			break
		}
		switch p & 0xFF {
		case x86asm.PrefixLOCK:
			inst.Prefix |= PrefixLock
		case x86asm.PrefixREP:
			inst.Prefix |= PrefixRep
		case x86asm.PrefixREPN:
			inst.Prefix |= PrefixRepne
		}
	}
	// String instructions have implicit operands.
	if isString(asm.Op) {
		return inst, nil
	}
	for _, arg := range asm.Args {
		if arg == nil {
			break
		}
		operand, err := translateArg(inst, asm, arg, mode)
		if err != nil {
			warn.Printf("unable to translate argument of instruction %v at %v; %v", asm.Op, instAddr, err)
			inst.Operands = nil
			return inst, nil
		}
		inst.Operands = append(inst.Operands, operand)
	}
	return inst, nil
}

// translateArg translates the given x86asm instruction argument to an
// equivalent operand tree.
func translateArg(inst *Instruction, asm x86asm.Inst, arg x86asm.Arg, mode int) (*Node, error) {
	switch arg := arg.(type) {
	case x86asm.Reg:
		r, ok := regFromArg(arg)
		if !ok {
			return nil, errors.Errorf("support for register %v not yet implemented", arg)
		}
		return Sized(r.Size(), Register(r)), nil
	case x86asm.Imm:
		size := immSize(inst, asm, mode)
		x := uint64(arg) & size.AllBitsMask().Uint64()
		return Sized(size, Literal(x)), nil
	case x86asm.Rel:
		size := modeSize(mode)
		target := (uint64(inst.Addr) + uint64(asm.Len) + uint64(int64(arg))) & size.AllBitsMask().Uint64()
		return Sized(size, Literal(target)), nil
	case x86asm.Mem:
		return translateMem(inst, asm, arg, mode)
	}
	return nil, errors.Errorf("support for instruction argument %T not yet implemented", arg)
}

// translateMem translates the given x86asm memory argument to an equivalent
// operand tree.
func translateMem(inst *Instruction, asm x86asm.Inst, mem x86asm.Mem, mode int) (*Node, error) {
	addrSize := modeSize(mode)
	if asm.AddrSize != 0 {
		if size, err := reil.SizeOfBits(asm.AddrSize); err == nil {
			addrSize = size
		}
	}
	mask := addrSize.AllBitsMask().Uint64()
	var parts []*Node
	switch mem.Base {
	case 0:
	case x86asm.RIP, x86asm.EIP:
		target := (uint64(inst.Addr) + uint64(asm.Len) + uint64(mem.Disp)) & mask
		parts = append(parts, Literal(target))
		mem.Disp = 0
	default:
		base, ok := regFromArg(mem.Base)
		if !ok {
			return nil, errors.Errorf("support for base register %v not yet implemented", mem.Base)
		}
		parts = append(parts, Register(base))
	}
	if mem.Index != 0 {
		index, ok := regFromArg(mem.Index)
		if !ok {
			return nil, errors.Errorf("support for index register %v not yet implemented", mem.Index)
		}
		if mem.Scale > 1 {
			parts = append(parts, Op("*", Register(index), Literal(uint64(mem.Scale))))
		} else {
			parts = append(parts, Register(index))
		}
	}
	if mem.Disp != 0 || len(parts) == 0 {
		parts = append(parts, Literal(uint64(mem.Disp)&mask))
	}
	addr := parts[0]
	if len(parts) > 1 {
		addr = Op("+", parts...)
	}
	operand := Deref(addr)
	if mem.Segment != 0 {
		seg, ok := regFromArg(mem.Segment)
		if !ok || !seg.IsSegment() {
			return nil, errors.Errorf("invalid segment register %v", mem.Segment)
		}
		operand = Segment(seg, operand)
	}
	size := modeSize(mode)
	bits := asm.MemBytes * 8
	if bits == 0 {
		bits = asm.DataSize
	}
	if s, err := reil.SizeOfBits(bits); err == nil {
		size = s
	}
	return Sized(size, operand), nil
}

// ### [ Helper functions ] ####################################################

// IsTerm reports whether the given instruction is a terminator instruction.
func IsTerm(inst *Instruction) bool {
	switch inst.Op {
	// Loop terminators.
	case x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	// Conditional jump terminators.
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS:
		return true
	// Unconditional jump terminators.
	case x86asm.JMP:
		return true
	// Return terminators.
	case x86asm.RET:
		return true
	}
	return false
}

// isString reports whether the given instruction is a string instruction.
func isString(op x86asm.Op) bool {
	switch op {
	case x86asm.STOSB, x86asm.STOSW, x86asm.STOSD, x86asm.STOSQ,
		x86asm.LODSB, x86asm.LODSW, x86asm.LODSD, x86asm.LODSQ,
		x86asm.MOVSB, x86asm.MOVSW, x86asm.MOVSD, x86asm.MOVSQ,
		x86asm.SCASB, x86asm.SCASW, x86asm.SCASD, x86asm.SCASQ,
		x86asm.CMPSB, x86asm.CMPSW, x86asm.CMPSD, x86asm.CMPSQ:
		return true
	}
	return false
}

// immSize returns the size of an immediate argument of the given instruction;
// the size of its first operand if present, and the operand size of the
// instruction otherwise.
func immSize(inst *Instruction, asm x86asm.Inst, mode int) reil.Size {
	switch asm.Op {
	case x86asm.RET, x86asm.LRET, x86asm.ENTER:
		return reil.Word
	}
	if len(inst.Operands) > 0 {
		if size := inst.Operands[0].OperandSize(); size != reil.Empty {
			return size
		}
	}
	if size, err := reil.SizeOfBits(asm.DataSize); err == nil {
		return size
	}
	return modeSize(mode)
}

// modeSize returns the natural operand size of the given processor mode.
func modeSize(mode int) reil.Size {
	switch mode {
	case 16:
		return reil.Word
	case 64:
		return reil.Qword
	}
	return reil.Dword
}
