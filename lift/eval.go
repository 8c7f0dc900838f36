package lift

import (
	"math/big"

	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/reil"
)

// LoadOperand evaluates the given operand tree of the given working size,
// emitting the REIL instructions required to compute its value. If load is
// false, memory operands are not read and full-width registers and literals
// are returned as bare operands; the result may then be used as the target of
// a write-back.
//
// A working size of reil.Empty defaults to the architecture size of env.
func LoadOperand(env Environment, size reil.Size, tree *x86.Node, load bool) (*Result, error) {
	if env == nil {
		panic("lift.LoadOperand: invalid nil environment")
	}
	t := newTranslator(env, nil)
	if size == reil.Empty {
		size = t.arch
	}
	return t.load(tree, size, load)
}

// load evaluates the given top-level operand tree.
func (t *translator) load(tree *x86.Node, size reil.Size, load bool) (*Result, error) {
	return t.eval(tree, size, load, x86.NoReg, false)
}

// eval evaluates the operand tree n of the given working size. seg is the
// segment register of an enclosing segment override prefix, and inAddr
// reports whether n is nested within a memory dereference or an operator.
func (t *translator) eval(n *x86.Node, size reil.Size, load bool, seg x86.Reg, inAddr bool) (*Result, error) {
	if n == nil {
		return nil, errorf(KindInvalidOperandTree, "invalid nil operand tree node")
	}
	start := t.b.Len()
	res, err := t.evalNode(n, size, load, seg, inAddr)
	if err != nil {
		return nil, err
	}
	res.Insts = t.b.Since(start)
	return res, nil
}

// evalNode evaluates the operand tree n; see eval.
func (t *translator) evalNode(n *x86.Node, size reil.Size, load bool, seg x86.Reg, inAddr bool) (*Result, error) {
	if n.NumChildren() == 0 {
		switch n.Kind() {
		case x86.KindRegister:
			return t.loadRegister(n.Reg(), load)
		case x86.KindLiteral:
			return t.loadLiteral(new(big.Int).SetUint64(n.Value()), size, load), nil
		default:
			return nil, errorf(KindInvalidLeafType, "invalid operand tree leaf %v of type %v", n, n.Kind())
		}
	}
	switch n.Kind() {
	case x86.KindSizePrefix:
		if n.NumChildren() != 1 {
			return nil, errorf(KindInvalidOperandTree, "invalid number of children of size prefix; expected 1, got %d", n.NumChildren())
		}
		switch n.Size() {
		case reil.Byte, reil.Word, reil.Dword, reil.Qword, reil.Oword:
		default:
			return nil, errorf(KindInvalidOperandTree, "invalid operand size %v", n.Size())
		}
		return t.eval(n.Child(0), n.Size(), load, seg, inAddr)
	case x86.KindSegmentPrefix:
		if n.NumChildren() != 1 {
			return nil, errorf(KindInvalidOperandTree, "invalid number of children of segment prefix; expected 1, got %d", n.NumChildren())
		}
		if !n.Segment().IsSegment() {
			return nil, errorf(KindInvalidOperandTree, "invalid segment register %v", n.Segment())
		}
		return t.eval(n.Child(0), size, load, n.Segment(), inAddr)
	case x86.KindMemDeref:
		return t.evalDeref(n, size, load, seg, inAddr)
	case x86.KindOperator:
		return t.evalOperator(n, load, inAddr)
	}
	return nil, errorf(KindInvalidOperandTree, "invalid operand tree node %v of type %v", n, n.Kind())
}

// evalDeref evaluates the memory dereference n of the given size.
func (t *translator) evalDeref(n *x86.Node, size reil.Size, load bool, seg x86.Reg, inAddr bool) (*Result, error) {
	if inAddr {
		return nil, errorf(KindInvalidOperandTree, "invalid nested memory dereference %v", n)
	}
	if n.NumChildren() != 1 {
		return nil, errorf(KindInvalidOperandTree, "invalid number of children of memory dereference; expected 1, got %d", n.NumChildren())
	}
	child := n.Child(0)
	res, err := t.eval(child, t.arch, load, x86.NoReg, true)
	if err != nil {
		return nil, err
	}
	addr := res.Value
	compound := child.Leaf().Kind() == x86.KindOperator
	if seg != x86.NoReg {
		addrSize := t.arch
		if compound {
			addrSize = t.arch.Next()
		}
		addr = t.calc(reil.ADD, addr, t.segBase(seg), addrSize)
	}
	// Compound addresses are computed at twice the architecture size and
	// wrapped around the address space once.
	if compound {
		addr = t.mask(addr, t.arch)
	}
	res = &Result{Size: size, Kind: ResultMemoryAccess, Address: addr, Value: addr}
	if load {
		v := t.tmp(size)
		t.emit(reil.LDM, addr, reil.EmptyOperand, v)
		res.Value = v
	}
	return res, nil
}

// evalOperator evaluates the operator node n.
func (t *translator) evalOperator(n *x86.Node, load bool, inAddr bool) (*Result, error) {
	var op reil.Opcode
	switch n.Symbol() {
	case "+":
		op = reil.ADD
	case "*":
		op = reil.MUL
	case ":":
		if n.NumChildren() != 2 {
			return nil, errorf(KindInvalidOperandTree, "invalid number of operands of segment:offset operator; expected 2, got %d", n.NumChildren())
		}
		return nil, errorf(KindUnsupportedAddressingForm, "support for segment:offset operand %v not yet implemented", n)
	default:
		return nil, errorf(KindInvalidOperandTree, "invalid operator %q", n.Symbol())
	}
	if n.NumChildren() < 2 {
		return nil, errorf(KindInvalidOperandTree, "invalid number of operands of %q operator; expected >= 2, got %d", n.Symbol(), n.NumChildren())
	}
	var acc reil.Operand
	for i := 0; i < n.NumChildren(); i++ {
		res, err := t.eval(n.Child(i), t.arch, load, x86.NoReg, true)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = res.Value
			continue
		}
		acc = t.calc(op, acc, res.Value, t.arch.Next())
	}
	if !inAddr {
		acc = t.mask(acc, t.arch)
	}
	return &Result{Value: acc, Size: acc.Size, Kind: ResultRegister}, nil
}

// loadRegister evaluates the register leaf r.
func (t *translator) loadRegister(r x86.Reg, load bool) (*Result, error) {
	parent, a, err := lookupAlias(r, t.arch)
	if err != nil {
		return nil, err
	}
	if a.isFullWidth(r, t.arch) {
		v := reil.NewReg(r.String(), a.size)
		if load {
			v = t.calc(reil.STR, v, reil.EmptyOperand, a.size)
		}
		return &Result{Value: v, Size: a.size, Kind: ResultRegister}, nil
	}
	v := t.extract(parent, a)
	return &Result{Value: v, Size: a.size, Kind: ResultRegister}, nil
}

// loadLiteral evaluates the integer literal leaf x of the given size.
func (t *translator) loadLiteral(x *big.Int, size reil.Size, load bool) *Result {
	v := reil.NewBigLit(size.Truncate(x), size)
	if load {
		v = t.calc(reil.STR, v, reil.EmptyOperand, size)
	}
	return &Result{Value: v, Size: size, Kind: ResultLiteral}
}

// extract extracts the bits of a sub-register from its parent register.
func (t *translator) extract(parent x86.Reg, a alias) reil.Operand {
	p := reil.NewReg(parent.String(), t.arch)
	if a.high {
		v := t.calc(reil.AND, p, reil.NewBigLit(a.spanMask(), reil.Word), reil.Word)
		return t.calc(reil.BSH, v, reil.NewLit(-8, reil.Word), reil.Byte)
	}
	return t.calc(reil.AND, p, reil.NewBigLit(a.spanMask(), a.size), a.size)
}

// segBase returns the base address pseudo-register of the given segment.
func (t *translator) segBase(seg x86.Reg) reil.Operand {
	return reil.NewReg(seg.String()+"base", t.arch)
}
