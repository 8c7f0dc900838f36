package x86

import (
	"fmt"
	"strings"

	"github.com/mewmew/reil/reil"
)

// Kind specifies the kind of an operand tree node.
type Kind uint8

// Operand tree node kinds.
const (
	// Register leaf.
	KindRegister Kind = iota + 1
	// Integer literal leaf.
	KindLiteral
	// Memory dereference ("[") of exactly one child.
	KindMemDeref
	// Operator ("+", "*" or ":") of its children.
	KindOperator
	// Size prefix of exactly one child.
	KindSizePrefix
	// Segment override prefix of exactly one child.
	KindSegmentPrefix
)

// String returns the string representation of the node kind.
func (kind Kind) String() string {
	switch kind {
	case KindRegister:
		return "register"
	case KindLiteral:
		return "literal"
	case KindMemDeref:
		return "memory dereference"
	case KindOperator:
		return "operator"
	case KindSizePrefix:
		return "size prefix"
	case KindSegmentPrefix:
		return "segment prefix"
	}
	return fmt.Sprintf("Kind(%d)", uint8(kind))
}

// Node is a node of an operand tree; the parsed expression of one instruction
// operand. Nodes are immutable once created.
type Node struct {
	// Node kind.
	kind Kind
	// Register of register leaves, or segment register of segment prefixes.
	reg Reg
	// Value of integer literal leaves.
	value uint64
	// Operator symbol.
	sym string
	// Size of size prefixes.
	size reil.Size
	// Child nodes.
	children []*Node
}

// Register returns a new register leaf.
func Register(r Reg) *Node {
	return &Node{kind: KindRegister, reg: r}
}

// Literal returns a new integer literal leaf.
func Literal(x uint64) *Node {
	return &Node{kind: KindLiteral, value: x}
}

// Deref returns a new memory dereference of the given address expression.
func Deref(addr *Node) *Node {
	return &Node{kind: KindMemDeref, children: []*Node{addr}}
}

// Op returns a new operator node of the given symbol and operands.
func Op(sym string, operands ...*Node) *Node {
	children := make([]*Node, len(operands))
	copy(children, operands)
	return &Node{kind: KindOperator, sym: sym, children: children}
}

// Sized returns a new size prefix specifying the size of the given operand.
func Sized(size reil.Size, operand *Node) *Node {
	return &Node{kind: KindSizePrefix, size: size, children: []*Node{operand}}
}

// Segment returns a new segment override prefix of the given memory operand.
func Segment(seg Reg, operand *Node) *Node {
	return &Node{kind: KindSegmentPrefix, reg: seg, children: []*Node{operand}}
}

// Kind returns the kind of the node.
func (n *Node) Kind() Kind { return n.kind }

// Reg returns the register of a register leaf.
func (n *Node) Reg() Reg { return n.reg }

// Value returns the value of an integer literal leaf.
func (n *Node) Value() uint64 { return n.value }

// Symbol returns the symbol of an operator node.
func (n *Node) Symbol() string { return n.sym }

// Size returns the size of a size prefix.
func (n *Node) Size() reil.Size { return n.size }

// Segment returns the segment register of a segment override prefix.
func (n *Node) Segment() Reg { return n.reg }

// NumChildren returns the number of child nodes.
func (n *Node) NumChildren() int { return len(n.children) }

// Child returns the i:th child node.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns a copy of the child nodes.
func (n *Node) Children() []*Node {
	children := make([]*Node, len(n.children))
	copy(children, n.children)
	return children
}

// Leaf returns the first node below any size and segment prefixes of n.
func (n *Node) Leaf() *Node {
	for (n.kind == KindSizePrefix || n.kind == KindSegmentPrefix) && len(n.children) == 1 {
		n = n.children[0]
	}
	return n
}

// OperandSize returns the size of the operand tree; the size of the outermost
// size prefix, or the size of a register leaf. The empty size is returned if
// the tree does not specify a size.
func (n *Node) OperandSize() reil.Size {
	switch n.kind {
	case KindSizePrefix:
		return n.size
	case KindSegmentPrefix:
		if len(n.children) == 1 {
			return n.children[0].OperandSize()
		}
	case KindRegister:
		return n.reg.Size()
	}
	return reil.Empty
}

// String returns the string representation of the operand tree in Intel
// syntax (e.g. "dword [ebx+ecx*4+0x10]").
func (n *Node) String() string {
	switch n.kind {
	case KindRegister:
		return n.reg.String()
	case KindLiteral:
		if n.value < 10 {
			return fmt.Sprintf("%d", n.value)
		}
		return fmt.Sprintf("0x%X", n.value)
	case KindMemDeref:
		return fmt.Sprintf("[%v]", n.joinChildren(""))
	case KindOperator:
		return n.joinChildren(n.sym)
	case KindSizePrefix:
		return fmt.Sprintf("%v %v", n.size, n.joinChildren(""))
	case KindSegmentPrefix:
		return fmt.Sprintf("%v:%v", n.reg, n.joinChildren(""))
	}
	return fmt.Sprintf("Node(%v)", n.kind)
}

// joinChildren returns the string representations of the child nodes joined by
// sep.
func (n *Node) joinChildren(sep string) string {
	var ss []string
	for _, child := range n.children {
		if child == nil {
			ss = append(ss, "<nil>")
			continue
		}
		ss = append(ss, child.String())
	}
	return strings.Join(ss, sep)
}
