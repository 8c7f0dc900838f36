package reil

import (
	"bytes"
	"fmt"
	"sort"
)

// Graph is a control flow graph of REIL basic blocks.
type Graph struct {
	// Basic blocks, sorted by entry address.
	Blocks []*Block
	// Edges between basic blocks.
	Edges []*Edge
}

// Block is a basic block of REIL instructions; a sequence of instructions
// entered only at its first instruction and left only after its last.
type Block struct {
	// One or more instructions.
	Insts []*Instruction
}

// Entry returns the entry address of the basic block.
func (block *Block) Entry() Addr {
	return block.Insts[0].Addr
}

// Last returns the last instruction of the basic block.
func (block *Block) Last() *Instruction {
	return block.Insts[len(block.Insts)-1]
}

// String returns the string representation of the basic block.
func (block *Block) String() string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "block_%v:\n", block.Entry())
	for i, inst := range block.Insts {
		if i != 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(buf, "\t%v", inst)
	}
	return buf.String()
}

// EdgeKind specifies the kind of a control flow edge.
type EdgeKind uint8

// Edge kinds.
const (
	// Sequential control flow into the following block.
	EdgeFallthrough EdgeKind = iota
	// Control flow of a taken jump.
	EdgeJump
)

// String returns the string representation of the edge kind.
func (kind EdgeKind) String() string {
	switch kind {
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeJump:
		return "jump"
	}
	return fmt.Sprintf("EdgeKind(%d)", uint8(kind))
}

// Edge is a control flow edge between two basic blocks.
type Edge struct {
	// Source and destination basic blocks.
	Src, Dst *Block
	// Edge kind.
	Kind EdgeKind
}

// String returns the string representation of the edge.
func (e *Edge) String() string {
	return fmt.Sprintf("block_%v -> block_%v (%v)", e.Src.Entry(), e.Dst.Entry(), e.Kind)
}

// NewGraph returns the control flow graph of the given REIL instructions.
// Basic blocks end after every jump and before every jump target. Jumps to
// targets outside of the given instructions have no outgoing jump edge.
func NewGraph(insts []*Instruction) *Graph {
	g := &Graph{}
	if len(insts) == 0 {
		return g
	}
	sorted := make([]*Instruction, len(insts))
	copy(sorted, insts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Addr.Less(sorted[j].Addr)
	})
	// Locate basic block leaders.
	targets := make(map[Addr]bool)
	for _, inst := range sorted {
		if target, ok := jumpTarget(inst); ok {
			targets[target] = true
		}
	}
	var cur *Block
	for i, inst := range sorted {
		if cur == nil || targets[inst.Addr] || sorted[i-1].IsJump() {
			cur = &Block{}
			g.Blocks = append(g.Blocks, cur)
		}
		cur.Insts = append(cur.Insts, inst)
	}
	// Connect basic blocks.
	blockFromAddr := make(map[Addr]*Block)
	for _, block := range g.Blocks {
		blockFromAddr[block.Entry()] = block
	}
	for i, block := range g.Blocks {
		last := block.Last()
		if target, ok := jumpTarget(last); ok {
			if dst, ok := blockFromAddr[target]; ok {
				g.Edges = append(g.Edges, &Edge{Src: block, Dst: dst, Kind: EdgeJump})
			}
			if last.IsUnconditional() {
				continue
			}
		}
		if i+1 < len(g.Blocks) {
			g.Edges = append(g.Edges, &Edge{Src: block, Dst: g.Blocks[i+1], Kind: EdgeFallthrough})
		}
	}
	return g
}

// String returns the string representation of the graph.
func (g *Graph) String() string {
	buf := &bytes.Buffer{}
	for _, block := range g.Blocks {
		fmt.Fprintf(buf, "%v\n\n", block)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(buf, "%v\n", e)
	}
	return buf.String()
}

// ### [ Helper functions ] ####################################################

// jumpTarget returns the target address of the given jump instruction. The
// boolean return value indicates success; register targets are not statically
// known.
func jumpTarget(inst *Instruction) (Addr, bool) {
	if !inst.IsJump() {
		return Addr{}, false
	}
	switch target := inst.Dst.Value.(type) {
	case SubAddr:
		return Addr(target), true
	case Lit:
		if target.x.Sign() < 0 || !target.x.IsUint64() {
			return Addr{}, false
		}
		return Addr{Native: target.x.Uint64()}, true
	}
	return Addr{}, false
}
