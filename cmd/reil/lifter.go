package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/kr/pretty"
	"github.com/mewmew/reil/bin"
	"github.com/mewmew/reil/disasm/x86"
	"github.com/mewmew/reil/lift"
	"github.com/mewmew/reil/reil"
	"github.com/pkg/errors"
)

// lifter is a binary executable to REIL lifter.
type lifter struct {
	// Binary executable path.
	binPath string
	// Lifter options.
	opts options
	// Output writer of REIL listings.
	w io.Writer
	// Function addresses.
	funcAddrs bin.Addrs
	// Basic block addresses.
	blockAddrs bin.Addrs

	// Translation environment of the lifting session; created once the
	// processor mode of the executable is known.
	env *lift.Env
	// Number of stubbed instructions.
	nstubs int
}

// newLifter returns a new lifter based on the given binary executable path.
func newLifter(binPath string, w io.Writer, opts options) (*lifter, error) {
	l := &lifter{
		binPath: binPath,
		opts:    opts,
		w:       w,
	}
	// Parse function addresses.
	if err := parseJSON("funcs.json", &l.funcAddrs); err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Sort(l.funcAddrs)
	// Parse basic block addresses.
	if err := parseJSON("blocks.json", &l.blockAddrs); err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Sort(l.blockAddrs)
	return l, nil
}

// lift lifts the given binary executable to REIL.
func (l *lifter) lift() error {
	dbg.Printf("lift(binPath = %q)", l.binPath)
	var (
		sects []*section
		mode  int
	)
	if l.opts.raw {
		data, err := ioutil.ReadFile(l.binPath)
		if err != nil {
			return errors.WithStack(err)
		}
		sects = []*section{{name: "raw", addr: l.opts.base, data: data}}
		mode = l.opts.mode
	} else {
		var err error
		if sects, mode, err = parsePE(l.binPath); err != nil {
			return errors.WithStack(err)
		}
	}
	l.env = lift.NewEnvMode(mode)
	for _, sect := range sects {
		dbg.Printf("=== [ section %q ] ===", sect.name)
		if err := l.liftSection(sect, mode); err != nil {
			return errors.WithStack(err)
		}
	}
	if l.nstubs > 0 {
		warn.Printf("%d instructions of %q stubbed", l.nstubs, l.binPath)
	}
	return nil
}

// liftSection lifts the given code section to REIL.
func (l *lifter) liftSection(sect *section, mode int) error {
	blockAddrs := sect.contained(l.blockAddrs)
	if len(blockAddrs) == 0 {
		// Linear sweep.
		insts, err := x86.DecodeLinear(sect.addr, sect.data, mode)
		if err != nil {
			return errors.WithStack(err)
		}
		fl := newFuncLifter(l, nil)
		if err := fl.liftInsts(insts); err != nil {
			return errors.WithStack(err)
		}
		return l.printGraph(fmt.Sprintf("section %s", sect.name), fl.insts)
	}
	blocks, err := x86.DecodeBlocks(sect.addr, sect.data, blockAddrs, mode)
	if err != nil {
		return errors.WithStack(err)
	}
	funcAddrs := sect.contained(l.funcAddrs)
	if len(funcAddrs) == 0 || funcAddrs[0] > blocks[0].Entry() {
		// Basic blocks preceding the first function address form a function of
		// their own.
		funcAddrs = append(bin.Addrs{blocks[0].Entry()}, funcAddrs...)
	}
	funcs, err := x86.DecodeFuncs(blocks, funcAddrs)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, f := range funcs {
		fl := newFuncLifter(l, f)
		if err := fl.liftFunc(); err != nil {
			return errors.WithStack(err)
		}
		if err := l.printGraph(fmt.Sprintf("func_%08X", uint64(f.Entry)), fl.insts); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// translate translates the given x86 instruction to REIL. Instructions which
// cannot be translated are replaced by a stub unless the strict option is set.
func (l *lifter) translate(inst *x86.Instruction) ([]*reil.Instruction, error) {
	if l.opts.verbose {
		dbg.Printf("inst: %# v", pretty.Formatter(inst))
	}
	insts, err := lift.Translate(l.env, inst)
	if err != nil {
		if l.opts.strict {
			return nil, errors.WithStack(err)
		}
		warn.Printf("%v; instruction stubbed", err)
		l.nstubs++
		return lift.Stub(inst), nil
	}
	return insts, nil
}

// printGraph prints the REIL graph of the given instructions if the graph
// option is set.
func (l *lifter) printGraph(name string, insts []*reil.Instruction) error {
	if !l.opts.graph || len(insts) == 0 {
		return nil
	}
	g := reil.NewGraph(insts)
	if _, err := fmt.Fprintf(l.w, "; graph of %s\n%v\n", name, g); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
