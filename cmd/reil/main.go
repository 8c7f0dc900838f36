// The reil tool lifts x86 and x64 binary executables to REIL.
//
// Separation of concern is handled through reliance on oracles, which provide
// addresses of basic blocks and functions (blocks.json and funcs.json in the
// working directory). Code sections without oracle are decoded by linear
// sweep.
//
// Usage:
//
//	reil [OPTION]... FILE...
//
// Flags:
//
//	-base addr
//	      load address of raw code (default 0x00001000)
//	-graph
//	      print the REIL graph of each function
//	-m int
//	      processor mode of raw code; 32 or 64 (default 32)
//	-o string
//	      output path (default standard output)
//	-q    suppress non-error messages
//	-raw
//	      interpret input files as raw machine code
//	-strict
//	      fail on instructions which cannot be translated
//	-v    dump decoded instructions
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/reil/bin"
	"github.com/mewmew/reil/disasm/x86"
	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
)

var (
	// dbg is a logger which logs debug messages with "reil:" prefix to standard
	// error.
	dbg = log.New(os.Stderr, term.MagentaBold("reil:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix to
	// standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

func usage() {
	const use = `
Lift x86 and x64 binary executables to REIL.

Usage:

	reil [OPTION]... FILE...

Flags:
`
	fmt.Fprint(os.Stderr, use[1:])
	flag.PrintDefaults()
}

func main() {
	// Parse command line arguments.
	var (
		// quiet specifies whether to suppress non-error messages.
		quiet bool
		// output specifies the output path.
		output string
		// opts specifies the lifter options.
		opts options
	)
	opts.base = 0x1000
	flag.BoolVar(&quiet, "q", false, "suppress non-error messages")
	flag.BoolVar(&opts.verbose, "v", false, "dump decoded instructions")
	flag.IntVar(&opts.mode, "m", 32, "processor mode of raw code; 32 or 64")
	flag.Var(&opts.base, "base", "load address of raw code")
	flag.BoolVar(&opts.raw, "raw", false, "interpret input files as raw machine code")
	flag.BoolVar(&opts.graph, "graph", false, "print the REIL graph of each function")
	flag.BoolVar(&opts.strict, "strict", false, "fail on instructions which cannot be translated")
	flag.StringVar(&output, "o", "", "output path (default standard output)")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	// Skip debug output if -q is set.
	if quiet {
		dbg.SetOutput(ioutil.Discard)
		x86.Quiet()
	}
	switch opts.mode {
	case 32, 64:
	default:
		log.Fatalf("invalid processor mode %d; expected 32 or 64", opts.mode)
	}

	w, err := create(output)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	bw := bufio.NewWriter(w)
	atexit.Register(func() {
		if err := bw.Flush(); err != nil {
			log.Printf("%+v", errors.WithStack(err))
		}
		if w != os.Stdout {
			w.Close()
		}
	})

	// Lift binary executables.
	for _, binPath := range flag.Args() {
		l, err := newLifter(binPath, bw, opts)
		if err != nil {
			atexit.Fatalf("%+v", err)
		}
		if err := l.lift(); err != nil {
			atexit.Fatalf("%+v", err)
		}
	}
	atexit.Exit(0)
}

// create returns the output file of the given path, or standard output if path
// is empty.
func create(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// options specifies the lifter options.
type options struct {
	// Interpret input files as raw machine code.
	raw bool
	// Processor mode of raw code.
	mode int
	// Load address of raw code.
	base bin.Addr
	// Print REIL graph of each function.
	graph bool
	// Fail on instructions which cannot be translated.
	strict bool
	// Dump decoded instructions.
	verbose bool
}
