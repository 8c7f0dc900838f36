package main

import (
	"debug/pe"

	"github.com/mewmew/reil/bin"
	"github.com/pkg/errors"
)

// section is a code section of a binary executable.
type section struct {
	// Section name.
	name string
	// Load address of section.
	addr bin.Addr
	// Section contents.
	data []byte
}

// contained returns the sorted addresses located within the section.
func (sect *section) contained(addrs bin.Addrs) bin.Addrs {
	var as bin.Addrs
	end := sect.addr + bin.Addr(len(sect.data))
	for _, addr := range addrs {
		if addr >= sect.addr && addr < end {
			as = append(as, addr)
		}
	}
	return as
}

// parsePE parses the executable code sections of the given PE file, and
// returns them together with the processor mode of the executable.
func parsePE(binPath string) ([]*section, int, error) {
	file, err := pe.Open(binPath)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}
	defer file.Close()
	var (
		base bin.Addr
		mode int
	)
	switch optHdr := file.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		base, mode = bin.Addr(optHdr.ImageBase), 32
	case *pe.OptionalHeader64:
		base, mode = bin.Addr(optHdr.ImageBase), 64
	default:
		return nil, 0, errors.Errorf("support for PE optional header %T not yet implemented", optHdr)
	}
	var sects []*section
	for _, sect := range file.Sections {
		if !isExec(sect) {
			continue
		}
		data, err := sect.Data()
		if err != nil {
			return nil, 0, errors.WithStack(err)
		}
		// Strip section padding.
		if size := int(sect.VirtualSize); size != 0 && size < len(data) {
			data = data[:size]
		}
		sects = append(sects, &section{
			name: sect.Name,
			addr: base + bin.Addr(sect.VirtualAddress),
			data: data,
		})
	}
	return sects, mode, nil
}

// ### [ Helper functions ] ####################################################

// isExec reports whether the given section is executable.
func isExec(sect *pe.Section) bool {
	const codeMask = 0x00000020
	return sect.Characteristics&codeMask != 0
}
