package lift

import (
	"fmt"

	"github.com/mewmew/reil/reil"
)

// Environment is a translation environment; it hands out fresh temporary
// registers and knows the natural width of the native architecture.
type Environment interface {
	// NextTemporary returns the index of a fresh temporary register, never
	// returned before by the environment.
	NextTemporary() uint32
	// ArchitectureSize returns the natural operand size of the native
	// architecture; reil.Dword for x86 and reil.Qword for x64.
	ArchitectureSize() reil.Size
}

// Env is a translation environment scoped to a single lifting session.
//
// An Env is not safe for concurrent use; independent lifts running in
// parallel should use one Env each.
type Env struct {
	// Natural operand size of the native architecture.
	arch reil.Size
	// Index of the next temporary register.
	next uint32
}

// NewEnv returns a new translation environment of the given architecture size
// (reil.Dword or reil.Qword).
func NewEnv(arch reil.Size) *Env {
	switch arch {
	case reil.Dword, reil.Qword:
	default:
		panic(fmt.Errorf("invalid architecture size %v; expected dword or qword", arch))
	}
	return &Env{arch: arch}
}

// NewEnvMode returns a new translation environment of the given processor mode
// (32 or 64-bit).
func NewEnvMode(mode int) *Env {
	switch mode {
	case 32:
		return NewEnv(reil.Dword)
	case 64:
		return NewEnv(reil.Qword)
	}
	panic(fmt.Errorf("invalid processor mode %d; expected 32 or 64", mode))
}

// NextTemporary returns the index of a fresh temporary register.
func (env *Env) NextTemporary() uint32 {
	index := env.next
	env.next++
	return index
}

// ArchitectureSize returns the natural operand size of the native
// architecture.
func (env *Env) ArchitectureSize() reil.Size {
	return env.arch
}
