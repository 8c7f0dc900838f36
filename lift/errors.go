package lift

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind specifies the kind of a translation error.
type Kind uint8

// Translation error kinds.
const (
	// Wrong operand count or operand kind for the instruction.
	KindMalformedInstruction Kind = iota + 1
	// Structurally unexpected operand tree.
	KindInvalidOperandTree
	// Operand tree leaf which is neither a register nor an integer literal.
	KindInvalidLeafType
	// Register not available on the architecture.
	KindInvalidRegisterName
	// Write-back to a result kind which is not writable.
	KindInvalidTargetType
	// Addressing form without REIL translation (e.g. segment:offset
	// literals).
	KindUnsupportedAddressingForm
	// Instruction outside of the supported instruction set.
	KindUnsupported
)

// kindName maps from error kind to name.
var kindName = map[Kind]string{
	KindMalformedInstruction:      "malformed instruction",
	KindInvalidOperandTree:        "invalid operand tree",
	KindInvalidLeafType:           "invalid leaf type",
	KindInvalidRegisterName:       "invalid register name",
	KindInvalidTargetType:         "invalid target type",
	KindUnsupportedAddressingForm: "unsupported addressing form",
	KindUnsupported:               "unsupported instruction",
}

// String returns the string representation of the error kind.
func (kind Kind) String() string {
	if s, ok := kindName[kind]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(kind))
}

// Error is a translation error; the native instruction could not be lifted.
type Error struct {
	// Error kind.
	Kind Kind
	// Human-readable diagnostic.
	Msg string
}

// Error returns the diagnostic of the translation error.
func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

// KindOf returns the kind of the given translation error. The boolean return
// value is false if err is not caused by a translation error.
func KindOf(err error) (Kind, bool) {
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}

// errorf returns a new translation error of the given kind, annotated with a
// stack trace.
func errorf(kind Kind, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}
