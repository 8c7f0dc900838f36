// Package bin provides a uniform representation of native code addresses.
package bin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Addr is a native virtual address that may be specified in hexadecimal
// notation. It implements the flag.Value, encoding.TextUnmarshaler and
// encoding.TextMarshaler interfaces, the latter two being used when addresses
// are stored as JSON strings in oracle files.
type Addr uint64

// String returns the hexadecimal string representation of v; 8 digits for
// addresses within the 32-bit address space, and 16 digits otherwise.
func (v Addr) String() string {
	if v > 0xFFFFFFFF {
		return fmt.Sprintf("0x%016X", uint64(v))
	}
	return fmt.Sprintf("0x%08X", uint64(v))
}

// Set sets v to the numberic value represented by s.
func (v *Addr) Set(s string) error {
	x, err := parseUint64(s)
	if err != nil {
		return errors.WithStack(err)
	}
	*v = Addr(x)
	return nil
}

// UnmarshalText unmarshals the text into v.
func (v *Addr) UnmarshalText(text []byte) error {
	return v.Set(string(text))
}

// MarshalText returns the textual representation of v.
func (v Addr) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Addrs implements the sort.Sort interface, sorting addresses in ascending
// order.
type Addrs []Addr

func (as Addrs) Len() int           { return len(as) }
func (as Addrs) Swap(i, j int)      { as[i], as[j] = as[j], as[i] }
func (as Addrs) Less(i, j int) bool { return as[i] < as[j] }

// ### [ Helper functions ] ####################################################

// parseUint64 interprets the given string in base 10 or base 16 (if prefixed
// with `0x` or `0X`) and returns the corresponding value.
func parseUint64(s string) (uint64, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[len("0x"):]
		base = 16
	}
	x, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return x, nil
}
