package rpc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidRequest is wrapped by every request that fails structural
// validation before reaching a facade.
var ErrInvalidRequest = errors.New("invalid request")

// MaxIfnameLen mirrors the kernel's IFNAMSIZ minus the terminator.
const MaxIfnameLen = 15

// ValidateIfname checks that name is a usable interface name.
func ValidateIfname(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: ifname is required", ErrInvalidRequest)
	}
	if len(name) > MaxIfnameLen {
		return fmt.Errorf("%w: ifname %q longer than %d bytes", ErrInvalidRequest, name, MaxIfnameLen)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: ifname %q is reserved", ErrInvalidRequest, name)
	}
	for _, r := range name {
		if r == '/' || r == ':' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: ifname %q contains %q", ErrInvalidRequest, name, r)
		}
	}
	return nil
}
