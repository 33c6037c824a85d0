package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown target node or memory object.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates two targets, or two memory objects of one
	// target, share an identifier.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrInvalid indicates a descriptor that cannot be addressed.
	ErrInvalid = errors.New("invalid descriptor")
)

// NotFoundError names the identifier a lookup failed on.
type NotFoundError struct {
	// Target is the requested target node ID.
	Target string

	// Memory is the requested memory object ID, empty for target lookups.
	Memory string
}

func (e *NotFoundError) Error() string {
	if e.Memory == "" {
		return fmt.Sprintf("target node %q not found", e.Target)
	}
	return fmt.Sprintf("memory object %q not found in target node %q", e.Memory, e.Target)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
