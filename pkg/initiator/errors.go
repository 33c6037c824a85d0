package initiator

import (
	"errors"
	"fmt"
)

var (
	// ErrAccess indicates an operation refused by the local access check.
	ErrAccess = errors.New("access denied")

	// ErrReplyLength indicates a read reply whose data length differs from
	// the requested length.
	ErrReplyLength = errors.New("unexpected reply data length")
)

// AccessError describes an operation refused before any packet was sent.
type AccessError struct {
	Target    string
	Memory    string
	Operation string
	Reason    string
}

func (e *AccessError) Error() string {
	where := e.Target
	if e.Memory != "" {
		where += "/" + e.Memory
	}
	return fmt.Sprintf("%s %s: %s", e.Operation, where, e.Reason)
}

// Unwrap returns ErrAccess.
func (e *AccessError) Unwrap() error {
	return ErrAccess
}
