package registry

import (
	"fmt"
	"strings"
)

// AccessMode restricts the operations allowed on a memory object.
// The zero value permits reads and writes.
type AccessMode uint8

const (
	AccessReadWrite AccessMode = iota
	AccessReadOnly
	AccessWriteOnly
)

// CanRead reports whether reads are permitted.
func (m AccessMode) CanRead() bool {
	return m != AccessWriteOnly
}

// CanWrite reports whether writes are permitted.
func (m AccessMode) CanWrite() bool {
	return m != AccessReadOnly
}

// String returns the configuration spelling of the access mode.
func (m AccessMode) String() string {
	switch m {
	case AccessReadWrite:
		return "read-write"
	case AccessReadOnly:
		return "read-only"
	case AccessWriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("AccessMode(%d)", uint8(m))
	}
}

// ParseAccessMode parses an access mode name. Empty means read-write.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rw", "read-write", "readwrite", "readable,writable":
		return AccessReadWrite, nil
	case "r", "ro", "read-only", "readonly", "readable":
		return AccessReadOnly, nil
	case "w", "wo", "write-only", "writeonly", "writable":
		return AccessWriteOnly, nil
	default:
		return 0, fmt.Errorf("unknown access mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m AccessMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AccessMode) UnmarshalText(b []byte) error {
	v, err := ParseAccessMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
