package wire

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	// ErrFieldRange indicates a field value does not fit its wire width.
	ErrFieldRange = errors.New("field out of range")

	// ErrPathTooLong indicates a path address exceeds the supported length.
	ErrPathTooLong = errors.New("path address too long")

	// ErrInvalidPathByte indicates a path address byte of 0x20 or above.
	ErrInvalidPathByte = errors.New("invalid path address byte")

	// ErrDataLengthMismatch indicates the data field disagrees with the declared length.
	ErrDataLengthMismatch = errors.New("data length mismatch")

	// ErrTruncated indicates the packet ended before the header or data was complete.
	ErrTruncated = errors.New("packet truncated")

	// ErrHeaderCRC indicates a header CRC mismatch.
	ErrHeaderCRC = errors.New("header CRC mismatch")

	// ErrDataCRC indicates a data CRC mismatch.
	ErrDataCRC = errors.New("data CRC mismatch")

	// ErrUnsupportedInstruction indicates a reserved bit or an undefined command code.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrProtocolID indicates the protocol identifier is not RMAP.
	ErrProtocolID = errors.New("not an RMAP packet")

	// ErrNoLogicalAddress indicates the packet consists of path bytes only.
	ErrNoLogicalAddress = errors.New("no logical address")

	// ErrStatus matches every *StatusError with errors.Is.
	ErrStatus = errors.New("rmap reply status")
)

// EncodeError reports a packet that cannot be serialized.
type EncodeError struct {
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func encodeErr(field string, err error, format string, args ...any) error {
	return &EncodeError{Field: field, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}

// DecodeError reports bytes that cannot be parsed as an RMAP packet.
// Offset is the byte position where parsing failed.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(offset int, err error, format string, args ...any) error {
	return &DecodeError{Offset: offset, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}
