package wire

import "fmt"

// Status represents an RMAP reply status code.
type Status uint8

const (
	// StatusSuccess indicates the command was executed successfully.
	StatusSuccess Status = 0x00

	// StatusGeneralError indicates an error that does not fit another code.
	StatusGeneralError Status = 0x01

	// StatusUnusedPacketType indicates an unused packet type or command code.
	StatusUnusedPacketType Status = 0x02

	// StatusInvalidKey indicates the key did not match the target's key.
	StatusInvalidKey Status = 0x03

	// StatusInvalidDataCRC indicates the data CRC was wrong.
	StatusInvalidDataCRC Status = 0x04

	// StatusEarlyEOP indicates the packet ended before the declared data length.
	StatusEarlyEOP Status = 0x05

	// StatusTooMuchData indicates more data than the declared data length.
	StatusTooMuchData Status = 0x06

	// StatusEEP indicates the packet was terminated by an error end of packet.
	StatusEEP Status = 0x07

	// StatusReserved is reserved by ECSS-E-ST-50-52C.
	StatusReserved Status = 0x08

	// StatusVerifyBufferOverrun indicates the verify buffer was too small.
	StatusVerifyBufferOverrun Status = 0x09

	// StatusNotImplemented indicates the command is not implemented or not authorized.
	StatusNotImplemented Status = 0x0a

	// StatusRMWDataLength indicates an invalid read-modify-write data length.
	StatusRMWDataLength Status = 0x0b

	// StatusInvalidLogicalAddress indicates a wrong target logical address.
	StatusInvalidLogicalAddress Status = 0x0c
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusGeneralError:
		return "GENERAL_ERROR"
	case StatusUnusedPacketType:
		return "UNUSED_PACKET_TYPE"
	case StatusInvalidKey:
		return "INVALID_KEY"
	case StatusInvalidDataCRC:
		return "INVALID_DATA_CRC"
	case StatusEarlyEOP:
		return "EARLY_EOP"
	case StatusTooMuchData:
		return "TOO_MUCH_DATA"
	case StatusEEP:
		return "EEP"
	case StatusReserved:
		return "RESERVED"
	case StatusVerifyBufferOverrun:
		return "VERIFY_BUFFER_OVERRUN"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case StatusRMWDataLength:
		return "RMW_DATA_LENGTH"
	case StatusInvalidLogicalAddress:
		return "INVALID_LOGICAL_ADDRESS"
	default:
		return fmt.Sprintf("RESERVED_0x%02X", uint8(s))
	}
}

// Description returns the human-readable description used in the
// RMAP standard.
func (s Status) Description() string {
	switch s {
	case StatusSuccess:
		return "Successfully Executed"
	case StatusGeneralError:
		return "General Error"
	case StatusUnusedPacketType:
		return "Unused RMAP Packet Type or Command Code"
	case StatusInvalidKey:
		return "Invalid Target Key"
	case StatusInvalidDataCRC:
		return "Invalid Data CRC"
	case StatusEarlyEOP:
		return "Early EOP"
	case StatusTooMuchData:
		return "Cargo Too Large"
	case StatusEEP:
		return "EEP"
	case StatusReserved:
		return "Reserved"
	case StatusVerifyBufferOverrun:
		return "Verify Buffer Overrun"
	case StatusNotImplemented:
		return "RMAP Command Not Implemented or Not Authorized"
	case StatusRMWDataLength:
		return "RMW Data Length Error"
	case StatusInvalidLogicalAddress:
		return "Invalid Target Logical Address"
	default:
		return fmt.Sprintf("Reserved (0x%02x)", uint8(s))
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}

// StatusError is returned when a target answers with a non-zero status.
type StatusError struct {
	Status        Status
	TransactionID uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rmap reply status 0x%02x: %s", uint8(e.Status), e.Status.Description())
}

// Is matches any *StatusError carrying the same status, and
// ErrStatus regardless of the status.
func (e *StatusError) Is(target error) bool {
	if target == ErrStatus {
		return true
	}
	t, ok := target.(*StatusError)
	return ok && t.Status == e.Status
}
