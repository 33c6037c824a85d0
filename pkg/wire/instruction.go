package wire

import "strings"

// Instruction is the RMAP instruction byte.
type Instruction uint8

// Instruction bits.
const (
	// InstructionReserved must be zero in every valid packet.
	InstructionReserved Instruction = 0x80

	// InstructionCommand marks a command packet. Cleared in replies.
	InstructionCommand Instruction = 0x40

	// InstructionWrite selects a write (set) or read (clear) operation.
	InstructionWrite Instruction = 0x20

	// InstructionVerify requests that write data is verified before writing.
	InstructionVerify Instruction = 0x10

	// InstructionReply requests a reply from the target.
	InstructionReply Instruction = 0x08

	// InstructionIncrement selects incrementing addresses.
	InstructionIncrement Instruction = 0x04

	// InstructionReplyAddressMask holds the reply address length in 4-byte units.
	InstructionReplyAddressMask Instruction = 0x03
)

// Common instruction values for commands.
const (
	InstructionRead             = InstructionCommand | InstructionReply | InstructionIncrement
	InstructionWriteVerifyReply = InstructionCommand | InstructionWrite | InstructionVerify | InstructionReply | InstructionIncrement
	InstructionReadModifyWrite  = InstructionCommand | InstructionVerify | InstructionReply | InstructionIncrement
)

// IsCommand reports whether the packet type bit is set.
func (i Instruction) IsCommand() bool { return i&InstructionCommand != 0 }

// IsWrite reports whether the write bit is set.
func (i Instruction) IsWrite() bool { return i&InstructionWrite != 0 }

// IsVerify reports whether the verify bit is set.
func (i Instruction) IsVerify() bool { return i&InstructionVerify != 0 }

// HasReply reports whether the reply bit is set.
func (i Instruction) HasReply() bool { return i&InstructionReply != 0 }

// IsIncrement reports whether the increment bit is set.
func (i Instruction) IsIncrement() bool { return i&InstructionIncrement != 0 }

// ReplyAddressLength returns the reply address field length in bytes.
func (i Instruction) ReplyAddressLength() int {
	return int(i&InstructionReplyAddressMask) * 4
}

// code returns the four command code bits (write, verify, reply, increment).
func (i Instruction) code() uint8 {
	return uint8(i>>2) & 0x0f
}

// IsReadModifyWrite reports whether the command code selects read-modify-write.
func (i Instruction) IsReadModifyWrite() bool {
	return i.code() == 0x07
}

// IsValid reports whether the instruction has the reserved bit clear and a
// command code that RMAP defines.
func (i Instruction) IsValid() bool {
	if i&InstructionReserved != 0 {
		return false
	}
	switch i.code() {
	case 0x00, 0x01, 0x04, 0x05, 0x06:
		return false
	}
	return true
}

// HasData reports whether a packet with this instruction carries a data
// field. Write and read-modify-write commands carry data; replies carry
// data unless they acknowledge a write.
func (i Instruction) HasData() bool {
	if i.IsCommand() {
		return i.IsWrite() || i.IsReadModifyWrite()
	}
	return !i.IsWrite()
}

// Operation returns the operation name: READ, WRITE or RMW.
func (i Instruction) Operation() string {
	switch {
	case i.IsWrite():
		return "WRITE"
	case i.IsReadModifyWrite():
		return "RMW"
	default:
		return "READ"
	}
}

// String returns the instruction as a list of its set flags.
func (i Instruction) String() string {
	parts := make([]string, 0, 6)
	if i.IsCommand() {
		parts = append(parts, "COMMAND")
	} else {
		parts = append(parts, "REPLY")
	}
	parts = append(parts, i.Operation())
	if i.IsVerify() && !i.IsReadModifyWrite() {
		parts = append(parts, "VERIFY")
	}
	if i.HasReply() {
		parts = append(parts, "ACK")
	}
	if i.IsIncrement() {
		parts = append(parts, "INC")
	}
	if i&InstructionReserved != 0 {
		parts = append(parts, "RESERVED")
	}
	return strings.Join(parts, "|")
}
