package wire

import (
	"errors"
	"testing"
)

func TestInstructionIsValid(t *testing.T) {
	tests := []struct {
		instr Instruction
		valid bool
	}{
		{InstructionRead, true},
		{InstructionWriteVerifyReply, true},
		{InstructionReadModifyWrite, true},
		{InstructionCommand | InstructionReply, true},
		{InstructionCommand | InstructionWrite, true},
		{InstructionCommand, false},
		{InstructionCommand | InstructionIncrement, false},
		{InstructionCommand | InstructionVerify, false},
		{InstructionCommand | InstructionVerify | InstructionIncrement, false},
		{InstructionCommand | InstructionVerify | InstructionReply, false},
		{InstructionRead | InstructionReserved, false},
	}
	for _, tt := range tests {
		if got := tt.instr.IsValid(); got != tt.valid {
			t.Errorf("Instruction(0x%02x).IsValid() = %v, want %v", uint8(tt.instr), got, tt.valid)
		}
	}
}

func TestInstructionHasData(t *testing.T) {
	tests := []struct {
		name  string
		instr Instruction
		want  bool
	}{
		{"read command", InstructionRead, false},
		{"write command", InstructionWriteVerifyReply, true},
		{"rmw command", InstructionReadModifyWrite, true},
		{"read reply", InstructionRead &^ InstructionCommand, true},
		{"write reply", InstructionWriteVerifyReply &^ InstructionCommand, false},
		{"rmw reply", InstructionReadModifyWrite &^ InstructionCommand, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.instr.HasData(); got != tt.want {
				t.Errorf("HasData() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInstructionString(t *testing.T) {
	if got := InstructionRead.String(); got != "COMMAND|READ|ACK|INC" {
		t.Errorf("String() = %q", got)
	}
	if got := (InstructionWriteVerifyReply &^ InstructionCommand).String(); got != "REPLY|WRITE|VERIFY|ACK|INC" {
		t.Errorf("String() = %q", got)
	}
	if got := InstructionReadModifyWrite.String(); got != "COMMAND|RMW|ACK|INC" {
		t.Errorf("String() = %q", got)
	}
}

func TestInstructionReplyAddressLength(t *testing.T) {
	for units := 0; units < 4; units++ {
		instr := InstructionRead | Instruction(units)
		if got := instr.ReplyAddressLength(); got != units*4 {
			t.Errorf("units %d: ReplyAddressLength() = %d", units, got)
		}
	}
}

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		status Status
		name   string
		desc   string
	}{
		{StatusSuccess, "SUCCESS", "Successfully Executed"},
		{StatusGeneralError, "GENERAL_ERROR", "General Error"},
		{StatusUnusedPacketType, "UNUSED_PACKET_TYPE", "Unused RMAP Packet Type or Command Code"},
		{StatusInvalidKey, "INVALID_KEY", "Invalid Target Key"},
		{StatusInvalidDataCRC, "INVALID_DATA_CRC", "Invalid Data CRC"},
		{StatusEarlyEOP, "EARLY_EOP", "Early EOP"},
		{StatusTooMuchData, "TOO_MUCH_DATA", "Cargo Too Large"},
		{StatusEEP, "EEP", "EEP"},
		{StatusVerifyBufferOverrun, "VERIFY_BUFFER_OVERRUN", "Verify Buffer Overrun"},
		{StatusNotImplemented, "NOT_IMPLEMENTED", "RMAP Command Not Implemented or Not Authorized"},
		{StatusRMWDataLength, "RMW_DATA_LENGTH", "RMW Data Length Error"},
		{StatusInvalidLogicalAddress, "INVALID_LOGICAL_ADDRESS", "Invalid Target Logical Address"},
		{Status(0x42), "RESERVED_0x42", "Reserved (0x42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.name {
			t.Errorf("Status(0x%02x).String() = %q, want %q", uint8(tt.status), got, tt.name)
		}
		if got := tt.status.Description(); got != tt.desc {
			t.Errorf("Status(0x%02x).Description() = %q, want %q", uint8(tt.status), got, tt.desc)
		}
	}
}

func TestStatusErrorIs(t *testing.T) {
	err := error(&StatusError{Status: StatusGeneralError, TransactionID: 3})

	if !errors.Is(err, ErrStatus) {
		t.Error("StatusError should match ErrStatus")
	}
	if !errors.Is(err, &StatusError{Status: StatusGeneralError}) {
		t.Error("StatusError should match same status")
	}
	if errors.Is(err, &StatusError{Status: StatusInvalidKey}) {
		t.Error("StatusError should not match different status")
	}
	if got := err.Error(); got != "rmap reply status 0x01: General Error" {
		t.Errorf("Error() = %q", got)
	}
}
