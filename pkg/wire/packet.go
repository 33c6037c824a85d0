package wire

// Protocol constants.
const (
	// ProtocolID is the SpaceWire protocol identifier assigned to RMAP.
	ProtocolID uint8 = 0x01

	// DefaultLogicalAddress is the default SpaceWire logical address.
	DefaultLogicalAddress uint8 = 0xFE

	// DefaultKey is the default destination key.
	DefaultKey uint8 = 0x20

	// MinLogicalAddress is the smallest logical address. Lower values are
	// path address bytes.
	MinLogicalAddress uint8 = 0x20

	// MaxReplyPathLength is the longest reply address the instruction can express.
	MaxReplyPathLength = 12

	// MaxTargetPathLength is the longest target path address Encode accepts.
	MaxTargetPathLength = 64

	// MaxDataLength is the largest value of the 24-bit data length field.
	MaxDataLength = 1<<24 - 1

	// MinPacketLength is the shortest RMAP packet after path bytes (a write reply).
	MinPacketLength = 8
)

// Header sizes excluding path and reply address bytes.
const (
	commandHeaderSize    = 16
	writeReplyHeaderSize = 8
	readReplyHeaderSize  = 12
)

// Packet is an RMAP command or reply. It is implemented by *Command and *Reply.
type Packet interface {
	// ID returns the transaction identifier.
	ID() uint16

	// Instr returns the instruction byte.
	Instr() Instruction

	isPacket()
}

// Command is an RMAP command packet sent from an initiator to a target.
type Command struct {
	// TargetPath is the SpaceWire path address prepended to the packet.
	TargetPath []byte

	TargetLogicalAddress uint8
	Instruction          Instruction
	Key                  uint8

	// ReplyPath is the reply address without padding. Encode sets the
	// instruction's reply address length bits from it.
	ReplyPath []byte

	InitiatorLogicalAddress uint8
	TransactionID           uint16
	ExtendedAddress         uint8
	Address                 uint32

	// DataLength is the 24-bit length field. For writes it must equal len(Data).
	DataLength uint32

	HeaderCRC uint8
	Data      []byte
	DataCRC   uint8
}

// ID returns the transaction identifier.
func (c *Command) ID() uint16 { return c.TransactionID }

// Instr returns the instruction byte.
func (c *Command) Instr() Instruction { return c.Instruction }

func (*Command) isPacket() {}

// Reply is an RMAP reply packet sent from a target to an initiator.
type Reply struct {
	// ReplyPath holds path address bytes still present in front of the reply.
	ReplyPath []byte

	InitiatorLogicalAddress uint8
	Instruction             Instruction
	Status                  Status
	TargetLogicalAddress    uint8
	TransactionID           uint16

	// DataLength is only carried by read and read-modify-write replies.
	DataLength uint32

	HeaderCRC uint8
	Data      []byte
	DataCRC   uint8
}

// ID returns the transaction identifier.
func (r *Reply) ID() uint16 { return r.TransactionID }

// Instr returns the instruction byte.
func (r *Reply) Instr() Instruction { return r.Instruction }

func (*Reply) isPacket() {}

// NewReadCommand returns a read command with reply and increment set.
func NewReadCommand(targetLA, initiatorLA, key uint8, ext uint8, addr uint32, length uint32) *Command {
	return &Command{
		TargetLogicalAddress:    targetLA,
		Instruction:             InstructionRead,
		Key:                     key,
		InitiatorLogicalAddress: initiatorLA,
		ExtendedAddress:         ext,
		Address:                 addr,
		DataLength:              length,
	}
}

// NewWriteCommand returns a verified, acknowledged, incrementing write command.
func NewWriteCommand(targetLA, initiatorLA, key uint8, ext uint8, addr uint32, data []byte) *Command {
	return &Command{
		TargetLogicalAddress:    targetLA,
		Instruction:             InstructionWriteVerifyReply,
		Key:                     key,
		InitiatorLogicalAddress: initiatorLA,
		ExtendedAddress:         ext,
		Address:                 addr,
		DataLength:              uint32(len(data)),
		Data:                    data,
	}
}

// ReplyFor builds the reply a target returns for cmd. The reply path is
// taken from the command's reply address. data is ignored for write replies.
func ReplyFor(cmd *Command, status Status, data []byte) *Reply {
	r := &Reply{
		ReplyPath:               cmd.ReplyPath,
		InitiatorLogicalAddress: cmd.InitiatorLogicalAddress,
		Instruction:             cmd.Instruction &^ InstructionCommand,
		Status:                  status,
		TargetLogicalAddress:    cmd.TargetLogicalAddress,
		TransactionID:           cmd.TransactionID,
	}
	if r.Instruction.HasData() {
		r.DataLength = uint32(len(data))
		if len(data) > 0 {
			r.Data = data
		}
	}
	return r
}
