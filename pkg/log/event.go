package log

import (
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// MaxLogDataSize is the maximum number of payload bytes kept in a log event.
const MaxLogDataSize = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the link connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates packet flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side is an initiator or a target.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// TargetID is the registry name of the target node, when known.
	TargetID string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Link layer
	Packet      *PacketEvent      `cbor:"11,keyasint,omitempty"` // RMAP layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Link/engine state
	Control     *ControlEvent     `cbor:"13,keyasint,omitempty"` // Time codes, EEP
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
	Transaction *TransactionEvent `cbor:"15,keyasint,omitempty"` // Transaction lifecycle
}

// Direction indicates the direction of packet flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming packet.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing packet.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLink is the SpaceWire link framing layer (raw bytes).
	LayerLink Layer = 0
	// LayerRMAP is the RMAP packet layer (decoded packets).
	LayerRMAP Layer = 1
	// LayerEngine is the transaction engine.
	LayerEngine Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerRMAP:
		return "RMAP"
	case LayerEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryPacket indicates a frame or RMAP packet.
	CategoryPacket Category = 0
	// CategoryControl indicates a link control event (time code, EEP).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryTransaction indicates a transaction lifecycle event.
	CategoryTransaction Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryPacket:
		return "PACKET"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryTransaction:
		return "TRANSACTION"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is an initiator or a target.
type Role uint8

const (
	// RoleInitiator indicates this side sends commands.
	RoleInitiator Role = 0
	// RoleTarget indicates this side executes commands.
	RoleTarget Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "INITIATOR"
	case RoleTarget:
		return "TARGET"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the link layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including the frame header).
	Size int `cbor:"1,keyasint"`

	// Data is the raw packet bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Flag is the SSDTP frame flag.
	Flag uint8 `cbor:"4,keyasint,omitempty"`
}

// PacketType distinguishes RMAP commands from replies.
type PacketType uint8

const (
	// PacketTypeCommand indicates a command packet.
	PacketTypeCommand PacketType = 0
	// PacketTypeReply indicates a reply packet.
	PacketTypeReply PacketType = 1
)

// String returns the packet type name.
func (p PacketType) String() string {
	switch p {
	case PacketTypeCommand:
		return "COMMAND"
	case PacketTypeReply:
		return "REPLY"
	default:
		return "UNKNOWN"
	}
}

// PacketEvent captures a decoded RMAP packet.
type PacketEvent struct {
	Type          PacketType `cbor:"1,keyasint"`
	TransactionID uint16     `cbor:"2,keyasint"`
	Instruction   uint8      `cbor:"3,keyasint"`

	InitiatorLogicalAddress uint8 `cbor:"4,keyasint"`
	TargetLogicalAddress    uint8 `cbor:"5,keyasint"`

	// Commands only.
	Key             *uint8  `cbor:"6,keyasint,omitempty"`
	ExtendedAddress *uint8  `cbor:"7,keyasint,omitempty"`
	Address         *uint32 `cbor:"8,keyasint,omitempty"`

	// Replies only.
	Status *wire.Status `cbor:"9,keyasint,omitempty"`

	DataLength uint32 `cbor:"10,keyasint"`
	Data       []byte `cbor:"11,keyasint,omitempty"`
	Truncated  bool   `cbor:"12,keyasint,omitempty"`
}

// NewPacketEvent builds a PacketEvent from a decoded packet.
func NewPacketEvent(p wire.Packet) *PacketEvent {
	var ev *PacketEvent
	var data []byte
	switch v := p.(type) {
	case *wire.Command:
		key, ext, addr := v.Key, v.ExtendedAddress, v.Address
		ev = &PacketEvent{
			Type:                    PacketTypeCommand,
			TransactionID:           v.TransactionID,
			Instruction:             uint8(v.Instruction),
			InitiatorLogicalAddress: v.InitiatorLogicalAddress,
			TargetLogicalAddress:    v.TargetLogicalAddress,
			Key:                     &key,
			ExtendedAddress:         &ext,
			Address:                 &addr,
			DataLength:              v.DataLength,
		}
		data = v.Data
	case *wire.Reply:
		status := v.Status
		ev = &PacketEvent{
			Type:                    PacketTypeReply,
			TransactionID:           v.TransactionID,
			Instruction:             uint8(v.Instruction),
			InitiatorLogicalAddress: v.InitiatorLogicalAddress,
			TargetLogicalAddress:    v.TargetLogicalAddress,
			Status:                  &status,
			DataLength:              v.DataLength,
		}
		data = v.Data
	default:
		return nil
	}
	if len(data) > MaxLogDataSize {
		data = data[:MaxLogDataSize]
		ev.Truncated = true
	}
	ev.Data = data
	return ev
}

// StateChangeEvent captures link and engine lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityLink indicates a link connection state change.
	StateEntityLink StateEntity = 0
	// StateEntityEngine indicates a transaction engine state change.
	StateEntityEngine StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityEngine:
		return "ENGINE"
	default:
		return "UNKNOWN"
	}
}

// ControlEvent captures link-level control traffic.
type ControlEvent struct {
	// Type of control event.
	Type ControlType `cbor:"1,keyasint"`

	// TimeCode is the time code value for time code events.
	TimeCode *uint8 `cbor:"2,keyasint,omitempty"`
}

// ControlType indicates the type of control event.
type ControlType uint8

const (
	// ControlTimeCode indicates a SpaceWire time code.
	ControlTimeCode ControlType = 0
	// ControlEEP indicates a packet terminated by an error end of packet.
	ControlEEP ControlType = 1
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlTimeCode:
		return "TIME_CODE"
	case ControlEEP:
		return "EEP"
	default:
		return "UNKNOWN"
	}
}

// TransactionEvent captures a transaction state transition.
type TransactionEvent struct {
	TransactionID uint16 `cbor:"1,keyasint"`

	// State is the state entered (PENDING, FULFILLED, TIMED_OUT, ABORTED).
	State string `cbor:"2,keyasint"`

	// Latency from submission to the terminal state. Stored as nanoseconds.
	Latency *time.Duration `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
