package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerLink.String(), "LINK"},
		{LayerRMAP.String(), "RMAP"},
		{LayerEngine.String(), "ENGINE"},
		{CategoryPacket.String(), "PACKET"},
		{CategoryTransaction.String(), "TRANSACTION"},
		{RoleInitiator.String(), "INITIATOR"},
		{RoleTarget.String(), "TARGET"},
		{PacketTypeReply.String(), "REPLY"},
		{StateEntityEngine.String(), "ENGINE"},
		{ControlTimeCode.String(), "TIME_CODE"},
		{ControlEEP.String(), "EEP"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewPacketEventCommand(t *testing.T) {
	cmd := wire.NewWriteCommand(0xFE, 0x40, 0x20, 0x01, 0x20000000, []byte{1, 2, 3})
	cmd.TransactionID = 42

	ev := NewPacketEvent(cmd)
	if ev == nil {
		t.Fatal("NewPacketEvent returned nil")
	}
	if ev.Type != PacketTypeCommand || ev.TransactionID != 42 {
		t.Errorf("unexpected header: %+v", ev)
	}
	if ev.Address == nil || *ev.Address != 0x20000000 {
		t.Errorf("Address = %v", ev.Address)
	}
	if ev.Key == nil || *ev.Key != 0x20 {
		t.Errorf("Key = %v", ev.Key)
	}
	if ev.Status != nil {
		t.Error("command event should not carry a status")
	}
	if !bytes.Equal(ev.Data, []byte{1, 2, 3}) {
		t.Errorf("Data = % x", ev.Data)
	}
}

func TestNewPacketEventReplyTruncates(t *testing.T) {
	data := make([]byte, MaxLogDataSize+10)
	reply := &wire.Reply{
		InitiatorLogicalAddress: 0xFE,
		Instruction:             wire.InstructionRead &^ wire.InstructionCommand,
		Status:                  wire.StatusSuccess,
		TransactionID:           7,
		DataLength:              uint32(len(data)),
		Data:                    data,
	}

	ev := NewPacketEvent(reply)
	if ev.Type != PacketTypeReply {
		t.Errorf("Type = %v", ev.Type)
	}
	if ev.Status == nil || *ev.Status != wire.StatusSuccess {
		t.Errorf("Status = %v", ev.Status)
	}
	if !ev.Truncated || len(ev.Data) != MaxLogDataSize {
		t.Errorf("Truncated = %v, len = %d", ev.Truncated, len(ev.Data))
	}
	if ev.DataLength != uint32(MaxLogDataSize+10) {
		t.Errorf("DataLength = %d", ev.DataLength)
	}
}

func TestNewPacketEventNil(t *testing.T) {
	if ev := NewPacketEvent(nil); ev != nil {
		t.Errorf("NewPacketEvent(nil) = %+v", ev)
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	status := wire.StatusInvalidKey
	latency := 1500 * time.Microsecond
	tc := uint8(17)

	events := []Event{
		{
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC), ConnectionID: "c1",
			Direction: DirectionOut, Layer: LayerLink, Category: CategoryPacket,
			Frame: &FrameEvent{Size: 20, Data: []byte{0xfe, 0x01}, Flag: 0x00},
		},
		{
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 7, time.UTC), ConnectionID: "c1",
			Direction: DirectionIn, Layer: LayerRMAP, Category: CategoryPacket, TargetID: "node",
			Packet: &PacketEvent{Type: PacketTypeReply, TransactionID: 5, Status: &status},
		},
		{
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 8, time.UTC), Layer: LayerEngine,
			Category: CategoryTransaction, LocalRole: RoleTarget,
			Transaction: &TransactionEvent{TransactionID: 5, State: "FULFILLED", Latency: &latency},
		},
		{
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 9, time.UTC), Layer: LayerLink,
			Category: CategoryControl, Control: &ControlEvent{Type: ControlTimeCode, TimeCode: &tc},
		},
	}

	for i, ev := range events {
		data, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("event %d: EncodeEvent failed: %v", i, err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("event %d: DecodeEvent failed: %v", i, err)
		}
		if !got.Timestamp.Equal(ev.Timestamp) {
			t.Errorf("event %d: Timestamp = %v, want %v", i, got.Timestamp, ev.Timestamp)
		}
		if got.Category != ev.Category || got.Layer != ev.Layer || got.TargetID != ev.TargetID {
			t.Errorf("event %d: header mismatch: %+v", i, got)
		}
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent accepted invalid CBOR")
	}
}
