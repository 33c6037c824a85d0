package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func logJSON(t *testing.T, level slog.Level, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	NewSlogAdapter(slogger).WithLevel(level).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logJSON(t, slog.LevelDebug, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerLink,
		Category:     CategoryPacket,
		Frame:        &FrameEvent{Size: 256, Data: []byte{0x01, 0x02}},
	})

	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["layer"] != "LINK" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v", entry["level"])
	}
}

func TestSlogAdapterLogsPacketEvent(t *testing.T) {
	status := wire.StatusGeneralError
	entry := logJSON(t, slog.LevelInfo, Event{
		Direction: DirectionIn,
		Layer:     LayerRMAP,
		Category:  CategoryPacket,
		TargetID:  "SampleRMAPTargetNode",
		Packet:    &PacketEvent{Type: PacketTypeReply, TransactionID: 3, Status: &status},
	})

	if entry["tid"] != float64(3) {
		t.Errorf("tid: got %v", entry["tid"])
	}
	if entry["status"] != "GENERAL_ERROR" {
		t.Errorf("status: got %v", entry["status"])
	}
	if entry["target"] != "SampleRMAPTargetNode" {
		t.Errorf("target: got %v", entry["target"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level: got %v", entry["level"])
	}
}

func TestSlogAdapterLogsTransactionEvent(t *testing.T) {
	latency := 2 * time.Millisecond
	entry := logJSON(t, slog.LevelDebug, Event{
		Layer:       LayerEngine,
		Category:    CategoryTransaction,
		Transaction: &TransactionEvent{TransactionID: 11, State: "TIMED_OUT", Latency: &latency},
	})
	if entry["state"] != "TIMED_OUT" {
		t.Errorf("state: got %v", entry["state"])
	}
	if _, ok := entry["latency"]; !ok {
		t.Error("latency missing")
	}
}

func TestSlogAdapterLogsErrorEvent(t *testing.T) {
	code := 4
	entry := logJSON(t, slog.LevelDebug, Event{
		Layer:    LayerRMAP,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerRMAP, Message: "data CRC mismatch", Code: &code},
	})
	if entry["error_msg"] != "data CRC mismatch" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
	if entry["error_code"] != float64(4) {
		t.Errorf("error_code: got %v", entry["error_code"])
	}
}
