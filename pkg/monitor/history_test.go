package monitor

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func TestHistoryCorrelatesEvents(t *testing.T) {
	h, err := NewHistory(":memory:")
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	defer h.Close()

	cmd := wire.NewReadCommand(0x30, 0xFE, 0x20, 1, 0x100, 8)
	cmd.TransactionID = 42
	h.Log(log.Event{Direction: log.DirectionOut, Packet: log.NewPacketEvent(cmd)})
	h.Log(log.Event{Direction: log.DirectionIn, Packet: log.NewPacketEvent(wire.ReplyFor(cmd, wire.StatusInvalidKey, nil))})

	latency := 3 * time.Millisecond
	h.Log(log.Event{Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 42, State: "PENDING"}})
	h.Log(log.Event{Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 42, State: "FULFILLED", Latency: &latency}})

	// A timeout without a captured command still produces a row.
	h.Log(log.Event{Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 7, State: "TIMED_OUT"}})

	records, err := h.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	timedOut, read := records[0], records[1]
	if timedOut.TransactionID != 7 || timedOut.State != "TIMED_OUT" || timedOut.Status != nil {
		t.Errorf("timed out record = %+v", timedOut)
	}
	if read.TransactionID != 42 || read.Operation != "READ" || read.ExtendedAddress != 1 || read.Address != 0x100 || read.Length != 8 {
		t.Errorf("read record = %+v", read)
	}
	if read.Status == nil || *read.Status != wire.StatusInvalidKey {
		t.Errorf("status = %v, want invalid key", read.Status)
	}
	if read.Latency != latency {
		t.Errorf("latency = %v, want %v", read.Latency, latency)
	}

	counts, err := h.CountByState()
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts["FULFILLED"] != 1 || counts["TIMED_OUT"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if len(h.inflight) != 0 {
		t.Errorf("inflight not drained: %v", h.inflight)
	}
}

func TestHistoryRecentLimit(t *testing.T) {
	h, err := NewHistory(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	for i := range 5 {
		h.Log(log.Event{Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: uint16(i), State: "ABORTED"}})
	}
	records, err := h.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].TransactionID != 4 {
		t.Errorf("records = %+v", records)
	}
}

func TestHistoryKeepsConnectionsApart(t *testing.T) {
	h, err := NewHistory(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	read := wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x100, 4)
	read.TransactionID = 3
	write := wire.NewWriteCommand(0x31, 0xFE, 0x20, 0, 0x200, []byte{1, 2})
	write.TransactionID = 3

	h.Log(log.Event{ConnectionID: "a", Direction: log.DirectionOut, Packet: log.NewPacketEvent(read)})
	h.Log(log.Event{ConnectionID: "b", Direction: log.DirectionOut, Packet: log.NewPacketEvent(write)})
	h.Log(log.Event{ConnectionID: "a", Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 3, State: "FULFILLED"}})
	h.Log(log.Event{ConnectionID: "b", Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 3, State: "TIMED_OUT"}})

	records, err := h.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	byConn := map[string]Record{}
	for _, r := range records {
		byConn[r.ConnectionID] = r
	}
	if r := byConn["a"]; r.Operation != "READ" || r.State != "FULFILLED" || r.TargetLogicalAddress != 0x30 {
		t.Errorf("connection a record = %+v", r)
	}
	if r := byConn["b"]; r.Operation != "WRITE" || r.State != "TIMED_OUT" || r.TargetLogicalAddress != 0x31 {
		t.Errorf("connection b record = %+v", r)
	}
}

func TestHistoryLogsInsertFailure(t *testing.T) {
	h, err := NewHistory(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	h.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	h.Close()

	h.Log(log.Event{Timestamp: time.Now(), Transaction: &log.TransactionEvent{TransactionID: 9, State: "ABORTED"}})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "history insert failed") || !strings.Contains(out, "tid=9") {
		t.Errorf("log output = %q", out)
	}
}
