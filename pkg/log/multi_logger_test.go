package log

import (
	"testing"
	"time"
)

// mockLogger records events for testing
type mockLogger struct {
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.events = append(m.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	mock1 := &mockLogger{}
	mock2 := &mockLogger{}

	multi := NewMultiLogger(mock1, nil, mock2)
	if multi.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", multi.Len())
	}

	multi.Log(Event{Timestamp: time.Now(), ConnectionID: "conn-1", Layer: LayerRMAP})

	for i, mock := range []*mockLogger{mock1, mock2} {
		if len(mock.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(mock.events))
			continue
		}
		if mock.events[0].ConnectionID != "conn-1" {
			t.Errorf("logger %d: ConnectionID = %q", i, mock.events[0].ConnectionID)
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	multi := NewMultiLogger()
	multi.Log(Event{ConnectionID: "conn-1"})
}
