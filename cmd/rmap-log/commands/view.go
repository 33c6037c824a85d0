// Package commands implements the rmap-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

func (f ViewFilter) matches(event log.Event) bool {
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	return true
}

// eventType returns a short label for the payload carried by the event.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Packet != nil:
		return event.Packet.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Control != nil:
		return event.Control.Type.String()
	case event.Transaction != nil:
		return "Transaction"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction.String(), layerStr, eventType(event))
	if event.TargetID != "" {
		fmt.Fprintf(w, "  Target: %s\n", event.TargetID)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Control != nil:
		if event.Control.TimeCode != nil {
			fmt.Fprintf(w, "  TimeCode: %d\n", *event.Control.TimeCode)
		}
	case event.Transaction != nil:
		formatTransactionDetails(w, event.Transaction)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes  Flag: 0x%02x\n", frame.Size, frame.Flag)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatPacketDetails(w io.Writer, p *log.PacketEvent) {
	ins := wire.Instruction(p.Instruction)
	fmt.Fprintf(w, "  TID: %d  %s  (%s)\n", p.TransactionID, ins.Operation(), ins.String())
	fmt.Fprintf(w, "  Initiator: 0x%02x  Target: 0x%02x\n", p.InitiatorLogicalAddress, p.TargetLogicalAddress)

	switch p.Type {
	case log.PacketTypeCommand:
		if p.Key != nil {
			fmt.Fprintf(w, "  Key: 0x%02x\n", *p.Key)
		}
		if p.Address != nil {
			var ext uint8
			if p.ExtendedAddress != nil {
				ext = *p.ExtendedAddress
			}
			fmt.Fprintf(w, "  Address: 0x%02x:%08x\n", ext, *p.Address)
		}
	case log.PacketTypeReply:
		if p.Status != nil {
			fmt.Fprintf(w, "  Status: %s (%d)\n", p.Status.String(), uint8(*p.Status))
		}
	}

	fmt.Fprintf(w, "  Length: %d\n", p.DataLength)
	if len(p.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(p.Data))
		if p.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatTransactionDetails(w io.Writer, tx *log.TransactionEvent) {
	fmt.Fprintf(w, "  TID: %d -> %s\n", tx.TransactionID, tx.State)
	if tx.Latency != nil {
		fmt.Fprintf(w, "  Latency: %s\n", formatDuration(*tx.Latency))
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "link":
		return log.LayerLink, nil
	case "rmap":
		return log.LayerRMAP, nil
	case "engine":
		return log.LayerEngine, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be link, rmap, or engine)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "packet":
		return log.CategoryPacket, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	case "transaction":
		return log.CategoryTransaction, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be packet, control, state, error, or transaction)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if filter.matches(event) {
			formatEvent(output, event)
		}
	}
}
