package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger
// at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at the given level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.TargetID != "" {
		attrs = append(attrs, slog.String("target", event.TargetID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Packet != nil:
		p := event.Packet
		attrs = append(attrs,
			slog.Uint64("tid", uint64(p.TransactionID)),
			slog.String("packet_type", p.Type.String()),
			slog.Uint64("instruction", uint64(p.Instruction)),
			slog.Uint64("data_length", uint64(p.DataLength)),
		)
		if p.Address != nil {
			attrs = append(attrs, slog.Uint64("address", uint64(*p.Address)))
		}
		if p.Status != nil {
			attrs = append(attrs, slog.String("status", p.Status.String()))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Control != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.Control.Type.String()))
		if event.Control.TimeCode != nil {
			attrs = append(attrs, slog.Uint64("time_code", uint64(*event.Control.TimeCode)))
		}
	case event.Transaction != nil:
		attrs = append(attrs,
			slog.Uint64("tid", uint64(event.Transaction.TransactionID)),
			slog.String("state", event.Transaction.State),
		)
		if event.Transaction.Latency != nil {
			attrs = append(attrs, slog.Duration("latency", *event.Transaction.Latency))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), a.level, "rmap", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
