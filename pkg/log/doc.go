// Package log provides structured protocol capture for RMAP links.
//
// This package defines the Logger interface and Event types for recording
// protocol events at the link layer (SSDTP frames), the RMAP layer (decoded
// commands and replies) and the engine layer (transaction lifecycle). It is
// separate from operational logging (slog): protocol capture provides a
// machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
//	// Development: protocol events on the console
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: binary capture file
//	fl, _ := log.NewFileLogger("/var/log/rmap/initiator.rlog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Link: raw frame bytes (FrameEvent), time codes and EEP (ControlEvent)
//   - RMAP: decoded packets (PacketEvent)
//   - Engine: transaction transitions (TransactionEvent), state changes
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .rlog extension.
// The rmap-log tool views, filters and exports them.
package log
