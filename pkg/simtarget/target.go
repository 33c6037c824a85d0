package simtarget

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/persistence"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/transport"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// wordSize is the width of a non-incrementing access.
const wordSize = 4

// Config configures a simulated target.
type Config struct {
	// Node describes the logical address, key and memory of the target.
	Node registry.TargetNode

	// VerifyBufferSize limits verified writes. Zero means unlimited.
	VerifyBufferSize int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures decoded commands and replies (optional).
	ProtocolLogger log.Logger
}

// Stats counts the traffic a target handled.
type Stats struct {
	Commands  uint64 `json:"commands"`
	Reads     uint64 `json:"reads"`
	Writes    uint64 `json:"writes"`
	Errors    uint64 `json:"errors"`
	Discarded uint64 `json:"discarded"`
}

// Target is a simulated RMAP target node. It is safe for concurrent use.
type Target struct {
	config Config

	mu  sync.Mutex
	mem *memoryMap

	commands  atomic.Uint64
	reads     atomic.Uint64
	writes    atomic.Uint64
	errors    atomic.Uint64
	discarded atomic.Uint64
}

// New creates a target with zero-filled memory for every memory object of
// the node.
func New(config Config) (*Target, error) {
	mem, err := newMemoryMap(config.Node)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", config.Node.ID, err)
	}
	return &Target{config: config, mem: mem}, nil
}

// ID returns the node ID.
func (t *Target) ID() string {
	return t.config.Node.ID
}

// LogicalAddress returns the target logical address.
func (t *Target) LogicalAddress() uint8 {
	return t.config.Node.LogicalAddress
}

// Stats returns a snapshot of the traffic counters.
func (t *Target) Stats() Stats {
	return Stats{
		Commands:  t.commands.Load(),
		Reads:     t.reads.Load(),
		Writes:    t.writes.Load(),
		Errors:    t.errors.Load(),
		Discarded: t.discarded.Load(),
	}
}

// Handle executes cmd and returns the reply. It returns nil when the
// command does not request a reply.
func (t *Target) Handle(cmd *wire.Command) *wire.Reply {
	t.commands.Add(1)
	status, data := t.execute(cmd)
	if status != wire.StatusSuccess {
		t.errors.Add(1)
		t.debugLog("command failed", "tid", cmd.TransactionID, "instruction", cmd.Instruction, "status", status)
	}
	if !cmd.Instruction.HasReply() {
		return nil
	}
	return wire.ReplyFor(cmd, status, data)
}

func (t *Target) execute(cmd *wire.Command) (wire.Status, []byte) {
	if cmd.TargetLogicalAddress != t.config.Node.LogicalAddress {
		return wire.StatusInvalidLogicalAddress, nil
	}
	if cmd.Instruction.IsReadModifyWrite() {
		return wire.StatusUnusedPacketType, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.mem.find(cmd.ExtendedAddress, cmd.Address)
	if r == nil {
		if cmd.Key != t.config.Node.DefaultKey {
			return wire.StatusInvalidKey, nil
		}
		return wire.StatusNotImplemented, nil
	}
	if cmd.Key != r.key {
		return wire.StatusInvalidKey, nil
	}

	span := cmd.DataLength
	if !cmd.Instruction.IsIncrement() {
		span = min(span, wordSize)
	}
	if uint64(cmd.Address)+uint64(span) > r.end() {
		return wire.StatusTooMuchData, nil
	}

	off := r.offset(cmd.Address)
	if cmd.Instruction.IsWrite() {
		if !r.object.Access.CanWrite() {
			return wire.StatusNotImplemented, nil
		}
		if cmd.Instruction.IsVerify() && t.config.VerifyBufferSize > 0 && len(cmd.Data) > t.config.VerifyBufferSize {
			return wire.StatusVerifyBufferOverrun, nil
		}
		t.writes.Add(1)
		if span == 0 {
			return wire.StatusSuccess, nil
		}
		for i := 0; i < len(cmd.Data); i += int(span) {
			copy(r.data[off:off+int(span)], cmd.Data[i:])
		}
		return wire.StatusSuccess, nil
	}

	if !r.object.Access.CanRead() {
		return wire.StatusNotImplemented, nil
	}
	t.reads.Add(1)
	out := make([]byte, cmd.DataLength)
	if span > 0 {
		for i := 0; i < len(out); i += int(span) {
			copy(out[i:], r.data[off:off+int(span)])
		}
	}
	return wire.StatusSuccess, out
}

// HandlePacket decodes a command packet, executes it and returns the
// encoded reply. It returns nil, nil for packets that need no reply,
// including replies sent to this node by mistake.
func (t *Target) HandlePacket(data []byte) ([]byte, error) {
	p, err := wire.Decode(data)
	if err != nil {
		t.discarded.Add(1)
		t.logError(err)
		return nil, err
	}
	cmd, ok := p.(*wire.Command)
	if !ok {
		t.discarded.Add(1)
		t.debugLog("discarding reply packet", "tid", p.ID())
		return nil, nil
	}
	t.logPacket(log.DirectionIn, cmd)

	reply := t.Handle(cmd)
	if reply == nil {
		return nil, nil
	}
	out, err := wire.Encode(reply)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	t.logPacket(log.DirectionOut, reply)
	return out, nil
}

// ServeLink answers commands received on link until ctx is done or the
// link fails. The link must be open. It returns nil when ctx ends.
func (t *Target) ServeLink(ctx context.Context, link transport.PacketLink) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			link.Close()
		case <-done:
		}
	}()

	for {
		data, err := link.Receive()
		if err != nil {
			if data != nil {
				t.discarded.Add(1)
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		reply, err := t.HandlePacket(data)
		if err != nil || reply == nil {
			continue
		}
		if err := link.Send(reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send reply: %w", err)
		}
	}
}

// Serve starts an SSDTP server whose connections are answered by the
// target. Packets terminated by EEP are discarded.
func (t *Target) Serve(ctx context.Context, config transport.ServerConfig) (*transport.Server, error) {
	config.OnPacket = func(conn *transport.ServerConn, data []byte, eop transport.EOPType) {
		if eop == transport.EEP {
			t.discarded.Add(1)
			return
		}
		reply, err := t.HandlePacket(data)
		if err != nil || reply == nil {
			return
		}
		if err := conn.Send(reply); err != nil {
			t.debugLog("send reply failed", "conn", conn.ConnID(), "error", err)
		}
	}
	srv := transport.NewServer(config)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

// Peek returns a copy of the content of a memory object.
func (t *Target) Peek(memoryID string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.mem.byID(memoryID)
	if r == nil {
		return nil, &registry.NotFoundError{Target: t.ID(), Memory: memoryID}
	}
	return bytes.Clone(r.data), nil
}

// Poke stores data at the start of a memory object, bypassing access
// checks.
func (t *Target) Poke(memoryID string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.mem.byID(memoryID)
	if r == nil {
		return &registry.NotFoundError{Target: t.ID(), Memory: memoryID}
	}
	if len(data) > len(r.data) {
		return fmt.Errorf("%w: %d bytes into %q of %d", ErrUnmapped, len(data), memoryID, len(r.data))
	}
	copy(r.data, data)
	return nil
}

// Image returns a snapshot of the target's memory.
func (t *Target) Image() *persistence.MemoryImage {
	t.mu.Lock()
	defer t.mu.Unlock()

	img := &persistence.MemoryImage{Target: t.ID(), SavedAt: time.Now()}
	for _, r := range t.mem.regions {
		img.Regions = append(img.Regions, persistence.RegionImage{
			ExtendedAddress: r.object.ExtendedAddress,
			Address:         r.object.Address,
			Data:            bytes.Clone(r.data),
		})
	}
	return img
}

// Restore loads memory content from img. Every region of the image must
// match a memory object of the same size.
func (t *Target) Restore(img *persistence.MemoryImage) error {
	if img.Target != t.ID() {
		return fmt.Errorf("%w: image of %q", ErrImageMismatch, img.Target)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ri := range img.Regions {
		r := t.mem.find(ri.ExtendedAddress, ri.Address)
		if r == nil || r.object.Address != ri.Address || len(r.data) != len(ri.Data) {
			return fmt.Errorf("%w: region 0x%02x:%08x", ErrImageMismatch, ri.ExtendedAddress, ri.Address)
		}
	}
	for _, ri := range img.Regions {
		copy(t.mem.find(ri.ExtendedAddress, ri.Address).data, ri.Data)
	}
	return nil
}

func (t *Target) debugLog(msg string, args ...any) {
	if t.config.Logger != nil {
		t.config.Logger.Debug(msg, args...)
	}
}

func (t *Target) logPacket(direction log.Direction, p wire.Packet) {
	if t.config.ProtocolLogger == nil {
		return
	}
	t.config.ProtocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: direction,
		Layer:     log.LayerRMAP,
		Category:  log.CategoryPacket,
		LocalRole: log.RoleTarget,
		TargetID:  t.ID(),
		Packet:    log.NewPacketEvent(p),
	})
}

func (t *Target) logError(err error) {
	t.debugLog("discarding packet", "error", err)
	if t.config.ProtocolLogger == nil {
		return
	}
	t.config.ProtocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerRMAP,
		Category:  log.CategoryError,
		LocalRole: log.RoleTarget,
		TargetID:  t.ID(),
		Error:     &log.ErrorEventData{Layer: log.LayerRMAP, Message: err.Error()},
	})
}
