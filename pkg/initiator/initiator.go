package initiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/connection"
	"github.com/rmap-protocol/rmap-go/pkg/engine"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// Submitter sends commands and tracks their transactions.
// *engine.Engine implements it.
type Submitter interface {
	Submit(cmd *wire.Command, timeout time.Duration) (*engine.Transaction, error)
}

var _ Submitter = (*engine.Engine)(nil)

// DefaultRetryBackoff spaces retries after timeouts.
var DefaultRetryBackoff = connection.BackoffConfig{
	Initial:    50 * time.Millisecond,
	Max:        time.Second,
	Multiplier: 2,
	Jitter:     0.1,
}

// Config configures an Initiator.
type Config struct {
	// Registry resolves target and memory names. Required.
	Registry *registry.Registry

	// Engine carries the transactions. Required.
	Engine Submitter

	// LogicalAddress of the initiator (default 0xFE). Target nodes may
	// override it.
	LogicalAddress uint8

	// DefaultTimeout applies to calls with a zero timeout (default 1s).
	DefaultTimeout time.Duration

	// Retries is the number of extra attempts after a timeout. Other
	// failures are never retried.
	Retries int

	// RetryBackoff spaces the retries (default DefaultRetryBackoff).
	RetryBackoff *connection.BackoffConfig

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Initiator reads and writes target memory by name.
type Initiator struct {
	config Config
}

// New validates the configuration and returns an Initiator.
func New(config Config) (*Initiator, error) {
	if config.Registry == nil {
		return nil, errors.New("initiator: registry is required")
	}
	if config.Engine == nil {
		return nil, errors.New("initiator: engine is required")
	}
	if config.LogicalAddress == 0 {
		config.LogicalAddress = wire.DefaultLogicalAddress
	}
	if config.LogicalAddress < wire.MinLogicalAddress {
		return nil, fmt.Errorf("initiator: logical address 0x%02x below 0x%02x", config.LogicalAddress, wire.MinLogicalAddress)
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = engine.DefaultTimeout
	}
	if config.Retries < 0 {
		config.Retries = 0
	}
	if config.RetryBackoff == nil {
		b := DefaultRetryBackoff
		config.RetryBackoff = &b
	}
	return &Initiator{config: config}, nil
}

// Registry returns the registry used for name resolution.
func (i *Initiator) Registry() *registry.Registry {
	return i.config.Registry
}

// Read returns the full content of a memory object.
func (i *Initiator) Read(ctx context.Context, targetID, memoryID string, timeout time.Duration, opts ...Option) ([]byte, error) {
	node, mem, err := i.resolve(targetID, memoryID)
	if err != nil {
		return nil, err
	}
	if !mem.Access.CanRead() {
		return nil, &AccessError{Target: targetID, Memory: memoryID, Operation: "read", Reason: "memory object is " + mem.Access.String()}
	}
	o := applyOptions(opts)
	key := mem.KeyOr(node.DefaultKey)
	return i.read(ctx, node, key, mem.ExtendedAddress, mem.Address, mem.Size, timeout, o)
}

// Write stores data at the base address of a memory object. data may be
// shorter than the object but not longer.
func (i *Initiator) Write(ctx context.Context, targetID, memoryID string, data []byte, timeout time.Duration, opts ...Option) error {
	node, mem, err := i.resolve(targetID, memoryID)
	if err != nil {
		return err
	}
	switch {
	case !mem.Access.CanWrite():
		return &AccessError{Target: targetID, Memory: memoryID, Operation: "write", Reason: "memory object is " + mem.Access.String()}
	case len(data) == 0:
		return &AccessError{Target: targetID, Memory: memoryID, Operation: "write", Reason: "no data"}
	case uint64(len(data)) > uint64(mem.Size):
		return &AccessError{Target: targetID, Memory: memoryID, Operation: "write",
			Reason: fmt.Sprintf("%d bytes exceed object size %d", len(data), mem.Size)}
	}
	o := applyOptions(opts)
	key := mem.KeyOr(node.DefaultKey)
	return i.write(ctx, node, key, mem.ExtendedAddress, mem.Address, data, timeout, o)
}

// ReadAt reads length bytes at a raw address of a target node. A range
// inside a configured memory object obeys its access mode.
func (i *Initiator) ReadAt(ctx context.Context, targetID string, address, length uint32, timeout time.Duration, opts ...Option) ([]byte, error) {
	node, err := i.config.Registry.Target(targetID)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	ext := optionalByte(o.ext, 0)
	key := node.DefaultKey
	if mem, ok := containing(node, ext, address, length); ok {
		if !mem.Access.CanRead() {
			return nil, &AccessError{Target: targetID, Memory: mem.ID, Operation: "read", Reason: "memory object is " + mem.Access.String()}
		}
		key = mem.KeyOr(key)
	}
	return i.read(ctx, node, key, ext, address, length, timeout, o)
}

// WriteAt writes data at a raw address of a target node. A range inside a
// configured memory object obeys its access mode.
func (i *Initiator) WriteAt(ctx context.Context, targetID string, address uint32, data []byte, timeout time.Duration, opts ...Option) error {
	node, err := i.config.Registry.Target(targetID)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return &AccessError{Target: targetID, Operation: "write", Reason: "no data"}
	}
	o := applyOptions(opts)
	ext := optionalByte(o.ext, 0)
	key := node.DefaultKey
	if mem, ok := containing(node, ext, address, uint32(len(data))); ok {
		if !mem.Access.CanWrite() {
			return &AccessError{Target: targetID, Memory: mem.ID, Operation: "write", Reason: "memory object is " + mem.Access.String()}
		}
		key = mem.KeyOr(key)
	}
	return i.write(ctx, node, key, ext, address, data, timeout, o)
}

func (i *Initiator) resolve(targetID, memoryID string) (registry.TargetNode, registry.MemoryObject, error) {
	node, err := i.config.Registry.Target(targetID)
	if err != nil {
		return registry.TargetNode{}, registry.MemoryObject{}, err
	}
	mem, err := i.config.Registry.MemoryObject(targetID, memoryID)
	if err != nil {
		return registry.TargetNode{}, registry.MemoryObject{}, err
	}
	return node, mem, nil
}

func containing(node registry.TargetNode, ext uint8, address, length uint32) (registry.MemoryObject, bool) {
	for _, m := range node.MemoryObjects {
		if m.ExtendedAddress == ext && m.Contains(address, length) {
			return m, true
		}
	}
	return registry.MemoryObject{}, false
}

func optionalByte(p *uint8, def uint8) uint8 {
	if p != nil {
		return *p
	}
	return def
}

func (i *Initiator) command(node registry.TargetNode, key uint8, o callOptions) *wire.Command {
	return &wire.Command{
		TargetPath:              node.TargetPath,
		TargetLogicalAddress:    node.LogicalAddress,
		Key:                     optionalByte(o.key, key),
		ReplyPath:               node.ReplyPath,
		InitiatorLogicalAddress: node.InitiatorAddress(i.config.LogicalAddress),
	}
}

func (i *Initiator) read(ctx context.Context, node registry.TargetNode, key, ext uint8, address, length uint32, timeout time.Duration, o callOptions) ([]byte, error) {
	cmd := i.command(node, key, o)
	cmd.Instruction = wire.InstructionCommand | wire.InstructionReply
	if o.increment {
		cmd.Instruction |= wire.InstructionIncrement
	}
	cmd.ExtendedAddress = ext
	cmd.Address = address
	cmd.DataLength = length

	reply, err := i.transact(ctx, cmd, timeout)
	if err != nil {
		return nil, err
	}
	if uint32(len(reply.Data)) != length {
		return nil, fmt.Errorf("%w: got %d bytes, requested %d", ErrReplyLength, len(reply.Data), length)
	}
	return reply.Data, nil
}

func (i *Initiator) write(ctx context.Context, node registry.TargetNode, key, ext uint8, address uint32, data []byte, timeout time.Duration, o callOptions) error {
	cmd := i.command(node, key, o)
	cmd.Instruction = wire.InstructionCommand | wire.InstructionWrite
	if o.verify {
		cmd.Instruction |= wire.InstructionVerify
	}
	if o.reply {
		cmd.Instruction |= wire.InstructionReply
	}
	if o.increment {
		cmd.Instruction |= wire.InstructionIncrement
	}
	cmd.ExtendedAddress = ext
	cmd.Address = address
	cmd.DataLength = uint32(len(data))
	cmd.Data = data

	_, err := i.transact(ctx, cmd, timeout)
	return err
}

// transact submits cmd and waits for it, retrying after timeouts. A reply
// with a non-zero status is returned as *wire.StatusError.
func (i *Initiator) transact(ctx context.Context, cmd *wire.Command, timeout time.Duration) (*wire.Reply, error) {
	if timeout <= 0 {
		timeout = i.config.DefaultTimeout
	}
	backoff := connection.NewBackoffWithConfig(*i.config.RetryBackoff)

	for attempt := 0; ; attempt++ {
		tx, err := i.config.Engine.Submit(cmd, timeout)
		if err != nil {
			return nil, err
		}
		reply, err := tx.Wait(ctx)
		if err == nil {
			if reply != nil && reply.Status.IsError() {
				return nil, &wire.StatusError{Status: reply.Status, TransactionID: reply.TransactionID}
			}
			return reply, nil
		}
		if !errors.Is(err, engine.ErrTimeout) || attempt >= i.config.Retries {
			return nil, err
		}

		delay := backoff.Next()
		i.debugLog("retrying after timeout",
			"target", cmd.TargetLogicalAddress,
			"address", fmt.Sprintf("0x%08x", cmd.Address),
			"attempt", attempt+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (i *Initiator) debugLog(msg string, args ...any) {
	if i.config.Logger != nil {
		i.config.Logger.Debug(msg, args...)
	}
}
