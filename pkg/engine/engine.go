package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// Engine defaults.
const (
	// DefaultTimeout applies when Submit is called with a zero timeout.
	DefaultTimeout = time.Second

	// DefaultSweepInterval is how often expired transactions are collected.
	DefaultSweepInterval = 10 * time.Millisecond
)

// Config configures an Engine.
type Config struct {
	// Transport carries the packets. Required.
	Transport Transport

	// DefaultTimeout applies when Submit is called with a zero timeout.
	DefaultTimeout time.Duration

	// SweepInterval is the expiry check period.
	SweepInterval time.Duration

	// MaxPending caps concurrent transactions (default: all 65536 IDs).
	MaxPending int

	// OnDisconnect is called from the receive goroutine after a transport
	// failure has aborted all pending transactions. It must not call Stop.
	OnDisconnect func(err error)

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives packet and transaction events (optional).
	ProtocolLogger log.Logger

	// ConnectionID tags protocol log events (optional). When empty and the
	// transport implements ConnIdentifier, the identifier of the connection
	// opened by each Start is used instead.
	ConnectionID string
}

// run holds the goroutines of one Start/Stop cycle.
type run struct {
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func (r *run) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *run) stopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Engine is the RMAP transaction engine.
type Engine struct {
	config    Config
	transport Transport
	table     *pendingTable
	stats     counters
	protoLog  log.Logger

	mu      sync.Mutex
	running bool
	current *run
	connID  atomic.Pointer[string]
}

// New creates a stopped engine.
func New(config Config) *Engine {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultTimeout
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	return &Engine{
		config:    config,
		transport: config.Transport,
		table:     newPendingTable(config.MaxPending),
		protoLog:  log.OrNoop(config.ProtocolLogger),
	}
}

// Start opens the transport and launches the receive loop and the sweeper.
// Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	if e.transport == nil {
		return errors.New("engine: no transport configured")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}

	if err := e.transport.Open(ctx); err != nil {
		return fmt.Errorf("%w: open: %w", ErrTransport, err)
	}
	e.tagConnection()

	r := &run{stopCh: make(chan struct{})}
	r.wg.Add(2)
	go e.receiveLoop(r)
	go e.sweepLoop(r)

	e.current = r
	e.running = true
	e.debugLog("engine started")
	e.logState("STOPPED", "RUNNING", "")
	return nil
}

func (e *Engine) tagConnection() {
	id := e.config.ConnectionID
	if ci, ok := e.transport.(ConnIdentifier); ok && id == "" {
		id = ci.ConnID()
	}
	e.connID.Store(&id)
}

// ConnectionID returns the identifier attached to protocol log events.
func (e *Engine) ConnectionID() string {
	if id := e.connID.Load(); id != nil {
		return *id
	}
	return e.config.ConnectionID
}

// Stop ends the receive loop, aborts every pending transaction and closes
// the transport. It returns after all engine goroutines have exited.
func (e *Engine) Stop() error {
	e.mu.Lock()
	r := e.current
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	if r == nil {
		return nil
	}
	r.stop()

	var err error
	if wasRunning {
		e.abortPending(ErrStopped)
		err = e.transport.Close()
		e.debugLog("engine stopped")
		e.logState("RUNNING", "STOPPED", "")
	}
	r.wg.Wait()
	return err
}

// IsRunning reports whether the engine accepts submissions.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := e.stats.snapshot()
	s.Pending = e.table.len()
	return s
}

// Submit sends cmd and returns its transaction. The command's
// TransactionID is overwritten with the allocated ID. A command without
// the reply flag is returned already fulfilled with a nil reply.
func (e *Engine) Submit(cmd *wire.Command, timeout time.Duration) (*Transaction, error) {
	if !e.IsRunning() {
		return nil, ErrNotRunning
	}
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	tx := newTransaction(cmd, time.Now(), timeout)
	var packet []byte
	err := e.table.insert(tx, func(tid uint16) error {
		cmd.TransactionID = tid
		b, err := wire.Encode(cmd)
		if err != nil {
			return err
		}
		packet = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stop may have emptied the table between the running check and insert.
	if !e.IsRunning() {
		if e.table.matchAndRemove(tx.id) != nil {
			e.finish(tx, StateAborted, nil, abortError(ErrStopped))
		}
		return nil, ErrNotRunning
	}

	e.logPacket(log.DirectionOut, cmd)
	e.logTransaction(tx, StatePending)

	if err := e.transport.Send(packet); err != nil {
		if e.table.matchAndRemove(tx.id) != nil {
			e.finish(tx, StateAborted, nil, abortError(err))
		}
		return nil, fmt.Errorf("%w: send: %w", ErrTransport, err)
	}
	e.stats.sent.Add(1)

	if !cmd.Instruction.HasReply() {
		if e.table.matchAndRemove(tx.id) != nil {
			e.finish(tx, StateFulfilled, nil, nil)
		}
	}
	return tx, nil
}

// Do submits cmd and waits for its outcome.
func (e *Engine) Do(ctx context.Context, cmd *wire.Command, timeout time.Duration) (*wire.Reply, error) {
	tx, err := e.Submit(cmd, timeout)
	if err != nil {
		return nil, err
	}
	return tx.Wait(ctx)
}

func (e *Engine) receiveLoop(r *run) {
	defer r.wg.Done()

	for {
		data, err := e.transport.Receive()
		if r.stopping() {
			return
		}
		if err != nil {
			if data != nil {
				e.stats.discardedPackets.Add(1)
				e.debugLog("discarding damaged packet", "size", len(data), "error", err)
				e.logError("receive", err)
				continue
			}
			e.fail(r, err)
			return
		}
		e.handlePacket(data)
	}
}

func (e *Engine) handlePacket(data []byte) {
	p, err := wire.Decode(data)
	if err != nil {
		e.stats.discardedPackets.Add(1)
		e.debugLog("discarding undecodable packet", "size", len(data), "error", err)
		e.logError("decode", err)
		return
	}
	e.logPacket(log.DirectionIn, p)

	reply, ok := p.(*wire.Reply)
	if !ok {
		e.stats.discardedCommands.Add(1)
		e.debugLog("discarding command packet", "tid", p.ID())
		return
	}

	tx := e.table.matchAndRemove(reply.TransactionID)
	if tx == nil {
		e.stats.unexpectedReplies.Add(1)
		e.debugLog("discarding reply without pending transaction", "tid", reply.TransactionID)
		return
	}
	e.finish(tx, StateFulfilled, reply, nil)
}

func (e *Engine) sweepLoop(r *run) {
	defer r.wg.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			for _, tx := range e.table.sweepExpired(now) {
				e.finish(tx, StateTimedOut, nil, timeoutError(tx))
			}
		}
	}
}

// fail handles a transport failure seen by the receive loop.
func (e *Engine) fail(r *run, err error) {
	e.mu.Lock()
	if e.current != r || !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	r.stop()
	e.abortPending(err)
	e.transport.Close()

	if e.config.Logger != nil {
		e.config.Logger.Warn("transport failed", "error", err)
	}
	e.logState("RUNNING", "DISCONNECTED", err.Error())

	if e.config.OnDisconnect != nil {
		e.config.OnDisconnect(err)
	}
}

func (e *Engine) abortPending(cause error) {
	for _, tx := range e.table.abortAll() {
		e.finish(tx, StateAborted, nil, abortError(cause))
	}
}

func (e *Engine) finish(tx *Transaction, state State, reply *wire.Reply, err error) {
	if !tx.complete(state, reply, err) {
		return
	}
	switch state {
	case StateFulfilled:
		e.stats.fulfilled.Add(1)
	case StateTimedOut:
		e.stats.timedOut.Add(1)
	case StateAborted:
		e.stats.aborted.Add(1)
	}
	e.logTransaction(tx, state)
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, args...)
	}
}

func (e *Engine) logPacket(direction log.Direction, p wire.Packet) {
	e.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.ConnectionID(),
		Direction:    direction,
		Layer:        log.LayerRMAP,
		Category:     log.CategoryPacket,
		LocalRole:    log.RoleInitiator,
		Packet:       log.NewPacketEvent(p),
	})
}

func (e *Engine) logTransaction(tx *Transaction, state State) {
	ev := &log.TransactionEvent{TransactionID: tx.id, State: state.String()}
	if state.IsTerminal() {
		latency := time.Since(tx.submitted)
		ev.Latency = &latency
	}
	e.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.ConnectionID(),
		Layer:        log.LayerEngine,
		Category:     log.CategoryTransaction,
		LocalRole:    log.RoleInitiator,
		Transaction:  ev,
	})
}

func (e *Engine) logState(oldState, newState, reason string) {
	e.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.ConnectionID(),
		Layer:        log.LayerEngine,
		Category:     log.CategoryState,
		LocalRole:    log.RoleInitiator,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityEngine,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (e *Engine) logError(op string, err error) {
	e.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: e.ConnectionID(),
		Layer:        log.LayerEngine,
		Category:     log.CategoryError,
		LocalRole:    log.RoleInitiator,
		Error: &log.ErrorEventData{
			Layer:   log.LayerRMAP,
			Message: err.Error(),
			Context: op,
		},
	})
}
