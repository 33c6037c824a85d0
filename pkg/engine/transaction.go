package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// State is the lifecycle state of a transaction.
type State uint8

const (
	StatePending State = iota
	StateFulfilled
	StateTimedOut
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateFulfilled:
		return "FULFILLED"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is final.
func (s State) IsTerminal() bool {
	return s != StatePending
}

// Transaction is one outstanding command. It is created by Submit and
// completed exactly once by the engine.
type Transaction struct {
	id        uint16
	cmd       *wire.Command
	submitted time.Time
	deadline  time.Time
	done      chan struct{}

	mu    sync.Mutex
	state State
	reply *wire.Reply
	err   error
}

func newTransaction(cmd *wire.Command, now time.Time, timeout time.Duration) *Transaction {
	return &Transaction{
		cmd:       cmd,
		submitted: now,
		deadline:  now.Add(timeout),
		done:      make(chan struct{}),
	}
}

// ID returns the transaction ID carried by the command.
func (t *Transaction) ID() uint16 {
	return t.id
}

// Command returns the submitted command.
func (t *Transaction) Command() *wire.Command {
	return t.cmd
}

// Deadline returns the time at which the transaction times out.
func (t *Transaction) Deadline() time.Time {
	return t.deadline
}

// State returns the current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when the transaction reaches a terminal state.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// complete moves the transaction to a terminal state. Only the first call
// has an effect; it reports whether it was that call.
func (t *Transaction) complete(state State, reply *wire.Reply, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	t.state = state
	t.reply = reply
	t.err = err
	close(t.done)
	return true
}

// Wait blocks until the transaction is terminal or ctx is done. A
// fulfilled transaction returns its reply, which may carry a non-success
// status. Cancelling ctx abandons the wait only; the engine still expires
// the transaction at its deadline.
func (t *Transaction) Wait(ctx context.Context) (*wire.Reply, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reply, t.err
}

// Result returns the reply and error of a terminal transaction without
// blocking. For a pending transaction both are nil.
func (t *Transaction) Result() (*wire.Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reply, t.err
}

func timeoutError(t *Transaction) error {
	return fmt.Errorf("%w: tid %d after %s", ErrTimeout, t.id, t.deadline.Sub(t.submitted))
}

func abortError(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransport, cause)
}
