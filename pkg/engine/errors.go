package engine

import "errors"

// Engine errors.
var (
	// ErrNotRunning is returned by Submit when the engine is stopped or
	// its transport failed.
	ErrNotRunning = errors.New("engine not running")

	// ErrTooManyTransactions indicates that all transaction IDs are in use.
	ErrTooManyTransactions = errors.New("too many pending transactions")

	// ErrTimeout indicates no reply arrived before the deadline.
	ErrTimeout = errors.New("transaction timed out")

	// ErrTransport indicates the transaction was aborted because the
	// transport failed or the engine stopped.
	ErrTransport = errors.New("transport failure")

	// ErrStopped is the cause attached to transactions aborted by Stop.
	ErrStopped = errors.New("engine stopped")
)
