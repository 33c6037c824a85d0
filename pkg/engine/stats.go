package engine

import "sync/atomic"

// Stats is a snapshot of engine counters.
type Stats struct {
	// Sent counts commands handed to the transport.
	Sent uint64 `json:"sent"`

	// Fulfilled counts transactions completed by a reply.
	Fulfilled uint64 `json:"fulfilled"`

	// TimedOut counts transactions that reached their deadline.
	TimedOut uint64 `json:"timedOut"`

	// Aborted counts transactions ended by Stop or a transport failure.
	Aborted uint64 `json:"aborted"`

	// DiscardedPackets counts received packets that failed to decode or
	// arrived damaged.
	DiscardedPackets uint64 `json:"discardedPackets"`

	// UnexpectedReplies counts replies without a pending transaction.
	UnexpectedReplies uint64 `json:"unexpectedReplies"`

	// DiscardedCommands counts command packets received by the initiator.
	DiscardedCommands uint64 `json:"discardedCommands"`

	// Pending is the number of transactions waiting for a reply.
	Pending int `json:"pending"`
}

type counters struct {
	sent              atomic.Uint64
	fulfilled         atomic.Uint64
	timedOut          atomic.Uint64
	aborted           atomic.Uint64
	discardedPackets  atomic.Uint64
	unexpectedReplies atomic.Uint64
	discardedCommands atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:              c.sent.Load(),
		Fulfilled:         c.fulfilled.Load(),
		TimedOut:          c.timedOut.Load(),
		Aborted:           c.aborted.Load(),
		DiscardedPackets:  c.discardedPackets.Load(),
		UnexpectedReplies: c.unexpectedReplies.Load(),
		DiscardedCommands: c.discardedCommands.Load(),
	}
}
