package engine

import "context"

// Transport moves whole packets between the engine and a remote node.
//
// Receive blocks until one complete packet is available. A packet that
// arrived damaged (for example terminated by an error end of packet) is
// returned together with a non-nil error; the engine discards it and keeps
// reading. Any other error ends the receive loop. Receive must return an
// error once Close has been called.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	Send(packet []byte) error
	Receive() ([]byte, error)
}

// ConnIdentifier is implemented by transports that name each connection
// they open.
type ConnIdentifier interface {
	ConnID() string
}
