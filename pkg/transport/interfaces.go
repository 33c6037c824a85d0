package transport

import (
	"context"
	"net"
)

// PacketLink is a bidirectional SpaceWire packet link. Implemented by Link.
type PacketLink interface {
	// Open establishes the link.
	Open(ctx context.Context) error

	// Close tears the link down.
	Close() error

	// Send transmits one packet.
	Send(data []byte) error

	// Receive blocks until one complete packet arrives.
	Receive() ([]byte, error)
}

// PacketConn is the server-side view of a connected peer.
// Implemented by ServerConn.
type PacketConn interface {
	// RemoteAddr returns the remote network address of the peer.
	RemoteAddr() net.Addr

	// Send transmits one packet to the peer.
	Send(data []byte) error

	// Close closes the connection.
	Close() error
}

// TransportServer represents an SSDTP server. Implemented by Server.
type TransportServer interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop gracefully stops the server.
	Stop() error

	// Addr returns the server's listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of active connections.
	ConnectionCount() int
}

// PacketReadWriter provides SSDTP packet I/O. Implemented by Framer.
type PacketReadWriter interface {
	// ReadPacket reads one complete packet.
	ReadPacket() ([]byte, EOPType, error)

	// WritePacket writes one packet.
	WritePacket(data []byte, eop EOPType) error
}

// Compile-time interface satisfaction checks.
var (
	_ PacketLink       = (*Link)(nil)
	_ PacketConn       = (*ServerConn)(nil)
	_ TransportServer  = (*Server)(nil)
	_ PacketReadWriter = (*Framer)(nil)
)
