package transport

import (
	"context"
	"net"
)

// Pipe returns two opened links connected back to back in memory. Each
// side sees the packets the other sends. Mostly useful in tests.
func Pipe() (*Link, *Link) {
	a, b := net.Pipe()
	return pipeEnd(a, "pipe-a"), pipeEnd(b, "pipe-b")
}

func pipeEnd(conn net.Conn, name string) *Link {
	l := NewLink(LinkConfig{
		Address: name,
		Dial: func(context.Context, string) (net.Conn, error) {
			return conn, nil
		},
	})
	// Dialing a pipe end cannot fail.
	_ = l.Open(context.Background())
	return l
}
