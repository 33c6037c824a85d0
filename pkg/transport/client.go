package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rmap-protocol/rmap-go/pkg/log"
)

// DefaultPort is the default TCP port of SpaceWire-to-TCP bridges.
const DefaultPort = 10030

// DefaultConnectTimeout is used when LinkConfig.ConnectTimeout is zero.
const DefaultConnectTimeout = 10 * time.Second

// Link errors.
var (
	// ErrConnectionClosed indicates the link is not open.
	ErrConnectionClosed = errors.New("connection closed")
)

// DialFunc opens the byte stream underlying a link.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// LinkConfig configures an SSDTP client link.
type LinkConfig struct {
	// Address of the SpaceWire-to-TCP bridge (host:port).
	Address string

	// ConnectTimeout bounds Open when the context has no deadline.
	ConnectTimeout time.Duration

	// MaxPacketSize limits reassembled packets (default: 10 MB).
	MaxPacketSize uint64

	// Logger for protocol capture (optional).
	Logger log.Logger

	// OnTimeCode is called for every received time code (optional).
	OnTimeCode func(tc uint8)

	// Dial replaces the TCP dialer (optional).
	Dial DialFunc
}

// Link is a client connection to a SpaceWire-to-TCP bridge. It delivers
// whole SpaceWire packets. A closed link can be opened again.
type Link struct {
	config LinkConfig

	mu     sync.Mutex
	conn   net.Conn
	framer *Framer
	connID string

	readMu sync.Mutex
}

// NewLink creates an unopened link.
func NewLink(config LinkConfig) *Link {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.MaxPacketSize == 0 {
		config.MaxPacketSize = DefaultMaxPacketSize
	}
	if config.Dial == nil {
		config.Dial = func(ctx context.Context, address string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", address)
		}
	}
	return &Link{config: config}
}

// Open connects to the bridge. Opening an open link is a no-op.
func (l *Link) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return nil
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := l.config.Dial(ctx, l.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", l.config.Address, err)
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, l.config.MaxPacketSize)
	if l.config.Logger != nil {
		framer.SetLogger(l.config.Logger, connID)
	}
	if l.config.OnTimeCode != nil {
		framer.OnTimeCode(l.config.OnTimeCode)
	}

	l.conn = conn
	l.framer = framer
	l.connID = connID
	l.logState("", "CONNECTED")
	return nil
}

// ConnID returns the identifier of the current connection.
func (l *Link) ConnID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connID
}

// IsOpen reports whether the link is connected.
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// RemoteAddr returns the bridge address, or nil when closed.
func (l *Link) RemoteAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.RemoteAddr()
}

func (l *Link) current() *Framer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.framer
}

// Send transmits data as one EOP-terminated packet.
func (l *Link) Send(data []byte) error {
	framer := l.current()
	if framer == nil {
		return ErrConnectionClosed
	}
	return framer.WritePacket(data, EOP)
}

// SendTimeCode transmits a SpaceWire time code.
func (l *Link) SendTimeCode(tc uint8) error {
	framer := l.current()
	if framer == nil {
		return ErrConnectionClosed
	}
	return framer.WriteTimeCode(tc)
}

// Receive blocks until a complete packet arrives. A packet terminated by
// EEP is returned together with an error wrapping ErrEEP. After Close,
// Receive returns an error wrapping ErrConnectionClosed.
func (l *Link) Receive() ([]byte, error) {
	l.readMu.Lock()
	defer l.readMu.Unlock()

	framer := l.current()
	if framer == nil {
		return nil, ErrConnectionClosed
	}

	data, eop, err := framer.ReadPacket()
	if err != nil {
		if l.current() != framer || errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return nil, err
	}
	if eop == EEP {
		return data, fmt.Errorf("%w: %d bytes", ErrEEP, len(data))
	}
	return data, nil
}

// Close disconnects the link. Closing a closed link is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.framer = nil
	l.logState("CONNECTED", "DISCONNECTED")
	return err
}

// logState records a link state change. Caller holds l.mu.
func (l *Link) logState(oldState, newState string) {
	if l.config.Logger == nil {
		return
	}
	l.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.connID,
		Layer:        log.LayerLink,
		Category:     log.CategoryState,
		LocalRole:    log.RoleInitiator,
		RemoteAddr:   l.config.Address,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLink,
			OldState: oldState,
			NewState: newState,
		},
	})
}
