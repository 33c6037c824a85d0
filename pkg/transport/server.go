package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rmap-protocol/rmap-go/pkg/log"
)

// ServerConfig configures an SSDTP server.
type ServerConfig struct {
	// Address to listen on (e.g., ":10030" or "127.0.0.1:10030").
	Address string

	// MaxPacketSize limits reassembled packets (default: 10 MB).
	MaxPacketSize uint64

	// Logger for protocol capture (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnPacket is called for every complete packet.
	OnPacket func(conn *ServerConn, data []byte, eop EOPType)

	// OnTimeCode is called for every received time code.
	OnTimeCode func(conn *ServerConn, tc uint8)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts SSDTP connections, acting as the bridge side of a link.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new SSDTP server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxPacketSize == 0 {
		config.MaxPacketSize = DefaultMaxPacketSize
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, s.config.MaxPacketSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}
	if s.config.OnTimeCode != nil {
		framer.OnTimeCode(func(tc uint8) { s.config.OnTimeCode(sconn, tc) })
	}

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	sconn.logState("", "CONNECTED")
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.logState("CONNECTED", "DISCONNECTED")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn represents an initiator connected to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the peer.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send transmits data as one EOP-terminated packet.
func (c *ServerConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WritePacket(data, EOP)
}

// SendEEP transmits data terminated by an error end of packet.
func (c *ServerConn) SendEEP(data []byte) error {
	return c.framer.WritePacket(data, EEP)
}

// SendTimeCode transmits a SpaceWire time code.
func (c *ServerConn) SendTimeCode(tc uint8) error {
	return c.framer.WriteTimeCode(tc)
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) readLoop() {
	for {
		data, eop, err := c.framer.ReadPacket()
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}
			if c.server.config.OnError != nil && c.server.running.Load() && !errors.Is(err, io.EOF) {
				c.server.config.OnError(c, err)
			}
			return
		}
		if c.server.config.OnPacket != nil {
			c.server.config.OnPacket(c, data, eop)
		}
	}
}

func (c *ServerConn) logState(oldState, newState string) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerLink,
		Category:     log.CategoryState,
		LocalRole:    log.RoleTarget,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLink,
			OldState: oldState,
			NewState: newState,
		},
	})
}
