package transport_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rmap-protocol/rmap-go/pkg/transport"
)

// startEchoServer starts a server that sends every packet back to its sender.
func startEchoServer(t *testing.T, cfg transport.ServerConfig) *transport.Server {
	t.Helper()
	cfg.Address = "127.0.0.1:0"
	if cfg.OnPacket == nil {
		cfg.OnPacket = func(conn *transport.ServerConn, data []byte, eop transport.EOPType) {
			if eop == transport.EEP {
				conn.SendEEP(data)
				return
			}
			conn.Send(data)
		}
	}
	server := transport.NewServer(cfg)
	require.NoError(t, server.Start(context.Background()))
	return server
}

func TestLinkSendReceive(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := startEchoServer(t, transport.ServerConfig{})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	defer link.Close()

	assert.True(t, link.IsOpen())
	assert.NotEmpty(t, link.ConnID())

	packets := [][]byte{
		{0xfe, 0x01, 0x4c, 0x20},
		bytes.Repeat([]byte{0x55}, 4096),
	}
	for _, p := range packets {
		require.NoError(t, link.Send(p))
		got, err := link.Receive()
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestLinkReceiveEEP(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := startEchoServer(t, transport.ServerConfig{
		OnPacket: func(conn *transport.ServerConn, data []byte, _ transport.EOPType) {
			conn.SendEEP(data)
		},
	})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	defer link.Close()

	require.NoError(t, link.Send([]byte{1, 2, 3}))
	data, err := link.Receive()
	assert.ErrorIs(t, err, transport.ErrEEP)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestLinkCloseUnblocksReceive(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := startEchoServer(t, transport.ServerConfig{})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := link.Receive()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, link.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}

	assert.False(t, link.IsOpen())
	assert.ErrorIs(t, link.Send([]byte{1}), transport.ErrConnectionClosed)
	assert.NoError(t, link.Close())
}

func TestLinkReopen(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := startEchoServer(t, transport.ServerConfig{})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	first := link.ConnID()
	require.NoError(t, link.Close())

	require.NoError(t, link.Open(context.Background()))
	defer link.Close()
	assert.NotEqual(t, first, link.ConnID())

	require.NoError(t, link.Send([]byte{0xfe}))
	got, err := link.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe}, got)
}

func TestLinkOpenFails(t *testing.T) {
	link := transport.NewLink(transport.LinkConfig{
		Address: "test",
		Dial: func(context.Context, string) (net.Conn, error) {
			return nil, errors.New("refused")
		},
	})
	err := link.Open(context.Background())
	assert.ErrorContains(t, err, "refused")
	assert.False(t, link.IsOpen())
}

func TestLinkOverPipe(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()

	link := transport.NewLink(transport.LinkConfig{
		Dial: func(context.Context, string) (net.Conn, error) { return client, nil },
	})
	require.NoError(t, link.Open(context.Background()))
	defer link.Close()

	framer := transport.NewFramer(peer)
	go framer.WritePacket([]byte{0x20, 0x01}, transport.EOP)

	got, err := link.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x01}, got)
}

func TestServerTracksConnections(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	connected, disconnected := 0, 0
	done := make(chan struct{}, 1)

	server := startEchoServer(t, transport.ServerConfig{
		OnConnect: func(*transport.ServerConn) {
			mu.Lock()
			connected++
			mu.Unlock()
		},
		OnDisconnect: func(*transport.ServerConn) {
			mu.Lock()
			disconnected++
			mu.Unlock()
			done <- struct{}{}
		},
	})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	require.NoError(t, link.Send([]byte{1}))
	_, err := link.Receive()
	require.NoError(t, err)
	assert.Equal(t, 1, server.ConnectionCount())

	require.NoError(t, link.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, disconnected)
	assert.Equal(t, 0, server.ConnectionCount())
}

func TestServerReceivesTimeCodes(t *testing.T) {
	defer goleak.VerifyNone(t)

	codes := make(chan uint8, 4)
	server := startEchoServer(t, transport.ServerConfig{
		OnTimeCode: func(_ *transport.ServerConn, tc uint8) { codes <- tc },
	})
	defer server.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: server.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	defer link.Close()

	require.NoError(t, link.SendTimeCode(12))
	select {
	case tc := <-codes:
		assert.Equal(t, uint8(12), tc)
	case <-time.After(2 * time.Second):
		t.Fatal("time code not received")
	}
}

func TestServerStopIdempotent(t *testing.T) {
	server := startEchoServer(t, transport.ServerConfig{})
	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())
}

func TestPipe(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	go a.Send([]byte{0xfe, 0x01, 0x0c})
	got, err := b.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0x01, 0x0c}, got)
}
