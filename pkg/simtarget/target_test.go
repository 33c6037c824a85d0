package simtarget_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/persistence"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/simtarget"
	"github.com/rmap-protocol/rmap-go/pkg/transport"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

func ptr[T any](v T) *T { return &v }

func sampleNode() registry.TargetNode {
	return registry.TargetNode{
		ID:             "SampleRMAPTargetNode",
		LogicalAddress: 0x30,
		DefaultKey:     0x20,
		MemoryObjects: []registry.MemoryObject{
			{ID: "SampleRegister", Address: 0x20000000, Size: 4},
			{ID: "Status", Address: 0x20000010, Size: 8, Access: registry.AccessReadOnly},
			{ID: "Command", Address: 0x20000020, Size: 4, Access: registry.AccessWriteOnly},
			{ID: "Secure", Address: 0x100, Size: 16, ExtendedAddress: 1, Key: ptr(uint8(0x55))},
		},
	}
}

func newTarget(t *testing.T) *simtarget.Target {
	t.Helper()
	tgt, err := simtarget.New(simtarget.Config{Node: sampleNode(), VerifyBufferSize: 8})
	require.NoError(t, err)
	require.NoError(t, tgt.Poke("SampleRegister", []byte{0x00, 0x00, 0x20, 0x00}))
	return tgt
}

func TestReadSampleRegister(t *testing.T) {
	tgt := newTarget(t)

	cmd := wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000000, 4)
	cmd.TransactionID = 7
	reply := tgt.Handle(cmd)

	require.NotNil(t, reply)
	assert.Equal(t, wire.StatusSuccess, reply.Status)
	assert.Equal(t, uint16(7), reply.TransactionID)
	assert.Equal(t, []byte{0x00, 0x00, 0x20, 0x00}, reply.Data)
	assert.Equal(t, uint64(1), tgt.Stats().Reads)
}

func TestWriteThenRead(t *testing.T) {
	tgt := newTarget(t)

	w := tgt.Handle(wire.NewWriteCommand(0x30, 0xFE, 0x20, 0, 0x20000002, []byte{0xAB, 0xCD}))
	require.NotNil(t, w)
	assert.Equal(t, wire.StatusSuccess, w.Status)
	assert.Nil(t, w.Data)

	data, err := tgt.Peek("SampleRegister")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xAB, 0xCD}, data)
}

func TestHandleStatuses(t *testing.T) {
	tests := []struct {
		name string
		cmd  *wire.Command
		want wire.Status
	}{
		{"wrong logical address", wire.NewReadCommand(0x31, 0xFE, 0x20, 0, 0x20000000, 4), wire.StatusInvalidLogicalAddress},
		{"wrong key", wire.NewReadCommand(0x30, 0xFE, 0x21, 0, 0x20000000, 4), wire.StatusInvalidKey},
		{"wrong key unmapped", wire.NewReadCommand(0x30, 0xFE, 0x21, 0, 0x40000000, 4), wire.StatusInvalidKey},
		{"region key", wire.NewReadCommand(0x30, 0xFE, 0x20, 1, 0x100, 4), wire.StatusInvalidKey},
		{"unmapped", wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x40000000, 4), wire.StatusNotImplemented},
		{"wrong extended address", wire.NewReadCommand(0x30, 0xFE, 0x20, 2, 0x20000000, 4), wire.StatusNotImplemented},
		{"read past region", wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000000, 5), wire.StatusTooMuchData},
		{"read write-only", wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000020, 4), wire.StatusNotImplemented},
		{"write read-only", wire.NewWriteCommand(0x30, 0xFE, 0x20, 0, 0x20000010, []byte{1}), wire.StatusNotImplemented},
		{"verify buffer overrun", wire.NewWriteCommand(0x30, 0xFE, 0x55, 1, 0x100, make([]byte, 9)), wire.StatusVerifyBufferOverrun},
		{"read-modify-write", &wire.Command{
			TargetLogicalAddress: 0x30, Instruction: wire.InstructionCommand | wire.InstructionVerify | wire.InstructionReply | wire.InstructionIncrement,
			Key: 0x20, Address: 0x20000000, DataLength: 8, Data: make([]byte, 8),
		}, wire.StatusUnusedPacketType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := newTarget(t)
			reply := tgt.Handle(tt.cmd)
			require.NotNil(t, reply)
			assert.Equal(t, tt.want, reply.Status)
			assert.Empty(t, reply.Data)
			assert.Equal(t, uint64(1), tgt.Stats().Errors)
		})
	}
}

func TestRegionKeyAccepted(t *testing.T) {
	tgt := newTarget(t)
	reply := tgt.Handle(wire.NewWriteCommand(0x30, 0xFE, 0x55, 1, 0x104, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NotNil(t, reply)
	assert.Equal(t, wire.StatusSuccess, reply.Status)

	data, err := tgt.Peek("Secure")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, data[4:12])
}

func TestNoReplyRequested(t *testing.T) {
	tgt := newTarget(t)
	cmd := wire.NewWriteCommand(0x30, 0xFE, 0x20, 0, 0x20000000, []byte{9})
	cmd.Instruction &^= wire.InstructionReply

	assert.Nil(t, tgt.Handle(cmd))
	data, _ := tgt.Peek("SampleRegister")
	assert.Equal(t, byte(9), data[0])
}

func TestNonIncrementingAccess(t *testing.T) {
	tgt := newTarget(t)

	write := wire.NewWriteCommand(0x30, 0xFE, 0x20, 0, 0x20000000, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	write.Instruction &^= wire.InstructionIncrement
	require.Equal(t, wire.StatusSuccess, tgt.Handle(write).Status)

	data, _ := tgt.Peek("SampleRegister")
	assert.Equal(t, []byte{5, 6, 7, 8}, data)

	read := wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000000, 8)
	read.Instruction &^= wire.InstructionIncrement
	reply := tgt.Handle(read)
	require.Equal(t, wire.StatusSuccess, reply.Status)
	assert.Equal(t, []byte{5, 6, 7, 8, 5, 6, 7, 8}, reply.Data)
}

func TestHandlePacket(t *testing.T) {
	var mu sync.Mutex
	var events []log.Event
	tgt, err := simtarget.New(simtarget.Config{
		Node: sampleNode(),
		ProtocolLogger: log.LoggerFunc(func(ev log.Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}),
	})
	require.NoError(t, err)

	cmd := wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000000, 4)
	cmd.TransactionID = 0x1234
	in, err := wire.Encode(cmd)
	require.NoError(t, err)

	out, err := tgt.HandlePacket(in)
	require.NoError(t, err)
	p, err := wire.Decode(out)
	require.NoError(t, err)
	reply, ok := p.(*wire.Reply)
	require.True(t, ok)
	assert.Equal(t, uint16(0x1234), reply.TransactionID)

	_, err = tgt.HandlePacket([]byte{0x30, 0x01, 0x4c})
	assert.Error(t, err)

	replyBytes, err := wire.Encode(wire.ReplyFor(cmd, wire.StatusSuccess, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	out, err = tgt.HandlePacket(replyBytes)
	assert.NoError(t, err)
	assert.Nil(t, out)

	assert.Equal(t, uint64(2), tgt.Stats().Discarded)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, log.DirectionIn, events[0].Direction)
	assert.Equal(t, log.DirectionOut, events[1].Direction)
	assert.Equal(t, log.CategoryError, events[2].Category)
}

func TestOverlappingMemoryRejected(t *testing.T) {
	node := sampleNode()
	node.MemoryObjects = append(node.MemoryObjects, registry.MemoryObject{ID: "Alias", Address: 0x20000002, Size: 4})
	_, err := simtarget.New(simtarget.Config{Node: node})
	assert.ErrorIs(t, err, simtarget.ErrOverlap)
}

func TestPeekPokeUnknown(t *testing.T) {
	tgt := newTarget(t)
	_, err := tgt.Peek("Nope")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, tgt.Poke("Nope", nil), registry.ErrNotFound)
	assert.ErrorIs(t, tgt.Poke("SampleRegister", make([]byte, 5)), simtarget.ErrUnmapped)
}

func TestImageRestore(t *testing.T) {
	tgt := newTarget(t)
	require.NoError(t, tgt.Poke("Status", []byte("ready")))

	store := persistence.NewImageStore(t.TempDir() + "/mem.img")
	require.NoError(t, store.Save(tgt.Image()))

	restored, err := simtarget.New(simtarget.Config{Node: sampleNode()})
	require.NoError(t, err)
	img, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, restored.Restore(img))

	data, err := restored.Peek("Status")
	require.NoError(t, err)
	assert.Equal(t, "ready", string(data[:5]))
	reg, _ := restored.Peek("SampleRegister")
	assert.Equal(t, []byte{0x00, 0x00, 0x20, 0x00}, reg)
}

func TestRestoreMismatch(t *testing.T) {
	tgt := newTarget(t)

	img := tgt.Image()
	img.Target = "Other"
	assert.ErrorIs(t, tgt.Restore(img), simtarget.ErrImageMismatch)

	img = tgt.Image()
	img.Regions[0].Data = append(img.Regions[0].Data, 0)
	assert.ErrorIs(t, tgt.Restore(img), simtarget.ErrImageMismatch)
}

func TestServeLink(t *testing.T) {
	defer goleak.VerifyNone(t)

	tgt := newTarget(t)
	local, remote := transport.Pipe()
	defer local.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tgt.ServeLink(ctx, remote) }()

	cmd := wire.NewReadCommand(0x30, 0xFE, 0x20, 0, 0x20000000, 4)
	b, err := wire.Encode(cmd)
	require.NoError(t, err)
	require.NoError(t, local.Send(b))

	data, err := local.Receive()
	require.NoError(t, err)
	p, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x20, 0x00}, p.(*wire.Reply).Data)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ServeLink did not return")
	}
}

func TestServeLinkPeerClosed(t *testing.T) {
	defer goleak.VerifyNone(t)

	tgt := newTarget(t)
	local, remote := transport.Pipe()
	local.Close()

	err := tgt.ServeLink(context.Background(), remote)
	assert.Error(t, err)
	remote.Close()
}

func TestServe(t *testing.T) {
	defer goleak.VerifyNone(t)

	tgt := newTarget(t)
	srv, err := tgt.Serve(context.Background(), transport.ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer srv.Stop()

	link := transport.NewLink(transport.LinkConfig{Address: srv.Addr().String()})
	require.NoError(t, link.Open(context.Background()))
	defer link.Close()

	cmd := wire.NewWriteCommand(0x30, 0xFE, 0x20, 0, 0x20000000, []byte{0xCA, 0xFE})
	b, err := wire.Encode(cmd)
	require.NoError(t, err)
	require.NoError(t, link.Send(b))

	data, err := link.Receive()
	require.NoError(t, err)
	p, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, p.(*wire.Reply).Status)

	reg, _ := tgt.Peek("SampleRegister")
	assert.Equal(t, []byte{0xCA, 0xFE, 0x20, 0x00}, reg)
}

func TestServeListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	tgt := newTarget(t)
	_, err = tgt.Serve(context.Background(), transport.ServerConfig{Address: ln.Addr().String()})
	assert.Error(t, err)
}
