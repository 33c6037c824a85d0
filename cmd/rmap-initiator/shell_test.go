package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmap-protocol/rmap-go/pkg/engine"
	"github.com/rmap-protocol/rmap-go/pkg/initiator"
	"github.com/rmap-protocol/rmap-go/pkg/monitor"
	"github.com/rmap-protocol/rmap-go/pkg/registry"
	"github.com/rmap-protocol/rmap-go/pkg/simtarget"
	"github.com/rmap-protocol/rmap-go/pkg/transport"
)

type shellFixture struct {
	shell  *Shell
	out    *bytes.Buffer
	target *simtarget.Target
}

func newShellFixture(t *testing.T, withHistory bool) *shellFixture {
	t.Helper()

	node := registry.TargetNode{
		ID:             "SampleRMAPTargetNode",
		LogicalAddress: 0x30,
		DefaultKey:     0x20,
		MemoryObjects: []registry.MemoryObject{
			{ID: "SampleRegister", Address: 0x20000000, Size: 4},
			{ID: "Status", Address: 0x20000010, Size: 2, Access: registry.AccessReadOnly},
			{ID: "Buffer", Address: 0x20000100, Size: 32},
		},
	}
	reg, err := registry.New(node)
	require.NoError(t, err)

	tgt, err := simtarget.New(simtarget.Config{Node: node})
	require.NoError(t, err)
	require.NoError(t, tgt.Poke("SampleRegister", []byte{0x00, 0x00, 0x20, 0x00}))

	var history *monitor.History
	cfg := engine.Config{}
	if withHistory {
		history, err = monitor.NewHistory(":memory:")
		require.NoError(t, err)
		cfg.ProtocolLogger = history
	}

	local, remote := transport.Pipe()
	cfg.Transport = local
	e := engine.New(cfg)
	require.NoError(t, e.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = tgt.ServeLink(ctx, remote)
	}()
	t.Cleanup(func() {
		cancel()
		e.Stop()
		wg.Wait()
		if history != nil {
			history.Close()
		}
	})

	in, err := initiator.New(initiator.Config{Registry: reg, Engine: e})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &shellFixture{
		shell:  NewShell(in, e.Stats, history, time.Second, out),
		out:    out,
		target: tgt,
	}
}

func (f *shellFixture) exec(t *testing.T, line string) (string, error) {
	t.Helper()
	f.out.Reset()
	err := f.shell.Exec(context.Background(), line)
	return f.out.String(), err
}

func TestShellTargets(t *testing.T) {
	f := newShellFixture(t, false)

	out, err := f.exec(t, "targets")
	require.NoError(t, err)
	assert.Contains(t, out, "SampleRMAPTargetNode  la=0x30 key=0x20")
	assert.Contains(t, out, "SampleRegister")
	assert.Contains(t, out, "0x00:20000010")
	assert.Contains(t, out, "read-only")

	_, err = f.exec(t, "targets Missing")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestShellReadWrite(t *testing.T) {
	f := newShellFixture(t, false)

	out, err := f.exec(t, "read SampleRMAPTargetNode SampleRegister")
	require.NoError(t, err)
	assert.Equal(t, "SampleRMAPTargetNode/SampleRegister: 00 00 20 00\n", out)

	out, err = f.exec(t, "write SampleRMAPTargetNode SampleRegister de ad be ef")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 4 bytes")

	data, err := f.target.Peek("SampleRegister")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
}

func TestShellLongReadIsDumped(t *testing.T) {
	f := newShellFixture(t, false)

	out, err := f.exec(t, "read SampleRMAPTargetNode Buffer")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SampleRMAPTargetNode/Buffer: 32 bytes\n"))
	assert.Contains(t, out, "00000010  00 00")
}

func TestShellReadAtWriteAt(t *testing.T) {
	f := newShellFixture(t, false)

	_, err := f.exec(t, "writeat SampleRMAPTargetNode 0x20000000 cafe")
	require.NoError(t, err)

	out, err := f.exec(t, "readat SampleRMAPTargetNode 0x20000000 4 0")
	require.NoError(t, err)
	assert.Equal(t, "SampleRMAPTargetNode@0x20000000: ca fe 20 00\n", out)
}

func TestShellErrors(t *testing.T) {
	f := newShellFixture(t, false)

	tests := []struct {
		name string
		line string
		want string
	}{
		{"unknown command", "frobnicate", "unknown command"},
		{"read usage", "read SampleRMAPTargetNode", "usage: read"},
		{"write usage", "write SampleRMAPTargetNode SampleRegister", "usage: write"},
		{"bad hex", "write SampleRMAPTargetNode SampleRegister zz", "hex"},
		{"bad address", "readat SampleRMAPTargetNode nowhere 4", "invalid address"},
		{"bad extended address", "readat SampleRMAPTargetNode 0x20000000 4 0x100", "invalid extended address"},
		{"history disabled", "history", "history is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exec(t, tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := f.exec(t, "write SampleRMAPTargetNode Status 0001")
	assert.ErrorIs(t, err, initiator.ErrAccess)
}

func TestShellEmptyLineAndQuit(t *testing.T) {
	f := newShellFixture(t, false)

	out, err := f.exec(t, "   ")
	require.NoError(t, err)
	assert.Empty(t, out)

	for _, cmd := range []string{"quit", "exit", "q"} {
		_, err := f.exec(t, cmd)
		assert.ErrorIs(t, err, errQuit)
	}
}

func TestShellStatsAndHistory(t *testing.T) {
	f := newShellFixture(t, true)

	_, err := f.exec(t, "read SampleRMAPTargetNode SampleRegister")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		out, err := f.exec(t, "stats")
		return err == nil && strings.Contains(out, "sent=1 fulfilled=1")
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		out, err := f.exec(t, "history 5")
		return err == nil && strings.Contains(out, "READ") && strings.Contains(out, "FULFILLED")
	}, time.Second, 10*time.Millisecond)

	_, err = f.exec(t, "history zero")
	assert.ErrorContains(t, err, "usage: history")
}
