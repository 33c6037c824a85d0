package monitor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

type fixture struct {
	handler http.Handler
	history *monitor.History
	target  *simtarget.Target
	engine  *engine.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node := registry.TargetNode{
		ID:             "SampleRMAPTargetNode",
		LogicalAddress: 0x30,
		DefaultKey:     0x20,
		MemoryObjects: []registry.MemoryObject{
			{ID: "SampleRegister", Address: 0x20000000, Size: 4},
			{ID: "Status", Address: 0x20000010, Size: 2, Access: registry.AccessReadOnly},
		},
	}
	reg, err := registry.New(node)
	require.NoError(t, err)

	tgt, err := simtarget.New(simtarget.Config{Node: node})
	require.NoError(t, err)
	require.NoError(t, tgt.Poke("SampleRegister", []byte{0x00, 0x00, 0x20, 0x00}))

	history, err := monitor.NewHistory(":memory:")
	require.NoError(t, err)

	local, remote := transport.Pipe()
	e := engine.New(engine.Config{Transport: local, ProtocolLogger: history})
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
		history.Close()
	})

	in, err := initiator.New(initiator.Config{Registry: reg, Engine: e})
	require.NoError(t, err)

	srv, err := monitor.NewServer(monitor.Config{Memory: in, Stats: e, History: history, Timeout: time.Second})
	require.NoError(t, err)
	return &fixture{handler: srv.Handler(), history: history, target: tgt, engine: e}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestTargetsEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/targets", "")
	require.Equal(t, http.StatusOK, w.Code)
	targets := decode[[]map[string]any](t, w)
	require.Len(t, targets, 1)
	assert.Equal(t, "SampleRMAPTargetNode", targets[0]["id"])
	assert.Equal(t, "0x30", targets[0]["logicalAddress"])

	w = f.do(t, http.MethodGet, "/targets/SampleRMAPTargetNode", "")
	require.Equal(t, http.StatusOK, w.Code)
	target := decode[map[string]any](t, w)
	assert.Len(t, target["memory"], 2)

	w = f.do(t, http.MethodGet, "/targets/Unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadWriteEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/targets/SampleRMAPTargetNode/SampleRegister", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "00002000", decode[map[string]any](t, w)["data"])

	w = f.do(t, http.MethodPut, "/targets/SampleRMAPTargetNode/SampleRegister", "0xDE AD be ef\n")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	data, err := f.target.Peek("SampleRegister")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, data)
}

func TestWriteErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"bad hex", "/targets/SampleRMAPTargetNode/SampleRegister", "zz", http.StatusBadRequest},
		{"read-only", "/targets/SampleRMAPTargetNode/Status", "0102", http.StatusForbidden},
		{"too long", "/targets/SampleRMAPTargetNode/SampleRegister", "0102030405", http.StatusForbidden},
		{"unknown memory", "/targets/SampleRMAPTargetNode/Nope", "01", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]any](t, w)["error"])
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatsAndHistory(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/targets/SampleRMAPTargetNode/SampleRegister", "")
	f.do(t, http.MethodPut, "/targets/SampleRMAPTargetNode/SampleRegister", "01")

	// Completion is recorded after the waiter is released.
	require.Eventually(t, func() bool {
		records, err := f.history.Recent(0)
		return err == nil && len(records) == 2
	}, time.Second, 5*time.Millisecond)

	w := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[engine.Stats](t, w)
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(2), stats.Fulfilled)

	w = f.do(t, http.MethodGet, "/history?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]monitor.Record](t, w)
	require.Len(t, records, 2)

	byOp := map[string]monitor.Record{}
	for _, rec := range records {
		byOp[rec.Operation] = rec
	}
	require.Contains(t, byOp, "READ")
	require.Contains(t, byOp, "WRITE")
	read := byOp["READ"]
	assert.Equal(t, "FULFILLED", read.State)
	assert.Equal(t, uint32(0x20000000), read.Address)
	assert.Equal(t, uint8(0x30), read.TargetLogicalAddress)
	require.NotNil(t, read.Status)
	assert.Equal(t, wire.StatusSuccess, *read.Status)

	w = f.do(t, http.MethodGet, "/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEngineStopped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Stop())

	w := f.do(t, http.MethodGet, "/targets/SampleRMAPTargetNode/SampleRegister", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewServerValidation(t *testing.T) {
	_, err := monitor.NewServer(monitor.Config{})
	assert.Error(t, err)
}
