package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/mount"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/marmos91/nfsgate/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	tests := []struct {
		program, procedure uint32
		wantProgram        string
		wantProcedure      string
	}{
		{rpc.ProgramNFS, types.NFSProcRead, "nfs", "READ"},
		{rpc.ProgramMount, mount.MountProcMnt, "mount", "MNT"},
		{rpc.ProgramPortmap, mount.PortmapProcGetPort, "portmap", "GETPORT"},
		{rpc.ProgramMount, 42, "mount", "PROC_42"},
		{7, 1, "7", "PROC_1"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.program, tt.procedure), func(t *testing.T) {
			assert.Equal(t, tt.wantProgram, programName(tt.program))
			assert.Equal(t, tt.wantProcedure, procedureName(tt.program, tt.procedure))
		})
	}
}

func TestTransportMetrics(t *testing.T) {
	m := newTransportMetrics(prometheus.NewRegistry())
	var _ transport.Metrics = m

	m.ObserveCall(rpc.ProgramNFS, types.NFSProcRead, time.Millisecond, nil)
	m.ObserveCall(rpc.ProgramNFS, types.NFSProcRead, time.Millisecond, nil)
	m.ObserveCall(rpc.ProgramNFS, types.NFSProcWrite, time.Second, fmt.Errorf("call: %w", transport.ErrTimeout))
	m.ObserveCall(rpc.ProgramNFS, types.NFSProcWrite, time.Second, errors.New("denied"))
	m.RecordRetry(rpc.ProgramNFS, types.NFSProcWrite)
	m.RecordReconnect()
	m.RecordOrphanReply()
	m.SetPending(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("nfs", "READ", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("nfs", "WRITE", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.timeouts.WithLabelValues("nfs", "WRITE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("nfs", "WRITE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orphans))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))
}

func TestStreamMetrics(t *testing.T) {
	m := newStreamMetrics(prometheus.NewRegistry())
	var _ stream.Metrics = m

	m.ObserveStreamOp(stream.DirectionRead, 100, time.Microsecond)
	m.ObserveStreamOp(stream.DirectionRead, 50, time.Microsecond)
	m.ObserveProtocolOp(stream.DirectionWrite, 4096, time.Millisecond, nil)
	m.ObserveProtocolOp(stream.DirectionWrite, 0, time.Millisecond, errors.New("io"))
	m.RecordPrefetch(true)
	m.RecordPrefetch(false)
	m.RecordPrefetch(true)
	m.RecordBackpressure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.streamOps.WithLabelValues("read")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.streamBytes.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.protocolOps.WithLabelValues("write", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.protocolOps.WithLabelValues("write", "error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.protocolBytes.WithLabelValues("write")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.prefetch.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prefetch.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backpressure))
}

func TestHandleCacheMetrics(t *testing.T) {
	m := newHandleCacheMetrics(prometheus.NewRegistry())
	cache := handlecache.New(2, m)

	cache.Put("/a", []byte{1})
	cache.Put("/b", []byte{2})
	cache.Put("/c", []byte{3})
	_, _ = cache.Get("/c")
	_, _ = cache.Get("/a")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.size))
}

func TestServer(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())
	NewTransportMetrics().RecordReconnect()

	server, err := NewServer(ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", server.Addr()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "nfsgate_rpc_reconnects_total 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
