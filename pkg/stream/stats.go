package stream

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// Statistics counts the work done by one stream, both as seen by its caller
// (stream level) and as issued to the server (protocol level).
type Statistics struct {
	streamBytes    atomic.Int64
	streamOps      atomic.Int64
	streamNanos    atomic.Int64
	protocolBytes  atomic.Int64
	protocolOps    atomic.Int64
	protocolNanos  atomic.Int64
	prefetchHits   atomic.Int64
	prefetchMisses atomic.Int64
	backpressure   atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	StreamBytes      int64
	StreamOps        int64
	StreamTime       time.Duration
	ProtocolBytes    int64
	ProtocolOps      int64
	ProtocolTime     time.Duration
	PrefetchHits     int64
	PrefetchMisses   int64
	BackpressureWait int64
}

func (s *Statistics) addStream(bytes int, elapsed time.Duration) {
	s.streamBytes.Add(int64(bytes))
	s.streamOps.Inc()
	s.streamNanos.Add(int64(elapsed))
}

func (s *Statistics) addProtocol(bytes int, elapsed time.Duration) {
	s.protocolBytes.Add(int64(bytes))
	s.protocolOps.Inc()
	s.protocolNanos.Add(int64(elapsed))
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		StreamBytes:      s.streamBytes.Load(),
		StreamOps:        s.streamOps.Load(),
		StreamTime:       time.Duration(s.streamNanos.Load()),
		ProtocolBytes:    s.protocolBytes.Load(),
		ProtocolOps:      s.protocolOps.Load(),
		ProtocolTime:     time.Duration(s.protocolNanos.Load()),
		PrefetchHits:     s.prefetchHits.Load(),
		PrefetchMisses:   s.prefetchMisses.Load(),
		BackpressureWait: s.backpressure.Load(),
	}
}

// StreamBandwidth returns caller-visible throughput in bytes per second.
func (s Snapshot) StreamBandwidth() float64 {
	return bandwidth(s.StreamBytes, s.StreamTime)
}

// ProtocolBandwidth returns server-side throughput in bytes per second.
func (s Snapshot) ProtocolBandwidth() float64 {
	return bandwidth(s.ProtocolBytes, s.ProtocolTime)
}

// StreamLatency returns the mean duration of a caller operation.
func (s Snapshot) StreamLatency() time.Duration {
	return latency(s.StreamTime, s.StreamOps)
}

// ProtocolLatency returns the mean duration of a remote call.
func (s Snapshot) ProtocolLatency() time.Duration {
	return latency(s.ProtocolTime, s.ProtocolOps)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"stream: %d bytes in %d ops (%.1f KiB/s, %v/op), protocol: %d bytes in %d ops (%.1f KiB/s, %v/op)",
		s.StreamBytes, s.StreamOps, s.StreamBandwidth()/1024, s.StreamLatency(),
		s.ProtocolBytes, s.ProtocolOps, s.ProtocolBandwidth()/1024, s.ProtocolLatency(),
	)
}

func bandwidth(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

func latency(total time.Duration, ops int64) time.Duration {
	if ops == 0 {
		return 0
	}
	return total / time.Duration(ops)
}
