package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsNormalize(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		o := DefaultOptions()
		assert.Equal(t, uint(DefaultBlockBits), o.BlockBits)
		assert.Equal(t, uint(DefaultSplitBits), o.SplitBits)
		assert.Equal(t, DefaultPrefetchWorkers, o.PrefetchWorkers)
		assert.Equal(t, DefaultCachedBlocks, o.CachedBlocks)
		assert.Equal(t, DefaultWriteWorkers, o.WriteWorkers)
		assert.Equal(t, DefaultMaxOngoingWrites, o.MaxOngoingWrites)
		assert.Equal(t, DefaultCloseTimeout, o.CloseTimeout)
	})

	t.Run("Clamping", func(t *testing.T) {
		o := Options{PrefetchWorkers: 10000, WriteWorkers: -3}.normalize()
		assert.Equal(t, MaxPrefetchWorkers, o.PrefetchWorkers)
		assert.Equal(t, 1, o.WriteWorkers)

		o = Options{WriteWorkers: 1000}.normalize()
		assert.Equal(t, MaxWriteWorkers, o.WriteWorkers)
	})

	t.Run("SplitNotSmallerThanBlock", func(t *testing.T) {
		o := Options{BlockBits: 22, SplitBits: 10}.normalize()
		assert.Equal(t, uint(22), o.SplitBits)
	})

	t.Run("KeepsExplicitValues", func(t *testing.T) {
		o := Options{BlockBits: 12, FetchBackoff: time.Millisecond, MaxOngoingWrites: 2}.normalize()
		assert.Equal(t, uint(12), o.BlockBits)
		assert.Equal(t, time.Millisecond, o.FetchBackoff)
		assert.Equal(t, 2, o.MaxOngoingWrites)
	})
}

func TestSnapshot(t *testing.T) {
	var s Statistics
	s.addStream(2048, time.Second)
	s.addProtocol(1024, 500*time.Millisecond)
	s.addProtocol(1024, 500*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, int64(2048), snap.StreamBytes)
	assert.Equal(t, int64(2), snap.ProtocolOps)
	assert.InDelta(t, 2048.0, snap.StreamBandwidth(), 0.01)
	assert.InDelta(t, 2048.0, snap.ProtocolBandwidth(), 0.01)
	assert.Equal(t, 500*time.Millisecond, snap.ProtocolLatency())
	assert.Contains(t, snap.String(), "2048 bytes")

	assert.Zero(t, Snapshot{}.StreamLatency())
	assert.Zero(t, Snapshot{}.StreamBandwidth())
}
