package stream

import "time"

// Defaults for stream tuning.
const (
	DefaultBlockBits        = 20
	DefaultSplitBits        = 28
	DefaultPrefetchWorkers  = 128
	MaxPrefetchWorkers      = 512
	DefaultCachedBlocks     = 512
	DefaultWriteWorkers     = 4
	MaxWriteWorkers         = 256
	DefaultMaxOngoingWrites = 64
	DefaultCloseTimeout     = 60 * time.Second
	DefaultMaxFetchRetries  = 3
	DefaultFetchBackoff     = 50 * time.Millisecond
)

// Options tunes read and write streams. Zero fields take their defaults.
type Options struct {
	// BlockBits is log2 of the block size used for remote READ/WRITE calls.
	BlockBits uint

	// DisablePrefetch turns read-ahead off; every block is fetched on demand.
	DisablePrefetch bool

	// PrefetchWorkers is the width of a read stream's prefetch pool. The
	// read-ahead window is PrefetchWorkers-1 blocks.
	PrefetchWorkers int

	// CachedBlocks bounds the number of fetched blocks a read stream keeps.
	CachedBlocks int

	// SplitBits is log2 of the split size: read-ahead never goes further than
	// split size bytes past the position prefetching was (re)started from.
	SplitBits uint

	// MaxFetchRetries bounds direct fetch attempts of a block the prefetcher
	// did not deliver.
	MaxFetchRetries int

	// FetchBackoff is the delay before the first fetch retry, doubled after
	// each failure.
	FetchBackoff time.Duration

	// WriteWorkers is the width of a write stream's write-back pool.
	WriteWorkers int

	// MaxOngoingWrites is the number of outstanding write-backs after which
	// a writer waits for completions before submitting more.
	MaxOngoingWrites int

	// CloseTimeout bounds the wait for workers when a stream is closed.
	CloseTimeout time.Duration
}

// DefaultOptions returns the default stream tuning.
func DefaultOptions() Options {
	return Options{}.normalize()
}

func (o Options) normalize() Options {
	if o.BlockBits == 0 {
		o.BlockBits = DefaultBlockBits
	}
	if o.SplitBits == 0 {
		o.SplitBits = DefaultSplitBits
	}
	if o.SplitBits < o.BlockBits {
		o.SplitBits = o.BlockBits
	}
	o.PrefetchWorkers = clamp(o.PrefetchWorkers, DefaultPrefetchWorkers, 1, MaxPrefetchWorkers)
	if o.CachedBlocks <= 0 {
		o.CachedBlocks = DefaultCachedBlocks
	}
	if o.MaxFetchRetries <= 0 {
		o.MaxFetchRetries = DefaultMaxFetchRetries
	}
	if o.FetchBackoff <= 0 {
		o.FetchBackoff = DefaultFetchBackoff
	}
	o.WriteWorkers = clamp(o.WriteWorkers, DefaultWriteWorkers, 1, MaxWriteWorkers)
	if o.MaxOngoingWrites <= 0 {
		o.MaxOngoingWrites = DefaultMaxOngoingWrites
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	return o
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	return max(lo, min(v, hi))
}
