package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/transport"
)

// ReadStore is the part of store.Store a read stream needs.
type ReadStore interface {
	GetAttr(ctx context.Context, handle store.FileHandle) (*nfs.GetAttrResponse, error)
	Read(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error)
}

// Reader is a seekable read view of a remote file.
//
// The file length is snapshotted when the stream is opened; bytes past it are
// never returned even if the file grows. Reads are served block by block from
// a cache filled by a read-ahead pool. A Reader serializes its callers.
type Reader struct {
	mu sync.Mutex

	store   ReadStore
	handle  store.FileHandle
	path    string
	opts    Options
	metrics Metrics
	stats   Statistics

	length    int64
	pos       int64
	blockSize int64

	// prefetchLimit is the last block id read-ahead may schedule.
	prefetchLimit int64

	current  *Block
	inflight map[int64]*future
	ready    *btree.BTree
	pool     *workerPool

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewReader opens a read stream on handle. path is only used for errors and
// logging. ctx bounds every remote call made by the stream.
func NewReader(ctx context.Context, st ReadStore, handle store.FileHandle, path string, opts Options, metrics Metrics) (*Reader, error) {
	opts = opts.normalize()
	if opts.BlockBits < MinBlockBits || opts.BlockBits > MaxBlockBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockBits, opts.BlockBits)
	}

	resp, err := st.GetAttr(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := store.CheckStatus("GETATTR", path, resp.Status); err != nil {
		return nil, err
	}
	if resp.Attr.IsDir() {
		return nil, store.CheckStatus("READ", path, types.NFS3ErrIsDir)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	r := &Reader{
		store:     st,
		handle:    handle,
		path:      path,
		opts:      opts,
		metrics:   orNoop(metrics),
		length:    int64(resp.Attr.Size),
		blockSize: int64(1) << opts.BlockBits,
		inflight:  make(map[int64]*future),
		ready:     btree.New(8),
		ctx:       streamCtx,
		cancel:    cancel,
	}
	if !opts.DisablePrefetch {
		r.pool = newWorkerPool(opts.PrefetchWorkers, opts.PrefetchWorkers)
	}
	r.resetPrefetchLimit()

	logger.Debug("Opened read stream %s: length=%d block=%d", path, r.length, r.blockSize)
	return r, nil
}

// Len returns the file length snapshotted at open.
func (r *Reader) Len() int64 { return r.length }

// Stats returns the stream counters.
func (r *Reader) Stats() Snapshot { return r.stats.Snapshot() }

// Position returns the current offset.
func (r *Reader) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Seek implements io.Seeker. Positions outside [0, Len()] are rejected.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.length + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 || target > r.length {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrSeekOutOfRange, target, r.length)
	}

	r.pos = target
	r.resetPrefetchLimit()
	return target, nil
}

// Read implements io.Reader. A read at the end of the file returns 0, io.EOF.
// A block that cannot be served after some bytes were copied ends the read
// early; the error surfaces on the next call.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.pos >= r.length {
		return 0, io.EOF
	}

	start := time.Now()
	if remaining := r.length - r.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n := 0
	for n < len(p) {
		id := r.pos >> r.opts.BlockBits
		block, err := r.getBlock(id)
		if err != nil {
			if n == 0 {
				return 0, err
			}
			logger.Debug("Short read on %s at offset %d: %v", r.path, r.pos, err)
			break
		}

		m, err := block.ReadAt(p[n:], int(r.pos-id<<r.opts.BlockBits))
		if m == 0 || err != nil {
			break
		}
		n += m
		r.pos += int64(m)
	}

	if n == 0 {
		return 0, io.EOF
	}

	elapsed := time.Since(start)
	r.stats.addStream(n, elapsed)
	r.metrics.ObserveStreamOp(DirectionRead, n, elapsed)
	return n, nil
}

// Close stops read-ahead, waiting up to the close timeout for in-flight
// fetches, and releases cached blocks. Calling Close again is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	drained := true
	if r.pool != nil {
		drained = r.pool.shutdown(r.opts.CloseTimeout)
	}
	r.cancel()

	if drained {
		for id, f := range r.inflight {
			f.block.Release()
			delete(r.inflight, id)
		}
	} else {
		// Stragglers may still write into their blocks; leave them to the GC.
		logger.Warn("Read stream %s: %d prefetches still running after %v", r.path, len(r.inflight), r.opts.CloseTimeout)
	}
	r.ready.Ascend(func(item btree.Item) bool {
		item.(*Block).Release()
		return true
	})
	r.ready.Clear(false)
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}

	logger.Info("Closed read stream %s: %s", r.path, r.stats.Snapshot())
	return nil
}

func (r *Reader) resetPrefetchLimit() {
	end := min(r.length, r.pos+int64(1)<<r.opts.SplitBits)
	r.prefetchLimit = (end - 1) >> r.opts.BlockBits
}

// getBlock returns the block with the given id, ready for reading.
func (r *Reader) getBlock(id int64) (*Block, error) {
	if r.current != nil && r.current.id == id {
		return r.current, nil
	}

	if r.pool != nil {
		if id > r.prefetchLimit {
			r.resetPrefetchLimit()
		}
		r.schedulePrefetch(id)
	}

	if f, ok := r.inflight[id]; ok {
		delete(r.inflight, id)
		err := f.wait()
		r.reapPrefetches()
		if err == nil {
			r.setCurrent(f.block)
			r.stats.prefetchHits.Inc()
			r.metrics.RecordPrefetch(true)
			return f.block, nil
		}
		logger.Debug("Prefetch of block %d of %s failed: %v", id, r.path, err)
		f.block.Release()
	} else {
		r.reapPrefetches()
	}

	if item := r.ready.Delete(&Block{id: id}); item != nil {
		block := item.(*Block)
		r.setCurrent(block)
		r.stats.prefetchHits.Inc()
		r.metrics.RecordPrefetch(true)
		return block, nil
	}

	r.stats.prefetchMisses.Inc()
	r.metrics.RecordPrefetch(false)

	// Direct fetch, bounded so a persistently failing block cannot stall the
	// reader forever. Only transient failures are retried.
	var lastErr error
	attempts := 0
	backoff := r.opts.FetchBackoff
	for attempts <= r.opts.MaxFetchRetries {
		if lastErr != nil {
			if err := sleepContext(r.ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		block, err := NewBlock(id, r.opts.BlockBits)
		if err != nil {
			return nil, err
		}
		attempts++
		if err := r.fetch(r.ctx, block); err != nil {
			block.Release()
			lastErr = err
			logger.Debug("Fetch of block %d of %s failed (attempt %d): %v", id, r.path, attempts, err)
			if !retryable(err) {
				break
			}
			continue
		}
		r.setCurrent(block)
		return block, nil
	}
	return nil, fmt.Errorf("%w: block %d of %s after %d attempts: %w", ErrFetchFailed, id, r.path, attempts, lastErr)
}

// retryable reports whether a failed fetch may succeed when sent again. NFS
// statuses are final except JUKEBOX, which asks the client to retry later.
func retryable(err error) bool {
	if status, ok := store.StatusOf(err); ok {
		return status == types.NFS3ErrJukebox
	}
	return transport.IsTransient(err) || errors.Is(err, ErrUnexpectedEOF)
}

func (r *Reader) schedulePrefetch(id int64) {
	window := int64(r.opts.PrefetchWorkers - 1)
	for next := id + 1; next <= id+window && next <= r.prefetchLimit; next++ {
		if _, ok := r.inflight[next]; ok {
			continue
		}
		if r.ready.Has(&Block{id: next}) {
			continue
		}
		if r.current != nil && r.current.id == next {
			continue
		}

		block, err := NewBlock(next, r.opts.BlockBits)
		if err != nil {
			return
		}
		f := newFuture(block)
		r.inflight[next] = f
		r.pool.submit(func() {
			f.complete(r.fetch(r.ctx, block))
		})
	}
}

// reapPrefetches moves finished prefetches into the ready cache.
func (r *Reader) reapPrefetches() {
	for id, f := range r.inflight {
		if !f.isDone() {
			continue
		}
		delete(r.inflight, id)
		if f.err != nil {
			f.block.Release()
			continue
		}
		r.insertReady(f.block)
	}
}

// insertReady caches a fetched block, evicting the lowest block ids when the
// cache is full.
func (r *Reader) insertReady(block *Block) {
	if old := r.ready.ReplaceOrInsert(block); old != nil {
		old.(*Block).Release()
	}
	for r.ready.Len() > r.opts.CachedBlocks {
		r.ready.DeleteMin().(*Block).Release()
	}
}

func (r *Reader) setCurrent(block *Block) {
	if r.current != nil {
		r.current.Release()
	}
	r.current = block
}

// fetch fills block from the server. It runs on pool workers and must not
// touch Reader state guarded by mu.
func (r *Reader) fetch(ctx context.Context, block *Block) error {
	base := block.id << r.opts.BlockBits
	size := block.Size()
	filled := 0

	for filled < size {
		start := time.Now()
		resp, err := r.store.Read(ctx, r.handle, uint64(base)+uint64(filled), uint32(size-filled))
		elapsed := time.Since(start)
		if err == nil {
			err = store.CheckStatus("READ", r.path, resp.Status)
		}
		if err != nil {
			r.metrics.ObserveProtocolOp(DirectionRead, 0, elapsed, err)
			return fmt.Errorf("read block %d: %w", block.id, err)
		}

		r.stats.addProtocol(len(resp.Data), elapsed)
		r.metrics.ObserveProtocolOp(DirectionRead, len(resp.Data), elapsed, nil)

		if len(resp.Data) > 0 {
			if _, err := block.WriteAt(resp.Data, filled); err != nil {
				return err
			}
			filled += len(resp.Data)
		}
		if resp.Eof {
			break
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("read block %d at offset %d: %w", block.id, base+int64(filled), ErrUnexpectedEOF)
		}
	}

	block.MarkReady()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
