package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
)

// WriteStore is the part of store.Store a write stream needs.
type WriteStore interface {
	GetAttr(ctx context.Context, handle store.FileHandle) (*nfs.GetAttrResponse, error)
	Write(ctx context.Context, handle store.FileHandle, offset uint64, stable uint32, data []byte) (*nfs.WriteResponse, error)
	Commit(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.CommitResponse, error)
}

// Writer accumulates sequential writes into blocks and sends each block to
// the server asynchronously as UNSTABLE writes once the writer moves past it.
// Flush is the durability barrier: it waits for every write-back and then
// commits. A Writer serializes its callers.
type Writer struct {
	mu sync.Mutex

	store   WriteStore
	handle  store.FileHandle
	path    string
	opts    Options
	metrics Metrics
	stats   Statistics

	pos     int64
	current *Block
	ongoing []*future
	pool    *workerPool

	// failed holds write-back errors not yet reported to the caller.
	failed *multierror.Error

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewWriter opens a write stream on handle. With appendMode the stream starts
// at the file size reported by the server, otherwise at offset 0; truncation
// is the caller's business.
func NewWriter(ctx context.Context, st WriteStore, handle store.FileHandle, path string, appendMode bool, opts Options, metrics Metrics) (*Writer, error) {
	opts = opts.normalize()
	if opts.BlockBits < MinBlockBits || opts.BlockBits > MaxBlockBits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockBits, opts.BlockBits)
	}

	var pos int64
	if appendMode {
		resp, err := st.GetAttr(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("open %s for append: %w", path, err)
		}
		if err := store.CheckStatus("GETATTR", path, resp.Status); err != nil {
			return nil, err
		}
		if resp.Attr.IsDir() {
			return nil, store.CheckStatus("WRITE", path, types.NFS3ErrIsDir)
		}
		pos = int64(resp.Attr.Size)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	w := &Writer{
		store:   st,
		handle:  handle,
		path:    path,
		opts:    opts,
		metrics: orNoop(metrics),
		pos:     pos,
		pool:    newWorkerPool(opts.WriteWorkers, opts.WriteWorkers),
		ctx:     streamCtx,
		cancel:  cancel,
	}

	logger.Debug("Opened write stream %s: offset=%d block=%d append=%v", path, pos, 1<<opts.BlockBits, appendMode)
	return w, nil
}

// Position returns the offset the next Write lands at.
func (w *Writer) Position() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// Stats returns the stream counters.
func (w *Writer) Stats() Snapshot { return w.stats.Snapshot() }

// Write implements io.Writer. Data is buffered; a failed write-back of an
// earlier block is reported by the next Write, Flush or Close.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	if err := w.takeFailure(); err != nil {
		return 0, err
	}

	start := time.Now()
	n := 0
	for n < len(p) {
		id := w.pos >> w.opts.BlockBits
		if w.current == nil || w.current.id != id {
			if w.current != nil {
				w.flushBlock(w.current)
				w.current = nil
			}
			block, err := NewBlock(id, w.opts.BlockBits)
			if err != nil {
				return n, err
			}
			w.current = block
		}

		m, err := w.current.WriteAt(p[n:], int(w.pos-id<<w.opts.BlockBits))
		if err != nil {
			return n, err
		}
		n += m
		w.pos += int64(m)
	}

	elapsed := time.Since(start)
	w.stats.addStream(n, elapsed)
	w.metrics.ObserveStreamOp(DirectionWrite, n, elapsed)
	return n, nil
}

// Flush sends the current block, waits for all outstanding write-backs and
// commits the file on the server.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.flushLocked()
}

// Close flushes the stream and stops the write-back pool. Calling Close again
// is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.flushLocked(); err != nil {
		result = multierror.Append(result, err)
	}
	if !w.pool.shutdown(w.opts.CloseTimeout) {
		result = multierror.Append(result, fmt.Errorf("close %s: %w", w.path, ErrDrainTimeout))
	}
	w.cancel()

	logger.Info("Closed write stream %s: %s", w.path, w.stats.Snapshot())
	return result.ErrorOrNil()
}

func (w *Writer) flushLocked() error {
	if w.current != nil {
		w.flushBlock(w.current)
		w.current = nil
	}

	for _, f := range w.ongoing {
		if err := f.wait(); err != nil {
			w.failed = multierror.Append(w.failed, err)
		}
	}
	w.ongoing = w.ongoing[:0]

	if err := w.takeFailure(); err != nil {
		return err
	}
	return w.commit()
}

// flushBlock hands block to the write-back pool. Once MaxOngoingWrites
// write-backs are outstanding it waits for the oldest ones first.
func (w *Writer) flushBlock(block *Block) {
	w.reapWrites()

	if len(w.ongoing) >= w.opts.MaxOngoingWrites {
		w.stats.backpressure.Inc()
		w.metrics.RecordBackpressure()
		logger.Debug("Write stream %s: %d write-backs outstanding, waiting", w.path, len(w.ongoing))

		for len(w.ongoing) >= w.opts.MaxOngoingWrites {
			if err := w.ongoing[0].wait(); err != nil {
				w.failed = multierror.Append(w.failed, err)
			}
			w.ongoing = w.ongoing[1:]
		}
	}

	f := newFuture(block)
	w.ongoing = append(w.ongoing, f)
	w.pool.submit(func() {
		err := w.writeBlock(w.ctx, block)
		block.Release()
		f.complete(err)
	})
}

// reapWrites drops completed write-backs from the ongoing list.
func (w *Writer) reapWrites() {
	pending := w.ongoing[:0]
	for _, f := range w.ongoing {
		if !f.isDone() {
			pending = append(pending, f)
			continue
		}
		if f.err != nil {
			w.failed = multierror.Append(w.failed, f.err)
		}
	}
	clear(w.ongoing[len(pending):])
	w.ongoing = pending
}

func (w *Writer) takeFailure() error {
	err := w.failed.ErrorOrNil()
	w.failed = nil
	return err
}

// writeBlock sends the valid range of block. It runs on pool workers.
func (w *Writer) writeBlock(ctx context.Context, block *Block) error {
	data := block.Bytes()
	if len(data) == 0 {
		return nil
	}
	offset := block.FileOffset()

	start := time.Now()
	resp, err := w.store.Write(ctx, w.handle, uint64(offset), types.WriteUnstable, data)
	elapsed := time.Since(start)
	if err == nil {
		err = store.CheckStatus("WRITE", w.path, resp.Status)
	}
	if err == nil && int(resp.Count) != len(data) {
		err = fmt.Errorf("%w: %d of %d bytes at offset %d", ErrShortWrite, resp.Count, len(data), offset)
	}
	if err != nil {
		w.metrics.ObserveProtocolOp(DirectionWrite, 0, elapsed, err)
		return fmt.Errorf("write block %d of %s: %w", block.id, w.path, err)
	}

	w.stats.addProtocol(len(data), elapsed)
	w.metrics.ObserveProtocolOp(DirectionWrite, len(data), elapsed, nil)
	return nil
}

func (w *Writer) commit() error {
	start := time.Now()
	resp, err := w.store.Commit(w.ctx, w.handle, 0, 0)
	elapsed := time.Since(start)
	if err == nil {
		err = store.CheckStatus("COMMIT", w.path, resp.Status)
	}
	w.metrics.ObserveProtocolOp(DirectionCommit, 0, elapsed, err)
	if err != nil {
		return fmt.Errorf("commit %s: %w", w.path, err)
	}
	return nil
}
