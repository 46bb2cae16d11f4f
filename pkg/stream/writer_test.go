package stream

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTripDefaultBlocks", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)
		data := randomBytes(1<<20 + 1)

		w, err := NewWriter(ctx, s, handle, "/f", false, Options{}, nil)
		require.NoError(t, err)

		for off := 0; off < len(data); off += 4096 {
			n, err := w.Write(data[off:min(off+4096, len(data))])
			require.NoError(t, err)
			require.Positive(t, n)
		}
		require.NoError(t, w.Close())

		assert.Equal(t, 2, s.Calls(types.NFSProcWrite))
		assert.Equal(t, 1, s.Calls(types.NFSProcCommit))
		assert.Equal(t, data, contentOf(t, s, handle))

		stats := w.Stats()
		assert.Equal(t, int64(len(data)), stats.StreamBytes)
		assert.Equal(t, int64(len(data)), stats.ProtocolBytes)
		assert.Equal(t, int64(2), stats.ProtocolOps)
	})

	t.Run("ReadBack", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)
		data := randomBytes(10_000)

		w, err := NewWriter(ctx, s, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)
		n, err := w.Write(data)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equal(t, int64(len(data)), w.Position())
		require.NoError(t, w.Close())

		r, err := NewReader(ctx, s, handle, "/f", smallBlocks(), nil)
		require.NoError(t, err)
		defer r.Close()

		got := make([]byte, len(data)+10)
		total := 0
		for {
			m, err := r.Read(got[total:])
			total += m
			if err != nil {
				break
			}
		}
		assert.Equal(t, data, got[:total])
	})

	t.Run("FlushCommits", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)

		w, err := NewWriter(ctx, s, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)
		defer w.Close()

		_, err = w.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Zero(t, s.Calls(types.NFSProcWrite))

		require.NoError(t, w.Flush())
		assert.Equal(t, 1, s.Calls(types.NFSProcWrite))
		assert.Equal(t, 1, s.Calls(types.NFSProcCommit))
		assert.Equal(t, []byte("hello"), contentOf(t, s, handle))

		// The stream stays usable after a flush.
		_, err = w.Write([]byte(" world"))
		require.NoError(t, err)
		require.NoError(t, w.Flush())
		assert.Equal(t, []byte("hello world"), contentOf(t, s, handle))
	})

	t.Run("Append", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", []byte("hello"))

		w, err := NewWriter(ctx, s, handle, "/f", true, smallBlocks(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5), w.Position())

		_, err = w.Write([]byte(" world"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Equal(t, []byte("hello world"), contentOf(t, s, handle))
	})

	t.Run("AppendAcrossBlocks", func(t *testing.T) {
		s := memory.New(memory.Config{})
		prefix := randomBytes(1000)
		handle := newFile(t, s, "f", prefix)
		tail := randomBytes(3000)

		w, err := NewWriter(ctx, s, handle, "/f", true, smallBlocks(), nil)
		require.NoError(t, err)
		_, err = w.Write(tail)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Equal(t, append(prefix, tail...), contentOf(t, s, handle))
	})

	t.Run("Backpressure", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)
		s.SetHook(func(ctx context.Context, proc uint32) error {
			if proc == types.NFSProcWrite {
				time.Sleep(5 * time.Millisecond)
			}
			return nil
		})

		opts := smallBlocks()
		opts.WriteWorkers = 4
		opts.MaxOngoingWrites = 2
		w, err := NewWriter(ctx, s, handle, "/f", false, opts, nil)
		require.NoError(t, err)

		data := randomBytes(8 * 1024)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Positive(t, w.Stats().BackpressureWait)
		assert.Equal(t, 8, s.Calls(types.NFSProcWrite))
		assert.Equal(t, data, contentOf(t, s, handle))
	})

	t.Run("WriteBackFailure", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)
		s.FailNext(types.NFSProcWrite, types.NFS3ErrNoSpc, 1)

		w, err := NewWriter(ctx, s, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)

		_, err = w.Write(randomBytes(3 * 1024))
		require.NoError(t, err)

		err = w.Close()
		require.Error(t, err)
		assert.True(t, store.IsStatus(err, types.NFS3ErrNoSpc))
		assert.Zero(t, s.Calls(types.NFSProcCommit))
	})

	t.Run("CommitFailure", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)
		s.FailNext(types.NFSProcCommit, types.NFS3ErrIO, 1)

		w, err := NewWriter(ctx, s, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)
		defer w.Close()

		_, err = w.Write([]byte("data"))
		require.NoError(t, err)

		err = w.Flush()
		assert.True(t, store.IsStatus(err, types.NFS3ErrIO))

		require.NoError(t, w.Flush())
	})

	t.Run("ShortWrite", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)

		w, err := NewWriter(ctx, &shortWriter{Store: s}, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)
		_, err = w.Write([]byte("data"))
		require.NoError(t, err)

		assert.ErrorIs(t, w.Close(), ErrShortWrite)
	})

	t.Run("AppendToDirectory", func(t *testing.T) {
		s := memory.New(memory.Config{})

		_, err := NewWriter(ctx, s, s.RootHandle(), "/", true, smallBlocks(), nil)
		assert.True(t, store.IsStatus(err, types.NFS3ErrIsDir))
	})

	t.Run("Closed", func(t *testing.T) {
		s := memory.New(memory.Config{})
		handle := newFile(t, s, "f", nil)

		w, err := NewWriter(ctx, s, handle, "/f", false, smallBlocks(), nil)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		_, err = w.Write([]byte("x"))
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, w.Flush(), ErrClosed)
	})
}
