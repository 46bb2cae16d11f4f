package stream

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/store/memory"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(buf)
	return buf
}

// newFile creates name under the root of s holding data.
func newFile(t *testing.T, s *memory.Store, name string, data []byte) store.FileHandle {
	t.Helper()
	ctx := context.Background()

	resp, err := s.Create(ctx, s.RootHandle(), name, types.CreateUnchecked, types.SetAttrs{})
	require.NoError(t, err)
	require.Equal(t, types.NFS3OK, resp.Status)

	for off := 0; off < len(data); off += 1 << 16 {
		end := min(off+1<<16, len(data))
		w, err := s.Write(ctx, resp.Handle, uint64(off), types.WriteFileSync, data[off:end])
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, w.Status)
	}
	return resp.Handle
}

// contentOf reads a whole file straight from the store.
func contentOf(t *testing.T, s *memory.Store, handle store.FileHandle) []byte {
	t.Helper()
	ctx := context.Background()

	var buf bytes.Buffer
	var off uint64
	for {
		resp, err := s.Read(ctx, handle, off, 1<<20)
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, resp.Status)
		buf.Write(resp.Data)
		off += uint64(len(resp.Data))
		if resp.Eof {
			return buf.Bytes()
		}
	}
}

// readFailer fails READ calls at or past a file offset.
type readFailer struct {
	*memory.Store
	from uint64
}

func (f *readFailer) Read(ctx context.Context, handle store.FileHandle, offset uint64, count uint32) (*nfs.ReadResponse, error) {
	if offset >= f.from {
		return &nfs.ReadResponse{Status: types.NFS3ErrIO}, nil
	}
	return f.Store.Read(ctx, handle, offset, count)
}

// shortWriter acknowledges one byte less than it was sent.
type shortWriter struct {
	*memory.Store
}

func (s *shortWriter) Write(ctx context.Context, handle store.FileHandle, offset uint64, stable uint32, data []byte) (*nfs.WriteResponse, error) {
	resp, err := s.Store.Write(ctx, handle, offset, stable, data)
	if err == nil && resp.Count > 0 {
		resp.Count--
	}
	return resp, err
}
