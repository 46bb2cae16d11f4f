package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/pkg/store"
	storetesting "github.com/marmos91/nfsgate/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			return New(Config{})
		},
	}
	suite.Run(t)
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()

	t.Run("FailNext", func(t *testing.T) {
		s := New(Config{})
		s.FailNext(types.NFSProcGetAttr, types.NFS3ErrIO, 2)

		for i := 0; i < 2; i++ {
			resp, err := s.GetAttr(ctx, s.RootHandle())
			require.NoError(t, err)
			assert.Equal(t, types.NFS3ErrIO, resp.Status)
		}

		resp, err := s.GetAttr(ctx, s.RootHandle())
		require.NoError(t, err)
		assert.Equal(t, types.NFS3OK, resp.Status)
		assert.Equal(t, 3, s.Calls(types.NFSProcGetAttr))

		s.ResetCalls()
		assert.Zero(t, s.Calls(types.NFSProcGetAttr))
	})

	t.Run("Hook", func(t *testing.T) {
		s := New(Config{})
		boom := errors.New("connection reset")
		s.SetHook(func(ctx context.Context, proc uint32) error {
			if proc == types.NFSProcLookup {
				return boom
			}
			return nil
		})

		_, err := s.Lookup(ctx, s.RootHandle(), "x")
		assert.ErrorIs(t, err, boom)

		s.SetHook(nil)
		resp, err := s.Lookup(ctx, s.RootHandle(), "x")
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrNoEnt, resp.Status)
	})

	t.Run("Invalidate", func(t *testing.T) {
		s := New(Config{})
		created, err := s.Create(ctx, s.RootHandle(), "file", types.CreateUnchecked, types.SetAttrs{})
		require.NoError(t, err)
		old := created.Handle

		require.True(t, s.Invalidate(old))

		attr, err := s.GetAttr(ctx, old)
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrStale, attr.Status)

		lookup, err := s.Lookup(ctx, s.RootHandle(), "file")
		require.NoError(t, err)
		require.Equal(t, types.NFS3OK, lookup.Status)
		assert.NotEqual(t, []byte(old), lookup.Handle)

		assert.False(t, s.Invalidate(old))
	})

	t.Run("BadHandle", func(t *testing.T) {
		s := New(Config{})
		resp, err := s.GetAttr(ctx, store.FileHandle{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, types.NFS3ErrBadHandle, resp.Status)
	})

	t.Run("Closed", func(t *testing.T) {
		s := New(Config{})
		require.NoError(t, s.Close())

		_, err := s.GetAttr(ctx, s.RootHandle())
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.Null(ctx), ErrClosed)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		s := New(Config{})
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.GetAttr(canceled, s.RootHandle())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReadClampsToMaxReadSize(t *testing.T) {
	ctx := context.Background()
	s := New(Config{MaxReadSize: 4})

	created, err := s.Create(ctx, s.RootHandle(), "file", types.CreateUnchecked, types.SetAttrs{})
	require.NoError(t, err)
	_, err = s.Write(ctx, created.Handle, 0, types.WriteUnstable, []byte("0123456789"))
	require.NoError(t, err)

	resp, err := s.Read(ctx, created.Handle, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), resp.Data)
	assert.False(t, resp.Eof)

	info, err := s.FsInfo(ctx, s.RootHandle())
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.Info.Rtmax)
}
