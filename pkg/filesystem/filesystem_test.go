package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"testing"
	"time"

	"github.com/marmos91/nfsgate/internal/nfstest"
	"github.com/marmos91/nfsgate/internal/protocol/nfs/types"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/pkg/handlecache"
	"github.com/marmos91/nfsgate/pkg/store"
	"github.com/marmos91/nfsgate/pkg/store/memory"
	"github.com/marmos91/nfsgate/pkg/store/nfs3"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/marmos91/nfsgate/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		UID: 1000,
		GID: 1000,
		Stream: stream.Options{
			BlockBits:       10,
			PrefetchWorkers: 4,
			FetchBackoff:    time.Millisecond,
			CloseTimeout:    5 * time.Second,
		},
	}
}

func newMemoryFS(t *testing.T) (*FileSystem, *memory.Store) {
	t.Helper()
	st := memory.New(memory.Config{})
	fsys, err := New(context.Background(), st, handlecache.New(64, nil), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })
	return fsys, st
}

func payload(n int) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(buf)
	return buf
}

func writeFile(t *testing.T, fsys *FileSystem, p string, data []byte) {
	t.Helper()
	w, err := fsys.Create(context.Background(), p, true)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readFile(t *testing.T, fsys *FileSystem, p string) []byte {
	t.Helper()
	r, err := fsys.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func names(statuses []FileStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.Name())
	}
	return out
}

func TestNewFitsBlocksToServerLimits(t *testing.T) {
	st := memory.New(memory.Config{MaxReadSize: 4096, MaxWriteSize: 3000})
	fsys, err := New(context.Background(), st, nil, Config{}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint(12), fsys.ReadOptions().BlockBits)
	assert.Equal(t, uint(11), fsys.WriteOptions().BlockBits)

	t.Run("SmallerConfiguredBlocksAreKept", func(t *testing.T) {
		fsys, err := New(context.Background(), st, nil, testConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, uint(10), fsys.ReadOptions().BlockBits)
		assert.Equal(t, uint(10), fsys.WriteOptions().BlockBits)
	})

	t.Run("FsInfoFailure", func(t *testing.T) {
		st.FailNext(types.NFSProcFsInfo, types.NFS3ErrServerFault, 1)
		_, err := New(context.Background(), st, nil, Config{}, nil)
		assert.True(t, store.IsStatus(err, types.NFS3ErrServerFault))
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesParents", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		data := payload(5000)
		writeFile(t, fsys, "/a/b/c.txt", data)

		assert.Equal(t, data, readFile(t, fsys, "/a/b/c.txt"))

		dir, err := fsys.GetFileStatus(ctx, "/a/b")
		require.NoError(t, err)
		assert.True(t, dir.IsDir)
		assert.Equal(t, uint32(DefaultDirMode), dir.Mode)
		assert.Equal(t, uint32(1000), dir.UID)

		file, err := fsys.GetFileStatus(ctx, "/a/b/c.txt")
		require.NoError(t, err)
		assert.False(t, file.IsDir)
		assert.Equal(t, int64(5000), file.Size)
		assert.Equal(t, uint32(DefaultFileMode), file.Mode)
		assert.Equal(t, uint32(1000), file.GID)
	})

	t.Run("ExistingWithoutOverwrite", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/f", []byte("data"))

		_, err := fsys.Create(ctx, "/f", false)
		assert.True(t, errors.Is(err, fs.ErrExist))
		assert.Equal(t, []byte("data"), readFile(t, fsys, "/f"))
	})

	t.Run("OverwriteTruncates", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/f", payload(3000))
		writeFile(t, fsys, "/f", []byte("short"))

		assert.Equal(t, []byte("short"), readFile(t, fsys, "/f"))
	})

	t.Run("Directory", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		require.NoError(t, fsys.Mkdirs(ctx, "/d"))

		_, err := fsys.Create(ctx, "/d", true)
		assert.True(t, store.IsStatus(err, types.NFS3ErrIsDir))
	})

	t.Run("Root", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		_, err := fsys.Create(ctx, "/", true)
		assert.ErrorIs(t, err, ErrRoot)
	})

	t.Run("ParentIsFile", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/f", nil)

		_, err := fsys.Create(ctx, "/f/g", true)
		assert.True(t, store.IsNotDir(err))
	})
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newMemoryFS(t)
	writeFile(t, fsys, "/log", []byte("hello "))

	w, err := fsys.Append(ctx, "/log")
	require.NoError(t, err)
	assert.Equal(t, int64(6), w.Position())
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, []byte("hello world"), readFile(t, fsys, "/log"))

	t.Run("Missing", func(t *testing.T) {
		_, err := fsys.Append(ctx, "/nope")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("Directory", func(t *testing.T) {
		_, err := fsys.Append(ctx, "/")
		assert.True(t, store.IsStatus(err, types.NFS3ErrIsDir))
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newMemoryFS(t)

	t.Run("Missing", func(t *testing.T) {
		_, err := fsys.Open(ctx, "/missing")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("Directory", func(t *testing.T) {
		_, err := fsys.Open(ctx, "/")
		assert.True(t, store.IsStatus(err, types.NFS3ErrIsDir))
	})

	t.Run("RelativePath", func(t *testing.T) {
		writeFile(t, fsys, "/x/y", []byte("relative"))
		assert.Equal(t, []byte("relative"), readFile(t, fsys, "x/./y"))
	})
}

func TestMkdirs(t *testing.T) {
	ctx := context.Background()
	fsys, st := newMemoryFS(t)

	require.NoError(t, fsys.Mkdirs(ctx, "/a/b/c"))
	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		status, err := fsys.GetFileStatus(ctx, p)
		require.NoError(t, err)
		assert.True(t, status.IsDir, p)
	}

	t.Run("Idempotent", func(t *testing.T) {
		st.ResetCalls()
		require.NoError(t, fsys.Mkdirs(ctx, "/a/b/c"))
		assert.Zero(t, st.Calls(types.NFSProcMkdir))
	})

	t.Run("LostRace", func(t *testing.T) {
		// Another client creates the directory just before our MKDIR.
		st.SetHook(func(ctx context.Context, proc uint32) error {
			if proc != types.NFSProcMkdir {
				return nil
			}
			st.SetHook(nil)
			_, err := st.Mkdir(ctx, st.RootHandle(), "raced", types.SetAttrs{})
			return err
		})

		require.NoError(t, fsys.Mkdirs(ctx, "/raced/inner"))
		status, err := fsys.GetFileStatus(ctx, "/raced/inner")
		require.NoError(t, err)
		assert.True(t, status.IsDir)
	})

	t.Run("FileInTheWay", func(t *testing.T) {
		writeFile(t, fsys, "/file", nil)
		assert.True(t, store.IsNotDir(fsys.Mkdirs(ctx, "/file/sub")))
		assert.True(t, errors.Is(fsys.Mkdirs(ctx, "/file"), fs.ErrExist))
	})

	t.Run("Root", func(t *testing.T) {
		assert.NoError(t, fsys.Mkdirs(ctx, "/"))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		deleted, err := fsys.Delete(ctx, "/missing", false)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("File", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/f", []byte("x"))

		deleted, err := fsys.Delete(ctx, "/f", false)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, ok := fsys.Cache().Get("/f")
		assert.False(t, ok)
		exists, err := fsys.Exists(ctx, "/f")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("NonEmptyDirectory", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("x"))

		_, err := fsys.Delete(ctx, "/d", false)
		assert.True(t, store.IsStatus(err, types.NFS3ErrNotEmpty))

		exists, err := fsys.Exists(ctx, "/d/f")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("EmptyDirectory", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		require.NoError(t, fsys.Mkdirs(ctx, "/d"))

		deleted, err := fsys.Delete(ctx, "/d", false)
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("Recursive", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		for i := range 30 {
			writeFile(t, fsys, fmt.Sprintf("/tree/f%02d", i), []byte("x"))
		}
		writeFile(t, fsys, "/tree/sub/deep/g", []byte("y"))
		require.NoError(t, fsys.Mkdirs(ctx, "/tree/empty"))

		deleted, err := fsys.Delete(ctx, "/tree", true)
		require.NoError(t, err)
		assert.True(t, deleted)

		assert.Equal(t, 31, st.Calls(types.NFSProcRemove))
		assert.Equal(t, 4, st.Calls(types.NFSProcRmdir))
		_, ok := fsys.Cache().Get("/tree/sub/deep/g")
		assert.False(t, ok)

		root, err := fsys.ListStatus(ctx, "/")
		require.NoError(t, err)
		assert.Empty(t, root)
	})

	t.Run("RecursiveCollectsErrors", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/a", nil)
		writeFile(t, fsys, "/d/b", nil)
		st.FailNext(types.NFSProcRemove, types.NFS3ErrAcces, 1)

		_, err := fsys.Delete(ctx, "/d", true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, fs.ErrPermission))

		left, err := fsys.ListStatus(ctx, "/d")
		require.NoError(t, err)
		assert.Len(t, left, 1)
	})

	t.Run("Root", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		_, err := fsys.Delete(ctx, "/", true)
		assert.ErrorIs(t, err, ErrRoot)
	})
}

func TestRename(t *testing.T) {
	ctx := context.Background()

	t.Run("ToNewName", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/a", []byte("content"))

		require.NoError(t, fsys.Rename(ctx, "/a", "/b"))
		assert.Equal(t, []byte("content"), readFile(t, fsys, "/b"))
		_, err := fsys.GetFileStatus(ctx, "/a")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("IntoDirectory", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/a", []byte("content"))
		require.NoError(t, fsys.Mkdirs(ctx, "/dir"))

		require.NoError(t, fsys.Rename(ctx, "/a", "/dir"))
		assert.Equal(t, []byte("content"), readFile(t, fsys, "/dir/a"))
	})

	t.Run("OntoFile", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/a", []byte("a"))
		writeFile(t, fsys, "/b", []byte("b"))

		err := fsys.Rename(ctx, "/a", "/b")
		assert.True(t, errors.Is(err, fs.ErrExist))
		assert.Equal(t, []byte("b"), readFile(t, fsys, "/b"))
	})

	t.Run("MissingSource", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		err := fsys.Rename(ctx, "/nope", "/b")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})

	t.Run("DirectoryDropsCachedSubtree", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		writeFile(t, fsys, "/src/x", []byte("x"))
		writeFile(t, fsys, "/src2/y", []byte("y"))
		_, ok := fsys.Cache().Get("/src/x")
		require.True(t, ok)

		require.NoError(t, fsys.Rename(ctx, "/src", "/dst"))

		_, ok = fsys.Cache().Get("/src/x")
		assert.False(t, ok)
		_, ok = fsys.Cache().Get("/src2/y")
		assert.True(t, ok)
		assert.Equal(t, []byte("x"), readFile(t, fsys, "/dst/x"))
	})

	t.Run("Root", func(t *testing.T) {
		fsys, _ := newMemoryFS(t)
		assert.ErrorIs(t, fsys.Rename(ctx, "/", "/x"), ErrRoot)
	})
}

func TestListStatus(t *testing.T) {
	ctx := context.Background()
	fsys, _ := newMemoryFS(t)
	writeFile(t, fsys, "/dir/b", []byte("bb"))
	writeFile(t, fsys, "/dir/a", []byte("a"))
	require.NoError(t, fsys.Mkdirs(ctx, "/dir/c"))

	statuses, err := fsys.ListStatus(ctx, "/dir")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(statuses))
	assert.Equal(t, "/dir/b", statuses[1].Path)
	assert.Equal(t, int64(2), statuses[1].Size)
	assert.True(t, statuses[2].IsDir)
	assert.True(t, statuses[2].FileMode().IsDir())

	t.Run("File", func(t *testing.T) {
		statuses, err := fsys.ListStatus(ctx, "/dir/a")
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "/dir/a", statuses[0].Path)
	})

	t.Run("Empty", func(t *testing.T) {
		statuses, err := fsys.ListStatus(ctx, "/dir/c")
		require.NoError(t, err)
		assert.Empty(t, statuses)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := fsys.ListStatus(ctx, "/nope")
		assert.True(t, errors.Is(err, fs.ErrNotExist))
	})
}

func TestFileMode(t *testing.T) {
	status := FileStatus{Mode: 0o4755, IsDir: true}
	mode := status.FileMode()
	assert.True(t, mode.IsDir())
	assert.Equal(t, fs.FileMode(0o755), mode.Perm())
	assert.NotZero(t, mode&fs.ModeSetuid)
}

func TestStaleHandles(t *testing.T) {
	ctx := context.Background()

	t.Run("CachedFile", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		old, ok := fsys.Cache().Get("/d/f")
		require.True(t, ok)
		require.True(t, st.Invalidate(old))

		status, err := fsys.GetFileStatus(ctx, "/d/f")
		require.NoError(t, err)
		assert.Equal(t, int64(4), status.Size)

		fresh, ok := fsys.Cache().Get("/d/f")
		require.True(t, ok)
		assert.False(t, bytes.Equal(old, fresh))
		assert.Equal(t, []byte("data"), readFile(t, fsys, "/d/f"))
	})

	t.Run("CachedParent", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		writeFile(t, fsys, "/d/g", []byte("more"))
		dir, ok := fsys.Cache().Get("/d")
		require.True(t, ok)
		fsys.Cache().Remove("/d/g")
		require.True(t, st.Invalidate(dir))

		assert.Equal(t, []byte("more"), readFile(t, fsys, "/d/g"))
		fresh, ok := fsys.Cache().Get("/d")
		require.True(t, ok)
		assert.False(t, bytes.Equal(dir, fresh))
	})

	t.Run("StaleDuringLookup", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		fsys.Cache().Clear()
		st.ResetCalls()
		st.FailNext(types.NFSProcLookup, types.NFS3ErrStale, 1)

		status, err := fsys.GetFileStatus(ctx, "/d/f")
		require.NoError(t, err)
		assert.Equal(t, int64(4), status.Size)
		assert.Equal(t, 3, st.Calls(types.NFSProcLookup))
	})

	t.Run("PersistentlyStale", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/f", []byte("data"))
		st.FailNext(types.NFSProcGetAttr, types.NFS3ErrStale, 2)
		st.FailNext(types.NFSProcLookup, types.NFS3ErrStale, 2)

		_, err := fsys.GetFileStatus(ctx, "/f")
		assert.True(t, store.IsStale(err))
	})

	t.Run("StaleDuringRead", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		r, err := fsys.Open(ctx, "/d/f")
		require.NoError(t, err)
		defer r.Close()
		handle, ok := fsys.Cache().Get("/d/f")
		require.True(t, ok)
		require.True(t, st.Invalidate(handle))

		_, err = r.Read(make([]byte, 4))
		assert.True(t, store.IsStale(err))
		_, ok = fsys.Cache().Get("/d/f")
		assert.False(t, ok)
		_, ok = fsys.Cache().Get("/d")
		assert.True(t, ok)
	})

	t.Run("StaleDuringWrite", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		w, err := fsys.Create(ctx, "/g", false)
		require.NoError(t, err)
		handle, ok := fsys.Cache().Get("/g")
		require.True(t, ok)
		require.True(t, st.Invalidate(handle))

		_, _ = w.Write([]byte("data"))
		assert.True(t, store.IsStale(w.Close()))
		_, ok = fsys.Cache().Get("/g")
		assert.False(t, ok)
	})

	t.Run("StaleDuringCommit", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		w, err := fsys.Create(ctx, "/g", false)
		require.NoError(t, err)
		defer w.Close()
		st.FailNext(types.NFSProcCommit, types.NFS3ErrStale, 1)

		assert.True(t, store.IsStale(w.Flush()))
		_, ok := fsys.Cache().Get("/g")
		assert.False(t, ok)
	})

	t.Run("StaleDuringReadDir", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		st.FailNext(types.NFSProcReadDir, types.NFS3ErrBadHandle, 1)

		_, err := fsys.ListStatus(ctx, "/d")
		assert.True(t, store.IsStale(err))
		_, ok := fsys.Cache().Get("/d")
		assert.False(t, ok)

		statuses, err := fsys.ListStatus(ctx, "/d")
		require.NoError(t, err)
		assert.Equal(t, []string{"f"}, names(statuses))
	})

	t.Run("StaleDuringRemove", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		st.FailNext(types.NFSProcRemove, types.NFS3ErrStale, 1)

		_, err := fsys.Delete(ctx, "/d/f", false)
		assert.True(t, store.IsStale(err))
		_, ok := fsys.Cache().Get("/d")
		assert.False(t, ok)
	})

	t.Run("StaleDuringRename", func(t *testing.T) {
		fsys, st := newMemoryFS(t)
		writeFile(t, fsys, "/d/f", []byte("data"))
		require.NoError(t, fsys.Mkdirs(ctx, "/e"))
		st.FailNext(types.NFSProcRename, types.NFS3ErrStale, 1)

		err := fsys.Rename(ctx, "/d/f", "/e/f")
		assert.True(t, store.IsStale(err))
		_, ok := fsys.Cache().Get("/d")
		assert.False(t, ok)
		_, ok = fsys.Cache().Get("/e")
		assert.False(t, ok)
	})
}

func TestBlocksFitTransportRecordLimit(t *testing.T) {
	ctx := context.Background()
	server, err := nfstest.New(memory.New(memory.Config{MaxReadSize: 8 << 20, MaxWriteSize: 8 << 20}), "/export")
	require.NoError(t, err)
	t.Cleanup(server.Close)

	st, err := nfs3.Dial(ctx, nfs3.DialConfig{
		Host:      server.Host(),
		Export:    server.Export,
		NFSPort:   server.Port(),
		MountPort: server.Port(),
		Transport: transport.Config{
			CallTimeout:    5 * time.Second,
			MaxRetries:     3,
			ReconnectDelay: 20 * time.Millisecond,
			IdleTick:       5 * time.Millisecond,
		},
		Credentials: rpc.NewUnixAuth(1000, 1000),
	}, nil)
	require.NoError(t, err)

	config := testConfig()
	config.Stream.BlockBits = 23
	fsys, err := New(ctx, st, handlecache.New(32, nil), config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })

	assert.Equal(t, uint(21), fsys.ReadOptions().BlockBits)
	assert.Equal(t, uint(21), fsys.WriteOptions().BlockBits)

	data := payload(5 << 20)
	writeFile(t, fsys, "/big.bin", data)
	assert.Equal(t, data, readFile(t, fsys, "/big.bin"))
}

func TestOverNFS(t *testing.T) {
	ctx := context.Background()
	server := nfstest.Start(t)

	st, err := nfs3.Dial(ctx, nfs3.DialConfig{
		Host:      server.Host(),
		Export:    server.Export,
		NFSPort:   server.Port(),
		MountPort: server.Port(),
		Transport: transport.Config{
			CallTimeout:    time.Second,
			MaxRetries:     3,
			ReconnectDelay: 20 * time.Millisecond,
			IdleTick:       5 * time.Millisecond,
		},
		Credentials: rpc.NewUnixAuth(1000, 1000),
	}, nil)
	require.NoError(t, err)

	fsys, err := New(ctx, st, handlecache.New(32, nil), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })

	data := payload(20_000)
	writeFile(t, fsys, "/remote/dir/file.bin", data)
	assert.Equal(t, data, readFile(t, fsys, "/remote/dir/file.bin"))

	w, err := fsys.Append(ctx, "/remote/dir/file.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, append(bytes.Clone(data), "tail"...), readFile(t, fsys, "/remote/dir/file.bin"))

	require.NoError(t, fsys.Rename(ctx, "/remote/dir/file.bin", "/remote/moved.bin"))
	statuses, err := fsys.ListStatus(ctx, "/remote")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir", "moved.bin"}, names(statuses))

	handle, ok := fsys.Cache().Get("/remote/moved.bin")
	require.True(t, ok)
	require.True(t, server.Store.Invalidate(handle))
	status, err := fsys.GetFileStatus(ctx, "/remote/moved.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(20_004), status.Size)

	deleted, err := fsys.Delete(ctx, "/remote", true)
	require.NoError(t, err)
	assert.True(t, deleted)
}
